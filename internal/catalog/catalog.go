// Package catalog loads and holds the element sets tracked by the server.
package catalog

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/parzivail/sgp4"
)

// EpochRange is the span of element set epochs in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is an immutable snapshot of a catalog.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []sgp4.ElementSet // sorted by catalog number

	index map[int]int
}

// NewDataset indexes entries by catalog number. A later duplicate replaces an
// earlier one.
func NewDataset(source string, fetchedAt time.Time, entries []sgp4.ElementSet) *Dataset {
	byNumber := make(map[int]sgp4.ElementSet, len(entries))
	for _, e := range entries {
		byNumber[e.CatalogNumber] = e
	}
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: make([]sgp4.ElementSet, 0, len(byNumber)),
		index:      make(map[int]int, len(byNumber)),
	}
	for _, e := range byNumber {
		ds.Satellites = append(ds.Satellites, e)
	}
	sort.Slice(ds.Satellites, func(i, j int) bool {
		return ds.Satellites[i].CatalogNumber < ds.Satellites[j].CatalogNumber
	})
	for i, e := range ds.Satellites {
		ds.index[e.CatalogNumber] = i
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Lookup returns the element set with the given catalog number.
func (ds *Dataset) Lookup(catalogNumber int) (sgp4.ElementSet, bool) {
	i, ok := ds.index[catalogNumber]
	if !ok {
		return sgp4.ElementSet{}, false
	}
	return ds.Satellites[i], true
}

// Len returns the number of satellites.
func (ds *Dataset) Len() int {
	return len(ds.Satellites)
}

// Parse reads either a JSON array of OMM records or text element sets with
// optional name lines. Malformed text entries are skipped with a warning.
func Parse(data []byte, logger *slog.Logger) ([]sgp4.ElementSet, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return parseOMM(trimmed, logger)
	}
	return parseTLE(data, logger)
}

func parseOMM(data []byte, logger *slog.Logger) ([]sgp4.ElementSet, error) {
	omms, err := sgp4.ParseOMMs(data)
	if err != nil {
		return nil, err
	}
	entries := make([]sgp4.ElementSet, 0, len(omms))
	for i := range omms {
		es, err := omms[i].Elements()
		if err != nil {
			logger.Warn("skipping OMM record", "name", omms[i].ObjectName, "norad_id", omms[i].NoradCatID, "error", err)
			continue
		}
		entries = append(entries, es)
	}
	return entries, nil
}

func parseTLE(data []byte, logger *slog.Logger) ([]sgp4.ElementSet, error) {
	tles, err := sgp4.ScanTLEs(bytes.NewReader(data), func(err error) error {
		logger.Warn("skipping malformed TLE entry", "error", err)
		return nil
	})
	if err != nil {
		return nil, err
	}
	entries := make([]sgp4.ElementSet, 0, len(tles))
	for _, tle := range tles {
		entries = append(entries, tle.Elements())
	}
	return entries, nil
}

// LoadFile parses a catalog file from disk.
func LoadFile(path string, logger *slog.Logger) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	entries, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return NewDataset(path, info.ModTime(), entries), nil
}
