package sgp4

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OMM is one CCSDS Orbit Mean-elements Message record in the JSON layout
// served by CelesTrak and space-track.org.
type OMM struct {
	ObjectName         string  `json:"OBJECT_NAME"`
	ObjectID           string  `json:"OBJECT_ID"` // e.g. "1998-067A"
	EpochStr           string  `json:"EPOCH"`     // ISO 8601, UTC when no zone is given
	MeanMotion         float64 `json:"MEAN_MOTION"`
	Eccentricity       float64 `json:"ECCENTRICITY"`
	Inclination        float64 `json:"INCLINATION"`
	RAOfAscNode        float64 `json:"RA_OF_ASC_NODE"`
	ArgOfPericenter    float64 `json:"ARG_OF_PERICENTER"`
	MeanAnomaly        float64 `json:"MEAN_ANOMALY"`
	EphemerisType      int     `json:"EPHEMERIS_TYPE"`
	ClassificationType string  `json:"CLASSIFICATION_TYPE"`
	NoradCatID         int     `json:"NORAD_CAT_ID"`
	ElementSetNo       int     `json:"ELEMENT_SET_NO"`
	RevAtEpoch         int     `json:"REV_AT_EPOCH"`
	BStar              float64 `json:"BSTAR"`
	MeanMotionDot      float64 `json:"MEAN_MOTION_DOT"`
	MeanMotionDDot     float64 `json:"MEAN_MOTION_DDOT"`

	CenterName        string `json:"CENTER_NAME,omitempty"`
	RefFrame          string `json:"REF_FRAME,omitempty"`
	TimeSystem        string `json:"TIME_SYSTEM,omitempty"`
	MeanElementTheory string `json:"MEAN_ELEMENT_THEORY,omitempty"`
}

// ParseOMMs parses a JSON array of OMM records.
func ParseOMMs(jsonData []byte) ([]OMM, error) {
	var omms []OMM
	if err := json.Unmarshal(jsonData, &omms); err != nil {
		return nil, fmt.Errorf("error unmarshalling OMM JSON: %w", err)
	}
	return omms, nil
}

var (
	zonedEpochLayouts = []string{time.RFC3339Nano, time.RFC3339}
	plainEpochLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"}
)

func parseOMMEpoch(s string) (time.Time, error) {
	for _, layout := range zonedEpochLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range plainEpochLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("error parsing OMM epoch %q", s)
}

// ommEpochToTleEpoch returns the year and fractional day of year (1.0 is
// Jan 1 00:00 UTC) of an OMM epoch, along with the parsed instant.
func ommEpochToTleEpoch(epochStr string) (int, float64, time.Time, error) {
	t, err := parseOMMEpoch(epochStr)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	frac := float64(t.Sub(midnight).Nanoseconds()) / float64(24*time.Hour)
	return t.Year(), float64(t.YearDay()) + frac, t, nil
}

// ommObjectIDToTleInternational converts "1998-067A" into "98067A".
func ommObjectIDToTleInternational(objectID string) (string, error) {
	year, piece, ok := strings.Cut(objectID, "-")
	if !ok || strings.Contains(piece, "-") {
		return "", fmt.Errorf("invalid OBJECT_ID format: expected 'YYYY-NNNPPP', got '%s'", objectID)
	}
	if len(year) < 2 {
		return "", fmt.Errorf("invalid year part in OBJECT_ID: '%s'", year)
	}
	if len(piece) < 4 {
		return "", fmt.Errorf("invalid launch number/piece part in OBJECT_ID: '%s', too short", piece)
	}
	return year[len(year)-2:] + piece, nil
}

// Epoch returns the record epoch in UTC.
func (o *OMM) Epoch() (time.Time, error) {
	return parseOMMEpoch(o.EpochStr)
}

// Elements returns the numeric element set consumed by NewPropagator.
func (o *OMM) Elements() (ElementSet, error) {
	epoch, err := o.Epoch()
	if err != nil {
		return ElementSet{}, err
	}
	return ElementSet{
		Name:           o.ObjectName,
		CatalogNumber:  o.NoradCatID,
		Epoch:          epoch,
		MeanMotion:     o.MeanMotion,
		Eccentricity:   o.Eccentricity,
		Inclination:    o.Inclination,
		RightAscension: o.RAOfAscNode,
		ArgOfPerigee:   o.ArgOfPericenter,
		MeanAnomaly:    o.MeanAnomaly,
		Bstar:          o.BStar,
	}, nil
}

// NewPropagator builds a propagator for this record.
func (o *OMM) NewPropagator() (*Propagator, error) {
	es, err := o.Elements()
	if err != nil {
		return nil, err
	}
	return NewPropagator(es)
}

// ToTLE converts an OMM record to a TLE. MEAN_MOTION_DOT and MEAN_MOTION_DDOT
// are taken to be already halved and divided by six, as in the text format.
func (o *OMM) ToTLE() (*TLE, error) {
	intl, err := ommObjectIDToTleInternational(o.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to convert ObjectID to TLE International: %w", err)
	}
	year, day, _, err := ommEpochToTleEpoch(o.EpochStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OMM epoch: %w", err)
	}
	if o.Eccentricity >= 1 || o.Eccentricity < 0 {
		return nil, fmt.Errorf("eccentricity from OMM (%.10f) is out of TLE bounds [0,1)", o.Eccentricity)
	}
	if o.Inclination < 0 || o.Inclination > 180 {
		return nil, fmt.Errorf("inclination from OMM (%.4f) is out of TLE bounds [0,180]", o.Inclination)
	}

	class := 'U'
	if o.ClassificationType != "" {
		class = rune(o.ClassificationType[0])
	}
	return &TLE{
		Name:             o.ObjectName,
		SatelliteNumber:  o.NoradCatID,
		Classification:   class,
		International:    intl,
		EpochYear:        year,
		EpochDay:         day,
		MeanMotionDot:    o.MeanMotionDot,
		MeanMotionDot2:   o.MeanMotionDDot,
		Bstar:            o.BStar,
		ElementNumber:    o.ElementSetNo,
		Inclination:      o.Inclination,
		RightAscension:   o.RAOfAscNode,
		Eccentricity:     o.Eccentricity,
		ArgOfPerigee:     o.ArgOfPericenter,
		MeanAnomaly:      o.MeanAnomaly,
		MeanMotion:       o.MeanMotion,
		RevolutionNumber: o.RevAtEpoch,
	}, nil
}
