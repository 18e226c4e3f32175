package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/catalog"
	"github.com/parzivail/sgp4/internal/fleet"
)

type sourceFlags struct {
	file string
	url  string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "catalog", "", "TLE or OMM JSON file")
	cmd.Flags().StringVar(&f.url, "url", "", "download element sets from this URL instead of a file")
}

// load fills a store from the file or URL given on the command line.
func (f *sourceFlags) load(ctx context.Context, logger *slog.Logger) (*catalog.Store, error) {
	store := catalog.NewStore()
	switch {
	case f.file != "" && f.url != "":
		return nil, errors.New("--catalog and --url are mutually exclusive")
	case f.file != "":
		ds, err := catalog.LoadFile(f.file, logger)
		if err != nil {
			return nil, err
		}
		store.Set(ds)
	case f.url != "":
		fetcher := catalog.NewFetcher(catalog.FetcherConfig{SourceURL: f.url}, logger)
		if _, err := catalog.Refresh(ctx, store, fetcher, logger); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("one of --catalog or --url is required")
	}
	return store, nil
}

func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}

func newPassesCmd() *cobra.Command {
	var (
		src          sourceFlags
		lat, lon     float64
		alt          float64
		start        string
		window       time.Duration
		step         time.Duration
		minElevation float64
		digits       int
		clipStart    bool
		clipEnd      bool
		numbers      []int
		svgDir       string
		asJSON       bool
	)
	defaults := sgp4.DefaultObserveOptions()

	cmd := &cobra.Command{
		Use:   "passes",
		Short: "Predict visibility periods over a ground site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			store, err := src.load(ctx, logger)
			if err != nil {
				return err
			}
			from, err := parseStart(start)
			if err != nil {
				return err
			}

			site := sgp4.GeodeticDegrees(lat, lon, alt)
			tracker := fleet.NewTracker(store, 0, logger)
			results, err := tracker.Passes(ctx, fleet.PassRequest{
				Site:  site,
				Start: from,
				End:   from.Add(window),
				Options: sgp4.ObserveOptions{
					Step:             step,
					MinElevation:     minElevation * deg2rad,
					ClipStart:        clipStart,
					ClipEnd:          clipEnd,
					ResolutionDigits: digits,
				},
				CatalogNumbers: numbers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printPasses(out, results)

			if svgDir != "" {
				return writePlots(ctx, tracker, site, results, svgDir, out)
			}
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().Float64Var(&lat, "lat", 0, "site latitude, degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "site longitude, degrees")
	cmd.Flags().Float64Var(&alt, "alt", 0, "site altitude, km")
	cmd.Flags().StringVar(&start, "start", "", "search start, RFC 3339 (now)")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "search window length")
	cmd.Flags().DurationVar(&step, "step", defaults.Step, "coarse scan step")
	cmd.Flags().Float64Var(&minElevation, "min-el", 0, "minimum elevation, degrees")
	cmd.Flags().IntVar(&digits, "digits", defaults.ResolutionDigits, "resolution of rise and set times, 10^-n seconds")
	cmd.Flags().BoolVar(&clipStart, "clip-start", false, "start a pass already in progress at the search start")
	cmd.Flags().BoolVar(&clipEnd, "clip-end", false, "end a pass still in progress at the search end")
	cmd.Flags().IntSliceVar(&numbers, "norad", nil, "catalog numbers to search (all)")
	cmd.Flags().StringVar(&svgDir, "svg-dir", "", "write a polar plot of each pass to this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

const deg2rad = math.Pi / 180

func printPasses(w io.Writer, results []fleet.SatellitePasses) {
	for _, sp := range results {
		fmt.Fprintf(w, "%d %s\n", sp.CatalogNumber, sp.Name)
		if sp.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", sp.Error)
			continue
		}
		if len(sp.Passes) == 0 {
			fmt.Fprintln(w, "  no passes")
			continue
		}
		for _, p := range sp.Passes {
			fmt.Fprintf(w, "  %s  az %5.1f  ->  max %4.1f at %s  ->  %s  az %5.1f  (%s)\n",
				p.Start.Format(time.RFC3339), p.StartAzimuth,
				p.MaxElevation, p.MaxElevationTime.Format("15:04:05"),
				p.End.Format(time.RFC3339), p.EndAzimuth,
				time.Duration(p.DurationSeconds*float64(time.Second)).Truncate(time.Second),
			)
		}
	}
}

func writePlots(ctx context.Context, tracker *fleet.Tracker, site sgp4.Geodetic, results []fleet.SatellitePasses, dir string, w io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, sp := range results {
		for i, p := range sp.Passes {
			track, err := tracker.Track(ctx, sp.CatalogNumber, site, p, 10*time.Second)
			if err != nil {
				return fmt.Errorf("tracking %d pass %d: %w", sp.CatalogNumber, i, err)
			}
			name := filepath.Join(dir, fmt.Sprintf("%d_pass_%d.svg", sp.CatalogNumber, i))
			if err := os.WriteFile(name, []byte(sgp4.PolarSVG(p.Period(), track)), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(w, "wrote %s\n", name)
		}
	}
	return nil
}

func newPositionCmd() *cobra.Command {
	var (
		src     sourceFlags
		at      string
		numbers []int
	)
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Print the state vector and ground point of satellites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			store, err := src.load(ctx, logger)
			if err != nil {
				return err
			}
			when, err := parseStart(at)
			if err != nil {
				return err
			}
			tracker := fleet.NewTracker(store, 0, logger)

			var positions []fleet.Position
			if len(numbers) == 0 {
				positions, _, _, err = tracker.Positions(ctx, when)
				if err != nil {
					return err
				}
			}
			for _, n := range numbers {
				p, err := tracker.Position(n, when)
				if err != nil {
					return fmt.Errorf("satellite %d: %w", n, err)
				}
				positions = append(positions, p)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(positions)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&at, "time", "", "prediction time, RFC 3339 (now)")
	cmd.Flags().IntSliceVar(&numbers, "norad", nil, "catalog numbers (all)")
	return cmd
}
