package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/parzivail/sgp4"
)

func main() {
	tleStr := `ISS (ZARYA)
1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994
2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533`

	tle, err := sgp4.ParseTLE(tleStr)
	if err != nil {
		log.Fatalf("Failed to parse TLE: %v", err)
	}
	prop, err := tle.NewPropagator()
	if err != nil {
		log.Fatalf("Failed to initialise propagator: %v", err)
	}

	site := sgp4.GeodeticDegrees(46.829853, -71.254028, 0) // Quebec

	startTime := tle.EpochTime()
	stopTime := startTime.Add(48 * time.Hour)

	opts := sgp4.DefaultObserveOptions()
	opts.Step = 10 * time.Second

	passes, err := sgp4.Observe(prop, site, startTime, stopTime, opts)
	if err != nil {
		log.Fatalf("Error searching passes: %v", err)
	}

	lat, lon := site.Degrees()
	fmt.Printf("Predicted passes for %s over Lat:%.2f Lon:%.2f:\n", prop.Name(), lat, lon)
	if len(passes) == 0 {
		fmt.Println("No passes found in the given time window.")
		return
	}
	for i, pass := range passes {
		startAz := pass.StartAzimuth * 180 / math.Pi
		endAz := pass.EndAzimuth * 180 / math.Pi
		maxEl := pass.MaxElevation * 180 / math.Pi

		fmt.Printf("Pass %d:\n", i+1)
		fmt.Printf("  AOS: %s (Az: %.1f°)\n", pass.Start.Local(), startAz)
		fmt.Printf("  Max Elevation: %.1f° at %s\n", maxEl, pass.MaxElevationTime.Local())
		fmt.Printf("  LOS: %s (Az: %.1f°)\n", pass.End.Local(), endAz)
		fmt.Printf("  Duration: %v\n", pass.Duration().Truncate(time.Second))

		if i != 0 {
			continue
		}
		track, err := sgp4.Track(prop, site, pass, 10*time.Second)
		if err != nil {
			log.Printf("Error tracking pass: %v", err)
			continue
		}
		fileName := fmt.Sprintf("pass_%d_polar_plot.svg", i+1)
		if err := os.WriteFile(fileName, []byte(sgp4.PolarSVG(pass, track)), 0o644); err != nil {
			log.Printf("Error writing SVG to file: %v", err)
		} else {
			fmt.Printf("  Polar plot saved to %s\n", fileName)
		}
	}
}
