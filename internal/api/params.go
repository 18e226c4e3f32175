package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/fleet"
)

func badParam(name, msg string) error {
	return &sgp4.InvalidArgumentError{Name: name, Message: msg}
}

func catalogNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "catnr"))
	if err != nil || n <= 0 {
		return 0, badParam("catnr", "must be a positive integer")
	}
	return n, nil
}

func timeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, badParam(name, "must be an RFC 3339 time")
	}
	return t.UTC(), nil
}

func floatParam(r *http.Request, name string, def float64, required bool) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		if required {
			return 0, badParam(name, "is required")
		}
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badParam(name, "must be a number")
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badParam(name, "must be an integer")
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badParam(name, "must be a boolean")
	}
	return b, nil
}

func intList(v string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, badParam("catnr", fmt.Sprintf("%q is not a catalog number", f))
		}
		out = append(out, n)
	}
	return out, nil
}

// passRequest reads the observer and search window. Angles are in degrees,
// altitude in km and the step in seconds.
func (s *Server) passRequest(r *http.Request) (fleet.PassRequest, error) {
	var req fleet.PassRequest

	lat, err := floatParam(r, "lat", 0, true)
	if err != nil {
		return req, err
	}
	lon, err := floatParam(r, "lon", 0, true)
	if err != nil {
		return req, err
	}
	alt, err := floatParam(r, "alt", 0, false)
	if err != nil {
		return req, err
	}
	req.Site = sgp4.GeodeticDegrees(lat, lon, alt)

	if req.Start, err = timeParam(r, "start", time.Now().UTC()); err != nil {
		return req, err
	}
	if req.End, err = timeParam(r, "end", req.Start.Add(24*time.Hour)); err != nil {
		return req, err
	}
	if req.End.Sub(req.Start) > s.cfg.MaxSearchWindow {
		return req, badParam("end", fmt.Sprintf("search window exceeds %v", s.cfg.MaxSearchWindow))
	}

	opts := sgp4.DefaultObserveOptions()
	step, err := floatParam(r, "step", opts.Step.Seconds(), false)
	if err != nil {
		return req, err
	}
	opts.Step = time.Duration(step * float64(time.Second))
	if opts.Step > 0 && req.End.Sub(req.Start)/opts.Step > maxScanSteps {
		return req, badParam("step", fmt.Sprintf("more than %d steps over the search window", maxScanSteps))
	}
	minEl, err := floatParam(r, "min_el", 0, false)
	if err != nil {
		return req, err
	}
	opts.MinElevation = minEl * deg2rad
	if opts.ResolutionDigits, err = intParam(r, "digits", opts.ResolutionDigits); err != nil {
		return req, err
	}
	if opts.ClipStart, err = boolParam(r, "clip_start"); err != nil {
		return req, err
	}
	if opts.ClipEnd, err = boolParam(r, "clip_end"); err != nil {
		return req, err
	}
	req.Options = opts
	return req, nil
}

const deg2rad = math.Pi / 180

// maxScanSteps bounds the coarse scan of one search so a tiny step cannot
// turn a single request into millions of propagations per satellite.
const maxScanSteps = 100000
