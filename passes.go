package sgp4

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxResolutionDigits is the finest temporal resolution of a visibility
	// search, in decimal digits of a second (100ns).
	MaxResolutionDigits = 7

	// maxLookback bounds the backward walk for a pass already in progress at
	// the scan start; maxOverrun bounds the forward walk for a pass still in
	// progress at the scan end.
	maxLookback = 24 * time.Hour
	maxOverrun  = 24 * time.Hour

	peakSamples = 5
)

// Predictor is what a visibility search needs from a propagator.
type Predictor interface {
	PropagateAt(t time.Time) (Prediction, error)
	Name() string
	CatalogNumber() int
}

// ObserveOptions control the visibility search.
type ObserveOptions struct {
	Step             time.Duration // coarse scan step
	MinElevation     float64       // radians
	ClipStart        bool          // a pass in progress at start begins at start
	ClipEnd          bool          // a pass in progress at end ends at end
	ResolutionDigits int           // rise, set and peak resolution, 10^-n seconds
}

// DefaultObserveOptions scans each minute with 1 ms resolution above the
// horizon, without clipping.
func DefaultObserveOptions() ObserveOptions {
	return ObserveOptions{
		Step:             time.Minute,
		ResolutionDigits: 3,
	}
}

// Resolution returns the temporal resolution selected by ResolutionDigits.
func (o ObserveOptions) Resolution() time.Duration {
	d := time.Second
	for i := 0; i < o.ResolutionDigits; i++ {
		d /= 10
	}
	return d
}

// Validate reports the first option or time range that Observe would reject.
func (o ObserveOptions) Validate(start, end time.Time) error {
	switch {
	case !start.Before(end):
		return &InvalidArgumentError{Name: "start", Message: "must be before end"}
	case o.Step <= 0:
		return &InvalidArgumentError{Name: "step", Message: "must be positive"}
	case o.ResolutionDigits < 0 || o.ResolutionDigits > MaxResolutionDigits:
		return &InvalidArgumentError{
			Name:    "resolution digits",
			Message: fmt.Sprintf("%d outside [0, %d]", o.ResolutionDigits, MaxResolutionDigits),
		}
	case math.IsNaN(o.MinElevation) || o.MinElevation > math.Pi/2:
		return &InvalidArgumentError{Name: "min elevation", Message: "must not exceed 90 degrees"}
	}
	return nil
}

// VisibilityPeriod is one contiguous interval during which a satellite is at
// or above the minimum elevation.
type VisibilityPeriod struct {
	Satellite     string
	CatalogNumber int

	Start            time.Time // acquisition of signal
	End              time.Time // loss of signal
	MaxElevation     float64   // radians
	MaxElevationTime time.Time
	StartAzimuth     float64 // radians
	EndAzimuth       float64 // radians
}

// Duration of the period.
func (vp VisibilityPeriod) Duration() time.Duration {
	return vp.End.Sub(vp.Start)
}

// Observe finds every visibility period of a satellite from a ground location
// between start and end.
//
// Elevation is sampled every opts.Step. Rise and set are bracketed at that
// step and then bisected down to the resolution; the peak is narrowed with
// five interior samples per round. A pass in progress at end is followed past
// end until it sets. Without ClipStart a pass in progress at start is walked
// back to its rise.
func Observe(p Predictor, site Geodetic, start, end time.Time, opts ObserveOptions) ([]VisibilityPeriod, error) {
	if err := opts.Validate(start, end); err != nil {
		return nil, err
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}

	s := &search{p: p, site: site, minEl: opts.MinElevation, resolution: opts.Resolution()}

	var (
		periods   []VisibilityPeriod
		observing bool
		rise      time.Time
	)

	visible, err := s.visible(start)
	if err != nil {
		return nil, err
	}
	if visible {
		observing = true
		rise = start
		if !opts.ClipStart {
			if rise, err = s.riseBefore(start, opts.Step); err != nil {
				return nil, err
			}
		}
	}

	horizon := end.Add(maxOverrun)
	cur := start
	for {
		if !observing && !cur.Before(end) {
			break
		}
		next := cur.Add(opts.Step)
		if !observing && next.After(end) {
			next = end
		}
		if observing && next.After(horizon) {
			// Never sets within the overrun window.
			vp, err := s.period(rise, horizon)
			if err != nil {
				return nil, err
			}
			periods = append(periods, vp)
			observing = false
			break
		}

		visible, err := s.visible(next)
		if err != nil {
			return nil, err
		}
		switch {
		case !observing && visible:
			if rise, err = s.bisect(cur, next, true); err != nil {
				return nil, err
			}
			observing = true
		case observing && !visible:
			set, err := s.bisect(cur, next, false)
			if err != nil {
				return nil, err
			}
			vp, err := s.period(rise, set)
			if err != nil {
				return nil, err
			}
			periods = append(periods, vp)
			observing = false
		}
		cur = next
	}

	if opts.ClipEnd && len(periods) > 0 {
		last := &periods[len(periods)-1]
		if last.End.After(end) {
			clipped, err := s.period(last.Start, end)
			if err != nil {
				return nil, err
			}
			*last = clipped
		}
	}
	return periods, nil
}

// search evaluates elevations of one satellite from one site.
type search struct {
	p          Predictor
	site       Geodetic
	minEl      float64
	resolution time.Duration
}

func (s *search) lookAngle(t time.Time) (TopocentricLookAngle, error) {
	pred, err := s.p.PropagateAt(t)
	if err != nil {
		return TopocentricLookAngle{}, fmt.Errorf("propagate %s at %s: %w", s.p.Name(), t.Format(time.RFC3339Nano), err)
	}
	if err := pred.Err(); err != nil {
		return TopocentricLookAngle{}, fmt.Errorf("propagate %s at %s: %w", s.p.Name(), t.Format(time.RFC3339Nano), err)
	}
	return s.site.LookAngle(pred.State), nil
}

func (s *search) visible(t time.Time) (bool, error) {
	la, err := s.lookAngle(t)
	if err != nil {
		return false, err
	}
	return la.Elevation >= s.minEl, nil
}

// bisect narrows a bracket around an elevation crossing until it is no wider
// than the resolution. For a rise lo is below and hi above the threshold and
// the visible side hi is returned; for a set it is the reverse and lo is
// returned.
func (s *search) bisect(lo, hi time.Time, rising bool) (time.Time, error) {
	for hi.Sub(lo) > s.resolution {
		mid := lo.Add(hi.Sub(lo) / 2)
		visible, err := s.visible(mid)
		if err != nil {
			return time.Time{}, err
		}
		if visible == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	if rising {
		return hi, nil
	}
	return lo, nil
}

// riseBefore walks back from a visible start until the satellite is below the
// threshold and bisects the rise. It gives up after maxLookback.
func (s *search) riseBefore(start time.Time, step time.Duration) (time.Time, error) {
	limit := start.Add(-maxLookback)
	hi := start
	for hi.After(limit) {
		lo := hi.Add(-step)
		if lo.Before(limit) {
			lo = limit
		}
		visible, err := s.visible(lo)
		if err != nil {
			return time.Time{}, err
		}
		if !visible {
			return s.bisect(lo, hi, true)
		}
		hi = lo
	}
	return limit, nil
}

// peak refines the time of maximum elevation in [lo, hi]. Each round samples
// five evenly spaced interior points and keeps the neighbours of the highest.
func (s *search) peak(lo, hi time.Time) (time.Time, TopocentricLookAngle, error) {
	best, err := s.lookAngle(lo)
	if err != nil {
		return time.Time{}, TopocentricLookAngle{}, err
	}
	bestT := lo
	if la, err := s.lookAngle(hi); err != nil {
		return time.Time{}, TopocentricLookAngle{}, err
	} else if la.Elevation > best.Elevation {
		best, bestT = la, hi
	}

	for hi.Sub(lo) > s.resolution {
		width := hi.Sub(lo)
		var ts [peakSamples]time.Time
		maxIdx := -1
		var maxLA TopocentricLookAngle
		for i := range ts {
			ts[i] = lo.Add(width * time.Duration(i+1) / (peakSamples + 1))
			la, err := s.lookAngle(ts[i])
			if err != nil {
				return time.Time{}, TopocentricLookAngle{}, err
			}
			if maxIdx < 0 || la.Elevation > maxLA.Elevation {
				maxIdx, maxLA = i, la
			}
		}
		if maxLA.Elevation > best.Elevation {
			best, bestT = maxLA, ts[maxIdx]
		}

		newLo, newHi := lo, hi
		if maxIdx > 0 {
			newLo = ts[maxIdx-1]
		}
		if maxIdx < peakSamples-1 {
			newHi = ts[maxIdx+1]
		}
		if newHi.Sub(newLo) >= width {
			break
		}
		lo, hi = newLo, newHi
	}
	return bestT, best, nil
}

func (s *search) period(rise, set time.Time) (VisibilityPeriod, error) {
	startLA, err := s.lookAngle(rise)
	if err != nil {
		return VisibilityPeriod{}, err
	}
	endLA, err := s.lookAngle(set)
	if err != nil {
		return VisibilityPeriod{}, err
	}
	peakT, peakLA, err := s.peak(rise, set)
	if err != nil {
		return VisibilityPeriod{}, err
	}
	return VisibilityPeriod{
		Satellite:        s.p.Name(),
		CatalogNumber:    s.p.CatalogNumber(),
		Start:            rise,
		End:              set,
		MaxElevation:     peakLA.Elevation,
		MaxElevationTime: peakT,
		StartAzimuth:     startLA.Azimuth,
		EndAzimuth:       endLA.Azimuth,
	}, nil
}

// TrackPoint is one sample of a pass in the observer's horizon frame.
type TrackPoint struct {
	Time  time.Time
	Angle TopocentricLookAngle
}

// Track samples the look angles of a visibility period every step, always
// including its start, peak and end.
func Track(p Predictor, site Geodetic, vp VisibilityPeriod, step time.Duration) ([]TrackPoint, error) {
	if step <= 0 {
		return nil, &InvalidArgumentError{Name: "step", Message: "must be positive"}
	}
	s := &search{p: p, site: site}

	var points []TrackPoint
	add := func(t time.Time) error {
		la, err := s.lookAngle(t)
		if err != nil {
			return err
		}
		points = append(points, TrackPoint{Time: t, Angle: la})
		return nil
	}

	peakAdded := false
	for t := vp.Start; t.Before(vp.End); t = t.Add(step) {
		if !peakAdded && !t.Before(vp.MaxElevationTime) {
			if !t.Equal(vp.MaxElevationTime) {
				if err := add(vp.MaxElevationTime); err != nil {
					return nil, err
				}
			}
			peakAdded = true
		}
		if err := add(t); err != nil {
			return nil, err
		}
	}
	if !peakAdded && vp.MaxElevationTime.Before(vp.End) {
		if err := add(vp.MaxElevationTime); err != nil {
			return nil, err
		}
	}
	if err := add(vp.End); err != nil {
		return nil, err
	}
	return points, nil
}
