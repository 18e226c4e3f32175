package sgp4

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const tleLineLength = 69

// TLE is a parsed two-line element set. Angles are in degrees and the mean
// motion in revolutions per day, as written in the text format.
type TLE struct {
	Name string // optional line 0

	// Line 1
	SatelliteNumber int
	Classification  rune
	International   string // international designator, e.g. 98067A
	EpochYear       int
	EpochDay        float64 // day of year with fraction, 1.0 is Jan 1 00:00 UTC
	MeanMotionDot   float64 // rev/day², already halved
	MeanMotionDot2  float64 // rev/day³, already divided by six
	Bstar           float64
	ElementNumber   int

	// Line 2
	Inclination      float64
	RightAscension   float64
	Eccentricity     float64
	ArgOfPerigee     float64
	MeanAnomaly      float64
	MeanMotion       float64
	RevolutionNumber int
}

// EpochTime returns the epoch in UTC.
func (tle *TLE) EpochTime() time.Time {
	day := math.Floor(tle.EpochDay)
	frac := tle.EpochDay - day
	start := time.Date(tle.EpochYear, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(day)-1)
	return start.Add(time.Duration(math.Round(frac * secondsPerDay * 1e9)))
}

// Elements returns the numeric element set consumed by NewPropagator.
func (tle *TLE) Elements() ElementSet {
	return ElementSet{
		Name:           tle.Name,
		CatalogNumber:  tle.SatelliteNumber,
		Epoch:          tle.EpochTime(),
		MeanMotion:     tle.MeanMotion,
		Eccentricity:   tle.Eccentricity,
		Inclination:    tle.Inclination,
		RightAscension: tle.RightAscension,
		ArgOfPerigee:   tle.ArgOfPerigee,
		MeanAnomaly:    tle.MeanAnomaly,
		Bstar:          tle.Bstar,
	}
}

// NewPropagator builds a propagator for this element set.
func (tle *TLE) NewPropagator() (*Propagator, error) {
	return NewPropagator(tle.Elements())
}

// ParseTLE parses a two or three line (with a leading name) element set.
func ParseTLE(input string) (*TLE, error) {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(input), "\n") {
		lines = append(lines, strings.TrimRight(l, " \r\t"))
	}

	switch len(lines) {
	case 2:
		return parseLines("", lines[0], lines[1])
	case 3:
		return parseLines(strings.TrimSpace(lines[0]), lines[1], lines[2])
	}
	return nil, fmt.Errorf("invalid TLE: must contain 2 or 3 lines, got %d", len(lines))
}

// ParseTLEs reads a catalog of element sets, each optionally preceded by a
// name line. Blank lines are ignored. The first malformed entry stops the
// read and the element sets before it are returned with the error.
func ParseTLEs(r io.Reader) ([]*TLE, error) {
	return ScanTLEs(r, func(err error) error { return err })
}

// ScanTLEs reads a catalog like ParseTLEs but hands each malformed entry to
// onError. Returning nil skips the entry and continues; any other error stops
// the scan and is returned. A line 1 without its line 2, and a line 2
// without its line 1, are malformed entries.
func ScanTLEs(r io.Reader, onError func(error) error) ([]*TLE, error) {
	var (
		tles  []*TLE
		name  string
		line1 string
		n     int
	)
	fail := func(err error) error {
		return onError(fmt.Errorf("line %d: %w", n, err))
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), " \r\t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line1 != "" {
			if strings.HasPrefix(line, "2 ") {
				tle, err := parseLines(name, line1, line)
				name, line1 = "", ""
				if err != nil {
					if err := fail(err); err != nil {
						return tles, err
					}
					continue
				}
				tles = append(tles, tle)
				continue
			}
			if err := fail(fmt.Errorf("missing line 2 for %q", name)); err != nil {
				return tles, err
			}
			name, line1 = "", ""
		}
		switch {
		case strings.HasPrefix(line, "1 "):
			line1 = line
		case strings.HasPrefix(line, "2 "):
			if err := fail(fmt.Errorf("line 2 without line 1 after %q", name)); err != nil {
				return tles, err
			}
			name = ""
		default:
			name = strings.TrimSpace(strings.TrimPrefix(line, "0 "))
		}
	}
	if err := sc.Err(); err != nil {
		return tles, fmt.Errorf("reading TLE catalog: %w", err)
	}
	if line1 != "" {
		if err := fail(fmt.Errorf("missing line 2 for %q", name)); err != nil {
			return tles, err
		}
	}
	return tles, nil
}

func parseLines(name, line1, line2 string) (*TLE, error) {
	if len(line1) != tleLineLength {
		return nil, fmt.Errorf("invalid TLE: line 1 must be %d characters, got %d", tleLineLength, len(line1))
	}
	if len(line2) != tleLineLength {
		return nil, fmt.Errorf("invalid TLE: line 2 must be %d characters, got %d", tleLineLength, len(line2))
	}
	for i, line := range []string{line1, line2} {
		if err := verifyChecksum(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	tle := &TLE{Name: name}
	if err := tle.parseLine1(line1); err != nil {
		return nil, fmt.Errorf("error parsing line 1: %w", err)
	}
	if err := tle.parseLine2(line2); err != nil {
		return nil, fmt.Errorf("error parsing line 2: %w", err)
	}
	return tle, nil
}

// fieldParser accumulates the first error of a sequence of column parses.
type fieldParser struct {
	line string
	err  error
}

func (p *fieldParser) text(from, to int) string {
	return strings.TrimSpace(p.line[from:to])
}

func (p *fieldParser) int(name string, from, to int) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(p.text(from, to))
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", name, err)
	}
	return v
}

func (p *fieldParser) float(name string, from, to int) float64 {
	if p.err != nil {
		return 0
	}
	s := p.text(from, to)
	// Leading decimal points: ".00007749", "-.00001234".
	switch {
	case strings.HasPrefix(s, "."):
		s = "0" + s
	case strings.HasPrefix(s, "-."), strings.HasPrefix(s, "+."):
		s = s[:1] + "0" + s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s (%q): %w", name, p.line[from:to], err)
	}
	return v
}

// exponential parses the implied decimal point form " 14567-3" (0.14567e-3).
func (p *fieldParser) exponential(name string, from, to int) float64 {
	if p.err != nil {
		return 0
	}
	field := p.line[from:to]
	mantissa, err := strconv.ParseFloat(strings.TrimSpace(field[:len(field)-2]), 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s mantissa (%q): %w", name, field, err)
		return 0
	}
	exp, err := strconv.Atoi(strings.TrimSpace(field[len(field)-2:]))
	if err != nil {
		p.err = fmt.Errorf("invalid %s exponent (%q): %w", name, field, err)
		return 0
	}
	return mantissa * 1e-5 * math.Pow(10, float64(exp))
}

func (tle *TLE) parseLine1(line string) error {
	if line[0] != '1' {
		return fmt.Errorf("line 1 must begin with '1'")
	}
	p := &fieldParser{line: line}

	tle.SatelliteNumber = p.int("satellite number", 2, 7)
	tle.Classification = rune(line[7])
	tle.International = p.text(9, 17)

	// Two digit years below 57 are in the 21st century.
	yy := p.int("epoch year", 18, 20)
	if yy < 57 {
		tle.EpochYear = 2000 + yy
	} else {
		tle.EpochYear = 1900 + yy
	}
	tle.EpochDay = p.float("epoch day", 20, 32)
	tle.MeanMotionDot = p.float("mean motion dot", 33, 43)
	tle.MeanMotionDot2 = p.exponential("mean motion dot 2", 44, 52)
	tle.Bstar = p.exponential("B*", 53, 61)
	tle.ElementNumber = p.int("element number", 64, 68)
	return p.err
}

func (tle *TLE) parseLine2(line string) error {
	if line[0] != '2' {
		return fmt.Errorf("line 2 must begin with '2'")
	}
	p := &fieldParser{line: line}

	satNum := p.int("satellite number", 2, 7)
	if p.err == nil && satNum != tle.SatelliteNumber {
		return fmt.Errorf("satellite numbers do not match between lines (%d vs %d)", tle.SatelliteNumber, satNum)
	}

	tle.Inclination = p.float("inclination", 8, 16)
	tle.RightAscension = p.float("right ascension", 17, 25)
	// Implied leading decimal point.
	if p.err == nil {
		ecc, err := strconv.ParseFloat("0."+p.text(26, 33), 64)
		if err != nil {
			return fmt.Errorf("invalid eccentricity (%q): %w", line[26:33], err)
		}
		tle.Eccentricity = ecc
	}
	tle.ArgOfPerigee = p.float("argument of perigee", 34, 42)
	tle.MeanAnomaly = p.float("mean anomaly", 43, 51)
	tle.MeanMotion = p.float("mean motion", 52, 63)
	tle.RevolutionNumber = p.int("revolution number", 63, 68)
	return p.err
}

// checksum is the modulo-10 sum of the digits of the first 68 characters,
// with '-' counting as one.
func checksum(line string) int {
	sum := 0
	for i := 0; i < tleLineLength-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func verifyChecksum(line string) error {
	want, err := strconv.Atoi(line[tleLineLength-1:])
	if err != nil {
		return fmt.Errorf("invalid checksum: %w", err)
	}
	if got := checksum(line); got != want {
		return fmt.Errorf("checksum mismatch: expected %d (from TLE), got %d (calculated)", want, got)
	}
	return nil
}
