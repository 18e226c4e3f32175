package sgp4

import (
	"fmt"
	"math"
	"strings"
)

// Sky plot layout.
const (
	svgWidth               = 600
	svgHeight              = 600
	plotMargin             = 50
	plotCenterX            = svgWidth / 2
	plotCenterY            = svgHeight / 2
	plotRadius             = (svgWidth / 2) - plotMargin
	labelFontSize          = 16 // For N,E,S,W
	elevationLabelFontSize = 10 // For 10,30,60 deg labels
	foregroundColor        = "black"
	secondaryColor         = "dimgray"
	gridLineStrokeWidth    = "1"
	pathStrokeWidth        = "3"
	pointRadius            = 5.0
	labelOffsetPoints      = 8.0
	labelNudge             = 0.4 // fraction of the font size
)

// polarToCartesian maps azimuth and elevation in degrees to plot coordinates.
// Negative elevations are drawn outside the horizon circle.
func polarToCartesian(azimuth, elevation float64, currentPlotRadius float64) (x, y float64) {
	r := currentPlotRadius * (1.0 - elevation/90.0)
	if elevation < 0 {
		r = currentPlotRadius * (1.0 + math.Abs(elevation)/90.0)
	}
	azRad := azimuth * deg2rad
	x = plotCenterX + r*math.Sin(azRad)
	y = plotCenterY - r*math.Cos(azRad)
	return
}

// elevationToColor shades from red at the horizon to green at the zenith.
func elevationToColor(elevation float64) string {
	if elevation < 0 {
		elevation = 0
	}
	if elevation > 90 {
		elevation = 90
	}
	t := elevation / 90.0
	r := int(255 * (1.0 - t))
	g := int(255 * t)
	b := 0
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// PolarSVG renders a visibility period and its sampled track as a sky plot,
// zenith at the centre and north up.
func PolarSVG(vp VisibilityPeriod, track []TrackPoint) string {
	if len(track) < 2 {
		return fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg" style="background-color:white;"><rect width="100%%" height="100%%" fill="white"/><text x="50" y="50" fill="black">Not enough data points for pass plot.</text></svg>`, svgWidth, svgHeight)
	}

	var svgBuilder strings.Builder
	svgBuilder.WriteString(fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg" style="background-color:white;">`, svgWidth, svgHeight))

	// Draw horizon circle (0 degrees elevation)
	svgBuilder.WriteString(fmt.Sprintf(`<circle cx="%f" cy="%f" r="%d" stroke="%s" stroke-width="%s" fill="none"/>`, float64(plotCenterX), float64(plotCenterY), plotRadius, foregroundColor, gridLineStrokeWidth))

	// Draw elevation circles and their labels
	elevationsToMark := []float64{10.0, 30.0, 60.0}
	for _, el := range elevationsToMark {
		radius := plotRadius * (1.0 - el/90.0)
		svgBuilder.WriteString(fmt.Sprintf(`<circle cx="%f" cy="%f" r="%f" stroke="%s" stroke-width="0.5" fill="none" stroke-dasharray="4,4"/>`, float64(plotCenterX), float64(plotCenterY), radius, secondaryColor))

		// Labels sit just right of the north line, above their circle.
		labelX := float64(plotCenterX + 5)
		labelY := float64(plotCenterY) - radius - 3

		svgBuilder.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="%s" font-size="%f" text-anchor="start" dominant-baseline="alphabetic">%d°</text>`, labelX, labelY, secondaryColor, float64(elevationLabelFontSize), int(el)))
	}
	// Zenith label (90 degrees at the center)
	svgBuilder.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="%s" font-size="%f" text-anchor="middle" dominant-baseline="middle">90°</text>`, float64(plotCenterX), float64(plotCenterY), secondaryColor, float64(elevationLabelFontSize)))

	// Cardinal ticks and labels, in a fixed order so output is deterministic.
	cardinals := []struct {
		label            string
		az               float64
		anchor, baseline string
		dx, dy           float64
	}{
		{"N", 0, "middle", "alphabetic", 0, -labelFontSize * labelNudge},
		{"E", 90, "start", "middle", labelFontSize * labelNudge, 0},
		{"S", 180, "middle", "hanging", 0, labelFontSize * labelNudge},
		{"W", 270, "end", "middle", -labelFontSize * labelNudge, 0},
	}
	labelRadius := plotRadius + 15.0
	tickMarkLength := 8.0

	for _, c := range cardinals {
		hx, hy := polarToCartesian(c.az, 0, plotRadius)
		tx, ty := polarToCartesian(c.az, 0, plotRadius+tickMarkLength)
		svgBuilder.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="%s" stroke-width="%s"/>`, hx, hy, tx, ty, foregroundColor, gridLineStrokeWidth))

		lx, ly := polarToCartesian(c.az, 0, labelRadius)
		svgBuilder.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="%s" font-size="%f" text-anchor="%s" dominant-baseline="%s">%s</text>`, lx+c.dx, ly+c.dy, foregroundColor, float64(labelFontSize), c.anchor, c.baseline, c.label))
	}

	// Pass path, coloured by elevation.
	for i := 0; i < len(track)-1; i++ {
		az1, el1 := track[i].Angle.Degrees()
		az2, el2 := track[i+1].Angle.Degrees()
		x1, y1 := polarToCartesian(az1, el1, plotRadius)
		x2, y2 := polarToCartesian(az2, el2, plotRadius)
		color := elevationToColor((el1 + el2) / 2.0)
		svgBuilder.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="%s" stroke-width="%s"/>`, x1, y1, x2, y2, color, pathStrokeWidth))
	}

	first, last := track[0].Angle, track[len(track)-1].Angle
	peak := first
	for _, tp := range track[1:] {
		if tp.Angle.Elevation > peak.Elevation {
			peak = tp.Angle
		}
	}

	aosAz, aosEl := first.Degrees()
	aosX, aosY := polarToCartesian(aosAz, aosEl, plotRadius)
	svgBuilder.WriteString(fmt.Sprintf(`<circle cx="%f" cy="%f" r="%f" fill="darkblue" stroke="black" stroke-width="0.5"/>`, aosX, aosY, pointRadius))
	svgBuilder.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="darkblue" font-size="12" text-anchor="middle" dominant-baseline="text-after-edge">AOS</text>`, aosX, aosY-labelOffsetPoints))

	losAz, losEl := last.Degrees()
	losX, losY := polarToCartesian(losAz, losEl, plotRadius)
	svgBuilder.WriteString(fmt.Sprintf(`<circle cx="%f" cy="%f" r="%f" fill="darkred" stroke="black" stroke-width="0.5"/>`, losX, losY, pointRadius))
	svgBuilder.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="darkred" font-size="12" text-anchor="middle" dominant-baseline="text-before-edge">LOS</text>`, losX, losY+labelOffsetPoints))

	peakAz, peakEl := peak.Degrees()
	maxElX, maxElY := polarToCartesian(peakAz, peakEl, plotRadius)
	svgBuilder.WriteString(fmt.Sprintf(`<circle cx="%f" cy="%f" r="%f" fill="lime" stroke="darkgreen" stroke-width="1.5"/>`, maxElX, maxElY, pointRadius+1))
	anchor, dx, dy := peakLabelPlacement(peakAz)
	svgBuilder.WriteString(fmt.Sprintf(`<text x="%f" y="%f" fill="darkgreen" font-size="12" text-anchor="%s" dominant-baseline="middle">%.0f°</text>`, maxElX+dx, maxElY+dy, anchor, vp.MaxElevation*rad2deg))

	svgBuilder.WriteString(`</svg>`)
	return svgBuilder.String()
}

// peakLabelPlacement keeps the peak label clear of the track: beside the
// marker on east and west headings, below it on southern ones.
func peakLabelPlacement(az float64) (anchor string, dx, dy float64) {
	switch {
	case az > 45 && az < 135:
		return "start", labelOffsetPoints, 0
	case az > 225 && az < 315:
		return "end", -labelOffsetPoints, 0
	case az >= 135 && az <= 225:
		return "middle", 0, labelOffsetPoints + 2
	}
	return "middle", 0, -(labelOffsetPoints + 2)
}
