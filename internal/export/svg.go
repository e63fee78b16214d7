package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/ufosim/internal/ufo"
)

type point struct{ X, Y float64 }

type bounds struct{ minX, maxX, minY, maxY float64 }

func boundsOf(points []point) bounds {
	b := bounds{points[0].X, points[0].X, points[0].Y, points[0].Y}
	for _, p := range points {
		b.minX = math.Min(b.minX, p.X)
		b.maxX = math.Max(b.maxX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxY = math.Max(b.maxY, p.Y)
	}

	// 10% padding; a flat axis gets a unit range
	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
	return b
}

// panel draws points as a polyline into a w×h box at (ox, oy).
func panel(sb *strings.Builder, title string, points []point, ox, oy, w, h float64, stroke string) {
	b := boundsOf(points)
	project := func(p point) (float64, float64) {
		x := ox + (p.X-b.minX)/(b.maxX-b.minX)*w
		y := oy + h - (p.Y-b.minY)/(b.maxY-b.minY)*h
		return x, y
	}

	fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#333"/>
<text x="%.1f" y="%.1f" fill="#aaa" font-family="monospace" font-size="12">%s</text>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`, ox, oy, w, h, ox+4, oy+14, title, stroke)
	for i, p := range points {
		x, y := project(p)
		if i == 0 {
			fmt.Fprintf(sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")

	sx, sy := project(points[0])
	ex, ey := project(points[len(points)-1])
	fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="#00ff00"/>
<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>
`, sx, sy, ex, ey, stroke)
}

// FlightToSVG renders the ground track and the altitude profile of a
// flight side by side. The end marker turns red when the flight crashed.
func FlightToSVG(states []ufo.State, width, height int) string {
	if len(states) < 2 {
		return ""
	}

	track := make([]point, len(states))
	profile := make([]point, len(states))
	for i, s := range states {
		track[i] = point{s.X, s.Y}
		profile[i] = point{s.FlightTime, s.Z}
	}

	stroke := "#00bfff"
	if states[len(states)-1].Crashed {
		stroke = "#ff3030"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	const gap = 10.0
	w := (float64(width) - 3*gap) / 2
	h := float64(height) - 2*gap
	panel(&sb, "ground track (x, y)", track, gap, gap, w, h, stroke)
	panel(&sb, "altitude (t, z)", profile, 2*gap+w, gap, w, h, stroke)

	sb.WriteString("</svg>")
	return sb.String()
}

func WriteSVG(w io.Writer, states []ufo.State, width, height int) error {
	svg := FlightToSVG(states, width, height)
	if svg == "" {
		return fmt.Errorf("export: need at least 2 states, got %d", len(states))
	}
	_, err := io.WriteString(w, svg)
	return err
}
