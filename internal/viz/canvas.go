package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
const brailleBlank = 0x2800

var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Track draws a ground track scaled to fit a fixed number of terminal
// cells. It rescales as the track grows.
type Track struct {
	Width, Height int
	points        [][2]float64
	limit         int
}

func NewTrack(w, h, limit int) *Track {
	return &Track{Width: w, Height: h, limit: limit}
}

func (t *Track) Add(x, y float64) {
	t.points = append(t.points, [2]float64{x, y})
	if len(t.points) > t.limit {
		t.points = t.points[len(t.points)-t.limit:]
	}
}

func (t *Track) Reset() { t.points = t.points[:0] }

func (t *Track) Len() int { return len(t.points) }

func (t *Track) String() string {
	grid := make([][]rune, t.Height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(string(rune(brailleBlank)), t.Width))
	}
	set := func(px, py int) {
		if px < 0 || py < 0 || px >= t.Width*2 || py >= t.Height*4 {
			return
		}
		grid[py/4][px/2] |= dotBits[py%4][px%2]
	}

	if len(t.points) > 0 {
		minX, maxX := t.points[0][0], t.points[0][0]
		minY, maxY := t.points[0][1], t.points[0][1]
		for _, p := range t.points {
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
		// equal scale on both axes so turns look like turns
		span := math.Max(math.Max(maxX-minX, maxY-minY), 1)
		cx, cy := (minX+maxX)/2, (minY+maxY)/2
		w, h := float64(t.Width*2-1), float64(t.Height*4-1)
		scale := math.Min(w, h) / span

		prevX, prevY := -1, -1
		for i, p := range t.points {
			px := int(math.Round(w/2 + (p[0]-cx)*scale))
			py := int(math.Round(h/2 - (p[1]-cy)*scale))
			if i == 0 {
				set(px, py)
			} else {
				line(prevX, prevY, px, py, set)
			}
			prevX, prevY = px, py
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// line is Bresenham between two dot positions.
func line(x0, y0, x1, y1 int, set func(int, int)) {
	dx, dy := abs(x1-x0), abs(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
