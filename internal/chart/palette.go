package chart

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Key colors of the viridis and YlGnBu scales, low to high.
var (
	viridisStops = mustHex("#440154", "#482878", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6dcd59", "#fde725")
	ylGnBuStops  = mustHex("#ffffd9", "#edf8b1", "#c7e9b4", "#7fcdbb", "#41b6c4", "#1d91c0", "#225ea8", "#253494", "#081d58")
)

// MissingColor fills shapes that have no value.
const MissingColor = "#e0e0e0"

func mustHex(hexes ...string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		out[i] = c
	}
	return out
}

// Scale maps [0, 1] onto a sequence of key colors, blending in Lab space.
type Scale []colorful.Color

// ViridisScale is the continuous viridis color scale.
func ViridisScale() Scale { return Scale(viridisStops) }

// YlGnBuScale is the continuous yellow-green-blue scale used by the calendar.
func YlGnBuScale() Scale { return Scale(ylGnBuStops) }

// At returns the color at t; t is clamped to [0, 1].
func (s Scale) At(t float64) colorful.Color {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(s)-1)
	i := int(math.Floor(pos))
	if i >= len(s)-1 {
		return s[len(s)-1]
	}
	return s[i].BlendLab(s[i+1], pos-float64(i)).Clamped()
}

// Normalized returns the color of v within [lo, hi]. A degenerate range maps
// to the middle of the scale.
func (s Scale) Normalized(v, lo, hi float64) colorful.Color {
	if hi <= lo {
		return s.At(0.5)
	}
	return s.At((v - lo) / (hi - lo))
}

// Viridis returns n colors evenly spaced over a 256-step viridis palette.
func Viridis(n int) []colorful.Color {
	if n <= 0 {
		return nil
	}
	s := ViridisScale()
	out := make([]colorful.Color, n)
	for i := range out {
		step := 0.0
		if n > 1 {
			step = math.Round(float64(i) * 255 / float64(n-1))
		}
		out[i] = s.At(step / 255)
	}
	return out
}

// HexColors converts colors to "#rrggbb" strings.
func HexColors(cs []colorful.Color) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Hex()
	}
	return out
}

func toDrawing(c colorful.Color) drawing.Color {
	r, g, b := c.RGB255()
	return drawing.Color{R: r, G: g, B: b, A: 255}
}
