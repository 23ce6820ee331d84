package predict

import (
	"fmt"
	"math"
)

// Swatch is the live colour preview derived from the channel fields
type Swatch struct {
	CSS   string
	Label string
	Color [3]uint8
}

// Hex returns the swatch colour as #rrggbb
func (s Swatch) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", s.Color[0], s.Color[1], s.Color[2])
}

// Preview derives a swatch from raw channel text. Missing or unparsable
// entries count as 0.
func Preview(r, g, b string) Swatch {
	return PreviewValues(channelOrZero(r), channelOrZero(g), channelOrZero(b))
}

// PreviewValues derives a swatch from parsed channel values
func PreviewValues(r, g, b float64) Swatch {
	rs, gs, bs := formatNumber(r), formatNumber(g), formatNumber(b)
	return Swatch{
		CSS:   fmt.Sprintf("rgb(%s, %s, %s)", rs, gs, bs),
		Label: fmt.Sprintf("RGB(%s, %s, %s)", rs, gs, bs),
		Color: [3]uint8{clampChannel(r), clampChannel(g), clampChannel(b)},
	}
}

func channelOrZero(raw string) float64 {
	v, ok := ParseNumber(raw)
	if !ok {
		return 0
	}
	return v
}

func clampChannel(v float64) uint8 {
	switch {
	case v <= ChannelMin:
		return ChannelMin
	case v >= ChannelMax:
		return ChannelMax
	default:
		return uint8(math.Round(v))
	}
}
