package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an sRGB colour as written into post frontmatter.
type Color struct {
	R   uint8  `json:"r" yaml:"r"`
	G   uint8  `json:"g" yaml:"g"`
	B   uint8  `json:"b" yaml:"b"`
	Hex string `json:"hex" yaml:"hex"`
}

// NewColor builds a Color with a lower-case hex string.
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Hex: fmt.Sprintf("#%02x%02x%02x", r, g, b)}
}

// ParseHex parses "#RRGGBB". The original spelling is kept in Hex.
func ParseHex(hex string) (Color, error) {
	hex = strings.TrimSpace(hex)
	if len(hex) != 7 || hex[0] != '#' {
		return Color{}, fmt.Errorf("colour %q must look like #RRGGBB", hex)
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("colour %q: %w", hex, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), Hex: hex}, nil
}

// HSL holds hue in degrees and saturation/lightness in percent.
type HSL struct {
	H, S, L float64
}

// RGBToHSL converts 8-bit channels to HSL.
func RGBToHSL(r, g, b uint8) HSL {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	hi := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	l := (hi + lo) / 2

	var h, s float64
	if hi != lo {
		d := hi - lo
		if l > 0.5 {
			s = d / (2 - hi - lo)
		} else {
			s = d / (hi + lo)
		}
		switch hi {
		case rf:
			h = (gf - bf) / d
			if gf < bf {
				h += 6
			}
		case gf:
			h = (bf-rf)/d + 2
		default:
			h = (rf-gf)/d + 4
		}
		h /= 6
	}
	return HSL{H: h * 360, S: s * 100, L: l * 100}
}

// RGB converts back to 8-bit channels, rounding to nearest.
func (c HSL) RGB() (uint8, uint8, uint8) {
	h, s, l := c.H/360, c.S/100, c.L/100
	if s == 0 {
		v := round8(l)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return round8(hueToRGB(p, q, h+1.0/3)), round8(hueToRGB(p, q, h)), round8(hueToRGB(p, q, h-1.0/3))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

func round8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v*255))))
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// NormalizeGlow keeps the hue of an average colour while pulling saturation
// into [40, 70] and lightness into [45, 65].
func NormalizeGlow(r, g, b uint8) Color {
	hsl := RGBToHSL(r, g, b)
	hsl.S = clampf(hsl.S*1.3, 40, 70)
	if hsl.L < 50 {
		hsl.L += 15
	} else {
		hsl.L -= 5
	}
	hsl.L = clampf(hsl.L, 45, 65)
	return NewColor(hsl.RGB())
}

// Accent is a UI accent colour in integer HSL.
type Accent struct {
	Hue        int `json:"hue" yaml:"hue"`
	Saturation int `json:"saturation" yaml:"saturation"`
	Lightness  int `json:"lightness" yaml:"lightness"`
}

// CSS renders the accent as an hsl() function.
func (a Accent) CSS() string {
	return fmt.Sprintf("hsl(%d %d%% %d%%)", a.Hue, a.Saturation, a.Lightness)
}

// DeriveAccent keeps the hue of a glow colour and clamps saturation to
// [35, 60] and lightness to [55, 70] for contrast on dark backgrounds.
func DeriveAccent(r, g, b uint8) Accent {
	hsl := RGBToHSL(r, g, b)
	return Accent{
		Hue:        int(math.Round(hsl.H)),
		Saturation: int(math.Round(clampf(hsl.S, 35, 60))),
		Lightness:  int(math.Round(clampf(hsl.L, 55, 70))),
	}
}
