package compositor

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor converts a CSS color string (hex, rgb(), rgba(), named) to a color
func ParseColor(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))

	switch {
	case v == "":
		return color.NRGBA{}, fmt.Errorf("empty color")
	case v == "transparent":
		return color.NRGBA{}, nil
	case strings.HasPrefix(v, "#"):
		return parseHex(v[1:])
	case strings.HasPrefix(v, "rgba(") || strings.HasPrefix(v, "rgb("):
		return parseFunctional(v)
	}

	if c, ok := colornames.Map[v]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
}

func parseHex(h string) (color.NRGBA, error) {
	switch len(h) {
	case 3, 4:
		expanded := make([]byte, 0, len(h)*2)
		for i := 0; i < len(h); i++ {
			expanded = append(expanded, h[i], h[i])
		}
		h = string(expanded)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s", h)
	}

	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s: %w", h, err)
	}
	if len(h) == 6 {
		n = n<<8 | 0xff
	}
	return color.NRGBA{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: uint8(n),
	}, nil
}

func parseFunctional(v string) (color.NRGBA, error) {
	open := strings.IndexByte(v, '(')
	if !strings.HasSuffix(v, ")") || open < 0 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", v)
	}
	body := strings.NewReplacer("/", " ", ",", " ").Replace(v[open+1 : len(v)-1])
	parts := strings.Fields(body)
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", v)
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		f, err := parseComponent(parts[i], 255)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", v, err)
		}
		ch[i] = uint8(f + 0.5)
	}

	alpha := 1.0
	if len(parts) == 4 {
		a, err := parseComponent(parts[3], 1)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", v, err)
		}
		alpha = a
	}

	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: uint8(alpha*255 + 0.5)}, nil
}

// parseComponent reads a number or percentage and clamps it to [0, max]
func parseComponent(s string, max float64) (float64, error) {
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = max / 100
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	f *= scale
	if f < 0 {
		f = 0
	}
	if f > max {
		f = max
	}
	return f, nil
}
