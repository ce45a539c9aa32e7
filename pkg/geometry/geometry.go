package geometry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SizePattern matches a canvas size like "1920x1080".
var SizePattern = regexp.MustCompile(`^(\d+)[xX](\d+)$`)

// Size is a canvas or image size in pixels.
type Size struct {
	Width  int
	Height int
}

// ParseSize parses "WxH" into a Size.
func ParseSize(s string) (Size, error) {
	matches := SizePattern.FindStringSubmatch(strings.TrimSpace(s))
	if len(matches) != 3 {
		return Size{}, fmt.Errorf("size %q does not match WxH", s)
	}
	w, err := strconv.Atoi(matches[1])
	if err != nil {
		return Size{}, err
	}
	h, err := strconv.Atoi(matches[2])
	if err != nil {
		return Size{}, err
	}
	if w <= 0 || h <= 0 {
		return Size{}, fmt.Errorf("size %q must be positive", s)
	}
	return Size{Width: w, Height: h}, nil
}

// String returns the "WxH" form understood by ImageMagick.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(b []byte) error {
	parsed, err := ParseSize(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TileSize returns the size of an odd-count tiling of img large enough to
// cover target. An odd count keeps one tile centered under any gravity.
func TileSize(img, target Size) Size {
	if img.Width <= 0 || img.Height <= 0 {
		return target
	}
	tx := ((target.Width / img.Width) + 1) | 1
	ty := ((target.Height / img.Height) + 1) | 1
	return Size{Width: img.Width * tx, Height: img.Height * ty}
}

// ScaleMode determines the composite geometry.
type ScaleMode string

const (
	ScaleFit   ScaleMode = "fit"   // scale to fit, letterboxed
	ScaleCover ScaleMode = "cover" // scale to cover, cropped
	ScaleTile  ScaleMode = "tile"  // tiled at native size
	ScaleNone  ScaleMode = "none"  // placed at native size
)

// ScaleModes lists every valid ScaleMode.
var ScaleModes = []ScaleMode{ScaleFit, ScaleCover, ScaleTile, ScaleNone}

// ParseScaleMode validates s as a ScaleMode.
func ParseScaleMode(s string) (ScaleMode, error) {
	for _, m := range ScaleModes {
		if string(m) == strings.ToLower(strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown scale mode %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler. Case is normalized.
func (m *ScaleMode) UnmarshalText(b []byte) error {
	parsed, err := ParseScaleMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Gravity is the anchor used for placement and cropping.
type Gravity string

const (
	North     Gravity = "north"
	NorthEast Gravity = "northeast"
	East      Gravity = "east"
	SouthEast Gravity = "southeast"
	South     Gravity = "south"
	SouthWest Gravity = "southwest"
	West      Gravity = "west"
	NorthWest Gravity = "northwest"
	Center    Gravity = "center"
)

// Gravities lists every valid Gravity.
var Gravities = []Gravity{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest, Center}

// ParseGravity validates s as a Gravity.
func ParseGravity(s string) (Gravity, error) {
	for _, g := range Gravities {
		if string(g) == strings.ToLower(strings.TrimSpace(s)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown gravity %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler. Case is normalized.
func (g *Gravity) UnmarshalText(b []byte) error {
	parsed, err := ParseGravity(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Offset returns the top-left position of an inner box of size inner placed
// inside outer according to g. Offsets may be negative when inner is larger.
func (g Gravity) Offset(inner, outer Size) (int, int) {
	dx := outer.Width - inner.Width
	dy := outer.Height - inner.Height

	x, y := dx/2, dy/2
	switch g {
	case North, NorthEast, NorthWest:
		y = 0
	case South, SouthEast, SouthWest:
		y = dy
	}
	switch g {
	case West, NorthWest, SouthWest:
		x = 0
	case East, NorthEast, SouthEast:
		x = dx
	}
	return x, y
}
