package convert

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/pkg/geometry"
)

// Request describes one conversion of Input into a Target sized wallpaper.
type Request struct {
	Input      string
	Output     string
	Target     geometry.Size
	Scale      geometry.ScaleMode
	Gravity    geometry.Gravity
	Background color.RGBA
	Multiply   bool
}

// Result reports how the backend finished.
type Result struct {
	ExitCode int
	Stderr   string
}

// Converter composites an image onto the background canvas.
type Converter interface {
	Convert(ctx context.Context, req Request) (Result, error)
}

// ExitError is returned when the external tool exits non-zero.
type ExitError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// RequestFromConfig fills the conversion parameters from cfg.
func RequestFromConfig(cfg *config.Config, input, output string) (Request, error) {
	bg, err := config.ParseColor(cfg.Background)
	if err != nil {
		return Request{}, err
	}
	scale, err := geometry.ParseScaleMode(string(cfg.Scale))
	if err != nil {
		return Request{}, err
	}
	gravity, err := geometry.ParseGravity(string(cfg.Gravity))
	if err != nil {
		return Request{}, err
	}
	return Request{
		Input:      input,
		Output:     output,
		Target:     cfg.Target,
		Scale:      scale,
		Gravity:    gravity,
		Background: bg,
		Multiply:   cfg.Multiply,
	}, nil
}

// New returns the backend named by kind.
func New(kind string) (Converter, error) {
	switch kind {
	case config.ConverterMagick, "":
		return NewMagick(), nil
	case config.ConverterBuiltin:
		return Builtin{}, nil
	default:
		return nil, fmt.Errorf("unknown converter %q", kind)
	}
}
