package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/pkg/geometry"
	log "github.com/sirupsen/logrus"
)

// Magick runs the ImageMagick command line tools.
type Magick struct {
	ConvertBin  string
	IdentifyBin string
}

func NewMagick() *Magick {
	return &Magick{ConvertBin: "convert", IdentifyBin: "identify"}
}

// Convert runs the converter and waits for it. A non-zero exit yields an
// *ExitError together with the captured stderr.
func (m *Magick) Convert(ctx context.Context, req Request) (Result, error) {
	tile := req.Target
	if req.Scale == geometry.ScaleTile {
		tile = m.TileSize(ctx, req.Input, req.Target)
	}
	args := BuildArgs(req, tile)
	log.Debugf("%s %s", m.ConvertBin, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.ConvertBin, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Tool: m.ConvertBin, ExitCode: res.ExitCode, Stderr: res.Stderr}
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("could not run %s: %w", m.ConvertBin, err)
	}
}

// TileSize asks identify for the image size and returns the size of an odd
// number of tiles covering target. Any failure falls back to target.
func (m *Magick) TileSize(ctx context.Context, input string, target geometry.Size) geometry.Size {
	out, err := exec.CommandContext(ctx, m.IdentifyBin, "-format", "%w\t%h", input).Output()
	if err != nil {
		log.Warnf("identify failed for %s: %v", input, err)
		return target
	}
	fields := strings.Split(strings.TrimSpace(string(out)), "\t")
	if len(fields) < 2 {
		return target
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil {
		return target
	}
	return geometry.TileSize(geometry.Size{Width: w, Height: h}, target)
}

// BuildArgs returns the convert arguments for req. tile is only used in
// tile mode.
func BuildArgs(req Request, tile geometry.Size) []string {
	target := req.Target.String()
	gravity := string(req.Gravity)

	// work in linear light
	args := []string{req.Input, "-colorspace", "RGB"}

	switch req.Scale {
	case geometry.ScaleFit:
		args = append(args,
			"-resize", target,
			"-size", target,
			"-gravity", gravity)
	case geometry.ScaleCover:
		args = append(args,
			"-resize", target+"^",
			"-gravity", "center",
			"-crop", target+"+0+0")
	case geometry.ScaleTile:
		args = append(args,
			"-write", "mpr:src", "+delete",
			"-background", "rgba(0,0,0,0)",
			"-size", tile.String(),
			"tile:mpr:src",
			"-gravity", gravity,
			"-size", target)
	default:
		args = append(args,
			"-size", target,
			"-gravity", gravity)
	}

	args = append(args, "-colorspace", "sRGB")
	if req.Multiply {
		// dither before the multiply to reduce banding
		m := max(req.Background.R, req.Background.G, req.Background.B)
		args = append(args, "-ordered-dither", fmt.Sprintf("8x8,%d,%d,%d", m, m, m))
	}
	args = append(args, "xc:"+config.HexColor(req.Background), "+swap")
	if req.Multiply {
		args = append(args, "-compose", "multiply")
	}
	return append(args, "-composite", req.Output)
}
