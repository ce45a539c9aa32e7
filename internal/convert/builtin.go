package convert

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/mahyarmirrashed/wallrot/pkg/geometry"
	_ "golang.org/x/image/webp"
)

// Builtin composites in-process. It needs no external tools but skips the
// linear-light resize and the ordered dither.
type Builtin struct{}

func (Builtin) Convert(ctx context.Context, req Request) (Result, error) {
	src, err := imaging.Open(req.Input, imaging.AutoOrientation(true))
	if err != nil {
		return Result{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("could not decode %s: %w", req.Input, err)
	}
	out, err := Composite(ctx, src, req)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if err := imaging.Save(out, req.Output); err != nil {
		return Result{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("could not write %s: %w", req.Output, err)
	}
	return Result{}, nil
}

// Composite renders src onto the background canvas described by req.
func Composite(ctx context.Context, src image.Image, req Request) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := req.Target
	size := geometry.Size{Width: src.Bounds().Dx(), Height: src.Bounds().Dy()}

	var placed image.Image
	gravity := req.Gravity
	switch req.Scale {
	case geometry.ScaleFit:
		placed = fit(src, size, target)
	case geometry.ScaleCover:
		placed = imaging.Fill(src, target.Width, target.Height, imaging.Center, imaging.Lanczos)
		gravity = geometry.Center
	case geometry.ScaleTile:
		tiled, err := tile(ctx, src, geometry.TileSize(size, target))
		if err != nil {
			return nil, err
		}
		placed = tiled
	default:
		placed = src
	}

	inner := geometry.Size{Width: placed.Bounds().Dx(), Height: placed.Bounds().Dy()}
	x, y := gravity.Offset(inner, target)
	layer := imaging.Paste(imaging.New(target.Width, target.Height, color.NRGBA{}), placed, image.Pt(x, y))

	return blend(layer, req.Background, req.Multiply), nil
}

// fit scales src up or down so it fits inside target.
func fit(src image.Image, size, target geometry.Size) image.Image {
	if size.Width*target.Height > target.Width*size.Height {
		return imaging.Resize(src, target.Width, 0, imaging.Lanczos)
	}
	return imaging.Resize(src, 0, target.Height, imaging.Lanczos)
}

// tile repeats src across a canvas of the given size, one row at a time.
func tile(ctx context.Context, src image.Image, size geometry.Size) (*image.NRGBA, error) {
	s := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	w, h := s.Rect.Dx(), s.Rect.Dy()
	if w == 0 || h == 0 {
		return out, nil
	}

	rowLen := w * 4
	for y := 0; y < size.Height; y++ {
		sy := y % h
		if sy == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := s.Pix[sy*s.Stride : sy*s.Stride+rowLen]
		dst := out.Pix[y*out.Stride : y*out.Stride+size.Width*4]
		for x := 0; x < len(dst); x += rowLen {
			copy(dst[x:], row)
		}
	}
	return out, nil
}

// blend puts layer over an opaque bg canvas, multiplying where asked.
func blend(layer *image.NRGBA, bg color.RGBA, multiply bool) *image.NRGBA {
	out := imaging.New(layer.Rect.Dx(), layer.Rect.Dy(), color.NRGBA{R: bg.R, G: bg.G, B: bg.B, A: 0xff})
	back := [3]uint32{uint32(bg.R), uint32(bg.G), uint32(bg.B)}

	for i := 0; i < len(layer.Pix); i += 4 {
		a := uint32(layer.Pix[i+3])
		if a == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			fg := uint32(layer.Pix[i+c])
			if multiply {
				fg = fg * back[c] / 0xff
			}
			out.Pix[i+c] = uint8((fg*a + back[c]*(0xff-a)) / 0xff)
		}
	}
	return out
}
