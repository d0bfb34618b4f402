// Package imaging converts frames to and from image.Image and resamples them.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	xdraw "golang.org/x/image/draw"
)

// ToRGBA expands a frame into an opaque RGBA image.
func ToRGBA(f *entity.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Stride() : (y+1)*f.Stride()]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img
}

// FromImage packs any image into an RGB frame, dropping alpha.
func FromImage(img image.Image) *entity.Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	f := entity.NewFrame(b.Dx(), b.Dy())
	for y := 0; y < f.Height; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+f.Width*4]
		dst := f.Pix[y*f.Stride() : (y+1)*f.Stride()]
		for x := 0; x < f.Width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return f
}

// Resize resamples f to the target resolution with a bilinear filter.
// A frame already at the target resolution is returned as is.
func Resize(f *entity.Frame, to entity.Resolution) (*entity.Frame, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("resize: invalid source frame")
	}
	if !to.Valid() {
		return nil, fmt.Errorf("resize: invalid target resolution %s", to)
	}
	if f.Resolution() == to {
		return f, nil
	}

	src := ToRGBA(f)
	dst := image.NewRGBA(image.Rect(0, 0, to.Width, to.Height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return FromImage(dst), nil
}

func EncodePNG(w io.Writer, f *entity.Frame) error {
	return png.Encode(w, ToRGBA(f))
}

func DecodePNG(r io.Reader) (*entity.Frame, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return FromImage(img), nil
}

func WritePNG(path string, f *entity.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodePNG(file, f); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}
