package httpapi

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"styled/pkg/types"
)

// decodeImage parses a PNG or JPEG body into the internal RGBA8 form.
func decodeImage(r io.Reader) (*types.Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	switch format {
	case "png", "jpeg":
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return fromStdImage(src), nil
}

func fromStdImage(src image.Image) *types.Image {
	b := src.Bounds()
	out := types.NewImage(b.Dx(), b.Dy())
	rgba := &image.RGBA{Pix: out.Pix, Stride: out.Width * 4, Rect: image.Rect(0, 0, out.Width, out.Height)}
	draw.Draw(rgba, rgba.Rect, src, b.Min, draw.Src)
	return out
}

// resizeImage scales img to w x h with Catmull-Rom interpolation. Returns the
// input unchanged when it already matches.
func resizeImage(img *types.Image, w, h int) *types.Image {
	if w <= 0 || h <= 0 || (img.Width == w && img.Height == h) {
		return img
	}
	src := &image.RGBA{Pix: img.Pix, Stride: img.Width * 4, Rect: image.Rect(0, 0, img.Width, img.Height)}
	out := types.NewImage(w, h)
	dst := &image.RGBA{Pix: out.Pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return out
}

// encodePNG serializes the internal RGBA8 form as PNG.
func encodePNG(img *types.Image) ([]byte, error) {
	rgba := &image.RGBA{Pix: img.Pix, Stride: img.Width * 4, Rect: image.Rect(0, 0, img.Width, img.Height)}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeJPEG serializes the internal RGBA8 form as JPEG at the given quality.
func encodeJPEG(img *types.Image, quality int) ([]byte, error) {
	rgba := &image.RGBA{Pix: img.Pix, Stride: img.Width * 4, Rect: image.Rect(0, 0, img.Width, img.Height)}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
