// Package imaging encodes todo item images for the feed and renders thumbnails.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	// decoders for image.Decode
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DefaultQuality is the JPEG quality used when re-encoding attachments.
const DefaultQuality = 85

// Codec converts between raw image bytes, their base64 text form and thumbnails.
type Codec struct {
	Quality int
	Scaler  draw.Interpolator
}

// NewCodec returns a codec using bilinear interpolation.
func NewCodec() *Codec {
	return &Codec{Quality: DefaultQuality, Scaler: draw.BiLinear}
}

// Encode returns the base64 text form of raw image bytes.
func (c *Codec) Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses base64 text back into raw bytes. Line breaks are ignored so
// payloads written by clients that wrap base64 output still decode.
func (c *Codec) Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return data, nil
}

// Prepare decodes an image, downsizes it to fit within maxSide on its longest
// edge and re-encodes it as JPEG. Images that already fit are only re-encoded.
func (c *Codec) Prepare(data []byte, maxSide int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img := src
	if maxSide > 0 {
		img = c.fit(src, maxSide, maxSide)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality()}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail decodes raw image bytes, scales the image to fit within
// width x height (aspect ratio kept, never upscaled) and rotates it clockwise
// by degrees. Non-positive dimensions leave the size unchanged.
func (c *Codec) Thumbnail(data []byte, width, height int, degrees float64) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img := src
	if width > 0 && height > 0 {
		img = c.fit(src, width, height)
	}
	if math.Mod(degrees, 360) != 0 {
		img = c.rotate(img, degrees)
	}
	return img, nil
}

// EncodeJPEG writes an image as JPEG bytes.
func (c *Codec) EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality()}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) fit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	c.scaler().Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func (c *Codec) rotate(src image.Image, degrees float64) image.Image {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	b := src.Bounds()
	sw, sh := float64(b.Dx()), float64(b.Dy())
	dw := int(math.Round(math.Abs(sw*cos) + math.Abs(sh*sin)))
	dh := int(math.Round(math.Abs(sw*sin) + math.Abs(sh*cos)))

	// src centre → origin → rotate → dst centre
	scx, scy := float64(b.Min.X)+sw/2, float64(b.Min.Y)+sh/2
	dcx, dcy := float64(dw)/2, float64(dh)/2
	s2d := f64.Aff3{
		cos, -sin, dcx - (cos*scx - sin*scy),
		sin, cos, dcy - (sin*scx + cos*scy),
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	c.scaler().Transform(dst, s2d, src, b, draw.Over, nil)
	return dst
}

func (c *Codec) quality() int {
	if c.Quality <= 0 || c.Quality > 100 {
		return DefaultQuality
	}
	return c.Quality
}

func (c *Codec) scaler() draw.Interpolator {
	if c.Scaler == nil {
		return draw.BiLinear
	}
	return c.Scaler
}

// FitSize scales w x h down to fit within maxW x maxH keeping the aspect
// ratio. Sizes that already fit are returned unchanged; results are at least 1.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}

	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
