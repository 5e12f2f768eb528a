package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default template canvas: A4 portrait at 300 dpi.
const (
	DefaultTemplateWidth  = 2480
	DefaultTemplateHeight = 3508
)

// Intensity selects how color pixels collapse to a single channel.
type Intensity string

const (
	// IntensityLuma uses ITU-R BT.601 luminance weights.
	IntensityLuma Intensity = "luma"
	// IntensityLightness uses CIE L* lightness.
	IntensityLightness Intensity = "lightness"
)

// ParseIntensity converts a configuration string to an Intensity.
// The empty string selects luma.
func ParseIntensity(s string) (Intensity, error) {
	switch Intensity(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntensityLuma:
		return IntensityLuma, nil
	case IntensityLightness:
		return IntensityLightness, nil
	default:
		return "", fmt.Errorf("unknown intensity model %q (want %q or %q)", s, IntensityLuma, IntensityLightness)
	}
}

// Template describes the canvas every sheet is normalized onto.
type Template struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Intensity Intensity `json:"intensity"`
}

// DefaultTemplate returns the 2480x3508 luma template.
func DefaultTemplate() Template {
	return Template{
		Width:     DefaultTemplateWidth,
		Height:    DefaultTemplateHeight,
		Intensity: IntensityLuma,
	}
}

// withDefaults fills zero fields from DefaultTemplate.
func (t Template) withDefaults() Template {
	d := DefaultTemplate()
	if t.Width <= 0 {
		t.Width = d.Width
	}
	if t.Height <= 0 {
		t.Height = d.Height
	}
	if t.Intensity == "" {
		t.Intensity = d.Intensity
	}
	return t
}

// AlignedImage is a single-channel intensity surface at template resolution.
// Intensity 0 is black and 255 is white.
type AlignedImage struct {
	gray *image.Gray
}

// NewAlignedImage wraps an existing grayscale surface. The surface is copied
// and rebased so that its bounds start at (0,0).
func NewAlignedImage(gray *image.Gray) *AlignedImage {
	b := gray.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return &AlignedImage{gray: dst}
}

// Width returns the canvas width in pixels.
func (a *AlignedImage) Width() int { return a.gray.Rect.Dx() }

// Height returns the canvas height in pixels.
func (a *AlignedImage) Height() int { return a.gray.Rect.Dy() }

// Gray exposes the underlying surface. Callers must not modify it.
func (a *AlignedImage) Gray() *image.Gray { return a.gray }

// IntensityAt returns the intensity at (x, y), or 255 (white) outside the
// canvas.
func (a *AlignedImage) IntensityAt(x, y int) uint8 {
	if !(image.Point{X: x, Y: y}.In(a.gray.Rect)) {
		return 255
	}
	return a.gray.Pix[y*a.gray.Stride+x]
}

// Normalizer converts decoded images to AlignedImages for one template.
type Normalizer struct {
	template Template
}

// NewNormalizer creates a normalizer. Zero fields of t take their defaults.
func NewNormalizer(t Template) *Normalizer {
	return &Normalizer{template: t.withDefaults()}
}

// Template returns the effective template.
func (n *Normalizer) Template() Template { return n.template }

// Normalize decodes raw image bytes and aligns them to the template.
// Undecodable input fails with *omr.ImageDecodeError.
func (n *Normalizer) Normalize(data []byte) (*AlignedImage, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return n.Align(img), nil
}

// Align converts an already decoded image to a single channel and resizes it
// to the template canvas with bilinear interpolation.
func (n *Normalizer) Align(img image.Image) *AlignedImage {
	var single image.Image
	switch n.template.Intensity {
	case IntensityLightness:
		single = lightness(img)
	default:
		single = imaging.Grayscale(img)
	}
	resized := imaging.Resize(single, n.template.Width, n.template.Height, imaging.Linear)
	return &AlignedImage{gray: toGray(resized)}
}

// lightness maps every pixel to its CIE L* value scaled to 0-255.
// Fully transparent pixels are treated as white paper.
func lightness(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c, ok := colorful.MakeColor(img.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				dst.Pix[y*dst.Stride+x] = 255
				continue
			}
			l, _, _ := c.Lab()
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(math.Max(0, math.Min(1, l)) * 255))
		}
	}
	return dst
}

// toGray copies the red channel of a grayscale NRGBA image.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = row[x*4]
		}
	}
	return dst
}

// grayAt reads a pixel of any image as 8-bit BT.601 luminance.
func grayAt(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}
