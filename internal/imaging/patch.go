package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// DefaultPatchSize is the side of the square patch cropped around a bubble.
const DefaultPatchSize = 28

// Patch is a square single-channel crop with intensities scaled to [0,1],
// stored row-major.
type Patch struct {
	Size int
	Pix  []float64
}

// At returns the intensity at (x, y) within the patch.
func (p Patch) At(x, y int) float64 {
	return p.Pix[y*p.Size+x]
}

// CropPatch extracts a size x size patch centered on (cx, cy).
//
// The crop window is [cx-size/2, cx+size/2) on both axes, clipped to the
// canvas. A clipped window is resized back to size x size. A window entirely
// off the canvas yields a white patch.
func CropPatch(a *AlignedImage, cx, cy, size int) Patch {
	if size <= 0 {
		size = DefaultPatchSize
	}
	half := size / 2
	window := image.Rect(cx-half, cy-half, cx+half, cy+half).Intersect(a.gray.Rect)

	p := Patch{Size: size, Pix: make([]float64, size*size)}
	if window.Empty() {
		for i := range p.Pix {
			p.Pix[i] = 1
		}
		return p
	}

	cropped := imaging.Crop(a.gray, window)
	if cropped.Bounds().Dx() != size || cropped.Bounds().Dy() != size {
		cropped = imaging.Resize(cropped, size, size, imaging.Linear)
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p.Pix[y*size+x] = float64(grayAt(cropped, x, y)) / 255.0
		}
	}
	return p
}
