package imaging

import (
	"image"
	"image/color"
	"testing"
)

func filledCanvas(w, h int, v uint8) *AlignedImage {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return NewAlignedImage(g)
}

func TestCropPatch_Interior(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	// Dark 10x10 block centered on (50, 50).
	for y := 45; y < 55; y++ {
		for x := 45; x < 55; x++ {
			g.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	p := CropPatch(NewAlignedImage(g), 50, 50, 28)
	if p.Size != 28 || len(p.Pix) != 28*28 {
		t.Fatalf("unexpected patch size %d (%d pixels)", p.Size, len(p.Pix))
	}
	if p.At(14, 14) != 0 {
		t.Errorf("center intensity = %f, want 0", p.At(14, 14))
	}
	if p.At(0, 0) != 1 {
		t.Errorf("corner intensity = %f, want 1", p.At(0, 0))
	}
}

func TestCropPatch_EdgeIsResized(t *testing.T) {
	a := filledCanvas(40, 40, 0)
	p := CropPatch(a, 2, 2, 28)
	if p.Size != 28 || len(p.Pix) != 28*28 {
		t.Fatalf("unexpected patch size %d", p.Size)
	}
	for i, v := range p.Pix {
		if v != 0 {
			t.Fatalf("pixel %d = %f, want 0 (black canvas)", i, v)
		}
	}
}

func TestCropPatch_OffCanvas(t *testing.T) {
	a := filledCanvas(40, 40, 0)
	p := CropPatch(a, 500, 500, 28)
	for i, v := range p.Pix {
		if v != 1 {
			t.Fatalf("pixel %d = %f, want 1 (white fill)", i, v)
		}
	}
}

func TestCropPatch_DefaultSize(t *testing.T) {
	p := CropPatch(filledCanvas(60, 60, 128), 30, 30, 0)
	if p.Size != DefaultPatchSize {
		t.Errorf("Size = %d, want %d", p.Size, DefaultPatchSize)
	}
}
