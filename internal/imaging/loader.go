package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/omr-reader/internal/omr"
)

// Decode decodes raw image bytes in any registered format.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP. Any failure,
// including empty input, is reported as *omr.ImageDecodeError.
func Decode(data []byte) (image.Image, error) {
	return decode(data, "")
}

func decode(data []byte, source string) (image.Image, error) {
	if len(data) == 0 {
		return nil, &omr.ImageDecodeError{Source: source, Err: errors.New("empty input")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &omr.ImageDecodeError{Source: source, Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &omr.ImageDecodeError{Source: source, Err: errors.New("image has no pixels")}
	}
	return img, nil
}

// ImageCache provides thread-safe caching of decoded sheet images keyed by
// file path.
//
// Only the decoded source image is cached. Alignment always runs fresh so
// that each processing run owns its AlignedImage.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). A full-page scan can take tens of megabytes once decoded.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not
// cached.
//
// # Errors
//
//   - Returns a wrapped os error if the file cannot be read
//   - Returns *omr.ImageDecodeError if the file is not a decodable image
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	img, err := decode(data, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
