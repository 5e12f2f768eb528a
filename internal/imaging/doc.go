// Package imaging normalizes bubble-sheet scans onto a fixed template canvas.
//
// Every downstream stage (mark detection, grid inference, bubble
// classification) works in the pixel space of an AlignedImage: a single
// channel intensity surface resized to the template resolution, 2480x3508
// (A4 at 300 dpi) by default. Scaling is non-uniform; no cropping, rotation or
// perspective correction is attempted.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// # Intensity Models
//
// Two intensity models are available:
//   - luma: ITU-R BT.601 grayscale (0.299*R + 0.587*G + 0.114*B)
//   - lightness: CIE L*, which keeps pencil marks dark on tinted sheets where
//     luma washes the printed ink and the fill together
//
// # Thread Safety
//
// Normalizer and AlignedImage are immutable after construction and safe for
// concurrent use. ImageCache is safe for concurrent use by multiple goroutines.
// Each call to Normalize or Align produces a fresh AlignedImage owned by the
// caller.
package imaging
