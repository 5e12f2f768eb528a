// Package detection finds bubble-shaped marks on aligned sheet images.
//
// # Candidate Marks
//
// DetectCandidates extracts every dark, roughly round blob from an
// AlignedImage. It knows nothing about the sheet layout; grid inference turns
// the candidates into a question/option map afterwards.
//
//  1. Smoothing: Gaussian blur to suppress scanner grain
//  2. Binarization: global Otsu threshold, dark pixels become foreground
//  3. Morphology: one 3x3 opening then one 3x3 closing
//  4. Components: 8-connected foreground regions that touch the outer
//     background (regions nested inside another region's hole are skipped)
//  5. Shape filter: aspect ratio in [0.65, 1.35], circularity >= 0.25
//  6. Population filter: area in [max(25, 0.35*median), 3*median] and
//     min(width, height) >= 8
//
// Area and perimeter come from the traced outer boundary (pixel-center
// polygon), so a ring-shaped empty bubble measures like a filled one.
//
// # Column Strips
//
// ReadStrips is the older layout-specific reader: it takes object-detector
// boxes around each subject column, slices every column into a fixed number
// of rows and maps mark positions to options through fixed x ranges.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
package detection
