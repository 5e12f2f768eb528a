// Package classify estimates how likely each bubble on a sheet is filled.
//
// A Classifier crops one patch per bubble center and hands the batch to a
// Backend. Two backends exist:
//
//   - Heuristic: 1 - mean intensity of the patch center. Always available.
//   - Learned: a model worker subprocess that returns one probability per
//     patch.
//
// The backend is chosen once in New. If a model was requested but cannot be
// started, New logs a ModelLoadWarning and uses the heuristic; classification
// itself never switches backends.
package classify
