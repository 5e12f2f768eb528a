// Package grid turns unlabeled candidate centers into a question/option map.
//
// Every tolerance is derived from the candidate population itself: the row
// tolerance from the median vertical pitch, the block gap from the median
// horizontal pitch, the option count and column count from modes. The same
// code therefore works across scan resolutions without retuning.
//
// Questions are numbered column-major: all rows of the leftmost block of
// questions first, then the next block to the right.
package grid
