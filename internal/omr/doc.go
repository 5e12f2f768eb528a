// Package omr holds the data model shared by every stage of bubble-sheet
// reading: bubble centers and the center map that ties a physical template to
// question/option labels, per-bubble classification results, and the two
// answer structures produced from them.
//
// # Bubble Center Maps
//
// A BubbleCenterMap maps question number to option letter to a pixel center
// on the aligned template canvas. It is the artifact exchanged between grid
// discovery and classification, and it is what gets cached and reused across
// every sheet printed from the same physical form. Maps are immutable once
// built; all accessors return values in ascending question, then option order
// so downstream output is deterministic.
//
// # Override JSON
//
// Maps travel as JSON in one of two shapes:
//
//	{"1": {"A": [412, 880], "B": [470, 880]}}
//	{"bubbleCenters": {"1": {"A": [412, 880], "B": [470, 880]}}}
//
// DecodeBubbleMap coerces keys and coordinates and drops malformed entries one
// option at a time instead of rejecting the whole document.
//
// # Errors
//
// ImageDecodeError and GridDiscoveryError are fatal for the image being
// processed and are kept as distinct types so operators can tell a bad scan
// from a bad layout. ModelLoadWarning and MalformedOverrideEntry are
// informational and never abort processing.
package omr
