package omr

import "fmt"

// ImageDecodeError reports input that could not be decoded as an image.
type ImageDecodeError struct {
	Source string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to decode image: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode image %s: %v", e.Source, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// GridDiscoveryError reports a sheet whose bubble grid could not be inferred.
type GridDiscoveryError struct {
	Candidates int
	Reason     string
}

func (e *GridDiscoveryError) Error() string {
	return fmt.Sprintf("failed to detect bubble centers (%d candidates): %s", e.Candidates, e.Reason)
}

// ModelLoadWarning reports an optional fill model that could not be loaded.
// The classifier falls back to the intensity heuristic when it occurs.
type ModelLoadWarning struct {
	Path string
	Err  error
}

func (w *ModelLoadWarning) Error() string {
	return fmt.Sprintf("fill model %q unavailable, using intensity heuristic: %v", w.Path, w.Err)
}

func (w *ModelLoadWarning) Unwrap() error { return w.Err }

// MalformedOverrideEntry describes one bubble-map entry that was dropped
// during decoding. Option is empty when the whole question was dropped.
type MalformedOverrideEntry struct {
	Question string
	Option   string
	Reason   string
}

func (e *MalformedOverrideEntry) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("bubble map question %q dropped: %s", e.Question, e.Reason)
	}
	return fmt.Sprintf("bubble map question %q option %q dropped: %s", e.Question, e.Option, e.Reason)
}
