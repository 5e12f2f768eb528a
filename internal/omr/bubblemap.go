package omr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// wrapperKey is the envelope key some producers put around the map.
const wrapperKey = "bubbleCenters"

// MarshalJSON encodes the map in override format: {"q": {"A": [x, y]}}.
func (m BubbleCenterMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string][2]int, len(m))
	for q, opts := range m {
		enc := make(map[string][2]int, len(opts))
		for o, c := range opts {
			enc[o] = [2]int{c.X, c.Y}
		}
		out[strconv.Itoa(q)] = enc
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes either override shape, silently dropping malformed
// entries. Use DecodeBubbleMap to see what was dropped.
func (m *BubbleCenterMap) UnmarshalJSON(data []byte) error {
	decoded, _, err := DecodeBubbleMap(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// EncodeBubbleMap renders the map as indented JSON. When wrapped is true the
// map is placed under a "bubbleCenters" key.
func EncodeBubbleMap(m BubbleCenterMap, wrapped bool) ([]byte, error) {
	var v interface{} = m
	if wrapped {
		v = map[string]interface{}{wrapperKey: m}
	}
	return json.MarshalIndent(v, "", "  ")
}

// DecodeBubbleMap parses a bubble-map override document.
//
// Accepted shapes are the direct map and the {"bubbleCenters": ...} wrapper.
// Question keys are coerced to integers, option keys to upper case, and each
// coordinate to an integer pixel (numeric strings are accepted, fractions
// truncate toward zero). An option whose point does not coerce is dropped on
// its own; a question left with no options is dropped entirely. Every dropped
// entry is reported in the returned slice.
//
// Keys are processed in sorted order, so when two keys coerce to the same
// question or option the later one in that order wins.
//
// The error is non-nil only when the document is not JSON or its top level
// (after unwrapping) is not an object.
func DecodeBubbleMap(data []byte) (BubbleCenterMap, []*MalformedOverrideEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("invalid bubble map JSON: %w", err)
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("bubble map JSON must be an object")
	}
	if inner, wrapped := obj[wrapperKey]; wrapped {
		obj, ok = inner.(map[string]interface{})
		if !ok {
			return nil, nil, fmt.Errorf("bubble map JSON must be an object")
		}
	}

	var dropped []*MalformedOverrideEntry
	result := make(BubbleCenterMap)

	for _, qKey := range sortedKeys(obj) {
		q, err := strconv.Atoi(strings.TrimSpace(qKey))
		if err != nil {
			dropped = append(dropped, &MalformedOverrideEntry{Question: qKey, Reason: "question key is not an integer"})
			continue
		}

		options, ok := obj[qKey].(map[string]interface{})
		if !ok {
			dropped = append(dropped, &MalformedOverrideEntry{Question: qKey, Reason: "options must be an object"})
			continue
		}

		opts := make(map[string]BubbleCenter)
		for _, oKey := range sortedKeys(options) {
			opt := strings.ToUpper(oKey)
			x, y, reason := coercePoint(options[oKey])
			if reason != "" {
				dropped = append(dropped, &MalformedOverrideEntry{Question: qKey, Option: oKey, Reason: reason})
				continue
			}
			opts[opt] = BubbleCenter{Question: q, Option: opt, X: x, Y: y}
		}

		if len(opts) == 0 {
			dropped = append(dropped, &MalformedOverrideEntry{Question: qKey, Reason: "no valid options"})
			continue
		}
		result[q] = opts
	}

	return result, dropped, nil
}

// LoadBubbleMapFile reads and decodes an override file, logging every
// dropped entry.
func LoadBubbleMapFile(path string) (BubbleCenterMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bubble map: %w", err)
	}
	m, dropped, err := DecodeBubbleMap(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, d := range dropped {
		log.Printf("%s: %v", path, d)
	}
	return m, nil
}

func coercePoint(v interface{}) (int, int, string) {
	pt, ok := v.([]interface{})
	if !ok || len(pt) != 2 {
		return 0, 0, "point must be a two-element array"
	}
	x, ok := coerceCoord(pt[0])
	if !ok {
		return 0, 0, fmt.Sprintf("x coordinate %v is not a valid pixel coordinate", pt[0])
	}
	y, ok := coerceCoord(pt[1])
	if !ok {
		return 0, 0, fmt.Sprintf("y coordinate %v is not a valid pixel coordinate", pt[1])
	}
	return x, y, ""
}

func coerceCoord(v interface{}) (int, bool) {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = strconv.ParseFloat(t.String(), 64)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
