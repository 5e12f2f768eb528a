package server

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ironsheep/omr-reader/internal/answers"
	"github.com/ironsheep/omr-reader/internal/detection"
	"github.com/ironsheep/omr-reader/internal/imaging"
	"github.com/ironsheep/omr-reader/internal/omr"
	"github.com/ironsheep/omr-reader/internal/scoring"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_answer_key").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Loads and aligns sheet images through the cache
//  3. Resolves the bubble layout from a map file, a template or the sheet itself
//  4. Runs the pipeline stage and returns its result
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Template Discovery
	case "omr_discover_template":
		return s.handleDiscoverTemplate(args)
	case "omr_detect_candidates":
		return s.handleDetectCandidates(args)

	// Answer Extraction
	case "omr_answer_key":
		return s.handleAnswerKey(args)
	case "omr_student_answers":
		return s.handleStudentAnswers(args)

	// Grading
	case "omr_evaluate":
		return s.handleEvaluate(args)

	// Column Strips
	case "omr_read_strips":
		return s.handleReadStrips(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// aligned loads path through the cache and maps it onto the template canvas.
func (s *Server) aligned(path string) (*imaging.AlignedImage, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Align(img), nil
}

// layoutArgs select where bubble centers come from. With neither set the
// sheet being read discovers its own layout.
type layoutArgs struct {
	BubbleMapPath string `json:"bubble_map_path"`
	TemplatePath  string `json:"template_path"`
}

func (s *Server) resolveCenters(l layoutArgs) (omr.BubbleCenterMap, error) {
	switch {
	case l.BubbleMapPath != "":
		return omr.LoadBubbleMapFile(l.BubbleMapPath)
	case l.TemplatePath != "":
		a, err := s.aligned(l.TemplatePath)
		if err != nil {
			return nil, err
		}
		d, err := s.pipeline.Discover(a)
		if err != nil {
			return nil, err
		}
		return d.Centers, nil
	default:
		return nil, nil
	}
}

// === Template Discovery Handlers ===

type discoverTemplateArgs struct {
	Path    string `json:"path"`
	Wrapped bool   `json:"wrapped"`
}

func (s *Server) handleDiscoverTemplate(args json.RawMessage) (interface{}, error) {
	var a discoverTemplateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.aligned(a.Path)
	if err != nil {
		return nil, err
	}
	d, err := s.pipeline.Discover(img)
	if err != nil {
		return nil, err
	}
	if a.Wrapped {
		return map[string]interface{}{"bubbleCenters": d.Centers}, nil
	}
	return d.Centers, nil
}

type detectCandidatesArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleDetectCandidates(args json.RawMessage) (interface{}, error) {
	var a detectCandidatesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.aligned(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.DetectCandidates(img), nil
}

// === Answer Extraction Handlers ===

type answerKeyArgs struct {
	Path string `json:"path"`
	layoutArgs
}

func (s *Server) handleAnswerKey(args json.RawMessage) (interface{}, error) {
	var a answerKeyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	centers, err := s.resolveCenters(a.layoutArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.aligned(a.Path)
	if err != nil {
		return nil, err
	}
	return s.pipeline.AnswerKeyFrom(img, centers)
}

type studentAnswersArgs struct {
	Path      string   `json:"path"`
	Threshold *float64 `json:"threshold"`
	layoutArgs
}

func (s *Server) handleStudentAnswers(args json.RawMessage) (interface{}, error) {
	var a studentAnswersArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	centers, err := s.resolveCenters(a.layoutArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.aligned(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Threshold == nil {
		return s.pipeline.StudentAnswersFrom(img, centers)
	}
	if *a.Threshold < 0 || *a.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0, 1], got %g", *a.Threshold)
	}
	results, err := s.pipeline.Classify(img, centers)
	if err != nil {
		return nil, err
	}
	return answers.BuildStudentAnswers(results, *a.Threshold), nil
}

// === Grading Handlers ===

type evaluateArgs struct {
	AnswerKeyPath string          `json:"answer_key_path"`
	StudentPath   string          `json:"student_path"`
	Scoring       json.RawMessage `json:"scoring"`
	layoutArgs
}

func (s *Server) handleEvaluate(args json.RawMessage) (interface{}, error) {
	var a evaluateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	cfg := scoring.DefaultConfig()
	if len(a.Scoring) > 0 && string(a.Scoring) != "null" {
		if err := json.Unmarshal(a.Scoring, &cfg); err != nil {
			return nil, fmt.Errorf("invalid scoring: %w", err)
		}
	}

	centers, err := s.resolveCenters(a.layoutArgs)
	if err != nil {
		return nil, err
	}
	keyImg, err := s.aligned(a.AnswerKeyPath)
	if err != nil {
		return nil, err
	}
	// The key sheet fixes the layout for the student sheet when none was given.
	if centers == nil {
		d, err := s.pipeline.Discover(keyImg)
		if err != nil {
			return nil, err
		}
		centers = d.Centers
	}
	key, err := s.pipeline.AnswerKeyFrom(keyImg, centers)
	if err != nil {
		return nil, err
	}

	studentImg, err := s.aligned(a.StudentPath)
	if err != nil {
		return nil, err
	}
	student, err := s.pipeline.StudentAnswersFrom(studentImg, centers)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"answerKey":      key,
		"studentAnswers": student,
		"evaluation":     scoring.Evaluate(key, student, cfg),
	}, nil
}

// === Column Strip Handlers ===

type readStripsArgs struct {
	Path       string `json:"path"`
	LabelsPath string `json:"labels_path"`
	Labels     string `json:"labels"`
}

func (s *Server) handleReadStrips(args json.RawMessage) (interface{}, error) {
	var a readStripsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	labels := a.Labels
	if a.LabelsPath != "" {
		data, err := os.ReadFile(a.LabelsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read labels: %w", err)
		}
		labels = string(data)
	}
	boxes, err := detection.ParseLabels(strings.NewReader(labels))
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no label boxes given")
	}

	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.ReadStrips(img, boxes, detection.DefaultStripConfig()), nil
}
