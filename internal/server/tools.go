package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the schema of an image path argument.
func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// layoutProperties are the optional arguments that select bubble centers.
func layoutProperties() map[string]interface{} {
	return map[string]interface{}{
		"bubble_map_path": pathProperty("Optional bubble-map JSON file ({question: {option: [x, y]}} or {\"bubbleCenters\": ...})"),
		"template_path":   pathProperty("Optional blank template sheet to discover the bubble map from"),
	}
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Template Discovery
		{
			Name:        "omr_discover_template",
			Description: "Discover the bubble layout of a sheet image. Returns the question/option to pixel-center map on the aligned template canvas, ready to reuse for other sheets of the same form.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"wrapped": map[string]interface{}{
						"type":        "boolean",
						"description": "Wrap the map as {\"bubbleCenters\": ...}. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_detect_candidates",
			Description: "List every bubble-shaped dark blob on the aligned sheet with its center, area and circularity. Useful for diagnosing a sheet whose layout cannot be discovered.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
				},
				"required": []string{"path"},
			},
		},

		// Answer Extraction
		{
			Name:        "omr_answer_key",
			Description: "Extract the answer key from an instructor's reference sheet. Questions without a confident mark are left out of the key.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(map[string]interface{}{
					"path": pathProperty("Absolute path to the answer-key sheet"),
				}, layoutProperties()),
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_student_answers",
			Description: "Extract a student's answers. Every question gets an entry; selectedOption is null when no bubble reaches the selection threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(map[string]interface{}{
					"path": pathProperty("Absolute path to the student sheet"),
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Selection threshold in [0,1]. Default 0.25",
						"default":     0.25,
					},
				}, layoutProperties()),
				"required": []string{"path"},
			},
		},

		// Grading
		{
			Name:        "omr_evaluate",
			Description: "Grade a student sheet against an answer-key sheet (+4 correct, -1 wrong, 0 blank by default) with a per-section breakdown.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(map[string]interface{}{
					"answer_key_path": pathProperty("Absolute path to the answer-key sheet"),
					"student_path":    pathProperty("Absolute path to the student sheet"),
					"scoring": map[string]interface{}{
						"type":        "object",
						"description": "Optional marking scheme {marksPerCorrect, marksPerWrong, marksPerUnattempted, sections: [{name, startQuestion, endQuestion}]}",
					},
				}, layoutProperties()),
				"required": []string{"answer_key_path", "student_path"},
			},
		},

		// Column Strips
		{
			Name:        "omr_read_strips",
			Description: "Read a sheet laid out as subject column strips located by an object detector. Each class-0 label box is one strip of 50 four-option questions, numbered left to right.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty("Absolute path to the sheet image"),
					"labels_path": pathProperty("Label file with one 'class cx cy w h' box per line (normalized coordinates)"),
					"labels": map[string]interface{}{
						"type":        "string",
						"description": "Label lines given inline instead of labels_path",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
