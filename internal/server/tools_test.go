package server

import (
	"encoding/json"
	"testing"
)

func toolsByName(t *testing.T) map[string]Tool {
	t.Helper()
	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}
	return toolMap
}

func TestGetToolDefinitions(t *testing.T) {
	expectedTools := []string{
		"omr_discover_template",
		"omr_detect_candidates",
		"omr_answer_key",
		"omr_student_answers",
		"omr_evaluate",
		"omr_read_strips",
	}

	toolMap := toolsByName(t)
	if len(toolMap) != len(expectedTools) {
		t.Errorf("Tool count: got %d, want %d", len(toolMap), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			// Every required argument must be declared.
			required, _ := tool.InputSchema["required"].([]string)
			for _, name := range required {
				if _, ok := props[name]; !ok {
					t.Errorf("required argument %s has no property", name)
				}
			}

			// Schemas are sent to the client as JSON.
			if _, err := json.Marshal(tool); err != nil {
				t.Errorf("tool does not marshal: %v", err)
			}
		})
	}
}

func TestToolDefinitions_LayoutArguments(t *testing.T) {
	toolMap := toolsByName(t)
	for _, name := range []string{"omr_answer_key", "omr_student_answers", "omr_evaluate"} {
		props := toolMap[name].InputSchema["properties"].(map[string]interface{})
		for _, arg := range []string{"bubble_map_path", "template_path"} {
			if _, ok := props[arg]; !ok {
				t.Errorf("%s: missing %s", name, arg)
			}
		}
	}
}

func TestToolDefinitions_Defaults(t *testing.T) {
	toolMap := toolsByName(t)

	props := toolMap["omr_student_answers"].InputSchema["properties"].(map[string]interface{})
	threshold := props["threshold"].(map[string]interface{})
	if threshold["default"] != 0.25 {
		t.Errorf("threshold default: got %v, want 0.25", threshold["default"])
	}

	props = toolMap["omr_discover_template"].InputSchema["properties"].(map[string]interface{})
	wrapped := props["wrapped"].(map[string]interface{})
	if wrapped["default"] != false {
		t.Errorf("wrapped default: got %v, want false", wrapped["default"])
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New(nil)
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(GetToolDefinitions()))
	}
}
