// Package server implements the MCP (Model Context Protocol) server for
// reading bubble sheets.
//
// This package provides a JSON-RPC 2.0 server that exposes the OMR pipeline
// through the MCP protocol, so an assistant can discover a form's layout,
// extract answer keys and student answers, and grade sheets.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// When the configured classifier model could not be loaded, the server
// sends a notifications/message warning after the client's
// notifications/initialized and continues with the heuristic scorer.
//
// # Available Tools
//
// Template Discovery:
//   - omr_discover_template: Infer the question/option center map
//   - omr_detect_candidates: List bubble-shaped blobs for diagnosis
//
// Answer Extraction:
//   - omr_answer_key: Read an instructor's key sheet
//   - omr_student_answers: Read a student's sheet
//
// Grading:
//   - omr_evaluate: Grade a student sheet against a key sheet
//
// Column Strips:
//   - omr_read_strips: Read detector-located subject strips
//
// # Image Caching
//
// Sheets are decoded once and cached by path for the lifetime of the server
// process, so a template reused across many calls is read from disk once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string, e.g. an image decode or grid discovery failure
//
// # Usage
//
//	srv := server.New(pipeline.New(pipeline.DefaultConfig()))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
