package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameScan         = "deadwood_scan"
	ToolNameCleanPreview = "deadwood_clean_preview"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyProjectPath indicates the project_path parameter is empty.
	ErrEmptyProjectPath = errors.New("project_path parameter is required and must not be empty")
	// ErrProjectPathNotAbsolute indicates the project_path is not an absolute path.
	ErrProjectPathNotAbsolute = errors.New("project_path must be an absolute path")
	// ErrProjectNotFound indicates the project path does not exist.
	ErrProjectNotFound = errors.New("project path does not exist")
)

// Input types (auto-generate JSON schemas via struct tags).

// ScanInput is the input schema for the deadwood_scan tool.
type ScanInput struct {
	EntryPoints []string `json:"entry_points,omitempty" jsonschema:"optional project-relative paths never reported as unused"`
	ProjectPath string   `json:"project_path"           jsonschema:"absolute path to a JavaScript or TypeScript project"`
}

// CleanPreviewInput is the input schema for the deadwood_clean_preview tool.
type CleanPreviewInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to a JavaScript or TypeScript project"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateProjectPath checks common project path constraints.
func validateProjectPath(path string) error {
	if path == "" {
		return ErrEmptyProjectPath
	}

	if !filepath.IsAbs(path) {
		return ErrProjectPathNotAbsolute
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, path)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrProjectNotFound, path)
	}

	return nil
}
