// Filesystem Tools - Read, Write, List operations.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path validation and security checks hidden
// - Error handling for file operations abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileTool reads file contents.
type ReadFileTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool(maxSizeBytes int64) *ReadFileTool {
	return &ReadFileTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *ReadFileTool) WithAllowedPaths(paths []string) *ReadFileTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read the contents of a file from the filesystem",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to read", Required: true},
		},
	}
}

type readFileArgs struct {
	Path string `json:"path"`
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if !pathAllowed(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	// Check file exists
	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		return FailureResultf("file does not exist: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file metadata: %w", err)), nil
	}

	// Check file size
	if info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes), nil
	}

	// Read file
	content, err := os.ReadFile(a.Path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}

	return SuccessResult(string(content)), nil
}

// WriteFileTool writes content to a file.
type WriteFileTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewWriteFileTool creates a new write file tool.
func NewWriteFileTool(maxSizeBytes int64) *WriteFileTool {
	return &WriteFileTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *WriteFileTool) WithAllowedPaths(paths []string) *WriteFileTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write_file",
		Description: "Write content to a file on the filesystem",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to write", Required: true},
			{Name: "content", ParamType: "string", Description: "Content to write", Required: true},
		},
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate validates the arguments.
func (t *WriteFileTool) Validate(args json.RawMessage) error {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute writes to the file.
func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if int64(len(a.Content)) > t.maxSizeBytes {
		return FailureResultf("content too large: %d bytes (max: %d bytes)", len(a.Content), t.maxSizeBytes), nil
	}

	if !pathAllowedForWrite(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	// Create parent directory if needed
	dir := parentDir(a.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return FailureResult(fmt.Errorf("failed to create directory: %w", err)), nil
	}

	// Write file
	if err := os.WriteFile(a.Path, []byte(a.Content), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Successfully wrote %d bytes to %s", len(a.Content), a.Path)), nil
}

// parentDir returns the parent directory of a path.
func parentDir(path string) string {
	// Find last separator
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}

// ListDirTool lists directory entries, optionally filtered by a glob pattern.
type ListDirTool struct {
	BaseTool
	allowedPaths []string
}

// NewListDirTool creates a new directory listing tool.
func NewListDirTool() *ListDirTool {
	return &ListDirTool{}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *ListDirTool) WithAllowedPaths(paths []string) *ListDirTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *ListDirTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_dir",
		Description: "List the entries of a directory. Directories are suffixed with '/'.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the directory to list", Required: true},
			{Name: "pattern", ParamType: "string", Description: "Optional glob pattern to filter entry names (e.g. *.md)", Required: false},
		},
	}
}

type listDirArgs struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

// Validate validates the arguments.
func (t *ListDirTool) Validate(args json.RawMessage) error {
	var a listDirArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if a.Pattern != "" {
		if _, err := filepath.Match(a.Pattern, ""); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	return nil
}

// Execute lists the directory.
func (t *ListDirTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a listDirArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if !pathAllowed(a.Path, t.allowedPaths) {
		return FailureResultf("access to path '%s' is not allowed", a.Path), nil
	}

	entries, err := os.ReadDir(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return FailureResultf("directory does not exist: %s", a.Path), nil
		}
		return FailureResult(fmt.Errorf("failed to list directory: %w", err)), nil
	}

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if a.Pattern != "" {
			matched, err := filepath.Match(a.Pattern, name)
			if err != nil {
				return FailureResult(fmt.Errorf("invalid pattern: %w", err)), nil
			}
			if !matched {
				continue
			}
		}
		if entry.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}

	if len(lines) == 0 {
		return SuccessResult("(empty)"), nil
	}
	return SuccessResult(strings.Join(lines, "\n")), nil
}
