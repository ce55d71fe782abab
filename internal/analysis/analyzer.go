// Package analysis is the caller-side boundary to an external text-analysis
// collaborator.
//
// The collaborator receives a prepared text span and answers with an
// unstructured blob expected to embed a JSON cues array. Nothing here reads
// or mutates corpus state; failures surface as *errors.AnalysisError.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Request is one span handed to the analyzer. Retrying an identical
// Request is harmless.
type Request struct {
	ID        string `json:"request_id"`
	Text      string `json:"text"`
	Reference string `json:"reference,omitempty"`
}

// Analyzer returns the raw analysis of a request.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req Request) (string, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// envelope is written to the command's stdin.
type envelope struct {
	Request
	ResponseSchema json.RawMessage `json:"response_schema,omitempty"`
}

// CommandAnalyzer runs an external command per request. The command reads
// a JSON envelope {request_id, text, reference, response_schema} on stdin
// and writes its analysis to stdout.
type CommandAnalyzer struct {
	Argv []string
	Env  []string // nil inherits the parent environment
	Dir  string
}

// NewCommandAnalyzer returns an analyzer for argv.
func NewCommandAnalyzer(argv ...string) *CommandAnalyzer {
	return &CommandAnalyzer{Argv: argv}
}

// Analyze implements Analyzer. Cancelling ctx kills the process.
func (a *CommandAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	if len(a.Argv) == 0 {
		return "", fmt.Errorf("analyzer command is not configured")
	}

	schema, err := ResponseSchema()
	if err != nil {
		return "", fmt.Errorf("failed to build response schema: %w", err)
	}
	input, err := json.Marshal(envelope{Request: req, ResponseSchema: schema})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Argv[0], a.Argv[1:]...)
	cmd.Dir = a.Dir
	cmd.Env = a.Env
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", a.Argv[0], err, msg)
		}
		return "", fmt.Errorf("%s: %w", a.Argv[0], err)
	}
	return stdout.String(), nil
}
