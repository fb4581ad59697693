// Package structure turns extracted page text into a structured candidate
// via the AI completion collaborator.
package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Engine builds the extraction prompt, invokes the completer and parses the
// JSON block out of the model response.
type Engine struct {
	completer pipeline.Completer
	logger    *zap.Logger
}

// New creates an Engine.
func New(completer pipeline.Completer, logger *zap.Logger) *Engine {
	return &Engine{completer: completer, logger: logger}
}

// Structure invokes the model with the fixed-schema prompt and parses the
// first balanced JSON object in the response. Completion failures are
// returned as-is; unparseable responses become *pipeline.ParseError.
func (e *Engine) Structure(ctx context.Context, title, rawText, sourceURL string) (pipeline.Structured, error) {
	return e.StructureWithInstructions(ctx, title, rawText, sourceURL, "")
}

// StructureWithInstructions is Structure with campaign-specific extraction
// instructions appended to the prompt.
func (e *Engine) StructureWithInstructions(ctx context.Context, title, rawText, sourceURL, instructions string) (pipeline.Structured, error) {
	start := time.Now()

	raw, err := e.completer.Complete(ctx, buildPrompt(title, rawText, sourceURL, instructions))
	if err != nil {
		return pipeline.Structured{}, fmt.Errorf("completion: %w", err)
	}

	block, ok := firstJSONObject(raw)
	if !ok {
		return pipeline.Structured{}, &pipeline.ParseError{Reason: "no balanced JSON object in model response"}
	}

	var candidate pipeline.Candidate
	if err := json.Unmarshal([]byte(block), &candidate); err != nil {
		return pipeline.Structured{}, &pipeline.ParseError{Reason: "invalid JSON object: " + err.Error()}
	}

	elapsed := time.Since(start)
	e.logger.Debug("structured candidate",
		zap.String("source_url", sourceURL),
		zap.String("title", candidate.Title),
		zap.Duration("duration", elapsed),
	)
	return pipeline.Structured{
		Candidate:        candidate,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}

// firstJSONObject scans for the first balanced {...} block, tracking string
// literals and escapes so braces inside values do not break the balance.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
