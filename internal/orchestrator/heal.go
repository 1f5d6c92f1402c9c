package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"contentforge/internal/domain"

	"github.com/xeipuuv/gojsonschema"
)

// healing stage labels for telemetry
const (
	healStageDirect = "direct"
	healStageRepair = "repair"
	healStageModel  = "model"
)

// parseStructured attempts a direct parse of model output as a JSON object
// or array. Array results are wrapped under a single "items" key so every
// structured result is uniformly a map.
func parseStructured(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, nil
	}

	var arr []any
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return map[string]any{"items": arr}, nil
	}

	return nil, fmt.Errorf("output is not a JSON object or array")
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON applies the deterministic repair pass: strip markdown code
// fences, delete trailing commas before closing brackets, and append
// missing closing brackets/braces to balance counts.
func repairJSON(text string) string {
	repaired := strings.TrimSpace(text)

	if m := codeFenceRe.FindStringSubmatch(repaired); len(m) == 2 {
		repaired = m[1]
	}

	repaired = trailingCommaRe.ReplaceAllString(repaired, "$1")

	repaired += closersFor(repaired)

	return repaired
}

// closersFor returns the closing brackets needed to balance the input,
// in innermost-first order. String contents are skipped so braces inside
// values do not count.
func closersFor(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var closers strings.Builder
	if inString {
		closers.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closers.WriteByte('}')
		} else {
			closers.WriteByte(']')
		}
	}
	return closers.String()
}

// validateAgainstSchema checks a parsed result against the caller's JSON
// schema. A result that parses but violates the schema is treated the same
// as a parse failure, so the next healing stage gets a chance at it.
func validateAgainstSchema(parsed map[string]any, schema []byte) error {
	if len(schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(parsed),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(issues, "; "))
	}
	return nil
}

// healerPrompt is the fixed instruction for the model-repair stage
const healerPrompt = "The following text was supposed to be valid JSON but is malformed. " +
	"Return only the corrected, valid JSON with no commentary, no markdown and no code fences.\n\n"

// healWithModel sends malformed output to the fixed low-cost healer model
// and parses its answer. Attempted once per call; there is no fourth stage.
func (s *Service) healWithModel(ctx context.Context, raw string, schema []byte) (map[string]any, error) {
	resp, err := s.client.ChatComplete(ctx, &domain.ChatRequest{
		Model:        s.healerModel,
		Prompt:       healerPrompt + raw,
		BudgetRouted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("healer call: %w", err)
	}

	parsed, err := parseStructured(repairJSON(resp.Text))
	if err != nil {
		return nil, fmt.Errorf("healer output unparseable: %w", err)
	}
	if err := validateAgainstSchema(parsed, schema); err != nil {
		return nil, err
	}
	return parsed, nil
}
