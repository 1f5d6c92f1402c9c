// Package prompt renders task instructions from versioned templates.
package prompt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"contentforge/internal/domain"
)

// Renderer turns a task plus a flat variable map into a system/user
// instruction pair using the task's active template.
type Renderer struct {
	source domain.TemplateSource
}

// NewRenderer creates a renderer over a template source
func NewRenderer(source domain.TemplateSource) *Renderer {
	return &Renderer{source: source}
}

// Render resolves the active template for a task, validates the variable
// map against the template's spec and substitutes values into both bodies.
// A missing required variable with no default is a ConfigError.
func (r *Renderer) Render(ctx context.Context, task domain.Task, vars map[string]string) (*domain.Instructions, error) {
	tmpl, err := r.source.GetActive(ctx, task)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveVariables(tmpl, vars)
	if err != nil {
		return nil, err
	}

	return &domain.Instructions{
		System:          substitute(tmpl.System, resolved),
		User:            substitute(tmpl.User, resolved),
		TemplateVersion: tmpl.Version,
		MaxTokens:       tmpl.MaxTokens,
		Temperature:     tmpl.Temperature,
		Timeout:         tmpl.Timeout,
	}, nil
}

// resolveVariables applies the template's variable spec to the caller map:
// required/default checks plus sanitization of every value.
func resolveVariables(tmpl *domain.PromptTemplate, vars map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(tmpl.Variables))
	for _, spec := range tmpl.Variables {
		value, ok := vars[spec.Name]
		if !ok || value == "" {
			if spec.Default != "" {
				value = spec.Default
			} else if spec.Required {
				return nil, &domain.ConfigError{
					Subject: fmt.Sprintf("template %s@%s", tmpl.Task, tmpl.Version),
					Detail:  fmt.Sprintf("required variable %q missing with no default", spec.Name),
				}
			}
		}
		resolved[spec.Name] = Sanitize(value)
	}
	return resolved, nil
}

var imagePlaceholderRe = regexp.MustCompile(`\{\{IMAGE_\d+\}\}`)

// Sanitize strips template delimiter sequences from a variable value so
// caller-supplied content cannot inject further substitutions. Image
// placeholders are exempt: they are document data that must survive a
// round trip through the critique step, and no variable is named IMAGE_n.
func Sanitize(value string) string {
	placeholders := imagePlaceholderRe.FindAllString(value, -1)
	value = imagePlaceholderRe.ReplaceAllString(value, "\x00")

	value = strings.ReplaceAll(value, "{{", "")
	value = strings.ReplaceAll(value, "}}", "")

	for _, p := range placeholders {
		value = strings.Replace(value, "\x00", p, 1)
	}
	return strings.TrimSpace(value)
}

// substitute replaces {{name}} markers in a template body
func substitute(body string, vars map[string]string) string {
	for name, value := range vars {
		body = strings.ReplaceAll(body, "{{"+name+"}}", value)
	}
	return strings.TrimSpace(body)
}
