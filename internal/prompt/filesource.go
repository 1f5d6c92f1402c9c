package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"contentforge/internal/domain"

	"github.com/BurntSushi/toml"
)

// FileSource loads prompt templates from TOML files, one file per task
// (<dir>/<task>.toml). The active version is whatever the file declares.
type FileSource struct {
	dir string
}

// NewFileSource creates a file-backed template source
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// fileTemplate mirrors domain.PromptTemplate with a plain-seconds timeout
// field, since template authors write numbers, not Go durations.
type fileTemplate struct {
	Version     string                `toml:"version"`
	System      string                `toml:"system"`
	User        string                `toml:"user"`
	Variables   []domain.VariableSpec `toml:"variables"`
	MaxTokens   int32                 `toml:"max_tokens"`
	Temperature float32               `toml:"temperature"`
	TimeoutSec  int                   `toml:"timeout_sec"`
}

// GetActive loads the template for a task from disk
func (s *FileSource) GetActive(ctx context.Context, task domain.Task) (*domain.PromptTemplate, error) {
	path := filepath.Join(s.dir, string(task)+".toml")

	var ft fileTemplate
	if _, err := toml.DecodeFile(path, &ft); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w %q: expected file at %s", domain.ErrNoTemplate, task, path)
		}
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}

	if ft.User == "" {
		return nil, &domain.ConfigError{
			Subject: "template " + string(task),
			Detail:  "user instruction body is empty",
		}
	}

	return &domain.PromptTemplate{
		Task:        task,
		Version:     ft.Version,
		System:      ft.System,
		User:        ft.User,
		Variables:   ft.Variables,
		MaxTokens:   ft.MaxTokens,
		Temperature: ft.Temperature,
		Timeout:     time.Duration(ft.TimeoutSec) * time.Second,
	}, nil
}
