package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/tui"
)

// Validator provides methods for validating CLI inputs
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateDirectory checks if a directory path is valid
func (v *Validator) ValidateDirectory(path string) error {
	if path == "" {
		return fmt.Errorf("directory path cannot be empty")
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}

	if !stat.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// ValidateFile checks if a file path is valid and exists
func (v *Validator) ValidateFile(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	if stat.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	return nil
}

// ResolvePath resolves a path to an absolute path, expanding a leading ~/.
func (v *Validator) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}

	if path == "." {
		return os.Getwd()
	}

	if filepath.IsAbs(path) {
		return path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return filepath.Join(cwd, path), nil
}

// ValidateTasks checks every task name against the tasks the service knows.
func (v *Validator) ValidateTasks(tasks []string) error {
	for _, t := range tasks {
		known := false
		for _, k := range models.AllTasks {
			if strings.EqualFold(t, k) {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown task %q (valid: %s)", t, strings.Join(models.AllTasks, ", "))
		}
	}
	return nil
}

// ValidateTheme accepts the two display themes.
func (v *Validator) ValidateTheme(theme string) error {
	if theme != tui.ThemeDark && theme != tui.ThemeLight {
		return fmt.Errorf("theme must be %q or %q, got %q", tui.ThemeDark, tui.ThemeLight, theme)
	}
	return nil
}
