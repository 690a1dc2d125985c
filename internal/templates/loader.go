package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"
)

// LoadOverrides merges YAML rule-set files from dir into the registry.
// Each file defines one rule set; the file's `key` decides whether it
// overrides a built-in or registers a new template. A missing directory is
// not an error.
func (r *Registry) LoadOverrides(dir string, logger arbor.ILogger) error {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read templates directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", path, err)
		}

		var rs RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", path, err)
		}
		if rs.Key == "" {
			return fmt.Errorf("template file %s is missing a key", path)
		}
		if len(rs.WriterFormat) == 0 {
			return fmt.Errorf("template %s has no writer_format headers", rs.Key)
		}

		r.rules[rs.Key] = &rs
		logger.Debug().
			Str("template", rs.Key).
			Str("file", entry.Name()).
			Int("headers", len(rs.WriterFormat)).
			Msg("Template rule set loaded")
	}

	return nil
}
