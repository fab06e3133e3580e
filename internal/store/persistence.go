package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"constraint-engine/internal/models"
)

// readConstraints parses the rules file as a JSON array of constraints.
func readConstraints(path string) ([]*models.Constraint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var constraints []*models.Constraint
	if err := json.Unmarshal(data, &constraints); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return constraints, nil
}

// loadConstraints reads the rules file for startup. A missing file is a
// normal first run; unreadable or malformed content is logged and treated
// as empty so a bad file on disk never takes the engine down.
func loadConstraints(path string, logger *zap.Logger) []*models.Constraint {
	constraints, err := readConstraints(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to load rules file, starting empty",
				zap.String("path", path),
				zap.Error(err))
		}
		return nil
	}
	return constraints
}

// persistLocked writes the current rules to disk atomically: marshal to a
// temp file next to the target, then rename over it. Callers must hold the
// write lock.
func (s *ConstraintStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := json.MarshalIndent(s.constraints, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal constraints: %w", err)
	}

	tmp := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp rules file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace rules file: %w", err)
	}
	return nil
}
