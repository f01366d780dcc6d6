package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Write persists values (dotted keys, e.g. "server.port") to path. The file
// format follows the extension. Only the given keys are written; everything
// else keeps falling back to defaults on the next Load.
func Write(path string, values map[string]any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	v := viper.New()
	for key, val := range values {
		v.Set(key, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
