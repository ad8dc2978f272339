package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

var envToken = regexp.MustCompile(`\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and decodes a run file. Secrets referenced as {env:NAME} in the
// DSN expand from the environment so credentials stay out of the file.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var p Pipeline
	if err := json.Unmarshal(b, &p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.Storage.DB.DSN = expandEnv(p.Storage.DB.DSN)
	return p, nil
}

func expandEnv(s string) string {
	return envToken.ReplaceAllStringFunc(s, func(m string) string {
		name := envToken.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}
