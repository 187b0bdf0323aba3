package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlProvider implements Source for YAML files.
type yamlProvider struct {
	path string
}

// NewYAMLProvider creates a YAML file configuration source. A missing file is
// not an error, so a config file stays optional.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// filterNilValues drops nil entries so an empty YAML key cannot override an
// existing value.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}
