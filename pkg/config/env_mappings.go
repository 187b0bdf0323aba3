package config

import (
	"reflect"
	"sync"
)

// EnvMapping relates an environment variable to its config path.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

var (
	cachedMappings []EnvMapping
	mappingsOnce   sync.Once
)

// GenerateEnvMappings derives environment variable mappings from the Config
// struct tags, so env names never drift from the struct definition.
func GenerateEnvMappings() []EnvMapping {
	mappingsOnce.Do(func() {
		cfg := &Config{}
		cachedMappings = extractMappings(reflect.TypeOf(cfg).Elem(), "")
	})
	return cachedMappings
}

func extractMappings(t reflect.Type, prefix string) []EnvMapping {
	var mappings []EnvMapping
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		configPath := koanfTag
		if prefix != "" {
			configPath = prefix + "." + koanfTag
		}
		envTag := field.Tag.Get("env")
		if envTag != "" && envTag != "-" {
			mappings = append(mappings, EnvMapping{
				EnvVar:     envTag,
				ConfigPath: configPath,
			})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			mappings = append(mappings, extractMappings(field.Type, configPath)...)
		}
	}
	return mappings
}
