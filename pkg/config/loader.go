package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// loader implements the Service interface.
type loader struct {
	koanf      *koanf.Koanf
	validator  *validator.Validate
	metadata   Metadata
	metadataMu sync.RWMutex
}

// sensitiveStringDecodeHook converts plain strings into SensitiveString.
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

// NewService creates a new configuration service with validation support.
func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		metadata: Metadata{
			Sources: make(map[string]SourceType),
		},
	}
}

func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.reset()
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if err := l.loadSources(sources); err != nil {
		return nil, err
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

func (l *loader) reset() {
	l.koanf.Cut("")
	l.metadataMu.Lock()
	l.metadata.Sources = make(map[string]SourceType)
	l.metadata.LoadedAt = time.Now()
	l.metadataMu.Unlock()
}

func (l *loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, key := range l.koanf.Keys() {
		l.trackSource(key, SourceDefault)
	}
	return nil
}

func (l *loader) loadSources(sources []Source) error {
	for _, source := range sources {
		if source == nil || source.Type() == SourceEnv {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	// Merge key by key so sparse sources never clobber existing values.
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
		l.trackSource(key, source.Type())
	}
	return nil
}

// transformEnvKey converts an env name to a koanf path, for variables without
// an explicit struct-tag mapping. WORKER_MAX_RESTARTS -> worker.max_restarts.
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *loader) loadEnvironment() error {
	envToPath := make(map[string]string)
	for _, mapping := range GenerateEnvMappings() {
		envToPath[mapping.EnvVar] = mapping.ConfigPath
	}
	keysBefore := make(map[string]any)
	for _, key := range l.koanf.Keys() {
		keysBefore[key] = l.koanf.Get(key)
	}
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			if configPath, exists := envToPath[key]; exists {
				return configPath, value
			}
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	for _, key := range l.koanf.Keys() {
		valBefore, existed := keysBefore[key]
		// DeepEqual, not ==: values may be maps or slices.
		if !existed || !reflect.DeepEqual(valBefore, l.koanf.Get(key)) {
			l.trackSource(key, SourceEnv)
		}
	}
	return nil
}

func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
		} else {
			result[key] = v
		}
	}
	return result
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

func (l *loader) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCustom(config)
}

func (l *loader) GetSource(key string) SourceType {
	l.metadataMu.RLock()
	defer l.metadataMu.RUnlock()
	if source, ok := l.metadata.Sources[key]; ok {
		return source
	}
	return SourceDefault
}

func (l *loader) trackSource(key string, source SourceType) {
	l.metadataMu.Lock()
	defer l.metadataMu.Unlock()
	l.metadata.Sources[key] = source
}

// validateCustom covers constraints struct tags cannot express.
func validateCustom(config *Config) error {
	if config.Temporal.HostPort == "" {
		return fmt.Errorf("temporal host_port is required")
	}
	seen := make(map[string]struct{}, len(config.Worker.Definitions))
	for _, def := range config.Worker.Definitions {
		if _, dup := seen[def.TaskQueue]; dup {
			return fmt.Errorf("duplicate worker task queue: %s", def.TaskQueue)
		}
		seen[def.TaskQueue] = struct{}{}
	}
	if config.Discovery.WaitInterval < 0 {
		return fmt.Errorf("discovery wait_interval cannot be negative")
	}
	return nil
}
