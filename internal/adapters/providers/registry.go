// Package providers holds the registry of OAuth provider configurations and its file loaders.
package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field names the way they are spelled in provider files.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Registry maps provider names to their configuration. It is read-mostly and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]oauth.ProviderConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]oauth.ProviderConfig)}
}

// Get returns the configuration registered under name.
func (r *Registry) Get(name string) (oauth.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.providers[name]
	return cfg, ok
}

// Set validates cfg and registers it under name, replacing any previous entry.
func (r *Registry) Set(name string, cfg oauth.ProviderConfig) error {
	if err := Validate(name, cfg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = cfg
	return nil
}

// SetAll validates every entry before registering any of them.
func (r *Registry) SetAll(cfgs map[string]oauth.ProviderConfig) error {
	for name, cfg := range cfgs {
		if err := Validate(name, cfg); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, cfg := range cfgs {
		r.providers[name] = cfg
	}
	return nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many providers are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Validate checks that a provider configuration is complete.
func Validate(name string, cfg oauth.ProviderConfig) error {
	if strings.TrimSpace(name) == "" {
		return errorsx.ValidationField("provider", "provider name is required")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &errorsx.AppError{
				Code:    errorsx.ErrCodeValidation,
				Message: fmt.Sprintf("provider %q: %s failed %q validation", name, fe.Field(), fe.Tag()),
				Field:   fe.Field(),
				Cause:   err,
			}
		}
		return errorsx.Wrapf(err, errorsx.ErrCodeValidation, "provider %q", name)
	}
	if cfg.TokenPath != "" {
		if _, err := jmespath.Compile(cfg.TokenPath); err != nil {
			return &errorsx.AppError{
				Code:    errorsx.ErrCodeValidation,
				Message: fmt.Sprintf("provider %q: tokenPath is not a valid JMESPath expression", name),
				Field:   "tokenPath",
				Cause:   err,
			}
		}
	}
	return nil
}

// ParseJSON decodes a JSON object of provider name to configuration.
func ParseJSON(data []byte) (map[string]oauth.ProviderConfig, error) {
	var cfgs map[string]oauth.ProviderConfig
	if err := json.Unmarshal(data, &cfgs); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ErrCodeValidation, "decode providers json")
	}
	return cfgs, nil
}

// ParseYAML decodes a YAML mapping of provider name to configuration.
func ParseYAML(data []byte) (map[string]oauth.ProviderConfig, error) {
	var cfgs map[string]oauth.ProviderConfig
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ErrCodeValidation, "decode providers yaml")
	}
	return cfgs, nil
}

// LoadFile reads provider configurations from a .json, .yaml or .yml file.
// ${VAR} references are expanded from the environment so secrets can stay out of the file.
func LoadFile(path string) (map[string]oauth.ProviderConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	expanded := expandEnvRefs(content)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSON(expanded)
	case ".yaml", ".yml":
		return ParseYAML(expanded)
	default:
		return nil, errorsx.ValidationField("path", fmt.Sprintf("unsupported providers file extension %q", ext))
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvRefs replaces ${VAR} with the variable's value. A bare $ is left alone so secrets may contain it.
func expandEnvRefs(content []byte) []byte {
	return envRef.ReplaceAllFunc(content, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// NewRegistryFromFile builds a registry from a providers file.
func NewRegistryFromFile(path string) (*Registry, error) {
	cfgs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	if err := r.SetAll(cfgs); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return r, nil
}
