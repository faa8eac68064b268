package agents

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultSetKey names the built-in set used when no other is selected.
const DefaultSetKey = "studyCoach"

//go:embed default.yaml
var defaultConfig []byte

// Registry holds named agent sets.
type Registry struct {
	defaultKey string
	sets       map[string]Set
}

type registryFile struct {
	Default string `yaml:"default"`
	Sets    map[string]struct {
		Agents []Agent `yaml:"agents"`
	} `yaml:"sets"`
}

// Load reads a registry from a YAML file. ${VAR} references are expanded
// from the environment before parsing.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parsing agent config: %w", err)
	}

	registry := &Registry{defaultKey: file.Default, sets: map[string]Set{}}
	for key, set := range file.Sets {
		registry.sets[key] = Set{Key: key, Agents: set.Agents}
	}

	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("validating agent config: %w", err)
	}
	return registry, nil
}

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() *Registry {
	registry, err := Parse(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("built-in agent config is invalid: %v", err))
	}
	return registry
}

func (r *Registry) Validate() error {
	if len(r.sets) == 0 {
		return fmt.Errorf("at least one agent set is required")
	}
	if r.defaultKey == "" {
		if len(r.sets) != 1 {
			return fmt.Errorf("default is required when more than one set is configured")
		}
		for key := range r.sets {
			r.defaultKey = key
		}
	}
	if _, ok := r.sets[r.defaultKey]; !ok {
		return fmt.Errorf("default set %q is not configured", r.defaultKey)
	}
	for _, key := range r.Keys() {
		if err := r.sets[key].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Set(key string) (Set, bool) {
	set, ok := r.sets[key]
	return set, ok
}

func (r *Registry) Default() Set { return r.sets[r.defaultKey] }

func (r *Registry) DefaultKey() string { return r.defaultKey }

// Keys returns the configured set keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.sets))
	for key := range r.sets {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or an empty
// string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
