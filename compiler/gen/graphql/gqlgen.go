package graphql

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/adlschema/compiler/gen/naming"
)

// GQLGenConfig is the subset of gqlgen.yml the target maintains.
type GQLGenConfig struct {
	SchemaFilename StringList              `yaml:"schema,omitempty"`
	Exec           PackageConfig           `yaml:"exec,omitempty"`
	Model          PackageConfig           `yaml:"model,omitempty"`
	Autobind       []string                `yaml:"autobind,omitempty"`
	Models         map[string]TypeMapEntry `yaml:"models,omitempty"`
}

// PackageConfig names a generated Go file and its package.
type PackageConfig struct {
	Filename string `yaml:"filename,omitempty"`
	Package  string `yaml:"package,omitempty"`
}

// TypeMapEntry binds a GraphQL type to Go models.
type TypeMapEntry struct {
	Model StringList `yaml:"model,omitempty"`
}

// StringList is a YAML string or list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// LoadGQLGenConfig reads a gqlgen.yml file. A missing file yields an empty
// config.
func LoadGQLGenConfig(path string) (*GQLGenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GQLGenConfig{Models: make(map[string]TypeMapEntry)}, nil
		}
		return nil, fmt.Errorf("read gqlgen config: %w", err)
	}
	return ParseGQLGenConfig(data)
}

// ParseGQLGenConfig decodes gqlgen.yml content.
func ParseGQLGenConfig(data []byte) (*GQLGenConfig, error) {
	var cfg GQLGenConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse gqlgen config: %w", err)
	}
	if cfg.Models == nil {
		cfg.Models = make(map[string]TypeMapEntry)
	}
	return &cfg, nil
}

// Marshal encodes the config as YAML.
func (c *GQLGenConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal gqlgen config: %w", err)
	}
	return data, nil
}

// AddSchemaPath adds a schema path if not already present.
func (c *GQLGenConfig) AddSchemaPath(path string) {
	if !slices.Contains(c.SchemaFilename, path) {
		c.SchemaFilename = append(c.SchemaFilename, path)
	}
}

// SetModel binds a GraphQL type to a Go model.
func (c *GQLGenConfig) SetModel(typeName, model string) {
	entry := c.Models[typeName]
	if !slices.Contains(entry.Model, model) {
		entry.Model = append(entry.Model, model)
	}
	c.Models[typeName] = entry
}

// StringMapModel is the gqlgen model of the StringMap scalar.
const StringMapModel = "github.com/99designs/gqlgen/graphql.Map"

// Bind registers the schema file and binds each named type to a Go type of
// modelPackage named by naming.GoName. Bindings already present are kept.
func (c *GQLGenConfig) Bind(schemaFile, modelPackage string, names []string) {
	c.AddSchemaPath(schemaFile)
	for _, name := range names {
		if name == StringMapScalar {
			c.SetModel(name, StringMapModel)
			continue
		}
		if _, ok := c.Models[name]; ok {
			continue
		}
		c.SetModel(name, modelPackage+"."+naming.GoName(name))
	}
}
