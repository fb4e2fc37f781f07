package prisma

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
)

// Annotation keys read by the target.
var (
	PrismaBlocks = adlast.NewScopedName("common.prisma", "PrismaBlocks")
	FieldComment = adlast.NewScopedName("common.prisma", "FieldComment")
)

var validate = validator.New()

// Blocks is the module-level common.prisma.PrismaBlocks annotation.
type Blocks struct {
	DatasourceBlockName *string    `json:"datasource_block_name"`
	Datasource          Datasource `json:"datasource"`
	Generators          Generators `json:"generators" validate:"dive"`
}

// Datasource is the datasource block of the schema.
type Datasource struct {
	Provider          string   `json:"provider" validate:"required,oneof=postgresql mysql sqlite sqlserver mongodb cockroachdb"`
	URL               URL      `json:"url"`
	ShadowDatabaseURL *string  `json:"shadowDatabaseUrl"`
	DirectURL         *string  `json:"directUrl"`
	RelationMode      *string  `json:"relationMode" validate:"omitempty,oneof=foreignKeys prisma"`
	Extensions        []string `json:"extensions"`
}

// URL is either an environment variable name or a literal connection string.
type URL struct {
	Env     string `json:"env" validate:"required_without=Literal,excluded_with=Literal"`
	Literal string `json:"literal" validate:"required_without=Env"`
}

func (u URL) String() string {
	if u.Env != "" {
		return fmt.Sprintf("env(%q)", u.Env)
	}
	return fmt.Sprintf("%q", u.Literal)
}

// Generator is a generator block.
type Generator struct {
	Name            string   `json:"-"`
	Provider        string   `json:"provider" validate:"required"`
	Output          *string  `json:"output"`
	PreviewFeatures []string `json:"previewFeatures"`
	EngineType      *string  `json:"engineType" validate:"omitempty,oneof=library binary"`
	BinaryTargets   []string `json:"binaryTargets"`
}

// Generators keeps generator blocks in annotation order.
type Generators []Generator

// UnmarshalJSON decodes a JSON object, keeping the order of its keys.
func (gs *Generators) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*gs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("prisma: generators must be an object, got %v", tok)
	}
	var out Generators
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var g Generator
		if err := dec.Decode(&g); err != nil {
			return fmt.Errorf("prisma: generator %v: %w", tok, err)
		}
		g.Name = tok.(string)
		out = append(out, g)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*gs = out
	return nil
}

// DecodeBlocks decodes and validates a PrismaBlocks annotation value.
func DecodeBlocks(ma adlast.ModuleAnnotation) (*Blocks, error) {
	var b Blocks
	if err := json.Unmarshal(ma.Value, &b); err != nil {
		return nil, blocksError(ma.Module, "cannot decode annotation", err)
	}
	if err := validate.Struct(&b); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, blocksError(ma.Module, "", err)
		}
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fieldMessage(fe)
		}
		return nil, blocksError(ma.Module, strings.Join(msgs, "; "), nil)
	}
	return &b, nil
}

func blocksError(module, msg string, cause error) error {
	if msg == "" {
		msg = "in module " + module
	} else {
		msg = "in module " + module + ": " + msg
	}
	return gen.NewSchemaError(PrismaBlocks, "", msg, cause)
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Blocks.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", field, fe.Param())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be set together with %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
