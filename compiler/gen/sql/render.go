package sql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/compiler/gen/naming"
)

// Funcs are available to user templates.
var Funcs = template.FuncMap{
	"snake":  naming.Snake,
	"pascal": naming.Pascal,
	"camel":  naming.Camel,
	"plural": naming.Plural,
	"quote":  naming.QuoteReserved,
	"join":   join,
	"title":  title,
	"upper":  strings.ToUpper,
}

// join concatenates the elements of a list with sep. Annotation values
// decode to []any, so elements are formatted with fmt.Sprint. A value that
// is not a list is formatted as is.
func join(v any, sep string) string {
	switch list := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(list, sep)
	case []any:
		parts := make([]string, len(list))
		for i, e := range list {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(v)
	}
}

// title upper-cases the first letter of each word. Casers hold state, so
// each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// TemplateData is the value user templates execute on. Each table is a map
// holding "tablename" and one entry per declaration annotation, keyed by
// the unqualified annotation name.
func TemplateData(s *db.Schema) map[string]any {
	tables := make([]map[string]any, 0, len(s.Tables))
	for _, t := range s.Tables {
		attrs := map[string]any{"tablename": t.Name}
		for _, ann := range t.Decl.Decl.Decl.Annotations {
			var v any
			if len(ann.Value) > 0 && json.Unmarshal(ann.Value, &v) != nil {
				v = string(ann.Value)
			}
			attrs[ann.Key.Name] = v
		}
		tables = append(tables, attrs)
	}
	return map[string]any{"tables": tables}
}

// Render executes the template text over the tables of s.
func Render(s *db.Schema, name, text string) ([]byte, error) {
	if name == "" {
		name = "template"
	}
	tmpl, err := template.New(filepath.Base(name)).Funcs(Funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, TemplateData(s)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
