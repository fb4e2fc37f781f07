// Package naming converts ADL identifiers into the names used by the
// generated schemas.
package naming

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// Snake returns the snake case form of s: "createdAt" becomes "created_at".
func Snake(s string) string {
	return inflect.Underscore(s)
}

// TableName returns the default table name of a declaration: its snake case
// form without a trailing "_table".
func TableName(decl string) string {
	return strings.TrimSuffix(Snake(decl), "_table")
}

// Pascal returns s with an upper case first letter and no separators.
func Pascal(s string) string {
	return inflect.Camelize(s)
}

// Camel returns s with a lower case first letter and no separators.
func Camel(s string) string {
	return inflect.CamelizeDownFirst(s)
}

// Plural returns the plural form of a snake or camel case word.
func Plural(s string) string {
	return inflect.Pluralize(s)
}

// reserved lists identifiers that must be quoted in SQL.
var reserved = map[string]bool{
	"user":  true,
	"order": true,
	"group": true,
	"table": true,
}

// QuoteReserved double-quotes SQL reserved words.
func QuoteReserved(name string) string {
	if reserved[name] {
		return `"` + name + `"`
	}
	return name
}

// GoName returns an exported Go identifier for a declaration or instance
// name: "_Pair_Int32__Box_String" becomes "PairInt32BoxString".
func GoName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part != "" {
			b.WriteString(Pascal(part))
		}
	}
	return b.String()
}
