package db

import (
	"fmt"
	"slices"
	"strings"
)

// Profile maps ADL primitives to the column types of one database.
type Profile struct {
	Name string
	// IDColumnType is the column type of reference wrapper columns.
	IDColumnType string
	// EnumColumnType is the column type of enum unions.
	EnumColumnType string
	// Types maps primitive names to column types.
	Types map[string]string
	// Default is used for every other type, including structs and generic
	// wrappers stored as documents.
	Default string
}

// ColumnType returns the column type of a primitive.
func (p Profile) ColumnType(primitive string) string {
	if t, ok := p.Types[primitive]; ok {
		return t
	}
	return p.Default
}

func postgresTypes(doc string) map[string]string {
	return map[string]string{
		"String": "text",
		"Bool":   "boolean",
		"Json":   doc,
		"Int8":   "smallint",
		"Int16":  "smallint",
		"Int32":  "integer",
		"Int64":  "bigint",
		"Word8":  "smallint",
		"Word16": "smallint",
		"Word32": "integer",
		"Word64": "bigint",
		"Float":  "real",
		"Double": "double precision",
	}
}

// Built-in profiles.
var (
	PostgreSQL = Profile{
		Name:           "postgresql",
		IDColumnType:   "text",
		EnumColumnType: "text",
		Types:          postgresTypes("json"),
		Default:        "json",
	}
	PostgreSQL2 = Profile{
		Name:           "postgresql2",
		IDColumnType:   "text",
		EnumColumnType: "text",
		Types:          postgresTypes("jsonb"),
		Default:        "jsonb",
	}
	MSSQL2 = Profile{
		Name:           "mssql2",
		IDColumnType:   "nvarchar(64)",
		EnumColumnType: "nvarchar(64)",
		Types: map[string]string{
			"String": "nvarchar(max)",
			"Int8":   "smallint",
			"Int16":  "smallint",
			"Int32":  "int",
			"Int64":  "bigint",
			"Word8":  "smallint",
			"Word16": "smallint",
			"Word32": "int",
			"Word64": "bigint",
			"Float":  "float(24)",
			"Double": "float(53)",
			"Bool":   "bit",
		},
		Default: "nvarchar(max)",
	}
	Prisma = Profile{
		Name:           "prisma",
		IDColumnType:   "String",
		EnumColumnType: "String",
		Types: map[string]string{
			"String": "String",
			"Bool":   "Boolean",
			"Json":   "Json",
			"Int8":   "Int",
			"Int16":  "Int",
			"Int32":  "Int",
			"Int64":  "BigInt",
			"Word8":  "Int",
			"Word16": "Int",
			"Word32": "Int",
			"Word64": "BigInt",
			"Float":  "Float",
			"Double": "Decimal",
		},
		Default: "Json",
	}
	MySQL = Profile{
		Name:           "mysql",
		IDColumnType:   "varchar(64)",
		EnumColumnType: "varchar(64)",
		Types: map[string]string{
			"String": "text",
			"Bool":   "bool",
			"Json":   "json",
			"Int8":   "tinyint",
			"Int16":  "smallint",
			"Int32":  "int",
			"Int64":  "bigint",
			"Word8":  "tinyint unsigned",
			"Word16": "smallint unsigned",
			"Word32": "int unsigned",
			"Word64": "bigint unsigned",
			"Float":  "float",
			"Double": "double",
		},
		Default: "json",
	}
	SQLite = Profile{
		Name:           "sqlite",
		IDColumnType:   "text",
		EnumColumnType: "text",
		Types: map[string]string{
			"String": "text",
			"Bool":   "boolean",
			"Json":   "json",
			"Int8":   "integer",
			"Int16":  "integer",
			"Int32":  "integer",
			"Int64":  "integer",
			"Word8":  "integer",
			"Word16": "integer",
			"Word32": "integer",
			"Word64": "integer",
			"Float":  "real",
			"Double": "real",
		},
		Default: "json",
	}
)

var profiles = map[string]Profile{
	PostgreSQL.Name:  PostgreSQL,
	PostgreSQL2.Name: PostgreSQL2,
	MSSQL2.Name:      MSSQL2,
	Prisma.Name:      Prisma,
	MySQL.Name:       MySQL,
	SQLite.Name:      SQLite,
}

// LookupProfile returns the named profile. The empty name selects
// postgresql2.
func LookupProfile(name string) (Profile, error) {
	if name == "" {
		return PostgreSQL2, nil
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("db: unknown profile %q (supported: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames returns the names of the built-in profiles, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
