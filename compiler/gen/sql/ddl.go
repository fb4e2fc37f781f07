package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/compiler/gen/naming"
)

// commentColumn is the width column comments are aligned to.
const commentColumn = 36

type line struct {
	code    string
	comment string
}

// Create renders the DDL of s: one create table statement per table, then
// the foreign key, index and uniqueness constraints, then the extra SQL of
// every table.
func Create(s *db.Schema, extensions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Schema auto-generated from adl modules: %s\n", strings.Join(s.Modules, ", "))
	b.WriteString("--\n")
	b.WriteString("-- column comments show original ADL types\n")
	if len(extensions) > 0 {
		b.WriteString("\n")
		for _, e := range extensions {
			fmt.Fprintf(&b, "create extension %s;\n", e)
		}
	}

	var constraints, extra []string
	for _, t := range s.Tables {
		table := naming.QuoteReserved(t.Name)
		lines := make([]line, 0, len(t.Columns)+1)
		for _, c := range t.Columns {
			code := c.Name + " " + c.Type
			if !c.Nullable {
				code += " not null"
			}
			lines = append(lines, line{code: code, comment: c.Comment})
			if fk := c.ForeignKey; fk != nil {
				constraints = append(constraints, fmt.Sprintf(
					"alter table %s add constraint %s_%s_fk foreign key (%s) references %s(%s);",
					table, t.Name, c.Name, c.Name, naming.QuoteReserved(fk.Table), fk.Column))
			}
		}
		for i, cols := range t.Indexes {
			constraints = append(constraints, fmt.Sprintf("create index %s_%d_idx on %s(%s);",
				t.Name, i+1, table, strings.Join(cols, ", ")))
		}
		for i, cols := range t.Unique {
			constraints = append(constraints, fmt.Sprintf("alter table %s add constraint %s_%d_con unique (%s);",
				table, t.Name, i+1, strings.Join(cols, ", ")))
		}
		if len(t.PrimaryKey) > 0 {
			lines = append(lines, line{code: "primary key(" + strings.Join(t.PrimaryKey, ",") + ")"})
		}

		b.WriteString("\n")
		fmt.Fprintf(&b, "create table %s(\n", table)
		for i, l := range lines {
			code := l.code
			if i < len(lines)-1 {
				code += ","
			}
			if l.comment != "" {
				code = fmt.Sprintf("%-*s -- %s", commentColumn, code, l.comment)
			}
			b.WriteString("  " + code + "\n")
		}
		b.WriteString(");\n")
		extra = append(extra, t.ExtraSQL...)
	}
	writeBlock(&b, constraints)
	writeBlock(&b, extra)
	return b.String()
}

// Views renders the drop and create statements of every view with SQL.
func Views(s *db.Schema) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, v := range s.Views {
		if len(v.SQL) == 0 {
			continue
		}
		fmt.Fprintf(&b, "drop view if exists %s;\n", v.Name)
		b.WriteString("\n")
		for _, stmt := range v.SQL {
			b.WriteString(stmt + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeBlock(b *strings.Builder, stmts []string) {
	if len(stmts) == 0 {
		return
	}
	b.WriteString("\n")
	for _, s := range stmts {
		b.WriteString(s + "\n")
	}
}
