package sql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen/db"
)

// Tables holding the metadata itself are not described.
const (
	metaTable     = "meta_table"
	metaDeclTable = "meta_adl_decl"
)

var replacer = strings.NewReplacer("'", "''")

// Metadata renders statements that fill meta_table with every table and
// view, and meta_adl_decl with the declarations they depend on.
func Metadata(s *db.Schema, resolve func(adlast.ScopedName) (adlast.ScopedDecl, error)) (string, error) {
	var (
		b     strings.Builder
		decls []adlast.ScopedDecl
	)
	b.WriteString("delete from meta_table;\n")
	insert := func(name string, sd adlast.ScopedDecl) {
		desc, _ := sd.Decl.Annotations.String(db.Doc)
		fmt.Fprintf(&b, "insert into meta_table(name,description,decl_module_name, decl_name) values (%s,%s,%s,%s);\n",
			dbstr(name), dbstr(desc), dbstr(sd.ModuleName), dbstr(sd.Decl.Name))
		decls = append(decls, sd)
	}
	for _, t := range s.Tables {
		if t.Name == metaTable || t.Name == metaDeclTable {
			continue
		}
		insert(t.Name, t.Decl.Decl)
	}
	for _, v := range s.Views {
		insert(v.Name, v.Decl.Decl)
	}
	b.WriteString("\n")
	b.WriteString("delete from meta_adl_decl;\n")

	w := &declWriter{b: &b, resolve: resolve, done: make(map[adlast.ScopedName]bool)}
	for _, sd := range decls {
		if err := w.decl(sd); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// declWriter inserts each declaration once, followed by every declaration
// its type expressions reference.
type declWriter struct {
	b       *strings.Builder
	resolve func(adlast.ScopedName) (adlast.ScopedDecl, error)
	done    map[adlast.ScopedName]bool
}

func (w *declWriter) decl(sd adlast.ScopedDecl) error {
	if w.done[sd.Name()] {
		return nil
	}
	w.done[sd.Name()] = true
	js, err := marshal(sd.Decl)
	if err != nil {
		return fmt.Errorf("encode %s: %w", sd.Name(), err)
	}
	fmt.Fprintf(w.b, "insert into meta_adl_decl(module_name,name,decl) values (%s,%s, %s);\n",
		dbstr(sd.ModuleName), dbstr(sd.Decl.Name), dbstr(js))
	if te, ok := adlast.Wrapped(sd.Decl.Type); ok {
		return w.typeExpr(te)
	}
	for _, f := range sd.Decl.Fields() {
		if err := w.typeExpr(f.TypeExpr); err != nil {
			return err
		}
	}
	return nil
}

func (w *declWriter) typeExpr(te adlast.TypeExpr) error {
	if sn, ok := te.Reference(); ok {
		sd, err := w.resolve(sn)
		if err != nil {
			return err
		}
		if err := w.decl(sd); err != nil {
			return err
		}
	}
	for _, p := range te.Parameters {
		if err := w.typeExpr(p); err != nil {
			return err
		}
	}
	return nil
}

// marshal encodes v compactly without escaping HTML characters.
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
