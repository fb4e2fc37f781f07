// Package mermaid renders the declarations of the selected modules as a
// Mermaid class diagram.
package mermaid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/resolve"
)

// Annotation keys read by the target.
var (
	Hidden          = adlast.NewScopedName("common.mspec", "Hidden")
	HideRealization = adlast.NewScopedName("common.mspec", "HideRealization")
	Embed           = adlast.NewScopedName("common.mspec", "Embed")
	ArrowIdx        = adlast.NewScopedName("common.mspec", "ArrowIdx")
	RepresentedBy   = adlast.NewScopedName("common.mspec", "RepresentedBy")
	DiagramOptions  = adlast.NewScopedName("common.mspec", "DiagramOptions")
)

// DefaultFile is the default output file name.
const DefaultFile = "classdiagram.mmd"

var validate = validator.New()

// Options is the module-level DiagramOptions annotation.
type Options struct {
	Direction string `json:"direction" validate:"omitempty,oneof=LR RL TB BT TD"`
}

// Target generates a class diagram.
type Target struct {
	file string
}

// Option configures a Target.
type Option func(*Target) error

// WithFile sets the output file name.
func WithFile(name string) Option {
	return func(t *Target) error {
		if name == "" {
			return gen.NewConfigError("File", name, "file name cannot be empty")
		}
		t.file = name
		return nil
	}
}

// New returns a Mermaid target.
func New(opts ...Option) (*Target, error) {
	t := &Target{file: DefaultFile}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Name implements gen.Target.
func (*Target) Name() string { return "mermaid" }

// Generate implements gen.Target.
func (t *Target) Generate(_ context.Context, g *gen.Graph) ([]*gen.File, error) {
	opts, err := diagramOptions(g)
	if err != nil {
		return nil, err
	}
	d := &diagram{
		g:     g,
		rec:   g.Recognizer(),
		focus: len(g.Focus) > 0,
		opts:  opts,
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	if err := d.collectArrows(); err != nil {
		return nil, err
	}
	content := d.render()
	g.Logger().Debug("class diagram generated",
		slog.String("file", t.file),
		slog.Int("classes", len(d.decls)),
		slog.Int("arrows", len(d.arrows)),
	)
	return []*gen.File{{Path: t.file, Content: []byte(content)}}, nil
}

var _ gen.Target = (*Target)(nil)

// diagramOptions reads the first DiagramOptions annotation among the focus
// modules.
func diagramOptions(g *gen.Graph) (Options, error) {
	opts := Options{Direction: "LR"}
	ma, ok := resolve.FirstModuleBlock(g.Store, DiagramOptions, g.Focus, g.Logger())
	if !ok {
		return opts, nil
	}
	if err := json.Unmarshal(ma.Value, &opts); err != nil {
		return opts, gen.NewSchemaError(DiagramOptions, "", "in module "+ma.Module, err)
	}
	if err := validate.Struct(&opts); err != nil {
		return opts, gen.NewSchemaError(DiagramOptions, "", "in module "+ma.Module, err)
	}
	if opts.Direction == "" {
		opts.Direction = "LR"
	}
	return opts, nil
}

type arrow struct {
	from  adlast.ScopedDecl
	to    adlast.ScopedName
	arrow string
	field string
	card  string
	idx   *int
}

type diagram struct {
	g       *gen.Graph
	rec     *resolve.Recognizer
	focus   bool
	opts    Options
	modules []string
	decls   []adlast.ScopedDecl
	arrows  []arrow
	out     []adlast.ScopedName
}

// inFocus reports whether a module is drawn in full.
func (d *diagram) inFocus(module string) bool {
	return !d.focus || slices.Contains(d.g.Focus, module)
}

func (d *diagram) load() error {
	return d.g.Store.ForEachDecl(func(sd adlast.ScopedDecl) error {
		if !d.g.InModules(sd.ModuleName) {
			return nil
		}
		if d.g.Filter != nil && !d.g.Filter(sd) {
			return nil
		}
		if !slices.Contains(d.modules, sd.ModuleName) {
			d.modules = append(d.modules, sd.ModuleName)
		}
		d.decls = append(d.decls, sd)
		return nil
	})
}

// fields returns the fields drawn for sd and whether they are union
// branches. Aliases and newtypes of a declaration show the fields of what
// they name.
func (d *diagram) fields(sd adlast.ScopedDecl) ([]adlast.Field, bool, error) {
	name := sd.Name()
	for range 64 {
		switch typ := sd.Decl.Type.(type) {
		case adlast.Struct:
			return typ.Fields, false, nil
		case adlast.Union:
			return typ.Fields, true, nil
		}
		te, ok := adlast.Wrapped(sd.Decl.Type)
		if !ok {
			return nil, false, nil
		}
		sn, ok := te.Reference()
		if !ok {
			return nil, false, nil
		}
		next, err := d.g.Resolve(sn)
		if err != nil {
			return nil, false, gen.NewSchemaError(name, "", "", err)
		}
		sd = next
	}
	return nil, false, gen.NewSchemaError(name, "", "alias chain too long", gen.ErrInvalidSchema)
}

// shape strips one list and then one optional wrapper from te. Reference
// wrappers are drawn as arrows to their target.
func (d *diagram) shape(te adlast.TypeExpr) (adlast.TypeExpr, *adlast.ScopedName, string, error) {
	card := ""
	w, err := d.rec.Classify(te)
	if err != nil {
		return te, nil, "", err
	}
	if w.Kind == resolve.ListWrapper {
		te, card = w.Inner, " 0..*"
		if w, err = d.rec.Classify(te); err != nil {
			return te, nil, "", err
		}
	}
	if w.Kind == resolve.OptionalWrapper {
		te, card = w.Inner, " ?"
		if w, err = d.rec.Classify(te); err != nil {
			return te, nil, "", err
		}
	}
	if w.Kind == resolve.ReferenceWrapper {
		target := w.Target
		return te, &target, card, nil
	}
	if w.Kind != resolve.Plain {
		return te, nil, card, nil
	}
	sn, ok := te.Reference()
	if !ok {
		return te, nil, card, nil
	}
	return te, &sn, card, nil
}

func (d *diagram) collectArrows() error {
	for _, sd := range d.decls {
		if !d.inFocus(sd.ModuleName) || sd.Decl.Annotations.Has(Hidden) {
			continue
		}
		fields, union, err := d.fields(sd)
		if err != nil {
			return err
		}
		for _, f := range fields {
			_, to, card, err := d.shape(f.TypeExpr)
			if err != nil {
				return gen.NewSchemaError(sd.Name(), f.Name, "", err)
			}
			if to == nil || !d.g.InModules(to.ModuleName) {
				continue
			}
			target, err := d.g.Resolve(*to)
			if err != nil {
				return gen.NewSchemaError(sd.Name(), f.Name, "", err)
			}
			if target.Decl.Annotations.Has(Hidden) {
				continue
			}
			a := arrow{from: sd, to: *to, field: f.Name, card: card, arrow: "-->"}
			switch {
			case union && f.Annotations.Has(HideRealization):
				continue
			case union:
				a.arrow = "<|.."
			case f.Annotations.Has(Embed):
				a.arrow = "--|>"
			}
			var idx int
			if ok, err := f.Annotations.Decode(ArrowIdx, &idx); err != nil {
				return gen.NewSchemaError(sd.Name(), f.Name, "", err)
			} else if ok {
				a.idx = &idx
			}
			d.arrows = append(d.arrows, a)
			if !d.inFocus(to.ModuleName) && !slices.Contains(d.out, *to) {
				d.out = append(d.out, *to)
			}
		}
	}
	slices.SortStableFunc(d.arrows, func(a, b arrow) int {
		return rank(a.idx) - rank(b.idx)
	})
	return nil
}

// rank orders arrows: negative indexes first, then non-negative ones, then
// arrows without an index, each group ascending.
func rank(idx *int) int {
	const unset = 1 << 30
	switch {
	case idx == nil:
		return unset
	case *idx < 0:
		return *idx - unset
	default:
		return *idx
	}
}

func (d *diagram) hasArrow(sd adlast.ScopedDecl, field string) bool {
	return slices.ContainsFunc(d.arrows, func(a arrow) bool {
		return a.from.Name() == sd.Name() && a.field == field
	})
}

func (d *diagram) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "    %%%% Auto-generated from adl modules: %s\n", strings.Join(d.modules, " "))
	b.WriteString("classDiagram\n")
	fmt.Fprintf(&b, "    direction %s;\n", d.opts.Direction)
	b.WriteString("\n")
	for _, sd := range d.decls {
		if !d.inFocus(sd.ModuleName) || sd.Decl.Annotations.Has(Hidden) {
			continue
		}
		fmt.Fprintf(&b, "    class %s[\"%s\"]\n", className(sd), sd.Decl.Name)
		if u, ok := sd.Decl.Type.(adlast.Union); ok {
			stereotype := "union"
			if adlast.IsEnum(u) {
				stereotype = "enum"
			}
			fmt.Fprintf(&b, "    <<%s>> %s\n", stereotype, className(sd))
		}
	}
	b.WriteString("\n")
	for _, a := range d.arrows {
		fmt.Fprintf(&b, "    %s %s %s : %s%s\n", className(a.from), a.arrow, mermaidName(a.to), a.field, a.card)
	}
	b.WriteString("\n")
	for _, sd := range d.decls {
		if !d.inFocus(sd.ModuleName) || sd.Decl.Annotations.Has(Hidden) {
			continue
		}
		// Field lists of resolvable declarations were checked by collectArrows.
		fields, _, _ := d.fields(sd)
		for _, f := range fields {
			if d.hasArrow(sd, f.Name) || f.Annotations.Has(Hidden) || f.Annotations.Has(Embed) {
				continue
			}
			_, _, card, _ := d.shape(f.TypeExpr)
			fmt.Fprintf(&b, "    %s : %s%s\n", className(sd), f.Name, card)
		}
	}
	b.WriteString("\n")
	if d.focus && len(d.out) > 0 {
		for _, sn := range d.out {
			fmt.Fprintf(&b, "    class %s[\"%s.%s\"]\n", mermaidName(sn), lastSegment(sn.ModuleName), sn.Name)
		}
		b.WriteString("    namespace _out_ {\n")
		for _, sn := range d.out {
			fmt.Fprintf(&b, "    class %s\n", mermaidName(sn))
		}
		b.WriteString("    }\n")
	}
	for _, m := range d.modules {
		if !d.inFocus(m) {
			continue
		}
		fmt.Fprintf(&b, "    namespace %s {\n", strings.ReplaceAll(m, ".", "_"))
		for _, sd := range d.decls {
			if sd.ModuleName != m || sd.Decl.Annotations.Has(Hidden) || sd.Decl.Annotations.Has(RepresentedBy) {
				continue
			}
			fmt.Fprintf(&b, "        class %s\n", className(sd))
		}
		b.WriteString("    }\n")
	}
	return b.String()
}

// className is the diagram identifier of sd, honoring RepresentedBy.
func className(sd adlast.ScopedDecl) string {
	if rep, ok := sd.Decl.Annotations.String(RepresentedBy); ok && rep != "" {
		return strings.ReplaceAll(sd.ModuleName, ".", "_") + "_" + rep
	}
	return mermaidName(sd.Name())
}

func mermaidName(sn adlast.ScopedName) string {
	return strings.ReplaceAll(sn.ModuleName, ".", "_") + "_" + sn.Name
}

func lastSegment(module string) string {
	if i := strings.LastIndexByte(module, '.'); i >= 0 {
		return module[i+1:]
	}
	return module
}
