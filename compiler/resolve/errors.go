package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/adlschema/adlast"
)

// Rule sentinels. Every failure raised by this package matches exactly one
// of them through errors.Is.
var (
	// ErrArityMismatch indicates a reference supplying the wrong number of type arguments.
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrNonConcreteBinding indicates a bound type parameter applied to type arguments.
	ErrNonConcreteBinding = errors.New("non-concrete binding")
	// ErrUnsupportedRootKind indicates a declaration that cannot be projected.
	ErrUnsupportedRootKind = errors.New("unsupported root kind")
	// ErrNestedReferenceWrapper indicates a reference wrapper applied to another one.
	ErrNestedReferenceWrapper = errors.New("nested reference wrapper")
	// ErrInvalidReferenceTarget indicates a reference wrapper whose argument is not a declaration.
	ErrInvalidReferenceTarget = errors.New("invalid reference target")
	// ErrAmbiguousForeignKey indicates a referenced table without exactly one primary-key column.
	ErrAmbiguousForeignKey = errors.New("ambiguous foreign key")
	// ErrMissingRequiredAnnotation indicates metadata requested before it was derived.
	ErrMissingRequiredAnnotation = errors.New("missing required annotation")
	// ErrMultipleOrZeroModuleBlock indicates a module-level singleton that is absent or duplicated.
	ErrMultipleOrZeroModuleBlock = errors.New("multiple or zero module block")
	// ErrInstanceNameConflict indicates two different instantiations sharing one synthesized name.
	ErrInstanceNameConflict = errors.New("instance name conflict")
	// ErrDuplicateField indicates two fields of one projection sharing a name, usually through DbSpread.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrInstanceExpansion indicates generic instances that keep producing new instances.
	ErrInstanceExpansion = errors.New("instance expansion did not converge")
)

// ResolveError is a fatal projection failure located at a declaration
// and, when known, a field.
type ResolveError struct {
	Rule    error             // one of the rule sentinels
	Decl    adlast.ScopedName // offending declaration
	Field   string            // offending field (if applicable)
	Path    []string          // expansion path, e.g. ["type_:UserRow", "struct_:User"]
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString("resolve: ")
	b.WriteString(e.Rule.Error())
	if e.Decl != (adlast.ScopedName{}) {
		b.WriteString(" in ")
		b.WriteString(e.Decl.String())
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if len(e.Path) > 1 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Path, " -> "))
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the rule sentinel of e.
func (e *ResolveError) Is(target error) bool {
	return target == e.Rule
}

// NewError returns a ResolveError for rule at decl and field.
func NewError(rule error, decl adlast.ScopedName, field, format string, args ...any) *ResolveError {
	return &ResolveError{
		Rule:    rule,
		Decl:    decl,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// locate fills in the declaration, field and path of a ResolveError that
// was raised without them. Other errors are wrapped with the location.
func locate(err error, decl adlast.ScopedName, field string, path []string) error {
	if err == nil {
		return nil
	}
	var re *ResolveError
	if errors.As(err, &re) {
		if re.Decl == (adlast.ScopedName{}) {
			re.Decl = decl
		}
		if re.Field == "" {
			re.Field = field
		}
		if re.Path == nil {
			re.Path = append([]string(nil), path...)
		}
		return err
	}
	if field != "" {
		return fmt.Errorf("resolve: %s field %s: %w", decl, field, err)
	}
	return fmt.Errorf("resolve: %s: %w", decl, err)
}

// IsResolveError reports whether the error is a ResolveError.
func IsResolveError(err error) bool {
	var re *ResolveError
	return errors.As(err, &re)
}

// ModuleBlockError reports a module-level singleton annotation found in
// zero or several modules.
type ModuleBlockError struct {
	Key     adlast.ScopedName
	Modules []string
}

// Error implements the error interface.
func (e *ModuleBlockError) Error() string {
	if len(e.Modules) == 0 {
		return fmt.Sprintf("resolve: %s: no module level %s annotation found, exactly one is required",
			ErrMultipleOrZeroModuleBlock, e.Key)
	}
	return fmt.Sprintf("resolve: %s: more than one module level %s annotation found in %s, there can be only one",
		ErrMultipleOrZeroModuleBlock, e.Key, strings.Join(e.Modules, ", "))
}

// Is reports whether target is ErrMultipleOrZeroModuleBlock.
func (e *ModuleBlockError) Is(target error) bool {
	return target == ErrMultipleOrZeroModuleBlock
}

// IsModuleBlockError reports whether the error is a ModuleBlockError.
func IsModuleBlockError(err error) bool {
	var mb *ModuleBlockError
	return errors.As(err, &mb)
}
