// Package resolve turns an ADL declaration graph into concrete projected
// declarations: it substitutes generic type arguments, recognizes
// structural wrappers, flattens aliases, newtypes and spread fields,
// collects the declarations reachable through reference wrappers and
// names the monomorphic instances of generic declarations.
package resolve

import (
	"fmt"

	"github.com/syssam/adlschema/adlast"
)

// Binding binds a type parameter name to a type expression.
type Binding struct {
	Name  string
	Value adlast.TypeExpr
}

// Env is the binding environment of one reference site.
type Env []Binding

// Lookup returns the binding of name.
func (e Env) Lookup(name string) (adlast.TypeExpr, bool) {
	for _, b := range e {
		if b.Name == name {
			return b.Value, true
		}
	}
	return adlast.TypeExpr{}, false
}

// Bind zips the type parameters of decl with the arguments supplied at a
// reference site. Anything but an exact arity match is ErrArityMismatch.
func Bind(decl adlast.ScopedName, typeParams []string, args []adlast.TypeExpr) (Env, error) {
	if len(typeParams) != len(args) {
		return nil, NewError(ErrArityMismatch, decl, "",
			"%s declares %d type parameter(s), reference supplies %d", decl, len(typeParams), len(args))
	}
	if len(args) == 0 {
		return nil, nil
	}
	env := make(Env, len(typeParams))
	for i, name := range typeParams {
		env[i] = Binding{Name: name, Value: args[i]}
	}
	return env, nil
}

// Substitute replaces every bound TypeParam in t with its binding.
// Parameters are substituted first. Unbound parameters are left in place.
// A bound TypeParam carrying type arguments of its own is
// ErrNonConcreteBinding. The input is never modified.
func Substitute(t adlast.TypeExpr, env Env) (adlast.TypeExpr, error) {
	var params []adlast.TypeExpr
	if len(t.Parameters) > 0 {
		params = make([]adlast.TypeExpr, len(t.Parameters))
		for i, p := range t.Parameters {
			sp, err := Substitute(p, env)
			if err != nil {
				return adlast.TypeExpr{}, err
			}
			params[i] = sp
		}
	}
	if tp, ok := t.TypeRef.(adlast.TypeParam); ok {
		if bound, ok := env.Lookup(tp.Name); ok {
			if len(params) != 0 {
				return adlast.TypeExpr{}, &ResolveError{
					Rule:    ErrNonConcreteBinding,
					Message: fmt.Sprintf("type parameter %s is applied to %d argument(s)", tp.Name, len(params)),
				}
			}
			return bound.Clone(), nil
		}
	}
	return adlast.TypeExpr{TypeRef: t.TypeRef, Parameters: params}, nil
}
