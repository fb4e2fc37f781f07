// Package gen drives code generation from resolved ADL declarations.
//
// A run loads modules into a load.Store, resolves them into a Graph and
// hands the Graph to one or more targets:
//
//	cfg, err := gen.NewConfig(
//		gen.WithTarget("out"),
//		gen.WithModules("app.model"),
//	)
//	if err != nil {
//		return err
//	}
//	g, err := gen.NewGraph(ctx, cfg, store)
//	if err != nil {
//		return err
//	}
//	err = gen.Run(ctx, g, sqlTarget, mermaidTarget)
//
// # Graph
//
// NewGraph selects the root declarations of the configured modules, collects
// the out-of-focus declarations reachable through reference wrappers,
// records every monomorphic instance of a generic declaration and derives
// the metadata table. The Graph is read-only afterwards; Shape projects
// declarations outside the closure on demand.
//
// # Targets
//
// A Target turns a Graph into files. Generate runs targets in parallel and
// returns their files in target order; Run also writes them below the
// configured directory with a FileWriter.
//
// # Errors
//
// The package uses structured error types:
//
//   - SchemaError: a declaration or field cannot be rendered
//   - ConfigError: an option or configuration value is invalid
//   - LinkError: a foreign key cannot be built
//   - GenerationError: a target or write failed
//   - ValidationError: a generated schema failed validation
//
// Use the IsXxx helpers or errors.As to tell them apart:
//
//	if gen.IsConfigError(err) {
//		// fix the flags
//	}
package gen
