package resolve

import (
	"log/slog"
	"slices"

	"github.com/syssam/adlschema/adlast"
)

// ModuleAnnotationSource lists module-level annotations. *load.Store
// implements it.
type ModuleAnnotationSource interface {
	ModuleAnnotations(adlast.ScopedName) []adlast.ModuleAnnotation
}

// RequireModuleBlock returns the single module-level key annotation among
// modules. An empty modules list considers every module. Zero or several
// matches fail with a ModuleBlockError naming the modules involved.
func RequireModuleBlock(src ModuleAnnotationSource, key adlast.ScopedName, modules []string) (adlast.ModuleAnnotation, error) {
	found := moduleBlocks(src, key, modules)
	if len(found) != 1 {
		names := make([]string, len(found))
		for i, ma := range found {
			names[i] = ma.Module
		}
		return adlast.ModuleAnnotation{}, &ModuleBlockError{Key: key, Modules: names}
	}
	return found[0], nil
}

// FirstModuleBlock returns the first module-level key annotation among
// modules in module order, logging a warning when more than one exists.
func FirstModuleBlock(src ModuleAnnotationSource, key adlast.ScopedName, modules []string, logger *slog.Logger) (adlast.ModuleAnnotation, bool) {
	found := moduleBlocks(src, key, modules)
	if len(found) == 0 {
		return adlast.ModuleAnnotation{}, false
	}
	if len(found) > 1 && logger != nil {
		names := make([]string, len(found))
		for i, ma := range found {
			names[i] = ma.Module
		}
		logger.Warn("multiple module level annotations found, using the first",
			slog.String("key", key.String()),
			slog.Any("modules", names),
		)
	}
	return found[0], true
}

func moduleBlocks(src ModuleAnnotationSource, key adlast.ScopedName, modules []string) []adlast.ModuleAnnotation {
	var found []adlast.ModuleAnnotation
	for _, ma := range src.ModuleAnnotations(key) {
		if len(modules) == 0 || slices.Contains(modules, ma.Module) {
			found = append(found, ma)
		}
	}
	return found
}
