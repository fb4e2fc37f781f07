package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/adlschema/compiler/gen"
)

// ValidationResult holds the findings of comparing two snapshots. Errors
// are breaking changes that were not allowed.
type ValidationResult struct {
	Errors   []*gen.ValidationError
	Warnings []*gen.ValidationError
}

// HasErrors reports whether there are breaking changes.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings reports whether there are warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err joins the errors of the result, or returns nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// String returns a human-readable summary of the result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, list []*gen.ValidationError) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, e := range list {
			sb.WriteString("  - " + finding(e) + "\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func finding(e *gen.ValidationError) string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidateOption configures ValidateDiff.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn reports dropped columns as warnings.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable reports dropped tables as warnings.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex reports dropped indexes as warnings.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull reports nullable columns becoming not null as
// warnings.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// AllowAll reports every breaking change as a warning.
func AllowAll() ValidateOption {
	return func(c *validateConfig) {
		*c = validateConfig{true, true, true, true}
	}
}

func (r *ValidationResult) add(allowed bool, e *gen.ValidationError) {
	if allowed {
		r.Warnings = append(r.Warnings, e)
	} else {
		r.Errors = append(r.Errors, e)
	}
}

// ValidateDiff compares the stored snapshot with the desired one. Dropped
// tables, columns and indexes and columns becoming not null are errors
// unless allowed; other risky changes are warnings.
func ValidateDiff(current, desired *Snapshot, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	for _, t := range current.Tables {
		if _, ok := desired.Table(t.Name); !ok {
			result.add(cfg.allowDropTable, gen.NewValidationError(t.Name, "", nil, "table will be dropped"))
		}
	}
	for _, t := range desired.Tables {
		if cur, ok := current.Table(t.Name); ok {
			validateTableDiff(cur, t, cfg, result)
		}
	}
	return result
}

func validateTableDiff(current, desired *SnapshotTable, cfg *validateConfig, result *ValidationResult) {
	for _, c := range current.Columns {
		if _, ok := desired.Column(c.Name); !ok {
			result.add(cfg.allowDropColumn, gen.NewValidationError(current.Name, c.Name, nil, "column will be dropped"))
		}
	}
	for _, want := range desired.Columns {
		have, ok := current.Column(want.Name)
		if !ok {
			if !want.Nullable {
				result.Warnings = append(result.Warnings, gen.NewValidationError(current.Name, want.Name, want.Type,
					"new NOT NULL column without default value may fail if table has data"))
			}
			continue
		}
		if have.Type != want.Type {
			result.Warnings = append(result.Warnings, gen.NewValidationError(current.Name, want.Name, want.Type,
				fmt.Sprintf("column type changing from %s to %s", have.Type, want.Type)))
		}
		if have.Nullable && !want.Nullable {
			result.add(cfg.allowNullToNotNull, gen.NewValidationError(current.Name, want.Name, nil,
				"column changing from NULL to NOT NULL may fail if column has NULL values"))
		}
	}
	for _, idx := range current.Indexes {
		if _, ok := desired.Index(idx.Name); !ok {
			result.add(cfg.allowDropIndex, gen.NewValidationError(current.Name, "", idx.Name,
				fmt.Sprintf("index %q will be dropped", idx.Name)))
		}
	}
	for _, idx := range desired.Indexes {
		if _, ok := current.Index(idx.Name); !ok && idx.Unique {
			result.Warnings = append(result.Warnings, gen.NewValidationError(current.Name, "", idx.Name,
				"adding UNIQUE constraint may fail if duplicate values exist"))
		}
	}
}

// ValidateSnapshot checks a snapshot for duplicate names and for keys and
// indexes naming columns that do not exist. Tables without a primary key
// and foreign keys to tables outside the snapshot are warnings.
func ValidateSnapshot(s *Snapshot) *ValidationResult {
	result := &ValidationResult{}
	tables := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if tables[t.Name] {
			result.Errors = append(result.Errors, gen.NewValidationError(t.Name, "", nil, "duplicate table name"))
		}
		tables[t.Name] = true
		validateTable(t, result)
	}
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			if !tables[fk.RefTable] {
				result.Warnings = append(result.Warnings, gen.NewValidationError(t.Name, fk.Column, fk.RefTable,
					fmt.Sprintf("foreign key references table %q outside the snapshot", fk.RefTable)))
			}
		}
	}
	return result
}

func validateTable(t *SnapshotTable, result *ValidationResult) {
	if len(t.PrimaryKey) == 0 {
		result.Warnings = append(result.Warnings, gen.NewValidationError(t.Name, "", nil, "table has no primary key"))
	}
	columns := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if columns[c.Name] {
			result.Errors = append(result.Errors, gen.NewValidationError(t.Name, c.Name, nil, "duplicate column name"))
		}
		columns[c.Name] = true
	}
	for _, pk := range t.PrimaryKey {
		if !columns[pk] {
			result.Errors = append(result.Errors, gen.NewValidationError(t.Name, pk, nil, "primary key references non-existent column"))
		}
	}
	indexes := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if indexes[idx.Name] {
			result.Errors = append(result.Errors, gen.NewValidationError(t.Name, "", idx.Name,
				fmt.Sprintf("duplicate index name: %s", idx.Name)))
		}
		indexes[idx.Name] = true
		for _, col := range idx.Columns {
			if !columns[col] {
				result.Errors = append(result.Errors, gen.NewValidationError(t.Name, col, idx.Name,
					fmt.Sprintf("index %q references non-existent column %q", idx.Name, col)))
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		if !columns[fk.Column] {
			result.Errors = append(result.Errors, gen.NewValidationError(t.Name, fk.Column, nil,
				"foreign key references non-existent column"))
		}
	}
}
