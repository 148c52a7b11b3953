// Package schema checks the tables storing a registry against the tables
// found in a database before they are provisioned.
package schema

import (
	"fmt"
	"slices"
	"strings"

	atlas "ariga.io/atlas/sql/schema"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking reports if queries on the table will fail.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the errors of the result as one error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, e := range errs {
			sb.WriteString("  - " + e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) merge(o *ValidationResult) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// ValidateExisting compares the tables found in a database with the
// desired ones. Existing tables are never altered, so a desired column
// missing from an existing table is an error, as is an unknown NOT NULL
// column without a default that inserts cannot fill. Tables that do not
// exist yet are not checked.
func ValidateExisting(current, desired []*atlas.Table) *ValidationResult {
	result := &ValidationResult{}
	currentMap := make(map[string]*atlas.Table, len(current))
	for _, t := range current {
		currentMap[t.Name] = t
	}
	for _, d := range desired {
		if c, ok := currentMap[d.Name]; ok {
			validateTableDiff(c, d, result)
		}
	}
	return result
}

func validateTableDiff(current, desired *atlas.Table, result *ValidationResult) {
	for _, dc := range desired.Columns {
		cc, ok := current.Column(dc.Name)
		if !ok {
			result.Errors = append(result.Errors, &ValidationError{
				Table:    current.Name,
				Column:   dc.Name,
				Message:  "column is missing",
				Breaking: true,
			})
			continue
		}
		if nullable(dc) && !nullable(cc) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: "column is NOT NULL but the field is optional",
			})
		}
	}
	for _, cc := range current.Columns {
		if _, ok := desired.Column(cc.Name); ok {
			continue
		}
		if !nullable(cc) && cc.Default == nil {
			result.Errors = append(result.Errors, &ValidationError{
				Table:    current.Name,
				Column:   cc.Name,
				Message:  "unknown NOT NULL column without default",
				Breaking: true,
			})
		}
	}
	for _, di := range desired.Indexes {
		if !di.Unique {
			continue
		}
		if !hasUniqueIndex(current, columnNames(di)) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Message: fmt.Sprintf("unique index on %s is missing", strings.Join(columnNames(di), ", ")),
			})
		}
	}
}

func nullable(c *atlas.Column) bool {
	return c.Type == nil || c.Type.Null
}

func columnNames(idx *atlas.Index) []string {
	names := make([]string, 0, len(idx.Parts))
	for _, p := range idx.Parts {
		if p.C != nil {
			names = append(names, p.C.Name)
		}
	}
	return names
}

func hasUniqueIndex(t *atlas.Table, columns []string) bool {
	for _, idx := range t.Indexes {
		if idx.Unique && slices.Equal(columnNames(idx), columns) {
			return true
		}
	}
	return false
}

// ValidateTable validates a single table definition.
func ValidateTable(t *atlas.Table) *ValidationResult {
	result := &ValidationResult{}
	if t.PrimaryKey == nil || len(t.PrimaryKey.Parts) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}
	colNames := make(map[string]bool)
	for _, c := range t.Columns {
		if colNames[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "duplicate column name",
			})
		}
		colNames[c.Name] = true
	}
	idxNames := make(map[string]bool)
	for _, idx := range t.Indexes {
		if idxNames[idx.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("duplicate index name: %s", idx.Name),
			})
		}
		idxNames[idx.Name] = true
		for _, col := range columnNames(idx) {
			if !colNames[col] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("index %q references non-existent column %q", idx.Name, col),
				})
			}
		}
	}
	return result
}

// ValidateSchema validates all tables in a schema.
func ValidateSchema(tables []*atlas.Table) *ValidationResult {
	result := &ValidationResult{}
	tableNames := make(map[string]bool)
	for _, t := range tables {
		if tableNames[t.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: "duplicate table name",
			})
		}
		tableNames[t.Name] = true
		result.merge(ValidateTable(t))
	}
	return result
}
