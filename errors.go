package veloxq

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a record finder or filter resolves to no rows.
	ErrNotFound = errors.New("veloxq: record not found")

	// ErrRecordsNotConnected is returned when a parent and a child record
	// are not joined by the relation they were addressed through.
	ErrRecordsNotConnected = errors.New("veloxq: records not connected")

	// ErrRelationViolation is returned when a write would orphan a
	// required relation.
	ErrRelationViolation = errors.New("veloxq: relation violation")

	// ErrAssertion is returned for internal query graph shape violations.
	ErrAssertion = errors.New("veloxq: assertion failed")
)

// FinderInfo describes the record a lookup was addressed to. It is used to
// name both ends of a relation in error messages.
type FinderInfo struct {
	Model string
	Field string
	Value any
}

// String returns the "Model.field = value" form of the finder.
func (f *FinderInfo) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s.%s = %v", f.Model, f.Field, f.Value)
}

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
	where *FinderInfo
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.where != nil {
		return fmt.Sprintf("veloxq: %s not found (where %s)", e.label, e.where)
	}
	return fmt.Sprintf("veloxq: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the model label.
func (e *NotFoundError) Label() string {
	return e.label
}

// Where returns the finder the lookup was made with, if any.
func (e *NotFoundError) Where() *FinderInfo {
	return e.where
}

// NewNotFoundError returns a new NotFoundError for the given model.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWhere returns a new NotFoundError carrying the finder that
// did not match any row.
func NewNotFoundErrorWhere(label string, where *FinderInfo) *NotFoundError {
	return &NotFoundError{label: label, where: where}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// RecordsNotConnectedError is returned when a parent-scoped lookup does not
// find a child joined to the parent.
type RecordsNotConnectedError struct {
	Relation    string
	ParentName  string
	ParentWhere *FinderInfo
	ChildName   string
	ChildWhere  *FinderInfo
}

// Error returns the error string.
func (e *RecordsNotConnectedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "veloxq: relation %q: no %s", e.Relation, e.ChildName)
	if e.ChildWhere != nil {
		fmt.Fprintf(&sb, " (where %s)", e.ChildWhere)
	}
	fmt.Fprintf(&sb, " is connected to %s", e.ParentName)
	if e.ParentWhere != nil {
		fmt.Fprintf(&sb, " (where %s)", e.ParentWhere)
	}
	return sb.String()
}

// Is reports whether the target error matches ErrRecordsNotConnected.
func (e *RecordsNotConnectedError) Is(err error) bool {
	return err == ErrRecordsNotConnected
}

// WithParent returns a copy of the error with the parent descriptor set.
// The receiver is left untouched.
func (e *RecordsNotConnectedError) WithParent(where *FinderInfo) *RecordsNotConnectedError {
	c := *e
	c.ParentWhere = where
	return &c
}

// NewRecordsNotConnectedError returns a new RecordsNotConnectedError.
func NewRecordsNotConnectedError(relation, parent, child string, childWhere *FinderInfo) *RecordsNotConnectedError {
	return &RecordsNotConnectedError{
		Relation:   relation,
		ParentName: parent,
		ChildName:  child,
		ChildWhere: childWhere,
	}
}

// IsRecordsNotConnected returns true if the error is a RecordsNotConnectedError.
func IsRecordsNotConnected(err error) bool {
	if err == nil {
		return false
	}
	var e *RecordsNotConnectedError
	return errors.As(err, &e)
}

// RelationViolationError is returned when deleting or disconnecting records
// would leave a required relation dangling.
type RelationViolationError struct {
	Relation string
	ModelA   string
	ModelB   string
}

// Error returns the error string.
func (e *RelationViolationError) Error() string {
	return fmt.Sprintf("veloxq: the change you are trying to make would violate the required relation %q between %s and %s",
		e.Relation, e.ModelA, e.ModelB)
}

// Is reports whether the target error matches ErrRelationViolation.
func (e *RelationViolationError) Is(err error) bool {
	return err == ErrRelationViolation
}

// NewRelationViolationError returns a new RelationViolationError.
func NewRelationViolationError(relation, modelA, modelB string) *RelationViolationError {
	return &RelationViolationError{Relation: relation, ModelA: modelA, ModelB: modelB}
}

// IsRelationViolation returns true if the error is a RelationViolationError.
func IsRelationViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *RelationViolationError
	return errors.As(err, &e)
}

// AssertionError reports a query graph that was built in a shape the
// executor cannot run. It indicates a builder bug and is never retried.
type AssertionError struct {
	msg string
}

// Error returns the error string.
func (e *AssertionError) Error() string {
	return "veloxq: assertion failed: " + e.msg
}

// Is reports whether the target error matches ErrAssertion.
func (e *AssertionError) Is(err error) bool {
	return err == ErrAssertion
}

// NewAssertionError returns a new AssertionError with a formatted message.
func NewAssertionError(format string, args ...any) *AssertionError {
	return &AssertionError{msg: fmt.Sprintf(format, args...)}
}

// IsAssertion returns true if the error is an AssertionError.
func IsAssertion(err error) bool {
	if err == nil {
		return false
	}
	var e *AssertionError
	return errors.As(err, &e)
}

// ColumnDoesNotExistError is returned when a row does not carry a column the
// statement builder promised. It points at a builder or metadata bug.
type ColumnDoesNotExistError struct {
	Column string
}

// Error returns the error string.
func (e *ColumnDoesNotExistError) Error() string {
	if e.Column == "" {
		return "veloxq: column does not exist"
	}
	return fmt.Sprintf("veloxq: column %q does not exist", e.Column)
}

// NewColumnDoesNotExistError returns a new ColumnDoesNotExistError.
func NewColumnDoesNotExistError(column string) *ColumnDoesNotExistError {
	return &ColumnDoesNotExistError{Column: column}
}

// IsColumnDoesNotExist returns true if the error is a ColumnDoesNotExistError.
func IsColumnDoesNotExist(err error) bool {
	if err == nil {
		return false
	}
	var e *ColumnDoesNotExistError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("veloxq: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// GraphError is returned when a query graph cannot be assembled, e.g. an
// edge references an unknown node or would close a cycle.
type GraphError struct {
	msg string
}

// Error returns the error string.
func (e *GraphError) Error() string {
	return "veloxq: query graph: " + e.msg
}

// NewGraphError returns a new GraphError with a formatted message.
func NewGraphError(format string, args ...any) *GraphError {
	return &GraphError{msg: fmt.Sprintf(format, args...)}
}

// IsGraphError returns true if the error is a GraphError.
func IsGraphError(err error) bool {
	if err == nil {
		return false
	}
	var e *GraphError
	return errors.As(err, &e)
}

// QueryError wraps a read error with additional context.
type QueryError struct {
	Model string // Model being read
	Op    string // Operation (e.g., "single", "many", "related", "count")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("veloxq: querying %s (%s): %v", e.Model, e.Op, e.Err)
	}
	return fmt.Sprintf("veloxq: querying %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(model, op string, err error) *QueryError {
	return &QueryError{Model: model, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a write error with additional context.
type MutationError struct {
	Model string // Model being written
	Op    string // Operation (e.g., "create", "update", "delete")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("veloxq: %s %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(model, op string, err error) *MutationError {
	return &MutationError{Model: model, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// PrivacyError represents a policy denial for a graph node.
type PrivacyError struct {
	Model string // Model the node operates on
	Op    string // Operation (query or mutation)
	Err   error  // Decision returned by the policy
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	return fmt.Sprintf("veloxq: privacy denied %s on %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the policy decision.
func (e *PrivacyError) Unwrap() error {
	return e.Err
}

// NewPrivacyError returns a new PrivacyError.
func NewPrivacyError(model, op string, err error) *PrivacyError {
	return &PrivacyError{Model: model, Op: op, Err: err}
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	if err == nil {
		return false
	}
	var e *PrivacyError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("veloxq: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
