package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/syssam/veloxq"
)

// ConstraintKind is the kind of a violated database constraint.
type ConstraintKind int

// Constraint kinds.
const (
	NoConstraint ConstraintKind = iota
	UniqueConstraint
	ForeignKeyConstraint
	CheckConstraint
	NotNullConstraint
)

func (k ConstraintKind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	case NotNullConstraint:
		return "not null"
	}
	return "none"
}

// constraintCodes maps the error codes of each driver to constraint kinds.
var constraintCodes = struct {
	postgres map[string]ConstraintKind
	mysql    map[uint16]ConstraintKind
	sqlite   map[int]ConstraintKind
}{
	postgres: map[string]ConstraintKind{
		"23505": UniqueConstraint,
		"23503": ForeignKeyConstraint,
		"23514": CheckConstraint,
		"23502": NotNullConstraint,
	},
	mysql: map[uint16]ConstraintKind{
		1062: UniqueConstraint,
		1451: ForeignKeyConstraint, // parent row referenced
		1452: ForeignKeyConstraint, // child row without parent
		3819: CheckConstraint,
		1048: NotNullConstraint,
	},
	// Extended result codes of SQLITE_CONSTRAINT.
	sqlite: map[int]ConstraintKind{
		2067: UniqueConstraint,
		1555: UniqueConstraint, // primary key
		787:  ForeignKeyConstraint,
		275:  CheckConstraint,
		1299: NotNullConstraint,
	},
}

// constraintMessages are matched when the driver error code is unknown.
var constraintMessages = []struct {
	kind ConstraintKind
	subs []string
}{
	{UniqueConstraint, []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"}},
	{ForeignKeyConstraint, []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"}},
	{CheckConstraint, []string{"Error 3819", "violates check constraint", "CHECK constraint failed"}},
	{NotNullConstraint, []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"}},
}

// Constraint returns the kind of the constraint violated by a driver error.
func Constraint(err error) ConstraintKind {
	if err == nil {
		return NoConstraint
	}
	var (
		pe   *pq.Error
		me   *mysql.MySQLError
		se   *sqlite.Error
		kind ConstraintKind
	)
	switch {
	case errors.As(err, &pe):
		kind = constraintCodes.postgres[string(pe.Code)]
	case errors.As(err, &me):
		kind = constraintCodes.mysql[me.Number]
	case errors.As(err, &se):
		kind = constraintCodes.sqlite[se.Code()]
	}
	if kind != NoConstraint {
		return kind
	}
	msg := err.Error()
	for _, m := range constraintMessages {
		for _, sub := range m.subs {
			if strings.Contains(msg, sub) {
				return m.kind
			}
		}
	}
	return NoConstraint
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	return veloxq.IsConstraintError(err) || Constraint(err) != NoConstraint
}

// IsUniqueConstraintError reports if the error resulted from a uniqueness
// constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Constraint(err) == UniqueConstraint
}

// IsForeignKeyConstraintError reports if the error resulted from a
// foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Constraint(err) == ForeignKeyConstraint
}

// IsCheckConstraintError reports if the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool {
	return Constraint(err) == CheckConstraint
}

// classify wraps driver constraint violations in a veloxq.ConstraintError.
// Other errors are returned as is.
func classify(err error) error {
	if err == nil || veloxq.IsConstraintError(err) {
		return err
	}
	if k := Constraint(err); k != NoConstraint {
		return veloxq.NewConstraintError(k.String()+" constraint violated: "+err.Error(), err)
	}
	return err
}
