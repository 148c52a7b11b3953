// Package queryast defines the read and write queries the query graph is
// made of, together with their arguments and results.
package queryast

import "strings"

// Op represents the operation of a write query.
type Op uint

// Write operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpUpdateMany
	OpDelete
	OpDeleteMany
	OpConnect
	OpDisconnect
)

// Is reports whether o matches the given operation.
func (o Op) Is(op Op) bool { return o&op != 0 }

var opNames = [...]string{
	"OpCreate",
	"OpUpdate",
	"OpUpdateMany",
	"OpDelete",
	"OpDeleteMany",
	"OpConnect",
	"OpDisconnect",
}

func (o Op) String() string {
	var ops []string
	for i, name := range opNames {
		if o&(1<<i) != 0 {
			ops = append(ops, name)
		}
	}
	if len(ops) == 0 {
		return "Op(0)"
	}
	return strings.Join(ops, "|")
}
