package door

import "fmt"

// Operator identifies who issued a command.
type Operator struct {
	// Name is the display name of the operator.
	Name string
	// Source is where the command came from, e.g. a hostname or "scheduler".
	Source string
}

// SystemOperator is used for transitions the daemon performs on its own.
//
//nolint:gochecknoglobals // Immutable value shared by the monitor and tests.
var SystemOperator = Operator{Name: "auto-arm", Source: "system"}

// String renders the operator as "name@source" or just the name.
func (o Operator) String() string {
	switch {
	case o.Name == "" && o.Source == "":
		return "unknown"
	case o.Source == "":
		return o.Name
	case o.Name == "":
		return "@" + o.Source
	default:
		return fmt.Sprintf("%s@%s", o.Name, o.Source)
	}
}

// IsZero reports whether no identity was provided.
func (o Operator) IsZero() bool {
	return o.Name == "" && o.Source == ""
}
