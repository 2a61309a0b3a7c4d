package nql

import "fmt"

// Operator is the set of comparison and logical operators understood by the
// backend query language.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpMatches
	OpNotMatches
	OpContains
	OpNotContains
	OpExists
	OpAnd
	OpOr
	OpNot
)

func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpMatches:
		return "MATCHES"
	case OpNotMatches:
		return "NOT MATCHES"
	case OpContains:
		return "CONTAINS"
	case OpNotContains:
		return "NOT CONTAINS"
	case OpExists:
		return "EXISTS"
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	}
	return fmt.Sprintf("operator %d", int(op))
}

// isRegex reports whether the operator's right-hand side is a regex pattern.
func (op Operator) isRegex() bool {
	return op == OpMatches || op == OpNotMatches
}
