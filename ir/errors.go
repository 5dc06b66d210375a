package ir

import "fmt"

// WidthMismatch is raised when an operand or assignment's width disagrees
// with what the operator or destination requires.
type WidthMismatch struct {
	Entity string // net/assign/port name or path
	Want   Width
	Got    Width
}

func (e WidthMismatch) Error() string {
	return fmt.Sprintf("width mismatch at %s: want %d, got %d", e.Entity, e.Want, e.Got)
}

// UndrivenNet is raised when Module.Validate finds a Net with no Assign,
// DFF output, or port binding driving it.
type UndrivenNet struct {
	Module string
	Net    string
}

func (e UndrivenNet) Error() string {
	return fmt.Sprintf("undriven net %s.%s", e.Module, e.Net)
}

// MultiplyDriven is raised when Module.Validate finds a Net driven by more
// than one of {Assign, DFF output, port input}.
type MultiplyDriven struct {
	Module string
	Net    string
}

func (e MultiplyDriven) Error() string {
	return fmt.Sprintf("multiply driven net %s.%s", e.Module, e.Net)
}

// UnknownOperator is raised when an Expr references a GateOpTag the
// lowering pass has no pattern for.
type UnknownOperator struct {
	Op GateOpTag
}

func (e UnknownOperator) Error() string {
	return fmt.Sprintf("unknown operator: %s", e.Op)
}
