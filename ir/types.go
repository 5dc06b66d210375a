// Package ir defines the structured, pre-flatten description of a
// synchronous digital module: ports, nets, combinational assigns, flip-flops
// and submodule instances.
//
// # IR Structure
//
//	ir.Module
//	  ├── Ports            ([]Signal, direction-tagged, named)
//	  ├── Nets             ([]Net, SSA-like: exactly one definer each)
//	  ├── Assigns          ([]Assign, dest net <- Expr tree)
//	  ├── DFFs             ([]DFF, D/Q/Clk + optional async reset/enable)
//	  └── Instances        ([]Instance, submodule refs + port bindings)
//
// An Expr tree decorates the right-hand side of an Assign. Leaves are
// NetRef or ConstExpr; interior nodes are GateExpr, tagged by GateOpTag,
// covering the arithmetic/logical/comparison/selection operators a
// behavioral description needs. Multi-bit signals stay intact at this
// level; bit-blasting to single-bit wires happens in package flatten.
//
// A Module is built once by a front end, validated, and handed to
// flatten.Flatten; nothing here ever mutates a Module after construction.
package ir

import "math/big"

// Width is a bit-count. Per the data model, 1 <= Width <= MaxWidth.
type Width int

// MaxWidth bounds any single Signal, Net, or Const.
const MaxWidth Width = 65536

// Direction is a port's signal direction.
type Direction int

const (
	// DirUnspecified marks an uninitialized Direction; never legal on a built Module.
	DirUnspecified Direction = iota
	// In is a module input port.
	In
	// Out is a module output port.
	Out
	// Inout is a bidirectional port.
	Inout
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case Inout:
		return "inout"
	default:
		return "unspecified"
	}
}

// Signal is a module port: a named, directioned, widthed interface point.
// Names must be distinct within a single Module.
type Signal struct {
	Name  string
	Dir   Direction
	Width Width
}

// NetID is a dense handle for a Net, scoped to the Module that owns it.
type NetID int

// Net is an internal signal within a Module. Every Net has exactly one
// driver: a combinational Assign, a DFF's Q output, or it is itself a
// module input port (bound by the caller, not driven internally).
type Net struct {
	ID    NetID
	Name  string // empty for synthesized/intermediate nets
	Width Width
}

// Const is a literal value of a fixed width. 0 <= Value < 2^Width.
type Const struct {
	Width Width
	Value *big.Int
}

// NewConst builds a Const from a uint64, masked to width.
func NewConst(width Width, v uint64) Const {
	bi := new(big.Int).SetUint64(v)
	return Const{Width: width, Value: maskTo(bi, width)}
}

func maskTo(v *big.Int, w Width) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(w))
	mask.Sub(mask, big.NewInt(1))
	out := new(big.Int).And(v, mask)
	return out
}

// GateOpTag enumerates the high-level operators a behavioral Assign's
// expression tree may use. See flatten's lowering table for how each
// reduces to primitive gates.
type GateOpTag int

const (
	OpAnd GateOpTag = iota
	OpOr
	OpXor
	OpNot
	OpBuf
	OpMux
	OpAdd
	OpSub
	OpEq
	OpLt
	OpLtu
	OpShl
	OpShr
	OpShra
	OpConcat
	OpSlice
	OpExtend
)

func (t GateOpTag) String() string {
	names := [...]string{
		"And", "Or", "Xor", "Not", "Buf", "Mux", "Add", "Sub", "Eq", "Lt",
		"Ltu", "Shl", "Shr", "Shra", "Concat", "Slice", "Extend",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "Unknown"
	}
	return names[t]
}

// Expr is a node in a behavioral expression tree. Every Expr knows its own
// result width so width-checking needs no external context.
type Expr interface {
	Width() Width
	isExpr()
}

// NetRef references a Net by id as an expression leaf.
type NetRef struct {
	Net NetID
	W   Width
}

func (n NetRef) Width() Width { return n.W }
func (NetRef) isExpr()        {}

// ConstExpr is a literal expression leaf.
type ConstExpr struct {
	Val Const
}

func (c ConstExpr) Width() Width { return c.Val.Width }
func (ConstExpr) isExpr()        {}

// GateExpr is an interior expression node: an operator applied to operand
// sub-expressions. Fields beyond Tag/Args/W are only meaningful for the
// operators that use them (K for Mux, Hi/Lo for Slice, Signed for Extend).
type GateExpr struct {
	Tag    GateOpTag
	Args   []Expr // for Mux: Args[0] is the selector, Args[1:] are the k data inputs
	K      int    // Mux: number of data inputs (2^len(selector) in the common case)
	Hi, Lo int    // Slice: inclusive bit range, hi >= lo >= 0
	Signed bool   // Extend: sign-extend vs. zero-extend
	W      Width  // result width
}

func (g GateExpr) Width() Width { return g.W }
func (GateExpr) isExpr()        {}

// Assign binds an expression to a Net. Dest.Width must equal Expr.Width().
type Assign struct {
	Dest NetID
	Expr Expr
}

// DFF is an edge-triggered D flip-flop. Data widths of D and Q must be
// equal; Clk (and Rst/En, if present) must be 1 bit wide.
type DFF struct {
	D, Q    NetID
	Clk     NetID
	HasRst  bool
	Rst     NetID
	RstVal  *big.Int // reset value, masked to D's width
	HasEn   bool
	En      NetID
}

// Instance binds a submodule by name into the parent, wiring every port by
// name to a parent Net.
type Instance struct {
	Name     string // instance name, used for namespacing during flatten
	Module   string // referenced Module.Name in the owning Registry
	Bindings map[string]NetID
}

// Module is a complete, SSA-like description of synchronous digital logic:
// ports, nets, combinational assigns, flip-flops, and submodule instances.
type Module struct {
	Name      string
	Ports     []Signal
	Nets      []Net
	Assigns   []Assign
	DFFs      []DFF
	Instances []Instance
}

// PortNet returns the NetID that stands in for the named port, if the
// Module maps ports 1:1 to same-named Nets (the convention flatten and the
// design fixtures use).
func (m *Module) PortNet(name string) (NetID, bool) {
	for _, n := range m.Nets {
		if n.Name == name {
			return n.ID, true
		}
	}
	return 0, false
}

// NetByID returns the Net with the given id, if present.
func (m *Module) NetByID(id NetID) (*Net, bool) {
	for i := range m.Nets {
		if m.Nets[i].ID == id {
			return &m.Nets[i], true
		}
	}
	return nil, false
}
