package flatten

import (
	"testing"

	"github.com/jmchacon/hwsim/ir"
	"github.com/jmchacon/hwsim/sim/interp"
)

func haModule() *ir.Module {
	const (
		a ir.NetID = iota
		b
		sum
		carry
	)
	return &ir.Module{
		Name: "ha",
		Ports: []ir.Signal{
			{Name: "a", Dir: ir.In, Width: 1},
			{Name: "b", Dir: ir.In, Width: 1},
			{Name: "sum", Dir: ir.Out, Width: 1},
			{Name: "carry", Dir: ir.Out, Width: 1},
		},
		Nets: []ir.Net{
			{ID: a, Name: "a", Width: 1},
			{ID: b, Name: "b", Width: 1},
			{ID: sum, Name: "sum", Width: 1},
			{ID: carry, Name: "carry", Width: 1},
		},
		Assigns: []ir.Assign{
			{Dest: sum, Expr: ir.GateExpr{Tag: ir.OpXor, W: 1, Args: []ir.Expr{ir.NetRef{Net: a, W: 1}, ir.NetRef{Net: b, W: 1}}}},
			{Dest: carry, Expr: ir.GateExpr{Tag: ir.OpAnd, W: 1, Args: []ir.Expr{ir.NetRef{Net: a, W: 1}, ir.NetRef{Net: b, W: 1}}}},
		},
	}
}

func TestFlattenHalfAdderThroughInterp(t *testing.T) {
	reg := ir.NewRegistry()
	m := haModule()
	if err := m.Validate(nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := reg.Register(m); err != nil {
		t.Fatal(err)
	}
	nl, err := Flatten(reg, "ha")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(nl.Gates) != 4 {
		t.Fatalf("len(Gates) = %d, want 4 (one Xor2 and one And2, each copied onto its port wire by a Buf1)", len(nl.Gates))
	}
	s, err := interp.New(nl)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct{ a, b, wantSum, wantCarry uint64 }{
		{0, 0, 0, 0},
		{0, 1, 1, 0},
		{1, 0, 1, 0},
		{1, 1, 0, 1},
	}
	for _, tt := range tests {
		_ = s.WritePort("a", tt.a)
		_ = s.WritePort("b", tt.b)
		if err := s.Step(1); err != nil {
			t.Fatal(err)
		}
		sum, _ := s.ReadPort("sum")
		carry, _ := s.ReadPort("carry")
		if sum != tt.wantSum || carry != tt.wantCarry {
			t.Errorf("a=%d b=%d: sum=%d carry=%d, want sum=%d carry=%d", tt.a, tt.b, sum, carry, tt.wantSum, tt.wantCarry)
		}
	}
	if _, ok := nl.DebugNames["ha.sum"]; !ok {
		t.Errorf("DebugNames missing entry for ha.sum: %v", nl.DebugNames)
	}
}

func adder4Module() *ir.Module {
	const (
		a ir.NetID = iota
		b
		cin
		sum
		cout
		wide // intermediate 5-bit extended result
	)
	return &ir.Module{
		Name: "adder4",
		Ports: []ir.Signal{
			{Name: "a", Dir: ir.In, Width: 4},
			{Name: "b", Dir: ir.In, Width: 4},
			{Name: "cin", Dir: ir.In, Width: 1},
			{Name: "sum", Dir: ir.Out, Width: 4},
			{Name: "cout", Dir: ir.Out, Width: 1},
		},
		Nets: []ir.Net{
			{ID: a, Name: "a", Width: 4},
			{ID: b, Name: "b", Width: 4},
			{ID: cin, Name: "cin", Width: 1},
			{ID: sum, Name: "sum", Width: 4},
			{ID: cout, Name: "cout", Width: 1},
			{ID: wide, Name: "wide", Width: 5},
		},
		Assigns: []ir.Assign{
			// wide = extend(a,5) + extend(b,5) + extend(cin,5); cin folded
			// in via Add's b operand trick isn't available (binary Add only),
			// so compute sum+cin as two chained Adds instead.
			{Dest: wide, Expr: ir.GateExpr{
				Tag: ir.OpAdd, W: 5,
				Args: []ir.Expr{
					ir.GateExpr{Tag: ir.OpExtend, W: 5, Args: []ir.Expr{ir.NetRef{Net: a, W: 4}}},
					ir.GateExpr{Tag: ir.OpAdd, W: 5, Args: []ir.Expr{
						ir.GateExpr{Tag: ir.OpExtend, W: 5, Args: []ir.Expr{ir.NetRef{Net: b, W: 4}}},
						ir.GateExpr{Tag: ir.OpExtend, W: 5, Args: []ir.Expr{ir.NetRef{Net: cin, W: 1}}},
					}},
				},
			}},
			{Dest: sum, Expr: ir.GateExpr{Tag: ir.OpSlice, W: 4, Hi: 3, Lo: 0, Args: []ir.Expr{ir.NetRef{Net: wide, W: 5}}}},
			{Dest: cout, Expr: ir.GateExpr{Tag: ir.OpSlice, W: 1, Hi: 4, Lo: 4, Args: []ir.Expr{ir.NetRef{Net: wide, W: 5}}}},
		},
	}
}

func TestFlattenRippleAdder4ScenarioA(t *testing.T) {
	reg := ir.NewRegistry()
	m := adder4Module()
	if err := m.Validate(nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := reg.Register(m); err != nil {
		t.Fatal(err)
	}
	nl, err := Flatten(reg, "adder4")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	s, err := interp.New(nl)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.WritePort("a", 0b0110)
	_ = s.WritePort("b", 0b1011)
	_ = s.WritePort("cin", 1)
	if err := s.Step(1); err != nil {
		t.Fatal(err)
	}
	sum, _ := s.ReadPort("sum")
	cout, _ := s.ReadPort("cout")
	if sum != 0b0010 || cout != 1 {
		t.Errorf("scenario A: sum=%04b cout=%d, want sum=0010 cout=1", sum, cout)
	}
}
