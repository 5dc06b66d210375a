package schedule

import (
	"testing"

	"github.com/jmchacon/hwsim/netlist"
)

func TestBuildSimpleChain(t *testing.T) {
	// a -> not -> x -> not -> y
	n := &netlist.Netlist{
		WireCount: 3,
		Inputs:    []netlist.Port{{Name: "a", Wires: []netlist.WireID{0}}},
		Outputs:   []netlist.Port{{Name: "y", Wires: []netlist.WireID{2}}},
		Gates: []netlist.Gate{
			{Op: netlist.Not1, InA: 0, InB: netlist.AbsentWire, Out: 1},
			{Op: netlist.Not1, InA: 1, InB: netlist.AbsentWire, Out: 2},
		},
	}
	s, err := Build(n)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Order) != 2 || s.Order[0] != 0 || s.Order[1] != 1 {
		t.Errorf("Order = %v, want [0 1]", s.Order)
	}
}

func TestBuildDeterministicTieBreak(t *testing.T) {
	// Two independent gates driven directly by module inputs; order must
	// be by ascending output wire id regardless of slice order.
	n := &netlist.Netlist{
		WireCount: 4,
		Inputs: []netlist.Port{
			{Name: "a", Wires: []netlist.WireID{0}},
			{Name: "b", Wires: []netlist.WireID{1}},
		},
		Gates: []netlist.Gate{
			{Op: netlist.Buf1, InA: 1, InB: netlist.AbsentWire, Out: 3},
			{Op: netlist.Buf1, InA: 0, InB: netlist.AbsentWire, Out: 2},
		},
	}
	s, err := Build(n)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Order) != 2 || n.Gates[s.Order[0]].Out != 2 || n.Gates[s.Order[1]].Out != 3 {
		t.Errorf("Order did not tie-break by ascending output wire id: %v", s.Order)
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	n := &netlist.Netlist{
		WireCount: 2,
		Gates: []netlist.Gate{
			{Op: netlist.Buf1, InA: 1, InB: netlist.AbsentWire, Out: 0},
			{Op: netlist.Buf1, InA: 0, InB: netlist.AbsentWire, Out: 1},
		},
	}
	if _, err := Build(n); err == nil {
		t.Fatal("Build() = nil error, want CyclicCombinational")
	}
}

func TestBuildBreaksCycleThroughDFF(t *testing.T) {
	// d <- q (DFF), q is a source for the gate feeding d: legal since the
	// cycle only closes through the flip-flop.
	n := &netlist.Netlist{
		WireCount: 2,
		DFFs: []netlist.DFFBit{
			{D: 1, Q: 0, Clk: netlist.AbsentWire},
		},
		Gates: []netlist.Gate{
			{Op: netlist.Not1, InA: 0, InB: netlist.AbsentWire, Out: 1},
		},
	}
	if _, err := Build(n); err != nil {
		t.Fatalf("Build() = %v, want nil (DFF should break the cycle)", err)
	}
}
