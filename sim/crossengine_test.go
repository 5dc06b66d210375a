package sim_test

import (
	"testing"

	"github.com/jmchacon/hwsim/netlist"
	"github.com/jmchacon/hwsim/sim"
	"github.com/jmchacon/hwsim/sim/interp"
	"github.com/jmchacon/hwsim/sim/jit"
)

// rippleAdder4 builds a flattened 4-bit ripple-carry adder netlist by hand
// (mirroring what package flatten would emit for ir.OpAdd), used here to
// check that the interpreter and JIT backends agree bit for bit on every
// cycle (spec.md §9, invariant 2).
func rippleAdder4() *netlist.Netlist {
	// wires: a[0..3]=0..3, b[0..3]=4..7, cin=8, then per-bit axb/sum/aAndB/
	// cAndAxb/carry groups of five starting at 9.
	g := []netlist.Gate{}
	carries := make([]netlist.WireID, 5)
	carries[0] = 8
	sumWires := make([]netlist.WireID, 4)
	next := netlist.WireID(9)
	for i := 0; i < 4; i++ {
		a := netlist.WireID(i)
		b := netlist.WireID(4 + i)
		axb := next
		next++
		g = append(g, netlist.Gate{Op: netlist.Xor2, InA: a, InB: b, Out: axb})
		sum := next
		next++
		g = append(g, netlist.Gate{Op: netlist.Xor2, InA: axb, InB: carries[i], Out: sum})
		sumWires[i] = sum
		aAndB := next
		next++
		g = append(g, netlist.Gate{Op: netlist.And2, InA: a, InB: b, Out: aAndB})
		cAndAxb := next
		next++
		g = append(g, netlist.Gate{Op: netlist.And2, InA: carries[i], InB: axb, Out: cAndAxb})
		carryOut := next
		next++
		g = append(g, netlist.Gate{Op: netlist.Or2, InA: aAndB, InB: cAndAxb, Out: carryOut})
		carries[i+1] = carryOut
	}
	return &netlist.Netlist{
		WireCount: int(next),
		Inputs: []netlist.Port{
			{Name: "a", Wires: []netlist.WireID{0, 1, 2, 3}},
			{Name: "b", Wires: []netlist.WireID{4, 5, 6, 7}},
			{Name: "cin", Wires: []netlist.WireID{8}},
		},
		Outputs: []netlist.Port{
			{Name: "sum", Wires: sumWires},
			{Name: "cout", Wires: []netlist.WireID{carries[4]}},
		},
		Gates: g,
	}
}

func TestInterpAndJitAgreeOnRippleAdder(t *testing.T) {
	nl := rippleAdder4()
	backends := map[string]*sim.Simulator{}
	is, err := interp.New(nl)
	if err != nil {
		t.Fatal(err)
	}
	backends["interp"] = is
	js, err := jit.New(nl)
	if err != nil {
		t.Fatal(err)
	}
	backends["jit"] = js

	cases := []struct{ a, b, cin uint64 }{
		{0b0110, 0b1011, 1},
		{0, 0, 0},
		{0b1111, 0b1111, 1},
		{0b1010, 0b0101, 0},
	}
	for _, c := range cases {
		results := map[string][2]uint64{}
		for name, s := range backends {
			_ = s.WritePort("a", c.a)
			_ = s.WritePort("b", c.b)
			_ = s.WritePort("cin", c.cin)
			if err := s.Step(1); err != nil {
				t.Fatal(err)
			}
			sum, _ := s.ReadPort("sum")
			cout, _ := s.ReadPort("cout")
			results[name] = [2]uint64{sum, cout}
		}
		if results["interp"] != results["jit"] {
			t.Errorf("a=%04b b=%04b cin=%d: interp=%v jit=%v diverge", c.a, c.b, c.cin, results["interp"], results["jit"])
		}
	}

	// Scenario A from the reference suite: a=0b0110, b=0b1011, cin=1 ->
	// sum=0b0010, cout=1.
	_ = is.WritePort("a", 0b0110)
	_ = is.WritePort("b", 0b1011)
	_ = is.WritePort("cin", 1)
	_ = is.Step(1)
	sum, _ := is.ReadPort("sum")
	cout, _ := is.ReadPort("cout")
	if sum != 0b0010 || cout != 1 {
		t.Errorf("scenario A: sum=%04b cout=%d, want sum=0010 cout=1", sum, cout)
	}
}

func counter8() *netlist.Netlist {
	// 8-bit up counter built as a ripple of toggle flip-flops: d[0] = not
	// q[0]; d[i] = q[i] xor AND(q[0..i-1]) for i>0.
	wires := make([]netlist.WireID, 8)
	dWires := make([]netlist.WireID, 8)
	var gates []netlist.Gate
	next := netlist.WireID(8)
	for i := 0; i < 8; i++ {
		wires[i] = netlist.WireID(i)
	}
	dWires[0] = next
	gates = append(gates, netlist.Gate{Op: netlist.Not1, InA: wires[0], InB: netlist.AbsentWire, Out: next})
	next++
	andAcc := wires[0]
	for i := 1; i < 8; i++ {
		toggle := next
		gates = append(gates, netlist.Gate{Op: netlist.Xor2, InA: wires[i], InB: andAcc, Out: toggle})
		next++
		dWires[i] = toggle
		if i < 7 {
			nextAcc := next
			gates = append(gates, netlist.Gate{Op: netlist.And2, InA: andAcc, InB: wires[i], Out: nextAcc})
			next++
			andAcc = nextAcc
		}
	}
	var dffs []netlist.DFFBit
	for i := 0; i < 8; i++ {
		dffs = append(dffs, netlist.DFFBit{D: dWires[i], Q: wires[i], Clk: netlist.AbsentWire})
	}
	return &netlist.Netlist{
		WireCount: int(next),
		Outputs:   []netlist.Port{{Name: "q", Wires: wires}},
		Gates:     gates,
		DFFs:      dffs,
	}
}

func TestCounterWrapsAt256(t *testing.T) {
	nl := counter8()
	s, err := interp.New(nl)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 255; i++ {
		if err := s.Step(1); err != nil {
			t.Fatal(err)
		}
	}
	q, _ := s.ReadPort("q")
	if q != 255 {
		t.Fatalf("q after 255 steps = %d, want 255", q)
	}
	if err := s.Step(1); err != nil {
		t.Fatal(err)
	}
	q, _ = s.ReadPort("q")
	if q != 0 {
		t.Errorf("q after wraparound step = %d, want 0", q)
	}
}
