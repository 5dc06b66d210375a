package aot

import (
	"bytes"
	"fmt"

	"github.com/jmchacon/hwsim/netlist"
	"github.com/jmchacon/hwsim/schedule"
)

// generateSource emits a standalone Go plugin source file implementing
// nl's combinational subgraph as straight-line code, one assignment per
// gate, in schedule order. Straight-line code (no loop, no indirection
// through a Gate struct or op dispatch table) is what "ahead of time" buys
// over sim/interp and sim/jit: the Go compiler sees the whole dataflow
// graph at compile time and can allocate/schedule it like any other
// function body.
func generateSource(pkgName string, nl *netlist.Netlist, sched *schedule.Schedule) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "package %s\n\n", pkgName)
	buf.WriteString("// Code generated by hwsim/sim/aot. DO NOT EDIT.\n\n")
	buf.WriteString("func Comb(wires []byte) {\n")
	for _, gi := range sched.Order {
		g := nl.Gates[gi]
		switch g.Op {
		case netlist.And2:
			fmt.Fprintf(&buf, "\twires[%d] = wires[%d] & wires[%d]\n", g.Out, g.InA, g.InB)
		case netlist.Or2:
			fmt.Fprintf(&buf, "\twires[%d] = wires[%d] | wires[%d]\n", g.Out, g.InA, g.InB)
		case netlist.Xor2:
			fmt.Fprintf(&buf, "\twires[%d] = wires[%d] ^ wires[%d]\n", g.Out, g.InA, g.InB)
		case netlist.Not1:
			fmt.Fprintf(&buf, "\twires[%d] = wires[%d] ^ 1\n", g.Out, g.InA)
		case netlist.Buf1:
			fmt.Fprintf(&buf, "\twires[%d] = wires[%d]\n", g.Out, g.InA)
		case netlist.ConstBit0:
			fmt.Fprintf(&buf, "\twires[%d] = 0\n", g.Out)
		case netlist.ConstBit1:
			fmt.Fprintf(&buf, "\twires[%d] = 1\n", g.Out)
		}
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}
