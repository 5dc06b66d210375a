// Package interp is the reference simulation engine: it re-evaluates a
// Netlist's gates directly, in schedule order, on every combinational
// pass. It has no compilation step and is the simplest of the three
// engines to audit, so it is also what sim/jit and sim/aot are verified
// against (spec.md §9, invariant 2: cross-engine trace identity).
package interp

import (
	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/netlist"
	"github.com/jmchacon/hwsim/schedule"
	"github.com/jmchacon/hwsim/sim"
)

// New builds an interpreter-backed Simulator for nl.
func New(nl *netlist.Netlist) (*sim.Simulator, error) {
	sched, err := schedule.Build(nl)
	if err != nil {
		return nil, errors.Wrap(err, "interp: building schedule")
	}
	gates := nl.Gates
	order := sched.Order

	comb := func(wires []byte) {
		for _, gi := range order {
			g := gates[gi]
			wires[g.Out] = evalGate(g, wires)
		}
	}
	return sim.New(nl, sim.Interp, comb), nil
}

func evalGate(g netlist.Gate, wires []byte) byte {
	switch g.Op {
	case netlist.And2:
		return wires[g.InA] & wires[g.InB]
	case netlist.Or2:
		return wires[g.InA] | wires[g.InB]
	case netlist.Xor2:
		return wires[g.InA] ^ wires[g.InB]
	case netlist.Not1:
		return wires[g.InA] ^ 1
	case netlist.Buf1:
		return wires[g.InA]
	case netlist.ConstBit0:
		return 0
	case netlist.ConstBit1:
		return 1
	default:
		panic("interp: unknown gate op " + g.Op.String())
	}
}
