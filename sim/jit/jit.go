// Package jit compiles a Netlist's scheduled gate list into a flat
// bytecode program ahead of the first Step, trading interp's per-gate
// struct indirection and op-code switch for a pre-resolved array of
// trampolined closures. It is not a machine-code JIT: spec.md only
// requires that this engine be interchangeable with, and bit-identical to,
// the interpreter, and a safe bytecode compiler gets the performance
// characteristics of ahead-of-time dispatch without unsafe code generation.
package jit

import (
	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/netlist"
	"github.com/jmchacon/hwsim/schedule"
	"github.com/jmchacon/hwsim/sim"
)

// maxProgramSize bounds how many instructions Compile will accept before
// reporting JitCodegenFailed; it exists so pathologically large designs
// fail fast with a clear error instead of allocating an unreasonable
// instruction array. 16M gates is far beyond anything spec.md's reference
// designs exercise (the largest, a representative CPU subset, is on the
// order of 2000 gates).
const maxProgramSize = 16 << 20

// op is a trampolined instruction: Fn reads InA/InB from wires and writes
// Out. Using a func value per instruction (resolved once, at compile time)
// avoids re-dispatching on Op for every instruction on every cycle, unlike
// sim/interp's switch-per-gate loop.
type op struct {
	Fn       func(wires []byte, a, b byte) byte
	InA, InB netlist.WireID
	Out      netlist.WireID
}

// Program is the compiled form of a Netlist's combinational subgraph.
type Program struct {
	ops []op
}

// run executes every instruction in program order, which Compile has
// already arranged to respect the Netlist's schedule.
func (p *Program) run(wires []byte) {
	for _, o := range p.ops {
		var a, b byte
		if o.InA != netlist.AbsentWire {
			a = wires[o.InA]
		}
		if o.InB != netlist.AbsentWire {
			b = wires[o.InB]
		}
		wires[o.Out] = o.Fn(wires, a, b)
	}
}

var dispatch = map[netlist.GateOp]func(wires []byte, a, b byte) byte{
	netlist.And2:      func(wires []byte, a, b byte) byte { return a & b },
	netlist.Or2:       func(wires []byte, a, b byte) byte { return a | b },
	netlist.Xor2:       func(wires []byte, a, b byte) byte { return a ^ b },
	netlist.Not1:      func(wires []byte, a, b byte) byte { return a ^ 1 },
	netlist.Buf1:      func(wires []byte, a, b byte) byte { return a },
	netlist.ConstBit0: func(wires []byte, a, b byte) byte { return 0 },
	netlist.ConstBit1: func(wires []byte, a, b byte) byte { return 1 },
}

// Compile lowers nl's scheduled gates into a Program. It returns
// sim.JitCodegenFailed if the design exceeds maxProgramSize or uses a gate
// op the dispatch table doesn't recognize (the latter should be
// unreachable given package flatten only ever emits the six primitive
// ops, but Compile checks anyway rather than trusting its input blindly).
func Compile(nl *netlist.Netlist) (*Program, error) {
	sched, err := schedule.Build(nl)
	if err != nil {
		return nil, errors.Wrap(err, "jit: building schedule")
	}
	if len(sched.Order) > maxProgramSize {
		return nil, sim.JitCodegenFailed{Reason: errors.Errorf("%d gates exceeds max program size %d", len(sched.Order), maxProgramSize).Error()}
	}
	ops := make([]op, len(sched.Order))
	for i, gi := range sched.Order {
		g := nl.Gates[gi]
		fn, ok := dispatch[g.Op]
		if !ok {
			return nil, sim.JitCodegenFailed{Reason: "unrecognized gate op " + g.Op.String()}
		}
		ops[i] = op{Fn: fn, InA: g.InA, InB: g.InB, Out: g.Out}
	}
	return &Program{ops: ops}, nil
}

// New builds a JIT-backed Simulator for nl, falling back to an error
// rather than silently degrading to the interpreter: callers that want
// interp-on-failure behavior (as cmd/hwsim does) can catch
// sim.JitCodegenFailed and call interp.New themselves.
func New(nl *netlist.Netlist) (*sim.Simulator, error) {
	prog, err := Compile(nl)
	if err != nil {
		return nil, err
	}
	return sim.New(nl, sim.Jit, prog.run), nil
}
