// Package flatten implements the lowering pass from the behavioral/
// structural ir.Module IR to a flat netlist.Netlist: instance inlining,
// operator lowering to the six primitive gates, and bit-blasting of
// multi-bit nets into arrays of single-bit wires (spec.md §4.2).
//
// Instance inlining and operator lowering happen together, in one
// recursive elaboration pass: every ir.Net gets a fresh run of
// netlist.WireIDs (its "bit-blasted" form) the first time it is visited,
// submodule input ports reuse the parent's wires for that binding (a pure
// renaming, no gates), and submodule output ports are bound to the parent's
// wires the same way — so the submodule's own driver for an output port
// writes straight into the parent's binding net without an extra buffer
// gate.
package flatten

import (
	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/ir"
	"github.com/jmchacon/hwsim/netlist"
)

// elaborator carries the mutable state of a single Flatten call: the
// netlist under construction and the next unused WireID.
type elaborator struct {
	reg      *ir.Registry
	gates    []netlist.Gate
	dffs     []netlist.DFFBit
	nextWire netlist.WireID
	debug    map[string][]netlist.WireID
}

func (e *elaborator) fresh(n int) []netlist.WireID {
	out := make([]netlist.WireID, n)
	for i := range out {
		out[i] = e.nextWire
		e.nextWire++
	}
	return out
}

func (e *elaborator) gate(op netlist.GateOp, a, b netlist.WireID) netlist.WireID {
	out := e.fresh(1)[0]
	e.gates = append(e.gates, netlist.Gate{Op: op, InA: a, InB: b, Out: out})
	return out
}

func (e *elaborator) unaryGate(op netlist.GateOp, a netlist.WireID) netlist.WireID {
	return e.gate(op, a, netlist.AbsentWire)
}

func (e *elaborator) constWire(bit uint) netlist.WireID {
	op := netlist.ConstBit0
	if bit != 0 {
		op = netlist.ConstBit1
	}
	out := e.fresh(1)[0]
	e.gates = append(e.gates, netlist.Gate{Op: op, InA: netlist.AbsentWire, InB: netlist.AbsentWire, Out: out})
	return out
}

// netWires maps an ir.NetID (scoped to the module instance currently being
// elaborated) to its bit-blasted wires, LSB first.
type netWires map[ir.NetID][]netlist.WireID

// Flatten lowers the module named topName (and everything it instantiates,
// transitively) from reg into a flat netlist.Netlist. topName's own ports
// become the Netlist's Inputs/Outputs.
func Flatten(reg *ir.Registry, topName string) (*netlist.Netlist, error) {
	top, ok := reg.Lookup(topName)
	if !ok {
		return nil, errors.Errorf("flatten: module %q not found", topName)
	}
	if err := reg.CheckAcyclic(topName); err != nil {
		return nil, err
	}

	e := &elaborator{reg: reg, debug: map[string][]netlist.WireID{}}
	wires, err := e.elaborateModule(topName, top, netWires{})
	if err != nil {
		return nil, errors.Wrapf(err, "flattening %s", topName)
	}

	nl := &netlist.Netlist{
		Gates:      e.gates,
		DFFs:       e.dffs,
		WireCount:  int(e.nextWire),
		DebugNames: e.debug,
	}
	for _, p := range top.Ports {
		id, ok := top.PortNet(p.Name)
		if !ok {
			return nil, errors.Errorf("flatten: port %s has no backing net in %s", p.Name, topName)
		}
		port := netlist.Port{Name: p.Name, Wires: wires[id]}
		switch p.Dir {
		case ir.In:
			nl.Inputs = append(nl.Inputs, port)
		case ir.Out:
			nl.Outputs = append(nl.Outputs, port)
		case ir.Inout:
			nl.Inputs = append(nl.Inputs, port)
			nl.Outputs = append(nl.Outputs, port)
		}
	}
	return nl, nil
}

// elaborateModule lowers m (instantiated at the given dotted path, used
// only for diagnostics) into gates/DFFs appended to e, given the wires
// already bound for m's ports by the caller (none, for the top module). It
// returns the full netWires map for every Net in m, including freshly
// allocated wires for internal nets and any unbound ports.
func (e *elaborator) elaborateModule(path string, m *ir.Module, bound netWires) (netWires, error) {
	wires := netWires{}
	for k, v := range bound {
		wires[k] = v
	}
	for _, n := range m.Nets {
		if _, ok := wires[n.ID]; ok {
			continue
		}
		wires[n.ID] = e.fresh(int(n.Width))
	}
	for _, n := range m.Nets {
		if n.Name == "" {
			continue
		}
		e.debug[path+"."+n.Name] = wires[n.ID]
	}

	lowerOne := func(expr ir.Expr) ([]netlist.WireID, error) {
		return e.lowerExpr(expr, wires)
	}

	for _, a := range m.Assigns {
		bits, err := lowerOne(a.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: assign to net %d", path, a.Dest)
		}
		dest := wires[a.Dest]
		if len(bits) != len(dest) {
			return nil, errors.Errorf("%s: assign width mismatch for net %d: want %d got %d", path, a.Dest, len(dest), len(bits))
		}
		for i, b := range bits {
			e.alias(dest[i], b)
		}
	}

	for _, d := range m.DFFs {
		dBits := wires[d.D]
		qBits := wires[d.Q]
		clkBits := wires[d.Clk]
		if len(dBits) != len(qBits) {
			return nil, errors.Errorf("%s: DFF D/Q width mismatch", path)
		}
		var rstWire netlist.WireID = netlist.AbsentWire
		if d.HasRst {
			rstWire = wires[d.Rst][0]
		}
		var enWire netlist.WireID = netlist.AbsentWire
		if d.HasEn {
			enWire = wires[d.En][0]
		}
		for i := range dBits {
			rv := byte(0)
			if d.HasRst && d.RstVal != nil && d.RstVal.Bit(i) == 1 {
				rv = 1
			}
			e.dffs = append(e.dffs, netlist.DFFBit{
				D: dBits[i], Q: qBits[i], Clk: clkBits[0],
				HasRst: d.HasRst, Rst: rstWire, RstValue: rv,
				HasEn: d.HasEn, En: enWire,
			})
		}
	}

	for _, inst := range m.Instances {
		sub, ok := e.reg.Lookup(inst.Module)
		if !ok {
			return nil, errors.Errorf("%s: instance %s references unknown module %s", path, inst.Name, inst.Module)
		}
		childBound := netWires{}
		for _, s := range sub.Ports {
			portID, ok := sub.PortNet(s.Name)
			if !ok {
				return nil, errors.Errorf("%s: submodule %s missing net for port %s", path, inst.Module, s.Name)
			}
			parentID, ok := inst.Bindings[s.Name]
			if !ok {
				return nil, errors.Errorf("%s: instance %s missing binding for port %s", path, inst.Name, s.Name)
			}
			childBound[portID] = wires[parentID]
		}
		childWires, err := e.elaborateModule(path+"."+inst.Name, sub, childBound)
		if err != nil {
			return nil, err
		}
		for _, s := range sub.Ports {
			if s.Dir != ir.Out && s.Dir != ir.Inout {
				continue
			}
			portID, ok := sub.PortNet(s.Name)
			if !ok {
				continue
			}
			parentID, ok := inst.Bindings[s.Name]
			if !ok {
				return nil, errors.Errorf("%s: instance %s missing binding for output port %s", path, inst.Name, s.Name)
			}
			wires[parentID] = childWires[portID]
		}
	}

	return wires, nil
}

// alias records that dest and src are the same signal: dest's only "driver"
// is a Buf1 of src, one per aliased bit. Emitting a Buf1 is always correct and keeps the elaborator
// simple; downstream interpreter/JIT cost from a Buf1 chain is negligible
// next to the arithmetic/mux gates that dominate real designs.
func (e *elaborator) alias(dest, src netlist.WireID) {
	e.gates = append(e.gates, netlist.Gate{Op: netlist.Buf1, InA: src, InB: netlist.AbsentWire, Out: dest})
}
