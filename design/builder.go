// Package design holds the reference hardware fixtures used by tests and
// cmd/hwsim: a half adder and ripple-carry adder (spec.md Scenarios A/C), an
// up-counter (Scenario B), a toy accumulator machine (Scenario D), and
// representative subsets of a 6502-shaped and an SM83-shaped core
// (Scenario E) built as plain ir.Module graphs.
//
// None of the CPU-shaped fixtures are an ISA-complete emulator: each wires
// up enough of a real instruction's datapath (register file, ALU, simple
// sequencing) to be a believable multi-thousand-gate netlist for
// cross-engine equivalence testing, not a production core.
package design

import "github.com/jmchacon/hwsim/ir"

// builder is a small helper for assembling an ir.Module by hand without
// re-deriving NetIDs at every call site, mirroring the dense-ID allocation
// style package flatten itself uses internally.
type builder struct {
	m      *ir.Module
	nextID ir.NetID
}

func newBuilder(name string) *builder {
	return &builder{m: &ir.Module{Name: name}}
}

// port declares a named port and its backing net in one step (the
// 1:1 port/net convention ir.Module.PortNet and package flatten assume).
func (b *builder) port(name string, dir ir.Direction, w ir.Width) ir.NetID {
	id := b.nextID
	b.nextID++
	b.m.Ports = append(b.m.Ports, ir.Signal{Name: name, Dir: dir, Width: w})
	b.m.Nets = append(b.m.Nets, ir.Net{ID: id, Name: name, Width: w})
	return id
}

// net declares an internal (non-port) net, named for debug visibility.
func (b *builder) net(name string, w ir.Width) ir.NetID {
	id := b.nextID
	b.nextID++
	b.m.Nets = append(b.m.Nets, ir.Net{ID: id, Name: name, Width: w})
	return id
}

// anon declares an unnamed intermediate net (no DebugNames entry).
func (b *builder) anon(w ir.Width) ir.NetID {
	id := b.nextID
	b.nextID++
	b.m.Nets = append(b.m.Nets, ir.Net{ID: id, Width: w})
	return id
}

func (b *builder) assign(dest ir.NetID, e ir.Expr) {
	b.m.Assigns = append(b.m.Assigns, ir.Assign{Dest: dest, Expr: e})
}

func (b *builder) dff(d ir.DFF) {
	b.m.DFFs = append(b.m.DFFs, d)
}

func (b *builder) instantiate(name, module string, bindings map[string]ir.NetID) {
	b.m.Instances = append(b.m.Instances, ir.Instance{Name: name, Module: module, Bindings: bindings})
}

func (b *builder) build() *ir.Module {
	return b.m
}

func ref(id ir.NetID, w ir.Width) ir.NetRef { return ir.NetRef{Net: id, W: w} }

func bin(tag ir.GateOpTag, w ir.Width, a, b ir.Expr) ir.GateExpr {
	return ir.GateExpr{Tag: tag, W: w, Args: []ir.Expr{a, b}}
}

func un(tag ir.GateOpTag, w ir.Width, a ir.Expr) ir.GateExpr {
	return ir.GateExpr{Tag: tag, W: w, Args: []ir.Expr{a}}
}
