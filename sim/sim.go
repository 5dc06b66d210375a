// Package sim defines the driver-facing Simulator contract (spec.md §7)
// and the four-phase synchronous cycle algorithm shared by every backend
// (package sim/interp, sim/jit, sim/aot). The only thing a backend supplies
// is a CombFunc that re-evaluates the combinational subgraph in schedule
// order; DFF latching, reset precedence, and the memory-bus hook are
// implemented once, here, so the three engines cannot drift apart on
// anything but raw evaluation speed.
package sim

import (
	"log"

	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/netlist"
)

// Backend names one of the three interchangeable simulation engines.
type Backend int

const (
	Interp Backend = iota
	Jit
	Aot
)

func (b Backend) String() string {
	switch b {
	case Interp:
		return "interp"
	case Jit:
		return "jit"
	case Aot:
		return "aot"
	default:
		return "unknown"
	}
}

// Bus is the memory-mapped hook a host attaches for designs exposing the
// distinguished mem_* ports (netlist.MemBusPorts). Read/Write are called at
// most once per cycle, in that order, only when the corresponding enable
// line is asserted (spec.md §4.5).
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// CombFunc re-evaluates every gate in wires, in an order that is safe given
// the Netlist's schedule (module inputs and DFF.Q values are assumed
// already current). Each backend provides its own: sim/interp walks
// schedule.Order directly, sim/jit runs compiled bytecode, sim/aot calls
// into a loaded plugin.
type CombFunc func(wires []byte)

// Simulator is the engine-independent core of the driver API. It owns the
// wire vector and DFF state; a backend only contributes comb, its
// combinational re-evaluation function.
type Simulator struct {
	nl      *netlist.Netlist
	backend Backend
	comb    CombFunc

	wires   []byte
	dffNext []byte // staged next-Q value per DFF index, latched at commit

	bus     Bus
	cycles  uint64
}

// New wraps a Netlist and a backend-supplied CombFunc into a Simulator.
// Backends call this from their own constructors; it is not meant to be
// called directly by driver code (use sim/interp.New, sim/jit.New, or
// sim/aot's Cache.Build instead).
func New(nl *netlist.Netlist, backend Backend, comb CombFunc) *Simulator {
	s := &Simulator{
		nl:      nl,
		backend: backend,
		wires:   make([]byte, nl.WireCount),
		dffNext: make([]byte, len(nl.DFFs)),
	}
	// Asynchronous reset is continuous: after every combinational pass, any
	// DFF whose reset line is asserted is forced to its reset value, and the
	// pass is re-run so logic reading that Q settles.
	s.comb = func(wires []byte) {
		comb(wires)
		forced := false
		for _, d := range nl.DFFs {
			if d.HasRst && wires[d.Rst] == 1 && wires[d.Q] != d.RstValue {
				wires[d.Q] = d.RstValue
				forced = true
			}
		}
		if forced {
			comb(wires)
		}
	}
	s.Reset()
	return s
}

// AttachBus installs the memory-bus callback. It is a no-op (but logged) if
// the Netlist does not expose the distinguished mem_* ports.
func (s *Simulator) AttachBus(bus Bus) {
	if !s.nl.HasMemBus() {
		log.Printf("sim: AttachBus called on a design with no mem bus ports; ignoring")
		return
	}
	s.bus = bus
}

// Backend reports which engine this Simulator is running.
func (s *Simulator) Backend() Backend { return s.backend }

// CycleCount returns the number of Step cycles executed since the last
// Reset.
func (s *Simulator) CycleCount() uint64 { return s.cycles }

// Reset clears every wire to 0, clears all DFF outputs to their reset value
// (or 0, if the bit has no reset), and runs one combinational pass so
// outputs are consistent before the first Step.
func (s *Simulator) Reset() {
	for i := range s.wires {
		s.wires[i] = 0
	}
	for i, d := range s.nl.DFFs {
		v := byte(0)
		if d.HasRst {
			v = d.RstValue
		}
		s.wires[d.Q] = v
		s.dffNext[i] = v
	}
	s.cycles = 0
	s.comb(s.wires)
}

// WritePort drives an input port to value, low bit first, zero extended to
// the port's width. It returns PortNotFound if name is not an
// input port and InvalidValue if value does not fit in the port's width.
func (s *Simulator) WritePort(name string, value uint64) error {
	p, ok := s.nl.InputPort(name)
	if !ok {
		return PortNotFound{Port: name}
	}
	if len(p.Wires) < 64 && value>>uint(len(p.Wires)) != 0 {
		return InvalidValue{Port: name, Value: value, Width: len(p.Wires)}
	}
	for i, w := range p.Wires {
		s.wires[w] = byte((value >> uint(i)) & 1)
	}
	return nil
}

// ReadPort returns an output port's current value (or, for an input port,
// the value last driven via WritePort/the memory bus), low bit first.
func (s *Simulator) ReadPort(name string) (uint64, error) {
	if p, ok := s.nl.OutputPort(name); ok {
		return packBits(s.wires, p.Wires), nil
	}
	if p, ok := s.nl.InputPort(name); ok {
		return packBits(s.wires, p.Wires), nil
	}
	return 0, PortNotFound{Port: name}
}

// PeekNet returns the single-bit value of a net named by its dotted
// instance path (e.g. "cpu.alu.adder.co" or "cpu.regs[3]" for bit 3 of a
// multi-bit net), for debug observability outside the canonical port
// surface.
func (s *Simulator) PeekNet(path string) (uint8, error) {
	wires, idx, err := resolveDebugPath(s.nl, path)
	if err != nil {
		return 0, err
	}
	if idx >= 0 {
		if idx >= len(wires) {
			return 0, errors.Errorf("peek_net: bit index %d out of range for %q (%d bits)", idx, path, len(wires))
		}
		return s.wires[wires[idx]], nil
	}
	if len(wires) != 1 {
		return 0, errors.Errorf("peek_net: %q is %d bits wide, use %q[i] to select a bit", path, len(wires), path)
	}
	return s.wires[wires[0]], nil
}

// Step advances the simulation by n clock cycles, running the four-phase
// synchronous algorithm from spec.md §4.3 once per cycle:
//
//  1. drive clk low, re-evaluate combinationally
//  2. drive clk high, re-evaluate combinationally (this is the active edge)
//  3. latch every DFF's next Q from its current D, honoring clock-enable
//     and giving asynchronous reset precedence over both D and enable
//  4. commit the latched values into the wire vector
//  5. drive clk low again, re-evaluate combinationally so outputs settle
//     before the next cycle's driver calls
//
// The memory bus, when attached, is serviced once per cycle: a read when
// mem_read_en is asserted happens after phase 1 (so mem_data_in is valid
// before the active edge latches anything depending on it), and a write
// when mem_write_en is asserted happens after phase 2 (spec.md §4.5's
// read-before-write-on-simultaneous-assertion rule falls out of this
// ordering for free, since read_en is serviced a full phase before
// write_en).
func (s *Simulator) Step(n int) error {
	for i := 0; i < n; i++ {
		if err := s.stepOne(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) stepOne() error {
	clk, hasClk := s.nl.InputPort("clk")

	setClk := func(v byte) {
		if hasClk {
			for _, w := range clk.Wires {
				s.wires[w] = v
			}
		}
	}

	setClk(0)
	s.comb(s.wires)

	if s.bus != nil {
		if err := s.serviceBusRead(); err != nil {
			return err
		}
		s.comb(s.wires)
	}

	setClk(1)
	s.comb(s.wires)

	if s.bus != nil {
		if err := s.serviceBusWrite(); err != nil {
			return err
		}
	}

	s.latchDFFs()
	s.commitDFFs()

	setClk(0)
	s.comb(s.wires)

	s.cycles++
	return nil
}

// latchDFFs computes, for every DFF bit, the value it will take on at
// commit: the reset value if HasRst and Rst is asserted (continuous
// asynchronous reset, so it overrides both D and the enable), else the
// current Q if HasEn and En is deasserted, else D.
func (s *Simulator) latchDFFs() {
	for i, d := range s.nl.DFFs {
		switch {
		case d.HasRst && s.wires[d.Rst] == 1:
			s.dffNext[i] = d.RstValue
		case d.HasEn && s.wires[d.En] == 0:
			s.dffNext[i] = s.wires[d.Q]
		default:
			s.dffNext[i] = s.wires[d.D]
		}
	}
}

func (s *Simulator) commitDFFs() {
	for i, d := range s.nl.DFFs {
		s.wires[d.Q] = s.dffNext[i]
	}
}

// lookupEitherPort finds name among either Outputs or Inputs: the
// mem_addr/mem_read_en/mem_write_en/mem_data_out lines are ordinarily
// driven by the design's own gates (Outputs), but a leaf design (or a test
// fixture) may expose them directly as Inputs instead, so both are
// accepted.
func (s *Simulator) lookupEitherPort(name string) (netlist.Port, bool) {
	if p, ok := s.nl.OutputPort(name); ok {
		return p, true
	}
	return s.nl.InputPort(name)
}

func (s *Simulator) serviceBusRead() error {
	ren, ok := s.lookupEitherPort("mem_read_en")
	if !ok || s.wires[ren.Wires[0]] == 0 {
		return nil
	}
	addrPort, _ := s.lookupEitherPort("mem_addr")
	addr := uint16(packBits(s.wires, addrPort.Wires))
	val := func() (v uint8) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("sim: bus read at %#04x panicked: %v", addr, r)
				v = 0
			}
		}()
		return s.bus.Read(addr)
	}()
	din, ok := s.nl.InputPort("mem_data_in")
	if !ok {
		return BusCallbackFailure{Op: "read", Addr: addr, Err: errors.New("design has no mem_data_in input port")}
	}
	for i, w := range din.Wires {
		s.wires[w] = byte((val >> uint(i)) & 1)
	}
	return nil
}

func (s *Simulator) serviceBusWrite() error {
	wen, ok := s.lookupEitherPort("mem_write_en")
	if !ok || s.wires[wen.Wires[0]] == 0 {
		return nil
	}
	addrPort, _ := s.lookupEitherPort("mem_addr")
	addr := uint16(packBits(s.wires, addrPort.Wires))
	doutPort, ok := s.lookupEitherPort("mem_data_out")
	if !ok {
		return BusCallbackFailure{Op: "write", Addr: addr, Err: errors.New("design has no mem_data_out output port")}
	}
	val := uint8(packBits(s.wires, doutPort.Wires))
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("sim: bus write at %#04x panicked: %v", addr, r)
			}
		}()
		s.bus.Write(addr, val)
	}()
	return nil
}

func packBits(wires []byte, ids []netlist.WireID) uint64 {
	var v uint64
	for i, w := range ids {
		if wires[w] != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}
