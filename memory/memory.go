// Package memory implements the address-space banks that back a design's
// memory-mapped bus hook (spec.md §4.5): RAM, ROM, and a Router that
// dispatches by address range. Every Bank also satisfies sim.Bus directly,
// so any Bank can be handed straight to Simulator.AttachBus.
package memory

import "fmt"

// Bank is a byte-addressable memory region. Read/Write give it the same
// shape as sim.Bus, so a Bank needs no adapter to be attached to a
// Simulator; PowerOn, Parent, and DatabusVal support composing several
// Banks behind a Router the way a real address-mapped system does.
type Bank interface {
	// Read returns the data byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with the new value. For a ROM bank this is a
	// no-op without error, matching real memory-mapped hardware.
	Write(addr uint16, val uint8)
	// PowerOn resets the bank to its power-on state.
	PowerOn()
	// Parent holds a reference (if non-nil) to the enclosing Router, so a
	// leaf bank can find the bus-wide last-driven value.
	Parent() Bank
	// DatabusVal returns the last value that crossed this bank's portion
	// of the data bus.
	DatabusVal() uint8
}

// LatestDatabusVal walks up a chain of Banks to the outermost one and
// returns its DatabusVal, mirroring how an open (unmapped) address read on
// real hardware returns whatever value last appeared on the shared bus.
func LatestDatabusVal(b Bank) uint8 {
	if b.Parent() != nil {
		return LatestDatabusVal(b.Parent())
	}
	return b.DatabusVal()
}

// ram is a flat, fully read/write address range.
type ram struct {
	data       []uint8
	parent     Bank
	databusVal uint8
}

// NewRAMBank creates a R/W RAM bank of the given size. size must be a
// power of 2; addresses are masked (aliased) to fit, matching how a real
// decoder with too few address lines behaves.
func NewRAMBank(size int, parent Bank) (Bank, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("invalid size: %d must be a power of 2", size)
	}
	if size > 1<<16 {
		return nil, fmt.Errorf("invalid size: %d is bigger than 64k", size)
	}
	return &ram{data: make([]uint8, size), parent: parent}, nil
}

func (r *ram) Read(addr uint16) uint8 {
	addr &= uint16(len(r.data) - 1)
	val := r.data[addr]
	r.databusVal = val
	return val
}

func (r *ram) Write(addr uint16, val uint8) {
	addr &= uint16(len(r.data) - 1)
	r.databusVal = val
	r.data[addr] = val
}

// PowerOn zeroes the bank. Simulation determinism (spec.md §9) requires
// power-on state to be reproducible run to run, unlike the time-seeded
// randomization a physical SRAM's undefined power-on state would model.
func (r *ram) PowerOn() {
	for i := range r.data {
		r.data[i] = 0
	}
}

func (r *ram) Parent() Bank      { return r.parent }
func (r *ram) DatabusVal() uint8 { return r.databusVal }

// rom is a fixed, read-only address range; Write is a no-op.
type rom struct {
	data       []uint8
	parent     Bank
	databusVal uint8
}

// NewROMBank creates a read-only bank preloaded with image. Size must be a
// power of 2; image is copied and, if shorter than size, zero-padded.
func NewROMBank(size int, image []uint8, parent Bank) (Bank, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("invalid size: %d must be a power of 2", size)
	}
	if len(image) > size {
		return nil, fmt.Errorf("image of %d bytes does not fit in a %d byte ROM", len(image), size)
	}
	data := make([]uint8, size)
	copy(data, image)
	return &rom{data: data, parent: parent}, nil
}

func (r *rom) Read(addr uint16) uint8 {
	addr &= uint16(len(r.data) - 1)
	val := r.data[addr]
	r.databusVal = val
	return val
}

func (r *rom) Write(addr uint16, val uint8) {
	r.databusVal = val
}

func (r *rom) PowerOn()          {}
func (r *rom) Parent() Bank      { return r.parent }
func (r *rom) DatabusVal() uint8 { return r.databusVal }

// mapping is one Router entry: addresses in [base, base+size) are routed
// to bank, with addr-base handed to it as the local address.
type mapping struct {
	base uint16
	size uint16
	bank Bank
}

// Router dispatches Read/Write to one of several Banks by address range,
// and is itself a Bank (so Routers can nest). An address not covered by
// any mapping reads as the bus-wide last-driven value and discards writes,
// matching open-bus behavior on real hardware.
type Router struct {
	parent     Bank
	maps       []mapping
	databusVal uint8
}

// NewRouter builds an empty Router. Use Map to register address ranges
// before attaching it as a design's sim.Bus.
func NewRouter(parent Bank) *Router {
	return &Router{parent: parent}
}

// Map registers bank at [base, base+size). It panics on overlap with an
// existing mapping, since that is a configuration bug in the caller, not a
// runtime condition to recover from.
func (rt *Router) Map(base uint16, size uint16, bank Bank) {
	for _, m := range rt.maps {
		if uint32(base) < uint32(m.base)+uint32(m.size) && uint32(m.base) < uint32(base)+uint32(size) {
			panic(fmt.Sprintf("memory: mapping [%#04x,%#04x) overlaps existing [%#04x,%#04x)", base, uint32(base)+uint32(size), m.base, uint32(m.base)+uint32(m.size)))
		}
	}
	rt.maps = append(rt.maps, mapping{base: base, size: size, bank: bank})
}

func (rt *Router) find(addr uint16) (mapping, bool) {
	for _, m := range rt.maps {
		if addr >= m.base && uint32(addr) < uint32(m.base)+uint32(m.size) {
			return m, true
		}
	}
	return mapping{}, false
}

func (rt *Router) Read(addr uint16) uint8 {
	if m, ok := rt.find(addr); ok {
		val := m.bank.Read(addr - m.base)
		rt.databusVal = val
		return val
	}
	return LatestDatabusVal(rt)
}

func (rt *Router) Write(addr uint16, val uint8) {
	if m, ok := rt.find(addr); ok {
		m.bank.Write(addr-m.base, val)
	}
	rt.databusVal = val
}

func (rt *Router) PowerOn() {
	for _, m := range rt.maps {
		m.bank.PowerOn()
	}
}

func (rt *Router) Parent() Bank      { return rt.parent }
func (rt *Router) DatabusVal() uint8 { return rt.databusVal }
