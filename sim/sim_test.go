package sim

import (
	"testing"

	"github.com/jmchacon/hwsim/netlist"
)

func noopComb(wires []byte) {}

func TestStepLatchesD(t *testing.T) {
	nl := &netlist.Netlist{
		WireCount: 3,
		Inputs: []netlist.Port{
			{Name: "clk", Wires: []netlist.WireID{0}},
			{Name: "d", Wires: []netlist.WireID{1}},
		},
		Outputs: []netlist.Port{{Name: "q", Wires: []netlist.WireID{2}}},
		DFFs:    []netlist.DFFBit{{D: 1, Q: 2, Clk: 0}},
	}
	s := New(nl, Interp, noopComb)
	if err := s.WritePort("d", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(1); err != nil {
		t.Fatal(err)
	}
	q, err := s.ReadPort("q")
	if err != nil {
		t.Fatal(err)
	}
	if q != 1 {
		t.Errorf("q = %d, want 1", q)
	}
	if s.CycleCount() != 1 {
		t.Errorf("CycleCount() = %d, want 1", s.CycleCount())
	}
}

func TestAsyncResetTakesPrecedenceOverD(t *testing.T) {
	nl := &netlist.Netlist{
		WireCount: 4,
		Inputs: []netlist.Port{
			{Name: "clk", Wires: []netlist.WireID{0}},
			{Name: "d", Wires: []netlist.WireID{1}},
			{Name: "rst", Wires: []netlist.WireID{2}},
		},
		Outputs: []netlist.Port{{Name: "q", Wires: []netlist.WireID{3}}},
		DFFs:    []netlist.DFFBit{{D: 1, Q: 3, Clk: 0, HasRst: true, Rst: 2, RstValue: 0}},
	}
	s := New(nl, Interp, noopComb)
	_ = s.WritePort("rst", 1)
	_ = s.WritePort("d", 1)
	if err := s.Step(1); err != nil {
		t.Fatal(err)
	}
	q, _ := s.ReadPort("q")
	if q != 0 {
		t.Errorf("q = %d, want 0 (reset should override D)", q)
	}
}

func TestClockEnableHoldsQ(t *testing.T) {
	nl := &netlist.Netlist{
		WireCount: 4,
		Inputs: []netlist.Port{
			{Name: "clk", Wires: []netlist.WireID{0}},
			{Name: "d", Wires: []netlist.WireID{1}},
			{Name: "en", Wires: []netlist.WireID{2}},
		},
		Outputs: []netlist.Port{{Name: "q", Wires: []netlist.WireID{3}}},
		DFFs:    []netlist.DFFBit{{D: 1, Q: 3, Clk: 0, HasEn: true, En: 2}},
	}
	s := New(nl, Interp, noopComb)
	_ = s.WritePort("d", 1)
	_ = s.WritePort("en", 1)
	_ = s.Step(1)
	q, _ := s.ReadPort("q")
	if q != 1 {
		t.Fatalf("q = %d after enabled write, want 1", q)
	}
	_ = s.WritePort("d", 0)
	_ = s.WritePort("en", 0)
	_ = s.Step(1)
	q, _ = s.ReadPort("q")
	if q != 1 {
		t.Errorf("q = %d after disabled cycle, want 1 (enable low should hold)", q)
	}
}

func TestWritePortRejectsOversizedValue(t *testing.T) {
	nl := &netlist.Netlist{
		WireCount: 4,
		Inputs:    []netlist.Port{{Name: "a", Wires: []netlist.WireID{0, 1, 2, 3}}},
	}
	s := New(nl, Interp, noopComb)
	if err := s.WritePort("a", 0xFF); err == nil {
		t.Fatal("WritePort(0xFF) on a 4-bit port: want InvalidValue error")
	}
	if err := s.WritePort("a", 0xF); err != nil {
		t.Fatalf("WritePort(0xF) on a 4-bit port: %v", err)
	}
}

func TestReadPortUnknownName(t *testing.T) {
	nl := &netlist.Netlist{WireCount: 1}
	s := New(nl, Interp, noopComb)
	if _, err := s.ReadPort("nope"); err == nil {
		t.Fatal("ReadPort(\"nope\"): want PortNotFound")
	}
}

func TestPeekNetIndexed(t *testing.T) {
	nl := &netlist.Netlist{
		WireCount:  3,
		DebugNames: map[string][]netlist.WireID{"cpu.regs": {0, 1, 2}},
	}
	s := New(nl, Interp, noopComb)
	s.wires[1] = 1
	v, err := s.PeekNet("cpu.regs[1]")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("PeekNet(cpu.regs[1]) = %d, want 1", v)
	}
	if _, err := s.PeekNet("cpu.regs"); err == nil {
		t.Fatal("PeekNet on a multi-bit net without an index: want error")
	}
}

type stubBus struct {
	mem       map[uint16]uint8
	reads     []uint16
	writes    []uint16
}

func (b *stubBus) Read(addr uint16) uint8 {
	b.reads = append(b.reads, addr)
	return b.mem[addr]
}

func (b *stubBus) Write(addr uint16, val uint8) {
	b.writes = append(b.writes, addr)
	b.mem[addr] = val
}

// memBusNetlist models the realistic direction of a design's bus lines:
// address/enables/write-data are driven by the design's own logic
// (Outputs), while the read-data line is fed in from the bus (an Input).
// Since this fixture has no gates, the "Output" values are driven directly
// by the test as if they were design-internal registers.
func memBusNetlist() *netlist.Netlist {
	return &netlist.Netlist{
		WireCount: 22,
		Inputs: []netlist.Port{
			{Name: "clk", Wires: []netlist.WireID{0}},
			{Name: "rst", Wires: []netlist.WireID{1}},
			{Name: "mem_data_in", Wires: []netlist.WireID{10, 11, 12, 13, 14, 15, 16, 17}},
		},
		Outputs: []netlist.Port{
			{Name: "mem_addr", Wires: []netlist.WireID{2, 3, 4, 5, 6, 7, 8, 9}},
			{Name: "mem_read_en", Wires: []netlist.WireID{18}},
			{Name: "mem_write_en", Wires: []netlist.WireID{19}},
			{Name: "mem_data_out", Wires: []netlist.WireID{20, 21}},
		},
	}
}

func TestMemBusReadBeforeWrite(t *testing.T) {
	nl := memBusNetlist()
	if !nl.HasMemBus() {
		t.Fatal("HasMemBus() = false, want true")
	}
	bus := &stubBus{mem: map[uint16]uint8{5: 0x42}}
	// comb drives the Output bus lines directly from fixed wire values,
	// standing in for whatever gates would normally compute them.
	comb := func(wires []byte) {
		wires[2], wires[3], wires[4], wires[5] = 1, 0, 1, 0 // addr = 5
		wires[18] = 1                                       // mem_read_en
		wires[19] = 1                                       // mem_write_en
		wires[20], wires[21] = 1, 1                          // mem_data_out = 3
	}
	s := New(nl, Interp, comb)
	s.AttachBus(bus)

	if err := s.Step(1); err != nil {
		t.Fatal(err)
	}
	din, _ := s.ReadPort("mem_data_in")
	if din != 0x42 {
		t.Errorf("mem_data_in = %#x, want 0x42", din)
	}
	if len(bus.reads) != 1 || len(bus.writes) != 1 {
		t.Fatalf("reads=%v writes=%v, want exactly one of each", bus.reads, bus.writes)
	}
	if bus.mem[5] != 3 {
		t.Errorf("bus.mem[5] = %d, want 3", bus.mem[5])
	}
}

func TestBackendString(t *testing.T) {
	for b, want := range map[Backend]string{Interp: "interp", Jit: "jit", Aot: "aot"} {
		if got := b.String(); got != want {
			t.Errorf("Backend(%d).String() = %q, want %q", b, got, want)
		}
	}
}
