package design

import (
	"testing"

	"github.com/jmchacon/hwsim/flatten"
	"github.com/jmchacon/hwsim/ir"
	"github.com/jmchacon/hwsim/memory"
	"github.com/jmchacon/hwsim/sim/interp"
	"github.com/jmchacon/hwsim/sim/jit"
)

// TestMOS6502CrossEngineDivergenceGuard drives the interpreter and JIT
// engines against the same MOS6502-shaped core, from reset, sampling the
// pc and acc ports every 500 cycles across 10,000 cycles (spec.md §9
// Scenario E). It reports the first diverging sample rather than just the
// last, since a later mismatch is less useful for tracking down which
// cycle the engines first disagreed on.
func TestMOS6502CrossEngineDivergenceGuard(t *testing.T) {
	// A small self-looping program keeps the core busy indefinitely
	// without ever halting: LDAI, ADC, STA, JP back to the top.
	op := func(code uint8, lo, hi uint8) [3]uint8 { return [3]uint8{code << 4, lo, hi} }
	var program []uint8
	for _, ins := range [][3]uint8{
		op(MOSOpLDAI, 1, 0),  // 0: acc <- 1
		op(MOSOpADC, 0x20, 0), // 3: acc <- acc + mem[0x20]
		op(MOSOpSTA, 0x20, 0), // 6: mem[0x20] <- acc
		op(MOSOpJMP, 0, 0),    // 9: pc <- 0
	} {
		program = append(program, ins[:]...)
	}

	newEngines := func() (interpSim, jitSim *memRouterSim) {
		rom, err := memory.NewROMBank(32, program, nil)
		if err != nil {
			t.Fatal(err)
		}
		ramI, err := memory.NewRAMBank(32, nil)
		if err != nil {
			t.Fatal(err)
		}
		rtI := memory.NewRouter(nil)
		rtI.Map(0, 32, rom)
		rtI.Map(32, 32, ramI)

		romJ, err := memory.NewROMBank(32, program, nil)
		if err != nil {
			t.Fatal(err)
		}
		ramJ, err := memory.NewRAMBank(32, nil)
		if err != nil {
			t.Fatal(err)
		}
		rtJ := memory.NewRouter(nil)
		rtJ.Map(0, 32, romJ)
		rtJ.Map(32, 32, ramJ)

		reg := ir.NewRegistry()
		m := MOS6502()
		if err := reg.Register(m); err != nil {
			t.Fatal(err)
		}
		nl, err := flatten.Flatten(reg, m.Name)
		if err != nil {
			t.Fatalf("Flatten: %v", err)
		}

		is, err := interp.New(nl)
		if err != nil {
			t.Fatal(err)
		}
		is.AttachBus(rtI)

		js, err := jit.New(nl)
		if err != nil {
			t.Fatal(err)
		}
		js.AttachBus(rtJ)

		return &memRouterSim{s: is}, &memRouterSim{s: js}
	}

	isSim, jsSim := newEngines()

	const totalCycles = 10000
	const sampleEvery = 500
	for i := 1; i <= totalCycles; i++ {
		if err := isSim.step(); err != nil {
			t.Fatalf("interp: step %d: %v", i, err)
		}
		if err := jsSim.step(); err != nil {
			t.Fatalf("jit: step %d: %v", i, err)
		}
		if i%sampleEvery != 0 {
			continue
		}
		iPC, iAcc := isSim.pcAcc(t)
		jPC, jAcc := jsSim.pcAcc(t)
		if iPC != jPC || iAcc != jAcc {
			t.Fatalf("engines diverge at cycle %d: interp(pc=%d,acc=%d) jit(pc=%d,acc=%d)", i, iPC, iAcc, jPC, jAcc)
		}
	}
}

// memRouterSim is a tiny helper binding a *sim.Simulator's narrow
// interface this test needs, so newEngines can return both backends
// through the same shape.
type memRouterSim struct {
	s interface {
		Step(n int) error
		ReadPort(name string) (uint64, error)
	}
}

func (m *memRouterSim) step() error { return m.s.Step(1) }

func (m *memRouterSim) pcAcc(t *testing.T) (uint64, uint64) {
	t.Helper()
	pc, err := m.s.ReadPort("pc")
	if err != nil {
		t.Fatal(err)
	}
	acc, err := m.s.ReadPort("acc")
	if err != nil {
		t.Fatal(err)
	}
	return pc, acc
}
