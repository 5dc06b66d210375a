// Command hwsim is the reference headless driver: it loads one of the
// design fixtures, flattens it, steps it on the requested backend, and
// reports port values. It mirrors the teacher's vcs_main.go/disassembler.go
// CLI shape (package-level flag vars, log.Fatalf on setup errors) with the
// rendering/cart-loading stripped out, since this core is headless.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jmchacon/hwsim/design"
	"github.com/jmchacon/hwsim/flatten"
	"github.com/jmchacon/hwsim/ir"
	"github.com/jmchacon/hwsim/memory"
	"github.com/jmchacon/hwsim/netlist"
	"github.com/jmchacon/hwsim/sim"
	"github.com/jmchacon/hwsim/sim/aot"
	"github.com/jmchacon/hwsim/sim/interp"
	"github.com/jmchacon/hwsim/sim/jit"
)

var (
	designName = flag.String("design", "half_adder", "Design to load: half_adder, ripple_adder, up_counter, accumulator, mos6502, sm83")
	backend    = flag.String("backend", "interp", "Simulation backend: interp, jit, or aot")
	cycles     = flag.Int("cycles", 1, "Number of clock cycles to step")
	width      = flag.Int("width", 8, "Bit width for the ripple_adder/up_counter designs")
	romPath    = flag.String("rom", "", "Optional ROM image to load at address 0 for CPU designs")
	aotCache   = flag.String("aot-cache-dir", "", "Cache directory for the aot backend (required when -backend=aot)")
)

func main() {
	flag.Parse()

	reg := ir.NewRegistry()
	top, err := buildDesign(reg, *designName)
	if err != nil {
		log.Fatalf("hwsim: building design %q: %v", *designName, err)
	}
	if err := top.Validate(reg); err != nil {
		log.Fatalf("hwsim: validating design %q: %v", *designName, err)
	}
	if err := reg.Register(top); err != nil {
		log.Fatalf("hwsim: registering design %q: %v", *designName, err)
	}

	nl, err := flatten.Flatten(reg, top.Name)
	if err != nil {
		log.Fatalf("hwsim: flattening %q: %v", *designName, err)
	}
	fmt.Printf("hwsim: %s flattened to %d gates, %d DFFs, %d wires\n", *designName, len(nl.Gates), len(nl.DFFs), nl.WireCount)

	s, err := newSimulator(nl, *backend, top.Name)
	if err != nil {
		log.Fatalf("hwsim: constructing %s simulator: %v", *backend, err)
	}

	if nl.HasMemBus() {
		bus, err := buildBus(*romPath)
		if err != nil {
			log.Fatalf("hwsim: loading ROM %q: %v", *romPath, err)
		}
		s.AttachBus(bus)
	}

	if err := s.Step(*cycles); err != nil {
		log.Fatalf("hwsim: stepping %d cycles: %v", *cycles, err)
	}

	fmt.Printf("hwsim: ran %d cycles on backend %s\n", s.CycleCount(), s.Backend())
	for _, p := range nl.Outputs {
		v, err := s.ReadPort(p.Name)
		if err != nil {
			log.Fatalf("hwsim: reading port %s: %v", p.Name, err)
		}
		fmt.Printf("  %s = %#x\n", p.Name, v)
	}
}

// buildDesign constructs and registers (transitively, for designs built
// from submodule instances) the named ir.Module fixture from package
// design.
func buildDesign(reg *ir.Registry, name string) (*ir.Module, error) {
	switch strings.ToLower(name) {
	case "half_adder":
		return design.HalfAdder(), nil
	case "ripple_adder":
		return design.RippleAdder(reg, ir.Width(*width))
	case "up_counter":
		return design.UpCounter(ir.Width(*width)), nil
	case "accumulator":
		return design.Accumulator(), nil
	case "mos6502":
		return design.MOS6502(), nil
	case "sm83":
		return design.SM83(), nil
	default:
		return nil, fmt.Errorf("unknown design %q", name)
	}
}

func newSimulator(nl *netlist.Netlist, backendName, sourceModule string) (*sim.Simulator, error) {
	switch strings.ToLower(backendName) {
	case "interp":
		return interp.New(nl)
	case "jit":
		s, err := jit.New(nl)
		if errors.As(err, new(sim.JitCodegenFailed)) {
			log.Printf("hwsim: %v; falling back to interp", err)
			return interp.New(nl)
		}
		return s, err
	case "aot":
		if *aotCache == "" {
			return nil, fmt.Errorf("-aot-cache-dir is required for -backend=aot")
		}
		cache, err := aot.NewCache(*aotCache)
		if err != nil {
			return nil, err
		}
		s, err := cache.Build(nl, sourceModule)
		if errors.As(err, new(sim.AotBuildFailed)) {
			log.Printf("hwsim: %v; falling back to jit", err)
			return newSimulator(nl, "jit", sourceModule)
		}
		return s, err
	default:
		return nil, fmt.Errorf("unknown backend %q", backendName)
	}
}

// buildBus loads romPath (if set) as a 64KiB ROM-backed address space, or
// an empty RAM bank otherwise, for designs exposing the memory-bus ports.
func buildBus(romPath string) (sim.Bus, error) {
	if romPath == "" {
		ram, err := memory.NewRAMBank(1<<16, nil)
		if err != nil {
			return nil, err
		}
		return ram, nil
	}
	image, err := os.ReadFile(romPath)
	if err != nil {
		return nil, err
	}
	rom, err := memory.NewROMBank(1<<16, image, nil)
	if err != nil {
		return nil, err
	}
	return rom, nil
}
