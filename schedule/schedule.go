// Package schedule topologically orders a netlist.Netlist's gates so that,
// within one delta-cycle, every gate is evaluated after its drivers
// (spec.md §4.3). DFF outputs are treated as sources and DFF inputs as
// sinks, which is what lets a synchronous design's combinational graph be a
// DAG at all; schedule never looks past a DFF boundary.
package schedule

import (
	"fmt"
	"sort"

	"github.com/jmchacon/hwsim/netlist"
)

// CyclicCombinational is raised when the gate-only subgraph (treating DFF.Q
// as sources and DFF.D as sinks) is not a DAG.
type CyclicCombinational struct {
	Wire netlist.WireID
}

func (e CyclicCombinational) Error() string {
	return fmt.Sprintf("cyclic combinational path through wire %d", e.Wire)
}

// Schedule is a deterministic ordering of gate indices into n.Gates such
// that for every gate at Order[i], both of its driving wires are module
// inputs, DFF.Q outputs, or the output of some gate at an earlier Order
// position.
type Schedule struct {
	Order []int // indices into the Netlist's Gates slice
}

// Build computes the Schedule for n. Tie-breaking among gates with equally
// satisfied dependencies is by ascending output WireID, so the ordering is
// deterministic and reproducible across every backend — the three engines
// rely on this to produce identical peek values at identical cycles
// (spec.md §4.3, invariant 4).
func Build(n *netlist.Netlist) (*Schedule, error) {
	// A wire is "ready" (available to downstream gates without waiting on
	// this delta-cycle's combinational pass) if it is a module input or a
	// DFF's Q output.
	ready := make([]bool, n.WireCount)
	for _, p := range n.Inputs {
		for _, w := range p.Wires {
			ready[w] = true
		}
	}
	for _, d := range n.DFFs {
		ready[d.Q] = true
	}

	driverOf := make([]int, n.WireCount)
	for i := range driverOf {
		driverOf[i] = -1
	}
	for gi, g := range n.Gates {
		driverOf[g.Out] = gi
	}

	scheduled := make([]bool, len(n.Gates))
	var order []int

	for len(order) < len(n.Gates) {
		var frontier []int
		for gi, g := range n.Gates {
			if scheduled[gi] {
				continue
			}
			if gateReady(g, ready) {
				frontier = append(frontier, gi)
			}
		}
		if len(frontier) == 0 {
			// No progress possible: find an unscheduled gate to report.
			for gi := range n.Gates {
				if !scheduled[gi] {
					return nil, CyclicCombinational{Wire: n.Gates[gi].Out}
				}
			}
		}
		sort.Slice(frontier, func(i, j int) bool {
			return n.Gates[frontier[i]].Out < n.Gates[frontier[j]].Out
		})
		for _, gi := range frontier {
			scheduled[gi] = true
			ready[n.Gates[gi].Out] = true
			order = append(order, gi)
		}
	}
	return &Schedule{Order: order}, nil
}

func gateReady(g netlist.Gate, ready []bool) bool {
	if !g.Op.IsUnary() {
		if !ready[g.InA] || !ready[g.InB] {
			return false
		}
		return true
	}
	if g.Op == netlist.ConstBit0 || g.Op == netlist.ConstBit1 {
		return true
	}
	return ready[g.InA]
}
