package ir

import "github.com/pkg/errors"

// portSet returns the set of NetIDs bound to an In or Inout port (these are
// driven externally, not by an Assign or DFF).
func (m *Module) portSet() map[NetID]bool {
	ports := map[NetID]bool{}
	for _, s := range m.Ports {
		if s.Dir == In || s.Dir == Inout {
			if id, ok := m.PortNet(s.Name); ok {
				ports[id] = true
			}
		}
	}
	return ports
}

// Validate checks the single-definer invariant (every Net is driven by
// exactly one of: an Assign, a DFF.Q, an input port binding, or an
// instantiated submodule's output port), width consistency of every Assign
// and DFF, and that every GateOpTag referenced is within the known
// enumeration.
//
// reg is used to resolve each Instance's submodule so its output (and
// inout) ports can be counted as drivers of the parent nets they're bound
// to; it may be nil for a module with no Instances. A module with
// Instances validated against a nil reg will spuriously report
// UndrivenNet for nets solely driven by a submodule's outputs, since there
// is then no way to tell an output binding from an input one.
func (m *Module) Validate(reg *Registry) error {
	driverCount := map[NetID]int{}
	ports := m.portSet()
	for id := range ports {
		driverCount[id]++
	}
	for _, a := range m.Assigns {
		driverCount[a.Dest]++
		dn, ok := m.NetByID(a.Dest)
		if !ok {
			return errors.Errorf("%s: assign to unknown net %d", m.Name, a.Dest)
		}
		if dn.Width != a.Expr.Width() {
			return errors.Wrapf(WidthMismatch{Entity: m.Name + "." + dn.Name, Want: dn.Width, Got: a.Expr.Width()}, "validating module %s", m.Name)
		}
		if err := validateExpr(a.Expr); err != nil {
			return errors.Wrapf(err, "validating module %s assign to %s", m.Name, dn.Name)
		}
	}
	for _, d := range m.DFFs {
		driverCount[d.Q]++
		dn, ok := m.NetByID(d.D)
		if !ok {
			return errors.Errorf("%s: DFF with unknown D net %d", m.Name, d.D)
		}
		qn, ok := m.NetByID(d.Q)
		if !ok {
			return errors.Errorf("%s: DFF with unknown Q net %d", m.Name, d.Q)
		}
		if dn.Width != qn.Width {
			return errors.Wrapf(WidthMismatch{Entity: m.Name + "." + qn.Name, Want: dn.Width, Got: qn.Width}, "validating module %s DFF", m.Name)
		}
		if clk, ok := m.NetByID(d.Clk); !ok || clk.Width != 1 {
			return errors.Errorf("%s: DFF clock net must be 1 bit wide", m.Name)
		}
	}
	if reg != nil {
		for _, inst := range m.Instances {
			sub, ok := reg.Lookup(inst.Module)
			if !ok {
				return errors.Errorf("%s: instance %s references unknown module %s", m.Name, inst.Name, inst.Module)
			}
			for _, s := range sub.Ports {
				if s.Dir != Out && s.Dir != Inout {
					continue
				}
				if netID, ok := inst.Bindings[s.Name]; ok {
					driverCount[netID]++
				}
			}
		}
	}

	for _, n := range m.Nets {
		switch driverCount[n.ID] {
		case 0:
			return errors.WithStack(UndrivenNet{Module: m.Name, Net: n.Name})
		case 1:
			// OK.
		default:
			return errors.WithStack(MultiplyDriven{Module: m.Name, Net: n.Name})
		}
	}
	return nil
}

func validateExpr(e Expr) error {
	switch v := e.(type) {
	case NetRef, ConstExpr:
		return nil
	case GateExpr:
		if v.Tag < OpAnd || v.Tag > OpExtend {
			return errors.WithStack(UnknownOperator{Op: v.Tag})
		}
		for _, a := range v.Args {
			if err := validateExpr(a); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("unrecognized expression type %T", e)
	}
}
