package ir

import (
	"math/big"

	"github.com/pkg/errors"
)

// EvalModule is the behavioral (pre-flatten) reference evaluator used only
// by cross-backend property tests (invariant 1: behavioral(M)(v) ==
// flatten_and_eval(M)(v)). Per the design note on "propagate until stable"
// fixed-point evaluation, this technique belongs here and nowhere in the
// hot simulation path — the flattened, scheduled Netlist is evaluated with
// a single ordered pass instead (package sim).
//
// inputs supplies a value for every In/Inout port Net of m. dffQ supplies
// the current Q value for every DFF in m (keyed by DFF.Q); callers
// representing a combinational-only module pass an empty map. Submodule
// instances are evaluated recursively; nested DFFs inside an instantiated
// submodule are not supported by this reference evaluator (sequential
// designs used by the property tests keep their DFFs at the top level) and
// return an error rather than silently mis-evaluating.
func EvalModule(reg *Registry, m *Module, inputs map[NetID]*big.Int, dffQ map[NetID]*big.Int) (map[NetID]*big.Int, error) {
	values := map[NetID]*big.Int{}
	for id, v := range inputs {
		values[id] = v
	}
	for _, d := range m.DFFs {
		q, ok := dffQ[d.Q]
		if !ok {
			return nil, errors.Errorf("%s: missing current state for DFF %s", m.Name, netName(m, d.Q))
		}
		values[d.Q] = q
	}

	// Fixed-point: repeatedly resolve any Assign or Instance whose operands
	// are now known, until a full pass makes no progress.
	remaining := make([]*Assign, len(m.Assigns))
	for i := range m.Assigns {
		remaining[i] = &m.Assigns[i]
	}
	remainingInst := make([]*Instance, len(m.Instances))
	for i := range m.Instances {
		remainingInst[i] = &m.Instances[i]
	}

	for pass := 0; pass < len(m.Assigns)+len(m.Instances)+2; pass++ {
		progress := false

		var stillAssigns []*Assign
		for _, a := range remaining {
			if v, ok := tryEval(a.Expr, values); ok {
				values[a.Dest] = v
				progress = true
			} else {
				stillAssigns = append(stillAssigns, a)
			}
		}
		remaining = stillAssigns

		var stillInst []*Instance
		for _, inst := range remainingInst {
			sub, ok := reg.Lookup(inst.Module)
			if !ok {
				return nil, errors.Errorf("%s: instance %s references unknown module %s", m.Name, inst.Name, inst.Module)
			}
			if len(sub.DFFs) > 0 {
				return nil, errors.Errorf("%s: instance %s has sequential submodule %s; behavioral evaluator only supports top-level DFFs", m.Name, inst.Name, inst.Module)
			}
			subIn, ready := bindInstanceInputs(sub, inst, values)
			if !ready {
				stillInst = append(stillInst, inst)
				continue
			}
			subOut, err := EvalModule(reg, sub, subIn, nil)
			if err != nil {
				return nil, errors.Wrapf(err, "evaluating instance %s", inst.Name)
			}
			for _, s := range sub.Ports {
				if s.Dir == Out || s.Dir == Inout {
					portID, ok := sub.PortNet(s.Name)
					if !ok {
						continue
					}
					parentID, ok := inst.Bindings[s.Name]
					if !ok {
						return nil, errors.Errorf("%s: instance %s missing binding for port %s", m.Name, inst.Name, s.Name)
					}
					values[parentID] = subOut[portID]
				}
			}
			progress = true
		}
		remainingInst = stillInst

		if len(remaining) == 0 && len(remainingInst) == 0 {
			break
		}
		if !progress {
			return nil, errors.Errorf("%s: evaluation did not converge (undriven or cyclic combinational net)", m.Name)
		}
	}
	if len(remaining) != 0 || len(remainingInst) != 0 {
		return nil, errors.Errorf("%s: evaluation did not converge", m.Name)
	}
	return values, nil
}

func bindInstanceInputs(sub *Module, inst *Instance, values map[NetID]*big.Int) (map[NetID]*big.Int, bool) {
	in := map[NetID]*big.Int{}
	for _, s := range sub.Ports {
		if s.Dir != In && s.Dir != Inout {
			continue
		}
		portID, ok := sub.PortNet(s.Name)
		if !ok {
			return nil, false
		}
		parentID, ok := inst.Bindings[s.Name]
		if !ok {
			return nil, false
		}
		v, ok := values[parentID]
		if !ok {
			return nil, false
		}
		in[portID] = v
	}
	return in, true
}

func netName(m *Module, id NetID) string {
	if n, ok := m.NetByID(id); ok {
		return n.Name
	}
	return "?"
}

// tryEval evaluates e if every NetRef it touches already has a value in
// values; returns ok=false (no error) if some operand is not yet known, so
// the caller can retry on a later fixed-point pass.
func tryEval(e Expr, values map[NetID]*big.Int) (*big.Int, bool) {
	switch v := e.(type) {
	case ConstExpr:
		return new(big.Int).Set(v.Val.Value), true
	case NetRef:
		val, ok := values[v.Net]
		if !ok {
			return nil, false
		}
		return new(big.Int).Set(val), true
	case GateExpr:
		args := make([]*big.Int, len(v.Args))
		for i, a := range v.Args {
			val, ok := tryEval(a, values)
			if !ok {
				return nil, false
			}
			args[i] = val
		}
		return evalGate(v, args), true
	default:
		return nil, false
	}
}

func evalGate(g GateExpr, args []*big.Int) *big.Int {
	mask := func(v *big.Int) *big.Int { return maskTo(v, g.W) }
	bitWidth := func(i int) Width {
		if i < len(g.Args) {
			return g.Args[i].Width()
		}
		return g.W
	}
	switch g.Tag {
	case OpAnd:
		return mask(new(big.Int).And(args[0], args[1]))
	case OpOr:
		return mask(new(big.Int).Or(args[0], args[1]))
	case OpXor:
		return mask(new(big.Int).Xor(args[0], args[1]))
	case OpNot:
		full := new(big.Int).Lsh(big.NewInt(1), uint(bitWidth(0)))
		full.Sub(full, big.NewInt(1))
		return mask(new(big.Int).Xor(args[0], full))
	case OpBuf:
		return mask(new(big.Int).Set(args[0]))
	case OpMux:
		sel := args[0].Uint64()
		idx := 1 + int(sel)
		if idx < 0 || idx >= len(args) {
			idx = 1
		}
		return mask(new(big.Int).Set(args[idx]))
	case OpAdd:
		return mask(new(big.Int).Add(args[0], args[1]))
	case OpSub:
		r := new(big.Int).Sub(args[0], args[1])
		return mask(r)
	case OpEq:
		if args[0].Cmp(args[1]) == 0 {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	case OpLt:
		w := bitWidth(0)
		if toSigned(args[0], w).Cmp(toSigned(args[1], w)) < 0 {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	case OpLtu:
		if args[0].Cmp(args[1]) < 0 {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	case OpShl:
		return mask(new(big.Int).Lsh(args[0], uint(args[1].Uint64())))
	case OpShr:
		return mask(new(big.Int).Rsh(args[0], uint(args[1].Uint64())))
	case OpShra:
		w := bitWidth(0)
		signed := toSigned(args[0], w)
		shifted := new(big.Int).Rsh(signed, uint(args[1].Uint64()))
		return mask(shifted)
	case OpConcat:
		// Concat(hi, lo): args[0] is the high bits, args[1] the low bits.
		loW := bitWidth(1)
		r := new(big.Int).Lsh(args[0], uint(loW))
		r.Or(r, args[1])
		return mask(r)
	case OpSlice:
		r := new(big.Int).Rsh(args[0], uint(g.Lo))
		return mask(r)
	case OpExtend:
		if !g.Signed {
			return mask(new(big.Int).Set(args[0]))
		}
		w := bitWidth(0)
		signed := toSigned(args[0], w)
		return mask(signed)
	default:
		return big.NewInt(0)
	}
}

// toSigned reinterprets an unsigned w-bit value as its two's-complement
// signed equivalent, represented as a (possibly negative) big.Int.
func toSigned(v *big.Int, w Width) *big.Int {
	signBit := new(big.Int).Lsh(big.NewInt(1), uint(w-1))
	if new(big.Int).And(v, signBit).Sign() == 0 {
		return new(big.Int).Set(v)
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(w))
	return new(big.Int).Sub(v, full)
}
