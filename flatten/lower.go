package flatten

import (
	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/ir"
	"github.com/jmchacon/hwsim/netlist"
)

// lowerExpr reduces e to its bit-blasted value: one netlist.WireID per bit,
// LSB first, emitting whatever gates the operator needs. wires resolves
// NetRef leaves to already-allocated per-module wires.
func (e *elaborator) lowerExpr(expr ir.Expr, wires netWires) ([]netlist.WireID, error) {
	switch v := expr.(type) {
	case ir.NetRef:
		bits, ok := wires[v.Net]
		if !ok {
			return nil, errors.Errorf("reference to unelaborated net %d", v.Net)
		}
		return bits, nil
	case ir.ConstExpr:
		out := make([]netlist.WireID, v.Val.Width)
		for i := range out {
			out[i] = e.constWire(uint(v.Val.Value.Bit(i)))
		}
		return out, nil
	case ir.GateExpr:
		return e.lowerGate(v, wires)
	default:
		return nil, errors.Errorf("cannot lower expression of type %T", expr)
	}
}

func (e *elaborator) lowerArgs(args []ir.Expr, wires netWires) ([][]netlist.WireID, error) {
	out := make([][]netlist.WireID, len(args))
	for i, a := range args {
		bits, err := e.lowerExpr(a, wires)
		if err != nil {
			return nil, err
		}
		out[i] = bits
	}
	return out, nil
}

func (e *elaborator) lowerGate(g ir.GateExpr, wires netWires) ([]netlist.WireID, error) {
	args, err := e.lowerArgs(g.Args, wires)
	if err != nil {
		return nil, err
	}
	w := int(g.W)

	switch g.Tag {
	case ir.OpAnd, ir.OpOr, ir.OpXor:
		op := map[ir.GateOpTag]netlist.GateOp{ir.OpAnd: netlist.And2, ir.OpOr: netlist.Or2, ir.OpXor: netlist.Xor2}[g.Tag]
		out := make([]netlist.WireID, w)
		for i := 0; i < w; i++ {
			out[i] = e.gate(op, args[0][i], args[1][i])
		}
		return out, nil

	case ir.OpNot:
		out := make([]netlist.WireID, w)
		for i := 0; i < w; i++ {
			out[i] = e.unaryGate(netlist.Not1, args[0][i])
		}
		return out, nil

	case ir.OpBuf:
		out := make([]netlist.WireID, w)
		for i := 0; i < w; i++ {
			out[i] = e.unaryGate(netlist.Buf1, args[0][i])
		}
		return out, nil

	case ir.OpMux:
		return e.lowerMux(args, w)

	case ir.OpAdd:
		sum, _ := e.rippleAdd(args[0], args[1], e.constWire(0))
		return truncOrExtend(sum, w, e), nil

	case ir.OpSub:
		notB := invert(e, args[1])
		diff, _ := e.rippleAdd(args[0], notB, e.constWire(1))
		return truncOrExtend(diff, w, e), nil

	case ir.OpEq:
		return []netlist.WireID{e.eqReduce(args[0], args[1])}, nil

	case ir.OpLtu:
		notB := invert(e, args[1])
		_, carries := e.rippleAdd(args[0], notB, e.constWire(1))
		// carryOut (carries[len]) == 1 means no borrow, i.e. a >= b.
		return []netlist.WireID{e.unaryGate(netlist.Not1, carries[len(carries)-1])}, nil

	case ir.OpLt:
		notB := invert(e, args[1])
		diff, carries := e.rippleAdd(args[0], notB, e.constWire(1))
		n := len(diff)
		overflow := e.gate(netlist.Xor2, carries[n-1], carries[n])
		return []netlist.WireID{e.gate(netlist.Xor2, diff[n-1], overflow)}, nil

	case ir.OpShl:
		return e.barrelShift(args[0], args[1], true, false), nil
	case ir.OpShr:
		return e.barrelShift(args[0], args[1], false, false), nil
	case ir.OpShra:
		return e.barrelShift(args[0], args[1], false, true), nil

	case ir.OpConcat:
		// Args[0] is the high bits, Args[1] the low bits; result is pure
		// wire renaming per spec.md §4.2 (no gates).
		out := append([]netlist.WireID{}, args[1]...)
		out = append(out, args[0]...)
		return out, nil

	case ir.OpSlice:
		full := args[0]
		if g.Hi >= len(full) || g.Lo > g.Hi || g.Lo < 0 {
			return nil, errors.Errorf("slice [%d:%d] out of range for %d-bit value", g.Hi, g.Lo, len(full))
		}
		return append([]netlist.WireID{}, full[g.Lo:g.Hi+1]...), nil

	case ir.OpExtend:
		in := args[0]
		out := append([]netlist.WireID{}, in...)
		var fill netlist.WireID
		if g.Signed {
			fill = in[len(in)-1]
		} else {
			fill = e.constWire(0)
		}
		for len(out) < w {
			out = append(out, fill)
		}
		return out, nil

	default:
		return nil, errors.WithStack(ir.UnknownOperator{Op: g.Tag})
	}
}

// rippleAdd builds a ripple-carry adder over a+b+cin (spec.md §4.2's
// full-adder pattern: sum = a^b^cin, cout = (a&b)|(cin&(a^b))). It returns
// the sum bits and the full carry chain (carries[0] == cin, carries[i+1] is
// the carry out of bit i), so both Add/Sub and the Lt/Ltu comparisons can
// share it.
func (e *elaborator) rippleAdd(a, b []netlist.WireID, cin netlist.WireID) (sum []netlist.WireID, carries []netlist.WireID) {
	n := len(a)
	sum = make([]netlist.WireID, n)
	carries = make([]netlist.WireID, n+1)
	carries[0] = cin
	for i := 0; i < n; i++ {
		axb := e.gate(netlist.Xor2, a[i], b[i])
		sum[i] = e.gate(netlist.Xor2, axb, carries[i])
		aAndB := e.gate(netlist.And2, a[i], b[i])
		cAndAxb := e.gate(netlist.And2, carries[i], axb)
		carries[i+1] = e.gate(netlist.Or2, aAndB, cAndAxb)
	}
	return sum, carries
}

func invert(e *elaborator, bits []netlist.WireID) []netlist.WireID {
	out := make([]netlist.WireID, len(bits))
	for i, b := range bits {
		out[i] = e.unaryGate(netlist.Not1, b)
	}
	return out
}

func truncOrExtend(bits []netlist.WireID, w int, e *elaborator) []netlist.WireID {
	if len(bits) == w {
		return bits
	}
	if len(bits) > w {
		return bits[:w]
	}
	out := append([]netlist.WireID{}, bits...)
	for len(out) < w {
		out = append(out, e.constWire(0))
	}
	return out
}

// eqReduce computes the AND-reduction of bitwise XNOR(a,b): equal bits
// produce 1, then all bits are ANDed together (spec.md §4.2).
func (e *elaborator) eqReduce(a, b []netlist.WireID) netlist.WireID {
	var acc netlist.WireID
	for i := range a {
		xnor := e.unaryGate(netlist.Not1, e.gate(netlist.Xor2, a[i], b[i]))
		if i == 0 {
			acc = xnor
		} else {
			acc = e.gate(netlist.And2, acc, xnor)
		}
	}
	return acc
}

// lowerMux one-hot decodes the selector into k select lines (ANDs of
// selector bits and their complements), then for each data bit ORs the k
// (select-line AND data-bit) terms, per spec.md §4.2's Mux(k) pattern.
func (e *elaborator) lowerMux(args [][]netlist.WireID, w int) ([]netlist.WireID, error) {
	sel := args[0]
	data := args[1:]
	k := len(data)

	selectLines := make([]netlist.WireID, k)
	for idx := 0; idx < k; idx++ {
		var line netlist.WireID
		for bit := 0; bit < len(sel); bit++ {
			var term netlist.WireID
			if (idx>>bit)&1 == 1 {
				term = sel[bit]
			} else {
				term = e.unaryGate(netlist.Not1, sel[bit])
			}
			if bit == 0 {
				line = term
			} else {
				line = e.gate(netlist.And2, line, term)
			}
		}
		if len(sel) == 0 {
			line = e.constWire(1)
		}
		selectLines[idx] = line
	}

	out := make([]netlist.WireID, w)
	for bit := 0; bit < w; bit++ {
		var acc netlist.WireID
		for idx := 0; idx < k; idx++ {
			term := e.gate(netlist.And2, selectLines[idx], data[idx][bit])
			if idx == 0 {
				acc = term
			} else {
				acc = e.gate(netlist.Or2, acc, term)
			}
		}
		out[bit] = acc
	}
	return out, nil
}

// barrelShift builds a log2(w)-stage barrel shifter: stage k conditionally
// shifts by 2^k when bit k of amount is set, selected by a 2:1 mux built
// from And/Or/Not (spec.md §4.2).
func (e *elaborator) barrelShift(bits, amount []netlist.WireID, left, arithmetic bool) []netlist.WireID {
	cur := append([]netlist.WireID{}, bits...)
	n := len(cur)
	signBit := cur[n-1]

	fillBit := func() netlist.WireID {
		if arithmetic {
			return signBit
		}
		return e.constWire(0)
	}

	for stage := 0; stage < len(amount); stage++ {
		shiftAmt := 1 << uint(stage)
		shifted := make([]netlist.WireID, n)
		for i := 0; i < n; i++ {
			var srcIdx int
			if left {
				srcIdx = i - shiftAmt
			} else {
				srcIdx = i + shiftAmt
			}
			if srcIdx < 0 || srcIdx >= n {
				shifted[i] = fillBit()
			} else {
				shifted[i] = cur[srcIdx]
			}
		}
		selBit := amount[stage]
		next := make([]netlist.WireID, n)
		for i := 0; i < n; i++ {
			next[i] = e.mux2(selBit, cur[i], shifted[i])
		}
		cur = next
	}
	return cur
}

// mux2 implements a single 2:1 mux as sel? b : a using the same gate
// primitives as lowerMux (kept inline since only 1 selector bit is ever
// needed here, avoiding one-hot decode overhead).
func (e *elaborator) mux2(sel, a, b netlist.WireID) netlist.WireID {
	notSel := e.unaryGate(netlist.Not1, sel)
	left := e.gate(netlist.And2, notSel, a)
	right := e.gate(netlist.And2, sel, b)
	return e.gate(netlist.Or2, left, right)
}
