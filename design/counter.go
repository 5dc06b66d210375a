package design

import "github.com/jmchacon/hwsim/ir"

// UpCounter builds an N-bit synchronous up-counter (module "up_counter") with
// a clock input "clk" and an asynchronous active-high "rst" that
// forces q back to 0, the toggle-flip-flop ripple structure of spec.md
// Scenario B: bit 0 always toggles, bit i (i>0) toggles only when every
// lower bit is currently 1.
func UpCounter(width ir.Width) *ir.Module {
	b := newBuilder("up_counter")
	clk := b.port("clk", ir.In, 1)
	rst := b.port("rst", ir.In, 1)
	q := b.port("q", ir.Out, width)

	qBits := make([]ir.NetID, width)
	dBits := make([]ir.NetID, width)
	for i := 0; i < int(width); i++ {
		qBits[i] = b.anon(1)
		dBits[i] = b.anon(1)
	}

	// d0 = not(q0)
	b.assign(dBits[0], un(ir.OpNot, 1, ref(qBits[0], 1)))

	// carry-into-bit-i accumulator: andAcc = q0 & q1 & ... & q(i-1)
	andAcc := qBits[0]
	for i := 1; i < int(width); i++ {
		b.assign(dBits[i], bin(ir.OpXor, 1, ref(qBits[i], 1), ref(andAcc, 1)))
		if i < int(width)-1 {
			nextAcc := b.anon(1)
			b.assign(nextAcc, bin(ir.OpAnd, 1, ref(andAcc, 1), ref(qBits[i], 1)))
			andAcc = nextAcc
		}
	}

	for i := 0; i < int(width); i++ {
		b.dff(ir.DFF{
			D: dBits[i], Q: qBits[i], Clk: clk,
			HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value,
		})
	}

	concat := ir.Expr(ref(qBits[0], 1))
	for i := 1; i < int(width); i++ {
		concat = ir.GateExpr{Tag: ir.OpConcat, W: ir.Width(i + 1), Args: []ir.Expr{ref(qBits[i], 1), concat}}
	}
	b.assign(q, concat)

	return b.build()
}
