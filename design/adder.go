package design

import (
	"strconv"

	"github.com/jmchacon/hwsim/ir"
)

// HalfAdder builds ha(a,b) -> (sum,carry): sum=a^b, carry=a&b, the
// canonical gate-level fixture (spec.md Scenario C).
func HalfAdder() *ir.Module {
	b := newBuilder("half_adder")
	a := b.port("a", ir.In, 1)
	bb := b.port("b", ir.In, 1)
	sum := b.port("sum", ir.Out, 1)
	carry := b.port("carry", ir.Out, 1)
	b.assign(sum, bin(ir.OpXor, 1, ref(a, 1), ref(bb, 1)))
	b.assign(carry, bin(ir.OpAnd, 1, ref(a, 1), ref(bb, 1)))
	return b.build()
}

// FullAdder builds fa(a,b,cin) -> (sum,cout), composed from two half
// adders and an Or, the classic textbook decomposition: it exists so
// RippleAdder can build an N-bit adder by instantiating N of these,
// exercising package flatten's instance-inlining path rather than a single
// flat Add expression.
func FullAdder() *ir.Module {
	b := newBuilder("full_adder")
	a := b.port("a", ir.In, 1)
	bb := b.port("b", ir.In, 1)
	cin := b.port("cin", ir.In, 1)
	sum := b.port("sum", ir.Out, 1)
	cout := b.port("cout", ir.Out, 1)

	s1 := b.net("s1", 1)
	c1 := b.net("c1", 1)
	c2 := b.net("c2", 1)

	b.assign(s1, bin(ir.OpXor, 1, ref(a, 1), ref(bb, 1)))
	b.assign(c1, bin(ir.OpAnd, 1, ref(a, 1), ref(bb, 1)))
	b.assign(sum, bin(ir.OpXor, 1, ref(s1, 1), ref(cin, 1)))
	b.assign(c2, bin(ir.OpAnd, 1, ref(s1, 1), ref(cin, 1)))
	b.assign(cout, bin(ir.OpOr, 1, ref(c1, 1), ref(c2, 1)))
	return b.build()
}

// RippleAdder builds an N-bit ripple-carry adder named "ripple_adder" by
// chaining N full_adder instances, matching how the 4-bit case in
// spec.md's Scenario A is meant to be assembled (as structural composition,
// not a single wide arithmetic primitive). RippleAdder also registers
// full_adder (and, transitively, nothing else) into reg so Flatten can
// resolve the instances.
func RippleAdder(reg *ir.Registry, width ir.Width) (*ir.Module, error) {
	fa := FullAdder()
	if _, ok := reg.Lookup(fa.Name); !ok {
		if err := reg.Register(fa); err != nil {
			return nil, err
		}
	}

	name := "ripple_adder"
	b := newBuilder(name)
	a := b.port("a", ir.In, width)
	bb := b.port("b", ir.In, width)
	cin := b.port("cin", ir.In, 1)
	sum := b.port("sum", ir.Out, width)
	cout := b.port("cout", ir.Out, 1)

	sumBits := make([]ir.NetID, width)
	carry := cin
	for i := 0; i < int(width); i++ {
		sumBits[i] = b.anon(1)
		aBit := b.anon(1)
		bBit := b.anon(1)
		b.assign(aBit, ir.GateExpr{Tag: ir.OpSlice, W: 1, Hi: i, Lo: i, Args: []ir.Expr{ref(a, width)}})
		b.assign(bBit, ir.GateExpr{Tag: ir.OpSlice, W: 1, Hi: i, Lo: i, Args: []ir.Expr{ref(bb, width)}})
		nextCarry := b.anon(1)
		b.instantiate("fa"+strconv.Itoa(i), fa.Name, map[string]ir.NetID{
			"a": aBit, "b": bBit, "cin": carry, "sum": sumBits[i], "cout": nextCarry,
		})
		carry = nextCarry
	}
	b.assign(cout, ref(carry, 1))

	concat := ir.Expr(ref(sumBits[0], 1))
	for i := 1; i < int(width); i++ {
		concat = ir.GateExpr{Tag: ir.OpConcat, W: ir.Width(i + 1), Args: []ir.Expr{ref(sumBits[i], 1), concat}}
	}
	b.assign(sum, concat)

	return b.build(), nil
}
