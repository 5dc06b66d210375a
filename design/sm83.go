package design

import "github.com/jmchacon/hwsim/ir"

// SM83 opcodes, high nibble of instruction byte 0 (same three-byte fixed
// instruction width as MOS6502: opcode, operand-lo, operand-hi).
const (
	SM83OpNOP  = 0  // no operation
	SM83OpLDAI = 1  // acc <- operand low byte (immediate)
	SM83OpLDA  = 2  // acc <- mem[operand16]
	SM83OpSTA  = 3  // mem[operand16] <- acc
	SM83OpLDBI = 4  // b <- operand low byte (immediate)
	SM83OpLDCI = 5  // c <- operand low byte (immediate)
	SM83OpADD  = 6  // acc <- acc + b
	SM83OpSUB  = 7  // acc <- acc - c
	SM83OpSLA  = 8  // acc <- acc << 1, carry <- old acc[7]
	SM83OpSRL  = 9  // acc <- acc >> 1 (logical), carry <- old acc[0]
	SM83OpJP   = 10 // pc <- operand16, unconditional
	SM83OpHLT  = 11 // stop the sequencer
)

// SM83 builds a representative subset of a Game Boy SM83-shaped CPU core
// (spec.md §5.2): an 8-bit accumulator plus two general registers (b, c),
// zero/carry flags, load/store/add/sub and single-bit shift opcodes
// (SLA/SRL), wired to the same 16-bit-address/8-bit-data memory bus
// convention as MOS6502. The shift opcodes exist specifically to exercise
// the Shl/Shr lowering patterns that Accumulator's and MOS6502's ALUs
// never touch (their ALUs only ever use Add/Sub/Mux/Eq). This is not an
// opcode-complete SM83 (no interrupts, no 16-bit register pairs, no real
// flag register byte) — see spec.md §1's out-of-scope ISA-level emulators.
func SM83() *ir.Module {
	b := newBuilder("sm83")
	clk := b.port("clk", ir.In, 1)
	rst := b.port("rst", ir.In, 1)
	memAddr := b.port("mem_addr", ir.Out, 16)
	memDataIn := b.port("mem_data_in", ir.In, 8)
	memDataOut := b.port("mem_data_out", ir.Out, 8)
	memReadEn := b.port("mem_read_en", ir.Out, 1)
	memWriteEn := b.port("mem_write_en", ir.Out, 1)
	accOut := b.port("acc", ir.Out, 8)
	bOut := b.port("b", ir.Out, 8)
	cOut := b.port("c", ir.Out, 8)
	zeroOut := b.port("zero", ir.Out, 1)
	carryOut := b.port("carry", ir.Out, 1)
	haltedOut := b.port("halted", ir.Out, 1)

	pc := b.net("pc_reg", 16)
	irReg := b.net("ir", 8)
	opLo := b.net("operand_lo", 8)
	opHi := b.net("operand_hi", 8)
	accReg := b.net("acc_reg", 8)
	bReg := b.net("b_reg", 8)
	cReg := b.net("c_reg", 8)
	zeroReg := b.net("zero_reg", 1)
	carryReg := b.net("carry_reg", 1)
	haltedReg := b.net("halted_reg", 1)

	stateBit0 := b.anon(1)
	stateBit1 := b.anon(1)
	notState0 := b.anon(1)
	notState1 := b.anon(1)
	b.assign(notState0, un(ir.OpNot, 1, ref(stateBit0, 1)))
	b.assign(notState1, un(ir.OpNot, 1, ref(stateBit1, 1)))

	isT0 := b.anon(1)
	isT1 := b.anon(1)
	isT2 := b.anon(1)
	isT3 := b.anon(1)
	b.assign(isT0, bin(ir.OpAnd, 1, ref(notState1, 1), ref(notState0, 1)))
	b.assign(isT1, bin(ir.OpAnd, 1, ref(notState1, 1), ref(stateBit0, 1)))
	b.assign(isT2, bin(ir.OpAnd, 1, ref(stateBit1, 1), ref(notState0, 1)))
	b.assign(isT3, bin(ir.OpAnd, 1, ref(stateBit1, 1), ref(stateBit0, 1)))

	fetching := b.anon(1)
	b.assign(fetching, bin(ir.OpOr, 1, ref(isT0, 1), bin(ir.OpOr, 1, ref(isT1, 1), ref(isT2, 1))))

	opcode := b.anon(4)
	b.assign(opcode, ir.GateExpr{Tag: ir.OpSlice, W: 4, Hi: 7, Lo: 4, Args: []ir.Expr{ref(irReg, 8)}})

	isNOP := b.anon(1)
	isLDAI := b.anon(1)
	isLDA := b.anon(1)
	isSTA := b.anon(1)
	isLDBI := b.anon(1)
	isLDCI := b.anon(1)
	isADD := b.anon(1)
	isSUB := b.anon(1)
	isSLA := b.anon(1)
	isSRL := b.anon(1)
	isJP := b.anon(1)
	isHLT := b.anon(1)
	eqOp := func(dst ir.NetID, code uint64) {
		b.assign(dst, ir.GateExpr{Tag: ir.OpEq, W: 1, Args: []ir.Expr{ref(opcode, 4), ir.ConstExpr{Val: ir.NewConst(4, code)}}})
	}
	eqOp(isNOP, SM83OpNOP)
	eqOp(isLDAI, SM83OpLDAI)
	eqOp(isLDA, SM83OpLDA)
	eqOp(isSTA, SM83OpSTA)
	eqOp(isLDBI, SM83OpLDBI)
	eqOp(isLDCI, SM83OpLDCI)
	eqOp(isADD, SM83OpADD)
	eqOp(isSUB, SM83OpSUB)
	eqOp(isSLA, SM83OpSLA)
	eqOp(isSRL, SM83OpSRL)
	eqOp(isJP, SM83OpJP)
	eqOp(isHLT, SM83OpHLT)

	readsMem := b.anon(1)
	b.assign(readsMem, ref(isLDA, 1))
	execRead := b.anon(1)
	b.assign(execRead, bin(ir.OpAnd, 1, ref(isT3, 1), ref(readsMem, 1)))
	execWrite := b.anon(1)
	b.assign(execWrite, bin(ir.OpAnd, 1, ref(isT3, 1), ref(isSTA, 1)))

	operand16 := b.anon(16)
	b.assign(operand16, ir.GateExpr{Tag: ir.OpConcat, W: 16, Args: []ir.Expr{ref(opHi, 8), ref(opLo, 8)}})

	b.assign(memReadEn, bin(ir.OpOr, 1, ref(fetching, 1), ref(execRead, 1)))
	b.assign(memWriteEn, ref(execWrite, 1))
	b.assign(memDataOut, ref(accReg, 8))
	b.assign(memAddr, ir.GateExpr{Tag: ir.OpMux, W: 16, K: 2, Args: []ir.Expr{ref(isT3, 1), ref(pc, 16), ref(operand16, 16)}})

	pcInc := b.anon(16)
	b.assign(pcInc, ir.GateExpr{Tag: ir.OpAdd, W: 16, Args: []ir.Expr{ref(pc, 16), ir.ConstExpr{Val: ir.NewConst(16, 1)}}})

	jumpTaken := b.anon(1)
	b.assign(jumpTaken, bin(ir.OpAnd, 1, ref(isT3, 1), ref(isJP, 1)))
	pcEn := b.anon(1)
	b.assign(pcEn, bin(ir.OpOr, 1, ref(fetching, 1), ref(jumpTaken, 1)))
	pcD := b.anon(16)
	b.assign(pcD, ir.GateExpr{Tag: ir.OpMux, W: 16, K: 2, Args: []ir.Expr{ref(jumpTaken, 1), ref(pcInc, 16), ref(operand16, 16)}})

	notHalted := b.anon(1)
	b.assign(notHalted, un(ir.OpNot, 1, ref(haltedReg, 1)))
	pcEnNotHalted := b.anon(1)
	b.assign(pcEnNotHalted, bin(ir.OpAnd, 1, ref(pcEn, 1), ref(notHalted, 1)))
	b.dff(ir.DFF{D: pcD, Q: pc, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(16, 0).Value, HasEn: true, En: pcEnNotHalted})

	irEn := b.anon(1)
	b.assign(irEn, bin(ir.OpAnd, 1, ref(isT0, 1), ref(notHalted, 1)))
	loEn := b.anon(1)
	b.assign(loEn, bin(ir.OpAnd, 1, ref(isT1, 1), ref(notHalted, 1)))
	hiEn := b.anon(1)
	b.assign(hiEn, bin(ir.OpAnd, 1, ref(isT2, 1), ref(notHalted, 1)))
	b.dff(ir.DFF{D: memDataIn, Q: irReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: irEn})
	b.dff(ir.DFF{D: memDataIn, Q: opLo, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: loEn})
	b.dff(ir.DFF{D: memDataIn, Q: opHi, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: hiEn})

	// b/c register loads, immediate only: no ALU op reads memory for these.
	bcEn := b.anon(1)
	b.assign(bcEn, bin(ir.OpAnd, 1, ref(isT3, 1), ref(notHalted, 1)))
	bEn := b.anon(1)
	b.assign(bEn, bin(ir.OpAnd, 1, ref(bcEn, 1), ref(isLDBI, 1)))
	cEn := b.anon(1)
	b.assign(cEn, bin(ir.OpAnd, 1, ref(bcEn, 1), ref(isLDCI, 1)))
	b.dff(ir.DFF{D: opLo, Q: bReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: bEn})
	b.dff(ir.DFF{D: opLo, Q: cReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: cEn})

	aluAdd := b.anon(8)
	aluSub := b.anon(8)
	b.assign(aluAdd, ir.GateExpr{Tag: ir.OpAdd, W: 8, Args: []ir.Expr{ref(accReg, 8), ref(bReg, 8)}})
	b.assign(aluSub, ir.GateExpr{Tag: ir.OpSub, W: 8, Args: []ir.Expr{ref(accReg, 8), ref(cReg, 8)}})

	shiftOne := ir.ConstExpr{Val: ir.NewConst(1, 1)}
	aluShl := b.anon(8)
	aluShr := b.anon(8)
	b.assign(aluShl, ir.GateExpr{Tag: ir.OpShl, W: 8, Args: []ir.Expr{ref(accReg, 8), shiftOne}})
	b.assign(aluShr, ir.GateExpr{Tag: ir.OpShr, W: 8, Args: []ir.Expr{ref(accReg, 8), shiftOne}})

	// Mux chain picking the new accumulator value: immediate, memory load,
	// add, sub, shift-left, shift-right, falling through to "unchanged"
	// for NOP/STA/LDBI/LDCI/JP/HLT.
	stage1 := b.anon(8) // isSRL: 0 -> acc, 1 -> aluShr
	stage2 := b.anon(8) // isSLA: 0 -> stage1, 1 -> aluShl
	stage3 := b.anon(8) // isSUB: 0 -> stage2, 1 -> aluSub
	stage4 := b.anon(8) // isADD: 0 -> stage3, 1 -> aluAdd
	stage5 := b.anon(8) // isLDA: 0 -> stage4, 1 -> mem_data_in
	stage6 := b.anon(8) // isLDAI: 0 -> stage5, 1 -> operand_lo
	b.assign(stage1, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isSRL, 1), ref(accReg, 8), ref(aluShr, 8)}})
	b.assign(stage2, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isSLA, 1), ref(stage1, 8), ref(aluShl, 8)}})
	b.assign(stage3, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isSUB, 1), ref(stage2, 8), ref(aluSub, 8)}})
	b.assign(stage4, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isADD, 1), ref(stage3, 8), ref(aluAdd, 8)}})
	b.assign(stage5, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isLDA, 1), ref(stage4, 8), ref(memDataIn, 8)}})
	b.assign(stage6, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isLDAI, 1), ref(stage5, 8), ref(opLo, 8)}})

	writesAcc := b.anon(1)
	writesAccA := b.anon(1)
	writesAccB := b.anon(1)
	b.assign(writesAccA, bin(ir.OpOr, 1, ref(isLDAI, 1), bin(ir.OpOr, 1, ref(isLDA, 1), ref(isADD, 1))))
	b.assign(writesAccB, bin(ir.OpOr, 1, ref(isSUB, 1), bin(ir.OpOr, 1, ref(isSLA, 1), ref(isSRL, 1))))
	b.assign(writesAcc, bin(ir.OpOr, 1, ref(writesAccA, 1), ref(writesAccB, 1)))
	accEn := b.anon(1)
	b.assign(accEn, bin(ir.OpAnd, 1, ref(bcEn, 1), ref(writesAcc, 1)))
	b.dff(ir.DFF{D: stage6, Q: accReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: accEn})

	isZero := b.anon(1)
	b.assign(isZero, ir.GateExpr{Tag: ir.OpEq, W: 1, Args: []ir.Expr{ref(stage6, 8), ir.ConstExpr{Val: ir.NewConst(8, 0)}}})
	b.dff(ir.DFF{D: isZero, Q: zeroReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value, HasEn: true, En: accEn})

	shiftsAcc := b.anon(1)
	b.assign(shiftsAcc, bin(ir.OpOr, 1, ref(isSLA, 1), ref(isSRL, 1)))
	carryEn := b.anon(1)
	b.assign(carryEn, bin(ir.OpAnd, 1, ref(bcEn, 1), ref(shiftsAcc, 1)))
	accBit0 := b.anon(1)
	accBit7 := b.anon(1)
	b.assign(accBit0, ir.GateExpr{Tag: ir.OpSlice, W: 1, Hi: 0, Lo: 0, Args: []ir.Expr{ref(accReg, 8)}})
	b.assign(accBit7, ir.GateExpr{Tag: ir.OpSlice, W: 1, Hi: 7, Lo: 7, Args: []ir.Expr{ref(accReg, 8)}})
	carryD := b.anon(1)
	b.assign(carryD, ir.GateExpr{Tag: ir.OpMux, W: 1, K: 2, Args: []ir.Expr{ref(isSLA, 1), ref(accBit0, 1), ref(accBit7, 1)}})
	b.dff(ir.DFF{D: carryD, Q: carryReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value, HasEn: true, En: carryEn})

	haltNext := b.anon(1)
	b.assign(haltNext, bin(ir.OpOr, 1, ref(haltedReg, 1), bin(ir.OpAnd, 1, ref(isT3, 1), ref(isHLT, 1))))
	b.dff(ir.DFF{D: haltNext, Q: haltedReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value})

	dState0 := b.anon(1)
	dState1 := b.anon(1)
	b.assign(dState0, un(ir.OpNot, 1, ref(stateBit0, 1)))
	b.assign(dState1, bin(ir.OpXor, 1, ref(stateBit1, 1), ref(stateBit0, 1)))
	b.dff(ir.DFF{D: dState0, Q: stateBit0, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value, HasEn: true, En: notHalted})
	b.dff(ir.DFF{D: dState1, Q: stateBit1, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value, HasEn: true, En: notHalted})

	b.assign(accOut, ref(accReg, 8))
	b.assign(bOut, ref(bReg, 8))
	b.assign(cOut, ref(cReg, 8))
	b.assign(zeroOut, ref(zeroReg, 1))
	b.assign(carryOut, ref(carryReg, 1))
	b.assign(haltedOut, ref(haltedReg, 1))

	// isNOP decodes but drives nothing further: NOP reaches T3 with no
	// write/jump side effect by construction of writesAcc/isJP above.
	_ = isNOP

	return b.build()
}
