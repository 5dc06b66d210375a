package design

import "github.com/jmchacon/hwsim/ir"

// Accumulator opcodes, encoded in the high nibble of an instruction byte.
// Every instruction is two bytes (opcode, operand) even HLT, which keeps
// the sequencer's fetch timing opcode independent.
const (
	AccOpLDI = 1 // acc <- operand
	AccOpSTA = 2 // mem[operand] <- acc
	AccOpLDA = 3 // acc <- mem[operand]
	AccOpADD = 4 // acc <- acc + mem[operand]
	AccOpSUB = 5 // acc <- acc - mem[operand]
	AccOpHLT = 6 // stop the sequencer
)

// Accumulator builds an 8-bit accumulator-machine CPU core (spec.md
// Scenario D): a 4-tick fetch/execute sequencer (T0 fetch opcode, T1 fetch
// operand, T2 execute, T3 idle), an 8-bit accumulator, an 8-bit ALU
// (Add/Sub), and the six opcodes above. It drives the memory bus with the
// same port convention as spec.md §4.5: mem_addr/mem_read_en/mem_write_en/
// mem_data_out are design outputs, mem_data_in is the only input.
func Accumulator() *ir.Module {
	b := newBuilder("accumulator")
	clk := b.port("clk", ir.In, 1)
	rst := b.port("rst", ir.In, 1)
	memAddr := b.port("mem_addr", ir.Out, 8)
	memDataIn := b.port("mem_data_in", ir.In, 8)
	memDataOut := b.port("mem_data_out", ir.Out, 8)
	memReadEn := b.port("mem_read_en", ir.Out, 1)
	memWriteEn := b.port("mem_write_en", ir.Out, 1)
	accOut := b.port("acc", ir.Out, 8)
	haltedOut := b.port("halted", ir.Out, 1)

	pc := b.net("pc", 8)
	irReg := b.net("ir", 8)
	operand := b.net("operand", 8)
	accReg := b.net("acc_reg", 8)
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
	b.assign(isT0, bin(ir.OpAnd, 1, ref(notState1, 1), ref(notState0, 1)))
	b.assign(isT1, bin(ir.OpAnd, 1, ref(notState1, 1), ref(stateBit0, 1)))
	b.assign(isT2, bin(ir.OpAnd, 1, ref(stateBit1, 1), ref(notState0, 1)))

	advance := b.anon(1)
	b.assign(advance, bin(ir.OpOr, 1, ref(isT0, 1), ref(isT1, 1)))

	opcode := b.anon(4)
	b.assign(opcode, ir.GateExpr{Tag: ir.OpSlice, W: 4, Hi: 7, Lo: 4, Args: []ir.Expr{ref(irReg, 8)}})

	isLDI := b.anon(1)
	isSTA := b.anon(1)
	isLDA := b.anon(1)
	isADD := b.anon(1)
	isSUB := b.anon(1)
	isHLT := b.anon(1)
	eqOp := func(dst ir.NetID, code uint64) {
		b.assign(dst, ir.GateExpr{Tag: ir.OpEq, W: 1, Args: []ir.Expr{ref(opcode, 4), ir.ConstExpr{Val: ir.NewConst(4, code)}}})
	}
	eqOp(isLDI, AccOpLDI)
	eqOp(isSTA, AccOpSTA)
	eqOp(isLDA, AccOpLDA)
	eqOp(isADD, AccOpADD)
	eqOp(isSUB, AccOpSUB)
	eqOp(isHLT, AccOpHLT)

	readsOperand := b.anon(1)
	b.assign(readsOperand, bin(ir.OpOr, 1, ref(isLDA, 1), bin(ir.OpOr, 1, ref(isADD, 1), ref(isSUB, 1))))
	execRead := b.anon(1)
	b.assign(execRead, bin(ir.OpAnd, 1, ref(isT2, 1), ref(readsOperand, 1)))
	execWrite := b.anon(1)
	b.assign(execWrite, bin(ir.OpAnd, 1, ref(isT2, 1), ref(isSTA, 1)))

	b.assign(memReadEn, bin(ir.OpOr, 1, ref(advance, 1), ref(execRead, 1)))
	b.assign(memWriteEn, ref(execWrite, 1))
	b.assign(memDataOut, ref(accReg, 8))
	b.assign(memAddr, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isT2, 1), ref(pc, 8), ref(operand, 8)}})

	pcInc := b.anon(8)
	b.assign(pcInc, ir.GateExpr{Tag: ir.OpAdd, W: 8, Args: []ir.Expr{ref(pc, 8), ir.ConstExpr{Val: ir.NewConst(8, 1)}}})
	b.dff(ir.DFF{D: pcInc, Q: pc, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: advance})
	b.dff(ir.DFF{D: memDataIn, Q: irReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: isT0})
	b.dff(ir.DFF{D: memDataIn, Q: operand, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: isT1})

	aluAdd := b.anon(8)
	aluSub := b.anon(8)
	b.assign(aluAdd, ir.GateExpr{Tag: ir.OpAdd, W: 8, Args: []ir.Expr{ref(accReg, 8), ref(memDataIn, 8)}})
	b.assign(aluSub, ir.GateExpr{Tag: ir.OpSub, W: 8, Args: []ir.Expr{ref(accReg, 8), ref(memDataIn, 8)}})

	stage1 := b.anon(8) // isSUB: 0 -> add, 1 -> sub
	stage2 := b.anon(8) // isLDA: 0 -> stage1, 1 -> mem_data_in
	stage3 := b.anon(8) // isLDI: 0 -> stage2, 1 -> operand
	b.assign(stage1, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isSUB, 1), ref(aluAdd, 8), ref(aluSub, 8)}})
	b.assign(stage2, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isLDA, 1), ref(stage1, 8), ref(memDataIn, 8)}})
	b.assign(stage3, ir.GateExpr{Tag: ir.OpMux, W: 8, K: 2, Args: []ir.Expr{ref(isLDI, 1), ref(stage2, 8), ref(operand, 8)}})

	writesAcc := b.anon(1)
	b.assign(writesAcc, bin(ir.OpOr, 1, ref(isLDI, 1), bin(ir.OpOr, 1, ref(isLDA, 1), bin(ir.OpOr, 1, ref(isADD, 1), ref(isSUB, 1)))))
	accEn := b.anon(1)
	b.assign(accEn, bin(ir.OpAnd, 1, ref(isT2, 1), ref(writesAcc, 1)))
	b.dff(ir.DFF{D: stage3, Q: accReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(8, 0).Value, HasEn: true, En: accEn})

	haltNext := b.anon(1)
	b.assign(haltNext, bin(ir.OpOr, 1, ref(haltedReg, 1), bin(ir.OpAnd, 1, ref(isT2, 1), ref(isHLT, 1))))
	b.dff(ir.DFF{D: haltNext, Q: haltedReg, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value})

	notHalted := b.anon(1)
	b.assign(notHalted, un(ir.OpNot, 1, ref(haltedReg, 1)))
	dState0 := b.anon(1)
	dState1 := b.anon(1)
	b.assign(dState0, un(ir.OpNot, 1, ref(stateBit0, 1)))
	b.assign(dState1, bin(ir.OpXor, 1, ref(stateBit1, 1), ref(stateBit0, 1)))
	b.dff(ir.DFF{D: dState0, Q: stateBit0, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value, HasEn: true, En: notHalted})
	b.dff(ir.DFF{D: dState1, Q: stateBit1, Clk: clk, HasRst: true, Rst: rst, RstVal: ir.NewConst(1, 0).Value, HasEn: true, En: notHalted})

	b.assign(accOut, ref(accReg, 8))
	b.assign(haltedOut, ref(haltedReg, 1))

	return b.build()
}
