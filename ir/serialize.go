package ir

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
)

// irMagic tags the canonical pre-flatten IR encoding. Distinct from the
// netlist package's "NETL" magic (§6 of the spec) since this is a different
// wire format for a different lifecycle stage.
var irMagic = [4]byte{'I', 'R', 'M', 'D'}

const irVersion = uint32(1)

// Serialize writes the canonical byte-stream encoding of m. Every field is
// written in a fixed order with little-endian integers and
// length-prefixed UTF-8 strings, so that Serialize is deterministic
// (parse(serialize(m)) == m for every legal m, and serialize is injective
// up to Module equality).
func (m *Module) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(irMagic[:])
	writeU32(&buf, irVersion)
	writeString(&buf, m.Name)

	writeU32(&buf, uint32(len(m.Ports)))
	for _, p := range m.Ports {
		writeString(&buf, p.Name)
		buf.WriteByte(byte(p.Dir))
		writeU32(&buf, uint32(p.Width))
	}

	writeU32(&buf, uint32(len(m.Nets)))
	for _, n := range m.Nets {
		writeU32(&buf, uint32(n.ID))
		writeString(&buf, n.Name)
		writeU32(&buf, uint32(n.Width))
	}

	writeU32(&buf, uint32(len(m.Assigns)))
	for _, a := range m.Assigns {
		writeU32(&buf, uint32(a.Dest))
		if err := writeExpr(&buf, a.Expr); err != nil {
			return nil, err
		}
	}

	writeU32(&buf, uint32(len(m.DFFs)))
	for _, d := range m.DFFs {
		writeU32(&buf, uint32(d.D))
		writeU32(&buf, uint32(d.Q))
		writeU32(&buf, uint32(d.Clk))
		writeBool(&buf, d.HasRst)
		writeU32(&buf, uint32(d.Rst))
		writeBigInt(&buf, d.RstVal)
		writeBool(&buf, d.HasEn)
		writeU32(&buf, uint32(d.En))
	}

	writeU32(&buf, uint32(len(m.Instances)))
	for _, inst := range m.Instances {
		writeString(&buf, inst.Name)
		writeString(&buf, inst.Module)
		writeU32(&buf, uint32(len(inst.Bindings)))
		// Stable order: bindings are keyed by port name, iterate sorted.
		for _, k := range sortedKeys(inst.Bindings) {
			writeString(&buf, k)
			writeU32(&buf, uint32(inst.Bindings[k]))
		}
	}
	return buf.Bytes(), nil
}

// ParseModule decodes bytes produced by Module.Serialize.
func ParseModule(data []byte) (*Module, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != irMagic {
		return nil, errors.New("ir: bad magic")
	}
	ver := readU32(r)
	if ver != irVersion {
		return nil, errors.Errorf("ir: unsupported version %d", ver)
	}
	m := &Module{Name: readString(r)}

	nPorts := readU32(r)
	for i := uint32(0); i < nPorts; i++ {
		name := readString(r)
		dir := Direction(readByte(r))
		w := Width(readU32(r))
		m.Ports = append(m.Ports, Signal{Name: name, Dir: dir, Width: w})
	}

	nNets := readU32(r)
	for i := uint32(0); i < nNets; i++ {
		id := NetID(readU32(r))
		name := readString(r)
		w := Width(readU32(r))
		m.Nets = append(m.Nets, Net{ID: id, Name: name, Width: w})
	}

	nAssigns := readU32(r)
	for i := uint32(0); i < nAssigns; i++ {
		dest := NetID(readU32(r))
		e, err := readExpr(r)
		if err != nil {
			return nil, err
		}
		m.Assigns = append(m.Assigns, Assign{Dest: dest, Expr: e})
	}

	nDffs := readU32(r)
	for i := uint32(0); i < nDffs; i++ {
		d := NetID(readU32(r))
		q := NetID(readU32(r))
		clk := NetID(readU32(r))
		hasRst := readBool(r)
		rst := NetID(readU32(r))
		rstVal := readBigInt(r)
		if !hasRst {
			// RstVal is meaningless without a reset net; normalize back to
			// nil so parse(serialize(m)) reproduces a reset-less DFF's zero
			// value exactly, rather than the placeholder big.NewInt(0)
			// writeBigInt substitutes for a nil value on the wire.
			rstVal = nil
		}
		hasEn := readBool(r)
		en := NetID(readU32(r))
		m.DFFs = append(m.DFFs, DFF{D: d, Q: q, Clk: clk, HasRst: hasRst, Rst: rst, RstVal: rstVal, HasEn: hasEn, En: en})
	}

	nInst := readU32(r)
	for i := uint32(0); i < nInst; i++ {
		name := readString(r)
		module := readString(r)
		nb := readU32(r)
		bindings := map[string]NetID{}
		for j := uint32(0); j < nb; j++ {
			k := readString(r)
			v := NetID(readU32(r))
			bindings[k] = v
		}
		m.Instances = append(m.Instances, Instance{Name: name, Module: module, Bindings: bindings})
	}
	return m, nil
}

func sortedKeys(m map[string]NetID) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort: binding maps are tiny (one entry per port).
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

const (
	exprTagNetRef = iota
	exprTagConst
	exprTagGate
)

func writeExpr(buf *bytes.Buffer, e Expr) error {
	switch v := e.(type) {
	case NetRef:
		buf.WriteByte(exprTagNetRef)
		writeU32(buf, uint32(v.Net))
		writeU32(buf, uint32(v.W))
	case ConstExpr:
		buf.WriteByte(exprTagConst)
		writeU32(buf, uint32(v.Val.Width))
		writeBigInt(buf, v.Val.Value)
	case GateExpr:
		buf.WriteByte(exprTagGate)
		buf.WriteByte(byte(v.Tag))
		writeU32(buf, uint32(v.W))
		writeU32(buf, uint32(v.K))
		writeU32(buf, uint32(v.Hi))
		writeU32(buf, uint32(v.Lo))
		writeBool(buf, v.Signed)
		writeU32(buf, uint32(len(v.Args)))
		for _, a := range v.Args {
			if err := writeExpr(buf, a); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("ir: cannot serialize expression of type %T", e)
	}
	return nil
}

func readExpr(r *bytes.Reader) (Expr, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "ir: truncated expression")
	}
	switch tag {
	case exprTagNetRef:
		return NetRef{Net: NetID(readU32(r)), W: Width(readU32(r))}, nil
	case exprTagConst:
		w := Width(readU32(r))
		v := readBigInt(r)
		return ConstExpr{Val: Const{Width: w, Value: v}}, nil
	case exprTagGate:
		g := GateExpr{}
		g.Tag = GateOpTag(readByte(r))
		g.W = Width(readU32(r))
		g.K = int(readU32(r))
		g.Hi = int(readU32(r))
		g.Lo = int(readU32(r))
		g.Signed = readBool(r)
		n := readU32(r)
		for i := uint32(0); i < n; i++ {
			a, err := readExpr(r)
			if err != nil {
				return nil, err
			}
			g.Args = append(g.Args, a)
		}
		return g, nil
	default:
		return nil, errors.Errorf("ir: unknown expression tag %d", tag)
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU32(r *bytes.Reader) uint32 {
	var tmp [4]byte
	_, _ = r.Read(tmp[:])
	return binary.LittleEndian.Uint32(tmp[:])
}

func readByte(r *bytes.Reader) byte {
	b, _ := r.ReadByte()
	return b
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) bool {
	return readByte(r) != 0
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	n := readU32(r)
	b := make([]byte, n)
	_, _ = r.Read(b)
	return string(b)
}

func writeBigInt(buf *bytes.Buffer, v *big.Int) {
	if v == nil {
		v = big.NewInt(0)
	}
	b := v.Bytes()
	writeU32(buf, uint32(len(b)))
	buf.Write(b)
}

func readBigInt(r *bytes.Reader) *big.Int {
	n := readU32(r)
	b := make([]byte, n)
	_, _ = r.Read(b)
	return new(big.Int).SetBytes(b)
}
