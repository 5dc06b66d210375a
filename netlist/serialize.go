package netlist

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// netlMagic is the fixed 4-byte tag spec.md §6 requires at the start of the
// canonical encoding.
var netlMagic = [4]byte{'N', 'E', 'T', 'L'}

const netlVersion = uint32(1)

const rstFlagAsync = 1 << 0

// Serialize writes the canonical binary encoding described by spec.md §6:
// magic, version, wire-count, module-input list, module-output list, gate
// records, then DFF records, all little-endian with length-prefixed UTF-8
// strings. This is the exact byte-stream the AOT cache hashes as its key
// (see CacheKey) and that the round-trip tests compare byte for byte.
func (n *Netlist) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(netlMagic[:])
	writeU32(&buf, netlVersion)
	writeU32(&buf, uint32(n.WireCount))

	writePorts(&buf, n.Inputs)
	writePorts(&buf, n.Outputs)

	writeU32(&buf, uint32(len(n.Gates)))
	for _, g := range n.Gates {
		buf.WriteByte(byte(g.Op))
		writeU32(&buf, uint32(g.InA))
		writeWireOrAbsent(&buf, g.InB)
		writeU32(&buf, uint32(g.Out))
	}

	writeU32(&buf, uint32(len(n.DFFs)))
	for _, d := range n.DFFs {
		writeU32(&buf, uint32(d.D))
		writeU32(&buf, uint32(d.Q))
		writeU32(&buf, uint32(d.Clk))
		if d.HasRst {
			writeU32(&buf, uint32(d.Rst))
		} else {
			writeU32(&buf, 0xFFFFFFFF)
		}
		buf.WriteByte(d.RstValue)
		if d.HasEn {
			writeU32(&buf, uint32(d.En))
		} else {
			writeU32(&buf, 0xFFFFFFFF)
		}
		var flags byte
		if d.HasRst {
			flags |= rstFlagAsync
		}
		buf.WriteByte(flags)
	}
	return buf.Bytes(), nil
}

// CacheKey returns the SHA-256 of the canonical serialization, used as the
// AOT artifact cache key (spec.md §4.4.4, §6).
func (n *Netlist) CacheKey() (string, error) {
	b, err := n.Serialize()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}

func writePorts(buf *bytes.Buffer, ports []Port) {
	var entries []struct {
		name string
		wire WireID
	}
	for _, p := range ports {
		if len(p.Wires) == 1 {
			entries = append(entries, struct {
				name string
				wire WireID
			}{p.Name, p.Wires[0]})
			continue
		}
		for i, w := range p.Wires {
			entries = append(entries, struct {
				name string
				wire WireID
			}{fmt.Sprintf("%s[%d]", p.Name, i), w})
		}
	}
	writeU32(buf, uint32(len(entries)))
	for _, e := range entries {
		writeString(buf, e.name)
		writeU32(buf, uint32(e.wire))
	}
}

func readPorts(r *bytes.Reader) ([]Port, error) {
	n := readU32(r)
	type rawEntry struct {
		base  string
		idx   int // -1 if not an indexed bit
		wire  WireID
		order int
	}
	var raw []rawEntry
	for i := uint32(0); i < n; i++ {
		name := readString(r)
		wire := WireID(readU32(r))
		base, idx := splitIndexed(name)
		raw = append(raw, rawEntry{base: base, idx: idx, wire: wire, order: int(i)})
	}
	grouped := map[string][]rawEntry{}
	var order []string
	for _, e := range raw {
		if _, ok := grouped[e.base]; !ok {
			order = append(order, e.base)
		}
		grouped[e.base] = append(grouped[e.base], e)
	}
	var ports []Port
	for _, base := range order {
		es := grouped[base]
		if len(es) == 1 && es[0].idx == -1 {
			ports = append(ports, Port{Name: base, Wires: []WireID{es[0].wire}})
			continue
		}
		sort.Slice(es, func(i, j int) bool { return es[i].idx < es[j].idx })
		wires := make([]WireID, len(es))
		for i, e := range es {
			if e.idx != i {
				return nil, errors.Errorf("netlist: non-contiguous bit indices for port %q", base)
			}
			wires[i] = e.wire
		}
		ports = append(ports, Port{Name: base, Wires: wires})
	}
	return ports, nil
}

func splitIndexed(name string) (base string, idx int) {
	open := strings.LastIndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, -1
	}
	n, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil {
		return name, -1
	}
	return name[:open], n
}

// Parse decodes bytes produced by Netlist.Serialize.
func Parse(data []byte) (*Netlist, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != netlMagic {
		return nil, errors.New("netlist: bad magic")
	}
	ver := readU32(r)
	if ver != netlVersion {
		return nil, errors.Errorf("netlist: unsupported version %d", ver)
	}
	n := &Netlist{WireCount: int(readU32(r))}

	ins, err := readPorts(r)
	if err != nil {
		return nil, errors.Wrap(err, "netlist: parsing inputs")
	}
	n.Inputs = ins
	outs, err := readPorts(r)
	if err != nil {
		return nil, errors.Wrap(err, "netlist: parsing outputs")
	}
	n.Outputs = outs

	nGates := readU32(r)
	for i := uint32(0); i < nGates; i++ {
		op := GateOp(readByte(r))
		inA := WireID(readU32(r))
		inB := readWireOrAbsent(r)
		out := WireID(readU32(r))
		n.Gates = append(n.Gates, Gate{Op: op, InA: inA, InB: inB, Out: out})
	}

	nDffs := readU32(r)
	for i := uint32(0); i < nDffs; i++ {
		d := WireID(readU32(r))
		q := WireID(readU32(r))
		clk := WireID(readU32(r))
		rstRaw := readU32(r)
		rstVal := readByte(r)
		enRaw := readU32(r)
		_ = readByte(r) // flags: derivable from HasRst, kept for format fidelity only.
		dff := DFFBit{D: d, Q: q, Clk: clk, RstValue: rstVal}
		if rstRaw != 0xFFFFFFFF {
			dff.HasRst = true
			dff.Rst = WireID(rstRaw)
		}
		if enRaw != 0xFFFFFFFF {
			dff.HasEn = true
			dff.En = WireID(enRaw)
		}
		n.DFFs = append(n.DFFs, dff)
	}
	return n, nil
}

func writeWireOrAbsent(buf *bytes.Buffer, w WireID) {
	if w == AbsentWire {
		writeU32(buf, 0xFFFFFFFF)
		return
	}
	writeU32(buf, uint32(w))
}

func readWireOrAbsent(r *bytes.Reader) WireID {
	v := readU32(r)
	if v == 0xFFFFFFFF {
		return AbsentWire
	}
	return WireID(v)
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
