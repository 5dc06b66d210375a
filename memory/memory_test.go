package memory

import "testing"

func TestRAMBankReadWrite(t *testing.T) {
	b, err := NewRAMBank(256, nil)
	if err != nil {
		t.Fatal(err)
	}
	b.Write(0x10, 0x42)
	if got := b.Read(0x10); got != 0x42 {
		t.Errorf("Read(0x10) = %#x, want 0x42", got)
	}
	if got := b.DatabusVal(); got != 0x42 {
		t.Errorf("DatabusVal() = %#x, want 0x42", got)
	}
}

func TestRAMBankAliases(t *testing.T) {
	b, err := NewRAMBank(16, nil)
	if err != nil {
		t.Fatal(err)
	}
	b.Write(0x00, 7)
	if got := b.Read(0x10); got != 7 {
		t.Errorf("Read(0x10) = %d, want 7 (address should alias mod bank size)", got)
	}
}

func TestRAMBankRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewRAMBank(100, nil); err == nil {
		t.Fatal("NewRAMBank(100): want error (not a power of 2)")
	}
}

func TestROMBankWriteIsNoop(t *testing.T) {
	rom, err := NewROMBank(16, []uint8{1, 2, 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rom.Write(0, 99)
	if got := rom.Read(0); got != 1 {
		t.Errorf("Read(0) after Write = %d, want 1 (ROM writes are no-ops)", got)
	}
	if got := rom.Read(5); got != 0 {
		t.Errorf("Read(5) = %d, want 0 (zero padded beyond image)", got)
	}
}

func TestRouterDispatchesByRange(t *testing.T) {
	rt := NewRouter(nil)
	ram, _ := NewRAMBank(256, rt)
	rom, _ := NewROMBank(256, []uint8{0xAA}, rt)
	rt.Map(0x0000, 0x0100, ram)
	rt.Map(0xFF00, 0x0100, rom)

	rt.Write(0x0010, 5)
	if got := rt.Read(0x0010); got != 5 {
		t.Errorf("Read(0x0010) = %d, want 5", got)
	}
	if got := rt.Read(0xFF00); got != 0xAA {
		t.Errorf("Read(0xFF00) = %#x, want 0xAA", got)
	}
	rt.Write(0xFF00, 0x11) // ROM write: no-op
	if got := rt.Read(0xFF00); got != 0xAA {
		t.Errorf("Read(0xFF00) after write = %#x, want 0xAA (ROM ignores writes)", got)
	}
}

func TestRouterOpenBusReturnsLastDatabusVal(t *testing.T) {
	rt := NewRouter(nil)
	ram, _ := NewRAMBank(256, rt)
	rt.Map(0x0000, 0x0100, ram)
	rt.Write(0x0010, 0x7E) // updates rt.databusVal via the mapped bank path
	if got := rt.Read(0x8000); got != 0x7E {
		t.Errorf("Read(0x8000) (unmapped) = %#x, want 0x7E (last databus value)", got)
	}
}

func TestRouterMapPanicsOnOverlap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Map() with overlapping ranges: want panic")
		}
	}()
	rt := NewRouter(nil)
	b1, _ := NewRAMBank(256, rt)
	b2, _ := NewRAMBank(256, rt)
	rt.Map(0x0000, 0x0200, b1)
	rt.Map(0x0100, 0x0100, b2)
}

func TestLatestDatabusValWalksParentChain(t *testing.T) {
	rt := NewRouter(nil)
	ram, _ := NewRAMBank(16, rt)
	rt.Map(0, 16, ram)
	rt.Write(2, 0x33)
	if got := LatestDatabusVal(ram); got != 0x33 {
		t.Errorf("LatestDatabusVal(ram) = %#x, want 0x33", got)
	}
}
