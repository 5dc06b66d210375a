package aot

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/jmchacon/hwsim/netlist"
)

func halfAdderNetlist() *netlist.Netlist {
	return &netlist.Netlist{
		WireCount: 4,
		Inputs: []netlist.Port{
			{Name: "a", Wires: []netlist.WireID{0}},
			{Name: "b", Wires: []netlist.WireID{1}},
		},
		Outputs: []netlist.Port{
			{Name: "sum", Wires: []netlist.WireID{2}},
			{Name: "carry", Wires: []netlist.WireID{3}},
		},
		Gates: []netlist.Gate{
			{Op: netlist.Xor2, InA: 0, InB: 1, Out: 2},
			{Op: netlist.And2, InA: 0, InB: 1, Out: 3},
		},
	}
}

// TestBuildAndRunRoundTrip builds a real plugin on disk and runs it. It is
// skipped where the host toolchain can't produce a Go plugin (plugin mode
// is linux/darwin only, and needs cgo), so it isn't a hard requirement for
// every CI runner, but it is the one test in this package that exercises
// the whole Cache.Build pipeline end to end.
func TestBuildAndRunRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	dir := t.TempDir()
	cache, err := NewCache(filepath.Join(dir, "aotcache"))
	if err != nil {
		t.Fatal(err)
	}
	nl := halfAdderNetlist()
	s, err := cache.Build(nl, "ha")
	if err != nil {
		t.Skipf("plugin build unsupported on this host: %v", err)
	}
	for a := uint64(0); a < 2; a++ {
		for b := uint64(0); b < 2; b++ {
			_ = s.WritePort("a", a)
			_ = s.WritePort("b", b)
			if err := s.Step(1); err != nil {
				t.Fatal(err)
			}
			sum, _ := s.ReadPort("sum")
			carry, _ := s.ReadPort("carry")
			if sum != a^b || carry != a&b {
				t.Errorf("a=%d b=%d: sum=%d carry=%d", a, b, sum, carry)
			}
		}
	}

	// a second Build with the same Netlist must hit the cache rather than
	// invoking go build again.
	key, _ := nl.CacheKey()
	soPath, ok := cache.Lookup(key)
	if !ok {
		t.Fatal("Lookup() after Build(): want cached artifact present")
	}
	if _, err := cache.Build(nl, "ha"); err != nil {
		t.Fatalf("second Build() (should hit cache): %v", err)
	}
	soPath2, _ := cache.Lookup(key)
	if soPath != soPath2 {
		t.Errorf("cached so path changed across builds: %s vs %s", soPath, soPath2)
	}

	m, err := loadManifest(filepath.Join(dir, "aotcache"))
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := m.Entries[key]
	if !ok {
		t.Fatal("manifest missing entry for key")
	}
	if entry.SourceModule != "ha" {
		t.Errorf("SourceModule = %q, want %q", entry.SourceModule, "ha")
	}
	if entry.BuiltAt == "" {
		t.Error("BuiltAt is empty, want a populated timestamp")
	}
}

func TestBuildCacheOnlyMissesBeforeBuild(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	nl := halfAdderNetlist()
	if _, err := cache.BuildCacheOnly(nl); err == nil {
		t.Fatal("BuildCacheOnly() on an empty cache: want AotCacheMiss")
	}
}
