// Package aot is the ahead-of-time simulation engine: it compiles a
// Netlist's combinational subgraph into straight-line Go source, builds it
// with `go build -buildmode=plugin`, and loads the resulting shared
// library with the standard library's plugin package. Artifacts are
// cached on disk keyed by the Netlist's canonical SHA-256 (netlist.Netlist
// CacheKey), so repeated runs against the same design skip the build step
// entirely (spec.md §4.4.4).
package aot

import (
	"os"
	"os/exec"
	"path/filepath"
	"plugin"
	"time"

	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/netlist"
	"github.com/jmchacon/hwsim/schedule"
	"github.com/jmchacon/hwsim/sim"
)

// Cache is an on-disk store of compiled AOT artifacts, rooted at Dir.
type Cache struct {
	Dir string
}

// NewCache opens (creating if necessary) a Cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "aot: creating cache dir %s", dir)
	}
	return &Cache{Dir: dir}, nil
}

// Lookup reports whether a built artifact for key already exists in the
// cache, without building anything. Callers that want strict cache-only
// behavior (no implicit build) can use this to return sim.AotCacheMiss
// themselves.
func (c *Cache) Lookup(key string) (soPath string, ok bool) {
	m, err := loadManifest(c.Dir)
	if err != nil {
		return "", false
	}
	e, ok := m.Entries[key]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(e.SOPath); err != nil {
		return "", false
	}
	return e.SOPath, true
}

// Build compiles and caches a plugin for nl if one isn't already cached,
// then loads it and returns an AOT-backed Simulator. sourceModule is the
// top-level module name nl was flattened from (the name passed to
// flatten.Flatten), recorded in the manifest entry so a stale cache
// directory can be inspected without re-deriving which design each
// artifact belongs to.
func (c *Cache) Build(nl *netlist.Netlist, sourceModule string) (*sim.Simulator, error) {
	key, err := nl.CacheKey()
	if err != nil {
		return nil, errors.Wrap(err, "aot: computing cache key")
	}

	soPath, ok := c.Lookup(key)
	if !ok {
		soPath, err = c.build(nl, key, sourceModule)
		if err != nil {
			return nil, sim.AotBuildFailed{Key: key, Reason: err.Error()}
		}
	}

	comb, err := loadComb(soPath)
	if err != nil {
		return nil, errors.Wrapf(err, "aot: loading plugin for key %s", key)
	}
	return sim.New(nl, sim.Aot, comb), nil
}

// BuildCacheOnly behaves like Build but returns sim.AotCacheMiss instead of
// compiling when key is not already cached, for drivers that want to treat
// a cold cache as a recoverable condition to fall back from (spec.md §7).
func (c *Cache) BuildCacheOnly(nl *netlist.Netlist) (*sim.Simulator, error) {
	key, err := nl.CacheKey()
	if err != nil {
		return nil, errors.Wrap(err, "aot: computing cache key")
	}
	soPath, ok := c.Lookup(key)
	if !ok {
		return nil, sim.AotCacheMiss{Key: key}
	}
	comb, err := loadComb(soPath)
	if err != nil {
		return nil, errors.Wrapf(err, "aot: loading plugin for key %s", key)
	}
	return sim.New(nl, sim.Aot, comb), nil
}

func (c *Cache) build(nl *netlist.Netlist, key, sourceModule string) (string, error) {
	sched, err := schedule.Build(nl)
	if err != nil {
		return "", errors.Wrap(err, "building schedule")
	}

	workDir, err := os.MkdirTemp(c.Dir, "build-"+key[:12])
	if err != nil {
		return "", errors.Wrap(err, "creating build dir")
	}
	defer os.RemoveAll(workDir)

	src := generateSource("main", nl, sched)
	srcPath := filepath.Join(workDir, "comb.go")
	if err := os.WriteFile(srcPath, src, 0o644); err != nil {
		return "", errors.Wrap(err, "writing generated source")
	}

	soPath := filepath.Join(c.Dir, key+".so")
	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", soPath, srcPath)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "go build failed: %s", string(out))
	}

	m, err := loadManifest(c.Dir)
	if err != nil {
		return "", err
	}
	m.Entries[key] = manifestEntry{
		Key:          key,
		SOPath:       soPath,
		GateCount:    len(nl.Gates),
		SourceModule: sourceModule,
		BuiltAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.save(c.Dir); err != nil {
		return "", err
	}
	return soPath, nil
}

func loadComb(soPath string) (sim.CombFunc, error) {
	p, err := plugin.Open(soPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening plugin")
	}
	sym, err := p.Lookup("Comb")
	if err != nil {
		return nil, errors.Wrap(err, "looking up Comb symbol")
	}
	fn, ok := sym.(func([]byte))
	if !ok {
		return nil, errors.New("Comb symbol has unexpected type")
	}
	return fn, nil
}
