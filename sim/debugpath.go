package sim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jmchacon/hwsim/netlist"
)

// resolveDebugPath looks path up in nl.DebugNames, splitting a trailing
// "[i]" index (for multi-bit nets) off the base name first. idx is -1 when
// path named no index.
func resolveDebugPath(nl *netlist.Netlist, path string) (wires []netlist.WireID, idx int, err error) {
	base, idx := splitIndex(path)
	wires, ok := nl.DebugNames[base]
	if !ok {
		return nil, -1, errors.Errorf("peek_net: no net named %q", base)
	}
	return wires, idx, nil
}

func splitIndex(path string) (base string, idx int) {
	if !strings.HasSuffix(path, "]") {
		return path, -1
	}
	open := strings.LastIndexByte(path, '[')
	if open < 0 {
		return path, -1
	}
	n, err := strconv.Atoi(path[open+1 : len(path)-1])
	if err != nil {
		return path, -1
	}
	return path[:open], n
}
