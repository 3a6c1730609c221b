//go:build mcheap_debug

package mcheap

import "fmt"

// assertf panics with a formatted message when cond is false. Compiled in
// only under the mcheap_debug build tag, mirroring the source's
// DEBUG_BUILD/MAX_PERF split: release builds pay nothing for invariant
// checks on the alloc/free hot path.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("mcheap: assertion failed: "+format, args...))
	}
}
