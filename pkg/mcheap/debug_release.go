//go:build !mcheap_debug

package mcheap

func assertf(cond bool, format string, args ...any) {}
