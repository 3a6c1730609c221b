// Package diag is the allocator's diagnostic side channel: it never
// participates in the alloc/free hot path, only observes it, so a caller
// can plug in structured logging without the core depending on a logging
// library's types.
package diag

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Reporter receives allocator diagnostics. All methods must be safe to call
// under the heap's lock.
type Reporter interface {
	// UnknownAddress is called when Free is given an address that does not
	// resolve to a live allocation. AllocSizeOf does not call it; it returns
	// 0 for such an address.
	UnknownAddress(addr uintptr, reason string)
	// OutOfMemory is called when Alloc cannot satisfy a request.
	OutOfMemory(requested uint32)
}

// LogrusReporter reports via a *logrus.Logger.
type LogrusReporter struct {
	Log *logrus.Logger
}

// NewLogrusReporter returns a LogrusReporter with a default logrus.Logger.
func NewLogrusReporter() *LogrusReporter {
	return &LogrusReporter{Log: logrus.New()}
}

func (r *LogrusReporter) UnknownAddress(addr uintptr, reason string) {
	r.Log.WithFields(logrus.Fields{
		"addr":   fmt.Sprintf("0x%x", addr),
		"reason": reason,
	}).Warn("mcheap: address does not belong to a live allocation")
}

func (r *LogrusReporter) OutOfMemory(requested uint32) {
	r.Log.WithField("requested", requested).Warn("mcheap: out of memory")
}

type nopReporter struct{}

func (nopReporter) UnknownAddress(uintptr, string) {}
func (nopReporter) OutOfMemory(uint32)             {}

// Nop discards every diagnostic. It is the default Reporter for a Heap
// created without mcheap.WithDiagnostics.
var Nop Reporter = nopReporter{}
