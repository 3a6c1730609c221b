package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLogrusReporterUnknownAddress(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogrusReporter()
	r.Log.Out = &buf
	r.Log.Formatter = &logrus.TextFormatter{DisableColors: true}

	r.UnknownAddress(0xdeadbeef, "address outside heap region")

	out := buf.String()
	if !strings.Contains(out, "0xdeadbeef") {
		t.Errorf("log output missing address, got: %s", out)
	}
	if !strings.Contains(out, "address outside heap region") {
		t.Errorf("log output missing reason, got: %s", out)
	}
	if !strings.Contains(out, "level=warning") {
		t.Errorf("log output not at warning level, got: %s", out)
	}
}

func TestLogrusReporterOutOfMemory(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogrusReporter()
	r.Log.Out = &buf
	r.Log.Formatter = &logrus.TextFormatter{DisableColors: true}

	r.OutOfMemory(4096)

	out := buf.String()
	if !strings.Contains(out, "requested=4096") {
		t.Errorf("log output missing requested size, got: %s", out)
	}
	if !strings.Contains(out, "level=warning") {
		t.Errorf("log output not at warning level, got: %s", out)
	}
}

func TestNopReporterDiscardsWithoutPanic(t *testing.T) {
	Nop.UnknownAddress(0x1234, "whatever")
	Nop.OutOfMemory(16)
}
