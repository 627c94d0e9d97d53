package early

import (
	"bytes"
	"testing"

	"github.com/sophon-os/sophon/kernel/hal"
)

// bufConsole is a trivial hal.Console backed by a bytes.Buffer, used so
// these tests don't need a real UART or framebuffer console attached.
type bufConsole struct {
	buf bytes.Buffer
}

func (c *bufConsole) WriteByte(b byte) error {
	return c.buf.WriteByte(b)
}

func (c *bufConsole) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func TestPrintf(t *testing.T) {
	origTerm := hal.ActiveTerminal
	defer func() { hal.ActiveTerminal = origTerm }()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{
			func() { printfn("no args") },
			"no args",
		},
		{
			func() { printfn("%t", true) },
			"true",
		},
		{
			func() { printfn("%41t", false) },
			"false",
		},
		{
			func() { printfn("%s arg", "STRING") },
			"STRING arg",
		},
		{
			func() { printfn("%s arg", []byte("BYTE SLICE")) },
			"BYTE SLICE arg",
		},
		{
			func() { printfn("'%4s' arg with padding", "ABC") },
			"' ABC' arg with padding",
		},
		{
			func() { printfn("'%4s' arg longer than padding", "ABCDE") },
			"'ABCDE' arg longer than padding",
		},
		{
			func() { printfn("%d", 42) },
			"42",
		},
		{
			func() { printfn("%d", -42) },
			"-42",
		},
		{
			func() { printfn("%5d", 42) },
			"   42",
		},
		{
			func() { printfn("%x", 255) },
			"0xff",
		},
		{
			func() { printfn("%o", 8) },
			"10",
		},
		{
			func() { printfn("%s", 123) },
			"%!(WRONGTYPE)",
		},
		{
			func() { printfn("missing %d") },
			"missing %!(MISSING)",
		},
		{
			func() { printfn("%z") },
			"%!(NOVERB)",
		},
		{
			func() { printfn("extra", 1, 2) },
			"extra%!(EXTRA)%!(EXTRA)",
		},
		{
			func() { printfn("100%%") },
			"100%",
		},
	}

	for specIndex, spec := range specs {
		con := &bufConsole{}
		hal.ActiveTerminal = con
		spec.fn()

		if got := con.buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}
