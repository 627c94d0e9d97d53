package ipc

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

var errUnknownModule = &kernel.Error{Module: "ipc", Message: "unknown module name", Kind: kernel.KindNotFound}

// ModuleRequest is the 4-word payload a ModuleCall handler receives.
// Privileged distinguishes an in-kernel caller (another module invoking
// this one directly) from a user syscall caller.
type ModuleRequest struct {
	Privileged     bool
	W0, W1, W2, W3 uint64
}

// ModuleHandler is a named in-kernel module's entry point. Returns an
// isize: non-negative success value, negative error code.
type ModuleHandler func(req ModuleRequest) int64

var (
	// modulesMu guards modules. Read-heavy: name is resolved once per
	// call via a read-heavy mutex-protected map -
	// every ModuleCall takes the read lock; only RegisterModule takes
	// the write lock, and only at boot.
	modulesMu gvsync.RWMutex
	modules   = map[string]ModuleHandler{}
)

// RegisterModule installs handler under name, replacing any previous
// registration - used at boot to wire the pm module and any others.
func RegisterModule(name string, handler ModuleHandler) {
	modulesMu.Lock()
	modules[name] = handler
	modulesMu.Unlock()
}

// CallModule looks up name and invokes its handler with req, returning
// errUnknownModule.Errno() if no module is registered under that name.
func CallModule(name string, req ModuleRequest) int64 {
	modulesMu.RLock()
	handler, ok := modules[name]
	modulesMu.RUnlock()

	if !ok {
		return errUnknownModule.Errno()
	}
	return handler(req)
}

// sysModuleCall decodes the ModuleCall syscall's arguments: a = name
// pointer, b = name length, c..e = the first three payload words. The
// fourth payload word has no syscall-argument register left (x0..x5 are
// fully spent on id + a..e), so in-kernel callers get the full 4-word
// payload via CallModule directly and user callers get a 3-word payload
// with the 4th word fixed at 0 - documented here rather than silently
// truncated.
func sysModuleCall(namePtr, nameLen, w0, w1, w2 uint64) int64 {
	nameBytes, err := userBytes(mem.VAddr(namePtr), nameLen)
	if err != nil {
		return err.Errno()
	}
	return CallModule(string(nameBytes), ModuleRequest{
		Privileged: false,
		W0:         w0,
		W1:         w1,
		W2:         w2,
	})
}
