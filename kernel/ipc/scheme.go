package ipc

import (
	"github.com/sophon-os/sophon/kernel"
	"github.com/sophon-os/sophon/kernel/mem"
	gvsync "gvisor.dev/gvisor/pkg/sync"
)

// SchemeRequestKind is a message-style IPC request's kind tag: a request
// carries (scheme_request_kind, arg0..arg4).
type SchemeRequestKind uint8

const (
	Register SchemeRequestKind = iota
	Open
	Close
	FStat
	LSeek
	Read
	Write
)

// SchemeRequest is the fixed 5-word request shape every scheme kind
// shares; individual kinds interpret Arg0..Arg4 differently (Open reads
// a URI pointer/length plus flags/mode; Read/Write read a handle plus a
// buffer pointer/length).
type SchemeRequest struct {
	Kind                               SchemeRequestKind
	Arg0, Arg1, Arg2, Arg3, Arg4 uint64
}

// Handle identifies an open resource returned by a successful Open.
type Handle uint64

// Scheme is a URI-addressable resource namespace - an external
// collaborator; only its request/reply surface lives here. VFS/RAMFS
// backing stores are out of scope.
type Scheme interface {
	Open(uri string, flags, mode uint64) (Handle, *kernel.Error)
	Close(h Handle) *kernel.Error
	FStat(h Handle) (size int64, err *kernel.Error)
	LSeek(h Handle, offset int64, whence uint64) (newOffset int64, err *kernel.Error)
	Read(h Handle, buf []byte) (n int, err *kernel.Error)
	Write(h Handle, buf []byte) (n int, err *kernel.Error)
}

var (
	schemesMu gvsync.RWMutex
	schemes   = map[string]Scheme{}
)

var errUnknownScheme = &kernel.Error{Module: "ipc", Message: "unknown scheme", Kind: kernel.KindNotFound}

// RegisterScheme installs s under name, so a later Open against
// "name:path" routes to it. Only in-kernel code can call it: a Register
// scheme request through DispatchScheme confirms that a scheme is present
// and never installs one.
func RegisterScheme(name string, s Scheme) {
	schemesMu.Lock()
	schemes[name] = s
	schemesMu.Unlock()
}

func lookupScheme(name string) (Scheme, *kernel.Error) {
	schemesMu.RLock()
	defer schemesMu.RUnlock()

	s, ok := schemes[name]
	if !ok {
		return nil, errUnknownScheme
	}
	return s, nil
}

// DispatchScheme routes req to the scheme named by schemeName (resolved
// by the caller from the URI's prefix before Open, or remembered from a
// prior Open for every other kind) and returns an isize reply, matching
// the syscall ABI's reply convention.
func DispatchScheme(schemeName string, req SchemeRequest) int64 {
	if req.Kind == Register {
		// Registering a scheme hands over a live Scheme implementation,
		// which cannot be marshalled through a 5-word uint64 request -
		// only RegisterScheme, called directly by in-kernel module init
		// code, can install one. A message-layer Register request can
		// only ever confirm presence, not add one.
		if _, err := lookupScheme(schemeName); err != nil {
			return err.Errno()
		}
		return 0
	}

	s, err := lookupScheme(schemeName)
	if err != nil {
		return err.Errno()
	}

	switch req.Kind {
	case Open:
		uriBytes, err := userBytes(mem.VAddr(req.Arg0), req.Arg1)
		if err != nil {
			return err.Errno()
		}
		h, err := s.Open(string(uriBytes), req.Arg2, req.Arg3)
		if err != nil {
			return err.Errno()
		}
		return int64(h)
	case Close:
		if err := s.Close(Handle(req.Arg0)); err != nil {
			return err.Errno()
		}
		return 0
	case FStat:
		size, err := s.FStat(Handle(req.Arg0))
		if err != nil {
			return err.Errno()
		}
		return size
	case LSeek:
		off, err := s.LSeek(Handle(req.Arg0), int64(req.Arg1), req.Arg2)
		if err != nil {
			return err.Errno()
		}
		return off
	case Read:
		buf, err := userBytes(mem.VAddr(req.Arg1), req.Arg2)
		if err != nil {
			return err.Errno()
		}
		n, err := s.Read(Handle(req.Arg0), buf)
		if err != nil {
			return err.Errno()
		}
		return int64(n)
	case Write:
		buf, err := userBytes(mem.VAddr(req.Arg1), req.Arg2)
		if err != nil {
			return err.Errno()
		}
		n, err := s.Write(Handle(req.Arg0), buf)
		if err != nil {
			return err.Errno()
		}
		return int64(n)
	default:
		return (&kernel.Error{Module: "ipc", Message: "unknown scheme request kind", Kind: kernel.KindInvalidArgument}).Errno()
	}
}
