package ipc

import (
	"testing"

	"github.com/sophon-os/sophon/kernel"
)

// fakeScheme is an in-memory Scheme backing a single fixed-content
// "file" for testing DispatchScheme without a real VFS/RAMFS collaborator.
type fakeScheme struct {
	content []byte
	closed  bool
}

func (s *fakeScheme) Open(uri string, flags, mode uint64) (Handle, *kernel.Error) {
	if uri != "test.txt" {
		return 0, &kernel.Error{Kind: kernel.KindNotFound}
	}
	return Handle(1), nil
}
func (s *fakeScheme) Close(h Handle) *kernel.Error {
	s.closed = true
	return nil
}
func (s *fakeScheme) FStat(h Handle) (int64, *kernel.Error) {
	return int64(len(s.content)), nil
}
func (s *fakeScheme) LSeek(h Handle, offset int64, whence uint64) (int64, *kernel.Error) {
	return offset, nil
}
func (s *fakeScheme) Read(h Handle, buf []byte) (int, *kernel.Error) {
	return copy(buf, s.content), nil
}
func (s *fakeScheme) Write(h Handle, buf []byte) (int, *kernel.Error) {
	s.content = append(s.content, buf...)
	return len(buf), nil
}

func TestDispatchSchemeOpenThenFStat(t *testing.T) {
	s := &fakeScheme{content: []byte("hello")}
	RegisterScheme("fake-test", s)

	uri := []byte("test.txt")
	ret := DispatchScheme("fake-test", SchemeRequest{Kind: Open, Arg0: uint64(uintptrOf(uri)), Arg1: uint64(len(uri))})
	if ret != 1 {
		t.Fatalf("expected handle 1; got %d", ret)
	}

	ret = DispatchScheme("fake-test", SchemeRequest{Kind: FStat, Arg0: 1})
	if ret != 5 {
		t.Fatalf("expected size 5; got %d", ret)
	}
}

func TestDispatchSchemeWriteThenRead(t *testing.T) {
	s := &fakeScheme{}
	RegisterScheme("fake-test-rw", s)

	payload := []byte("abc")
	ret := DispatchScheme("fake-test-rw", SchemeRequest{
		Kind: Write,
		Arg0: 1,
		Arg1: uint64(uintptrOf(payload)),
		Arg2: uint64(len(payload)),
	})
	if ret != 3 {
		t.Fatalf("expected 3 bytes written; got %d", ret)
	}

	out := make([]byte, 3)
	ret = DispatchScheme("fake-test-rw", SchemeRequest{
		Kind: Read,
		Arg0: 1,
		Arg1: uint64(uintptrOf(out)),
		Arg2: uint64(len(out)),
	})
	if ret != 3 || string(out) != "abc" {
		t.Fatalf("expected to read back abc; got %d, %q", ret, out)
	}
}

func TestDispatchSchemeUnknownSchemeIsNegative(t *testing.T) {
	ret := DispatchScheme("does-not-exist", SchemeRequest{Kind: Close, Arg0: 1})
	if ret >= 0 {
		t.Fatalf("expected a negative isize for an unregistered scheme; got %d", ret)
	}
}

func TestDispatchSchemeRegisterConfirmsPresenceOnly(t *testing.T) {
	RegisterScheme("fake-test-reg", &fakeScheme{})

	ret := DispatchScheme("fake-test-reg", SchemeRequest{Kind: Register})
	if ret != 0 {
		t.Fatalf("expected 0 confirming presence; got %d", ret)
	}

	ret = DispatchScheme("not-registered", SchemeRequest{Kind: Register})
	if ret >= 0 {
		t.Fatalf("expected a negative isize for an absent scheme; got %d", ret)
	}
}
