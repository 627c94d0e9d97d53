//go:build !arm64

package context

// Sophon targets AArch64 only; an x86_64 backend is stubbed in source only,
// never implemented. This file exists so the package still builds
// under `go vet ./...` on a development workstation; it is rejected at
// configure time rather than silently producing wrong behavior, matching
// kernel/cpu's non-arm64 stub.
func init() {
	panic("kernel/sched/context: no backend for GOARCH other than arm64")
}

func switchTo(from, to *Context) {}
func initFrame(sp uintptr) uintptr { return sp }
