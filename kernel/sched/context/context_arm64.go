//go:build arm64

package context

// switchTo and initFrame have no Go body; both are implemented in
// context_arm64.s, mirroring kernel/cpu's seam of a typed Go declaration
// backed by hand-written assembly the compiler cannot inline away or
// reorder across.

// switchTo saves X19-X30 and SP of the calling goroutine's task into
// from.sp, then restores to's previously saved registers and SP and
// returns - into whatever instruction follows the SwitchTo call that last
// saved them, or into entryTrampoline on a never-started Context.
func switchTo(from, to *Context)

// initFrame writes a saved-register frame at the top of a fresh stack
// (sp, already 16-byte aligned) whose saved link register points at
// entryTrampoline, and returns the resulting (lowered) stack pointer to
// store as Context.sp.
func initFrame(sp uintptr) uintptr
