//go:build race

package fiber

import (
	"runtime"
	"unsafe"
)

// raceAcquire and raceRelease mark the handoff across a coroutine switch
// so the race detector sees the loop and the fiber as ordered.
func raceAcquire(addr unsafe.Pointer) { runtime.RaceAcquire(addr) }

func raceRelease(addr unsafe.Pointer) { runtime.RaceReleaseMerge(addr) }
