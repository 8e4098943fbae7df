//go:build !race

package fiber

import "unsafe"

func raceAcquire(unsafe.Pointer) {}

func raceRelease(unsafe.Pointer) {}
