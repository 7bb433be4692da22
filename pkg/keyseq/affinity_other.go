//go:build !linux

package keyseq

import (
	"errors"
	"runtime"
)

// pinCurrentThread only locks the OS thread; CPU affinity is Linux-only.
func pinCurrentThread(int) (int, error) {
	runtime.LockOSThread()
	return -1, errors.New("cpu affinity not supported on " + runtime.GOOS)
}
