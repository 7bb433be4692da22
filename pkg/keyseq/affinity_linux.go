//go:build linux

package keyseq

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to the n-th CPU (modulo the count) of the process's allowed
// set. It returns the chosen CPU.
func pinCurrentThread(n int) (int, error) {
	runtime.LockOSThread()

	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return -1, fmt.Errorf("sched_getaffinity: %w", err)
	}
	count := allowed.Count()
	if count == 0 {
		return -1, fmt.Errorf("empty cpu set")
	}

	// count > target, so the scan stops at a set bit.
	target := n % count
	cpu := -1
	for i, seen := 0, 0; cpu < 0; i++ {
		if !allowed.IsSet(i) {
			continue
		}
		if seen == target {
			cpu = i
		}
		seen++
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return -1, fmt.Errorf("sched_setaffinity cpu %d: %w", cpu, err)
	}
	return cpu, nil
}
