// Package keyseq implements a key-partitioned sequential executor.
//
// An Executor owns a fixed pool of workers. Every job is submitted with a
// string key; the key is hashed onto one worker, and each worker runs its
// jobs one at a time in the order they reached it. Jobs sharing a key
// therefore run in submission order, while jobs whose keys land on different
// workers run concurrently.
//
// All routing happens on a single control loop. Submit only hands the
// (key, job) pair to that loop and returns; the loop is the sole owner of the
// routing table and its counters, so no lock is shared between submitters and
// workers. "Submission order" means the order in which submissions reached
// the control loop: two goroutines racing on the same key are ordered however
// their Submit calls land.
//
// Basic usage:
//
//	exec, err := keyseq.New(8)
//	if err != nil {
//		return err
//	}
//	defer exec.Stop()
//
//	for _, ev := range events {
//		ev := ev
//		if err := exec.Submit(ev.AccountID, func() { apply(ev) }); err != nil {
//			return err
//		}
//	}
//
// Stop blocks until every job accepted before it was called has run. Jobs
// submitted afterwards are rejected with ErrExecutorStopped.
//
// A job that panics is recovered on its worker, logged, counted in Stats and
// passed to Config.PanicHandler; the worker carries on with the next job.
// Jobs report results through whatever channel or callback they capture;
// the executor itself is result-free.
package keyseq
