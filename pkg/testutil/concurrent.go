// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync"

	dErrors "accountopen/pkg/domain-errors"
)

// Uncoded buckets errors that carry no domain code.
const Uncoded dErrors.Code = "uncoded"

// ConcurrentResult counts outcomes by domain error code.
type ConcurrentResult struct {
	Successes int
	Failures  map[dErrors.Code]int
}

func (r *ConcurrentResult) Total() int {
	n := r.Successes
	for _, c := range r.Failures {
		n += c
	}
	return n
}

// Count returns how many calls failed with code.
func (r *ConcurrentResult) Count(code dErrors.Code) int {
	return r.Failures[code]
}

// RunConcurrent calls fn from n goroutines released together, so the calls
// overlap as much as the scheduler allows.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
		res   = &ConcurrentResult{Failures: make(map[dErrors.Code]int)}
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn(i)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				res.Successes++
				return
			}
			code, ok := dErrors.CodeOf(err)
			if !ok {
				code = Uncoded
			}
			res.Failures[code]++
		}()
	}
	close(start)
	wg.Wait()
	return res
}
