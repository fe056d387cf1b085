package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"nexuscred/pkg/platform/sentinel"
)

// ConcurrentResult tallies outcomes of RunConcurrent by sentinel kind.
type ConcurrentResult struct {
	Successes     int32
	Conflicts     int32
	InvalidStates int32
	NotFounds     int32
	Errors        int32
}

// Total is the number of calls that returned.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.InvalidStates + r.NotFounds + r.Errors
}

// RunConcurrent starts n goroutines, releases them together, and classifies
// each returned error. The shared start maximises contention on whatever fn
// locks.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		tallies [5]atomic.Int32
	)
	for i := range n {
		wg.Go(func() {
			<-start
			tallies[classify(fn(i))].Add(1)
		})
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:     tallies[0].Load(),
		Conflicts:     tallies[1].Load(),
		InvalidStates: tallies[2].Load(),
		NotFounds:     tallies[3].Load(),
		Errors:        tallies[4].Load(),
	}
}

func classify(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sentinel.ErrConflict):
		return 1
	case errors.Is(err, sentinel.ErrInvalidState):
		return 2
	case errors.Is(err, sentinel.ErrNotFound):
		return 3
	default:
		return 4
	}
}
