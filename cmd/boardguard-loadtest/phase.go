package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/boardguard"
)

type opFunc func(ctx context.Context, r *rand.Rand) error

type outcome int

const (
	outcomeOK outcome = iota
	outcomeConflict
	outcomeRejected
	outcomeFailure
)

// classify sorts an operation error into the buckets the report shows.
// Denials and ordering preconditions are expected under random load.
func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, boardguard.ErrConcurrentModification):
		return outcomeConflict
	case errors.Is(err, boardguard.ErrNotAMember),
		errors.Is(err, boardguard.ErrNoRolesConfigured),
		errors.Is(err, boardguard.ErrInsufficientPermissions),
		errors.Is(err, boardguard.ErrCannotDisplacePinnedStep),
		errors.Is(err, boardguard.ErrTargetPositionNotFound),
		errors.Is(err, boardguard.ErrSingleItemCollection),
		errors.Is(err, boardguard.ErrNoOtherSteps):
		return outcomeRejected
	default:
		return outcomeFailure
	}
}

type phaseResult struct {
	name      string
	total     time.Duration
	ops       int
	conflicts int64
	rejected  int64
	failures  int64
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerSec float64
}

func (r phaseResult) String() string {
	return fmt.Sprintf("%s: ops=%d conflicts=%d rejected=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		r.name,
		r.ops,
		r.conflicts,
		r.rejected,
		r.failures,
		r.total.Round(time.Millisecond),
		r.opsPerSec,
		r.p50.Round(time.Microsecond),
		r.p95.Round(time.Microsecond),
		r.p99.Round(time.Microsecond),
	)
}

func runPhase(ctx context.Context, name string, s settings, op opFunc) phaseResult {
	var (
		wg        sync.WaitGroup
		cursor    int64
		counts    [outcomeFailure + 1]int64
		latencies = make([]time.Duration, 0, s.Ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < s.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if atomic.AddInt64(&cursor, 1) > int64(s.Ops) || ctx.Err() != nil {
					return
				}
				t0 := time.Now()
				err := op(ctx, r)
				d := time.Since(t0)
				atomic.AddInt64(&counts[classify(err)], 1)

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	res := computeStats(time.Since(start), latencies)
	res.name = name
	res.conflicts = counts[outcomeConflict]
	res.rejected = counts[outcomeRejected]
	res.failures = counts[outcomeFailure]
	return res
}

func computeStats(total time.Duration, samples []time.Duration) phaseResult {
	if len(samples) == 0 {
		return phaseResult{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseResult{
		total:     total,
		ops:       len(samples),
		p50:       percentile(samples, 50),
		p95:       percentile(samples, 95),
		p99:       percentile(samples, 99),
		opsPerSec: float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
