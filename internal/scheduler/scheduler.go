// Package scheduler runs batch translations on a bounded worker pool and
// hands finished batches to a single consumer in completion order.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ximaera/fb2lingo/internal/chunker"
	"github.com/ximaera/fb2lingo/internal/logger"
	"golang.org/x/time/rate"
)

// State is the lifecycle stage of a batch.
type State int

const (
	StateStarted State = iota
	StateCompleted
	StateFailed
	StateCanceled
)

// Progress reports a batch state change.
type Progress struct {
	BatchIndex   int
	TotalBatches int
	State        State
	Error        error
}

// TranslateFunc produces one translation per unit of the batch.
type TranslateFunc func(ctx context.Context, batch chunker.Batch) ([]string, error)

// ReassembleFunc places translations into the document. firstIndex is the
// global index granted to the batch's first unit.
type ReassembleFunc func(batch chunker.Batch, translations []string, firstIndex int)

// Failure records a batch that produced no translations.
type Failure struct {
	BatchIndex int
	Err        error
}

// Report summarizes a run.
type Report struct {
	Total       int
	Reassembled []int
	Failed      []Failure
}

// Scheduler dispatches batches to a fixed number of workers.
type Scheduler struct {
	workers    int
	qps        int
	rampUp     time.Duration
	counter    *Counter
	onProgress func(Progress)
}

// New creates a scheduler with the given worker count.
func New(workers int) (*Scheduler, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be greater than 0, got %d", workers)
	}
	return &Scheduler{workers: workers, counter: NewCounter()}, nil
}

// SetRateLimit caps request starts per second across all workers.
// Zero disables pacing.
func (s *Scheduler) SetRateLimit(qps int) {
	s.qps = qps
}

// SetRampUp staggers worker start times over d.
func (s *Scheduler) SetRampUp(d time.Duration) {
	s.rampUp = d
}

// SetProgress registers a callback invoked from worker goroutines.
func (s *Scheduler) SetProgress(fn func(Progress)) {
	s.onProgress = fn
}

type completion struct {
	batch        chunker.Batch
	translations []string
	err          error
}

// Run translates all batches and calls reassemble for each successful one.
// reassemble is only ever called from the goroutine running Run, one batch
// at a time. Failed batches are logged and skipped.
func (s *Scheduler) Run(ctx context.Context, batches []chunker.Batch, translate TranslateFunc, reassemble ReassembleFunc) Report {
	report := Report{Total: len(batches)}
	if len(batches) == 0 {
		return report
	}

	var limiter *rate.Limiter
	if s.qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.qps), 1)
	}

	jobs := make(chan chunker.Batch, len(batches))
	for _, b := range batches {
		jobs <- b
	}
	close(jobs)

	results := make(chan completion)
	var wg sync.WaitGroup

	workers := s.workers
	if workers > len(batches) {
		workers = len(batches)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker, workers, jobs, results, translate, limiter, len(batches))
		}(w)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for c := range results {
		if c.err != nil {
			logger.Error("Batch failed, skipping", "batch", c.batch.Index, "paragraphs", len(c.batch.Units), "error", c.err)
			report.Failed = append(report.Failed, Failure{BatchIndex: c.batch.Index, Err: c.err})
			continue
		}
		first := s.counter.Reserve(len(c.batch.Units))
		reassemble(c.batch, c.translations, first)
		report.Reassembled = append(report.Reassembled, c.batch.Index)
	}

	if ctx.Err() != nil {
		s.progress(Progress{BatchIndex: -1, TotalBatches: len(batches), State: StateCanceled, Error: ctx.Err()})
	}
	return report
}

func (s *Scheduler) work(ctx context.Context, worker, workers int, jobs <-chan chunker.Batch, results chan<- completion, translate TranslateFunc, limiter *rate.Limiter, total int) {
	if delay := rampDelay(worker, workers, s.rampUp); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	for b := range jobs {
		if err := ctx.Err(); err != nil {
			results <- completion{batch: b, err: err}
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				results <- completion{batch: b, err: err}
				continue
			}
		}
		s.progress(Progress{BatchIndex: b.Index, TotalBatches: total, State: StateStarted})
		translations, err := safeTranslate(ctx, translate, b)
		if err != nil {
			s.progress(Progress{BatchIndex: b.Index, TotalBatches: total, State: StateFailed, Error: err})
		} else {
			s.progress(Progress{BatchIndex: b.Index, TotalBatches: total, State: StateCompleted})
		}
		results <- completion{batch: b, translations: translations, err: err}
	}
}

func safeTranslate(ctx context.Context, translate TranslateFunc, b chunker.Batch) (translations []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch %d panicked: %v", b.Index, r)
		}
	}()
	return translate(ctx, b)
}

func (s *Scheduler) progress(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func rampDelay(worker, workers int, ramp time.Duration) time.Duration {
	if ramp <= 0 || workers <= 1 {
		return 0
	}
	return time.Duration(int64(ramp) * int64(worker) / int64(workers-1))
}
