// Package scheduler runs the periodic digest question through the answer loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"askace/internal/logging"
	"askace/internal/types"

	"github.com/robfig/cron/v3"
)

const digestMaxSources = 8

// Answerer runs one question. *ace.Service satisfies it.
type Answerer interface {
	Answer(ctx context.Context, req types.QueryRequest) (*types.AnswerResponse, error)
}

// Scheduler owns the cron runner for digest jobs.
type Scheduler struct {
	cron     *cron.Cron
	svc      Answerer
	question string
	timeout  time.Duration

	mu   sync.Mutex
	last *types.AnswerResponse
	runs int
}

// New schedules the digest question on spec (standard five-field cron or a
// descriptor such as "@daily"). timeout bounds each run; zero means none.
func New(spec, question string, svc Answerer, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		question: question,
		timeout:  timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return nil, fmt.Errorf("%w: invalid digest schedule %q: %v", types.ErrConfiguration, spec, err)
	}
	logging.Get(logging.CategoryScheduler).Info("Digest scheduled (%s): %s", spec, question)
	return s, nil
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runScheduled() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.RunDigest(ctx); err != nil {
		logging.Get(logging.CategoryScheduler).Error("Digest run failed: %v", err)
	}
}

// RunDigest answers the digest question once, restricted to fresh results.
func (s *Scheduler) RunDigest(ctx context.Context) (*types.AnswerResponse, error) {
	timer := logging.StartTimer(logging.CategoryScheduler, "RunDigest")
	defer timer.Stop()

	req := types.NewQueryRequest(s.question)
	req.FreshOnly = true
	req.MaxSources = digestMaxSources

	answer, err := s.svc.Answer(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = answer
	s.runs++
	s.mu.Unlock()

	logging.Get(logging.CategoryScheduler).Info("Digest %s produced %d bullets from %d sources",
		answer.RunID, len(answer.Bullets), len(answer.Sources))
	return answer, nil
}

// Last returns the most recent digest answer and how many digests have run.
func (s *Scheduler) Last() (*types.AnswerResponse, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs
}
