// Package pipeline admits transcription requests into a bounded FIFO queue
// and drives them through conversion and recognition on background
// workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fmueller/voxserve/internal/promise"
	"github.com/fmueller/voxserve/internal/reporting"
	"github.com/fmueller/voxserve/internal/scratch"
	"go.uber.org/zap"
)

const (
	DefaultQueueCapacity        = 8
	DefaultInferenceConcurrency = 1
	DefaultRequestTimeout       = 60 * time.Second
)

type Options struct {
	QueueCapacity        int
	InferenceConcurrency int
	Workers              int
	// RequestTimeout bounds Await. Zero or negative waits without a deadline.
	RequestTimeout time.Duration

	Scratch      *scratch.Manager
	Preprocessor Preprocessor
	Recognizer   Recognizer
	Normalizer   Normalizer
	Silence      SilenceDetector

	Reporter *reporting.Reporter
	Logger   *zap.Logger
	Now      func() time.Time
}

type lifecycle int

const (
	stateCreated lifecycle = iota
	stateRunning
	stateStopped
)

// Service owns the queue, the workers and the inference limiter. Build one
// with New, call Start once, and Stop at shutdown.
type Service struct {
	scratch      *scratch.Manager
	preprocessor Preprocessor
	recognizer   Recognizer
	normalizer   Normalizer
	silence      SilenceDetector
	reporter     *reporting.Reporter
	logger       *zap.Logger
	now          func() time.Time

	gate    *gate
	limiter *Limiter
	workers int
	timeout time.Duration

	mu    sync.RWMutex
	state lifecycle

	runCtx    context.Context
	cancelRun context.CancelFunc
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func New(opts Options) (*Service, error) {
	if opts.Scratch == nil {
		return nil, errors.New("scratch manager is required")
	}
	if opts.Preprocessor == nil {
		return nil, errors.New("preprocessor is required")
	}
	if opts.Recognizer == nil {
		return nil, errors.New("recognizer is required")
	}

	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.InferenceConcurrency <= 0 {
		opts.InferenceConcurrency = DefaultInferenceConcurrency
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reporter == nil {
		reporter, err := reporting.New(reporting.Options{}, opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.Reporter = reporter
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		scratch:      opts.Scratch,
		preprocessor: opts.Preprocessor,
		recognizer:   opts.Recognizer,
		normalizer:   opts.Normalizer,
		silence:      opts.Silence,
		reporter:     opts.Reporter,
		logger:       opts.Logger,
		now:          opts.Now,
		gate:         newGate(opts.QueueCapacity),
		limiter:      NewLimiter(opts.InferenceConcurrency),
		workers:      opts.Workers,
		timeout:      opts.RequestTimeout,
		runCtx:       runCtx,
		cancelRun:    cancel,
		stopCh:       make(chan struct{}),
	}, nil
}

// Start launches the workers. It may be called once.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateCreated {
		return errors.New("pipeline already started")
	}
	s.state = stateRunning

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.work(i)
	}

	s.logger.Info("pipeline started",
		zap.Int("queue_capacity", s.gate.capacity()),
		zap.Int("workers", s.workers),
		zap.Int("inference_concurrency", s.limiter.Capacity()),
		zap.Duration("request_timeout", s.timeout),
	)
	return nil
}

// Stop refuses new work, lets each worker finish its current task and then
// fails whatever is still queued. If ctx expires first, in-flight stages
// are cancelled.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.state == stateRunning
	s.state = stateStopped
	close(s.stopCh)
	s.mu.Unlock()

	var err error
	if wasRunning {
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("shutdown deadline reached; abandoning in-flight task")
			s.cancelRun()
			<-done
			err = ctx.Err()
		}
	}
	s.cancelRun()

	drained := s.drain()
	s.logger.Info("pipeline stopped", zap.Int("failed_queued", drained))
	return err
}

func (s *Service) drain() int {
	count := 0
	for {
		select {
		case task := <-s.gate.tasks:
			task.Promise.Fail(fmt.Errorf("%w: shutting down", ErrServiceUnavailable))
			s.finish(task)
			count++
		default:
			return count
		}
	}
}

func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == stateRunning
}

// QueueLen is the number of admitted tasks not yet finished by a worker.
func (s *Service) QueueLen() int {
	return s.gate.occupancy()
}

func (s *Service) QueueCapacity() int {
	return s.gate.capacity()
}

// Submit admits one upload. It never waits for queue space: when the queue
// is full it fails with ErrCapacityExceeded before touching the disk.
func (s *Service) Submit(data []byte, filenameHint string) (*Ticket, error) {
	if err := s.admit(); err != nil {
		return nil, err
	}

	ws, err := s.scratch.Acquire(filenameHint)
	if err != nil {
		s.gate.finish()
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if err := ws.WriteInput(data); err != nil {
		_ = ws.Release()
		s.gate.finish()
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	task := &Task{
		ID:          ws.ID,
		Workspace:   ws,
		SubmittedAt: s.now(),
		Promise:     promise.New[string](),
	}
	if err := s.enqueue(task); err != nil {
		_ = ws.Release()
		s.gate.finish()
		return nil, err
	}

	s.logger.Debug("task admitted",
		zap.String("task_id", task.ID),
		zap.Int("bytes", len(data)),
		zap.Int("queue_len", s.gate.occupancy()),
	)
	return &Ticket{task: task}, nil
}

// admit reserves a queue slot. The lock is not held while the upload is
// written, so Stop and Ready never wait on disk I/O.
func (s *Service) admit() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateRunning {
		return ErrServiceUnavailable
	}
	if !s.gate.reserve() {
		return ErrCapacityExceeded
	}
	return nil
}

// enqueue hands task to the workers unless Stop began while its input was
// being written. Holding the read lock orders it before Stop's drain.
func (s *Service) enqueue(task *Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateRunning {
		return fmt.Errorf("%w: shutting down", ErrServiceUnavailable)
	}
	s.gate.enqueue(task)
	return nil
}

// Saturated reports whether a Submit right now would be rejected for
// capacity. Callers may use it to refuse work early; Submit stays the
// authority.
func (s *Service) Saturated() bool {
	return s.gate.occupancy() >= s.gate.capacity()
}

// Await blocks until the task resolves, the request timeout passes, or ctx
// is done. On timeout or cancellation the task is abandoned: its promise
// is cancelled and its scratch files removed right away, while any stage
// already running for it is left to finish and its result discarded.
func (s *Service) Await(ctx context.Context, ticket *Ticket) (string, error) {
	waitCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := ticket.task.Promise.Wait(waitCtx)
	if waitCtx.Err() == nil {
		return text, err
	}

	reason := ctx.Err()
	if reason == nil {
		reason = ErrTimedOut
	}
	return s.abandon(ticket, reason)
}

func (s *Service) abandon(ticket *Ticket, reason error) (string, error) {
	task := ticket.task
	if !task.Promise.Cancel() {
		return task.Promise.Result()
	}

	_ = task.Workspace.Release()
	s.logger.Warn("caller gave up on task",
		zap.String("task_id", task.ID),
		zap.Duration("waited", s.now().Sub(task.SubmittedAt)),
		zap.Error(reason),
	)
	return "", reason
}

// Transcribe submits data and waits for its transcript.
func (s *Service) Transcribe(ctx context.Context, data []byte, filenameHint string) (string, error) {
	ticket, err := s.Submit(data, filenameHint)
	if err != nil {
		return "", err
	}
	return s.Await(ctx, ticket)
}
