package pipeline

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

func (s *Service) work(id int) {
	defer s.wg.Done()
	log := s.logger.With(zap.Int("worker", id))

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		select {
		case <-s.stopCh:
			return
		case task := <-s.gate.tasks:
			s.process(task, log.With(zap.String("task_id", task.ID)))
		}
	}
}

// process drives one task to a terminal state and always cleans up after
// it, whichever way it ends.
func (s *Service) process(task *Task, log *zap.Logger) {
	defer s.finish(task)

	if task.Promise.State().Terminal() {
		log.Debug("skipping abandoned task", zap.Stringer("state", task.Promise.State()))
		return
	}

	started := s.now()
	log.Debug("task started", zap.Duration("queued_for", started.Sub(task.SubmittedAt)))

	text, err := s.run(task, log)
	elapsed := s.now().Sub(started)
	if err != nil {
		if !task.Promise.Fail(err) {
			log.Debug("discarding failure of abandoned task", zap.Error(err))
			return
		}
		log.Info("task failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}

	if !task.Promise.Fulfill(text) {
		log.Info("discarding result of abandoned task", zap.Duration("elapsed", elapsed))
		return
	}
	log.Info("task finished", zap.Duration("elapsed", elapsed), zap.Int("chars", len(text)))
}

// run executes the stages. A panic in any stage is turned into ErrInternal
// so the worker survives.
func (s *Service) run(task *Task, log *zap.Logger) (text string, err error) {
	stage := "preprocess"
	defer func() {
		if r := recover(); r != nil {
			s.reporter.CapturePanic(r, debug.Stack(), map[string]string{"task_id": task.ID, "stage": stage})
			text, err = "", fmt.Errorf("%w: %s stage panicked", ErrInternal, stage)
		}
	}()

	ctx := s.runCtx
	if err := s.preprocess(ctx, task, log); err != nil {
		return "", err
	}

	if task.Promise.State().Terminal() {
		return "", nil
	}

	stage = "silence"
	if s.silent(task, log) {
		return "", nil
	}

	stage = "inference"
	return s.infer(ctx, task, log)
}

// finish releases the task's scratch files and its queue slot.
func (s *Service) finish(task *Task) {
	if err := task.Workspace.Release(); err != nil {
		s.logger.Warn("scratch cleanup failed", zap.String("task_id", task.ID), zap.Error(err))
	}
	s.gate.finish()
	s.logger.Debug("task released",
		zap.String("task_id", task.ID),
		zap.Duration("lifetime", s.now().Sub(task.SubmittedAt)),
	)
}
