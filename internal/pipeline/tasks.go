package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/internal/store"
)

// Runner tracks detached enrichment runs as persisted tasks, so background
// work stays observable instead of fire-and-forget.
type Runner struct {
	store    store.Store
	pipeline *Pipeline
	wg       sync.WaitGroup
}

// NewRunner builds a Runner over the pipeline.
func NewRunner(st store.Store, p *Pipeline) *Runner {
	return &Runner{store: st, pipeline: p}
}

// Start claims the entity, records a task, and launches the run detached
// from the caller's context. Requests racing for an in-flight entity get
// ErrAlreadyAnalyzing with the existing run's task id. The lock is taken
// before the task row exists so a lost race never leaves a doomed task.
func (r *Runner) Start(ctx context.Context, entity *model.Entity, decision model.EnrichmentDecision) (*model.Task, error) {
	ok, inFlight := r.pipeline.locks.tryAcquire(entity.ID, "")
	if !ok {
		return nil, eris.Wrapf(ErrAlreadyAnalyzing, "task %s", inFlight)
	}

	task, err := r.store.CreateTask(ctx, entity.ID, decision)
	if err != nil {
		r.pipeline.locks.release(entity.ID)
		return nil, eris.Wrap(err, "runner: create task")
	}
	r.pipeline.locks.setTask(entity.ID, task.ID)

	// The run outlives the originating request.
	runCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.pipeline.locks.release(entity.ID)
		r.execute(runCtx, task, entity)
	}()
	return task, nil
}

func (r *Runner) execute(ctx context.Context, task *model.Task, entity *model.Entity) {
	if err := r.store.UpdateTaskStatus(ctx, task.ID, model.TaskStatusRunning, ""); err != nil {
		zap.L().Error("mark task running failed",
			zap.String("task_id", task.ID), zap.Error(err))
	}

	_, err := r.pipeline.run(ctx, entity)
	status, errMsg := model.TaskStatusSucceeded, ""
	if err != nil {
		status, errMsg = model.TaskStatusFailed, err.Error()
		zap.L().Warn("background enrichment failed",
			zap.String("task_id", task.ID),
			zap.String("entity_id", entity.ID),
			zap.Error(err))
	}
	if err := r.store.UpdateTaskStatus(ctx, task.ID, status, errMsg); err != nil {
		zap.L().Error("mark task terminal failed",
			zap.String("task_id", task.ID), zap.Error(err))
	}
}

// Wait blocks until every launched run has reached a terminal task status.
func (r *Runner) Wait() {
	r.wg.Wait()
}
