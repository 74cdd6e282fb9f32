// internal/workers/matching/cleanup-snapshots/handler.go
package cleanupsnapshots

import (
	"context"
	"time"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "cleanup-snapshots"
)

// Sweeper is the slice of the match finder this worker drives.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type Output struct {
	DeletedCount int64  `json:"deletedCount"`
	SweptAt      string `json:"sweptAt"`
}

type Handler struct {
	config   *Config
	sweeper  Sweeper
	errorHnd *commonerrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, sweeper Sweeper, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		sweeper:  sweeper,
		errorHnd: commonerrors.NewErrorHandler(l),
		logger:   l,
	}
}

// Handle takes no input variables; the sweep is idempotent and safe to
// repeat on retry.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx)
	if err != nil {
		code := "INTERNAL_ERROR"
		if stdErr, ok := err.(*commonerrors.StandardError); ok {
			code = string(stdErr.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.errorHnd.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

func (h *Handler) execute(ctx context.Context) (*Output, error) {
	deleted, err := h.sweeper.SweepExpired(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.Info("snapshot cleanup completed", map[string]interface{}{
		"deleted": deleted,
	})

	return &Output{
		DeletedCount: deleted,
		SweptAt:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	return h.execute(ctx)
}
