// internal/workers/matching/find-matches/handler.go
package findmatches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/common/metrics"
	"studymatch-workers/internal/common/validation"
	"studymatch-workers/internal/matching/finder"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "find-matches"
)

// Matcher is the slice of the match finder this worker drives.
type Matcher interface {
	FindMatches(ctx context.Context, userID string, opts finder.FindOptions) (*finder.FindResult, error)
}

type Handler struct {
	config   *Config
	matcher  Matcher
	errorHnd *commonerrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, matcher Matcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		matcher:  matcher,
		errorHnd: commonerrors.NewErrorHandler(l),
		logger:   l,
	}
}

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

	if result := validation.ValidateRaw([]byte(job.Variables), InputSchema()); !result.Valid {
		h.failJob(ctx, client, job, commonerrors.NewInvalidOptionError(result.FirstError()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, commonerrors.NewInvalidOptionError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.matcher.FindMatches(ctx, input.UserID, input.toOptions())
	if err != nil {
		return nil, err
	}

	h.logger.Info("matches resolved", map[string]interface{}{
		"userId":    input.UserID,
		"matches":   len(result.Matches),
		"fromCache": result.FromCache,
	})

	return &Output{
		Matches:          result.Matches,
		FromCache:        result.FromCache,
		GeneratedAt:      result.GeneratedAt.UTC().Format(time.RFC3339),
		ProcessingTimeMs: result.ProcessingTimeMs,
		TotalCandidates:  result.TotalCandidates,
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

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := err.(*commonerrors.StandardError); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHnd.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
