// internal/workers/matching/notify-matches/handler.go
package notifymatches

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/common/metrics"
	"studymatch-workers/internal/common/validation"
	"studymatch-workers/internal/models"
)

const (
	TaskType = "notify-matches"

	digestSize = 3
)

// SnapshotReader loads the newest active snapshot for a user.
type SnapshotReader interface {
	GetRecentActiveSnapshot(ctx context.Context, userID string, within time.Duration) (*models.MatchSnapshot, error)
}

// SESService and SNSService mirror the send surface of the AWS clients so
// tests can stub them.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	snapshots SnapshotReader
	sesClient SESService
	snsClient SNSService
	errorHnd  *commonerrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, snapshots SnapshotReader, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		snapshots: snapshots,
		sesClient: sesClient,
		snsClient: snsClient,
		errorHnd:  commonerrors.NewErrorHandler(l),
		logger:    l,
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
	snapshot, err := h.snapshots.GetRecentActiveSnapshot(ctx, input.UserID, h.config.SnapshotWindow)
	if err != nil {
		return nil, err
	}

	top := topCandidates(snapshot, digestSize)
	if len(top) == 0 {
		// Nothing to digest is a normal outcome, not a failure.
		h.logger.Info("no matches to notify about", map[string]interface{}{
			"userId": input.UserID,
		})
		return &Output{
			NotificationID: uuid.New().String(),
			Status:         StatusSkipped,
		}, nil
	}

	subject, body := renderDigest(top)

	switch input.Channel {
	case ChannelSMS:
		err = h.sendSMS(ctx, input.Recipient, body)
	default:
		err = h.sendEmail(ctx, input.Recipient, subject, body)
	}
	if err != nil {
		return nil, commonerrors.NewNotificationSendFailedError(input.Channel, err)
	}

	h.logger.Info("match digest sent", map[string]interface{}{
		"userId":  input.UserID,
		"channel": input.Channel,
		"matches": len(top),
	})

	return &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusSent,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// topCandidates returns up to n non-dismissed candidates in snapshot
// order, which is score-descending at creation.
func topCandidates(snapshot *models.MatchSnapshot, n int) []models.MatchCandidate {
	if snapshot == nil {
		return nil
	}
	top := make([]models.MatchCandidate, 0, n)
	for _, c := range snapshot.Candidates {
		if c.Dismissed {
			continue
		}
		top = append(top, c)
		if len(top) == n {
			break
		}
	}
	return top
}

func renderDigest(top []models.MatchCandidate) (subject, body string) {
	subject = fmt.Sprintf("You have %d new study matches", len(top))

	var b strings.Builder
	b.WriteString("Your top study matches:\n")
	for i, c := range top {
		kind := "study partner"
		if c.TargetType == models.TargetGroup {
			kind = "study group"
		}
		fmt.Fprintf(&b, "%d. %s (%s, %d%% match)\n", i+1, c.TargetName, kind, c.CompatibilityScore)
	}
	b.WriteString("Log in to connect with them.")
	return subject, b.String()
}

func (h *Handler) sendEmail(ctx context.Context, recipient, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(h.config.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, recipient, body string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(recipient),
		Message:     aws.String(body),
	})
	return err
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
