// internal/workers/matching/cleanup-snapshots/handler_test.go
package cleanupsnapshots

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
)

type stubSweeper struct {
	deleted int64
	err     error
	calls   int
}

func (s *stubSweeper) SweepExpired(_ context.Context) (int64, error) {
	s.calls++
	return s.deleted, s.err
}

func TestExecute(t *testing.T) {
	stub := &stubSweeper{deleted: 6}
	h := NewHandler(LoadConfig(), stub, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(6), output.DeletedCount)
	assert.NotEmpty(t, output.SweptAt)
	assert.Equal(t, 1, stub.calls)
}

func TestExecute_NothingToDelete(t *testing.T) {
	stub := &stubSweeper{}
	h := NewHandler(LoadConfig(), stub, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background())

	require.NoError(t, err)
	assert.Zero(t, output.DeletedCount)
}

func TestExecute_PropagatesError(t *testing.T) {
	stub := &stubSweeper{err: commonerrors.NewStorageFailureError("sweep", assert.AnError)}
	h := NewHandler(LoadConfig(), stub, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background())

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeStorageFailure, stdErr.Code)
}
