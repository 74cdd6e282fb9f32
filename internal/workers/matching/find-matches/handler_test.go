// internal/workers/matching/find-matches/handler_test.go
package findmatches

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/common/validation"
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/models"
)

type stubMatcher struct {
	result   *finder.FindResult
	err      error
	gotUser  string
	gotOpts  finder.FindOptions
	callsNum int
}

func (s *stubMatcher) FindMatches(_ context.Context, userID string, opts finder.FindOptions) (*finder.FindResult, error) {
	s.callsNum++
	s.gotUser = userID
	s.gotOpts = opts
	return s.result, s.err
}

func newHandler(t *testing.T, matcher Matcher) *Handler {
	t.Helper()
	return NewHandler(LoadConfig(), matcher, logger.NewTestLogger(t))
}

func TestExecute(t *testing.T) {
	generatedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	matcher := &stubMatcher{
		result: &finder.FindResult{
			Matches: []models.MatchCandidate{
				{TargetType: models.TargetUser, TargetID: "u-2", CompatibilityScore: 95},
			},
			FromCache:        false,
			GeneratedAt:      generatedAt,
			ProcessingTimeMs: 42,
			TotalCandidates:  7,
		},
	}
	h := newHandler(t, matcher)

	output, err := h.Execute(context.Background(), &Input{UserID: "u-1"})

	require.NoError(t, err)
	assert.Equal(t, "u-1", matcher.gotUser)
	assert.Equal(t, finder.DefaultFindOptions(), matcher.gotOpts)
	require.Len(t, output.Matches, 1)
	assert.False(t, output.FromCache)
	assert.Equal(t, "2026-03-01T10:00:00Z", output.GeneratedAt)
	assert.Equal(t, int64(42), output.ProcessingTimeMs)
	assert.Equal(t, 7, output.TotalCandidates)
}

func TestExecute_OptionOverrides(t *testing.T) {
	matcher := &stubMatcher{result: &finder.FindResult{}}
	h := newHandler(t, matcher)

	no := false
	minScore := 75
	_, err := h.Execute(context.Background(), &Input{
		UserID:        "u-1",
		IncludeGroups: &no,
		MaxResults:    5,
		MinScore:      &minScore,
		Refresh:       true,
	})

	require.NoError(t, err)
	assert.True(t, matcher.gotOpts.IncludeUsers)
	assert.False(t, matcher.gotOpts.IncludeGroups)
	assert.Equal(t, 5, matcher.gotOpts.MaxResults)
	assert.Equal(t, 75, matcher.gotOpts.MinScore)
	assert.True(t, matcher.gotOpts.Refresh)
}

func TestExecute_PropagatesFinderError(t *testing.T) {
	matcher := &stubMatcher{err: commonerrors.NewUserNotFoundError("ghost")}
	h := newHandler(t, matcher)

	_, err := h.Execute(context.Background(), &Input{UserID: "ghost"})

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeUserNotFound, stdErr.Code)
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		valid   bool
	}{
		{"minimal", `{"userId":"u-1"}`, true},
		{"full", `{"userId":"u-1","includeUsers":true,"includeGroups":false,"maxResults":10,"minScore":70,"refresh":true}`, true},
		{"extra process variables tolerated", `{"userId":"u-1","processInstanceId":"p-9"}`, true},
		{"missing userId", `{"maxResults":10}`, false},
		{"empty userId", `{"userId":""}`, false},
		{"maxResults below one", `{"userId":"u-1","maxResults":0}`, false},
		{"minScore above range", `{"userId":"u-1","minScore":101}`, false},
		{"wrong type", `{"userId":"u-1","refresh":"yes"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validation.ValidateRaw([]byte(tt.payload), InputSchema())
			assert.Equal(t, tt.valid, result.Valid, result.FirstError())
		})
	}
}
