package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-probe/domain"
	probeerrors "chat-probe/errors"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		result   domain.SessionResult
		expected Category
	}{
		{"success", domain.SessionResult{Connected: true}, CategorySuccess},
		{"auth failure", domain.SessionResult{Err: fmt.Errorf("user1: %w", probeerrors.ErrAuthFailure)}, CategoryAuthFailure},
		{"connect failure", domain.SessionResult{Err: probeerrors.ErrConnectFailure}, CategoryConnectFailure},
		{"transport error", domain.SessionResult{Err: probeerrors.ErrTransportError}, CategoryTransportError},
		{"cancelled wins over error", domain.SessionResult{Err: probeerrors.ErrTransportError, Cancelled: true}, CategoryCancelled},
		{"unknown error", domain.SessionResult{Err: fmt.Errorf("boom")}, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Categorize(tt.result))
		})
	}
}

func TestReport_FailureRatioIgnoresCancelled(t *testing.T) {
	req := require.New(t)

	rep := Build([]domain.SessionResult{
		{User: "user1", Connected: true},
		{User: "user2", Err: probeerrors.ErrConnectFailure},
		{User: "user3", Cancelled: true},
		{User: "user4", Connected: true},
	}, time.Second)

	req.InDelta(0.25, rep.FailureRatio(), 1e-9)
	req.False(rep.ExceedsThreshold(0.25))
	req.True(rep.ExceedsThreshold(0.2))
}

func TestReport_EmptyRunHasNoFailures(t *testing.T) {
	req := require.New(t)
	rep := Build(nil, 0)
	req.Zero(rep.FailureRatio())
	req.False(rep.ExceedsThreshold(0))
}

func TestReport_RenderSummaryAndDetail(t *testing.T) {
	req := require.New(t)

	rep := Build([]domain.SessionResult{
		{User: "user1", Connected: true, JoinAcknowledged: true, Duration: 7 * time.Second,
			Messages: []domain.ReceivedMessage{{Kind: domain.KindChat}}},
		{User: "user2", Err: probeerrors.ErrConnectFailure, Duration: 5 * time.Second},
	}, 8*time.Second)

	var buf bytes.Buffer
	rep.Render(&buf, true)
	out := buf.String()

	req.Contains(out, "1/2 sessions succeeded")
	req.Contains(out, string(CategorySuccess))
	req.Contains(out, string(CategoryConnectFailure))
	req.Contains(out, "failure ratio:   0.50")
	// Per-user detail rows
	req.Contains(out, "user1")
	req.Contains(out, "user2")
	req.Contains(out, probeerrors.ErrConnectFailure.Error())
}
