package tools

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWebsite struct {
	delay time.Duration
	err   error
	panic bool
}

func (f *fakeWebsite) ScrapeWebsite(ctx context.Context, url string) (map[string]interface{}, error) {
	if f.panic {
		panic("nil map")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"url": url, "title": "Acme"}, nil
}

type fakeProfile struct {
	got ProfileRequest
}

func (f *fakeProfile) ScrapeProfile(_ context.Context, req ProfileRequest) (map[string]interface{}, error) {
	f.got = req
	return map[string]interface{}{"name": "Sarah Kim"}, nil
}

func newExecutor(w WebsiteScraper, p ProfileScraper, timeout time.Duration) *LocalExecutor {
	return NewLocalExecutor(ExecutorConfig{Timeout: timeout}, w, p, logger.NewNoOpLogger())
}

func TestExecute_Success(t *testing.T) {
	e := newExecutor(&fakeWebsite{}, nil, time.Second)

	res := e.Execute(context.Background(), Call{ID: "c1", Tool: ScrapeCompanyWebsite, Args: map[string]interface{}{"url": "https://acme.com"}})

	require.NoError(t, res.Err)
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, "Acme", res.Payload["title"])
}

func TestExecute_FailuresBecomeErrorPayloads(t *testing.T) {
	tests := []struct {
		name    string
		exec    *LocalExecutor
		call    Call
		wantMsg string
	}{
		{
			name:    "scraper error",
			exec:    newExecutor(&fakeWebsite{err: stderrors.New("connection refused")}, nil, time.Second),
			call:    Call{Tool: ScrapeCompanyWebsite, Args: map[string]interface{}{"url": "https://acme.com"}},
			wantMsg: "connection refused",
		},
		{
			name:    "timeout",
			exec:    newExecutor(&fakeWebsite{delay: time.Second}, nil, 20*time.Millisecond),
			call:    Call{Tool: ScrapeCompanyWebsite, Args: map[string]interface{}{"url": "https://acme.com"}},
			wantMsg: "timed out",
		},
		{
			name:    "panic",
			exec:    newExecutor(&fakeWebsite{panic: true}, nil, time.Second),
			call:    Call{Tool: ScrapeCompanyWebsite, Args: map[string]interface{}{"url": "https://acme.com"}},
			wantMsg: "panicked",
		},
		{
			name:    "missing argument",
			exec:    newExecutor(&fakeWebsite{}, nil, time.Second),
			call:    Call{Tool: ScrapeCompanyWebsite, Args: map[string]interface{}{}},
			wantMsg: `argument "url" is required`,
		},
		{
			name:    "delegated tool",
			exec:    newExecutor(&fakeWebsite{}, nil, time.Second),
			call:    Call{Tool: WebSearch},
			wantMsg: "executed by the model provider",
		},
		{
			name:    "unknown tool",
			exec:    newExecutor(&fakeWebsite{}, nil, time.Second),
			call:    Call{Tool: "send_email"},
			wantMsg: "unknown tool",
		},
		{
			name:    "profile scraper missing",
			exec:    newExecutor(&fakeWebsite{}, nil, time.Second),
			call:    Call{Tool: ScrapeLinkedIn, Args: map[string]interface{}{"url": "https://linkedin.com/in/x"}},
			wantMsg: "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.exec.Execute(context.Background(), tt.call)

			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, apperrors.ErrToolExecution)
			assert.Contains(t, res.Payload["error"], tt.wantMsg)
		})
	}
}

func TestExecute_ProfileFlagsDefaultTrue(t *testing.T) {
	p := &fakeProfile{}
	e := newExecutor(nil, p, time.Second)

	res := e.Execute(context.Background(), Call{
		Tool: ScrapeLinkedIn,
		Args: map[string]interface{}{"url": "https://linkedin.com/in/sarah", "include_education": false},
	})

	require.NoError(t, res.Err)
	assert.True(t, p.got.IncludeExperience)
	assert.False(t, p.got.IncludeEducation)
}

func TestExecute_RateLimiterHonoursTimeout(t *testing.T) {
	e := NewLocalExecutor(ExecutorConfig{Timeout: 30 * time.Millisecond, PerToolRate: 0.01}, &fakeWebsite{}, nil, logger.NewNoOpLogger())
	call := Call{Tool: ScrapeCompanyWebsite, Args: map[string]interface{}{"url": "https://acme.com"}}

	require.NoError(t, e.Execute(context.Background(), call).Err)

	res := e.Execute(context.Background(), call)
	require.Error(t, res.Err)
	assert.Contains(t, res.Payload["error"], "rate limited")
}

func TestErrorPayload(t *testing.T) {
	res := ErrorPayload(Call{ID: "c9", Tool: ScrapeLinkedIn}, "tool call limit reached")
	assert.Equal(t, "c9", res.CallID)
	assert.ErrorIs(t, res.Err, apperrors.ErrToolExecution)
	assert.Contains(t, res.Payload["error"], "tool call limit reached")
}
