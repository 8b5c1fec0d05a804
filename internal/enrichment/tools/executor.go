package tools

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"

	"golang.org/x/time/rate"
)

// Call is a tool invocation requested by the model.
type Call struct {
	ID   string
	Tool ID
	Args map[string]interface{}
}

// Result is what goes back to the model. Payload is always JSON-serialisable;
// when Err is set Payload is {"error": "..."}.
type Result struct {
	CallID   string
	Tool     ID
	Payload  map[string]interface{}
	Err      error
	Duration time.Duration
}

func errorResult(call Call, err error, started time.Time) Result {
	return Result{
		CallID:   call.ID,
		Tool:     call.Tool,
		Payload:  map[string]interface{}{"error": err.Error()},
		Err:      err,
		Duration: time.Since(started),
	}
}

// ErrorPayload builds a tool result carrying only an error message.
func ErrorPayload(call Call, msg string) Result {
	return errorResult(call, fmt.Errorf("%w: %s", apperrors.ErrToolExecution, msg), time.Now())
}

type WebsiteScraper interface {
	ScrapeWebsite(ctx context.Context, url string) (map[string]interface{}, error)
}

type ProfileRequest struct {
	URL               string
	IncludeExperience bool
	IncludeEducation  bool
}

type ProfileScraper interface {
	ScrapeProfile(ctx context.Context, req ProfileRequest) (map[string]interface{}, error)
}

type ExecutorConfig struct {
	// Timeout bounds each call independently of the run's caps.
	Timeout time.Duration
	// PerToolRate limits calls per second for each local tool across runs.
	PerToolRate float64
}

// LocalExecutor runs local tools. It never returns an error: failures,
// timeouts and panics become error payloads.
type LocalExecutor struct {
	config   ExecutorConfig
	website  WebsiteScraper
	profile  ProfileScraper
	limiters map[ID]*rate.Limiter
	logger   logger.Logger
}

func NewLocalExecutor(cfg ExecutorConfig, website WebsiteScraper, profile ProfileScraper, log logger.Logger) *LocalExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	e := &LocalExecutor{
		config:   cfg,
		website:  website,
		profile:  profile,
		limiters: make(map[ID]*rate.Limiter),
		logger:   log,
	}
	if cfg.PerToolRate > 0 {
		for _, id := range ids {
			if def, _ := Lookup(id); def.Execution == Local {
				e.limiters[id] = rate.NewLimiter(rate.Limit(cfg.PerToolRate), 1)
			}
		}
	}
	return e
}

func (e *LocalExecutor) Execute(ctx context.Context, call Call) (res Result) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res = errorResult(call, fmt.Errorf("%w: %s panicked: %v", apperrors.ErrToolExecution, call.Tool, r), started)
		}
	}()

	if lim := e.limiters[call.Tool]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return errorResult(call, fmt.Errorf("%w: %s rate limited: %v", apperrors.ErrToolExecution, call.Tool, err), started)
		}
	}

	payload, err := e.dispatch(ctx, call)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out after %s", call.Tool, e.config.Timeout)
		}
		e.logger.Warn("Local tool failed", map[string]interface{}{
			"tool":   string(call.Tool),
			"callId": call.ID,
			"error":  err.Error(),
		})
		return errorResult(call, fmt.Errorf("%w: %v", apperrors.ErrToolExecution, err), started)
	}

	return Result{CallID: call.ID, Tool: call.Tool, Payload: payload, Duration: time.Since(started)}
}

func (e *LocalExecutor) dispatch(ctx context.Context, call Call) (map[string]interface{}, error) {
	switch call.Tool {
	case ScrapeCompanyWebsite:
		if e.website == nil {
			return nil, fmt.Errorf("website scraper not configured")
		}
		url, err := stringArg(call.Args, "url")
		if err != nil {
			return nil, err
		}
		return e.website.ScrapeWebsite(ctx, url)

	case ScrapeLinkedIn:
		if e.profile == nil {
			return nil, fmt.Errorf("profile scraper not configured")
		}
		url, err := stringArg(call.Args, "url")
		if err != nil {
			return nil, err
		}
		return e.profile.ScrapeProfile(ctx, ProfileRequest{
			URL:               url,
			IncludeExperience: boolArg(call.Args, "include_experience", true),
			IncludeEducation:  boolArg(call.Args, "include_education", true),
		})

	case WebSearch, WebFetch:
		return nil, fmt.Errorf("%s is executed by the model provider", call.Tool)

	default:
		return nil, fmt.Errorf("unknown tool %q", call.Tool)
	}
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("argument %q is required", key)
	}
	return v, nil
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
