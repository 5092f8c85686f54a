package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
)

// DefaultMaxRetries is the retry budget a Retrier uses when none is given
// (spec default: 2 retries after the first attempt).
const DefaultMaxRetries = 2

// retryGuidanceTemplate is a parameterized template, not interpolated at
// author time: Retrier renders it only when a retry is actually needed,
// substituting the missing-tool/field list discovered from the prior
// failure.
const retryGuidanceTemplate = "\n\nYour previous response was missing required output: %s. Produce a complete response that includes all of the above."

// BackoffPolicy configures the optional exponential backoff between retry
// attempts. Generalizes the teacher's RetryPolicy/calculateDelay shape;
// off by default per the spec (exponential backoff is optional, default
// off for the structured-output loop).
type BackoffPolicy struct {
	Enabled      bool
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (p BackoffPolicy) delay(attempt int) time.Duration {
	if !p.Enabled {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	d := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Retrier wraps a Client with the structured-output retry loop: invoke,
// validate required tools were called and the response parses into
// expected_schema, and on failure append a rendered retry-guidance string
// before re-invoking, up to MaxRetries times.
type Retrier struct {
	Client     Client
	Validator  *ToolCallValidator
	MaxRetries int
	Backoff    BackoffPolicy
}

// NewRetrier constructs a Retrier with the default retry budget and
// backoff disabled.
func NewRetrier(client Client, validator *ToolCallValidator) *Retrier {
	return &Retrier{Client: client, Validator: validator, MaxRetries: DefaultMaxRetries}
}

// Execute runs the structured-output retry loop for req, returning the
// parsed value on success or a *hermeserrors.ToolCallError once retries
// are exhausted.
func (r *Retrier) Execute(ctx context.Context, req Request, target any) (any, error) {
	prompt := req.Prompt
	var lastErr error
	var lastMissing []string

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			if d := r.Backoff.delay(attempt); d > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(d):
				}
			}
		}

		attemptReq := req
		attemptReq.Prompt = prompt

		res := r.Client.Complete(ctx, attemptReq, target)

		if res.Err != nil {
			if !hermeserrors.Retryable(res.Err) {
				log.Error().Str("node", req.Node).Int("attempt", attempt+1).Err(res.Err).
					Msg("llm call failed with a non-retryable error")
				return nil, res.Err
			}
			lastErr = res.Err
			lastMissing = r.Validator.ExtractMissingFromError(res.Err, nil)
			log.Warn().Str("node", req.Node).Int("attempt", attempt+1).
				Strs("missing", lastMissing).Err(res.Err).Msg("retrying after llm invocation error")
			prompt = req.Prompt + renderRetryGuidance(lastMissing)
			continue
		}

		missing := r.Validator.Missing(res, req.RequiredTools)
		if len(missing) == 0 {
			return res.Parsed, nil
		}

		lastErr = fmt.Errorf("structured output missing required tools: %s", strings.Join(missing, ", "))
		lastMissing = missing
		log.Warn().Str("node", req.Node).Int("attempt", attempt+1).
			Strs("missing", missing).Msg("retrying after missing required tool calls")
		prompt = req.Prompt + renderRetryGuidance(missing)
	}

	return nil, hermeserrors.NewToolCallError(req.Node, lastMissing, r.MaxRetries+1, lastErr)
}

// renderRetryGuidance performs the retry loop's one job of rendering the
// parameterized template with the concrete missing-item list.
func renderRetryGuidance(missing []string) string {
	if len(missing) == 0 {
		return fmt.Sprintf(retryGuidanceTemplate, "the previously requested fields")
	}
	return fmt.Sprintf(retryGuidanceTemplate, strings.Join(missing, ", "))
}
