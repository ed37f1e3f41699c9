// Package orchestrator implements the Fetch Orchestrator: a mode-agnostic
// pagination loop that walks a FetchPlan to completion, tolerating
// upstream failures as partial success once at least one page has landed.
// Jitter arithmetic is adapted from pantry/retry's addJitter, repurposed
// for a uniform inter-page delay rather than an exponential error backoff.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/directclient"
	"github.com/linkedingateway/gateway/gateway/gwerrors"
	"github.com/linkedingateway/gateway/gateway/normalize"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/wsrouter"
)

// Mode selects how a FetchPlan's pages are fetched.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeProxy  Mode = "proxy"
)

// maxDelayCeiling is the hard ceiling on inter-page delay regardless of what
// a caller requests.
const maxDelayCeiling = 60 * time.Second

const defaultPageSize = 10

// FetchPlan describes one complete fetch: which endpoint, how it's
// authenticated, how many items to accumulate, and the pacing between
// pages.
type FetchPlan struct {
	Mode     Mode
	UserID   string // required when Mode == ModeProxy
	Endpoint urlbuilder.EndpointKind
	Base     urlbuilder.Params // Start/PaginationToken are overwritten per page
	PageSize int
	Count    int // -1 means "all"

	DelayMinSeconds float64
	DelayMaxSeconds float64

	Credentials credentials.Credentials // required when Mode == ModeDirect
}

// Orchestrator runs FetchPlans to completion against either the Direct HTTP
// Client or the WebSocket Router, normalizing each page's envelope as it
// arrives.
type Orchestrator struct {
	builder *urlbuilder.Builder
	direct  *directclient.Client
	router  *wsrouter.Router
	logger  *zap.Logger
}

// New constructs an Orchestrator. router may be nil if direct mode is the
// only mode this process supports (and vice versa for direct).
func New(builder *urlbuilder.Builder, direct *directclient.Client, router *wsrouter.Router, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{builder: builder, direct: direct, router: router, logger: logger}
}

// Run executes plan to completion, returning every accumulated item. A
// partial result is returned (with a nil error) when an upstream HTTP error
// arrives after at least one page has already landed. An upstream HTTP error
// on the first page, or any other failure on any page, fails the whole call.
func (o *Orchestrator) Run(ctx context.Context, plan FetchPlan) ([]map[string]any, error) {
	pageSize := plan.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var accumulated []map[string]any
	start := 0
	paginationToken := ""

	for {
		params := plan.Base
		params.Kind = plan.Endpoint
		params.Start = start
		params.PageSize = pageSize
		params.PaginationToken = paginationToken

		envelope, err := o.fetchPage(ctx, plan, params)
		if err != nil {
			var gwErr *gwerrors.Error
			if errors.As(err, &gwErr) && gwErr.Code == "UpstreamHttpError" && len(accumulated) > 0 {
				if o.logger != nil {
					o.logger.Warn("upstream error mid-pagination, returning partial result",
						zap.Int("accumulated", len(accumulated)), zap.Error(err))
				}
				break
			}
			return nil, err
		}

		page := normalize.Parse(envelope, plan.Endpoint, o.logger)
		if page.RawHadError || len(page.Items) == 0 {
			break
		}

		accumulated = append(accumulated, page.Items...)
		if plan.Count >= 0 && len(accumulated) >= plan.Count {
			accumulated = accumulated[:plan.Count]
			break
		}
		if page.PaginationToken == "" {
			break
		}

		start += pageSize
		paginationToken = page.PaginationToken

		if err := sleepJitter(ctx, plan.DelayMinSeconds, plan.DelayMaxSeconds); err != nil {
			return nil, err
		}
	}

	return accumulated, nil
}

func (o *Orchestrator) fetchPage(ctx context.Context, plan FetchPlan, params urlbuilder.Params) (map[string]any, error) {
	reqURL, err := o.builder.Build(ctx, params)
	if err != nil {
		return nil, gwerrors.ParseError(err.Error())
	}

	var raw []byte
	switch plan.Mode {
	case ModeDirect:
		raw, err = o.direct.Execute(ctx, reqURL, plan.Credentials)
	case ModeProxy:
		var resp *wsrouter.ProxyResponse
		resp, err = o.router.Dispatch(ctx, plan.UserID, wsrouter.ProxyRequest{
			RequestID:          uuid.NewString(),
			URL:                reqURL,
			Method:             "GET",
			ResponseType:       "json",
			IncludeCredentials: true,
			TimeoutMS:          60_000,
		})
		if err == nil {
			raw = []byte(resp.Body)
		}
	default:
		return nil, gwerrors.Internal("unknown fetch mode")
	}
	if err != nil {
		return nil, err
	}

	var envelope map[string]any
	if jsonErr := json.Unmarshal(raw, &envelope); jsonErr != nil {
		return nil, gwerrors.ParseError("upstream response was not valid JSON")
	}
	return envelope, nil
}

// sleepJitter blocks for a uniform random duration in [min,max] seconds,
// clamped to maxDelayCeiling, or returns ctx.Err() if ctx is cancelled
// first.
func sleepJitter(ctx context.Context, minSeconds, maxSeconds float64) error {
	if minSeconds < 0 {
		minSeconds = 0
	}
	if maxSeconds < minSeconds {
		maxSeconds = minSeconds
	}

	delay := time.Duration(minSeconds * float64(time.Second))
	if maxSeconds > minSeconds {
		span := time.Duration((maxSeconds - minSeconds) * float64(time.Second))
		delay += time.Duration(rand.Int63n(int64(span) + 1))
	}
	if delay > maxDelayCeiling {
		delay = maxDelayCeiling
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
