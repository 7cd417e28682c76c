// Package dispatch routes a chat request to a provider family, falling back
// once to the family default, and records the outcome in the cache and the
// interaction log.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/promptgate/internal/domain"
	"github.com/tjfontaine/promptgate/internal/provider"
	"github.com/tjfontaine/promptgate/internal/storage"
	"github.com/tjfontaine/promptgate/internal/tokens"
)

const tracerName = "github.com/tjfontaine/promptgate/internal/dispatch"

// ChatRequest is a single prompt for a single model.
type ChatRequest struct {
	Prompt      string
	Model       string
	IgnoreCache bool
}

// ChatResult is the outcome of a successful Chat.
type ChatResult struct {
	PromptID     string `json:"prompt_id"`
	ModelUsed    string `json:"model_used"`
	ResponseText string `json:"response_text"`
	LatencyMs    *int64 `json:"latency_ms"`
	TokenCount   *int   `json:"token_count"`
	FromCache    bool   `json:"from_cache"`
	FallbackUsed bool   `json:"fallback_used"`
}

// RatingRequest is a v2 rating.
type RatingRequest struct {
	PromptID string `json:"prompt_id"`
	Model    string `json:"model"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

// Config holds the collaborators of a Dispatcher.
type Config struct {
	Table    *provider.Table
	Registry *provider.Registry
	Cache    storage.ResponseCache
	Log      storage.InteractionLog
	Ratings  storage.RatingLog
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithEstimator sets the token estimator used when a provider reports no usage.
func WithEstimator(e domain.TokenEstimator) Option {
	return func(d *Dispatcher) {
		if e != nil {
			d.estimator = e
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock overrides time.Now for timestamps and prompt ids.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher implements the chat and rating operations.
// It holds no lock across provider calls; concurrency safety is delegated
// to the storage backends.
type Dispatcher struct {
	table     *provider.Table
	registry  *provider.Registry
	cache     storage.ResponseCache
	log       storage.InteractionLog
	ratings   storage.RatingLog
	estimator domain.TokenEstimator
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a dispatcher. Every Config field is required.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	switch {
	case cfg.Table == nil:
		return nil, errors.New("dispatch: table is required")
	case cfg.Registry == nil:
		return nil, errors.New("dispatch: registry is required")
	case cfg.Cache == nil:
		return nil, errors.New("dispatch: cache is required")
	case cfg.Log == nil:
		return nil, errors.New("dispatch: interaction log is required")
	case cfg.Ratings == nil:
		return nil, errors.New("dispatch: rating log is required")
	}

	d := &Dispatcher{
		table:     cfg.Table,
		registry:  cfg.Registry,
		cache:     cfg.Cache,
		log:       cfg.Log,
		ratings:   cfg.Ratings,
		estimator: tokens.New(),
		logger:    slog.Default(),
		observer:  nopObserver{},
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Catalog lists the models the dispatcher can route.
func (d *Dispatcher) Catalog() []domain.ModelInfo {
	return d.table.Catalog()
}

// Chat serves req from the cache or from the requested model, falling back
// once to the family default.
func (d *Dispatcher) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if req.Prompt == "" {
		return nil, domain.ErrMissingField("prompt")
	}
	if req.Model == "" {
		return nil, domain.ErrMissingField("model")
	}

	spec, ok := d.table.Classify(req.Model)
	if !ok {
		d.observer.RequestCompleted("unknown", OutcomeRejected)
		return nil, &domain.UnknownProviderError{Model: req.Model}
	}
	family := string(spec.Family)

	if !req.IgnoreCache {
		if res := d.lookupCache(ctx, req, family); res != nil {
			d.observer.RequestCompleted(family, OutcomeCacheHit)
			return res, nil
		}
	}

	var attempts []domain.Attempt
	for _, model := range spec.Attempts(req.Model) {
		gen, latency, err := d.attempt(ctx, spec, model, req.Prompt)
		if err != nil {
			var cfgErr *domain.ConfigurationError
			if errors.As(err, &cfgErr) {
				d.logger.Error("provider misconfigured",
					slog.String("family", family),
					slog.String("model", model),
					slog.String("error", err.Error()),
				)
				d.observer.RequestCompleted(family, OutcomeFailed)
				return nil, err
			}

			d.logger.Warn("provider attempt failed",
				slog.String("family", family),
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			attempts = append(attempts, domain.Attempt{Model: model, Err: err})
			continue
		}

		res := d.complete(ctx, req, model, gen, latency)
		outcome := OutcomeSuccess
		if res.FallbackUsed {
			outcome = OutcomeFallback
			d.observer.FallbackUsed(family)
		}
		d.observer.RequestCompleted(family, outcome)
		return res, nil
	}

	d.observer.RequestCompleted(family, OutcomeFailed)
	return nil, &domain.DispatchError{Family: family, Attempts: attempts}
}

// lookupCache returns a served result on a hit. Lookup failures degrade to a miss.
func (d *Dispatcher) lookupCache(ctx context.Context, req ChatRequest, family string) *ChatResult {
	entry, err := d.cache.Lookup(ctx, req.Prompt, req.Model)
	if err != nil {
		d.logger.Warn("cache lookup failed",
			slog.String("model", req.Model),
			slog.String("error", err.Error()),
		)
		d.observer.CacheLookup(CacheError)
		d.observer.SideEffectFailed(SideEffectCacheLookup)
		return nil
	}
	if entry == nil {
		d.observer.CacheLookup(CacheMiss)
		return nil
	}
	d.observer.CacheLookup(CacheHit)

	ts := d.timestamp()
	zero := int64(0)
	rec := &domain.InteractionRecord{
		Timestamp:      ts,
		Prompt:         req.Prompt,
		Model:          req.Model,
		RequestedModel: req.Model,
		Response:       entry.Response,
		LatencyMs:      &zero,
		PromptID:       domain.NewPromptID(ts, req.Prompt, req.Model),
		FromCache:      true,
	}
	d.appendLog(ctx, rec)

	return &ChatResult{
		PromptID:     rec.PromptID,
		ModelUsed:    req.Model,
		ResponseText: entry.Response,
		LatencyMs:    &zero,
		FromCache:    true,
	}
}

// attempt runs one provider call. The call is detached from the caller's
// cancellation; only the provider's own timeout applies.
func (d *Dispatcher) attempt(ctx context.Context, spec *provider.FamilySpec, model, prompt string) (*domain.Generation, int64, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.attempt", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("family", string(spec.Family)),
	))
	defer span.End()

	gen, err := d.registry.NewGenerator(spec.Family, model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration")
		span.SetAttributes(attribute.String("outcome", "configuration_error"))
		return nil, 0, err
	}

	start := time.Now()
	out, err := gen.Generate(context.WithoutCancel(ctx), prompt)
	elapsed := time.Since(start)
	d.observer.AttemptCompleted(string(spec.Family), model, elapsed, err)

	if err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			err = domain.NewProviderError(model, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider error")
		span.SetAttributes(attribute.String("outcome", "error"))
		return nil, 0, err
	}
	if out == nil {
		err := &domain.ProviderError{Model: model, Cause: "provider returned no generation"}
		span.SetStatus(codes.Error, err.Cause)
		return nil, 0, err
	}

	span.SetAttributes(attribute.String("outcome", "success"))
	return out, elapsed.Milliseconds(), nil
}

// complete records a fresh generation and builds the result.
func (d *Dispatcher) complete(ctx context.Context, req ChatRequest, model string, gen *domain.Generation, latency int64) *ChatResult {
	tokenCount := gen.TokenCount
	if tokenCount == nil {
		n := d.estimator.Estimate(req.Prompt+gen.Text, model)
		tokenCount = &n
	}

	ts := d.timestamp()
	promptID := domain.NewPromptID(ts, req.Prompt, model)

	if err := d.cache.Store(ctx, &domain.CacheEntry{
		Prompt:    req.Prompt,
		Model:     model,
		Response:  gen.Text,
		Timestamp: ts,
	}); err != nil {
		d.logger.Warn("cache store failed",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		d.observer.SideEffectFailed(SideEffectCacheStore)
	}

	d.appendLog(ctx, &domain.InteractionRecord{
		Timestamp:      ts,
		Prompt:         req.Prompt,
		Model:          model,
		RequestedModel: req.Model,
		Response:       gen.Text,
		LatencyMs:      &latency,
		TokenCount:     tokenCount,
		PromptID:       promptID,
	})

	return &ChatResult{
		PromptID:     promptID,
		ModelUsed:    model,
		ResponseText: gen.Text,
		LatencyMs:    &latency,
		TokenCount:   tokenCount,
		FallbackUsed: model != req.Model,
	}
}

func (d *Dispatcher) appendLog(ctx context.Context, rec *domain.InteractionRecord) {
	if err := d.log.Append(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Error("interaction log append failed",
			slog.String("prompt_id", rec.PromptID),
			slog.String("model", rec.Model),
			slog.String("error", err.Error()),
		)
		d.observer.SideEffectFailed(SideEffectLogAppend)
	}
}

// timestamp is the clock reading truncated to the precision stored rows keep.
func (d *Dispatcher) timestamp() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

// Rate appends a v2 rating. The interaction log is not touched. A prompt id
// absent from the log is accepted and recorded nowhere.
func (d *Dispatcher) Rate(ctx context.Context, req RatingRequest) error {
	if req.PromptID == "" {
		return domain.ErrMissingField("prompt_id")
	}
	if req.Model == "" {
		return domain.ErrMissingField("model")
	}
	if !domain.ValidRating(req.Rating) {
		return &domain.ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}

	logged, err := d.log.Get(ctx, req.PromptID)
	if err != nil {
		return fmt.Errorf("lookup interaction: %w", err)
	}
	if len(logged) == 0 {
		d.logger.Info("rating matched no interactions", slog.String("prompt_id", req.PromptID))
		return nil
	}

	rec := &domain.RatingRecord{
		Timestamp: d.timestamp(),
		PromptID:  req.PromptID,
		Model:     req.Model,
		Rating:    req.Rating,
		Feedback:  req.Feedback,
	}
	if err := d.ratings.AppendRating(ctx, rec); err != nil {
		return fmt.Errorf("append rating: %w", err)
	}
	return nil
}

// RateLegacy applies a v1 rating to every interaction with promptID and
// returns how many were updated. An unknown prompt id updates nothing.
func (d *Dispatcher) RateLegacy(ctx context.Context, promptID string, score int) (int, error) {
	if promptID == "" {
		return 0, domain.ErrMissingField("prompt_id")
	}
	if !domain.ValidRating(score) {
		return 0, &domain.ValidationError{Field: "score", Message: "must be between 1 and 5"}
	}

	n, err := d.log.UpdateRating(ctx, promptID, score, d.timestamp())
	if err != nil {
		return 0, fmt.Errorf("update rating: %w", err)
	}
	if n == 0 {
		d.logger.Info("rating matched no interactions", slog.String("prompt_id", promptID))
	}
	return n, nil
}
