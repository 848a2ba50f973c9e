package knowledge

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

type LimitOptions struct {
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetries        int
	// InitialInterval is the first retry delay; 500ms when zero.
	InitialInterval time.Duration
}

// callLimiter throttles provider calls, bounds each with a timeout and
// retries failures with exponential back-off. A timeout is an ordinary
// failure. Errors marked with backoff.Permanent are not retried.
type callLimiter struct {
	limiter *rate.Limiter
	opts    LimitOptions
}

func newCallLimiter(opts LimitOptions) callLimiter {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return callLimiter{limiter: rate.NewLimiter(limit, 1), opts: opts}
}

func (l callLimiter) do(ctx context.Context, call func(context.Context) error) error {
	operation := func() error {
		if err := l.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx := ctx
		if l.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
			defer cancel()
		}
		if err := call(callCtx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.opts.InitialInterval
	b.MaxInterval = 20 * l.opts.InitialInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.opts.MaxRetries)), ctx)
	return backoff.Retry(operation, policy)
}

// LimitedGenerator wraps a Generator with a callLimiter.
type LimitedGenerator struct {
	next Generator
	lim  callLimiter
}

func NewLimitedGenerator(next Generator, opts LimitOptions) *LimitedGenerator {
	return &LimitedGenerator{next: next, lim: newCallLimiter(opts)}
}

func (l *LimitedGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var out string
	err := l.lim.do(ctx, func(callCtx context.Context) error {
		text, err := l.next.Generate(callCtx, system, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// LimitedEmbedder wraps an Embedder with a callLimiter. A retry resends the
// whole text slice.
type LimitedEmbedder struct {
	next Embedder
	lim  callLimiter
}

func NewLimitedEmbedder(next Embedder, opts LimitOptions) *LimitedEmbedder {
	return &LimitedEmbedder{next: next, lim: newCallLimiter(opts)}
}

func (l *LimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	err := l.lim.do(ctx, func(callCtx context.Context) error {
		vecs, err := l.next.Embed(callCtx, texts)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *LimitedEmbedder) Dimension() int {
	return l.next.Dimension()
}
