package chat_widget

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ============================== MIDDLEWARE SYSTEM ==============================

// RequestContext travels through the outbound middleware chain.
type RequestContext struct {
	RequestID string                 `json:"request_id"`
	Endpoint  string                 `json:"endpoint"`
	Request   ChatRequest            `json:"-"`
	Header    http.Header            `json:"-"`
	StartTime time.Time              `json:"start_time"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// MiddlewareNext defines the function signature for next middleware in chain
type MiddlewareNext func(ctx context.Context, rctx *RequestContext) Outcome

// Middleware wraps a single exchange with the backend.
type Middleware interface {
	Handle(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome
	Name() string  // Name of the middleware for logging/debugging
	Priority() int // lower = earlier execution
}

// MiddlewareFunc is a function-based middleware implementation
type MiddlewareFunc struct {
	name     string
	priority int
	handler  func(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome
}

func (m *MiddlewareFunc) Handle(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome {
	return m.handler(ctx, rctx, next)
}

func (m *MiddlewareFunc) Name() string {
	return m.name
}

func (m *MiddlewareFunc) Priority() int {
	return m.priority
}

func NewMiddlewareFunc(name string, priority int, handler func(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome) *MiddlewareFunc {
	return &MiddlewareFunc{
		name:     name,
		priority: priority,
		handler:  handler,
	}
}

// MiddlewareChain manages and executes middleware chain
type MiddlewareChain struct {
	middlewares []Middleware
}

func NewMiddlewareChain() *MiddlewareChain {
	return &MiddlewareChain{
		middlewares: make([]Middleware, 0),
	}
}

// Add inserts the middleware keeping the chain sorted by priority. Equal
// priorities keep insertion order.
func (mc *MiddlewareChain) Add(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
	for i := len(mc.middlewares) - 1; i > 0; i-- {
		if mc.middlewares[i].Priority() < mc.middlewares[i-1].Priority() {
			mc.middlewares[i], mc.middlewares[i-1] = mc.middlewares[i-1], mc.middlewares[i]
		} else {
			break
		}
	}
}

func (mc *MiddlewareChain) Names() []string {
	names := make([]string, 0, len(mc.middlewares))
	for _, m := range mc.middlewares {
		names = append(names, m.Name())
	}
	return names
}

func (mc *MiddlewareChain) Execute(ctx context.Context, rctx *RequestContext, finalHandler MiddlewareNext) Outcome {
	if len(mc.middlewares) == 0 {
		return finalHandler(ctx, rctx)
	}
	return mc.buildChain(ctx, rctx, 0, finalHandler)
}

func (mc *MiddlewareChain) buildChain(ctx context.Context, rctx *RequestContext, index int, finalHandler MiddlewareNext) Outcome {
	if index >= len(mc.middlewares) {
		return finalHandler(ctx, rctx)
	}

	next := func(ctx context.Context, rctx *RequestContext) Outcome {
		return mc.buildChain(ctx, rctx, index+1, finalHandler)
	}
	return mc.middlewares[index].Handle(ctx, rctx, next)
}

// ============================== BUILT-IN MIDDLEWARE ==============================

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every exchange with a fresh id, sent as X-Request-ID.
func RequestIDMiddleware() Middleware {
	return NewMiddlewareFunc("request_id", 0, func(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome {
		if rctx.RequestID == "" {
			rctx.RequestID = uuid.NewString()
		}
		rctx.Header.Set(RequestIDHeader, rctx.RequestID)
		return next(ctx, rctx)
	})
}

// LoggingMiddleware logs each exchange. The token is never logged.
func LoggingMiddleware(log zerolog.Logger) Middleware {
	return NewMiddlewareFunc("logging", 10, func(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome {
		log.Debug().
			Str("request_id", rctx.RequestID).
			Str("endpoint", rctx.Endpoint).
			Int("question_len", len(rctx.Request.Question)).
			Msg("sending question")

		out := next(ctx, rctx)

		ev := log.Info()
		if !out.OK() {
			ev = log.Warn()
		}
		ev = ev.Str("request_id", rctx.RequestID).
			Str("outcome", string(out.Kind)).
			Dur("took", time.Since(rctx.StartTime))
		switch out.Kind {
		case OutcomeHTTPError:
			ev = ev.Int("status", out.Status).Str("detail", out.Detail)
		case OutcomeTransportError:
			ev = ev.Err(out.Err)
		case OutcomeSuccess:
			ev = ev.Int("images", len(out.Response.Images)).Int("quick_replies", len(out.Response.QuickReplies))
		}
		ev.Msg("exchange finished")
		return out
	})
}

// HeaderMiddleware adds a static header to every request.
func HeaderMiddleware(key, value string) Middleware {
	return NewMiddlewareFunc("header:"+key, 20, func(ctx context.Context, rctx *RequestContext, next MiddlewareNext) Outcome {
		rctx.Header.Set(key, value)
		return next(ctx, rctx)
	})
}

// ============================== END MIDDLEWARE SYSTEM ==============================
