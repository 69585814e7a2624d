// Package runner issues one chat-completion request and renders the reply to
// an output stream, either whole or fragment by fragment as it arrives.
package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/efebarandurmaz/chatcli/internal/config"
	"github.com/efebarandurmaz/chatcli/internal/llm"
	"github.com/efebarandurmaz/chatcli/internal/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// FlushWriter is an output that buffers writes until Flush.
type FlushWriter interface {
	io.Writer
	Flush() error
}

// Runner sends a single chat-completion request and writes the reply.
// A Runner is used for one Run.
type Runner struct {
	provider llm.Provider
	out      FlushWriter
	logger   *zerolog.Logger
	onState  func(from, to State)

	state State
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for diagnostics. Defaults to a no-op logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStateHook registers fn to observe every state transition.
func WithStateHook(fn func(from, to State)) Option {
	return func(r *Runner) { r.onState = fn }
}

// New creates a Runner writing to out. If out does not implement FlushWriter
// it is wrapped in a bufio.Writer.
func New(provider llm.Provider, out io.Writer, opts ...Option) *Runner {
	fw, ok := out.(FlushWriter)
	if !ok {
		fw = bufio.NewWriter(out)
	}
	nop := zerolog.Nop()
	r := &Runner{
		provider: provider,
		out:      fw,
		logger:   &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state. After Run returns it is Done or Failed.
func (r *Runner) State() State { return r.state }

func (r *Runner) transition(to State) {
	from := r.state
	if !canTransition(from, to) {
		r.logger.Error().Stringer("from", from).Stringer("to", to).Msg("invalid state transition")
	}
	r.state = to
	if r.onState != nil {
		r.onState(from, to)
	}
}

// Run issues the request described by cfg and writes the reply.
//
// Non-streaming: the whole content followed by a newline is written once.
// Streaming: every non-empty fragment is written verbatim in arrival order and
// the output is flushed after each event. No trailing newline is added. The
// stream is closed on every exit path.
func (r *Runner) Run(ctx context.Context, cfg *config.RequestConfig) (err error) {
	if cfg == nil {
		return newError(KindConfig, "run", errors.New("nil request config"))
	}
	if r.provider == nil {
		return newError(KindConfig, "run", errors.New("no provider"))
	}

	prompt, err := BuildPrompt(cfg)
	if err != nil {
		r.transition(StateFailed)
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if cfg.UserRole == "" || cfg.UserRole == string(llm.RoleSystem) {
		r.logger.Debug().Msg("prompt is sent with role 'system'; --user-role user sends it as end-user content")
	}

	ctx, span := observability.StartChatSpan(ctx, cfg.Provider, cfg.Model, cfg.StreamEnabled)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	opts := &llm.RequestOptions{Model: cfg.Model}
	log := r.logger.With().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Bool("stream", cfg.StreamEnabled).
		Int("messages", len(prompt.Messages)).
		Logger()
	log.Debug().Msg("sending chat request")

	if cfg.StreamEnabled {
		return r.stream(ctx, span, &log, prompt, opts)
	}
	return r.complete(ctx, span, &log, prompt, opts)
}

func (r *Runner) complete(ctx context.Context, span trace.Span, log *zerolog.Logger, prompt *llm.Prompt, opts *llm.RequestOptions) error {
	start := time.Now()
	resp, err := r.provider.Complete(ctx, prompt, opts)
	if err != nil {
		r.transition(StateFailed)
		return classify(ctx, KindRequest, "complete", err)
	}
	if resp == nil {
		r.transition(StateFailed)
		return newError(KindRequest, "complete", errors.New("empty response"))
	}
	observability.RecordCompletion(span, resp.InputTokens, resp.OutputTokens, resp.StopReason, time.Since(start))

	if _, err := io.WriteString(r.out, resp.Content+"\n"); err != nil {
		r.transition(StateFailed)
		return newError(KindOutput, "write", err)
	}
	if err := r.out.Flush(); err != nil {
		r.transition(StateFailed)
		return newError(KindOutput, "flush", err)
	}

	r.transition(StateDone)
	log.Debug().
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Str("stop_reason", resp.StopReason).
		Dur("duration", time.Since(start)).
		Msg("completion received")
	return nil
}

func (r *Runner) stream(ctx context.Context, span trace.Span, log *zerolog.Logger, prompt *llm.Prompt, opts *llm.RequestOptions) (err error) {
	start := time.Now()
	var events, fragments int
	defer func() {
		observability.RecordStream(span, events, fragments, r.state.String(), time.Since(start))
	}()

	s, err := r.provider.Stream(ctx, prompt, opts)
	if err != nil {
		r.transition(StateFailed)
		return classify(ctx, KindRequest, "stream", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("closing stream")
		}
	}()

	r.transition(StateAwaitingEvent)
	for s.Next() {
		events++
		ev := s.Current()
		if !ev.HasContent() {
			// Nothing to write; the flush is a no-op for the reader.
			if err := r.out.Flush(); err != nil {
				r.transition(StateFailed)
				return newError(KindOutput, "flush", err)
			}
			continue
		}

		r.transition(StateWriting)
		for _, c := range ev.Choices {
			if c.Content == "" {
				continue
			}
			if _, err := io.WriteString(r.out, c.Content); err != nil {
				r.transition(StateFailed)
				return newError(KindOutput, "write", err)
			}
			fragments++
		}
		if err := r.out.Flush(); err != nil {
			r.transition(StateFailed)
			return newError(KindOutput, "flush", err)
		}
		r.transition(StateFlushed)
		r.transition(StateAwaitingEvent)
	}

	if err := s.Err(); err != nil {
		r.transition(StateFailed)
		log.Debug().Err(err).Int("events", events).Int("fragments", fragments).Msg("stream failed")
		return classify(ctx, KindMidStream, "stream", err)
	}

	r.transition(StateDone)
	log.Debug().
		Int("events", events).
		Int("fragments", fragments).
		Dur("duration", time.Since(start)).
		Msg("stream finished")
	return nil
}

// classify wraps err as kind, unless the request deadline expired.
func classify(ctx context.Context, kind ErrorKind, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return newError(kind, op, err)
}
