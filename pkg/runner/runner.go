package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// Runner handles the read-submit-print loop of one session using the
// provided IO.
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler on Stdin/Stdout is used.
	Handler IOHandler

	// Interceptor is the submission policy. If nil, every unit is allowed.
	Interceptor UnitInterceptor

	// Checker probes multi-line input. If nil, every line is a unit.
	Checker ports.IncompleteChecker

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	Banner             string
	Prompt             string
	ContinuationPrompt string
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:             logging.NewNop(),
		Prompt:             "> ",
		ContinuationPrompt: ". ",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the loop until the user quits, the input ends or a signal
// arrives. Errors that end the session (a closed or aborted session, a broken
// handler) are returned; EmptyHistory and denied units are reported and the
// loop continues.
func (r *Runner) Run(ctx context.Context, s ports.Session) error {
	handler := r.resolveHandler()
	interceptor := r.resolveInterceptor()

	signals := NewSignalManager(ctx)
	defer signals.Stop()

	if r.Banner != "" {
		if err := handler.SystemOutput(ctx, r.Banner); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}

	for {
		current := signals.Context()

		unit, err := r.readUnit(current, handler)
		if err != nil {
			if errors.Is(err, ErrLineAborted) {
				continue
			}
			if errors.Is(err, io.EOF) || current.Err() != nil {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		quit, err := r.dispatch(current, handler, interceptor, s, unit)
		if err != nil {
			if signals.Interrupted() {
				r.Logger.Debug("request interrupted", "err", err)
				_ = handler.SystemOutput(ctx, "interrupted")
				return nil
			}
			return err
		}
		if quit {
			return nil
		}
	}
}

// readUnit reads one line and, when the checker says so, continuation lines.
// An empty continuation line submits what was typed so far.
func (r *Runner) readUnit(ctx context.Context, handler IOHandler) (string, error) {
	line, err := handler.Input(ctx, r.Prompt)
	if err != nil {
		return "", err
	}
	if r.Checker == nil || ParseCommand(line).Kind != CmdSubmit {
		return line, nil
	}

	var b strings.Builder
	b.WriteString(line)
	for r.Checker.Incomplete(b.String()) {
		next, err := handler.Input(ctx, r.ContinuationPrompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(next) == "" {
			break
		}
		b.WriteByte('\n')
		b.WriteString(next)
	}
	return b.String(), nil
}

func (r *Runner) dispatch(
	ctx context.Context,
	handler IOHandler,
	interceptor UnitInterceptor,
	s ports.Session,
	line string,
) (bool, error) {
	cmd := ParseCommand(line)
	var reply Reply

	switch cmd.Kind {
	case CmdEmpty:
		return false, nil

	case CmdQuit:
		return true, nil

	case CmdHelp:
		reply = Reply{Kind: ReplyHelp, Message: HelpText}

	case CmdUnknown:
		reply = Reply{Kind: ReplyError, Message: fmt.Sprintf("unknown command %s, type :help", cmd.Payload)}

	case CmdUndo:
		err := s.Undo(ctx)
		if errors.Is(err, domain.ErrEmptyHistory) {
			reply = Reply{Kind: ReplyError, Message: err.Error()}
			break
		}
		if err != nil {
			return false, err
		}
		reply = Reply{Kind: ReplyUndo, Depth: s.Depth()}

	case CmdEnv:
		bindings, err := s.Environment(ctx)
		if err != nil {
			return false, err
		}
		reply = Reply{Kind: ReplyEnv, Bindings: bindings, Depth: s.Depth()}

	case CmdHistory:
		entries, err := s.Transcript(ctx)
		if err != nil {
			return false, err
		}
		reply = Reply{Kind: ReplyHistory, Entries: entries, Depth: s.Depth()}

	case CmdSubmit:
		allowed, reason, err := interceptor(ctx, cmd.Payload)
		if err != nil {
			return false, fmt.Errorf("interceptor error: %w", err)
		}
		if !allowed {
			reply = Reply{Kind: ReplyError, Message: "denied: " + reason}
			break
		}

		res, err := s.Submit(ctx, cmd.Payload)
		if err != nil {
			return false, err
		}
		if rec, ok := handler.(HistoryRecorder); ok {
			rec.Record(cmd.Payload)
		}
		r.Logger.Debug("unit submitted", "depth", res.Depth, "failed", res.Failed())
		reply = Reply{Kind: ReplyResult, Output: res.Output, Failure: res.Failure, Depth: res.Depth}
	}

	if err := handler.Output(ctx, reply); err != nil {
		return false, fmt.Errorf("output error: %w", err)
	}
	return false, nil
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}

func (r *Runner) resolveInterceptor() UnitInterceptor {
	if r.Interceptor != nil {
		return r.Interceptor
	}
	return AutoApproveMiddleware()
}
