package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zhouzirui/ochat/internal/render"
	"github.com/zhouzirui/ochat/internal/service/dispatch"
	"github.com/zhouzirui/ochat/internal/service/interpreter"
)

const maxLineBytes = 1 << 20

// REPL provides the interactive loop.
type REPL struct {
	dispatcher *dispatch.Dispatcher
	out        *render.Renderer
	in         io.Reader
	endpoint   string

	once    sync.Once
	lines   chan string
	readErr error
}

// New constructs a REPL reading from in.
func New(d *dispatch.Dispatcher, out *render.Renderer, in io.Reader, endpoint string) *REPL {
	return &REPL{dispatcher: d, out: out, in: in, endpoint: endpoint}
}

// Run reads lines until EOF, /quit or ctx cancellation. Request errors are
// printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.out.Banner(r.dispatcher.Model(), r.endpoint)

	for {
		r.out.Prompt()
		line, ok := r.readLine(ctx)
		if !ok {
			r.out.EndStream()
			if ctx.Err() != nil {
				return nil
			}
			// the scanner goroutine has closed lines, so readErr is settled
			return r.readErr
		}

		if quit := r.handle(ctx, line); quit {
			return nil
		}
	}
}

// handle processes one line and reports whether the session should end.
func (r *REPL) handle(ctx context.Context, line string) bool {
	cmd := dispatch.Parse(line)

	switch cmd.Kind {
	case dispatch.KindEmpty:
	case dispatch.KindQuit:
		return true
	case dispatch.KindHelp:
		r.out.Help()
	case dispatch.KindReset:
		r.dispatcher.ResetChat()
		r.out.Info("chat history cleared")
	case dispatch.KindModel:
		if cmd.Text == "" {
			r.out.Info(fmt.Sprintf("Using model: %s at %s", r.dispatcher.Model(), r.endpoint))
			return false
		}
		if err := r.dispatcher.SwitchModel(ctx, cmd.Text); err != nil {
			r.out.Error(err)
			return false
		}
		r.out.Info("model switched to " + cmd.Text)
	case dispatch.KindUnknown:
		r.out.Error(fmt.Errorf("unknown command: %s (try /help)", cmd.Text))
	case dispatch.KindInvalid:
		r.out.Error(cmd.Err)
	default:
		r.send(ctx, cmd)
	}
	return false
}

func (r *REPL) send(ctx context.Context, cmd dispatch.Command) {
	mode, err := r.dispatcher.Route(cmd)
	if err != nil {
		r.out.Error(err)
		return
	}
	r.out.Routing(mode)

	started := false
	res, err := r.dispatcher.Handle(ctx, cmd, func(tok string) {
		if !started {
			r.out.AssistantPrefix()
			started = true
		}
		r.out.Token(tok)
	})
	if started {
		r.out.EndStream()
	}

	if err != nil && !errors.Is(err, dispatch.ErrRecordFailed) {
		r.out.Error(err)
		return
	}
	if !res.Streamed {
		r.out.Assistant(res.Output)
	}
	if err != nil {
		r.out.Error(err)
	}
}

// Confirm asks the user before the interpreter runs a block. It shares the
// line reader with the main loop.
func (r *REPL) Confirm(ctx context.Context, block interpreter.CodeBlock) bool {
	r.out.Confirm(block.Language, block.Code)
	line, ok := r.readLine(ctx)
	if !ok {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (r *REPL) readLine(ctx context.Context) (string, bool) {
	r.once.Do(func() {
		r.lines = make(chan string)
		go r.scan()
	})

	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-r.lines:
		return line, ok
	}
}

func (r *REPL) scan() {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		r.lines <- scanner.Text()
	}
	r.readErr = scanner.Err()
	close(r.lines)
}
