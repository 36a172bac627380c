// Package dispatch routes parsed input to the chat or execution backend and
// records every completed interaction.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zhouzirui/ochat/internal/model/record"
	"github.com/zhouzirui/ochat/internal/service/ai"
	"github.com/zhouzirui/ochat/internal/system"
)

var (
	ErrEmptyModel   = errors.New("model name is required")
	ErrRecordFailed = errors.New("failed to record interaction")
	ErrNotRoutable  = errors.New("command is not routed to a backend")
)

var log = system.Component("dispatch")

// ChatBackend answers chat-mode text. ai.Service satisfies it.
type ChatBackend interface {
	Chat(ctx context.Context, text string, onToken func(string)) (ai.Reply, error)
	Model() string
	SetModel(ctx context.Context, name string) error
	Reset()
}

// Executor runs execution-mode tasks. interpreter.Service satisfies it.
type Executor interface {
	Execute(ctx context.Context, task string) (string, error)
}

// Recorder persists one interaction record.
type Recorder interface {
	Append(ctx context.Context, rec record.Record) error
}

// Result is the routed outcome of one request.
type Result struct {
	Mode   record.Mode
	Model  string
	Output string
	// Streamed is true when the output already reached onToken chunk by chunk.
	Streamed bool
	Record   record.Record
}

// Config wires a Dispatcher.
type Config struct {
	Chat     ChatBackend
	Executor Executor
	Recorder Recorder
	// Mirror receives a copy of each record after Recorder succeeds; optional.
	Mirror    Recorder
	AutoRoute bool
	SessionID string
}

// Dispatcher decides which backend handles a command.
type Dispatcher struct {
	chat      ChatBackend
	exec      Executor
	recorder  Recorder
	mirror    Recorder
	autoRoute bool
	sessionID string
}

// New validates cfg and returns a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat backend is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("recorder is required")
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Dispatcher{
		chat:      cfg.Chat,
		exec:      cfg.Executor,
		recorder:  cfg.Recorder,
		mirror:    cfg.Mirror,
		autoRoute: cfg.AutoRoute,
		sessionID: sessionID,
	}, nil
}

// SessionID identifies this run in every record.
func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

// Model returns the model name the next chat request will use.
func (d *Dispatcher) Model() string {
	return d.chat.Model()
}

// SwitchModel changes the model for subsequent requests.
func (d *Dispatcher) SwitchModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyModel
	}
	if err := d.chat.SetModel(ctx, name); err != nil {
		return err
	}
	log.Info("model switched", "model", name)
	return nil
}

// ResetChat clears the chat history.
func (d *Dispatcher) ResetChat() {
	d.chat.Reset()
}

// Route reports which mode would serve cmd.
func (d *Dispatcher) Route(cmd Command) (record.Mode, error) {
	switch cmd.Kind {
	case KindExecute:
		return record.ModeExecute, nil
	case KindChat:
		if d.autoRoute && LooksLikeFileTask(cmd.Text) {
			return record.ModeExecute, nil
		}
		return record.ModeChat, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNotRoutable, cmd.Kind)
	}
}

// Handle sends a chat or execute command to its backend and records the
// outcome. onToken receives streamed chat chunks and may be nil.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command, onToken func(string)) (Result, error) {
	if cmd.Err != nil {
		return Result{}, cmd.Err
	}
	mode, err := d.Route(cmd)
	if err != nil {
		return Result{}, err
	}

	var (
		res = Result{Mode: mode, Model: d.chat.Model()}
		raw string
	)

	switch mode {
	case record.ModeExecute:
		out, err := d.exec.Execute(ctx, cmd.Text)
		if err != nil {
			return Result{}, fmt.Errorf("interpreter failed: %w", err)
		}
		res.Output = out
	default:
		streamed := false
		reply, err := d.chat.Chat(ctx, cmd.Text, func(tok string) {
			streamed = true
			if onToken != nil {
				onToken(tok)
			}
		})
		if err != nil {
			return Result{}, fmt.Errorf("chat request failed: %w", err)
		}
		res.Model = reply.Model
		res.Output = reply.Clean
		res.Streamed = streamed
		raw = reply.Raw
	}

	rec := record.New(d.sessionID, mode, res.Model, cmd.Text, res.Output)
	if raw != "" && raw != res.Output {
		rec.RawOutput = raw
	}
	res.Record = rec

	if err := d.recorder.Append(ctx, rec); err != nil {
		log.Error("record append failed", "mode", mode, "err", err)
		return res, errors.Join(ErrRecordFailed, err)
	}
	if d.mirror != nil {
		if err := d.mirror.Append(ctx, rec); err != nil {
			log.Warn("history mirror append failed", "id", rec.ID, "err", err)
		}
	}
	return res, nil
}
