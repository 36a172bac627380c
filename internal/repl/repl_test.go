package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zhouzirui/ochat/internal/model/record"
	"github.com/zhouzirui/ochat/internal/render"
	"github.com/zhouzirui/ochat/internal/service/ai"
	"github.com/zhouzirui/ochat/internal/service/dispatch"
	"github.com/zhouzirui/ochat/internal/service/interpreter"
	"github.com/zhouzirui/ochat/internal/store/jsonlog"
)

type stubChat struct {
	model  string
	stream bool
	err    error
}

func (s *stubChat) Chat(_ context.Context, text string, onToken func(string)) (ai.Reply, error) {
	if s.err != nil {
		return ai.Reply{}, s.err
	}
	answer := "echo: " + text
	if s.stream {
		onToken("echo: ")
		onToken(text)
	}
	return ai.Reply{Model: s.model, Raw: answer, Clean: answer}, nil
}

func (s *stubChat) Model() string { return s.model }

func (s *stubChat) SetModel(_ context.Context, name string) error {
	s.model = name
	return nil
}

func (s *stubChat) Reset() {}

type stubExec struct{}

func (stubExec) Execute(_ context.Context, task string) (string, error) {
	return "ran: " + task, nil
}

func newREPL(t *testing.T, chat *stubChat, input string) (*REPL, *bytes.Buffer, *jsonlog.Store) {
	t.Helper()
	store, err := jsonlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("jsonlog.New err: %v", err)
	}
	d, err := dispatch.New(dispatch.Config{Chat: chat, Executor: stubExec{}, Recorder: store})
	if err != nil {
		t.Fatalf("dispatch.New err: %v", err)
	}
	var out bytes.Buffer
	return New(d, render.New(&out, false), strings.NewReader(input), "http://localhost:11434"), &out, store
}

func TestRunRoutesAndLogs(t *testing.T) {
	chat := &stubChat{model: "llama3"}
	input := strings.Join([]string{
		"hello",
		"/oi list files in current directory",
		"/model",
		"/model mistral",
		"hi again",
		"/bogus",
		"/oi",
		"/quit",
		"never reached",
	}, "\n")
	r, out, store := newREPL(t, chat, input)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run err: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"=== Chat Agent (Ollama + Open Interpreter) ===",
		"[Routing] Using Ollama",
		"Assistant: echo: hello",
		"[Routing] Using Open Interpreter",
		"Assistant: ran: list files in current directory",
		"Using model: llama3 at http://localhost:11434",
		"model switched to mistral",
		"unknown command: /bogus (try /help)",
		"[Error] usage: /oi <task>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "never reached") {
		t.Fatalf("input after /quit was processed:\n%s", got)
	}

	chats, _ := store.List(record.ModeChat)
	if len(chats) != 2 || chats[0].Model != "llama3" || chats[1].Model != "mistral" {
		t.Fatalf("unexpected chat records: %+v", chats)
	}
	execs, _ := store.List(record.ModeExecute)
	if len(execs) != 1 || execs[0].Output != "ran: list files in current directory" {
		t.Fatalf("unexpected execute records: %+v", execs)
	}
}

func TestRunStreamsWithoutReprinting(t *testing.T) {
	r, out, _ := newREPL(t, &stubChat{model: "m", stream: true}, "hello\n")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if n := strings.Count(out.String(), "echo: hello"); n != 1 {
		t.Fatalf("expected streamed answer once, got %d:\n%s", n, out.String())
	}
}

func TestRunContinuesAfterError(t *testing.T) {
	chat := &stubChat{model: "m", err: errors.New("dial tcp 127.0.0.1:11434: connection refused")}
	r, out, store := newREPL(t, chat, "hello\n/help\n")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[Error] chat request failed: dial tcp") {
		t.Fatalf("error not reported:\n%s", got)
	}
	if !strings.Contains(got, "/reset           Clear chat history") {
		t.Fatalf("loop stopped after error:\n%s", got)
	}
	if recs, _ := store.List(record.ModeChat); len(recs) != 0 {
		t.Fatalf("failed request was logged: %+v", recs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _, _ := newREPL(t, &stubChat{model: "m"}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run err: %v", err)
	}
}

func TestConfirm(t *testing.T) {
	r, out, _ := newREPL(t, &stubChat{model: "m"}, "y\nno\n")
	ctx := context.Background()
	block := interpreter.CodeBlock{Language: "bash", Code: "rm -rf build"}

	if !r.Confirm(ctx, block) {
		t.Fatal("expected first answer to confirm")
	}
	if r.Confirm(ctx, block) {
		t.Fatal("expected second answer to decline")
	}
	if r.Confirm(ctx, block) {
		t.Fatal("expected EOF to decline")
	}
	if !strings.Contains(out.String(), "rm -rf build") {
		t.Fatalf("code not shown before confirmation:\n%s", out.String())
	}
}
