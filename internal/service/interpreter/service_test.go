package interpreter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

// scriptedGen replays canned replies and records each transcript it saw.
type scriptedGen struct {
	replies []string
	err     error
	seen    [][]*schema.Message
}

func (g *scriptedGen) Generate(_ context.Context, messages []*schema.Message) (*schema.Message, error) {
	g.seen = append(g.seen, append([]*schema.Message(nil), messages...))
	if g.err != nil {
		return nil, g.err
	}
	if len(g.seen) > len(g.replies) {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.AssistantMessage(g.replies[len(g.seen)-1], nil), nil
}

type fakeRunner struct {
	outputs map[string]string
	err     error
	ran     []CodeBlock
}

func (r *fakeRunner) Run(_ context.Context, block CodeBlock) (string, error) {
	r.ran = append(r.ran, block)
	if r.err != nil {
		return "", r.err
	}
	return r.outputs[block.Code], nil
}

func TestExecuteRunsCodeThenSummarises(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		"```bash\nls\n```",
		"The directory contains a.txt and b.txt.",
	}}
	runner := &fakeRunner{outputs: map[string]string{"ls": "a.txt\nb.txt"}}

	var steps []Step
	svc, err := NewService(gen, runner, WithStepHook(func(s Step) { steps = append(steps, s) }))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	out, err := svc.Execute(context.Background(), "list files in current directory")
	if err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if out != "The directory contains a.txt and b.txt." {
		t.Fatalf("unexpected result: %q", out)
	}
	if len(runner.ran) != 1 || runner.ran[0].Language != "bash" {
		t.Fatalf("unexpected runs: %+v", runner.ran)
	}
	if len(steps) != 1 || steps[0].Output != "a.txt\nb.txt" {
		t.Fatalf("unexpected steps: %+v", steps)
	}

	second := gen.seen[1]
	last := second[len(second)-1]
	if last.Role != schema.User || !strings.Contains(last.Content, "a.txt\nb.txt") {
		t.Fatalf("code output not fed back: %+v", last)
	}
	if second[0].Role != schema.System {
		t.Fatalf("expected system message first, got %s", second[0].Role)
	}
}

func TestExecuteStepBudgetReturnsLastOutput(t *testing.T) {
	gen := &scriptedGen{replies: []string{
		"```sh\necho one\n```",
		"```sh\necho two\n```",
	}}
	runner := &fakeRunner{outputs: map[string]string{"echo one": "one", "echo two": "two"}}
	svc, err := NewService(gen, runner, WithMaxSteps(2))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	out, err := svc.Execute(context.Background(), "count")
	if err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if out != "two" {
		t.Fatalf("expected last output, got %q", out)
	}
	if len(gen.seen) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(gen.seen))
	}
}

func TestExecuteEmptyReplyFallsBack(t *testing.T) {
	svc, err := NewService(&scriptedGen{replies: []string{""}}, &fakeRunner{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	out, err := svc.Execute(context.Background(), "do nothing")
	if err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if out != CompletedFallback {
		t.Fatalf("expected fallback, got %q", out)
	}
}

func TestExecuteFreshTranscriptPerTask(t *testing.T) {
	gen := &scriptedGen{replies: []string{"first done", "second done"}}
	svc, err := NewService(gen, &fakeRunner{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.Execute(ctx, "one"); err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if _, err := svc.Execute(ctx, "two"); err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if got := len(gen.seen[1]); got != 2 {
		t.Fatalf("expected system + task only, got %d messages", got)
	}
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()

	svc, _ := NewService(&scriptedGen{err: errors.New("ollama down")}, &fakeRunner{})
	if _, err := svc.Execute(ctx, "task"); err == nil {
		t.Fatal("expected generator error")
	}

	svc, _ = NewService(&scriptedGen{replies: []string{"```sh\nls\n```"}}, &fakeRunner{err: errors.New("sh missing")})
	if _, err := svc.Execute(ctx, "task"); err == nil {
		t.Fatal("expected runner error")
	}

	if _, err := svc.Execute(ctx, "   "); err == nil {
		t.Fatal("expected error for empty task")
	}
}
