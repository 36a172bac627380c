package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeModel struct {
	name   string
	chunks []string
	err    error

	mu     sync.Mutex
	inputs [][]*schema.Message
}

func (f *fakeModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
}

func (f *fakeModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(strings.Join(f.chunks, ""), nil), nil
}

func (f *fakeModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

// factoryFor returns a factory handing out one fake per model name.
func factoryFor(models map[string]*fakeModel) Factory {
	return func(_ context.Context, name string) (model.BaseChatModel, error) {
		m, ok := models[name]
		if !ok {
			return nil, errors.New("model not pulled: " + name)
		}
		return m, nil
	}
}

func TestChatStreamsTokensAndCleansReply(t *testing.T) {
	fake := &fakeModel{name: "llama3", chunks: []string{"<think>", "hmm", "</think>", " Hello", " there"}}
	svc, err := NewService(context.Background(), factoryFor(map[string]*fakeModel{"llama3": fake}), Options{
		Model:        "llama3",
		Stream:       true,
		HistoryLimit: 10,
	})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	var tokens []string
	reply, err := svc.Chat(context.Background(), "hi", func(tok string) { tokens = append(tokens, tok) })
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}

	if len(tokens) != len(fake.chunks) {
		t.Fatalf("expected %d tokens, got %d", len(fake.chunks), len(tokens))
	}
	if reply.Raw != "<think>hmm</think> Hello there" {
		t.Fatalf("unexpected raw reply: %q", reply.Raw)
	}
	if reply.Clean != "hmm Hello there" {
		t.Fatalf("unexpected clean reply: %q", reply.Clean)
	}
	if reply.Model != "llama3" {
		t.Fatalf("unexpected model: %s", reply.Model)
	}

	input := fake.lastInput()
	if len(input) != 2 || input[0].Role != schema.System || input[0].Content != DefaultChatPrompt {
		t.Fatalf("unexpected prompt: %+v", input)
	}
	if input[1].Role != schema.User || input[1].Content != "hi" {
		t.Fatalf("unexpected user message: %+v", input[1])
	}
}

func TestChatEmptyReplyFallsBack(t *testing.T) {
	fake := &fakeModel{chunks: []string{"  ", "<think></think>"}}
	svc, err := NewService(context.Background(), factoryFor(map[string]*fakeModel{"m": fake}), Options{Model: "m"})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	reply, err := svc.Chat(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if reply.Clean != EmptyReplyFallback {
		t.Fatalf("expected fallback reply, got %q", reply.Clean)
	}
}

func TestChatKeepsBoundedHistory(t *testing.T) {
	fake := &fakeModel{chunks: []string{"ok"}}
	svc, err := NewService(context.Background(), factoryFor(map[string]*fakeModel{"m": fake}), Options{
		Model:        "m",
		HistoryLimit: 1,
	})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		if _, err := svc.Chat(ctx, q, nil); err != nil {
			t.Fatalf("Chat %s err: %v", q, err)
		}
	}

	// system + one remembered turn + current query
	input := fake.lastInput()
	if len(input) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(input))
	}
	if input[1].Content != "second" || input[3].Content != "third" {
		t.Fatalf("unexpected history window: %+v", input)
	}

	svc.Reset()
	if _, err := svc.Chat(ctx, "fresh", nil); err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if got := len(fake.lastInput()); got != 2 {
		t.Fatalf("expected history cleared, got %d messages", got)
	}
}

func TestSetModelSwitchesAndKeepsOldOnFailure(t *testing.T) {
	first := &fakeModel{chunks: []string{"from first"}}
	second := &fakeModel{chunks: []string{"from second"}}
	svc, err := NewService(context.Background(), factoryFor(map[string]*fakeModel{"a": first, "b": second}), Options{Model: "a"})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	ctx := context.Background()

	if err := svc.SetModel(ctx, "b"); err != nil {
		t.Fatalf("SetModel err: %v", err)
	}
	reply, err := svc.Chat(ctx, "hi", nil)
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if reply.Model != "b" || reply.Clean != "from second" {
		t.Fatalf("switch not applied: %+v", reply)
	}

	if err := svc.SetModel(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown model")
	}
	if svc.Model() != "b" {
		t.Fatalf("failed switch changed model to %s", svc.Model())
	}
}

func TestChatPropagatesModelError(t *testing.T) {
	fake := &fakeModel{err: errors.New("connection refused")}
	svc, err := NewService(context.Background(), factoryFor(map[string]*fakeModel{"m": fake}), Options{Model: "m", Stream: true})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	if _, err := svc.Chat(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected model error")
	}
}

func TestGenerateUsesActiveModel(t *testing.T) {
	fake := &fakeModel{chunks: []string{"done"}}
	svc, err := NewService(context.Background(), factoryFor(map[string]*fakeModel{"m": fake}), Options{Model: "m"})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	msg, err := svc.Generate(context.Background(), []*schema.Message{schema.UserMessage("task")})
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if msg.Content != "done" {
		t.Fatalf("unexpected content: %s", msg.Content)
	}
}
