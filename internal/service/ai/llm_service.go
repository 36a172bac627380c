package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/ochat/internal/system"
)

// EmptyReplyFallback is shown when the model answers with nothing but whitespace.
const EmptyReplyFallback = "I understand. How can I help you?"

var log = system.Component("ai")

// Factory builds a chat model for the given model name.
type Factory func(ctx context.Context, modelName string) (model.BaseChatModel, error)

// Options tune a Service.
type Options struct {
	Model        string
	Stream       bool
	HistoryLimit int
	SystemPrompt string
}

// Reply is the outcome of one chat request.
type Reply struct {
	Model string
	Raw   string
	Clean string
}

// Service forwards chat messages to the configured language model.
type Service struct {
	factory Factory
	opts    Options

	mu        sync.RWMutex
	modelName string
	chatModel model.BaseChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	history   []*schema.Message
}

// NewService creates the chat model for opts.Model and compiles the chain.
func NewService(ctx context.Context, factory Factory, opts Options) (*Service, error) {
	if factory == nil {
		return nil, errors.New("chat model factory is required")
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultChatPrompt
	}

	s := &Service{factory: factory, opts: opts}
	if err := s.SetModel(ctx, opts.Model); err != nil {
		return nil, err
	}
	return s, nil
}

// Model returns the active model name.
func (s *Service) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelName
}

// StreamingEnabled reports whether Chat delivers tokens as they arrive.
func (s *Service) StreamingEnabled() bool {
	return s.opts.Stream
}

// SetModel builds a chat model for name and swaps it in. On failure the
// previous model stays active.
func (s *Service) SetModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	chatModel, err := s.factory(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create chat model %q: %w", name, err)
	}
	runnable, err := compileChain(ctx, chatModel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.modelName = name
	s.chatModel = chatModel
	s.chain = runnable
	s.mu.Unlock()

	log.Debug("chat model ready", "model", name)
	return nil
}

// Reset forgets the conversation history.
func (s *Service) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Chat sends text to the model. When streaming is enabled onToken receives
// every non-empty chunk; onToken may be nil.
func (s *Service) Chat(ctx context.Context, text string, onToken func(string)) (Reply, error) {
	s.mu.RLock()
	chain := s.chain
	modelName := s.modelName
	input := map[string]any{
		"system":  s.opts.SystemPrompt,
		"history": append([]*schema.Message(nil), s.history...),
		"query":   text,
	}
	s.mu.RUnlock()

	var (
		response *schema.Message
		err      error
	)
	if s.opts.Stream {
		response, err = streamChain(ctx, chain, input, onToken)
	} else {
		response, err = chain.Invoke(ctx, input)
		if err != nil {
			err = fmt.Errorf("failed to run chat chain: %w", err)
		}
	}
	if err != nil {
		return Reply{}, err
	}

	raw := ""
	if response != nil {
		raw = strings.TrimSpace(response.Content)
	}
	reply := Reply{Model: modelName, Raw: raw, Clean: CleanReply(raw)}
	if reply.Clean == "" {
		reply.Clean = EmptyReplyFallback
	}

	s.remember(text, reply.Clean)
	log.Debug("chat reply", "model", modelName, "length", len(reply.Raw))
	return reply, nil
}

// Generate runs a single completion against the active model with no
// template or history, stripping reasoning markers from the reply. The
// interpreter drives its own transcript through it.
func (s *Service) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	s.mu.RLock()
	chatModel := s.chatModel
	s.mu.RUnlock()

	msg, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate: %w", err)
	}
	if msg == nil {
		return schema.AssistantMessage("", nil), nil
	}

	cleaned := *msg
	cleaned.Content = CleanReply(msg.Content)
	return &cleaned, nil
}

// CleanReply strips reasoning markers some local models emit.
func CleanReply(raw string) string {
	cleaned := strings.ReplaceAll(raw, "<think>", "")
	cleaned = strings.ReplaceAll(cleaned, "</think>", "")
	return strings.TrimSpace(cleaned)
}

func (s *Service) remember(user, assistant string) {
	limit := s.opts.HistoryLimit
	if limit <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, schema.UserMessage(user), schema.AssistantMessage(assistant, nil))
	// one turn is a user and an assistant message
	if keep := limit * 2; len(s.history) > keep {
		s.history = append([]*schema.Message(nil), s.history[len(s.history)-keep:]...)
	}
}

func compileChain(ctx context.Context, chatModel model.BaseChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return runnable, nil
}

func streamChain(ctx context.Context, chain compose.Runnable[map[string]any, *schema.Message], input map[string]any, onToken func(string)) (*schema.Message, error) {
	stream, err := chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 32)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, fmt.Errorf("failed to read chat stream: %w", recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onToken != nil {
			onToken(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}
	return schema.ConcatMessages(chunks)
}
