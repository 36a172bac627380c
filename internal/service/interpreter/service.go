// Package interpreter implements the code-execution assistant: the model
// writes code in fenced blocks, the runner executes them, and the output is
// fed back until the model answers without code.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/ochat/internal/system"
)

// CompletedFallback is returned when a task produced neither text nor output.
const CompletedFallback = "Task completed."

const systemPrompt = `You are a helpful assistant that can execute code and perform file operations. ` +
	`When asked to perform a task, write and execute the necessary code. ` +
	`Be direct and execute tasks without asking for confirmation. ` +
	"Put every piece of code you want to run in a fenced block tagged with its language, such as ```bash or ```python. " +
	`Code blocks are executed on the user's machine and their output is sent back to you. ` +
	`When the task is done, reply with a short summary and no code blocks.`

var log = system.Component("interpreter")

// Generator completes a conversation. ai.Service satisfies it.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// CodeRunner executes one code block.
type CodeRunner interface {
	Run(ctx context.Context, block CodeBlock) (string, error)
}

// Service runs tasks through the generate/execute loop.
type Service struct {
	gen      Generator
	runner   CodeRunner
	maxSteps int
	onStep   func(Step)
}

// Step describes one executed code block, for progress display.
type Step struct {
	Index  int
	Block  CodeBlock
	Output string
}

// Option configures a Service.
type Option func(*Service)

// WithMaxSteps bounds the number of generate rounds per task.
func WithMaxSteps(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// WithStepHook registers a callback invoked after each executed block.
func WithStepHook(fn func(Step)) Option {
	return func(s *Service) { s.onStep = fn }
}

// NewService wires a generator and a runner.
func NewService(gen Generator, runner CodeRunner, opts ...Option) (*Service, error) {
	if gen == nil {
		return nil, errors.New("interpreter needs a generator")
	}
	if runner == nil {
		return nil, errors.New("interpreter needs a code runner")
	}
	s := &Service{gen: gen, runner: runner, maxSteps: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Execute runs task from a fresh transcript and returns the final answer.
func (s *Service) Execute(ctx context.Context, task string) (string, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return "", errors.New("empty task")
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(task),
	}

	var (
		finalText  string
		lastProse  string
		lastOutput string
		executed   int
	)

	for round := 0; round < s.maxSteps; round++ {
		reply, err := s.gen.Generate(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("interpreter round %d: %w", round+1, err)
		}
		if reply == nil {
			break
		}

		content := strings.TrimSpace(reply.Content)
		messages = append(messages, schema.AssistantMessage(content, nil))

		blocks := ExtractBlocks(content)
		if len(blocks) == 0 {
			finalText = content
			break
		}
		lastProse = proseOnly(content)

		outputs := make([]string, 0, len(blocks))
		for _, block := range blocks {
			out, err := s.runner.Run(ctx, block)
			if err != nil {
				return "", fmt.Errorf("execute %s block: %w", displayLang(block.Language), err)
			}
			executed++
			lastOutput = out
			outputs = append(outputs, out)
			if s.onStep != nil {
				s.onStep(Step{Index: executed, Block: block, Output: out})
			}
			log.Debug("block executed", "lang", block.Language, "bytes", len(out))
		}

		messages = append(messages, schema.UserMessage(feedback(outputs)))
	}

	// a reply without code ends the task; otherwise the step budget ran out
	// and the freshest output is the most useful answer
	switch {
	case finalText != "":
		return finalText, nil
	case lastOutput != "":
		return lastOutput, nil
	case lastProse != "":
		return lastProse, nil
	default:
		return CompletedFallback, nil
	}
}

func feedback(outputs []string) string {
	var b strings.Builder
	b.WriteString("Output of the code you ran:\n")
	for i, out := range outputs {
		if out == "" {
			out = "(no output)"
		}
		if len(outputs) > 1 {
			fmt.Fprintf(&b, "[block %d]\n", i+1)
		}
		b.WriteString(out)
		b.WriteString("\n")
	}
	b.WriteString("Continue with the task, or summarize the result if it is complete.")
	return b.String()
}

// proseOnly drops fenced blocks from a reply, keeping the surrounding text.
func proseOnly(content string) string {
	var (
		kept   []string
		inside bool
	)
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inside = !inside
			continue
		}
		if !inside {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
