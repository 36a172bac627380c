package dispatch

import (
	"errors"
	"strings"
)

// ErrEmptyTask is returned for an execution prefix with no task text.
var ErrEmptyTask = errors.New("usage: /oi <task>")

// ExecutePrefix selects execution mode for the rest of the line.
const ExecutePrefix = "/oi"

// Kind classifies a line of input.
type Kind int

const (
	KindEmpty Kind = iota
	KindChat
	KindExecute
	KindModel
	KindReset
	KindHelp
	KindQuit
	KindUnknown
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindChat:
		return "chat"
	case KindExecute:
		return "execute"
	case KindModel:
		return "model"
	case KindReset:
		return "reset"
	case KindHelp:
		return "help"
	case KindQuit:
		return "quit"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Command is a parsed line of input.
type Command struct {
	Kind Kind
	// Text is the payload: chat text, task, model name or the unknown command word.
	Text string
	Err  error
}

// Parse classifies a raw input line.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: KindEmpty}
	}
	if line == "exit" {
		return Command{Kind: KindQuit}
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: KindChat, Text: line}
	}

	word := strings.Fields(line)[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, word))

	switch word {
	case "/quit", "/exit":
		return Command{Kind: KindQuit}
	case "/help":
		return Command{Kind: KindHelp}
	case "/reset":
		return Command{Kind: KindReset}
	case "/model":
		return Command{Kind: KindModel, Text: rest}
	case ExecutePrefix:
		if rest == "" {
			return Command{Kind: KindInvalid, Err: ErrEmptyTask}
		}
		return Command{Kind: KindExecute, Text: rest}
	default:
		return Command{Kind: KindUnknown, Text: word}
	}
}

var fileKeywords = []string{"file", "folder", "create", "write", "save", "list", "delete"}

// LooksLikeFileTask reports whether chat text mentions file operations.
func LooksLikeFileTask(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range fileKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
