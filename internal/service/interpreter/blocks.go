package interpreter

import (
	"strings"
)

// CodeBlock is one fenced block from a model reply.
type CodeBlock struct {
	Language string
	Code     string
}

// ExtractBlocks returns the fenced code blocks in text, in order. An
// unterminated fence runs to the end of text.
func ExtractBlocks(text string) []CodeBlock {
	var (
		blocks []CodeBlock
		inside bool
		lang   string
		body   []string
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			if inside {
				body = append(body, line)
			}
			continue
		}

		if !inside {
			inside = true
			lang = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```")))
			body = body[:0]
			continue
		}

		inside = false
		if code := strings.TrimSpace(strings.Join(body, "\n")); code != "" {
			blocks = append(blocks, CodeBlock{Language: lang, Code: code})
		}
	}

	if inside {
		if code := strings.TrimSpace(strings.Join(body, "\n")); code != "" {
			blocks = append(blocks, CodeBlock{Language: lang, Code: code})
		}
	}
	return blocks
}
