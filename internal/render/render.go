package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/ochat/internal/model/record"
)

const wordWrap = 100

// Renderer writes user-facing output. With styling off it emits plain text,
// which keeps pipes and tests deterministic.
type Renderer struct {
	out    io.Writer
	styled bool
	md     *glamour.TermRenderer

	prompt    lipgloss.Style
	label     lipgloss.Style
	system    lipgloss.Style
	errStyle  lipgloss.Style
	codeLabel lipgloss.Style
}

// New returns a Renderer writing to out.
func New(out io.Writer, styled bool) *Renderer {
	r := &Renderer{
		out:       out,
		styled:    styled,
		prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("211")),
		system:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		errStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		codeLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
	if styled {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrap),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// Banner shows startup info.
func (r *Renderer) Banner(modelName, endpoint string) {
	fmt.Fprintln(r.out, r.style(r.label, "=== Chat Agent (Ollama + Open Interpreter) ==="))
	fmt.Fprintln(r.out, r.style(r.system, fmt.Sprintf("[System] Using model '%s' at %s", modelName, endpoint)))
	fmt.Fprintln(r.out, "Commands: /oi <msg>, /model [name], /reset, /help, /quit")
}

// Help prints the command list.
func (r *Renderer) Help() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  /oi <msg>        Run a task with the code interpreter")
	fmt.Fprintln(r.out, "  /model           Show the active model")
	fmt.Fprintln(r.out, "  /model <name>    Switch model for later requests")
	fmt.Fprintln(r.out, "  /reset           Clear chat history")
	fmt.Fprintln(r.out, "  /help            Show commands")
	fmt.Fprintln(r.out, "  /quit | exit     Exit")
}

// Prompt writes the input prompt.
func (r *Renderer) Prompt() {
	fmt.Fprint(r.out, r.style(r.prompt, "You: "))
}

// Routing announces which backend serves the request.
func (r *Renderer) Routing(mode record.Mode) {
	name := "Ollama"
	if mode == record.ModeExecute {
		name = "Open Interpreter"
	}
	fmt.Fprintln(r.out, r.style(r.system, "[Routing] Using "+name))
}

// AssistantPrefix starts a streamed answer.
func (r *Renderer) AssistantPrefix() {
	fmt.Fprint(r.out, "\n"+r.style(r.label, "Assistant: "))
}

// Token writes one streamed chunk.
func (r *Renderer) Token(tok string) {
	fmt.Fprint(r.out, tok)
}

// EndStream terminates a streamed answer.
func (r *Renderer) EndStream() {
	fmt.Fprintln(r.out)
}

// Assistant prints a complete answer. Markdown is rendered when styling is on.
func (r *Renderer) Assistant(text string) {
	if r.md != nil {
		if rendered, err := r.md.Render(text); err == nil {
			fmt.Fprintln(r.out, "\n"+r.style(r.label, "Assistant:"))
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintf(r.out, "\n%s%s\n", r.style(r.label, "Assistant: "), text)
}

// CodeStep shows a block the interpreter ran and its output.
func (r *Renderer) CodeStep(index int, lang, code, output string) {
	fmt.Fprintln(r.out, r.style(r.codeLabel, fmt.Sprintf("[OpenInterpreter] step %d (%s)", index, lang)))
	fmt.Fprintln(r.out, indent(code))
	if output != "" {
		fmt.Fprintln(r.out, r.style(r.system, indent(output)))
	}
}

// Confirm asks whether a block may run.
func (r *Renderer) Confirm(lang, code string) {
	fmt.Fprintln(r.out, r.style(r.codeLabel, fmt.Sprintf("[OpenInterpreter] wants to run %s:", lang)))
	fmt.Fprintln(r.out, indent(code))
	fmt.Fprint(r.out, "Run this code? [y/N] ")
}

// Info prints a system message.
func (r *Renderer) Info(msg string) {
	fmt.Fprintln(r.out, r.style(r.system, "[System] "+msg))
}

// Error prints an error without stopping the session.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.out, r.style(r.errStyle, "[Error] "+err.Error()))
}

// Records prints log records, newest last.
func (r *Renderer) Records(recs []record.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(r.out, "no records")
		return
	}
	for _, rec := range recs {
		fmt.Fprintf(r.out, "%s  %-7s  %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Mode, rec.Model)
		fmt.Fprintf(r.out, "  > %s\n", rec.Input)
		fmt.Fprintln(r.out, indent(rec.Output))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
