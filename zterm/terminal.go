// Package zterm renders a running game on an ANSI terminal: a reverse-video
// status bar pinned to the top row, styled object names, and a simple line
// reader. It implements zmachine.Host.
package zterm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ANSI escape sequences used by the renderer.
const (
	ansiReset      = "\033[0m"
	ansiBold       = "\033[1m"
	ansiReverse    = "\033[7m"
	ansiBoldCyan   = "\033[1;36m"
	ansiBoldYellow = "\033[1;33m"
	ansiClear      = "\033[2J"
	ansiHome       = "\033[H"
	ansiSaveCur    = "\033[s"
	ansiRestoreCur = "\033[u"
)

func ansiMoveTo(row int) string {
	return fmt.Sprintf("\033[%d;1H", row)
}

// Saver supplies the persistence half of the host interface, so the terminal
// stays ignorant of save-file handling.
type Saver interface {
	Save(data []byte) bool
	Restore() []byte
}

// nullSaver refuses all persistence.
type nullSaver struct{}

func (nullSaver) Save([]byte) bool { return false }
func (nullSaver) Restore() []byte  { return nil }

// Options configures a Terminal.
type Options struct {
	// Plain suppresses every escape sequence, for piped or diffed output.
	Plain bool
	// Highlight styles object names printed by the game.
	Highlight bool
	// Saver handles the save and restore hooks; nil disables them.
	Saver Saver
}

// Terminal is an ANSI-terminal Host.
type Terminal struct {
	opts       Options
	out        io.Writer
	in         *bufio.Reader
	lastOutput string
}

// New builds a Terminal over stdin/stdout. Plain mode is forced when stdout
// is not a TTY.
func New(opts Options) *Terminal {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		opts.Plain = true
	}
	if opts.Saver == nil {
		opts.Saver = nullSaver{}
	}
	return &Terminal{
		opts: opts,
		out:  os.Stdout,
		in:   bufio.NewReader(os.Stdin),
	}
}

func (t *Terminal) width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Init clears the screen and paints an empty status bar. A no-op in plain
// mode.
func (t *Terminal) Init() {
	if t.opts.Plain {
		return
	}
	fmt.Fprint(t.out, ansiClear, ansiHome)
	t.ShowStatus("", "")
	fmt.Fprint(t.out, ansiMoveTo(2))
}

// Reset restores default terminal attributes.
func (t *Terminal) Reset() {
	if t.opts.Plain {
		return
	}
	fmt.Fprint(t.out, ansiReset)
}

// WriteText emits narrative text.
func (t *Terminal) WriteText(s string) {
	fmt.Fprint(t.out, s)
	if s != "" {
		t.lastOutput = s
	}
}

// WriteChar emits a single character.
func (t *Terminal) WriteChar(c rune) {
	t.WriteText(string(c))
}

// WriteObjectName emits an object name, bold cyan for things and bold yellow
// for the current location when highlighting is on.
func (t *Terminal) WriteObjectName(name string, isLocation bool) {
	if t.opts.Plain || !t.opts.Highlight {
		t.WriteText(name)
		return
	}
	color := ansiBoldCyan
	if isLocation {
		color = ansiBoldYellow
	}
	fmt.Fprint(t.out, color, name, ansiReset)
	if name != "" {
		t.lastOutput = name
	}
}

// ShowStatus paints the status bar: location left-justified, score or clock
// right-justified, reverse video across the full width.
func (t *Terminal) ShowStatus(left, right string) {
	if t.opts.Plain {
		return
	}
	width := t.width()
	padding := width - len(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}
	bar := " " + left + strings.Repeat(" ", padding) + right
	if len(bar) > width {
		bar = bar[:width]
	}
	fmt.Fprint(t.out, ansiSaveCur, ansiMoveTo(1), ansiReverse, bar, ansiReset, ansiRestoreCur)
}

// ReadLine blocks for one line of input. Returns ok=false when the read
// fails (EOF included) before any input arrives, which the engine treats as
// quit.
func (t *Terminal) ReadLine(max int) (string, bool) {
	// Suppress our own prompt when the game has already printed one.
	if !t.opts.Plain && !strings.HasSuffix(strings.TrimRight(t.lastOutput, " \n"), ">") {
		fmt.Fprint(t.out, ansiBold, "> ", ansiReset)
	}
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	t.lastOutput = ""
	line = strings.TrimRight(line, "\r\n")
	if len(line) > max {
		line = line[:max]
	}
	return line, true
}

// SplitWindow is a no-op; this host has a single window.
func (t *Terminal) SplitWindow(int) {}

// SetWindow is a no-op; this host has a single window.
func (t *Terminal) SetWindow(int) {}

// Save delegates to the configured Saver.
func (t *Terminal) Save(data []byte) bool {
	return t.opts.Saver.Save(data)
}

// Restore delegates to the configured Saver.
func (t *Terminal) Restore() []byte {
	return t.opts.Saver.Restore()
}

// ReadFilename prompts for a file or slot name outside the game's own input
// loop.
func (t *Terminal) ReadFilename(prompt string) string {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
