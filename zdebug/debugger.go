// Package zdebug is the interactive developer's debugger. It answers
// $-prefixed commands from the read-only Inspector view and routes the few
// mutating commands (teleport, steal, undo) through the machine's public
// operations.
package zdebug

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/grue/zmachine"
)

// Debugger interprets $-commands against a running machine.
type Debugger struct {
	z        *zmachine.Machine
	insp     *zmachine.Inspector
	out      io.Writer
	history  []string
	commands map[string]command
	disabled bool
}

type command struct {
	run  func(arg string)
	help string
}

// New builds a debugger writing its replies to out.
func New(z *zmachine.Machine, out io.Writer) *Debugger {
	d := &Debugger{
		z:    z,
		insp: z.Inspector(),
		out:  out,
	}
	d.commands = map[string]command{
		"$help":       {d.cmdHelp, "list debugger commands"},
		"$header":     {d.cmdHeader, "show the story header"},
		"$dict":       {d.cmdDict, "list the dictionary"},
		"$tree":       {d.cmdTree, "print the object tree"},
		"$obj":        {d.cmdObj, "$obj N - summarize object N"},
		"$props":      {d.cmdProps, "$props N - list object N's properties"},
		"$attrs":      {d.cmdAttrs, "$attrs N - list object N's set attributes"},
		"$room":       {d.cmdRoom, "show the current location"},
		"$find":       {d.cmdFind, "$find NAME - look an object up by name"},
		"$teleport":   {d.cmdTeleport, "$teleport N - move yourself into object N"},
		"$steal":      {d.cmdSteal, "$steal N - move object N into your inventory"},
		"$undo":       {d.cmdUndo, "rewind one input line"},
		"$redo":       {d.cmdRedo, "replay an undone input line"},
		"$history":    {d.cmdHistory, "show debugger command history"},
		"$quit-debug": {d.cmdQuitDebug, "stop intercepting $-lines for the rest of the session"},
	}
	return d
}

// IsCommand reports whether an input line is meant for the debugger rather
// than the game. After $quit-debug every line goes to the game.
func (d *Debugger) IsCommand(line string) bool {
	return !d.disabled && strings.HasPrefix(strings.TrimSpace(line), "$")
}

// Handle runs one debugger command line.
func (d *Debugger) Handle(line string) {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	cmd, ok := d.commands[name]
	if !ok {
		fmt.Fprintf(d.out, "unknown command %s; try $help\n", name)
		return
	}
	d.history = append(d.history, line)
	cmd.run(strings.TrimSpace(arg))
}

func (d *Debugger) cmdHelp(string) {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(d.out, "%-10s %s\n", name, d.commands[name].help)
	}
}

func (d *Debugger) cmdHeader(string) {
	fmt.Fprint(d.out, d.insp.HeaderInfo())
}

func (d *Debugger) cmdDict(string) {
	words := d.insp.Words()
	for i, w := range words {
		fmt.Fprintf(d.out, "%-12s", w)
		if (i+1)%6 == 0 {
			fmt.Fprintln(d.out)
		}
	}
	fmt.Fprintf(d.out, "\n%d words\n", len(words))
}

func (d *Debugger) cmdTree(string) {
	fmt.Fprint(d.out, d.insp.RenderTree())
}

func (d *Debugger) parseObj(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > d.insp.ObjectCount() {
		fmt.Fprintf(d.out, "need an object number in 1..%d\n", d.insp.ObjectCount())
		return 0, false
	}
	return n, true
}

func (d *Debugger) cmdObj(arg string) {
	obj, ok := d.parseObj(arg)
	if !ok {
		return
	}
	info := d.insp.Object(obj)
	fmt.Fprintf(d.out, "#%d %q parent=%d sibling=%d child=%d\n",
		info.Number, info.Name, info.Parent, info.Sibling, info.Child)
}

func (d *Debugger) cmdProps(arg string) {
	obj, ok := d.parseObj(arg)
	if !ok {
		return
	}
	for _, p := range d.insp.Object(obj).Props {
		fmt.Fprintf(d.out, "prop %2d (size %d): % x\n", p.Number, p.Size, p.Data)
	}
}

func (d *Debugger) cmdAttrs(arg string) {
	obj, ok := d.parseObj(arg)
	if !ok {
		return
	}
	attrs := d.insp.Object(obj).Attrs
	if len(attrs) == 0 {
		fmt.Fprintln(d.out, "no attributes set")
		return
	}
	fmt.Fprintf(d.out, "attributes: %v\n", attrs)
}

func (d *Debugger) cmdRoom(string) {
	obj, name := d.insp.Room()
	fmt.Fprintf(d.out, "#%d %s\n", obj, name)
}

func (d *Debugger) cmdFind(arg string) {
	if arg == "" {
		fmt.Fprintln(d.out, "usage: $find NAME")
		return
	}
	obj := d.insp.FindObject(arg)
	if obj == 0 {
		fmt.Fprintf(d.out, "no object named %q\n", arg)
		return
	}
	fmt.Fprintf(d.out, "#%d %s\n", obj, d.insp.ObjectName(obj))
}

// player finds the player object by its conventional short names.
func (d *Debugger) player() int {
	for _, name := range []string{"cretin", "you", "yourself"} {
		if obj := d.insp.FindObject(name); obj != 0 {
			return obj
		}
	}
	return 0
}

func (d *Debugger) cmdTeleport(arg string) {
	dest, ok := d.parseObj(arg)
	if !ok {
		return
	}
	player := d.player()
	if player == 0 {
		fmt.Fprintln(d.out, "cannot find the player object")
		return
	}
	d.z.InsertObj(player, dest)
	fmt.Fprintf(d.out, "moved to %s; look around\n", d.insp.ObjectName(dest))
}

func (d *Debugger) cmdSteal(arg string) {
	obj, ok := d.parseObj(arg)
	if !ok {
		return
	}
	player := d.player()
	if player == 0 {
		fmt.Fprintln(d.out, "cannot find the player object")
		return
	}
	d.z.InsertObj(obj, player)
	fmt.Fprintf(d.out, "took %s\n", d.insp.ObjectName(obj))
}

func (d *Debugger) cmdUndo(string) {
	if d.z.Undo() {
		fmt.Fprintln(d.out, "rewound one turn")
	} else {
		fmt.Fprintln(d.out, "nothing to undo")
	}
}

func (d *Debugger) cmdRedo(string) {
	if d.z.Redo() {
		fmt.Fprintln(d.out, "replayed one turn")
	} else {
		fmt.Fprintln(d.out, "nothing to redo")
	}
}

func (d *Debugger) cmdHistory(string) {
	for _, line := range d.history {
		fmt.Fprintln(d.out, line)
	}
}

func (d *Debugger) cmdQuitDebug(string) {
	d.disabled = true
	fmt.Fprintln(d.out, "debugger off; $-lines now go to the game")
}
