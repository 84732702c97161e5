package zdebug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/grue/zmachine"
)

// ---------------------------------------------------------------------------
// Minimal story fixture
// ---------------------------------------------------------------------------

const (
	fxObjects = 0x140
	fxGlobals = 0x300
	fxStatic  = 0x600
	fxCode    = 0x700
	fxSize    = 0x800
)

func put16(d []byte, addr int, v uint16) {
	d[addr] = byte(v >> 8)
	d[addr+1] = byte(v)
}

// packLowercase writes an a-z-only short name as packed z-characters and
// returns the number of words used.
func packLowercase(d []byte, addr int, name string) int {
	var zchars []byte
	for i := 0; i < len(name); i++ {
		zchars = append(zchars, name[i]-'a'+6)
	}
	for len(zchars)%3 != 0 {
		zchars = append(zchars, 5)
	}
	words := len(zchars) / 3
	for w := 0; w < words; w++ {
		v := uint16(zchars[w*3])<<10 | uint16(zchars[w*3+1])<<5 | uint16(zchars[w*3+2])
		if w == words-1 {
			v |= 0x8000
		}
		put16(d, addr+w*2, v)
	}
	return words
}

// fixtureStory builds a tiny v3 image: you(1) parentless, room(2) holding
// lamp(3), the player located in the room.
func fixtureStory() []byte {
	d := make([]byte, fxSize)
	d[0] = 3
	put16(d, 0x02, 7) // release
	put16(d, 0x04, fxCode)
	put16(d, 0x06, fxCode)
	put16(d, 0x08, fxStatic) // dictionary: empty table below
	put16(d, 0x0A, fxObjects)
	put16(d, 0x0C, fxGlobals)
	put16(d, 0x0E, fxStatic)
	copy(d[0x12:], "000000")
	put16(d, 0x18, 0x40)
	put16(d, 0x1A, fxSize/2)

	// Empty dictionary: 0 separators, entry length 7, 0 entries.
	d[fxStatic] = 0
	d[fxStatic+1] = 7
	put16(d, fxStatic+2, 0)

	objBase := fxObjects + 31*2
	entry := func(n int) int { return objBase + 9*(n-1) }
	prop := entry(4)
	for n, name := range []string{"you", "room", "lamp"} {
		put16(d, entry(n+1)+7, uint16(prop))
		words := packLowercase(d, prop+1, name)
		d[prop] = byte(words)
		prop += 1 + words*2
		d[prop] = 0
		prop++
	}
	// room holds lamp
	d[entry(2)+6] = 3 // child
	d[entry(3)+4] = 2 // parent

	put16(d, fxGlobals, 2) // player location

	var sum uint16
	for _, b := range d[0x40:] {
		sum += uint16(b)
	}
	put16(d, 0x1C, sum)
	return d
}

func newFixture(t *testing.T) (*zmachine.Machine, *Debugger, *bytes.Buffer) {
	t.Helper()
	z, err := zmachine.NewMachine(fixtureStory(), nil)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	var out bytes.Buffer
	return z, New(z, &out), &out
}

func TestIsCommand(t *testing.T) {
	_, d, _ := newFixture(t)

	if !d.IsCommand("$tree") || !d.IsCommand("  $obj 3") {
		t.Error("$-lines not recognized")
	}
	if d.IsCommand("take lamp") || d.IsCommand("") {
		t.Error("game input misrouted to the debugger")
	}
}

func TestHelpListsCommands(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$help")
	for _, want := range []string{"$tree", "$obj", "$undo", "$teleport"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("$help output missing %s", want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$bogus")
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("output = %q", out.String())
	}
}

func TestObjCommand(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$obj 3")
	if !strings.Contains(out.String(), `"lamp"`) || !strings.Contains(out.String(), "parent=2") {
		t.Errorf("output = %q", out.String())
	}
}

func TestObjCommandRejectsBadNumbers(t *testing.T) {
	_, d, out := newFixture(t)
	for _, arg := range []string{"$obj", "$obj 0", "$obj 99", "$obj lamp"} {
		out.Reset()
		d.Handle(arg)
		if !strings.Contains(out.String(), "object number") {
			t.Errorf("%q: output = %q", arg, out.String())
		}
	}
}

func TestTreeCommand(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$tree")
	if !strings.Contains(out.String(), "room (2)") || !strings.Contains(out.String(), "lamp (3)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRoomCommand(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$room")
	if !strings.Contains(out.String(), "#2 room") {
		t.Errorf("output = %q", out.String())
	}
}

func TestFindCommand(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$find lamp")
	if !strings.Contains(out.String(), "#3 lamp") {
		t.Errorf("output = %q", out.String())
	}
	out.Reset()
	d.Handle("$find grue")
	if !strings.Contains(out.String(), "no object") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTeleportMovesPlayer(t *testing.T) {
	z, d, _ := newFixture(t)
	d.Handle("$teleport 2")
	if got := z.Parent(1); got != 2 {
		t.Errorf("player parent = %d, want 2", got)
	}
}

func TestStealMovesObject(t *testing.T) {
	z, d, _ := newFixture(t)
	d.Handle("$steal 3")
	if got := z.Parent(3); got != 1 {
		t.Errorf("lamp parent = %d, want the player (1)", got)
	}
}

func TestUndoWithNothingToUndo(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$undo")
	if !strings.Contains(out.String(), "nothing to undo") {
		t.Errorf("output = %q", out.String())
	}
}

func TestQuitDebugStopsInterception(t *testing.T) {
	_, d, out := newFixture(t)

	d.Handle("$quit-debug")
	if !strings.Contains(out.String(), "debugger off") {
		t.Errorf("output = %q", out.String())
	}
	if d.IsCommand("$tree") {
		t.Error("$-lines still intercepted after $quit-debug")
	}
}

func TestHistory(t *testing.T) {
	_, d, out := newFixture(t)
	d.Handle("$room")
	d.Handle("$tree")
	out.Reset()
	d.Handle("$history")
	if !strings.Contains(out.String(), "$room") || !strings.Contains(out.String(), "$tree") {
		t.Errorf("output = %q", out.String())
	}
}
