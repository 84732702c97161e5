package zmachine

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Synthetic story image shared by the package tests
// ---------------------------------------------------------------------------
//
// Layout of the 2 KiB test story:
//
//	0x000 header
//	0x040 abbreviation table (96 word entries)
//	0x100 abbreviation strings
//	0x140 object table: 31 property defaults, 7 objects, property tables
//	0x300 globals (240 words)
//	0x500 text buffer scratch     0x540 parse buffer scratch
//	0x600 static base: dictionary
//	0x700 high base / initial PC: code written per test

const (
	tsAbbrevTable   = 0x40
	tsAbbrevStrings = 0x100
	tsObjectTable   = 0x140
	tsGlobals       = 0x300
	tsTextBuffer    = 0x500
	tsParseBuffer   = 0x540
	tsStatic        = 0x600
	tsDictionary    = 0x600
	tsCode          = 0x700
	tsSize          = 0x800
)

// Test object numbers, named for readability.
const (
	objYou = iota + 1
	objRoom
	objBox
	objMat
	objLamp
	objLeaf
	objSack
	objCount
)

func put16(d []byte, addr int, v uint16) {
	d[addr] = byte(v >> 8)
	d[addr+1] = byte(v)
}

// packName writes a short name as two packed words (the 6-Z-character
// encoding is plenty for the test names).
func packName(d []byte, addr int, name string) {
	key := encodeDictionaryKey(name)
	copy(d[addr:], key[:])
}

// newTestStory builds the synthetic story image described above.
func newTestStory() []byte {
	d := make([]byte, tsSize)
	d[0] = 3
	put16(d, 0x02, 1) // release
	put16(d, 0x04, tsCode)
	put16(d, 0x06, tsCode)
	put16(d, 0x08, tsDictionary)
	put16(d, 0x0A, tsObjectTable)
	put16(d, 0x0C, tsGlobals)
	put16(d, 0x0E, tsStatic)
	copy(d[0x12:], "260805")
	put16(d, 0x18, tsAbbrevTable)
	put16(d, 0x1A, tsSize/2)

	// Abbreviation 2 of bank 1 says "the ": z-chars t=25 h=13 e=10 space=0.
	put16(d, tsAbbrevTable+2*2, tsAbbrevStrings/2)
	put16(d, tsAbbrevStrings, 25<<10|13<<5|10)
	put16(d, tsAbbrevStrings+2, 0x8000|0<<10|5<<5|5)

	// Property default: property 5 defaults to 0xBEEF.
	put16(d, tsObjectTable+(5-1)*2, 0xBEEF)

	// Objects. Tree: room(2) holds lamp(5) then sack(7); you(1) is in room
	// via the test that needs it; box(3), mat(4) and leaf(6) start orphaned.
	objBase := tsObjectTable + objectDefaults*2
	entry := func(n int) int { return objBase + objectEntrySize*(n-1) }
	names := []string{"you", "room", "box", "mat", "lamp", "leaf", "sack"}

	propAddr := entry(objCount) // property tables directly follow the entries
	for n := 1; n < objCount; n++ {
		put16(d, entry(n)+objectPropOff, uint16(propAddr))
		d[propAddr] = 2 // name length in words
		packName(d, propAddr+1, names[n-1])
		propAddr += 5

		switch n {
		case objRoom:
			// Property 6 of size 4, for size-fault and prop-len tests.
			d[propAddr] = 32*(4-1) | 6
			copy(d[propAddr+1:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
			propAddr += 5
		case objLamp:
			// Descending: 17 (size 2), then 5 (size 1).
			d[propAddr] = 32*(2-1) | 17
			put16(d, propAddr+1, 0x1234)
			d[propAddr+3] = 32*(1-1) | 5
			d[propAddr+4] = 0x42
			propAddr += 5
		}
		d[propAddr] = 0 // terminator
		propAddr++
	}

	link := func(n, parent, sibling, child int) {
		d[entry(n)+objectParentOff] = byte(parent)
		d[entry(n)+objectSiblingOff] = byte(sibling)
		d[entry(n)+objectChildOff] = byte(child)
	}
	link(objRoom, 0, 0, objLamp)
	link(objLamp, objRoom, objSack, 0)
	link(objSack, objRoom, 0, 0)

	// Globals: location, score, turns.
	put16(d, tsGlobals+0, uint16(objRoom))
	put16(d, tsGlobals+2, 5)
	put16(d, tsGlobals+4, 10)

	// Buffer capacities for read/tokenize tests.
	d[tsTextBuffer] = 40
	d[tsParseBuffer] = 10

	// Dictionary: one separator (comma), entry length 7, three sorted words.
	w := tsDictionary
	d[w] = 1
	d[w+1] = ','
	d[w+2] = 7
	put16(d, w+3, 3)
	w += 5
	for _, word := range []string{"go", "lamp", "take"} {
		key := encodeDictionaryKey(word)
		copy(d[w:], key[:])
		w += 7
	}

	// Checksum over everything past the header.
	var sum uint16
	for _, b := range d[headerSize:] {
		sum += uint16(b)
	}
	put16(d, 0x1C, sum)
	return d
}

// newTestMachine builds a machine over the test story, with the given
// program copied to the initial PC.
func newTestMachine(t *testing.T, host Host, program ...byte) *Machine {
	t.Helper()
	story := newTestStory()
	copy(story[tsCode:], program)
	// Re-seal the checksum over the patched image.
	var sum uint16
	for _, b := range story[headerSize:] {
		sum += uint16(b)
	}
	put16(story, 0x1C, sum)
	z, err := NewMachine(story, host)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return z
}

// expectFault asserts that fn panics with an error wrapping want.
func expectFault(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected fault %v, got none", want)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, want) {
			t.Fatalf("expected fault %v, got %v", want, r)
		}
	}()
	fn()
}

// recordingHost captures output and feeds scripted input lines.
type recordingHost struct {
	NullHost
	out    strings.Builder
	status []string
	lines  []string
	saved  []byte
}

func (h *recordingHost) WriteText(s string) {
	h.out.WriteString(s)
}

func (h *recordingHost) WriteChar(c rune) {
	h.out.WriteRune(c)
}

func (h *recordingHost) WriteObjectName(name string, _ bool) {
	h.out.WriteString(name)
}

func (h *recordingHost) ShowStatus(left, right string) {
	h.status = append(h.status, left+"|"+right)
}

func (h *recordingHost) ReadLine(int) (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	line := h.lines[0]
	h.lines = h.lines[1:]
	return line, true
}

func (h *recordingHost) Save(data []byte) bool {
	h.saved = append([]byte(nil), data...)
	return true
}

func (h *recordingHost) Restore() []byte {
	return h.saved
}
