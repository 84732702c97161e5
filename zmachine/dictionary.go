package zmachine

import (
	"bytes"
)

// ---------------------------------------------------------------------------
// Dictionary & Tokenizer
// ---------------------------------------------------------------------------

// dictionary caches the parsed dictionary header. Loaded lazily on first use.
type dictionary struct {
	separators  []byte
	entryLength int
	entryCount  int
	entriesBase int
}

func (z *Machine) loadDictionary() *dictionary {
	if z.dict != nil {
		return z.dict
	}
	r := z.mem.ReaderAt(z.header.DictionaryBase)
	n := int(r.Byte())
	seps := make([]byte, n)
	for i := range seps {
		seps[i] = r.Byte()
	}
	d := &dictionary{
		separators:  seps,
		entryLength: int(r.Byte()),
		entryCount:  int(r.Word()),
		entriesBase: r.Position(),
	}
	z.dict = d
	return d
}

// lookupWord binary-searches the sorted word table for the 4-byte encoded
// key. Returns the entry's byte address, or 0 on a miss.
func (z *Machine) lookupWord(key [4]byte) int {
	d := z.loadDictionary()
	lo, hi := 0, d.entryCount-1
	for lo <= hi {
		mid := (lo + hi) / 2
		addr := d.entriesBase + mid*d.entryLength
		entry := z.mem.Slice(addr, addr+4)
		switch bytes.Compare(key[:], entry) {
		case 0:
			return addr
		case -1:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return 0
}

// token is one word of a split input line.
type token struct {
	text   []byte
	offset int // 1-based byte offset within the typed line
}

// splitInput splits an input line on spaces and on the dictionary's word
// separators. Separators become single-character tokens of their own; spaces
// do not.
func splitInput(line []byte, separators []byte) []token {
	var tokens []token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, token{text: line[start:end], offset: start + 1})
			start = -1
		}
	}
	for i, c := range line {
		switch {
		case c == ' ':
			flush(i)
		case bytes.IndexByte(separators, c) >= 0:
			flush(i)
			tokens = append(tokens, token{text: line[i : i+1], offset: i + 1})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(line))
	return tokens
}

// Tokenize reads the typed line out of the text buffer, splits it, looks each
// token up in the dictionary, and fills the parse buffer: capacity at byte 0,
// token count at byte 1, then 4-byte records of dictionary address, token
// length and buffer offset.
func (z *Machine) Tokenize(textAddr, parseAddr int) {
	d := z.loadDictionary()

	maxLen := int(z.mem.U8(textAddr))
	var line []byte
	for i := 0; i < maxLen; i++ {
		c := z.mem.U8(textAddr + 1 + i)
		if c == 0 {
			break
		}
		line = append(line, c)
	}

	tokens := splitInput(line, d.separators)
	capacity := int(z.mem.U8(parseAddr))
	if len(tokens) > capacity {
		tokens = tokens[:capacity]
	}

	w := z.mem.WriterAt(parseAddr + 1)
	w.Byte(byte(len(tokens)))
	for _, t := range tokens {
		w.Word(uint16(z.lookupWord(encodeDictionaryKey(string(t.text)))))
		w.Byte(byte(len(t.text)))
		w.Byte(byte(t.offset))
	}
}
