package zmachine

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Header: the fixed 64-byte story-file prefix
// ---------------------------------------------------------------------------

// Header field offsets.
const (
	hdrVersion       = 0x00
	hdrFlags1        = 0x01
	hdrRelease       = 0x02
	hdrHighBase      = 0x04
	hdrInitialPC     = 0x06
	hdrDictionary    = 0x08
	hdrObjectTable   = 0x0A
	hdrGlobals       = 0x0C
	hdrStaticBase    = 0x0E
	hdrFlags2        = 0x10
	hdrSerial        = 0x12
	hdrAbbreviations = 0x18
	hdrFileLength    = 0x1A
	hdrChecksum      = 0x1C

	headerSize = 0x40
)

// Flags1 bits, v3 meaning.
const (
	flags1TimeGame      = 0x02 // status line shows hours:minutes instead of score/turns
	flags1StatusMissing = 0x10 // set by the interpreter when no status line is available
	flags1ScreenSplit   = 0x20 // set by the interpreter when screen splitting is available
	flags1VariablePitch = 0x40 // set when a variable-pitch font is the default
)

// Header is the parsed, immutable view of the 64-byte prefix. Addresses are
// byte addresses into the store.
type Header struct {
	Version           byte
	Flags1            byte
	Release           uint16
	HighBase          int
	InitialPC         int
	DictionaryBase    int
	ObjectTableBase   int // property defaults table; objects start 62 bytes later
	GlobalsBase       int
	StaticBase        int
	Flags2            uint16
	Serial            [6]byte
	AbbreviationsBase int
	FileLength        int // in bytes (the stored field counts 2-byte units in v3)
	Checksum          uint16
}

// ParseHeader reads and validates the header region. Only version 3 story
// files are accepted.
func ParseHeader(m *Memory) (*Header, error) {
	if m.Len() < headerSize {
		return nil, fmt.Errorf("story file is %d bytes, shorter than the %d-byte header: %w",
			m.Len(), headerSize, ErrCorruptStory)
	}

	h := &Header{
		Version:           m.U8(hdrVersion),
		Flags1:            m.U8(hdrFlags1),
		Release:           m.U16(hdrRelease),
		HighBase:          int(m.U16(hdrHighBase)),
		InitialPC:         int(m.U16(hdrInitialPC)),
		DictionaryBase:    int(m.U16(hdrDictionary)),
		ObjectTableBase:   int(m.U16(hdrObjectTable)),
		GlobalsBase:       int(m.U16(hdrGlobals)),
		StaticBase:        int(m.U16(hdrStaticBase)),
		Flags2:            m.U16(hdrFlags2),
		AbbreviationsBase: int(m.U16(hdrAbbreviations)),
		FileLength:        int(m.U16(hdrFileLength)) * 2,
		Checksum:          m.U16(hdrChecksum),
	}
	for i := 0; i < 6; i++ {
		h.Serial[i] = m.U8(hdrSerial + i)
	}

	if h.Version != 3 {
		return nil, fmt.Errorf("story file declares version %d: %w", h.Version, ErrUnsupportedVersion)
	}
	if h.StaticBase < headerSize || h.StaticBase > m.Len() {
		return nil, fmt.Errorf("static base 0x%x outside the file: %w", h.StaticBase, ErrCorruptStory)
	}
	if h.FileLength == 0 || h.FileLength > m.Len() {
		// Some period story files round the length up; clamp rather than reject.
		h.FileLength = m.Len()
	}
	return h, nil
}

// TimeGame reports whether the status line shows hours:minutes rather than
// score/turns.
func (h *Header) TimeGame() bool {
	return h.Flags1&flags1TimeGame != 0
}

// announceCapabilities rewrites flags1 to describe this interpreter: a status
// line is available, the screen cannot split, fixed pitch is the default.
// This is the only post-load write inside the header region.
func announceCapabilities(m *Memory) {
	flags := m.U8(hdrFlags1)
	flags &^= flags1StatusMissing
	flags &^= flags1ScreenSplit
	flags &^= flags1VariablePitch
	m.WriteU8(hdrFlags1, flags)
}
