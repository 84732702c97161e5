package zmachine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Quetzal save files (IFF FORM/IFZS, Quetzal 1.4)
// ---------------------------------------------------------------------------
//
// Layout: a FORM container of type IFZS holding an IFhd chunk (story
// identity and resume PC), a CMem chunk (dynamic memory as a zero-run
// compressed XOR diff against the original story file; UMem is accepted on
// read), and an Stks chunk (concatenated frame records, see frame.go).

var (
	ErrNotQuetzal   = errors.New("not a Quetzal save file")
	ErrSaveMismatch = errors.New("save file belongs to a different story")
	ErrCorruptSave  = errors.New("corrupt save file")
)

// writeChunk appends an IFF chunk: 4-byte ID, big-endian length, data,
// padded to an even byte.
func writeChunk(out *bytes.Buffer, id string, data []byte) {
	out.WriteString(id)
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	out.Write(length[:])
	out.Write(data)
	if len(data)%2 != 0 {
		out.WriteByte(0)
	}
}

// parseChunks splits an IFF body into its chunks.
func parseChunks(data []byte) map[string][]byte {
	chunks := make(map[string][]byte)
	pos := 0
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		length := int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		end := pos + 8 + length
		if end > len(data) {
			break
		}
		chunks[id] = data[pos+8 : end]
		pos = end
		if length%2 != 0 {
			pos++
		}
	}
	return chunks
}

// compressCMem XORs dynamic memory against the original story image, trims
// trailing zeros, and run-length encodes zero runs as {0x00, extra-count}.
func compressCMem(dynamic, original []byte) []byte {
	n := len(dynamic)
	if len(original) < n {
		n = len(original)
	}
	xor := make([]byte, n)
	for i := 0; i < n; i++ {
		xor[i] = dynamic[i] ^ original[i]
	}
	for n > 0 && xor[n-1] == 0 {
		n--
	}
	xor = xor[:n]

	var out bytes.Buffer
	for i := 0; i < len(xor); {
		b := xor[i]
		if b != 0 {
			out.WriteByte(b)
			i++
			continue
		}
		run := 0
		i++
		for i < len(xor) && xor[i] == 0 && run < 255 {
			run++
			i++
		}
		out.WriteByte(0)
		out.WriteByte(byte(run))
	}
	return out.Bytes()
}

// decompressCMem rebuilds dynamic memory from a CMem chunk and the original
// story image.
func decompressCMem(cmem, original []byte) []byte {
	xor := make([]byte, len(original))
	src, dst := 0, 0
	for src < len(cmem) && dst < len(xor) {
		b := cmem[src]
		src++
		if b != 0 {
			xor[dst] = b
			dst++
			continue
		}
		count := 1
		if src < len(cmem) {
			count = int(cmem[src]) + 1
			src++
		}
		dst += count
	}
	out := make([]byte, len(original))
	for i := range out {
		out[i] = xor[i] ^ original[i]
	}
	return out
}

// MakeQuetzal serializes the machine into a Quetzal save file that resumes
// at the given PC.
func (z *Machine) MakeQuetzal(resumePC int) []byte {
	var ifhd bytes.Buffer
	var word [2]byte
	binary.BigEndian.PutUint16(word[:], z.header.Release)
	ifhd.Write(word[:])
	ifhd.Write(z.header.Serial[:])
	binary.BigEndian.PutUint16(word[:], z.header.Checksum)
	ifhd.Write(word[:])
	ifhd.WriteByte(byte(resumePC >> 16))
	ifhd.WriteByte(byte(resumePC >> 8))
	ifhd.WriteByte(byte(resumePC))

	dynamic := z.mem.Slice(0, z.header.StaticBase)
	cmem := compressCMem(dynamic, z.originalDynamic)

	var stks bytes.Buffer
	for _, frame := range z.frames {
		stks.Write(frame.Encode())
	}

	var body bytes.Buffer
	body.WriteString("IFZS")
	writeChunk(&body, "IFhd", ifhd.Bytes())
	writeChunk(&body, "CMem", cmem)
	writeChunk(&body, "Stks", stks.Bytes())

	var out bytes.Buffer
	out.WriteString("FORM")
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(body.Len()))
	out.Write(length[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

// RestoreQuetzal validates a Quetzal save file against the loaded story and
// replaces dynamic memory, frames and PC with its contents.
func (z *Machine) RestoreQuetzal(data []byte) error {
	if len(data) < 12 || string(data[0:4]) != "FORM" {
		return fmt.Errorf("missing IFF FORM header: %w", ErrNotQuetzal)
	}
	if string(data[8:12]) != "IFZS" {
		return fmt.Errorf("FORM type %q: %w", data[8:12], ErrNotQuetzal)
	}
	chunks := parseChunks(data[12:])

	ifhd, ok := chunks["IFhd"]
	if !ok || len(ifhd) < 13 {
		return fmt.Errorf("missing or short IFhd chunk: %w", ErrCorruptSave)
	}
	if binary.BigEndian.Uint16(ifhd[0:2]) != z.header.Release {
		return fmt.Errorf("release %d != %d: %w",
			binary.BigEndian.Uint16(ifhd[0:2]), z.header.Release, ErrSaveMismatch)
	}
	if !bytes.Equal(ifhd[2:8], z.header.Serial[:]) {
		return fmt.Errorf("serial %q != %q: %w", ifhd[2:8], z.header.Serial[:], ErrSaveMismatch)
	}
	if binary.BigEndian.Uint16(ifhd[8:10]) != z.header.Checksum {
		return fmt.Errorf("checksum mismatch: %w", ErrSaveMismatch)
	}
	pc := int(ifhd[10])<<16 | int(ifhd[11])<<8 | int(ifhd[12])

	var dynamic []byte
	switch {
	case chunks["CMem"] != nil:
		dynamic = decompressCMem(chunks["CMem"], z.originalDynamic)
	case chunks["UMem"] != nil:
		dynamic = chunks["UMem"]
	default:
		return fmt.Errorf("missing CMem/UMem chunk: %w", ErrCorruptSave)
	}
	if len(dynamic) > z.header.StaticBase {
		return fmt.Errorf("restored dynamic memory is %d bytes, static base is 0x%x: %w",
			len(dynamic), z.header.StaticBase, ErrCorruptSave)
	}

	stks, ok := chunks["Stks"]
	if !ok {
		return fmt.Errorf("missing Stks chunk: %w", ErrCorruptSave)
	}
	var frames []*Frame
	for pos := 0; pos < len(stks); {
		frame, n, err := DecodeFrame(stks[pos:])
		if err != nil {
			return fmt.Errorf("Stks chunk: %w", err)
		}
		frames = append(frames, frame)
		pos += n
	}
	if len(frames) == 0 {
		return fmt.Errorf("empty Stks chunk: %w", ErrCorruptSave)
	}

	z.mem.restoreDynamic(dynamic)
	announceCapabilities(z.mem)
	z.frames = frames
	z.pc = pc
	z.dict = nil
	return nil
}
