package zmachine

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Snapshots: full-state freeze/thaw
// ---------------------------------------------------------------------------
//
// Unlike Quetzal files, snapshots capture everything needed to resume
// mid-session, including the PRNG position, and are only meaningful within
// the process that took them (they reference the loaded story by identity,
// not content). They back the debugger's undo/redo ring.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("zmachine: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type snapshotFrame struct {
	Resume   int      `cbor:"resume"`
	Store    int      `cbor:"store"`
	Locals   []uint16 `cbor:"locals"`
	Stack    []uint16 `cbor:"stack"`
	ArgCount int      `cbor:"args"`
}

type snapshot struct {
	Release  uint16          `cbor:"release"`
	Checksum uint16          `cbor:"checksum"`
	Dynamic  []byte          `cbor:"dynamic"`
	PC       int             `cbor:"pc"`
	Frames   []snapshotFrame `cbor:"frames"`
	Turns    int             `cbor:"turns"`
	RNGSeed  int64           `cbor:"seed"`
	RNGDraws uint64          `cbor:"draws"`
}

// Freeze serializes the complete machine state to CBOR.
func (z *Machine) Freeze() ([]byte, error) {
	snap := snapshot{
		Release:  z.header.Release,
		Checksum: z.header.Checksum,
		Dynamic:  z.mem.Slice(0, z.header.StaticBase),
		PC:       z.pc,
		Turns:    z.turns,
		RNGSeed:  z.rngSeed,
		RNGDraws: z.rngDraws,
	}
	for _, f := range z.frames {
		snap.Frames = append(snap.Frames, snapshotFrame{
			Resume:   f.Resume,
			Store:    f.Store,
			Locals:   append([]uint16(nil), f.Locals...),
			Stack:    append([]uint16(nil), f.Stack...),
			ArgCount: f.ArgCount,
		})
	}
	data, err := cborEncMode.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("freeze: %w", err)
	}
	return data, nil
}

// Thaw restores machine state from a Freeze blob. The PRNG is reseeded and
// fast-forwarded to the draw count it had at freeze time.
func (z *Machine) Thaw(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("thaw: %w", err)
	}
	if snap.Release != z.header.Release || snap.Checksum != z.header.Checksum {
		return fmt.Errorf("thaw: snapshot is for release %d/checksum 0x%04x: %w",
			snap.Release, snap.Checksum, ErrSaveMismatch)
	}
	if len(snap.Dynamic) > z.header.StaticBase {
		return fmt.Errorf("thaw: dynamic region of %d bytes: %w", len(snap.Dynamic), ErrCorruptSave)
	}
	if len(snap.Frames) == 0 {
		return fmt.Errorf("thaw: no frames: %w", ErrCorruptSave)
	}

	z.mem.restoreDynamic(snap.Dynamic)
	z.pc = snap.PC
	z.turns = snap.Turns
	z.frames = nil
	for _, f := range snap.Frames {
		z.frames = append(z.frames, &Frame{
			Resume:   f.Resume,
			Store:    f.Store,
			Locals:   append([]uint16(nil), f.Locals...),
			Stack:    append([]uint16(nil), f.Stack...),
			ArgCount: f.ArgCount,
		})
	}

	z.Seed(snap.RNGSeed)
	for i := uint64(0); i < snap.RNGDraws; i++ {
		z.rng.Int63()
	}
	z.rngDraws = snap.RNGDraws
	z.dict = nil
	return nil
}
