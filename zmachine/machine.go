package zmachine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Machine: the Z-machine itself
// ---------------------------------------------------------------------------

// State is the top-level machine state.
type State int

const (
	Loaded State = iota
	Running
	AwaitingInput
	Halted
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Running:
		return "running"
	case AwaitingInput:
		return "awaiting-input"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Machine owns all runtime state of one game: memory, header, call stack,
// PRNG and the host handle. It is single-threaded; nothing here is safe for
// concurrent use.
type Machine struct {
	mem    *Memory
	header *Header
	host   Host

	frames []*Frame
	pc     int
	state  State

	dict *dictionary

	// originalDynamic is the pristine dynamic region of the story file, the
	// reference image for restart and Quetzal CMem compression.
	originalDynamic []byte

	rng      *rand.Rand
	rngSeed  int64
	rngDraws uint64

	// Snapshot rings for the debugger's undo/redo.
	undos [][]byte
	redos [][]byte

	turns int

	log   commonlog.Logger
	trace bool
}

const undoDepth = 32

// Globals of interest to the status line: the player location object and the
// score/turns (or hours/minutes) pair.
const (
	globalLocation = 0
	globalScoreA   = 1
	globalScoreB   = 2
)

// NewMachine loads a v3 story image and prepares the initial frame. The host
// may be nil, in which case a NullHost is used.
func NewMachine(story []byte, host Host) (*Machine, error) {
	if host == nil {
		host = NullHost{}
	}
	mem := NewMemory(story)
	header, err := ParseHeader(mem)
	if err != nil {
		return nil, err
	}

	z := &Machine{
		mem:             mem,
		header:          header,
		host:            host,
		originalDynamic: make([]byte, header.StaticBase),
		state:           Loaded,
		log:             commonlog.GetLogger("grue.machine"),
	}
	copy(z.originalDynamic, story[:header.StaticBase])

	mem.SetStaticBase(header.StaticBase)
	announceCapabilities(mem)
	z.Seed(time.Now().UnixNano())

	z.pc = header.InitialPC
	z.frames = []*Frame{{Resume: 0, Store: NoStore}}

	z.log.Infof("loaded story: version %d, release %d, serial %s, %d bytes",
		header.Version, header.Release, string(header.Serial[:]), mem.Len())
	return z, nil
}

// Header returns the parsed story header.
func (z *Machine) Header() *Header {
	return z.header
}

// State returns the machine's top-level state.
func (z *Machine) State() State {
	return z.state
}

// PC returns the current program counter.
func (z *Machine) PC() int {
	return z.pc
}

// Turns returns the number of input lines the game has consumed.
func (z *Machine) Turns() int {
	return z.turns
}

// SetTrace toggles instruction-level trace logging.
func (z *Machine) SetTrace(on bool) {
	z.trace = on
}

// Seed reseeds the PRNG deterministically.
func (z *Machine) Seed(seed int64) {
	z.rngSeed = seed
	z.rngDraws = 0
	z.rng = rand.New(rand.NewSource(seed))
}

// randInt returns a value in 1..n. Each call consumes exactly one generator
// draw, so snapshots can replay the generator to its position.
func (z *Machine) randInt(n int) uint16 {
	z.rngDraws++
	return uint16(z.rng.Int63()%int64(n)) + 1
}

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

// Run drives the interpreter until the game quits, the host cancels input,
// or a fault occurs. Faults are returned as *Fault; a clean quit returns nil.
func (z *Machine) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			z.state = Halted
			err = &Fault{PC: z.pc, Err: e}
		}
	}()

	z.state = Running
	for z.state == Running {
		z.step()
	}
	return nil
}

// step decodes and executes a single instruction.
func (z *Machine) step() {
	in := z.decodeInstruction(z.pc)
	if z.trace {
		z.log.Debugf("pc=0x%05x opcode=%d operands=%v", in.Addr, in.Opcode, in.Operands)
	}
	z.execute(in)
}

// checksum sums every byte from 0x40 up to the header's file length, mod
// 0x10000, over the story file as loaded: the dynamic region is taken from
// the pristine image, so a running game's writes never disturb verify.
func (z *Machine) checksum() uint16 {
	end := z.header.FileLength
	if end > z.mem.Len() {
		end = z.mem.Len()
	}
	var sum uint16
	for _, b := range z.originalDynamic[headerSize:] {
		sum += uint16(b)
	}
	for _, b := range z.mem.Slice(z.header.StaticBase, end) {
		sum += uint16(b)
	}
	return sum
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (z *Machine) frame() *Frame {
	return z.frames[len(z.frames)-1]
}

func (z *Machine) readGlobal(n int) uint16 {
	if n > 239 {
		failf(ErrOutOfBounds, "global %d", n)
	}
	return z.mem.U16(z.header.GlobalsBase + 2*n)
}

func (z *Machine) writeGlobal(n int, v uint16) {
	if n > 239 {
		failf(ErrOutOfBounds, "global %d", n)
	}
	z.mem.WriteU16(z.header.GlobalsBase+2*n, v)
}

// readVariable reads variable n: 0 pops the evaluation stack, 1..15 are
// locals, 16..255 are globals.
func (z *Machine) readVariable(n int) uint16 {
	switch {
	case n == 0:
		return z.frame().pop()
	case n <= 15:
		return z.frame().local(n)
	default:
		return z.readGlobal(n - 16)
	}
}

// writeVariable writes variable n; 0 pushes onto the evaluation stack.
func (z *Machine) writeVariable(n int, v uint16) {
	switch {
	case n == 0:
		z.frame().push(v)
	case n <= 15:
		z.frame().setLocal(n, v)
	default:
		z.writeGlobal(n-16, v)
	}
}

// readVariableInPlace is the indirect flavor used by load, inc, dec and
// friends: variable 0 peeks at the stack top instead of popping.
func (z *Machine) readVariableInPlace(n int) uint16 {
	if n == 0 {
		return z.frame().peek()
	}
	return z.readVariable(n)
}

// writeVariableInPlace replaces the stack top for variable 0 instead of
// pushing.
func (z *Machine) writeVariableInPlace(n int, v uint16) {
	if n == 0 {
		z.frame().pop()
		z.frame().push(v)
		return
	}
	z.writeVariable(n, v)
}

// ---------------------------------------------------------------------------
// Calls and returns
// ---------------------------------------------------------------------------

// maxFrames bounds call-stack depth; a well-formed v3 story never
// approaches it.
const maxFrames = 1024

// callRoutine implements the call opcode: packed address 0 stores 0 and
// falls through, anything else pushes a frame.
func (z *Machine) callRoutine(in *Instruction, packed uint16, args []uint16) {
	if packed == 0 {
		z.processResult(in, 0)
		return
	}
	if len(z.frames) >= maxFrames {
		fail(ErrStackOverflow)
	}

	r := z.mem.ReaderAt(unpackAddr(packed))
	count := int(r.Byte())
	if count > 15 {
		failf(ErrCorruptStory, "routine at 0x%x declares %d locals", unpackAddr(packed), count)
	}
	defaults := make([]uint16, count)
	for i := range defaults {
		defaults[i] = r.Word()
	}

	z.frames = append(z.frames, NewFrame(in.Next, in.Store, defaults, args))
	z.pc = r.Position()
}

// returnFromRoutine pops the current frame, stores the return value through
// the frame's target, and resumes the caller.
func (z *Machine) returnFromRoutine(value uint16) {
	if len(z.frames) <= 1 {
		fail(ErrStackUnderflow)
	}
	frame := z.frame()
	z.frames = z.frames[:len(z.frames)-1]
	z.pc = frame.Resume
	if frame.Store != NoStore {
		z.writeVariable(frame.Store, value)
	}
}

// unpackAddr converts a packed routine or string address to a byte address
// (v3: multiply by 2).
func unpackAddr(packed uint16) int {
	return 2 * int(packed)
}

// ---------------------------------------------------------------------------
// Branch and store plumbing
// ---------------------------------------------------------------------------

// processBranch resolves a conditional instruction: branch offsets 0 and 1
// return from the current routine instead of jumping.
func (z *Machine) processBranch(in *Instruction, result bool) {
	b := in.Branch
	if b == nil {
		z.pc = in.Next
		return
	}
	if result != b.Condition {
		z.pc = in.Next
		return
	}
	if b.Ret >= 0 {
		z.returnFromRoutine(uint16(b.Ret))
		return
	}
	z.pc = b.Addr
}

// processResult stores an instruction's result and resolves its branch, if
// any, on the truth of the value.
func (z *Machine) processResult(in *Instruction, value uint16) {
	if in.Store != NoStore {
		z.writeVariable(in.Store, value)
	}
	if in.Branch != nil {
		z.processBranch(in, value != 0)
		return
	}
	z.pc = in.Next
}

// ---------------------------------------------------------------------------
// Status line
// ---------------------------------------------------------------------------

// statusLine derives the two halves of the v3 status bar from globals 16-18.
func (z *Machine) statusLine() (left, right string) {
	if loc := int(z.readGlobal(globalLocation)); loc != 0 {
		left = z.ShortName(loc)
	}
	a := int(int16(z.readGlobal(globalScoreA)))
	b := int(int16(z.readGlobal(globalScoreB)))
	if z.header.TimeGame() {
		meridiem := "AM"
		if a >= 12 {
			meridiem = "PM"
		}
		if a > 12 {
			a -= 12
		}
		right = fmt.Sprintf("%02d:%02d %s", a, b, meridiem)
	} else {
		right = fmt.Sprintf("%d/%d", a, b)
	}
	return left, right
}

func (z *Machine) updateStatus() {
	left, right := z.statusLine()
	z.host.ShowStatus(left, right)
}

// ---------------------------------------------------------------------------
// Restart, undo, redo
// ---------------------------------------------------------------------------

// restart reloads dynamic memory from the pristine story image and rebuilds
// the initial frame. Seed and host wiring survive.
func (z *Machine) restart() {
	z.mem.restoreDynamic(z.originalDynamic)
	announceCapabilities(z.mem)
	z.frames = []*Frame{{Resume: 0, Store: NoStore}}
	z.pc = z.header.InitialPC
	z.dict = nil
	z.turns = 0
}

// rememberUndo pushes a snapshot onto the undo ring, discarding the oldest
// and any pending redos.
func (z *Machine) rememberUndo() {
	snap, err := z.Freeze()
	if err != nil {
		z.log.Errorf("undo snapshot failed: %s", err.Error())
		return
	}
	z.undos = append(z.undos, snap)
	if len(z.undos) > undoDepth {
		z.undos = z.undos[1:]
	}
	z.redos = nil
}

// Undo rewinds to the snapshot taken before the most recent input line.
func (z *Machine) Undo() bool {
	if len(z.undos) == 0 {
		return false
	}
	current, err := z.Freeze()
	if err != nil {
		return false
	}
	snap := z.undos[len(z.undos)-1]
	z.undos = z.undos[:len(z.undos)-1]
	if err := z.Thaw(snap); err != nil {
		z.log.Errorf("undo failed: %s", err.Error())
		return false
	}
	z.redos = append(z.redos, current)
	return true
}

// Redo reverses the most recent Undo.
func (z *Machine) Redo() bool {
	if len(z.redos) == 0 {
		return false
	}
	current, err := z.Freeze()
	if err != nil {
		return false
	}
	snap := z.redos[len(z.redos)-1]
	z.redos = z.redos[:len(z.redos)-1]
	if err := z.Thaw(snap); err != nil {
		z.log.Errorf("redo failed: %s", err.Error())
		return false
	}
	z.undos = append(z.undos, current)
	return true
}
