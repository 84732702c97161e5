package zmachine

import (
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Opcode dispatch
// ---------------------------------------------------------------------------

// resolveOperands turns raw operands into argument values, reading variables
// where the operand type says so.
func (z *Machine) resolveOperands(in *Instruction) []uint16 {
	args := make([]uint16, len(in.Operands))
	for i, op := range in.Operands {
		if in.Types[i] == Variable {
			args[i] = z.readVariable(int(op))
		} else {
			args[i] = op
		}
	}
	return args
}

func requireArgs(in *Instruction, args []uint16, n int) {
	if len(args) < n {
		failf(ErrUnsupportedOpcode, "opcode %d at 0x%x has %d operand(s), needs %d",
			in.Opcode, in.Addr, len(args), n)
	}
}

// execute dispatches one decoded instruction. Every handler is responsible
// for leaving the PC on the next instruction to run; most do so through
// processResult / processBranch.
func (z *Machine) execute(in *Instruction) {
	args := z.resolveOperands(in)

	switch in.Opcode {

	// --- Control flow ---

	case opCall:
		requireArgs(in, args, 1)
		z.callRoutine(in, args[0], args[1:])

	case opRet:
		requireArgs(in, args, 1)
		z.returnFromRoutine(args[0])

	case opRTrue:
		z.returnFromRoutine(1)

	case opRFalse:
		z.returnFromRoutine(0)

	case opRetPopped:
		z.returnFromRoutine(z.frame().pop())

	case opJump:
		requireArgs(in, args, 1)
		z.pc = in.Next + int(int16(args[0])) - 2

	case opNop:
		z.pc = in.Next

	case opQuit:
		z.state = Halted

	case opRestart:
		z.restart()

	// --- Branches ---

	case opJE:
		requireArgs(in, args, 2)
		hit := false
		for _, v := range args[1:] {
			if v == args[0] {
				hit = true
				break
			}
		}
		z.processBranch(in, hit)

	case opJZ:
		requireArgs(in, args, 1)
		z.processBranch(in, args[0] == 0)

	case opJL:
		requireArgs(in, args, 2)
		z.processBranch(in, int16(args[0]) < int16(args[1]))

	case opJG:
		requireArgs(in, args, 2)
		z.processBranch(in, int16(args[0]) > int16(args[1]))

	case opJin:
		requireArgs(in, args, 2)
		z.processBranch(in, z.Parent(int(args[0])) == int(args[1]))

	case opTest:
		requireArgs(in, args, 2)
		z.processBranch(in, args[0]&args[1] == args[1])

	// --- Arithmetic (16-bit two's complement, wrapping) ---

	case opAdd:
		requireArgs(in, args, 2)
		z.processResult(in, args[0]+args[1])

	case opSub:
		requireArgs(in, args, 2)
		z.processResult(in, args[0]-args[1])

	case opMul:
		requireArgs(in, args, 2)
		z.processResult(in, args[0]*args[1])

	case opDiv:
		requireArgs(in, args, 2)
		if args[1] == 0 {
			fail(ErrDivZero)
		}
		// Go's integer division truncates toward zero, as required.
		z.processResult(in, uint16(int16(args[0])/int16(args[1])))

	case opMod:
		requireArgs(in, args, 2)
		if args[1] == 0 {
			fail(ErrDivZero)
		}
		z.processResult(in, uint16(int16(args[0])%int16(args[1])))

	case opOr:
		requireArgs(in, args, 2)
		z.processResult(in, args[0]|args[1])

	case opAnd:
		requireArgs(in, args, 2)
		z.processResult(in, args[0]&args[1])

	case opNot:
		requireArgs(in, args, 1)
		z.processResult(in, ^args[0])

	// --- Variables ---

	case opStore:
		requireArgs(in, args, 2)
		z.writeVariableInPlace(int(args[0]), args[1])
		z.pc = in.Next

	case opLoad:
		requireArgs(in, args, 1)
		z.processResult(in, z.readVariableInPlace(int(args[0])))

	case opInc:
		requireArgs(in, args, 1)
		z.writeVariableInPlace(int(args[0]), z.readVariableInPlace(int(args[0]))+1)
		z.pc = in.Next

	case opDec:
		requireArgs(in, args, 1)
		z.writeVariableInPlace(int(args[0]), z.readVariableInPlace(int(args[0]))-1)
		z.pc = in.Next

	case opIncChk:
		requireArgs(in, args, 2)
		v := int16(z.readVariableInPlace(int(args[0]))) + 1
		z.writeVariableInPlace(int(args[0]), uint16(v))
		z.processBranch(in, v > int16(args[1]))

	case opDecChk:
		requireArgs(in, args, 2)
		v := int16(z.readVariableInPlace(int(args[0]))) - 1
		z.writeVariableInPlace(int(args[0]), uint16(v))
		z.processBranch(in, v < int16(args[1]))

	case opPush:
		requireArgs(in, args, 1)
		z.frame().push(args[0])
		z.pc = in.Next

	case opPull:
		requireArgs(in, args, 1)
		z.writeVariableInPlace(int(args[0]), z.frame().pop())
		z.pc = in.Next

	case opPop:
		z.frame().pop()
		z.pc = in.Next

	// --- Memory ---

	case opLoadW:
		requireArgs(in, args, 2)
		z.processResult(in, z.mem.U16(int(args[0])+2*int(int16(args[1]))))

	case opLoadB:
		requireArgs(in, args, 2)
		z.processResult(in, uint16(z.mem.U8(int(args[0])+int(int16(args[1])))))

	case opStoreW:
		requireArgs(in, args, 3)
		z.mem.WriteU16(int(args[0])+2*int(int16(args[1])), args[2])
		z.pc = in.Next

	case opStoreB:
		requireArgs(in, args, 3)
		z.mem.WriteU8(int(args[0])+int(int16(args[1])), byte(args[2]))
		z.pc = in.Next

	// --- Objects ---

	case opGetParent:
		requireArgs(in, args, 1)
		z.processResult(in, uint16(z.Parent(int(args[0]))))

	case opGetSibling:
		requireArgs(in, args, 1)
		z.processResult(in, uint16(z.Sibling(int(args[0]))))

	case opGetChild:
		requireArgs(in, args, 1)
		z.processResult(in, uint16(z.Child(int(args[0]))))

	case opInsertObj:
		requireArgs(in, args, 2)
		z.InsertObj(int(args[0]), int(args[1]))
		z.pc = in.Next

	case opRemoveObj:
		requireArgs(in, args, 1)
		z.RemoveObj(int(args[0]))
		z.pc = in.Next

	case opTestAttr:
		requireArgs(in, args, 2)
		z.processBranch(in, z.Attr(int(args[0]), int(args[1])))

	case opSetAttr:
		requireArgs(in, args, 2)
		z.SetAttr(int(args[0]), int(args[1]))
		z.pc = in.Next

	case opClearAttr:
		requireArgs(in, args, 2)
		z.ClearAttr(int(args[0]), int(args[1]))
		z.pc = in.Next

	case opGetProp:
		requireArgs(in, args, 2)
		z.processResult(in, z.Prop(int(args[0]), int(args[1])))

	case opGetPropAddr:
		requireArgs(in, args, 2)
		z.processResult(in, uint16(z.PropAddr(int(args[0]), int(args[1]))))

	case opGetPropLen:
		requireArgs(in, args, 1)
		z.processResult(in, uint16(z.PropLen(int(args[0]))))

	case opGetNextProp:
		requireArgs(in, args, 2)
		z.processResult(in, uint16(z.NextProp(int(args[0]), int(args[1]))))

	case opPutProp:
		requireArgs(in, args, 3)
		z.PutProp(int(args[0]), int(args[1]), args[2])
		z.pc = in.Next

	// --- Output ---

	case opPrint:
		z.host.WriteText(in.Text)
		z.pc = in.Next

	case opPrintRet:
		z.host.WriteText(in.Text + "\n")
		z.returnFromRoutine(1)

	case opNewLine:
		z.host.WriteText("\n")
		z.pc = in.Next

	case opPrintChar:
		requireArgs(in, args, 1)
		if r := zsciiRune(args[0]); r != 0 {
			z.host.WriteChar(r)
		}
		z.pc = in.Next

	case opPrintNum:
		requireArgs(in, args, 1)
		z.host.WriteText(strconv.Itoa(int(int16(args[0]))))
		z.pc = in.Next

	case opPrintObj:
		requireArgs(in, args, 1)
		obj := int(args[0])
		isLocation := obj != 0 && obj == int(z.readGlobal(globalLocation))
		z.host.WriteObjectName(z.ShortName(obj), isLocation)
		z.pc = in.Next

	case opPrintAddr:
		requireArgs(in, args, 1)
		text, _ := decodeZString(z.mem, z.header.AbbreviationsBase, int(args[0]), true)
		z.host.WriteText(text)
		z.pc = in.Next

	case opPrintPAddr:
		requireArgs(in, args, 1)
		text, _ := decodeZString(z.mem, z.header.AbbreviationsBase, unpackAddr(args[0]), true)
		z.host.WriteText(text)
		z.pc = in.Next

	case opShowStatus:
		z.updateStatus()
		z.pc = in.Next

	// --- Input ---

	case opSRead:
		requireArgs(in, args, 2)
		z.opSRead(in, int(args[0]), int(args[1]))

	// --- Misc ---

	case opRandom:
		requireArgs(in, args, 1)
		z.opRandom(in, int16(args[0]))

	case opVerify:
		z.processBranch(in, z.checksum() == z.header.Checksum)

	case opPiracy:
		z.processBranch(in, true)

	case opSave:
		z.opSave(in)

	case opRestore:
		z.opRestore(in)

	case opSplitWindow:
		requireArgs(in, args, 1)
		z.host.SplitWindow(int(args[0]))
		z.pc = in.Next

	case opSetWindow:
		requireArgs(in, args, 1)
		z.host.SetWindow(int(args[0]))
		z.pc = in.Next

	case opOutputStream, opInputStream:
		// Transcript and command streams are not wired to this host.
		z.log.Debugf("stream selection opcode %d ignored", in.Opcode)
		z.pc = in.Next

	case opSoundEffect:
		z.pc = in.Next

	default:
		failf(ErrUnsupportedOpcode, "opcode %d at 0x%x", in.Opcode, in.Addr)
	}
}

// ---------------------------------------------------------------------------
// The larger handlers
// ---------------------------------------------------------------------------

// opSRead is the only blocking operation: refresh the status line, read a
// line from the host, write it to the text buffer lowercased and
// null-terminated, then tokenize into the parse buffer. A canceled read
// quits cleanly.
func (z *Machine) opSRead(in *Instruction, textAddr, parseAddr int) {
	z.updateStatus()

	max := int(z.mem.U8(textAddr))
	z.state = AwaitingInput
	line, ok := z.host.ReadLine(max)
	if !ok {
		z.state = Halted
		return
	}
	z.state = Running

	z.rememberUndo()
	z.turns++

	line = strings.ToLower(line)
	if len(line) > max {
		line = line[:max]
	}
	w := z.mem.WriterAt(textAddr + 1)
	for i := 0; i < len(line); i++ {
		w.Byte(line[i])
	}
	w.Byte(0)

	z.Tokenize(textAddr, parseAddr)
	z.pc = in.Next
}

// opRandom: a positive range draws 1..range; zero reseeds unpredictably;
// a negative range seeds deterministically with its magnitude. Reseeding
// stores 0.
func (z *Machine) opRandom(in *Instruction, rng int16) {
	if rng > 0 {
		z.processResult(in, z.randInt(int(rng)))
		return
	}
	if rng == 0 {
		z.Seed(time.Now().UnixNano())
	} else {
		z.Seed(int64(-rng))
	}
	z.processResult(in, 0)
}

// opSave builds a Quetzal file whose saved PC resumes on the branch-taken
// path, so a later restore behaves as a successful save. The current session
// then branches on whether the host accepted the blob.
func (z *Machine) opSave(in *Instruction) {
	resume := z.branchTakenPC(in)
	data := z.MakeQuetzal(resume)
	z.processBranch(in, z.host.Save(data))
}

// opRestore hands control to the restored state on success; on failure the
// branch is not taken.
func (z *Machine) opRestore(in *Instruction) {
	data := z.host.Restore()
	if data == nil {
		z.processBranch(in, false)
		return
	}
	if err := z.RestoreQuetzal(data); err != nil {
		z.log.Errorf("restore rejected: %s", err.Error())
		z.processBranch(in, false)
		return
	}
	// PC now comes from the save file; nothing further to do.
}

// branchTakenPC computes where the instruction resumes when its branch is
// taken, without taking it.
func (z *Machine) branchTakenPC(in *Instruction) int {
	if in.Branch == nil || in.Branch.Ret >= 0 {
		return in.Next
	}
	return in.Branch.Addr
}
