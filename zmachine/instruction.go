package zmachine

// ---------------------------------------------------------------------------
// Instruction decoding
// ---------------------------------------------------------------------------

// OperandType is the 2-bit operand type field.
type OperandType byte

const (
	LargeConstant OperandType = 0b00
	SmallConstant OperandType = 0b01
	Variable      OperandType = 0b10
	Omitted       OperandType = 0b11
)

// OpForm is the instruction encoding form, selected by the top bits of the
// opcode byte.
type OpForm byte

const (
	FormLong OpForm = iota
	FormShort
	FormVar
)

// Op is a canonical opcode number: 2OP opcodes keep their number 1..31, 1OP
// opcodes are 128+n, 0OP are 176+n, VAR are 224+n.
type Op uint16

const (
	opJE          Op = 1
	opJL          Op = 2
	opJG          Op = 3
	opDecChk      Op = 4
	opIncChk      Op = 5
	opJin         Op = 6
	opTest        Op = 7
	opOr          Op = 8
	opAnd         Op = 9
	opTestAttr    Op = 10
	opSetAttr     Op = 11
	opClearAttr   Op = 12
	opStore       Op = 13
	opInsertObj   Op = 14
	opLoadW       Op = 15
	opLoadB       Op = 16
	opGetProp     Op = 17
	opGetPropAddr Op = 18
	opGetNextProp Op = 19
	opAdd         Op = 20
	opSub         Op = 21
	opMul         Op = 22
	opDiv         Op = 23
	opMod         Op = 24

	opJZ         Op = 128
	opGetSibling Op = 129
	opGetChild   Op = 130
	opGetParent  Op = 131
	opGetPropLen Op = 132
	opInc        Op = 133
	opDec        Op = 134
	opPrintAddr  Op = 135
	opRemoveObj  Op = 137
	opPrintObj   Op = 138
	opRet        Op = 139
	opJump       Op = 140
	opPrintPAddr Op = 141
	opLoad       Op = 142
	opNot        Op = 143

	opRTrue      Op = 176
	opRFalse     Op = 177
	opPrint      Op = 178
	opPrintRet   Op = 179
	opNop        Op = 180
	opSave       Op = 181
	opRestore    Op = 182
	opRestart    Op = 183
	opRetPopped  Op = 184
	opPop        Op = 185
	opQuit       Op = 186
	opNewLine    Op = 187
	opShowStatus Op = 188
	opVerify     Op = 189
	opPiracy     Op = 191

	opCall         Op = 224
	opStoreW       Op = 225
	opStoreB       Op = 226
	opPutProp      Op = 227
	opSRead        Op = 228
	opPrintChar    Op = 229
	opPrintNum     Op = 230
	opRandom       Op = 231
	opPush         Op = 232
	opPull         Op = 233
	opSplitWindow  Op = 234
	opSetWindow    Op = 235
	opOutputStream Op = 243
	opInputStream  Op = 244
	opSoundEffect  Op = 245
)

// Branch is the decoded branch data of a conditional instruction. When Ret
// is 0 or 1 the branch returns that value instead of jumping; otherwise Addr
// is the jump target.
type Branch struct {
	Condition bool // branch when the test result equals this
	Addr      int
	Ret       int // 0 or 1, or -1 for an address branch
}

// Instruction is one decoded instruction.
type Instruction struct {
	Addr     int
	Opcode   Op
	Form     OpForm
	Types    []OperandType
	Operands []uint16 // raw operand values; Variable operands hold the variable number
	Store    int      // destination variable, or NoStore
	Branch   *Branch
	Text     string // inline string of print / print_ret
	Next     int    // address of the following instruction
}

// storesResult reports whether the opcode consumes a trailing store byte.
func storesResult(op Op) bool {
	switch op {
	case opOr, opAnd, opLoadW, opLoadB,
		opGetProp, opGetPropAddr, opGetNextProp,
		opAdd, opSub, opMul, opDiv, opMod,
		opGetSibling, opGetChild, opGetParent, opGetPropLen,
		opLoad, opNot,
		opCall, opRandom:
		return true
	}
	return false
}

// branches reports whether the opcode consumes branch data. In v3, save and
// restore branch rather than store.
func branches(op Op) bool {
	switch op {
	case opJE, opJL, opJG, opDecChk, opIncChk, opJin, opTest, opTestAttr,
		opJZ, opGetSibling, opGetChild,
		opSave, opRestore, opVerify, opPiracy:
		return true
	}
	return false
}

// hasText reports whether the opcode is followed by an inline packed string.
func hasText(op Op) bool {
	return op == opPrint || op == opPrintRet
}

// operandTypesFromByte expands a packed operand-type byte, stopping at the
// first omitted field.
func operandTypesFromByte(b byte) []OperandType {
	types := make([]OperandType, 0, 4)
	for i := 0; i < 4; i++ {
		t := OperandType((b >> (2 * (3 - i))) & 0b11)
		if t == Omitted {
			break
		}
		types = append(types, t)
	}
	return types
}

// decodeInstruction decodes the instruction at addr. The EXT form (0xBE)
// does not exist before v5 and faults.
func (z *Machine) decodeInstruction(addr int) *Instruction {
	raw := z.mem.U8(addr)
	in := &Instruction{Addr: addr, Store: NoStore}
	r := z.mem.ReaderAt(addr + 1)

	switch {
	case raw == 0xBE:
		failf(ErrUnsupportedOpcode, "extended form at 0x%x", addr)

	case raw&0xC0 == 0xC0: // VAR form
		in.Form = FormVar
		if raw&0x20 != 0 {
			in.Opcode = Op(raw&0x1F) + 224
		} else {
			in.Opcode = Op(raw & 0x1F) // 2OP encoded with VAR operands
		}
		in.Types = operandTypesFromByte(r.Byte())

	case raw&0xC0 == 0x80: // SHORT form
		in.Form = FormShort
		t := OperandType((raw >> 4) & 0b11)
		if t == Omitted {
			in.Opcode = Op(raw&0x0F) + 176
		} else {
			in.Opcode = Op(raw&0x0F) + 128
			in.Types = []OperandType{t}
		}

	default: // LONG form, always 2OP
		in.Form = FormLong
		in.Opcode = Op(raw & 0x1F)
		in.Types = make([]OperandType, 2)
		for i, bit := range []byte{0x40, 0x20} {
			if raw&bit != 0 {
				in.Types[i] = Variable
			} else {
				in.Types[i] = SmallConstant
			}
		}
	}

	in.Operands = make([]uint16, len(in.Types))
	for i, t := range in.Types {
		if t == LargeConstant {
			in.Operands[i] = r.Word()
		} else {
			in.Operands[i] = uint16(r.Byte())
		}
	}

	if storesResult(in.Opcode) {
		in.Store = int(r.Byte())
	}

	if branches(in.Opcode) {
		b := r.Byte()
		branch := &Branch{Condition: b&0x80 != 0, Ret: -1}
		var offset int
		if b&0x40 != 0 {
			offset = int(b & 0x3F)
		} else {
			// 14-bit signed offset over two bytes.
			offset = int(b&0x3F)<<8 | int(r.Byte())
			if offset >= 0x2000 {
				offset -= 0x4000
			}
		}
		switch offset {
		case 0, 1:
			branch.Ret = offset
		default:
			branch.Addr = r.Position() + offset - 2
		}
		in.Branch = branch
	}

	if hasText(in.Opcode) {
		text, n := decodeZString(z.mem, z.header.AbbreviationsBase, r.Position(), true)
		in.Text = text
		r.Seek(r.Position() + n)
	}

	in.Next = r.Position()
	return in
}
