// Package zmachine is the fetch-decode-execute engine: the instruction
// decoder, call/return machinery, branch evaluation and per-opcode
// semantics that drive a v3 story file.
package zmachine

import (
	"fmt"

	"zmachine3/zcore"
	"zmachine3/zstring"
)

// OperandType tags how an Operand's raw value should be interpreted.
type OperandType uint8

const (
	LargeConstant OperandType = iota
	SmallConstant
	Variable
	Omitted
)

// Operand is a decoded instruction argument. Value is the constant itself
// for LargeConstant/SmallConstant, or the variable number for Variable.
type Operand struct {
	Type  OperandType
	Value uint16
}

// OperandCount is the instruction's encoding class.
type OperandCount uint8

const (
	Op0 OperandCount = iota
	Op1
	Op2
	Var
)

// Branch is the 1- or 2-byte trailer attached to a branching instruction.
type Branch struct {
	OnTrue bool  // polarity: branch when the runtime condition equals this
	Offset int32 // signed displacement; 0 and 1 are the special rfalse/rtrue targets
}

// Instruction is the fully materialized record the decoder produces: every
// byte the instruction occupies has been accounted for in Length.
type Instruction struct {
	Offset   uint32
	Opcode   uint8
	Class    OperandCount
	Length   uint32
	Operands []Operand

	HasStore bool
	StoreVar uint8

	Branch *Branch

	HasInlineString bool
	InlineString    string
}

// End is the address immediately after the instruction - where execution
// resumes when no branch or call redirects ip.
func (i *Instruction) End() uint32 {
	return i.Offset + i.Length
}

// storesResult reports whether opcode (within class) appends a
// return-variable byte.
func storesResult(class OperandCount, opcode uint8) bool {
	switch class {
	case Op2:
		return opcode == 0x08 || opcode == 0x09 || (opcode >= 0x0F && opcode <= 0x19)
	case Op1:
		return (opcode >= 0x01 && opcode <= 0x04) || opcode == 0x08 || opcode == 0x0E || opcode == 0x0F
	case Var:
		return opcode == 0x00 || opcode == 0x07
	default:
		return false
	}
}

// branches reports whether opcode (within class) has a branch descriptor.
func branches(class OperandCount, opcode uint8) bool {
	switch class {
	case Op2:
		return (opcode >= 0x01 && opcode <= 0x07) || opcode == 0x0A
	case Op1:
		return opcode <= 0x02
	case Op0:
		return opcode == 0x05 || opcode == 0x06 || opcode == 0x0D || opcode == 0x0F
	default:
		return false
	}
}

// Decode materializes the instruction at offset. It never returns an error -
// every bit pattern the form-selection rules accept decodes to something;
// unrecognized opcode numbers are still decoded correctly (the operand/
// store/branch shape depends only on class and opcode number) and are
// rejected later, at execution time, as an unknown opcode.
func Decode(core *zcore.Core, offset uint32) Instruction {
	pos := offset
	b0 := core.ReadByte(pos)
	pos++

	instr := Instruction{Offset: offset}

	switch b0 >> 6 {
	case 0b11: // Variable form
		instr.Opcode = b0 & 0x1F
		if b0&0x20 != 0 {
			instr.Class = Var
		} else {
			instr.Class = Op2
		}
		typeByte := core.ReadByte(pos)
		pos++
		for i := 0; i < 4; i++ {
			t := OperandType((typeByte >> uint(6-2*i)) & 0b11)
			if t == Omitted {
				break
			}
			switch t {
			case LargeConstant:
				instr.Operands = append(instr.Operands, Operand{Type: t, Value: core.ReadWord(pos)})
				pos += 2
			default: // SmallConstant, Variable - both a single byte
				instr.Operands = append(instr.Operands, Operand{Type: t, Value: uint16(core.ReadByte(pos))})
				pos++
			}
		}

	case 0b10: // Short form
		instr.Opcode = b0 & 0x0F
		t := OperandType((b0 >> 4) & 0b11)
		if t == Omitted {
			instr.Class = Op0
		} else {
			instr.Class = Op1
			switch t {
			case LargeConstant:
				instr.Operands = append(instr.Operands, Operand{Type: t, Value: core.ReadWord(pos)})
				pos += 2
			default:
				instr.Operands = append(instr.Operands, Operand{Type: t, Value: uint16(core.ReadByte(pos))})
				pos++
			}
		}

	default: // Long form (00 or 01): always two operands, always Op2
		instr.Class = Op2
		instr.Opcode = b0 & 0x1F

		op1Type := SmallConstant
		if b0&0x40 != 0 {
			op1Type = Variable
		}
		op2Type := SmallConstant
		if b0&0x20 != 0 {
			op2Type = Variable
		}
		instr.Operands = append(instr.Operands,
			Operand{Type: op1Type, Value: uint16(core.ReadByte(pos))},
			Operand{Type: op2Type, Value: uint16(core.ReadByte(pos + 1))})
		pos += 2
	}

	if storesResult(instr.Class, instr.Opcode) {
		instr.HasStore = true
		instr.StoreVar = core.ReadByte(pos)
		pos++
	}

	if branches(instr.Class, instr.Opcode) {
		b1 := core.ReadByte(pos)
		pos++
		onTrue := b1&0x80 != 0
		var off int32
		if b1&0x40 != 0 {
			off = int32(b1 & 0x3F)
		} else {
			b2 := core.ReadByte(pos)
			pos++
			raw := (uint16(b1&0x3F) << 8) | uint16(b2)
			off = int32(raw)
			if raw > 0x1FFF {
				off = int32(raw) - 0x4000
			}
		}
		instr.Branch = &Branch{OnTrue: onTrue, Offset: off}
	}

	if instr.Class == Op0 && (instr.Opcode == 0x02 || instr.Opcode == 0x03) {
		text, n := zstring.Decode(core, pos, &zstring.Default, core.AbbreviationBase, false)
		instr.HasInlineString = true
		instr.InlineString = text
		pos += n
	}

	instr.Length = pos - offset
	return instr
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%04x: opcode=%#x class=%d len=%d operands=%v", i.Offset, i.Opcode, i.Class, i.Length, i.Operands)
}
