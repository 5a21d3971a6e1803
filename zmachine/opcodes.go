package zmachine

import (
	"strconv"
	"strings"

	"zmachine3/zobject"
	"zmachine3/zstring"
)

// execute dispatches a decoded instruction to its opcode handler. The
// switch is organized by encoding class and then opcode number, one case
// per opcode this engine executes, commented with its mnemonic. Opcodes
// without a case, including v3's VAR window, stream and sound opcodes
// (0x0A, 0x0B, 0x13-0x15), return an unknown-opcode Break.
func (m *Machine) execute(instr *Instruction) Result {
	switch instr.Class {
	case Op0:
		return m.executeOp0(instr)
	case Op1:
		return m.executeOp1(instr)
	case Op2:
		return m.executeOp2(instr)
	default:
		return m.executeVar(instr)
	}
}

func (m *Machine) executeOp0(instr *Instruction) Result {
	switch instr.Opcode {
	case 0x00: // rtrue
		return m.doReturn(1)
	case 0x01: // rfalse
		return m.doReturn(0)
	case 0x02: // print
		m.port.Write(instr.InlineString)
		return cont()
	case 0x03: // print_ret
		m.port.Write(instr.InlineString)
		m.port.Write("\n")
		return m.doReturn(1)
	case 0x04: // nop
		return cont()
	case 0x05: // save - no persistence layer; a failed save always branches false
		return m.branch(instr, false)
	case 0x06: // restore - nothing to restore from; branch false, as a failed restore would
		return m.branch(instr, false)
	case 0x07: // restart
		m.restart()
		return cont()
	case 0x08: // ret_popped
		return m.doReturn(m.readVariable(0, false))
	case 0x09: // pop
		m.popStack()
		return cont()
	case 0x0A: // quit
		return Result{Kind: CleanExit}
	case 0x0B: // new_line
		m.port.Write("\n")
		return cont()
	case 0x0C: // show_status - no status line in this interface
		return cont()
	case 0x0D: // verify - no checksum facility; interpreters are free to always succeed
		return m.branch(instr, true)
	case 0x0F: // piracy - interpreters are asked to be unconditionally gullible
		return m.branch(instr, true)
	default:
		return brk("unknown 0OP opcode %#x at %#x", instr.Opcode, instr.Offset)
	}
}

func (m *Machine) executeOp1(instr *Instruction) Result {
	a := instr.Operands[0]

	switch instr.Opcode {
	case 0x00: // jz
		return m.branch(instr, m.operandValue(a) == 0)
	case 0x01: // get_sibling
		obj, ok := m.object(m.operandValue(a))
		if !ok {
			return brk("get_sibling on object 0")
		}
		m.storeResult(instr, obj.Sibling)
		return m.branch(instr, obj.Sibling != 0)
	case 0x02: // get_child
		obj, ok := m.object(m.operandValue(a))
		if !ok {
			return brk("get_child on object 0")
		}
		m.storeResult(instr, obj.Child)
		return m.branch(instr, obj.Child != 0)
	case 0x03: // get_parent
		obj, ok := m.object(m.operandValue(a))
		if !ok {
			return brk("get_parent on object 0")
		}
		m.storeResult(instr, obj.Parent)
		return cont()
	case 0x04: // get_prop_len
		m.storeResult(instr, zobject.GetPropertyLength(m.core, uint32(m.operandValue(a))))
		return cont()
	case 0x05: // inc
		v := m.variableNumberOperand(a)
		m.writeVariable(v, m.readVariable(v, true)+1, true)
		return cont()
	case 0x06: // dec
		v := m.variableNumberOperand(a)
		m.writeVariable(v, m.readVariable(v, true)-1, true)
		return cont()
	case 0x07: // print_addr
		text, _ := m.decodeZStringAt(uint32(m.operandValue(a)))
		m.port.Write(text)
		return cont()
	case 0x08: // call_1s
		return m.call(instr)
	case 0x09: // remove_obj
		id := m.operandValue(a)
		if id == 0 {
			return brk("remove_obj on object 0")
		}
		zobject.Remove(m.core, m.core.ObjectTableBase, m.alphabets, m.core.AbbreviationBase, id)
		return cont()
	case 0x0A: // print_obj
		obj, ok := m.object(m.operandValue(a))
		if !ok {
			return brk("print_obj on object 0")
		}
		m.port.Write(obj.Name)
		return cont()
	case 0x0B: // ret
		return m.doReturn(m.operandValue(a))
	case 0x0C: // jump
		m.jump(instr, int16(m.operandValue(a)))
		return cont()
	case 0x0D: // print_paddr
		text, _ := m.decodeZStringAt(2 * uint32(m.operandValue(a)))
		m.port.Write(text)
		return cont()
	case 0x0E: // load
		v := m.variableNumberOperand(a)
		m.storeResult(instr, m.readVariable(v, true))
		return cont()
	case 0x0F: // not
		m.storeResult(instr, ^m.operandValue(a))
		return cont()
	default:
		return brk("unknown 1OP opcode %#x at %#x", instr.Opcode, instr.Offset)
	}
}

func (m *Machine) executeOp2(instr *Instruction) Result {
	ops := instr.Operands

	switch instr.Opcode {
	case 0x01: // je
		a := m.operandValue(ops[0])
		for _, b := range ops[1:] {
			if a == m.operandValue(b) {
				return m.branch(instr, true)
			}
		}
		return m.branch(instr, false)
	case 0x02: // jl
		a, b := int16(m.operandValue(ops[0])), int16(m.operandValue(ops[1]))
		return m.branch(instr, a < b)
	case 0x03: // jg
		a, b := int16(m.operandValue(ops[0])), int16(m.operandValue(ops[1]))
		return m.branch(instr, a > b)
	case 0x04: // dec_chk
		v := m.variableNumberOperand(ops[0])
		newVal := int16(m.readVariable(v, true)) - 1
		m.writeVariable(v, uint16(newVal), true)
		return m.branch(instr, newVal < int16(m.operandValue(ops[1])))
	case 0x05: // inc_chk
		v := m.variableNumberOperand(ops[0])
		newVal := int16(m.readVariable(v, true)) + 1
		m.writeVariable(v, uint16(newVal), true)
		return m.branch(instr, newVal > int16(m.operandValue(ops[1])))
	case 0x06: // jin
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("jin on object 0")
		}
		return m.branch(instr, obj.Parent == m.operandValue(ops[1]))
	case 0x07: // test
		bitmap, flags := m.operandValue(ops[0]), m.operandValue(ops[1])
		return m.branch(instr, bitmap&flags == flags)
	case 0x08: // or
		m.storeResult(instr, m.operandValue(ops[0])|m.operandValue(ops[1]))
		return cont()
	case 0x09: // and
		m.storeResult(instr, m.operandValue(ops[0])&m.operandValue(ops[1]))
		return cont()
	case 0x0A: // test_attr
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("test_attr on object 0")
		}
		attr := m.operandValue(ops[1])
		if err := zobject.ValidateAttribute(attr); err != nil {
			return brk("test_attr: %v", err)
		}
		return m.branch(instr, obj.TestAttribute(attr))
	case 0x0B: // set_attr
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("set_attr on object 0")
		}
		attr := m.operandValue(ops[1])
		if err := zobject.ValidateAttribute(attr); err != nil {
			return brk("set_attr: %v", err)
		}
		obj.SetAttribute(attr)
		return cont()
	case 0x0C: // clear_attr
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("clear_attr on object 0")
		}
		attr := m.operandValue(ops[1])
		if err := zobject.ValidateAttribute(attr); err != nil {
			return brk("clear_attr: %v", err)
		}
		obj.ClearAttribute(attr)
		return cont()
	case 0x0D: // store - operand 0 names the target variable, written with indirect semantics
		v := m.variableNumberOperand(ops[0])
		m.writeVariable(v, m.operandValue(ops[1]), true)
		return cont()
	case 0x0E: // insert_obj
		objID, destID := m.operandValue(ops[0]), m.operandValue(ops[1])
		if objID == 0 || destID == 0 {
			return brk("insert_obj with object 0")
		}
		zobject.Insert(m.core, m.core.ObjectTableBase, m.alphabets, m.core.AbbreviationBase, objID, destID)
		return cont()
	case 0x0F: // loadw
		array, index := uint32(m.operandValue(ops[0])), uint32(m.operandValue(ops[1]))
		m.storeResult(instr, m.core.ReadWord(array+2*index))
		return cont()
	case 0x10: // loadb
		array, index := uint32(m.operandValue(ops[0])), uint32(m.operandValue(ops[1]))
		m.storeResult(instr, uint16(m.core.ReadByte(array+index)))
		return cont()
	case 0x11: // get_prop
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("get_prop on object 0")
		}
		prop := zobject.GetProperty(m.core, m.core.ObjectTableBase, &obj, uint8(m.operandValue(ops[1])))
		switch len(prop.Data) {
		case 1:
			m.storeResult(instr, uint16(prop.Data[0]))
		case 2:
			m.storeResult(instr, uint16(prop.Data[0])<<8|uint16(prop.Data[1]))
		default:
			return brk("get_prop: property %d has invalid length %d", prop.Id, len(prop.Data))
		}
		return cont()
	case 0x12: // get_prop_addr
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("get_prop_addr on object 0")
		}
		m.storeResult(instr, zobject.GetPropertyAddr(m.core, &obj, uint8(m.operandValue(ops[1]))))
		return cont()
	case 0x13: // get_next_prop
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("get_next_prop on object 0")
		}
		next, ok := zobject.GetNextProperty(m.core, m.core.ObjectTableBase, &obj, uint8(m.operandValue(ops[1])))
		if !ok {
			return brk("get_next_prop: object %d has no property %d", obj.Id, uint8(m.operandValue(ops[1])))
		}
		m.storeResult(instr, uint16(next))
		return cont()
	case 0x14: // add
		m.storeResult(instr, m.operandValue(ops[0])+m.operandValue(ops[1]))
		return cont()
	case 0x15: // sub
		m.storeResult(instr, m.operandValue(ops[0])-m.operandValue(ops[1]))
		return cont()
	case 0x16: // mul
		m.storeResult(instr, m.operandValue(ops[0])*m.operandValue(ops[1]))
		return cont()
	case 0x17: // div
		divisor := int16(m.operandValue(ops[1]))
		if divisor == 0 {
			return brk("divide by zero")
		}
		m.storeResult(instr, uint16(int16(m.operandValue(ops[0]))/divisor))
		return cont()
	case 0x18: // mod
		divisor := int16(m.operandValue(ops[1]))
		if divisor == 0 {
			return brk("divide by zero")
		}
		m.storeResult(instr, uint16(int16(m.operandValue(ops[0]))%divisor))
		return cont()
	case 0x19: // call_2s - not a real v3 opcode, but the call convention is version-agnostic here
		return m.call(instr)
	default:
		return brk("unknown 2OP opcode %#x at %#x", instr.Opcode, instr.Offset)
	}
}

func (m *Machine) executeVar(instr *Instruction) Result {
	ops := instr.Operands

	switch instr.Opcode {
	case 0x00: // call
		return m.call(instr)
	case 0x01: // storew
		array, index := uint32(m.operandValue(ops[0])), uint32(m.operandValue(ops[1]))
		m.core.WriteWord(array+2*index, m.operandValue(ops[2]))
		return cont()
	case 0x02: // storeb
		array, index := uint32(m.operandValue(ops[0])), uint32(m.operandValue(ops[1]))
		m.core.WriteByte(array+index, uint8(m.operandValue(ops[2])))
		return cont()
	case 0x03: // put_prop
		obj, ok := m.object(m.operandValue(ops[0]))
		if !ok {
			return brk("put_prop on object 0")
		}
		if err := zobject.SetProperty(m.core, &obj, uint8(m.operandValue(ops[1])), m.operandValue(ops[2])); err != nil {
			return brk("put_prop: %v", err)
		}
		return cont()
	case 0x04: // sread
		return m.sread(instr)
	case 0x05: // print_char
		m.port.Write(string(rune(m.operandValue(ops[0]))))
		return cont()
	case 0x06: // print_num
		m.port.Write(strconv.Itoa(int(int16(m.operandValue(ops[0])))))
		return cont()
	case 0x07: // random
		m.storeResult(instr, m.random(int16(m.operandValue(ops[0]))))
		return cont()
	case 0x08: // push
		m.pushStack(m.operandValue(ops[0]))
		return cont()
	case 0x09: // pull
		v := m.variableNumberOperand(ops[0])
		m.writeVariable(v, m.popStack(), true)
		return cont()
	default:
		return brk("unknown VAR opcode %#x at %#x", instr.Opcode, instr.Offset)
	}
}

// object resolves a raw operand value to an object, rejecting index 0 -
// object 0 means "no object" and is invalid as a target of any object
// opcode.
func (m *Machine) object(id uint16) (zobject.Object, bool) {
	if id == 0 {
		return zobject.Object{}, false
	}
	return zobject.Get(m.core, m.core.ObjectTableBase, m.alphabets, m.core.AbbreviationBase, id), true
}

func (m *Machine) decodeZStringAt(addr uint32) (string, uint32) {
	return zstring.Decode(m.core, addr, m.alphabets, m.core.AbbreviationBase, false)
}

// sread is the line-input opcode: lowercase/trim the pending line, write
// it into the text buffer, tokenize against the dictionary's separator
// set, and record up to max_parse tokens in the parse buffer.
func (m *Machine) sread(instr *Instruction) Result {
	line, ok := m.port.TryReadLine()
	if !ok {
		return Result{Kind: GetInput}
	}
	line = strings.ToLower(strings.TrimSpace(line))

	textAddr := uint32(m.operandValue(instr.Operands[0]))
	maxText := m.core.ReadByte(textAddr)
	n := len(line)
	if n > int(maxText) {
		n = int(maxText)
	}
	for i := 0; i < n; i++ {
		m.core.WriteByte(textAddr+1+uint32(i), line[i])
	}
	m.core.WriteByte(textAddr+1+uint32(n), 0)

	if len(instr.Operands) > 1 {
		parseAddr := uint32(m.operandValue(instr.Operands[1]))
		maxParse := m.core.ReadByte(parseAddr)
		if maxParse == 0 {
			return cont()
		}
		tokens := m.dict.Tokenize(line)
		count := len(tokens)
		if count > int(maxParse) {
			count = int(maxParse)
		}
		m.core.WriteByte(parseAddr+1, uint8(count))
		for i := 0; i < count; i++ {
			tok := tokens[i]
			base := parseAddr + 2 + uint32(i)*4
			m.core.WriteWord(base, m.dict.Lookup(tok.Text))
			m.core.WriteByte(base+2, uint8(len(tok.Text)))
			m.core.WriteByte(base+3, tok.TextOffset)
		}
	}

	return cont()
}
