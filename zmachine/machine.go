package zmachine

import (
	"fmt"
	"math/rand"

	"zmachine3/dictionary"
	"zmachine3/ioport"
	"zmachine3/zcore"
	"zmachine3/zstring"
)

// Kind classifies the result of a single Step.
type Kind uint8

const (
	Continue Kind = iota
	GetInput
	CleanExit
	Break
)

// Result is what Step (and Run) report back to the driver.
type Result struct {
	Kind   Kind
	Reason string // only set when Kind == Break
}

func cont() Result { return Result{Kind: Continue} }

func brk(format string, args ...any) Result {
	return Result{Kind: Break, Reason: fmt.Sprintf(format, args...)}
}

// Machine is one loaded, running story file: the memory image, the
// evaluation/call stacks, the dictionary and the single I/O port it talks
// to. It is not safe for concurrent use - the engine is a single
// cooperatively-scheduled actor whose only suspension point is sread.
type Machine struct {
	core       *zcore.Core
	initialRAM []uint8 // snapshot of dynamic memory at load, for `restart`
	dict       *dictionary.Dictionary
	alphabets  *zstring.Alphabets
	port       ioport.Port

	IP    uint32
	Stack []uint16
	calls CallStack

	rng      *rand.Rand
	finished bool
}

// New loads storyFile into a fresh Machine. The byte slice is retained, not
// copied, except for the snapshot kept for restart.
func New(storyFile []uint8, port ioport.Port, seed int64) (*Machine, error) {
	core, err := zcore.Load(storyFile)
	if err != nil {
		return nil, err
	}

	initial := make([]uint8, core.DynamicEnd)
	copy(initial, core.ReadSlice(0, uint32(core.DynamicEnd)))

	m := &Machine{
		core:       core,
		initialRAM: initial,
		alphabets:  &zstring.Default,
		port:       port,
		rng:        rand.New(rand.NewSource(seed)),
	}
	m.dict = dictionary.Parse(core, core.DictionaryBase, m.alphabets, core.AbbreviationBase)
	m.reset()

	return m, nil
}

// reset rewinds ip and the stacks to the story file's starting state,
// without re-parsing the dictionary (the dictionary table lives in static
// memory and restart never touches it).
func (m *Machine) reset() {
	m.IP = uint32(m.core.InitialPC)
	m.Stack = m.Stack[:0]
	m.calls = CallStack{}
	m.calls.push(Frame{RoutineAddr: 0, StackStart: 0, NumLocals: 0})
	m.finished = false
}

// Finished reports whether the machine has reached a terminal state
// (CleanExit or Break).
func (m *Machine) Finished() bool {
	return m.finished
}

// Step decodes and executes exactly one instruction, returning how it
// went. Callers drive the fetch loop by calling Step until the Result's
// Kind is no longer Continue.
func (m *Machine) Step() Result {
	if m.finished {
		return brk("machine has already finished")
	}

	instr := Decode(m.core, m.IP)
	oldIP := m.IP

	result := m.execute(&instr)

	switch result.Kind {
	case Continue:
		if m.IP == oldIP {
			m.IP = instr.End()
		}
	case GetInput:
		// ip stays put; the caller resumes by calling Step again once a
		// line is available on the port.
	default:
		m.finished = true
	}

	return result
}

// Run drives the fetch loop until a terminal state or a suspension, then
// flushes the port so buffered adapters don't lose trailing output.
func (m *Machine) Run() Result {
	for {
		r := m.Step()
		if r.Kind == GetInput {
			m.port.Flush()
			return r
		}
		if r.Kind != Continue {
			if r.Kind == Break {
				m.port.Write(fmt.Sprintf("\n[fatal: %s]\n", r.Reason))
			}
			m.port.Flush()
			return r
		}
	}
}

// --- variable access ---

func (m *Machine) pushStack(v uint16) {
	m.Stack = append(m.Stack, v)
}

func (m *Machine) popStack() uint16 {
	n := len(m.Stack)
	if n == 0 {
		return 0
	}
	v := m.Stack[n-1]
	m.Stack = m.Stack[:n-1]
	return v
}

func (m *Machine) peekStack() uint16 {
	n := len(m.Stack)
	if n == 0 {
		return 0
	}
	return m.Stack[n-1]
}

func (m *Machine) replaceTopStack(v uint16) {
	n := len(m.Stack)
	if n == 0 {
		m.pushStack(v)
		return
	}
	m.Stack[n-1] = v
}

// readVariable reads variable v: 0 is the stack top, 1-15 the current
// frame's locals, 16-255 the globals. indirect selects the "peek, don't
// pop" behavior the seven indirect-reference opcodes need when the target
// happens to be the stack.
func (m *Machine) readVariable(v uint8, indirect bool) uint16 {
	switch {
	case v == 0:
		if indirect {
			return m.peekStack()
		}
		return m.popStack()
	case v < 16:
		frame := m.calls.top()
		return m.Stack[frame.StackStart+int(v-1)]
	default:
		addr := uint32(m.core.GlobalsBase) + uint32(v-16)*2
		return m.core.ReadWord(addr)
	}
}

func (m *Machine) writeVariable(v uint8, value uint16, indirect bool) {
	switch {
	case v == 0:
		if indirect {
			m.replaceTopStack(value)
		} else {
			m.pushStack(value)
		}
	case v < 16:
		frame := m.calls.top()
		m.Stack[frame.StackStart+int(v-1)] = value
	default:
		addr := uint32(m.core.GlobalsBase) + uint32(v-16)*2
		m.core.WriteWord(addr, value)
	}
}

// operandValue evaluates an operand: constants are literal, a Variable
// operand is dereferenced through readVariable (non-indirect - reading a
// variable as an ordinary operand pops the stack if it names variable 0).
func (m *Machine) operandValue(op Operand) uint16 {
	switch op.Type {
	case LargeConstant, SmallConstant:
		return op.Value
	case Variable:
		return m.readVariable(uint8(op.Value), false)
	default:
		return 0
	}
}

// variableNumberOperand evaluates an operand that names a variable rather
// than supplying a value. store, inc, dec, inc_chk, dec_chk, pull and load
// all take a variable *number* as their first operand: a constant operand
// is the number itself, while a Variable-encoded operand is dereferenced
// exactly once and its value used as the number. The single dereference is
// the corrected behavior - a revision that took the encoded byte literally
// wrote through the wrong variable whenever a game used the indirect form.
func (m *Machine) variableNumberOperand(op Operand) uint8 {
	if op.Type == Variable {
		return uint8(m.readVariable(uint8(op.Value), false))
	}
	return uint8(op.Value)
}

// storeResult writes an opcode's computed value into its decoded store
// target, using ordinary (non-indirect) variable-write semantics.
func (m *Machine) storeResult(instr *Instruction, value uint16) {
	if !instr.HasStore {
		return
	}
	m.writeVariable(instr.StoreVar, value, false)
}

// --- call / return ---

// call implements the call convention shared by call (Var 0x00), call_1s
// (Op1 0x08) and call_2s (Op2 0x19): operand 0 is a packed routine
// address, the remaining operands are arguments.
func (m *Machine) call(instr *Instruction) Result {
	packed := m.operandValue(instr.Operands[0])
	routineAddr := uint32(packed) * 2

	if routineAddr == 0 {
		m.storeResult(instr, 0)
		return cont()
	}

	numLocals := m.core.ReadByte(routineAddr)
	argsStart := routineAddr + 1
	stackStart := len(m.Stack)

	for i := 0; i < int(numLocals); i++ {
		var v uint16
		if i+1 < len(instr.Operands) {
			v = m.operandValue(instr.Operands[i+1])
		} else {
			v = m.core.ReadWord(argsStart + uint32(i)*2)
		}
		m.pushStack(v)
	}

	m.calls.push(Frame{
		RoutineAddr: routineAddr,
		StackStart:  stackStart,
		NumLocals:   numLocals,
		HasStore:    instr.HasStore,
		StoreVar:    instr.StoreVar,
		ReturnAddr:  instr.End(),
	})
	m.IP = argsStart + uint32(numLocals)*2
	return cont()
}

// doReturn implements the shared machinery behind ret, rtrue, rfalse,
// ret_popped, print_ret, and a branch landing on the special 0/1 targets.
func (m *Machine) doReturn(value uint16) Result {
	frame, ok := m.calls.pop()
	if !ok {
		return brk("return with no active call frame")
	}
	m.Stack = m.Stack[:frame.StackStart]

	if m.calls.depth() == 0 {
		return brk("returned from the top-level frame")
	}

	if frame.HasStore {
		m.writeVariable(frame.StoreVar, value, false)
	}
	m.IP = frame.ReturnAddr
	return cont()
}

// branch succeeds when the runtime condition matches the descriptor's
// polarity, with the special 0/1 offsets meaning rfalse/rtrue.
func (m *Machine) branch(instr *Instruction, condition bool) Result {
	b := instr.Branch
	if b == nil {
		return cont()
	}
	if condition != b.OnTrue {
		return cont()
	}
	switch b.Offset {
	case 0:
		return m.doReturn(0)
	case 1:
		return m.doReturn(1)
	default:
		m.IP = uint32(int64(instr.End()) + int64(b.Offset) - 2)
		return cont()
	}
}

// jump implements the unconditional relative jump opcode, which reuses the
// branch displacement formula but carries its offset as an ordinary
// operand rather than a decoded Branch descriptor.
func (m *Machine) jump(instr *Instruction, offset int16) {
	m.IP = uint32(int64(instr.End()) + int64(offset) - 2)
}

// random implements the `random` opcode's contract: a positive range
// draws uniformly from [1, range]; zero or negative reseeds
// deterministically and returns 0.
func (m *Machine) random(rangeArg int16) uint16 {
	if rangeArg > 0 {
		return uint16(1 + m.rng.Intn(int(rangeArg)))
	}
	m.rng = rand.New(rand.NewSource(int64(rangeArg)))
	return 0
}

// restart reloads dynamic memory from the snapshot taken at New and
// resets ip and the stacks, implementing the `restart` opcode.
func (m *Machine) restart() {
	for i, b := range m.initialRAM {
		m.core.WriteByte(uint32(i), b)
	}
	m.reset()
}
