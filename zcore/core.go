// Package zcore owns the flat byte image of a v3 story file: the header
// view and the big-endian 8/16-bit accessors every other component reads
// and writes through.
package zcore

import (
	"encoding/binary"
	"fmt"
)

// Header offsets, v3 story file (ZMachine Standards Document §11).
const (
	offsetVersion      = 0x00
	offsetHighStart    = 0x04
	offsetInitialPC    = 0x06
	offsetDictionary   = 0x08
	offsetObjectTable  = 0x0a
	offsetGlobals      = 0x0c
	offsetDynamicEnd   = 0x0e
	offsetAbbreviation = 0x18
	offsetChecksum     = 0x1c
)

// Core is the flat memory image of a loaded story file plus the handful of
// header fields every component needs to find its own tables.
type Core struct {
	bytes []uint8

	Version          uint8
	HighStart        uint16
	InitialPC        uint16
	DictionaryBase   uint16
	ObjectTableBase  uint16
	GlobalsBase      uint16
	DynamicEnd       uint16
	AbbreviationBase uint16
	Checksum         uint16

	StaticEnd uint16
}

// Load wraps a story-file byte buffer in a Core, reading the header fields
// that the rest of the interpreter needs. It does not copy the buffer.
func Load(storyFile []uint8) (*Core, error) {
	if len(storyFile) < 0x40 {
		return nil, fmt.Errorf("zcore: story file too short to contain a header (%d bytes)", len(storyFile))
	}

	version := storyFile[offsetVersion]
	if version != 3 {
		return nil, fmt.Errorf("zcore: unsupported story file version %d, only v3 is supported", version)
	}

	dynamicEnd := binary.BigEndian.Uint16(storyFile[offsetDynamicEnd : offsetDynamicEnd+2])
	staticEnd := uint16(len(storyFile))
	if len(storyFile) > 0xffff {
		staticEnd = 0xffff
	}

	return &Core{
		bytes:            storyFile,
		Version:          version,
		HighStart:        binary.BigEndian.Uint16(storyFile[offsetHighStart : offsetHighStart+2]),
		InitialPC:        binary.BigEndian.Uint16(storyFile[offsetInitialPC : offsetInitialPC+2]),
		DictionaryBase:   binary.BigEndian.Uint16(storyFile[offsetDictionary : offsetDictionary+2]),
		ObjectTableBase:  binary.BigEndian.Uint16(storyFile[offsetObjectTable : offsetObjectTable+2]),
		GlobalsBase:      binary.BigEndian.Uint16(storyFile[offsetGlobals : offsetGlobals+2]),
		DynamicEnd:       dynamicEnd,
		AbbreviationBase: binary.BigEndian.Uint16(storyFile[offsetAbbreviation : offsetAbbreviation+2]),
		Checksum:         binary.BigEndian.Uint16(storyFile[offsetChecksum : offsetChecksum+2]),
		StaticEnd:        staticEnd,
	}, nil
}

// Len is the total length of the story file in bytes.
func (c *Core) Len() uint32 {
	return uint32(len(c.bytes))
}

func (c *Core) ReadByte(addr uint32) uint8 {
	return c.bytes[addr]
}

func (c *Core) ReadWord(addr uint32) uint16 {
	return binary.BigEndian.Uint16(c.bytes[addr : addr+2])
}

// ReadSlice returns the raw bytes in [start, end) without copying.
func (c *Core) ReadSlice(start, end uint32) []uint8 {
	return c.bytes[start:end]
}

// WriteByte writes a single byte. The boundary is not enforced here, but
// no opcode implementation may call this with an address >= DynamicEnd.
func (c *Core) WriteByte(addr uint32, v uint8) {
	c.bytes[addr] = v
}

func (c *Core) WriteWord(addr uint32, v uint16) {
	binary.BigEndian.PutUint16(c.bytes[addr:addr+2], v)
}
