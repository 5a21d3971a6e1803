// Package zstring decodes v3 packed text: 5-bit z-characters shifted
// through three alphabets, with abbreviation indirection and 10-bit literal
// escapes.
package zstring

import "zmachine3/zcore"

// Alphabets holds the three 32-entry shift-alphabet tables. Positions 0-5 of
// each table are unused (codes 0-5 are space/abbreviation/shift codes).
type Alphabets struct {
	A0 [32]byte
	A1 [32]byte
	A2 [32]byte
}

// Default is the standard v3 alphabet set. v3 has no mechanism for a
// story file to supply custom alphabets - that's a v5+ feature.
var Default = Alphabets{
	A0: [32]byte{0, 0, 0, 0, 0, 0, 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'},
	A1: [32]byte{0, 0, 0, 0, 0, 0, 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'},
	A2: [32]byte{0, 0, 0, 0, 0, 0, '^', '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'},
}

const (
	shiftNone = 0
	shiftA1   = 1
	shiftA2   = 2
)

// splitZChars slices the packed 16-bit words at addr into a stream of 5-bit
// z-characters, stopping at (and including) the first word with its high
// bit set. Returns the z-characters and the number of bytes consumed.
func splitZChars(core *zcore.Core, addr uint32) ([]uint8, uint32) {
	var zchars []uint8
	bytesRead := uint32(0)
	ptr := addr

	for {
		word := core.ReadWord(ptr)
		ptr += 2
		bytesRead += 2

		zchars = append(zchars, uint8((word>>10)&0b1_1111), uint8((word>>5)&0b1_1111), uint8(word&0b1_1111))

		if word&0x8000 != 0 {
			break
		}
	}

	return zchars, bytesRead
}

// Decode reads a ZString starting at addr and returns the decoded text and
// the number of bytes the packed representation occupied. inAbbreviation
// must be false for top-level calls; Decode sets it when recursing into an
// abbreviation so that an abbreviation referencing another abbreviation is
// safely ignored rather than recursing forever.
func Decode(core *zcore.Core, addr uint32, alphabets *Alphabets, abbreviationBase uint16, inAbbreviation bool) (string, uint32) {
	zchars, bytesRead := splitZChars(core, addr)

	var out []byte
	shift := shiftNone

	for i := 0; i < len(zchars); i++ {
		c := zchars[i]

		switch {
		case c == 0:
			out = append(out, ' ')
			shift = shiftNone

		case c >= 1 && c <= 3:
			if i+1 >= len(zchars) {
				break
			}
			c2 := zchars[i+1]
			i++
			shift = shiftNone
			if inAbbreviation {
				// Abbreviations referencing abbreviations are undefined; ignore.
				continue
			}
			index := 32*(uint16(c)-1) + uint16(c2)
			entryAddr := uint32(abbreviationBase) + 2*uint32(index)
			strAddr := 2 * uint32(core.ReadWord(entryAddr))
			sub, _ := Decode(core, strAddr, alphabets, abbreviationBase, true)
			out = append(out, sub...)

		case c == 4:
			shift = shiftA1

		case c == 5:
			shift = shiftA2

		default: // 6..31
			if shift == shiftA2 && c == 6 {
				if i+2 >= len(zchars) {
					break
				}
				c2, c3 := zchars[i+1], zchars[i+2]
				i += 2
				out = append(out, (c2<<5)|(c3&0b1_1111))
				shift = shiftNone
			} else {
				var table [32]byte
				switch shift {
				case shiftA1:
					table = alphabets.A1
				case shiftA2:
					table = alphabets.A2
				default:
					table = alphabets.A0
				}
				out = append(out, table[c])
				shift = shiftNone
			}
		}
	}

	return string(out), bytesRead
}
