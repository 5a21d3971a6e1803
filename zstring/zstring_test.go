package zstring_test

import (
	"testing"

	"zmachine3/zcore"
	"zmachine3/zstring"
)

// newTestCore builds a minimal valid v3 header around body, placing body at
// offset 0x40 so real addresses in test cases don't collide with header
// fields. abbreviationBase defaults to 0 (no abbreviations) unless the
// caller overwrites header bytes 0x18-0x19 itself.
func newTestCore(t *testing.T, body []uint8) *zcore.Core {
	t.Helper()

	buf := make([]uint8, 0x40+len(body))
	buf[0x00] = 3 // version
	buf[0x0e] = uint8(len(buf) >> 8)
	buf[0x0f] = uint8(len(buf))
	copy(buf[0x40:], body)

	core, err := zcore.Load(buf)
	if err != nil {
		t.Fatalf("building test core: %v", err)
	}
	return core
}

// packWord packs three 5-bit z-characters into one big-endian 16-bit word,
// optionally setting the terminator (high) bit.
func packWord(a, b, c uint8, terminate bool) packedWord {
	w := (uint16(a&0x1f) << 10) | (uint16(b&0x1f) << 5) | uint16(c&0x1f)
	if terminate {
		w |= 0x8000
	}
	return packedWord{byte(w >> 8), byte(w)}
}

type packedWord [2]byte

func TestDecodeBasicAlphabets(t *testing.T) {
	// "hello" in the default alphabet: h=13 e=10 l=17 l=17 o=20 (A0 index =
	// letter - 'a' + 6). Packed as two words, the second carrying the
	// terminator bit and padded with shift-A2 code 5 (a harmless pad once no
	// characters remain).
	w1 := packWord(13, 10, 17, false)
	w2 := packWord(17, 20, 5, true)

	body := append(append([]uint8{}, w1[:]...), w2[:]...)
	core := newTestCore(t, body)

	got, bytesRead := zstring.Decode(core, 0x40, &zstring.Default, 0, false)
	if got != "hello" {
		t.Fatalf("decode: got %q, want %q", got, "hello")
	}
	if bytesRead != 4 {
		t.Fatalf("bytesRead: got %d, want 4", bytesRead)
	}
}

func TestDecodeShiftToA1AndA2(t *testing.T) {
	// code 4 = shift to A1 for one char ('H' = A1 index 13), then code 5 =
	// shift to A2 for one char ('.' = A2 index 18), then pad/terminate.
	w1 := packWord(4, 13, 5, false)
	w2 := packWord(18, 5, 5, true)

	body := append(append([]uint8{}, w1[:]...), w2[:]...)
	core := newTestCore(t, body)

	got, _ := zstring.Decode(core, 0x40, &zstring.Default, 0, false)
	if got != "H." {
		t.Fatalf("decode: got %q, want %q", got, "H.")
	}
}

func TestDecodeA2LiteralEscape(t *testing.T) {
	// shift to A2 (code 5), then code 6 introduces a 10-bit literal ZSCII
	// character spread across the next two z-chars: top 5 bits then bottom 5
	// bits. We encode 'Z' (0x5A = 0b01011010 -> top5=00010 bottom5=11010).
	w1 := packWord(5, 6, 0b00010, false)
	w2 := packWord(0b11010, 5, 5, true)

	body := append(append([]uint8{}, w1[:]...), w2[:]...)
	core := newTestCore(t, body)

	got, _ := zstring.Decode(core, 0x40, &zstring.Default, 0, false)
	if got != "Z" {
		t.Fatalf("decode: got %q, want %q", got, "Z")
	}
}

func TestDecodeAbbreviation(t *testing.T) {
	// Abbreviation table: 32 entries, each a word-address (addr/2) pointing
	// at a ZString. We only populate entry 0.
	abbrevTable := make([]uint8, 32*2)
	// The abbreviation string "hi" sits right after the table.
	abbrevStrAddr := uint32(0x40 + len(abbrevTable))
	abbrevWordAddr := uint16(abbrevStrAddr / 2)
	abbrevTable[0] = byte(abbrevWordAddr >> 8)
	abbrevTable[1] = byte(abbrevWordAddr)

	// "hi" = A0 indices 13 ('h') and 14 ('i'), padded and terminated.
	hiWord := packWord(13, 14, 5, true)

	// Main string: z-char 1 (abbreviation set 0) followed by index 0, then
	// pad/terminate.
	mainWord := packWord(1, 0, 5, true)

	body := append(append([]uint8{}, abbrevTable...), hiWord[:]...)
	mainAddr := uint32(0x40 + len(body))
	body = append(body, mainWord[:]...)

	core := newTestCore(t, body)

	got, _ := zstring.Decode(core, mainAddr, &zstring.Default, 0x40, false)
	if got != "hi" {
		t.Fatalf("decode: got %q, want %q", got, "hi")
	}
}
