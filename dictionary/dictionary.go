// Package dictionary builds the word list from a story file's dictionary
// table and implements the tokenizer that sread uses to split and resolve
// player input.
package dictionary

import (
	"strings"

	"zmachine3/zcore"
	"zmachine3/zstring"
)

// Entry is one decoded dictionary word and the address sread writes back
// into the parse buffer when a token resolves to it.
type Entry struct {
	Address uint16
	Text    string
}

// Dictionary is the separator set, word list and entry stride parsed once
// from a story file's dictionary table (header offset 0x08).
type Dictionary struct {
	Separators map[byte]bool
	EntryLen   uint8
	Entries    []Entry
}

// Parse reads the dictionary table at baseAddress: a count of separator
// bytes, those bytes, an entry stride, a 16-bit entry count, then that many
// fixed-stride entries. Each entry's first 4 bytes are a packed ZString
// decoded to at most 6 characters.
func Parse(core *zcore.Core, baseAddress uint16, alphabets *zstring.Alphabets, abbreviationBase uint16) *Dictionary {
	ptr := uint32(baseAddress)

	numSeparators := core.ReadByte(ptr)
	separators := make(map[byte]bool, numSeparators)
	for i := uint32(0); i < uint32(numSeparators); i++ {
		separators[core.ReadByte(ptr+1+i)] = true
	}
	ptr += 1 + uint32(numSeparators)

	entryLen := core.ReadByte(ptr)
	count := core.ReadWord(ptr + 1)
	ptr += 3

	entries := make([]Entry, count)
	for i := range entries {
		entryAddr := ptr + uint32(i)*uint32(entryLen)
		text, _ := zstring.Decode(core, entryAddr, alphabets, abbreviationBase, false)
		entries[i] = Entry{
			Address: uint16(entryAddr),
			Text:    text,
		}
	}

	return &Dictionary{
		Separators: separators,
		EntryLen:   entryLen,
		Entries:    entries,
	}
}

// IsSeparator reports whether b is one of the dictionary's declared input
// separator bytes (not counting the ASCII space, which is always a
// delimiter and is handled separately by Tokenize).
func (d *Dictionary) IsSeparator(b byte) bool {
	return d.Separators[b]
}

// Lookup resolves word to a dictionary entry address, or 0 if none match.
// An entry matches if its decoded text (< 6 characters) equals word exactly,
// or (== 6 characters, i.e. truncated at the packed-text limit) is a prefix
// of word. The first matching entry in table order wins.
func (d *Dictionary) Lookup(word string) uint16 {
	for _, e := range d.Entries {
		if len(e.Text) < 6 {
			if e.Text == word {
				return e.Address
			}
		} else if strings.HasPrefix(word, e.Text) {
			return e.Address
		}
	}
	return 0
}

// Token is one word recognized in a line of input by Tokenize.
type Token struct {
	Text       string
	TextOffset uint8 // 1-based byte position of the token within the line
}

// Tokenize splits line on ASCII space and the dictionary's separator bytes.
// Separator characters are discarded between tokens rather than emitted as
// tokens of their own.
func (d *Dictionary) Tokenize(line string) []Token {
	var tokens []Token
	start := -1

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{Text: line[start:end], TextOffset: uint8(start + 1)})
			start = -1
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == ' ' || d.IsSeparator(c) {
			flush(i)
		} else if start < 0 {
			start = i
		}
	}
	flush(len(line))

	return tokens
}
