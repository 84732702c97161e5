package zmachine

import (
	"strings"
)

// ---------------------------------------------------------------------------
// ZSCII Codec
// ---------------------------------------------------------------------------

// The three v3 alphabet tables. Entries map Z-characters 6..31. In A2,
// position 6 (the first entry) starts a 10-bit literal and position 7 is a
// newline; both are handled before the table is consulted, so their slots
// here are placeholders.
const (
	alphabet0 = "abcdefghijklmnopqrstuvwxyz"
	alphabet1 = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphabet2 = " \n0123456789.,!?_#'\"/\\-:()"
)

// extraRunes maps ZSCII codes 155..223 to Unicode, per the standard's default
// table.
var extraRunes = [69]rune{
	'ä', 'ö', 'ü', 'Ä', 'Ö', 'Ü', 'ß', '»', '«',
	'ë', 'ï', 'ÿ', 'Ë', 'Ï', 'á', 'é', 'í', 'ó',
	'ú', 'ý', 'Á', 'É', 'Í', 'Ó', 'Ú', 'Ý', 'à',
	'è', 'ì', 'ò', 'ù', 'À', 'È', 'Ì', 'Ò', 'Ù',
	'â', 'ê', 'î', 'ô', 'û', 'Â', 'Ê', 'Î', 'Ô',
	'Û', 'å', 'Å', 'ø', 'Ø', 'ã', 'ñ', 'õ', 'Ã',
	'Ñ', 'Õ', 'æ', 'Æ', 'ç', 'Ç', 'þ', 'ð', 'Þ',
	'Ð', '£', 'œ', 'Œ', '¡', '¿',
}

// zsciiRune maps one ZSCII code to a printable rune, or 0 when the code has
// no printable mapping.
func zsciiRune(code uint16) rune {
	switch {
	case code == 13 || code == 10:
		return '\n'
	case code >= 32 && code <= 126:
		return rune(code)
	case code >= 155 && code <= 223:
		return extraRunes[code-155]
	}
	return 0
}

// readZChars collects the 5-bit Z-characters of the packed string starting at
// addr, stopping after the first word with the end bit set. Returns the
// characters and the number of bytes consumed.
func readZChars(m *Memory, addr int) ([]byte, int) {
	chars := make([]byte, 0, 12)
	n := 0
	for {
		word := m.U16(addr + n)
		n += 2
		chars = append(chars,
			byte(word>>10)&0x1F,
			byte(word>>5)&0x1F,
			byte(word)&0x1F)
		if word&0x8000 != 0 {
			return chars, n
		}
	}
}

// decodeZString decodes the packed string at addr. When expand is false,
// abbreviation references are consumed but not spliced; abbreviations
// themselves are decoded this way, since they never nest.
func decodeZString(m *Memory, abbrevBase int, addr int, expand bool) (string, int) {
	chars, n := readZChars(m, addr)

	var sb strings.Builder
	shift := -1 // pending one-character alphabet shift, -1 = none
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		alphabet := 0
		if shift >= 0 {
			alphabet = shift
		}
		shift = -1

		switch {
		case c == 0:
			sb.WriteByte(' ')

		case c >= 1 && c <= 3:
			// Next Z-character selects the abbreviation.
			if i+1 >= len(chars) {
				break
			}
			i++
			if !expand {
				break
			}
			entry := abbrevBase + 2*(32*(int(c)-1)+int(chars[i]))
			wordAddr := int(m.U16(entry)) * 2
			text, _ := decodeZString(m, abbrevBase, wordAddr, false)
			sb.WriteString(text)

		case c == 4:
			shift = 1
		case c == 5:
			shift = 2

		case c == 6 && alphabet == 2:
			// 10-bit literal: the next two Z-characters form (hi<<5)|lo.
			if i+2 >= len(chars) {
				i = len(chars)
				break
			}
			code := uint16(chars[i+1])<<5 | uint16(chars[i+2])
			i += 2
			if r := zsciiRune(code); r != 0 {
				sb.WriteRune(r)
			}

		case c == 7 && alphabet == 2:
			sb.WriteByte('\n')

		default:
			switch alphabet {
			case 0:
				sb.WriteByte(alphabet0[c-6])
			case 1:
				sb.WriteByte(alphabet1[c-6])
			default:
				sb.WriteByte(alphabet2[c-6])
			}
		}
	}
	return sb.String(), n
}

// zstringLength returns the byte length of the packed string at addr without
// decoding it.
func zstringLength(m *Memory, addr int) int {
	n := 0
	for m.U16(addr+n)&0x8000 == 0 {
		n += 2
	}
	return n + 2
}

// encodeDictionaryKey encodes a word into the 4-byte v3 dictionary key:
// exactly 6 Z-characters in two words, padded with Z-character 5, end bit on
// the final word. Characters outside A0 go through an explicit A2 shift or
// the 10-bit escape, then the sequence is truncated to 6.
func encodeDictionaryKey(word string) [4]byte {
	const keyChars = 6

	zchars := make([]byte, 0, keyChars+3)
	for _, r := range strings.ToLower(word) {
		if len(zchars) >= keyChars {
			break
		}
		if i := strings.IndexRune(alphabet0, r); i >= 0 {
			zchars = append(zchars, byte(6+i))
			continue
		}
		if r == '\n' {
			zchars = append(zchars, 5, 7)
			continue
		}
		if i := strings.IndexRune(alphabet2[2:], r); i >= 0 {
			zchars = append(zchars, 5, byte(6+2+i))
			continue
		}
		// 10-bit escape. Only 8 bits are ever meaningful in ZSCII.
		code := byte(r)
		if r > 0xFF {
			code = '?'
		}
		zchars = append(zchars, 5, 6, code>>5, code&0x1F)
	}

	if len(zchars) > keyChars {
		zchars = zchars[:keyChars]
	}
	for len(zchars) < keyChars {
		zchars = append(zchars, 5)
	}

	var key [4]byte
	for i := 0; i < 2; i++ {
		word := uint16(zchars[i*3])<<10 | uint16(zchars[i*3+1])<<5 | uint16(zchars[i*3+2])
		if i == 1 {
			word |= 0x8000
		}
		key[i*2] = byte(word >> 8)
		key[i*2+1] = byte(word)
	}
	return key
}
