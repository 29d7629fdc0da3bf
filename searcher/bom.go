package searcher

import "unicode/utf16"

// sniffBOM inspects the first bytes of data for a byte-order mark. UTF-16
// content is decoded to UTF-8 so the byte-oriented scan sees text rather than
// interleaved NULs; a UTF-8 mark is simply dropped. Reported byte offsets and
// counts refer to the decoded content.
func sniffBOM(data []byte) []byte {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return decodeUTF16(data[2:], false)
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return decodeUTF16(data[2:], true)
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return data[3:]
	}
	return data
}

// decodeUTF16 converts UTF-16 bytes to UTF-8. Invalid surrogates become
// U+FFFD; a dangling trailing byte is dropped.
func decodeUTF16(b []byte, bigEndian bool) []byte {
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		if bigEndian {
			u16 = append(u16, uint16(b[i])<<8|uint16(b[i+1]))
		} else {
			u16 = append(u16, uint16(b[i+1])<<8|uint16(b[i]))
		}
	}
	return []byte(string(utf16.Decode(u16)))
}
