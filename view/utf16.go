package view

import "unicode/utf16"

// decodeUTF16 and encodeUTF16 bridge Go strings (UTF-8) to the Char16
// (UTF-16 code unit) arrays used for string containers (spec §3 "String: an
// array container with Char16 elements"). No pack example ships a UTF-16
// codec; unicode/utf16 is the standard library's purpose-built tool for
// exactly this conversion, so no third-party dependency applies here.
func decodeUTF16(units []uint16) string {
	return string(utf16.Decode(units))
}

func encodeUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
