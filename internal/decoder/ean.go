package decoder

import "strings"

// classifyEAN13 splits EAN-13 payloads the way zbar reports them: a leading
// zero is UPC-A, a 978/979 prefix is a book number. More specific types win
// when enabled; otherwise the payload falls back to plain EAN-13.
func classifyEAN13(text string, syms Symbologies) (Symbology, string, bool) {
	if len(text) != 13 {
		return EAN13, text, syms.IsEnabled(EAN13)
	}
	bookland := strings.HasPrefix(text, "978") || strings.HasPrefix(text, "979")
	if bookland {
		if syms.IsEnabled(ISBN10) && strings.HasPrefix(text, "978") {
			if isbn, ok := ISBN10FromEAN13(text); ok {
				return ISBN10, isbn, true
			}
		}
		if syms.IsEnabled(ISBN13) {
			return ISBN13, text, true
		}
	}
	if text[0] == '0' && syms.IsEnabled(UPCA) {
		return UPCA, text[1:], true
	}
	return EAN13, text, syms.IsEnabled(EAN13)
}

// ISBN10FromEAN13 converts a 978-prefixed EAN-13 into its ISBN-10 form,
// recomputing the mod-11 check digit.
func ISBN10FromEAN13(ean string) (string, bool) {
	if len(ean) != 13 || !strings.HasPrefix(ean, "978") {
		return "", false
	}
	body := ean[3:12]
	sum := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c < '0' || c > '9' {
			return "", false
		}
		sum += int(c-'0') * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return body + "X", true
	}
	return body + string(rune('0'+check)), true
}
