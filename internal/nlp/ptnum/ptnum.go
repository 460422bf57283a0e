// Package ptnum converts spoken Brazilian Portuguese number words into
// digits so phone numbers and quantities dictated as words match the
// same patterns as typed digits.
package ptnum

import (
	"strconv"
	"strings"
)

// units covers 0-9 plus the gendered forms of one and two and the
// accentless spellings speech-to-text engines commonly emit. "meia"
// (from "meia dúzia") is how Brazilians dictate the digit 6.
var units = map[string]int{
	"zero":   0,
	"um":     1,
	"uma":    1,
	"dois":   2,
	"duas":   2,
	"três":   3,
	"tres":   3,
	"quatro": 4,
	"cinco":  5,
	"seis":   6,
	"meia":   6,
	"sete":   7,
	"oito":   8,
	"nove":   9,
}

var tens = map[string]int{
	"dez":       10,
	"vinte":     20,
	"trinta":    30,
	"quarenta":  40,
	"cinquenta": 50,
	"sessenta":  60,
	"setenta":   70,
	"oitenta":   80,
	"noventa":   90,
}

// UnitValue returns the digit for a single spoken unit word.
func UnitValue(word string) (int, bool) {
	v, ok := units[strings.ToLower(word)]
	return v, ok
}

// ParseWord returns the numeric value of a single number word, unit or
// ten.
func ParseWord(word string) (int, bool) {
	w := strings.ToLower(word)
	if v, ok := units[w]; ok {
		return v, true
	}
	if v, ok := tens[w]; ok {
		return v, true
	}
	return 0, false
}

// ReplaceNumberWords rewrites number words in the text as digit strings.
// Compound tens of the form "trinta e três" collapse additively into a
// single number (33). Other tokens pass through untouched, including
// their surrounding punctuation.
func ReplaceNumberWords(text string) string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))

	for i := 0; i < len(fields); i++ {
		core, prefix, suffix := trimToken(fields[i])
		lower := strings.ToLower(core)

		if t, ok := tens[lower]; ok {
			// "trinta e três" → 33; lone "trinta" → 30
			if i+2 < len(fields) {
				eCore, _, _ := trimToken(fields[i+1])
				uCore, _, uSuffix := trimToken(fields[i+2])
				if strings.EqualFold(eCore, "e") {
					if u, ok := units[strings.ToLower(uCore)]; ok {
						out = append(out, prefix+strconv.Itoa(t+u)+uSuffix)
						i += 2
						continue
					}
				}
			}
			out = append(out, prefix+strconv.Itoa(t)+suffix)
			continue
		}

		if u, ok := units[lower]; ok {
			out = append(out, prefix+strconv.Itoa(u)+suffix)
			continue
		}

		out = append(out, fields[i])
	}

	return strings.Join(out, " ")
}

// trimToken splits a token into leading punctuation, the word core, and
// trailing punctuation, so "três," converts to "3,".
func trimToken(token string) (core, prefix, suffix string) {
	start := 0
	for start < len(token) && isPunct(token[start]) {
		start++
	}
	end := len(token)
	for end > start && isPunct(token[end-1]) {
		end--
	}
	return token[start:end], token[:start], token[end:]
}

func isPunct(b byte) bool {
	switch b {
	case ',', '.', '!', '?', ';', ':', '(', ')', '"', '\'':
		return true
	}
	return false
}
