// Package extract pulls structured customer fields out of loosely
// patterned utterances using cue phrases. Absent fields are a normal
// result, never an error.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"orderbyvoice/internal/nlp/ptnum"
)

// Info is the partial customer record extracted from one utterance. Any
// field may be empty.
type Info struct {
	Name    string `json:"nome"`
	Phone   string `json:"telefone"`
	Address string `json:"endereco"`
}

// Empty reports whether nothing was extracted.
func (i Info) Empty() bool {
	return i.Name == "" && i.Phone == "" && i.Address == ""
}

// Config holds the cue phrase sets. Zero values fall back to the
// built-in Portuguese defaults.
type Config struct {
	NameCues    []string
	AddressCues []string
}

// Extractor extracts {name, phone, address} fragments from utterances.
// Each field is extracted independently; the earliest cue occurrence in
// the utterance wins for its field.
type Extractor struct {
	nameCues    []string
	addressCues []string
}

// digitRun finds candidate phone sequences: digit runs optionally broken
// by spaces, dashes and parentheses.
var digitRun = regexp.MustCompile(`[\d(][\d\s()\-]*\d`)

func New(cfg Config) *Extractor {
	nameCues := cfg.NameCues
	if len(nameCues) == 0 {
		nameCues = []string{"meu nome é", "me chamo", "sou"}
	}
	addressCues := cfg.AddressCues
	if len(addressCues) == 0 {
		addressCues = []string{"meu endereço é", "moro na", "moro em", "fico em"}
	}
	return &Extractor{nameCues: lowerAll(nameCues), addressCues: lowerAll(addressCues)}
}

// Extract pulls the customer fields out of the utterance.
func (e *Extractor) Extract(utterance string) Info {
	return Info{
		Name:    e.extractName(utterance),
		Phone:   ExtractPhone(utterance),
		Address: e.extractAddress(utterance),
	}
}

// ExtractPhone locates a 10-11 digit sequence, converting spoken number
// words to digits first and stripping separators from the match.
func ExtractPhone(utterance string) string {
	text := ptnum.ReplaceNumberWords(utterance)
	for _, candidate := range digitRun.FindAllString(text, -1) {
		digits := stripNonDigits(candidate)
		if len(digits) >= 10 && len(digits) <= 11 {
			return digits
		}
	}
	return ""
}

// extractName captures the text after the earliest name cue up to the
// next clause terminator, title-cased.
func (e *Extractor) extractName(utterance string) string {
	raw := afterEarliestCue(utterance, e.nameCues)
	if raw == "" {
		return ""
	}
	// "sou o João" / "sou a Maria"
	for _, article := range []string{"o ", "a ", "O ", "A "} {
		if strings.HasPrefix(raw, article) {
			raw = raw[len(article):]
			break
		}
	}
	name := cutAt(raw, ",.!?\n")
	name = strings.TrimSpace(trimDigits(name))
	if name == "" {
		return ""
	}
	return titleCase(name)
}

// extractAddress captures the text after the earliest address cue up to
// the end of the sentence, capitalized.
func (e *Extractor) extractAddress(utterance string) string {
	raw := afterEarliestCue(utterance, e.addressCues)
	if raw == "" {
		return ""
	}
	addr := strings.TrimSpace(cutAt(raw, ".!?\n"))
	if addr == "" {
		return ""
	}
	return capitalize(addr)
}

// afterEarliestCue returns the text following the cue with the smallest
// offset in the utterance, or "" when no cue occurs. Cues match only at
// word boundaries so "sou" never fires inside another word.
func afterEarliestCue(utterance string, cues []string) string {
	lower := strings.ToLower(utterance)
	best := -1
	bestEnd := 0
	for _, cue := range cues {
		idx := indexWord(lower, cue)
		if idx < 0 {
			continue
		}
		if best == -1 || idx < best {
			best = idx
			bestEnd = idx + len(cue)
		}
	}
	if best < 0 {
		return ""
	}
	return strings.TrimSpace(utterance[bestEnd:])
}

// indexWord finds cue in s starting and ending at word boundaries.
func indexWord(s, cue string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], cue)
		if idx < 0 {
			return -1
		}
		idx += from
		startOK := idx == 0 || !isLetter(s[idx-1])
		end := idx + len(cue)
		endOK := end == len(s) || !isLetter(s[end])
		if startOK && endOK {
			return idx
		}
		from = idx + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= 0x80
}

func cutAt(s, terminators string) string {
	if idx := strings.IndexAny(s, terminators); idx >= 0 {
		return s[:idx]
	}
	return s
}

// trimDigits drops a trailing digit block so "me chamo Ana 11987654321"
// keeps only the name.
func trimDigits(s string) string {
	fields := strings.Fields(s)
	for len(fields) > 0 && stripNonDigits(fields[len(fields)-1]) != "" {
		last := fields[len(fields)-1]
		if strings.IndexFunc(last, unicode.IsLetter) >= 0 {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleCase uppercases the first letter of each word so extracted
// names read like proper nouns.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
