// Package normalizer provides the pure text transform applied before
// catalog matching: case folding, punctuation stripping and synonym
// substitution.
package normalizer

import (
	"sort"
	"strings"
)

// Substitution maps one alias phrase to the canonical product phrase it
// stands for. Both sides are lowercased when the Normalizer is built.
type Substitution struct {
	Alias     string
	Canonical string
}

// Normalizer rewrites raw utterances into the canonical form the order
// parser matches against. It is pure and deterministic, and normalizing
// an already-normalized string yields the same string.
type Normalizer struct {
	subs       []Substitution // descending alias length
	canonicals []string       // descending length
}

// New builds a Normalizer from alias→canonical pairs. Aliases are tried
// longest-first so a short alias never corrupts a longer alias that
// contains it as a substring, and canonical phrases already present in
// the text are left untouched, which keeps normalization idempotent even
// when an alias is a prefix of its own canonical form.
func New(subs []Substitution) *Normalizer {
	n := &Normalizer{}
	seen := make(map[string]bool)
	for _, s := range subs {
		alias := strings.ToLower(strings.TrimSpace(s.Alias))
		canonical := strings.ToLower(strings.TrimSpace(s.Canonical))
		if alias == "" || canonical == "" {
			continue
		}
		if !seen[canonical] {
			n.canonicals = append(n.canonicals, canonical)
			seen[canonical] = true
		}
		if alias != canonical {
			n.subs = append(n.subs, Substitution{Alias: alias, Canonical: canonical})
		}
	}
	sort.SliceStable(n.subs, func(i, j int) bool {
		return len(n.subs[i].Alias) > len(n.subs[j].Alias)
	})
	sort.SliceStable(n.canonicals, func(i, j int) bool {
		return len(n.canonicals[i]) > len(n.canonicals[j])
	})
	return n
}

// Normalize case-folds the utterance, strips matching noise and applies
// the synonym substitutions.
func (n *Normalizer) Normalize(text string) string {
	s := strings.ToLower(text)
	s = stripNoise(s)
	s = collapseSpaces(s)
	return n.substitute(s)
}

// substitute walks the text once. Matches only start and end on word
// boundaries, and canonical phrases are copied through verbatim before
// any alias is tried, so a second pass reproduces the first pass's
// output exactly.
func (n *Normalizer) substitute(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	atBoundary := true
	for i < len(s) {
		rest := s[i:]
		if atBoundary {
			if c := prefixMatch(rest, n.canonicals); c != "" {
				b.WriteString(c)
				i += len(c)
				atBoundary = false
				continue
			}
			if sub, ok := n.matchAlias(rest); ok {
				b.WriteString(sub.Canonical)
				i += len(sub.Alias)
				atBoundary = false
				continue
			}
		}
		b.WriteByte(s[i])
		atBoundary = s[i] == ' '
		i++
	}
	return b.String()
}

func (n *Normalizer) matchAlias(rest string) (Substitution, bool) {
	for _, sub := range n.subs {
		if strings.HasPrefix(rest, sub.Alias) && endsAtBoundary(rest, len(sub.Alias)) {
			return sub, true
		}
	}
	return Substitution{}, false
}

func prefixMatch(rest string, phrases []string) string {
	for _, p := range phrases {
		if strings.HasPrefix(rest, p) && endsAtBoundary(rest, len(p)) {
			return p
		}
	}
	return ""
}

func endsAtBoundary(rest string, n int) bool {
	return n == len(rest) || rest[n] == ' '
}

// stripNoise replaces punctuation that carries no meaning for catalog
// matching with spaces. Hyphens inside words stay, since product names
// like "coca-cola" use them.
func stripNoise(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ',', '.', '!', '?', ';', ':', '(', ')', '"', '\'':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
