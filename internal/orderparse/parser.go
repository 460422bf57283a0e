// Package orderparse matches free-form utterances against the product
// catalog and emits order line items with quantities and ingredient
// removals.
package orderparse

import (
	"regexp"
	"sort"
	"strings"

	"orderbyvoice/internal/models"
	"orderbyvoice/internal/nlp/normalizer"
	"orderbyvoice/internal/nlp/ptnum"
)

// Config parameterizes the linguistic cues so parser variants collapse
// into one implementation.
type Config struct {
	RemovalTriggers []string
}

// Parser matches utterances against one catalog snapshot. Build a new
// Parser when the catalog is invalidated; parsing itself is read-only
// and safe for concurrent use.
type Parser struct {
	products []productMatcher
	norm     *normalizer.Normalizer
	triggers []string
}

type productMatcher struct {
	product models.Product
	name    string // lowercased canonical name
	qtyRe   *regexp.Regexp
}

// New builds a Parser from the catalog and the alias→product-id synonym
// map. Products are tried longest-canonical-name-first so a product
// whose name is a substring of another cannot shadow it.
func New(products []models.Product, aliases map[string]string, cfg Config) *Parser {
	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var subs []normalizer.Substitution
	for alias, productID := range aliases {
		if p, ok := byID[productID]; ok {
			subs = append(subs, normalizer.Substitution{Alias: alias, Canonical: p.Name})
		}
	}
	// Deterministic substitution order regardless of map iteration.
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Alias != subs[j].Alias {
			return subs[i].Alias < subs[j].Alias
		}
		return subs[i].Canonical < subs[j].Canonical
	})

	triggers := cfg.RemovalTriggers
	if len(triggers) == 0 {
		triggers = []string{"sem", "não quero", "pode tirar", "tire", "retire"}
	}

	p := &Parser{
		norm:     normalizer.New(subs),
		triggers: lowerAll(triggers),
	}

	ordered := make([]models.Product, len(products))
	copy(ordered, products)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Name) > len(ordered[j].Name)
	})
	for _, prod := range ordered {
		name := strings.ToLower(prod.Name)
		if name == "" {
			continue
		}
		p.products = append(p.products, productMatcher{
			product: prod,
			name:    name,
			qtyRe: regexp.MustCompile(
				`(\d+)\s*(?:x|unidades?|un\.?)?\s*(?:de\s+)?` + regexp.QuoteMeta(name)),
		})
	}
	return p
}

// Normalize exposes the parser's normalization for callers that need
// the same canonical text (confirmation checks, logging).
func (p *Parser) Normalize(utterance string) string {
	return p.norm.Normalize(utterance)
}

// Parse returns the line items recognized in the utterance, ordered by
// first occurrence. An empty result means "no recognizable order" and is
// a normal negative outcome. Repeated mentions of the same product sum
// their quantities into a single line item.
func (p *Parser) Parse(utterance string) []models.OrderLineItem {
	text := ptnum.ReplaceNumberWords(p.norm.Normalize(utterance))
	if text == "" {
		return nil
	}

	removalActive := false
	for _, trigger := range p.triggers {
		if containsWord(text, trigger) {
			removalActive = true
			break
		}
	}

	type placed struct {
		item models.OrderLineItem
		pos  int
	}
	var found []placed
	masked := []byte(text)

	for _, pm := range p.products {
		positions := wordOccurrences(string(masked), pm.name)
		if len(positions) == 0 {
			continue
		}

		quantity := 0
		counted := 0
		for _, loc := range pm.qtyRe.FindAllStringSubmatchIndex(string(masked), -1) {
			q := atoi(text[loc[2]:loc[3]])
			if q < 1 {
				q = 1
			}
			quantity += q
			counted++
		}
		// Mentions without an explicit quantity count one each.
		if bare := len(positions) - counted; bare > 0 {
			quantity += bare
		}
		if quantity < 1 {
			quantity = 1
		}

		item := models.OrderLineItem{
			ProductID: pm.product.ID,
			Name:      pm.product.Name,
			Quantity:  quantity,
			UnitPrice: pm.product.Price,
		}
		if removalActive {
			item.MergeRemoved(p.removedIngredients(text, &pm.product))
		}
		if item.RemovedIngredients == nil {
			item.RemovedIngredients = []string{}
		}
		found = append(found, placed{item: item, pos: positions[0]})

		// Mask matched occurrences so shorter names that are substrings
		// of this one cannot re-match inside them.
		for _, pos := range positions {
			for i := pos; i < pos+len(pm.name); i++ {
				masked[i] = '#'
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	items := make([]models.OrderLineItem, 0, len(found))
	for _, f := range found {
		items = append(items, f.item)
	}
	return items
}

// removedIngredients collects the product's removable ingredients that
// are mentioned in the text. The caller merges them into a deduplicated
// set.
func (p *Parser) removedIngredients(text string, product *models.Product) []string {
	removable := product.RemovableSet()
	keys := make([]string, 0, len(removable))
	for k := range removable {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var removed []string
	for _, k := range keys {
		if containsWord(text, k) {
			removed = append(removed, removable[k])
		}
	}
	return removed
}

// wordOccurrences finds the byte offsets where sub occurs in s bounded
// by non-letter characters on both sides.
func wordOccurrences(s, sub string) []int {
	var out []int
	from := 0
	for {
		idx := strings.Index(s[from:], sub)
		if idx < 0 {
			return out
		}
		idx += from
		startOK := idx == 0 || !isWordByte(s[idx-1])
		end := idx + len(sub)
		endOK := end == len(s) || !isWordByte(s[end])
		if startOK && endOK {
			out = append(out, idx)
		}
		from = idx + 1
	}
}

func containsWord(s, sub string) bool {
	return len(wordOccurrences(s, sub)) > 0
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9') || b >= 0x80
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
