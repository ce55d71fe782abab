// Package characters resolves word forms into canonical character identities
// and keeps an occurrence ledger per character.
//
// All variant matching in the repository goes through Resolver; consumers
// never compare forms against names themselves.
package characters

import (
	"sort"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
	"github.com/FocuswithJustin/NarrativeCues/core/index"
	"github.com/FocuswithJustin/NarrativeCues/core/textnorm"
)

// minReverseLen is the shortest folded form allowed to match by being
// contained in a variant. Shorter forms are articles and particles.
const minReverseLen = 4

// Strategy selects how tokens are matched against the table.
type Strategy int

const (
	// StrategyLemma matches the token lemma exactly when the token has one,
	// and falls back to surface containment when it does not.
	StrategyLemma Strategy = iota
	// StrategySurface always matches by surface containment.
	StrategySurface
)

// Occurrence is one attested mention of a character.
type Occurrence struct {
	SentenceID int    `json:"sentence_id"`
	Chapter    int    `json:"chapter"`
	Verse      int    `json:"verse"`
	TokenID    int    `json:"token_id"`
	Form       string `json:"form"`
	Lemma      string `json:"lemma,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Character is a canonical identity with its ledger. Characters are
// read-only once Resolve returns.
type Character struct {
	Name        string       `json:"name"`
	Variants    []string     `json:"variants"`
	Occurrences []Occurrence `json:"occurrences"`
	Mentions    int          `json:"mentions"`
	Background  bool         `json:"background,omitempty"`
}

// clone returns a copy of ch whose slices are not shared with ch.
func (ch Character) clone() Character {
	ch.Variants = append([]string(nil), ch.Variants...)
	ch.Occurrences = append([]Occurrence(nil), ch.Occurrences...)
	return ch
}

// Verses returns the distinct verses of chapter c the character appears in,
// ascending.
func (ch Character) Verses(c int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, o := range ch.Occurrences {
		if o.Chapter == c && !seen[o.Verse] {
			seen[o.Verse] = true
			out = append(out, o.Verse)
		}
	}
	sort.Ints(out)
	return out
}

// MentionsIn counts occurrences in chapter c.
func (ch Character) MentionsIn(c int) int {
	n := 0
	for _, o := range ch.Occurrences {
		if o.Chapter == c {
			n++
		}
	}
	return n
}

type family struct {
	Family
	lemmas   []string
	variants []string
}

// Resolver holds the folded variant table.
type Resolver struct {
	families []family
	strategy Strategy
}

// NewResolver builds a Resolver over families. A nil table means
// DefaultFamilies.
func NewResolver(families []Family, strategy Strategy) *Resolver {
	if families == nil {
		families = DefaultFamilies
	}
	r := &Resolver{strategy: strategy}
	for _, f := range families {
		ff := family{Family: f}
		for _, l := range f.Lemmas {
			ff.lemmas = append(ff.lemmas, textnorm.Fold(l))
		}
		for _, v := range f.Variants {
			ff.variants = append(ff.variants, textnorm.Fold(v))
		}
		r.families = append(r.families, ff)
	}
	return r
}

// Families returns the table the resolver was built from.
func (r *Resolver) Families() []Family {
	out := make([]Family, len(r.families))
	for i, f := range r.families {
		out[i] = f.Family
	}
	return out
}

// Family returns the table entry for a canonical name.
func (r *Resolver) Family(name string) (Family, bool) {
	for _, f := range r.families {
		if f.Name == name {
			return f.Family, true
		}
	}
	return Family{}, false
}

// Canonical returns the canonical names whose variants overlap form: the
// form contains a variant, or a variant contains the form. Identical forms
// always resolve to identical names, in table order.
func (r *Resolver) Canonical(form string) []string {
	var names []string
	for _, i := range r.surfaceMatches(textnorm.Fold(form)) {
		names = append(names, r.families[i].Name)
	}
	return names
}

// MatchToken returns the canonical names a token resolves to under the
// resolver's strategy.
func (r *Resolver) MatchToken(tok conllu.Token) []string {
	var names []string
	for _, i := range r.tokenMatches(tok) {
		names = append(names, r.families[i].Name)
	}
	return names
}

// MentionsIn returns the canonical names mentioned anywhere in free text,
// in table order, each at most once.
func (r *Resolver) MentionsIn(text string) []string {
	hit := make([]bool, len(r.families))
	words := strings.FieldsFunc(textnorm.Fold(text), func(c rune) bool {
		return !unicode.IsLetter(c)
	})
	for _, w := range words {
		for _, i := range r.surfaceMatches(w) {
			hit[i] = true
		}
	}
	var names []string
	for i, ok := range hit {
		if ok {
			names = append(names, r.families[i].Name)
		}
	}
	return names
}

// Mentions reports whether text mentions the character name.
func (r *Resolver) Mentions(text, name string) bool {
	for _, n := range r.MentionsIn(text) {
		if n == name {
			return true
		}
	}
	return false
}

// Resolve scans every token of every sentence once and returns the roster.
// Characters are created on first match; a token matching two families
// records an occurrence for each.
func (r *Resolver) Resolve(sentences []*conllu.Sentence) *Roster {
	slots := make([]*Character, len(r.families))
	var order []int

	for _, s := range sentences {
		c, v := index.Location(s)
		for _, tok := range s.Tokens {
			for _, i := range r.tokenMatches(tok) {
				ch := slots[i]
				if ch == nil {
					f := r.families[i]
					ch = &Character{
						Name:       f.Name,
						Variants:   append([]string(nil), f.Variants...),
						Background: f.Background,
					}
					slots[i] = ch
					order = append(order, i)
				}
				ch.Occurrences = append(ch.Occurrences, Occurrence{
					SentenceID: s.ID,
					Chapter:    c,
					Verse:      v,
					TokenID:    tok.ID,
					Form:       tok.Form,
					Lemma:      tok.Lemma,
					Role:       tok.DepRel,
				})
				ch.Mentions++
			}
		}
	}

	chars := make([]Character, 0, len(order))
	for _, i := range order {
		chars = append(chars, *slots[i])
	}
	return newRoster(chars)
}

func (r *Resolver) tokenMatches(tok conllu.Token) []int {
	if r.strategy == StrategyLemma && tok.Lemma != "" {
		return r.lemmaMatches(textnorm.Fold(tok.Lemma))
	}
	return r.surfaceMatches(textnorm.Fold(tok.Form))
}

func (r *Resolver) lemmaMatches(lemma string) []int {
	var out []int
	for i, f := range r.families {
		for _, l := range f.lemmas {
			if l == lemma {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func (r *Resolver) surfaceMatches(form string) []int {
	if form == "" {
		return nil
	}
	reverse := textnorm.Len(form) >= minReverseLen
	var out []int
	for i, f := range r.families {
		for _, v := range f.variants {
			if strings.Contains(form, v) || (reverse && strings.Contains(v, form)) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
