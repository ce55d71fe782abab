// Package cues detects narrative attentional cues by keyword containment.
//
// Detection is deliberately high recall and low precision: every keyword hit
// in a sentence becomes a cue, with no deduplication and no confidence score.
// Consumers treat cues as candidate evidence.
package cues

import (
	"strings"

	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
	"github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/core/index"
	"github.com/FocuswithJustin/NarrativeCues/core/textnorm"
)

// Category is one of the five closed cue categories.
type Category int

const (
	Primacy Category = iota
	Causal
	Focalization
	Absence
	Prolepsis
)

// categoryInfo is the single table a category is declared in.
type categoryInfo struct {
	name        string
	description string
	weight      float64
	keywords    []string
}

var categories = [...]categoryInfo{
	Primacy: {
		name:        "primacy",
		description: "Early-importance marker: the narrative signals a beginning or a first place",
		weight:      0.3,
		keywords:    []string{"ἀρχή", "πρῶτον", "πρῶτος", "πρωῒ"},
	},
	Causal: {
		name:        "causal",
		description: "Attribution or agency: an action is ascribed to an agent",
		weight:      0.3,
		keywords:    []string{"ὑπό", "διά", "ἕνεκεν", "ἐκβάλλει"},
	},
	Focalization: {
		name:        "focalization",
		description: "Perception marker: the narrative views events through a character",
		weight:      0.2,
		keywords:    []string{"εἶδεν", "ἰδών", "ἰδού", "ἤκουσεν", "ἀκούσας", "βλέπετε"},
	},
	Absence: {
		name:        "absence",
		description: "Negation marker: something expected is denied or missing",
		weight:      0.15,
		keywords:    []string{"οὐκ", "οὐχ", "οὐδείς", "οὐδέν", "μηδενί"},
	},
	Prolepsis: {
		name:        "prolepsis",
		description: "Anticipation marker: the narrative points to a future event",
		weight:      0.1,
		keywords:    []string{"ἔρχεται", "μέλλει", "βαπτίσει", "ἐλεύσονται", "ὄψεσθε"},
	},
}

// foldedKeywords mirrors categories with folded keywords.
var foldedKeywords = func() [len(categories)][]string {
	var out [len(categories)][]string
	for i, c := range categories {
		for _, k := range c.keywords {
			out[i] = append(out[i], textnorm.Fold(k))
		}
	}
	return out
}()

// All lists every category in declaration order.
func All() []Category {
	out := make([]Category, len(categories))
	for i := range categories {
		out[i] = Category(i)
	}
	return out
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categories)
}

func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return categories[c].name
}

// Description is the human-readable meaning of the category.
func (c Category) Description() string {
	if !c.Valid() {
		return ""
	}
	return categories[c].description
}

// Weight is the category's contribution to narrative intensity.
func (c Category) Weight() float64 {
	if !c.Valid() {
		return 0
	}
	return categories[c].weight
}

// Keywords returns the category's keyword list as declared.
func (c Category) Keywords() []string {
	if !c.Valid() {
		return nil
	}
	return append([]string(nil), categories[c].keywords...)
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.NewValidation("category", "unknown category")
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory maps a category name (case-insensitive) to its value.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, c := range categories {
		if c.name == s {
			return Category(i), nil
		}
	}
	err := errors.NewValidation("category", "unknown category")
	err.Value = s
	return 0, err
}

// Cue is one keyword hit. Cues are never modified after detection.
type Cue struct {
	Category    Category `json:"category"`
	Keyword     string   `json:"keyword"`
	SentenceID  int      `json:"sentence_id"`
	Chapter     int      `json:"chapter"`
	Verse       int      `json:"verse"`
	Text        string   `json:"text"`
	Description string   `json:"description"`
}

// Detect scans each sentence's joined token forms for every keyword of every
// category and returns one cue per hit, in sentence then table order.
func Detect(sentences []*conllu.Sentence) []Cue {
	var out []Cue
	for _, s := range sentences {
		out = append(out, DetectSentence(s)...)
	}
	return out
}

// DetectSentence returns the cues of a single sentence.
func DetectSentence(s *conllu.Sentence) []Cue {
	scan := textnorm.Fold(s.ScanText())
	if scan == "" {
		return nil
	}
	c, v := index.Location(s)

	var out []Cue
	for i, info := range categories {
		for j, k := range foldedKeywords[i] {
			if !strings.Contains(scan, k) {
				continue
			}
			out = append(out, Cue{
				Category:    Category(i),
				Keyword:     info.keywords[j],
				SentenceID:  s.ID,
				Chapter:     c,
				Verse:       v,
				Text:        s.SurfaceText(),
				Description: info.description,
			})
		}
	}
	return out
}

// InChapter filters cues to chapter c, preserving order.
func InChapter(all []Cue, c int) []Cue {
	var out []Cue
	for _, cue := range all {
		if cue.Chapter == c {
			out = append(out, cue)
		}
	}
	return out
}

// InVerse filters cues to chapter c, verse v, preserving order.
func InVerse(all []Cue, c, v int) []Cue {
	var out []Cue
	for _, cue := range all {
		if cue.Chapter == c && cue.Verse == v {
			out = append(out, cue)
		}
	}
	return out
}

// OfCategory filters cues by category, preserving order.
func OfCategory(all []Cue, cat Category) []Cue {
	var out []Cue
	for _, cue := range all {
		if cue.Category == cat {
			out = append(out, cue)
		}
	}
	return out
}
