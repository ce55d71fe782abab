package corpus

import (
	"strings"

	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	"github.com/FocuswithJustin/NarrativeCues/core/characters"
	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	"github.com/FocuswithJustin/NarrativeCues/core/index"
	"github.com/FocuswithJustin/NarrativeCues/core/intensity"
	"github.com/FocuswithJustin/NarrativeCues/core/relations"
)

// State is the frozen result of one parse.
type State struct {
	sentences   []*conllu.Sentence
	skipped     int
	index       *index.Index
	resolver    *characters.Resolver
	roster      *characters.Roster
	cues        []cues.Cue
	scorer      *intensity.Scorer
	fingerprint cas.HashResult
}

// Summary describes one chapter.
type Summary struct {
	Chapter        int        `json:"chapter"`
	VerseCount     int        `json:"verse_count"`
	SentenceCount  int        `json:"sentence_count"`
	CharacterNames []string   `json:"character_names"`
	Cues           []cues.Cue `json:"cues"`
}

// Sentences returns a copy of every sentence in corpus order.
func (s *State) Sentences() []conllu.Sentence {
	out := make([]conllu.Sentence, len(s.sentences))
	for i, sent := range s.sentences {
		out[i] = sent.Clone()
	}
	return out
}

// SentenceCount returns the number of sentences.
func (s *State) SentenceCount() int {
	return len(s.sentences)
}

// Skipped returns the number of malformed data lines dropped by the parser.
func (s *State) Skipped() int {
	return s.skipped
}

// Chapters returns the chapter numbers present, ascending.
func (s *State) Chapters() []int {
	return s.index.Chapters()
}

// Characters returns every character in order of first appearance.
func (s *State) Characters() []characters.Character {
	return s.roster.All()
}

// Character looks a character up by canonical name.
func (s *State) Character(name string) (characters.Character, bool) {
	return s.roster.Get(name)
}

// Roster returns the character roster.
func (s *State) Roster() *characters.Roster {
	return s.roster
}

// Cues returns every detected cue in corpus order.
func (s *State) Cues() []cues.Cue {
	out := make([]cues.Cue, len(s.cues))
	copy(out, s.cues)
	return out
}

// CuesInChapter returns the cues of chapter c.
func (s *State) CuesInChapter(c int) []cues.Cue {
	return cues.InChapter(s.cues, c)
}

// TextRange returns the surface text of verses start..end of chapter c,
// sentences joined by a space.
func (s *State) TextRange(c, start, end int) string {
	var parts []string
	for _, sent := range s.index.Range(c, start, end) {
		if t := sent.SurfaceText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// ChapterSummary computes the summary of chapter c.
func (s *State) ChapterSummary(c int) Summary {
	return Summary{
		Chapter:        c,
		VerseCount:     s.index.VerseCount(c),
		SentenceCount:  s.index.SentenceCount(c),
		CharacterNames: s.roster.Names(c),
		Cues:           s.CuesInChapter(c),
	}
}

// Relationships returns the co-occurrence and causal edges of chapter c.
func (s *State) Relationships(c int) []relations.Edge {
	return relations.Build(c, s.roster, s.cues, s.resolver)
}

// Intensity scores every verse of chapter c in verse order.
func (s *State) Intensity(c int) []intensity.VerseScore {
	verses := s.index.Verses(c)
	inputs := make([]intensity.Verse, 0, len(verses))
	for _, v := range verses {
		inputs = append(inputs, s.verseInput(c, v))
	}
	return s.scorer.Chapter(inputs)
}

// VerseIntensity scores a single verse.
func (s *State) VerseIntensity(c, v int) intensity.VerseScore {
	return s.scorer.Score(s.verseInput(c, v))
}

func (s *State) verseInput(c, v int) intensity.Verse {
	text := s.TextRange(c, v, v)
	return intensity.Verse{
		Chapter:    c,
		Verse:      v,
		Characters: s.roster.InVerse(c, v),
		Cues:       cues.InVerse(s.cues, c, v),
		Text:       text,
		Spirit:     s.resolver.Mentions(text, characters.HolySpirit),
	}
}

// Fingerprint returns the SHA-256 and BLAKE3 digests of the corpus bytes.
func (s *State) Fingerprint() cas.HashResult {
	return s.fingerprint
}
