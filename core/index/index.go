// Package index groups resolved sentences by chapter and verse.
package index

import (
	"sort"

	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
)

// DefaultChapter and DefaultVerse stand in for unresolved references so no
// sentence is dropped from the index.
const (
	DefaultChapter = 1
	DefaultVerse   = 1
)

// Location returns the chapter and verse a sentence is filed under.
func Location(s *conllu.Sentence) (chapter, verse int) {
	chapter, verse = s.Chapter, s.Verse
	if chapter <= 0 {
		chapter = DefaultChapter
	}
	if verse <= 0 {
		verse = DefaultVerse
	}
	return chapter, verse
}

// Index maps chapter -> verse -> sentences in corpus order. The sentences are
// shared with the parse result, not copied. An Index is never updated after
// Build returns.
type Index struct {
	chapters map[int]map[int][]*conllu.Sentence
}

// Build buckets every sentence by Location.
func Build(sentences []*conllu.Sentence) *Index {
	x := &Index{chapters: make(map[int]map[int][]*conllu.Sentence)}
	for _, s := range sentences {
		c, v := Location(s)
		verses, ok := x.chapters[c]
		if !ok {
			verses = make(map[int][]*conllu.Sentence)
			x.chapters[c] = verses
		}
		verses[v] = append(verses[v], s)
	}
	return x
}

// Chapters returns the chapter numbers present, ascending.
func (x *Index) Chapters() []int {
	return sortedKeys(x.chapters)
}

// HasChapter reports whether any sentence is filed under chapter c.
func (x *Index) HasChapter(c int) bool {
	_, ok := x.chapters[c]
	return ok
}

// Verses returns the verse numbers present in chapter c, ascending.
func (x *Index) Verses(c int) []int {
	return sortedKeys(x.chapters[c])
}

// Sentences returns the sentences of one verse.
func (x *Index) Sentences(c, v int) []*conllu.Sentence {
	src := x.chapters[c][v]
	out := make([]*conllu.Sentence, len(src))
	copy(out, src)
	return out
}

// Range returns the sentences of verses start..end (inclusive) of chapter c,
// in verse order.
func (x *Index) Range(c, start, end int) []*conllu.Sentence {
	var out []*conllu.Sentence
	for _, v := range x.Verses(c) {
		if v < start || v > end {
			continue
		}
		out = append(out, x.chapters[c][v]...)
	}
	return out
}

// Chapter returns every sentence of chapter c, in verse order.
func (x *Index) Chapter(c int) []*conllu.Sentence {
	var out []*conllu.Sentence
	for _, v := range x.Verses(c) {
		out = append(out, x.chapters[c][v]...)
	}
	return out
}

// VerseCount returns the number of distinct verses in chapter c.
func (x *Index) VerseCount(c int) int {
	return len(x.chapters[c])
}

// SentenceCount returns the number of sentences in chapter c.
func (x *Index) SentenceCount(c int) int {
	n := 0
	for _, ss := range x.chapters[c] {
		n += len(ss)
	}
	return n
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
