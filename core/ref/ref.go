// Package ref resolves book, chapter and verse for corpus sentences.
//
// Two signals exist in the corpus. Tokens may carry a structured reference in
// their misc column ("Ref=MARK_1.14"), which names chapter and verse. Comment
// lines may carry a document reference ("# source = Mark 1"), which names only
// a chapter. The token reference always wins; comments never supply a verse.
package ref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
	"github.com/FocuswithJustin/NarrativeCues/core/errors"
)

// Ref is a resolved book/chapter/verse triple.
type Ref struct {
	// Book is the corpus book code (e.g., "MARK", "1COR").
	Book string `json:"book"`

	// Chapter is the chapter number (1-indexed).
	Chapter int `json:"chapter"`

	// Verse is the verse number (1-indexed).
	Verse int `json:"verse"`
}

// String returns the corpus form of the reference, e.g. "MARK_1.14".
func (r Ref) String() string {
	return fmt.Sprintf("%s_%d.%d", r.Book, r.Chapter, r.Verse)
}

// tokenRefGrammar is the participle grammar for misc-column references.
// Examples: "MARK_1.1", "1COR_13.4"
//
//nolint:govet // participle grammar tags are not standard struct tags
type tokenRefGrammar struct {
	BookPrefix string `parser:"@Int?"`
	BookName   string `parser:"@Ident"`
	Chapter    int    `parser:"'_' @Int"`
	Verse      int    `parser:"'.' @Int"`
}

var tokenRefLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Punct", Pattern: `[._]`},
})

var tokenRefParser = participle.MustBuild[tokenRefGrammar](
	participle.Lexer(tokenRefLexer),
)

var (
	// refField finds the Ref= entry anywhere in a misc column.
	refField = regexp.MustCompile(`Ref=([^|\s]+)`)

	// sourceChapter finds "<Book> <N>" pairs in a source comment.
	sourceChapter = regexp.MustCompile(`([\p{L}\p{M}]+)\s+(\d+)`)
)

// ParseRef parses a structured reference value such as "MARK_1.1".
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, errors.NewParse("reference", s, "empty reference string")
	}

	parsed, err := tokenRefParser.ParseString("", s)
	if err != nil {
		pe := errors.NewParse("reference", s, "expected <BOOK>_<chapter>.<verse>")
		pe.Err = err
		return Ref{}, pe
	}
	if parsed.Chapter < 1 || parsed.Verse < 1 {
		return Ref{}, errors.NewParse("reference", s, "chapter and verse must be positive")
	}

	return Ref{
		Book:    parsed.BookPrefix + parsed.BookName,
		Chapter: parsed.Chapter,
		Verse:   parsed.Verse,
	}, nil
}

// FindRef extracts and parses the Ref= entry of a misc column.
// ok is false when the column has no entry or the entry does not parse.
func FindRef(misc string) (r Ref, ok bool) {
	m := refField.FindStringSubmatch(misc)
	if m == nil {
		return Ref{}, false
	}
	r, err := ParseRef(m[1])
	if err != nil {
		return Ref{}, false
	}
	return r, true
}

// ParseSource extracts book and chapter from a "# source" comment value,
// e.g. "Mark 1" or "SBLGNT 2010 Mark 3". The last pair wins, so edition
// years and version numbers ahead of the book name are ignored.
func ParseSource(comment string) (book string, chapter int, ok bool) {
	all := sourceChapter.FindAllStringSubmatch(comment, -1)
	if all == nil {
		return "", 0, false
	}
	m := all[len(all)-1]
	chapter, err := strconv.Atoi(m[2])
	if err != nil || chapter < 1 {
		return "", 0, false
	}
	return m[1], chapter, true
}

// Resolver assigns references to sentences in corpus order. It carries the
// last comment chapter and the last resolved verse between sentences, so a
// fresh Resolver is needed per corpus.
type Resolver struct {
	source  string
	book    string
	chapter int
	verse   int
}

var _ conllu.Resolver = (*Resolver)(nil)

// NewResolver creates a Resolver with no carried state.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve sets Book, Chapter and Verse on s.
//
// The first token carrying a Ref= entry is authoritative for the whole
// sentence. Without one, book and chapter come from the most recent source
// comment and the verse is carried over from the previous sentence.
func (r *Resolver) Resolve(s *conllu.Sentence) {
	if s.Source != r.source {
		r.source = s.Source
		if book, chapter, ok := ParseSource(s.Source); ok {
			r.book, r.chapter = book, chapter
		}
	}

	for _, tok := range s.Tokens {
		if ref, ok := FindRef(tok.Misc); ok {
			s.Book, s.Chapter, s.Verse = ref.Book, ref.Chapter, ref.Verse
			r.verse = ref.Verse
			return
		}
	}

	s.Book, s.Chapter, s.Verse = r.book, r.chapter, r.verse
}
