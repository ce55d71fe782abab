// Package conllu reads CoNLL-U style annotated corpora into sentences.
//
// Three line classes are recognised:
//
//   - comment lines starting with '#'; "# source = ..." and "# text = ..." are kept
//   - blank lines, which close the current sentence
//   - data lines of exactly ten tab-separated fields
//
// Multiword ranges ("1-2") and empty nodes ("1.1") are valid CoNLL-U but are
// not words; they are dropped silently. Reading is otherwise lenient: a data
// line with the wrong arity or a non-integer id or head is skipped and
// counted, never fatal.
package conllu

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const (
	// FieldSeparator separates the columns of a data line.
	FieldSeparator = "\t"
	// NumFields is the fixed arity of a data line.
	NumFields = 10
	// Empty is the placeholder for an absent value.
	Empty = "_"
)

// Token is one annotated word record. Tokens are immutable once parsed.
type Token struct {
	ID     int    `json:"id"`
	Form   string `json:"form"`
	Lemma  string `json:"lemma,omitempty"`
	UPOS   string `json:"upos,omitempty"`
	XPOS   string `json:"xpos,omitempty"`
	Feats  string `json:"feats,omitempty"`
	Head   int    `json:"head"`
	DepRel string `json:"deprel,omitempty"`
	Deps   string `json:"deps,omitempty"`
	Misc   string `json:"misc,omitempty"`
}

// Sentence is an ordered group of tokens bounded by blank lines.
//
// Chapter and Verse are zero until a Resolver assigns them; zero means
// unresolved. Sentences are read-only once Parse returns.
type Sentence struct {
	ID      int     `json:"id"`
	Tokens  []Token `json:"tokens"`
	Text    string  `json:"text,omitempty"`
	Source  string  `json:"source,omitempty"`
	Book    string  `json:"book,omitempty"`
	Chapter int     `json:"chapter,omitempty"`
	Verse   int     `json:"verse,omitempty"`
}

// Clone returns a copy of s that shares no memory with it.
func (s *Sentence) Clone() Sentence {
	out := *s
	out.Tokens = append([]Token(nil), s.Tokens...)
	return out
}

// ScanText joins the token forms with single spaces.
func (s *Sentence) ScanText() string {
	forms := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		forms[i] = tok.Form
	}
	return strings.Join(forms, " ")
}

// SurfaceText returns the "# text" literal when present, else ScanText.
func (s *Sentence) SurfaceText() string {
	if s.Text != "" {
		return s.Text
	}
	return s.ScanText()
}

// Resolver assigns book, chapter and verse to each sentence as it is closed.
// Parse calls Resolve once per sentence, in corpus order.
type Resolver interface {
	Resolve(s *Sentence)
}

// Document is the result of a parse.
type Document struct {
	Sentences []*Sentence
	// Count is the total number of sentences.
	Count int
	// Skipped counts data lines discarded as malformed.
	Skipped int
}

// Parse reads a corpus from r. res may be nil, in which case sentences are
// left unresolved. The only error returned is a read error from r.
func Parse(r io.Reader, res Resolver) (*Document, error) {
	p := &parser{res: res, doc: &Document{}}

	br := bufio.NewReader(r)
	first := true
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if first {
				line = strings.TrimPrefix(line, "\ufeff")
				first = false
			}
			p.line(line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	p.flush()

	p.doc.Count = len(p.doc.Sentences)
	return p.doc, nil
}

// ParseString parses an in-memory corpus. It never fails.
func ParseString(s string, res Resolver) *Document {
	doc, _ := Parse(strings.NewReader(s), res)
	return doc
}

type parser struct {
	res    Resolver
	doc    *Document
	tokens []Token
	text   string
	source string
}

func (p *parser) line(line string) {
	switch {
	case strings.TrimSpace(line) == "":
		p.flush()
	case strings.HasPrefix(line, "#"):
		p.comment(line)
	case IsNonWord(line):
		// not a word and not malformed
	default:
		tok, ok := ParseToken(line)
		if !ok {
			p.doc.Skipped++
			return
		}
		p.tokens = append(p.tokens, tok)
	}
}

func (p *parser) comment(line string) {
	key, value, ok := strings.Cut(strings.TrimPrefix(line, "#"), "=")
	if !ok {
		return
	}
	switch strings.TrimSpace(key) {
	case "source":
		p.source = strings.TrimSpace(value)
	case "text":
		p.text = strings.TrimSpace(value)
	}
}

func (p *parser) flush() {
	if len(p.tokens) > 0 {
		s := &Sentence{
			ID:     len(p.doc.Sentences) + 1,
			Tokens: p.tokens,
			Text:   p.text,
			Source: p.source,
		}
		if p.res != nil {
			p.res.Resolve(s)
		}
		p.doc.Sentences = append(p.doc.Sentences, s)
	}
	p.tokens = nil
	p.text = ""
}

// IsNonWord reports whether line is a well-formed multiword range or empty
// node record.
func IsNonWord(line string) bool {
	if strings.Count(line, FieldSeparator) != NumFields-1 {
		return false
	}
	id, _, _ := strings.Cut(line, FieldSeparator)
	for _, sep := range []string{"-", "."} {
		if lo, hi, ok := strings.Cut(id, sep); ok {
			return positive(lo) && positive(hi)
		}
	}
	return false
}

func positive(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// ParseToken parses a single data line. ok is false for lines that are not
// a well-formed word record.
func ParseToken(line string) (tok Token, ok bool) {
	fields := strings.Split(line, FieldSeparator)
	if len(fields) != NumFields {
		return Token{}, false
	}

	// Multiword ranges ("1-2") and empty nodes ("1.1") are not words.
	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 1 {
		return Token{}, false
	}
	head, ok := parseHead(fields[6])
	if !ok {
		return Token{}, false
	}

	return Token{
		ID:     id,
		Form:   fields[1],
		Lemma:  value(fields[2]),
		UPOS:   value(fields[3]),
		XPOS:   value(fields[4]),
		Feats:  value(fields[5]),
		Head:   head,
		DepRel: value(fields[7]),
		Deps:   value(fields[8]),
		Misc:   value(fields[9]),
	}, true
}

func parseHead(s string) (int, bool) {
	if s == Empty {
		return 0, true
	}
	head, err := strconv.Atoi(s)
	if err != nil || head < 0 {
		return 0, false
	}
	return head, true
}

func value(s string) string {
	if s == Empty {
		return ""
	}
	return s
}
