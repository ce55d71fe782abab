// Package corpus runs the full pipeline over an annotated corpus and exposes
// the frozen result.
//
// A Parser holds configuration only. Every parse builds a fresh State; a
// State is never modified after construction and is safe for concurrent
// readers.
package corpus

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	"github.com/FocuswithJustin/NarrativeCues/core/characters"
	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/core/index"
	"github.com/FocuswithJustin/NarrativeCues/core/intensity"
	"github.com/FocuswithJustin/NarrativeCues/core/ref"
	"github.com/FocuswithJustin/NarrativeCues/internal/logging"
)

// Option configures a Parser.
type Option func(*Parser)

// WithFamilies replaces the character table.
func WithFamilies(families []characters.Family) Option {
	return func(p *Parser) {
		p.families = families
	}
}

// WithStrategy selects the character matching strategy.
func WithStrategy(s characters.Strategy) Option {
	return func(p *Parser) {
		p.strategy = s
	}
}

// WithWeights replaces the intensity weights.
func WithWeights(w intensity.Weights) Option {
	return func(p *Parser) {
		p.weights = w
	}
}

// Parser turns corpus text into a State.
type Parser struct {
	families []characters.Family
	strategy characters.Strategy
	weights  intensity.Weights
}

// New creates a Parser with the default character table, lemma-first
// matching and the default intensity weights.
func New(opts ...Option) *Parser {
	p := &Parser{
		families: characters.DefaultFamilies,
		strategy: characters.StrategyLemma,
		weights:  intensity.DefaultWeights,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a State from corpus text. Malformed lines are skipped and an
// empty corpus yields an empty State; Parse never fails.
func (p *Parser) Parse(text string) *State {
	return p.build("text", []byte(text))
}

// ParseBytes is Parse over a byte slice.
func (p *Parser) ParseBytes(data []byte) *State {
	return p.build("bytes", data)
}

// ParseReader reads the whole corpus from r. A read failure or an empty
// corpus is a LoadError.
func (p *Parser) ParseReader(ctx context.Context, r io.Reader) (*State, error) {
	return p.load(ctx, "reader", func() ([]byte, error) {
		return io.ReadAll(r)
	})
}

// LoadFile reads and parses the corpus at path. A missing, unreadable or
// empty file is a LoadError.
func (p *Parser) LoadFile(ctx context.Context, path string) (*State, error) {
	return p.load(ctx, path, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

func (p *Parser) load(ctx context.Context, source string, read func() ([]byte, error)) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewLoad(source, err)
	}
	data, err := read()
	if err != nil {
		return nil, apperrors.NewLoad(source, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewLoad(source, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.NewLoad(source, apperrors.ErrEmptyCorpus)
	}
	return p.build(source, data), nil
}

func (p *Parser) build(source string, data []byte) *State {
	start := time.Now()

	// Reading from memory cannot fail.
	doc, _ := conllu.Parse(bytes.NewReader(data), ref.NewResolver())
	if doc.Skipped > 0 {
		logging.LinesSkipped(source, doc.Skipped)
	}

	resolver := characters.NewResolver(p.families, p.strategy)
	st := &State{
		sentences:   doc.Sentences,
		skipped:     doc.Skipped,
		index:       index.Build(doc.Sentences),
		resolver:    resolver,
		roster:      resolver.Resolve(doc.Sentences),
		cues:        cues.Detect(doc.Sentences),
		scorer:      intensity.NewScorer(p.weights),
		fingerprint: cas.Sum(data),
	}

	logging.CorpusParsed(source, len(st.sentences), st.roster.Len(), len(st.cues), time.Since(start),
		"skipped", st.skipped)
	return st
}
