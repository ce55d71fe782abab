package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/core/intensity"
	"github.com/FocuswithJustin/NarrativeCues/core/relations"
	"github.com/FocuswithJustin/NarrativeCues/internal/archive"
	"github.com/FocuswithJustin/NarrativeCues/internal/graphml"
)

// SummaryCmd summarises one chapter.
type SummaryCmd struct {
	Corpus  string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Chapter int    `short:"c" default:"1" help:"Chapter number"`
	JSON    bool   `help:"Output as JSON"`
}

func (c *SummaryCmd) Run(app *App) error {
	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	sum := st.ChapterSummary(c.Chapter)
	if c.JSON {
		return app.printJSON(sum)
	}

	app.printf("Chapter %d\n", sum.Chapter)
	app.printf("  Verses:     %d\n", sum.VerseCount)
	app.printf("  Sentences:  %d\n", sum.SentenceCount)
	app.printf("  Characters: %s\n", strings.Join(sum.CharacterNames, ", "))
	app.printf("  Cues:       %d\n", len(sum.Cues))
	for _, cat := range cues.All() {
		if n := len(cues.OfCategory(sum.Cues, cat)); n > 0 {
			app.printf("    %-12s %d\n", cat, n)
		}
	}
	return nil
}

// TextCmd prints the text of a verse range.
type TextCmd struct {
	Corpus  string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Chapter int    `short:"c" default:"1" help:"Chapter number"`
	Start   int    `default:"1" help:"First verse"`
	End     int    `help:"Last verse (defaults to start)"`
}

func (c *TextCmd) Run(app *App) error {
	end := c.End
	if end == 0 {
		end = c.Start
	}
	if end < c.Start {
		return apperrors.NewValidation("end", "must not be before start")
	}
	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	app.printf("%s\n", st.TextRange(c.Chapter, c.Start, end))
	return nil
}

// CharactersCmd lists resolved characters.
type CharactersCmd struct {
	Corpus  string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Chapter int    `short:"c" help:"Only characters present in this chapter"`
	JSON    bool   `help:"Output as JSON"`
}

type characterRow struct {
	Name       string `json:"name"`
	Mentions   int    `json:"mentions"`
	Background bool   `json:"background,omitempty"`
}

func (c *CharactersCmd) Run(app *App) error {
	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	chars := st.Characters()
	if c.Chapter > 0 {
		chars = st.Roster().InChapter(c.Chapter)
	}

	rows := make([]characterRow, 0, len(chars))
	for _, ch := range chars {
		n := ch.Mentions
		if c.Chapter > 0 {
			n = ch.MentionsIn(c.Chapter)
		}
		rows = append(rows, characterRow{Name: ch.Name, Mentions: n, Background: ch.Background})
	}
	if c.JSON {
		return app.printJSON(rows)
	}
	for _, r := range rows {
		marker := ""
		if r.Background {
			marker = " (background)"
		}
		app.printf("%-16s %4d%s\n", r.Name, r.Mentions, marker)
	}
	return nil
}

// CharacterCmd shows one character.
type CharacterCmd struct {
	Corpus string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Name   string `arg:"" help:"Canonical character name"`
	JSON   bool   `help:"Output as JSON"`
}

func (c *CharacterCmd) Run(app *App) error {
	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	ch, ok := st.Character(c.Name)
	if !ok {
		return apperrors.NewNotFound("character", c.Name)
	}
	if c.JSON {
		return app.printJSON(ch)
	}

	app.printf("%s\n", ch.Name)
	app.printf("  Variants: %s\n", strings.Join(ch.Variants, ", "))
	app.printf("  Mentions: %d\n", ch.Mentions)
	for _, o := range ch.Occurrences {
		role := o.Role
		if role == "" {
			role = "-"
		}
		app.printf("  %d:%d  %-16s %s\n", o.Chapter, o.Verse, o.Form, role)
	}
	return nil
}

// CuesCmd lists narrative cues.
type CuesCmd struct {
	Corpus   string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Chapter  int    `short:"c" help:"Only cues in this chapter"`
	Category string `help:"Only cues of this category (primacy, causal, focalization, absence, prolepsis)"`
	JSON     bool   `help:"Output as JSON"`
}

func (c *CuesCmd) Run(app *App) error {
	var (
		cat    cues.Category
		filter = c.Category != ""
	)
	if filter {
		parsed, err := cues.ParseCategory(c.Category)
		if err != nil {
			return err
		}
		cat = parsed
	}

	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	found := st.Cues()
	if c.Chapter > 0 {
		found = st.CuesInChapter(c.Chapter)
	}
	if filter {
		found = cues.OfCategory(found, cat)
	}
	if found == nil {
		found = []cues.Cue{}
	}
	if c.JSON {
		return app.printJSON(found)
	}
	for _, cue := range found {
		app.printf("%d:%d  %-10s %-14s %s\n", cue.Chapter, cue.Verse, cue.Category, cue.Keyword, cue.Description)
	}
	return nil
}

// GraphCmd prints the relationship graph of a chapter.
type GraphCmd struct {
	Corpus   string `arg:"" optional:"" help:"CoNLL-U corpus file"`
	Chapter  int    `short:"c" default:"1" help:"Chapter number"`
	Snapshot string `help:"Read the graph from a snapshot archive, stored snapshot ID or corpus SHA-256"`
	GraphML  string `name:"graphml" help:"Read the graph from a GraphML file"`
	DB       string `help:"SQLite database path for stored snapshots; overrides NARRATIVE_DB" type:"path"`
	Format   string `enum:"text,json,dot,graphml" default:"text" help:"Output format (text, json, dot, graphml)"`
}

func (c *GraphCmd) Run(app *App) error {
	chapter, edges, err := c.edges(app)
	if err != nil {
		return err
	}
	if edges == nil {
		edges = []relations.Edge{}
	}

	switch c.Format {
	case "json":
		return app.printJSON(edges)
	case "graphml":
		return graphml.Encode(app.Out, graphml.New(chapter, edges))
	case "dot":
		app.printf("digraph chapter%d {\n", chapter)
		for _, e := range edges {
			if e.Kind == relations.CoOccurrence {
				app.printf("  %q -> %q [dir=none, label=%d];\n", e.Source, e.Target, e.Strength)
			} else {
				app.printf("  %q -> %q [label=%q];\n", e.Source, e.Target, fmt.Sprintf("%s %d", e.Kind, e.Strength))
			}
		}
		app.printf("}\n")
	default:
		for _, e := range edges {
			arrow := "--"
			if e.Kind == relations.Causal {
				arrow = "->"
			}
			app.printf("%s %s %s  %s x%d %v\n", e.Source, arrow, e.Target, e.Kind, e.Strength, e.Verses)
		}
	}
	return nil
}

// edges reads the chapter graph from whichever source was given. A GraphML
// file carries its own chapter number.
func (c *GraphCmd) edges(app *App) (int, []relations.Edge, error) {
	if err := oneSource(c.Corpus, c.Snapshot, c.GraphML); err != nil {
		return 0, nil, err
	}
	switch {
	case c.GraphML != "":
		f, err := os.Open(c.GraphML)
		if err != nil {
			return 0, nil, apperrors.NewIO("open", c.GraphML, err)
		}
		defer f.Close()
		g, err := graphml.Decode(f)
		if err != nil {
			return 0, nil, err
		}
		return g.Chapter, g.Edges, nil
	case c.Snapshot != "":
		snap, err := app.loadSnapshot(c.Snapshot, c.DB)
		if err != nil {
			return 0, nil, err
		}
		return c.Chapter, chapterOf(snap, c.Chapter).Edges, nil
	default:
		st, err := app.load(c.Corpus)
		if err != nil {
			return 0, nil, err
		}
		return c.Chapter, st.Relationships(c.Chapter), nil
	}
}

// IntensityCmd scores narrative intensity per verse.
type IntensityCmd struct {
	Corpus   string `arg:"" optional:"" help:"CoNLL-U corpus file"`
	Chapter  int    `short:"c" default:"1" help:"Chapter number"`
	Verse    int    `short:"v" help:"Score a single verse"`
	Snapshot string `help:"Read scores from a snapshot archive, stored snapshot ID or corpus SHA-256"`
	DB       string `help:"SQLite database path for stored snapshots; overrides NARRATIVE_DB" type:"path"`
	JSON     bool   `help:"Output as JSON"`
}

func (c *IntensityCmd) Run(app *App) error {
	scores, err := c.scores(app)
	if err != nil {
		return err
	}
	if scores == nil {
		scores = []intensity.VerseScore{}
	}
	if c.JSON {
		return app.printJSON(scores)
	}
	for _, s := range scores {
		app.printf("%d:%-4d %.3f  %s\n", s.Chapter, s.Verse, s.Score, bar(s.Score))
	}
	return nil
}

func (c *IntensityCmd) scores(app *App) ([]intensity.VerseScore, error) {
	if err := oneSource(c.Corpus, c.Snapshot); err != nil {
		return nil, err
	}
	if c.Snapshot == "" {
		st, err := app.load(c.Corpus)
		if err != nil {
			return nil, err
		}
		if c.Verse > 0 {
			return []intensity.VerseScore{st.VerseIntensity(c.Chapter, c.Verse)}, nil
		}
		return st.Intensity(c.Chapter), nil
	}

	var stored []intensity.VerseScore
	if archive.IsSupportedFormat(c.Snapshot) {
		snap, err := archive.Read(c.Snapshot)
		if err != nil {
			return nil, err
		}
		stored = chapterOf(snap, c.Chapter).Intensity
	} else {
		s, err := app.openStore(c.DB, true)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		m, err := app.resolveManifest(s, c.Snapshot)
		if err != nil {
			return nil, err
		}
		if stored, err = s.LoadIntensity(app.Ctx, m.ID, c.Chapter); err != nil {
			return nil, err
		}
	}
	if c.Verse == 0 {
		return stored, nil
	}
	for _, v := range stored {
		if v.Verse == c.Verse {
			return []intensity.VerseScore{v}, nil
		}
	}
	return nil, apperrors.NewNotFound("verse", fmt.Sprintf("%d:%d", c.Chapter, c.Verse))
}

// oneSource checks that exactly one input was named.
func oneSource(sources ...string) error {
	n := 0
	for _, s := range sources {
		if s != "" {
			n++
		}
	}
	if n != 1 {
		return apperrors.NewValidation("source", "name exactly one input: a corpus file or one of the source flags")
	}
	return nil
}

func bar(score float64) string {
	return strings.Repeat("#", int(score*20+0.5))
}
