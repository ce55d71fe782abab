package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/core/sqlite"
	"github.com/FocuswithJustin/NarrativeCues/internal/analysis"
)

// AnalyzeCmd sends a verse range to the external analyzer.
type AnalyzeCmd struct {
	Corpus  string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Chapter int    `short:"c" default:"1" help:"Chapter number"`
	Start   int    `default:"1" help:"First verse"`
	End     int    `help:"Last verse (defaults to start)"`
	Command string `help:"Analyzer command line; overrides NARRATIVE_ANALYZER_CMD"`
	DB      string `help:"SQLite database caching analyzer results; overrides NARRATIVE_DB" type:"path"`
	Refresh bool   `help:"Ignore and replace any cached result"`
	JSON    bool   `help:"Output as JSON"`
}

func (c *AnalyzeCmd) Run(app *App) error {
	argv := app.Config.AnalyzerArgv()
	if c.Command != "" {
		argv = strings.Fields(c.Command)
	}
	if len(argv) == 0 {
		return apperrors.NewValidation("command", "no analyzer command; set NARRATIVE_ANALYZER_CMD or --command")
	}
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
	text := st.TextRange(c.Chapter, c.Start, end)
	ref := fmt.Sprintf("%d:%d", c.Chapter, c.Start)
	if end != c.Start {
		ref = fmt.Sprintf("%s-%d", ref, end)
	}

	opts := []analysis.ClientOption{
		analysis.WithTimeout(app.Config.AnalyzerTimeout),
		analysis.WithRetries(app.Config.AnalyzerRetries),
		analysis.WithCacheTTL(app.Config.AnalyzerCacheTTL),
	}
	if app.Config.AnalyzerCacheTTL > 0 {
		s, err := app.openStore(c.DB, false)
		if err != nil {
			return err
		}
		defer s.Close()
		opts = append(opts, analysis.WithResultStore(s))
	}
	client := analysis.NewClient(analysis.NewCommandAnalyzer(argv...), opts...)
	if c.Refresh {
		if err := client.Forget(app.Ctx, text, ref); err != nil {
			return err
		}
	}

	res, err := client.Analyze(app.Ctx, text, ref)
	if err != nil {
		return err
	}
	if c.JSON {
		return app.printJSON(res)
	}
	cached := ""
	if res.Cached {
		cached = ", cached"
	}
	app.printf("Request %s (%s, %d attempt(s)%s)\n", res.RequestID, ref, res.Attempts, cached)
	printAnalyzedCues(app, res.Cues)
	return nil
}

// ExtractCuesCmd pulls the cue list out of a raw analyzer response.
type ExtractCuesCmd struct {
	Path string `arg:"" optional:"" default:"-" help:"Response file, or - for stdin"`
	JSON bool   `help:"Output as JSON"`
}

func (c *ExtractCuesCmd) Run(app *App) error {
	var (
		raw []byte
		err error
	)
	if c.Path == "-" {
		raw, err = io.ReadAll(app.In)
	} else {
		raw, err = os.ReadFile(c.Path)
	}
	if err != nil {
		return apperrors.NewIO("read response", c.Path, err)
	}

	found, err := analysis.ExtractCues(string(raw))
	if err != nil {
		return apperrors.NewParse("analyzer response", c.Path, err.Error())
	}
	if c.JSON {
		return app.printJSON(analysis.Response{Cues: found})
	}
	printAnalyzedCues(app, found)
	return nil
}

func printAnalyzedCues(app *App, found []analysis.AnalyzedCue) {
	for _, cue := range found {
		name := cue.Type
		if cat, ok := cue.Category(); ok {
			name = cat.String()
		} else {
			name += " (unknown)"
		}
		app.printf("%-10s %-12s %.2f  %s\n", name, cue.Location, float64(cue.Confidence), cue.Explanation)
	}
}

// SchemaCmd prints the response schema analyzers are asked to follow.
type SchemaCmd struct{}

func (c *SchemaCmd) Run(app *App) error {
	schema, err := analysis.ResponseSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.Out, "%s\n", schema)
	return err
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	app.printf("narrative version %s\n", version)
	app.printf("categories: ")
	names := make([]string, 0, len(cues.All()))
	for _, cat := range cues.All() {
		names = append(names, cat.String())
	}
	app.printf("%s\n", strings.Join(names, ", "))
	info := sqlite.GetInfo()
	app.printf("sqlite: %s (%s)\n", info.DriverType, info.Package)
	return nil
}
