// Command narrative reads a CoNLL-U corpus and reports characters, narrative
// cues, relationships and intensity per chapter.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/NarrativeCues/core/corpus"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/config"
	"github.com/FocuswithJustin/NarrativeCues/internal/logging"
	"github.com/FocuswithJustin/NarrativeCues/internal/validation"
)

const version = "0.1.0"

// CLI defines the command-line interface for narrative.
type CLI struct {
	// Global flags
	Strategy  string `help:"Character matching strategy (lemma, surface); overrides NARRATIVE_MATCH_STRATEGY"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error); overrides NARRATIVE_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format (json, text); overrides NARRATIVE_LOG_FORMAT"`

	Summary    SummaryCmd     `cmd:"" help:"Summarise one chapter"`
	Text       TextCmd        `cmd:"" help:"Print the text of a verse range"`
	Characters CharactersCmd  `cmd:"" help:"List resolved characters"`
	Character  CharacterCmd   `cmd:"" help:"Show one character and its occurrences"`
	Cues       CuesCmd        `cmd:"" help:"List narrative cues"`
	Graph      GraphCmd       `cmd:"" help:"Print the relationship graph of a chapter"`
	Intensity  IntensityCmd   `cmd:"" help:"Score narrative intensity per verse"`
	Export     ExportGroup    `cmd:"" help:"Export an analysis (sqlite, snapshot)"`
	Snapshot   SnapshotGroup  `cmd:"" help:"Inspect and manage stored snapshots"`
	Analyze    AnalyzeCmd     `cmd:"" help:"Send a verse range to the external analyzer"`
	Extract    ExtractCuesCmd `cmd:"" name:"extract-cues" help:"Extract analyzer cues from a raw response"`
	Schema     SchemaCmd      `cmd:"" help:"Print the JSON schema analyzers must answer with"`
	Version    VersionCmd     `cmd:"" help:"Print version information"`
}

// ExportGroup contains export operations.
type ExportGroup struct {
	SQLite   ExportSQLiteCmd   `cmd:"" name:"sqlite" help:"Write the analysis into a SQLite database"`
	Snapshot ExportSnapshotCmd `cmd:"" help:"Write the analysis as a compressed snapshot archive"`
}

// SnapshotGroup contains snapshot inspection operations.
type SnapshotGroup struct {
	Info   SnapshotInfoCmd   `cmd:"" help:"Show the manifest of a snapshot"`
	Show   SnapshotShowCmd   `cmd:"" help:"Show a full snapshot"`
	List   SnapshotListCmd   `cmd:"" help:"List snapshots stored in the database"`
	Delete SnapshotDeleteCmd `cmd:"" help:"Delete a snapshot from the database"`
}

// App carries what every command needs.
type App struct {
	Ctx    context.Context
	Config config.Config
	In     io.Reader
	Out    io.Writer
	Parser *corpus.Parser
}

// newApp applies flag overrides to cfg and builds the corpus parser.
func newApp(ctx context.Context, cfg config.Config, cli *CLI, in io.Reader, out io.Writer) (*App, error) {
	if cli.Strategy != "" {
		cfg.Strategy = cli.Strategy
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.LogFormat = cli.LogFormat
	}
	strategy, err := config.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	return &App{
		Ctx:    ctx,
		Config: cfg,
		In:     in,
		Out:    out,
		Parser: corpus.New(corpus.WithStrategy(strategy)),
	}, nil
}

// load parses the corpus at path.
func (a *App) load(path string) (*corpus.State, error) {
	if err := validation.CheckCorpusFile(path); err != nil {
		return nil, apperrors.NewLoad(path, err)
	}
	return a.Parser.LoadFile(a.Ctx, path)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "narrative: %v\n", err)
		os.Exit(2)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("narrative"),
		kong.Description("Narrative cue analysis for CoNLL-U annotated scripture"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, &cli, os.Stdin, os.Stdout)
	kctx.FatalIfErrorf(err)
	err = kctx.Run(app)
	kctx.FatalIfErrorf(err)
}
