package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/archive"
	"github.com/FocuswithJustin/NarrativeCues/internal/logging"
	"github.com/FocuswithJustin/NarrativeCues/internal/validation"
)

// ExportSQLiteCmd writes a snapshot of the corpus into SQLite.
type ExportSQLiteCmd struct {
	Corpus string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	DB     string `help:"SQLite database path; overrides NARRATIVE_DB" type:"path"`
	Force  bool   `help:"Store a new snapshot even if this corpus is already stored"`
}

func (c *ExportSQLiteCmd) Run(app *App) error {
	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	s, err := app.openStore(c.DB, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if !c.Force {
		found, err := s.FindByFingerprint(app.Ctx, st.Fingerprint())
		if err != nil {
			return err
		}
		if len(found) > 0 {
			logging.Info("snapshot_exists", "snapshot_id", found[0].ID, "source", c.Corpus)
			app.printf("%s\n", found[0].ID)
			return nil
		}
	}

	snap := archive.NewSnapshot(st, filepath.Base(c.Corpus))
	if err := s.Save(app.Ctx, snap); err != nil {
		return err
	}
	app.printf("%s\n", snap.Manifest.ID)
	return nil
}

// ExportSnapshotCmd writes a compressed snapshot archive.
type ExportSnapshotCmd struct {
	Corpus string `arg:"" help:"CoNLL-U corpus file" type:"existingfile"`
	Out    string `short:"o" help:"Output path (.tar.xz or .tar.gz); defaults to <corpus>.snapshot.tar.xz" type:"path"`
}

func (c *ExportSnapshotCmd) Run(app *App) error {
	st, err := app.load(c.Corpus)
	if err != nil {
		return err
	}
	out := c.Out
	if out == "" {
		out = archive.SnapshotName(c.Corpus)
	}
	if err := validation.ValidatePath(out); err != nil {
		return apperrors.NewValidation("out", err.Error())
	}
	snap := archive.NewSnapshot(st, filepath.Base(c.Corpus))
	if err := archive.Write(out, snap); err != nil {
		return err
	}
	app.printf("%s\n", out)
	return nil
}

// SnapshotInfoCmd prints a snapshot manifest.
type SnapshotInfoCmd struct {
	Ref  string `arg:"" help:"Snapshot archive, stored snapshot ID or corpus SHA-256"`
	DB   string `help:"SQLite database path for stored snapshots; overrides NARRATIVE_DB" type:"path"`
	JSON bool   `help:"Output as JSON"`
}

func (c *SnapshotInfoCmd) Run(app *App) error {
	m, err := c.manifest(app)
	if err != nil {
		return err
	}
	if c.JSON {
		return app.printJSON(m)
	}
	printManifest(app, m)
	return nil
}

func (c *SnapshotInfoCmd) manifest(app *App) (archive.Manifest, error) {
	if archive.IsSupportedFormat(c.Ref) {
		if _, err := os.Stat(c.Ref); err != nil {
			return archive.Manifest{}, apperrors.NewNotFound("snapshot archive", c.Ref)
		}
		m, err := archive.Info(c.Ref)
		if err != nil {
			return archive.Manifest{}, err
		}
		return *m, nil
	}
	s, err := app.openStore(c.DB, true)
	if err != nil {
		return archive.Manifest{}, err
	}
	defer s.Close()
	return app.resolveManifest(s, c.Ref)
}

// SnapshotShowCmd prints a full snapshot.
type SnapshotShowCmd struct {
	Ref  string `arg:"" help:"Snapshot archive, stored snapshot ID or corpus SHA-256"`
	DB   string `help:"SQLite database path for stored snapshots; overrides NARRATIVE_DB" type:"path"`
	JSON bool   `help:"Output as JSON"`
}

func (c *SnapshotShowCmd) Run(app *App) error {
	snap, err := app.loadSnapshot(c.Ref, c.DB)
	if err != nil {
		return err
	}
	if c.JSON {
		return app.printJSON(snap)
	}

	printManifest(app, snap.Manifest)
	app.printf("\n")
	for _, ch := range snap.Chapters {
		app.printf("Chapter %d: %d verses, %d sentences, %d cues, %d edges\n",
			ch.Chapter, ch.VerseCount, ch.SentenceCount, ch.CueCount, len(ch.Edges))
		if len(ch.CharacterNames) > 0 {
			app.printf("  %s\n", strings.Join(ch.CharacterNames, ", "))
		}
	}
	app.printf("\n")
	for _, ch := range snap.Characters {
		app.printf("%-16s %4d\n", ch.Name, ch.Mentions)
	}
	return nil
}

// SnapshotDeleteCmd removes a stored snapshot.
type SnapshotDeleteCmd struct {
	ID string `arg:"" help:"Stored snapshot ID"`
	DB string `help:"SQLite database path; overrides NARRATIVE_DB" type:"path"`
}

func (c *SnapshotDeleteCmd) Run(app *App) error {
	s, err := app.openStore(c.DB, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(app.Ctx, c.ID); err != nil {
		return err
	}
	app.printf("deleted %s\n", c.ID)
	return nil
}

// SnapshotListCmd lists the snapshots in a SQLite database.
type SnapshotListCmd struct {
	DB   string `help:"SQLite database path; overrides NARRATIVE_DB" type:"path"`
	JSON bool   `help:"Output as JSON"`
}

func (c *SnapshotListCmd) Run(app *App) error {
	s, err := app.openStore(c.DB, true)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.List(app.Ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []archive.Manifest{}
	}
	if c.JSON {
		return app.printJSON(list)
	}
	for _, m := range list {
		app.printf("%s  %s  %s  %d characters, %d cues\n",
			m.ID, m.CreatedAt.Format(time.RFC3339), m.Source, m.Characters, m.Cues)
	}
	return nil
}

func printManifest(app *App, m archive.Manifest) {
	app.printf("Snapshot %s\n", m.ID)
	app.printf("  Version:     %s\n", m.Version)
	if m.Source != "" {
		app.printf("  Source:      %s\n", m.Source)
	}
	app.printf("  Created:     %s\n", m.CreatedAt.Format(time.RFC3339))
	app.printf("  SHA-256:     %s\n", m.Fingerprint.SHA256)
	app.printf("  BLAKE3:      %s\n", m.Fingerprint.BLAKE3)
	app.printf("  Sentences:   %d (%d lines skipped)\n", m.Sentences, m.Skipped)
	app.printf("  Chapters:    %d\n", m.Chapters)
	app.printf("  Characters:  %d\n", m.Characters)
	app.printf("  Cues:        %d\n", m.Cues)
}
