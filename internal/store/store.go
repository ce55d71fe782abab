// Package store persists analysis snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	"github.com/FocuswithJustin/NarrativeCues/core/characters"
	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/core/intensity"
	"github.com/FocuswithJustin/NarrativeCues/core/relations"
	"github.com/FocuswithJustin/NarrativeCues/core/sqlite"
	"github.com/FocuswithJustin/NarrativeCues/internal/archive"
	"github.com/FocuswithJustin/NarrativeCues/internal/logging"
	"github.com/FocuswithJustin/NarrativeCues/internal/store/migrations"
)

// ErrAlreadyExists is returned when a snapshot ID is already stored.
var ErrAlreadyExists = errors.New("snapshot already exists")

// Store persists snapshots in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite snapshot store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.NewValidation("path", "storage path is required")
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, "open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(err, "ping sqlite db")
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenReadOnly opens an existing store without write access. Migrations are
// not applied, so the database must have been created by Open.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.NewValidation("path", "storage path is required")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("database", path)
		}
		return nil, apperrors.NewIO("stat", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, apperrors.Wrap(err, "open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrapf(err, "ping sqlite db %s", path)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes snap in one transaction.
func (s *Store) Save(ctx context.Context, snap *archive.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := snap.Manifest
	if strings.TrimSpace(m.ID) == "" {
		return apperrors.NewValidation("id", "snapshot id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (
		   id, version, source, sha256, blake3, created_at,
		   sentences, skipped, character_count, cue_count, chapter_count
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Version, m.Source, m.Fingerprint.SHA256, m.Fingerprint.BLAKE3, toMillis(m.CreatedAt),
		m.Sentences, m.Skipped, m.Characters, m.Cues, m.Chapters,
	)
	if err != nil {
		if sqlite.IsConstraintViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := saveCharacters(ctx, tx, m.ID, snap.Characters); err != nil {
		return err
	}
	if err := saveCues(ctx, tx, m.ID, snap.Cues); err != nil {
		return err
	}
	for _, ch := range snap.Chapters {
		if err := saveChapter(ctx, tx, m.ID, ch); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	logging.SnapshotWritten("sqlite", m.ID, s.path,
		"characters", len(snap.Characters),
		"cues", len(snap.Cues),
	)
	return nil
}

func saveCharacters(ctx context.Context, tx *sql.Tx, id string, chars []characters.Character) error {
	for i, ch := range chars {
		variants, err := json.Marshal(ch.Variants)
		if err != nil {
			return fmt.Errorf("marshal variants of %s: %w", ch.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO characters (snapshot_id, position, name, variants, mentions, background)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, ch.Name, string(variants), ch.Mentions, ch.Background,
		); err != nil {
			return fmt.Errorf("insert character %s: %w", ch.Name, err)
		}
		for j, o := range ch.Occurrences {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO occurrences (
				   snapshot_id, character, position, sentence_id, chapter, verse, token_id, form, lemma, role
				 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, ch.Name, j, o.SentenceID, o.Chapter, o.Verse, o.TokenID, o.Form, o.Lemma, o.Role,
			); err != nil {
				return fmt.Errorf("insert occurrence of %s: %w", ch.Name, err)
			}
		}
	}
	return nil
}

func saveCues(ctx context.Context, tx *sql.Tx, id string, all []cues.Cue) error {
	for i, c := range all {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cues (
			   snapshot_id, position, category, keyword, sentence_id, chapter, verse, text, description
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, c.Category.String(), c.Keyword, c.SentenceID, c.Chapter, c.Verse, c.Text, c.Description,
		); err != nil {
			return fmt.Errorf("insert cue %d: %w", i, err)
		}
	}
	return nil
}

func saveChapter(ctx context.Context, tx *sql.Tx, id string, ch archive.Chapter) error {
	names, err := json.Marshal(ch.CharacterNames)
	if err != nil {
		return fmt.Errorf("marshal names of chapter %d: %w", ch.Chapter, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chapters (snapshot_id, chapter, verse_count, sentence_count, character_names, cue_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, ch.Chapter, ch.VerseCount, ch.SentenceCount, string(names), ch.CueCount,
	); err != nil {
		return fmt.Errorf("insert chapter %d: %w", ch.Chapter, err)
	}

	for i, e := range ch.Edges {
		verses, err := json.Marshal(e.Verses)
		if err != nil {
			return fmt.Errorf("marshal edge verses: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (snapshot_id, chapter, position, source, target, kind, strength, verses)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, ch.Chapter, i, e.Source, e.Target, string(e.Kind), e.Strength, string(verses),
		); err != nil {
			return fmt.Errorf("insert edge %s-%s: %w", e.Source, e.Target, err)
		}
	}

	for _, v := range ch.Intensity {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO intensity (snapshot_id, chapter, verse, score, characters, cues, text_length, spirit)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, v.Chapter, v.Verse, v.Score, v.Characters, v.Cues, v.TextLength, v.Spirit,
		); err != nil {
			return fmt.Errorf("insert intensity %d:%d: %w", v.Chapter, v.Verse, err)
		}
	}
	return nil
}

const manifestColumns = `id, version, source, sha256, blake3, created_at,
	sentences, skipped, character_count, cue_count, chapter_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanManifest(row scanner) (archive.Manifest, error) {
	var (
		m       archive.Manifest
		created int64
	)
	if err := row.Scan(&m.ID, &m.Version, &m.Source, &m.Fingerprint.SHA256, &m.Fingerprint.BLAKE3, &created,
		&m.Sentences, &m.Skipped, &m.Characters, &m.Cues, &m.Chapters); err != nil {
		return archive.Manifest{}, err
	}
	m.CreatedAt = fromMillis(created)
	return m, nil
}

// List returns every stored manifest, newest first.
func (s *Store) List(ctx context.Context) ([]archive.Manifest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+manifestColumns+` FROM snapshots ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []archive.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Manifest returns one stored manifest.
func (s *Store) Manifest(ctx context.Context, id string) (archive.Manifest, error) {
	m, err := scanManifest(s.db.QueryRowContext(ctx,
		`SELECT `+manifestColumns+` FROM snapshots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return archive.Manifest{}, apperrors.NewNotFound("snapshot", id)
	}
	if err != nil {
		return archive.Manifest{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return m, nil
}

// FindByFingerprint returns the manifests of snapshots taken from a corpus
// with the given SHA-256, newest first.
func (s *Store) FindByFingerprint(ctx context.Context, fp cas.HashResult) ([]archive.Manifest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+manifestColumns+` FROM snapshots WHERE sha256 = ? ORDER BY created_at DESC, id`, fp.SHA256)
	if err != nil {
		return nil, fmt.Errorf("find snapshots: %w", err)
	}
	defer rows.Close()

	var out []archive.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Load reads a full snapshot back.
func (s *Store) Load(ctx context.Context, id string) (*archive.Snapshot, error) {
	m, err := s.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := &archive.Snapshot{Manifest: m}

	if snap.Characters, err = s.loadCharacters(ctx, id); err != nil {
		return nil, err
	}
	if snap.Cues, err = s.loadCues(ctx, id); err != nil {
		return nil, err
	}
	if snap.Chapters, err = s.loadChapters(ctx, id); err != nil {
		return nil, err
	}
	return snap, nil
}

// Delete removes a snapshot and everything derived from it.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n == 0 {
		return apperrors.NewNotFound("snapshot", id)
	}
	return nil
}

func (s *Store) loadCharacters(ctx context.Context, id string) ([]characters.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, variants, mentions, background FROM characters WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load characters: %w", err)
	}
	var out []characters.Character
	for rows.Next() {
		var (
			ch       characters.Character
			variants string
		)
		if err := rows.Scan(&ch.Name, &variants, &ch.Mentions, &ch.Background); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan character: %w", err)
		}
		if err := json.Unmarshal([]byte(variants), &ch.Variants); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode variants of %s: %w", ch.Name, err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		occ, err := s.loadOccurrences(ctx, id, out[i].Name)
		if err != nil {
			return nil, err
		}
		out[i].Occurrences = occ
	}
	return out, nil
}

func (s *Store) loadOccurrences(ctx context.Context, id, name string) ([]characters.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sentence_id, chapter, verse, token_id, form, lemma, role
		 FROM occurrences WHERE snapshot_id = ? AND character = ? ORDER BY position`, id, name)
	if err != nil {
		return nil, fmt.Errorf("load occurrences of %s: %w", name, err)
	}
	defer rows.Close()

	var out []characters.Occurrence
	for rows.Next() {
		var o characters.Occurrence
		if err := rows.Scan(&o.SentenceID, &o.Chapter, &o.Verse, &o.TokenID, &o.Form, &o.Lemma, &o.Role); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) loadCues(ctx context.Context, id string) ([]cues.Cue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, keyword, sentence_id, chapter, verse, text, description
		 FROM cues WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load cues: %w", err)
	}
	defer rows.Close()

	var out []cues.Cue
	for rows.Next() {
		var (
			c   cues.Cue
			cat string
		)
		if err := rows.Scan(&cat, &c.Keyword, &c.SentenceID, &c.Chapter, &c.Verse, &c.Text, &c.Description); err != nil {
			return nil, fmt.Errorf("scan cue: %w", err)
		}
		if c.Category, err = cues.ParseCategory(cat); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) loadChapters(ctx context.Context, id string) ([]archive.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter, verse_count, sentence_count, character_names, cue_count
		 FROM chapters WHERE snapshot_id = ? ORDER BY chapter`, id)
	if err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	var out []archive.Chapter
	for rows.Next() {
		var (
			ch    archive.Chapter
			names string
		)
		if err := rows.Scan(&ch.Chapter, &ch.VerseCount, &ch.SentenceCount, &names, &ch.CueCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &ch.CharacterNames); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode names of chapter %d: %w", ch.Chapter, err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Edges, err = s.loadEdges(ctx, id, out[i].Chapter); err != nil {
			return nil, err
		}
		if out[i].Intensity, err = s.LoadIntensity(ctx, id, out[i].Chapter); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadEdges(ctx context.Context, id string, chapter int) ([]relations.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target, kind, strength, verses
		 FROM edges WHERE snapshot_id = ? AND chapter = ? ORDER BY position`, id, chapter)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	var out []relations.Edge
	for rows.Next() {
		var (
			e            relations.Edge
			kind, verses string
		)
		if err := rows.Scan(&e.Source, &e.Target, &kind, &e.Strength, &verses); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Kind = relations.Kind(kind)
		if err := json.Unmarshal([]byte(verses), &e.Verses); err != nil {
			return nil, fmt.Errorf("decode edge verses: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadIntensity returns the stored verse scores of one chapter in verse order.
func (s *Store) LoadIntensity(ctx context.Context, id string, chapter int) ([]intensity.VerseScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter, verse, score, characters, cues, text_length, spirit
		 FROM intensity WHERE snapshot_id = ? AND chapter = ? ORDER BY verse`, id, chapter)
	if err != nil {
		return nil, fmt.Errorf("load intensity: %w", err)
	}
	defer rows.Close()

	var out []intensity.VerseScore
	for rows.Next() {
		var v intensity.VerseScore
		if err := rows.Scan(&v.Chapter, &v.Verse, &v.Score, &v.Characters, &v.Cues, &v.TextLength, &v.Spirit); err != nil {
			return nil, fmt.Errorf("scan intensity: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
