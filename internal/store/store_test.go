package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	"github.com/FocuswithJustin/NarrativeCues/core/corpus"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/analysis"
	"github.com/FocuswithJustin/NarrativeCues/internal/archive"
)

const sample = `# source = Mark 1
1	τὸ	ὁ	DET	_	_	2	det	_	Ref=MARK_1.12
2	πνεῦμα	πνεῦμα	NOUN	_	_	3	nsubj	_	Ref=MARK_1.12
3	ἐκβάλλει	ἐκβάλλω	VERB	_	_	0	root	_	Ref=MARK_1.12

# source = Mark 3
1	Ἰησοῦς	Ἰησοῦς	PROPN	_	_	3	nsubj	_	Ref=MARK_3.5
2	Σίμωνα	Σίμων	PROPN	_	_	3	obj	_	Ref=MARK_3.5
3	εἶδεν	ὁράω	VERB	_	_	0	root	_	Ref=MARK_3.5
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "narrative.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSnapshot(t *testing.T) *archive.Snapshot {
	t.Helper()
	return archive.NewSnapshot(corpus.New().Parse(sample), "sample.conllu")
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Open(blank) error = %v, want ErrInvalidInput", err)
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrative.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 2 {
			t.Errorf("open #%d: schema_migrations rows = %d, want 2", i+1, n)
		}
		s.Close()
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot(t)

	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, snap.Manifest.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !got.Manifest.CreatedAt.Equal(snap.Manifest.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.Manifest.CreatedAt, snap.Manifest.CreatedAt)
	}
	gm, wm := got.Manifest, snap.Manifest
	gm.CreatedAt = wm.CreatedAt
	if gm != wm {
		t.Errorf("Manifest = %+v, want %+v", gm, wm)
	}

	if len(got.Characters) != len(snap.Characters) {
		t.Fatalf("characters = %d, want %d", len(got.Characters), len(snap.Characters))
	}
	for i, want := range snap.Characters {
		have := got.Characters[i]
		if have.Name != want.Name || have.Mentions != want.Mentions || have.Background != want.Background {
			t.Errorf("character[%d] = %+v, want %+v", i, have, want)
		}
		if len(have.Occurrences) != len(want.Occurrences) {
			t.Errorf("%s occurrences = %d, want %d", want.Name, len(have.Occurrences), len(want.Occurrences))
			continue
		}
		for j := range want.Occurrences {
			if have.Occurrences[j] != want.Occurrences[j] {
				t.Errorf("%s occurrence[%d] = %+v, want %+v", want.Name, j, have.Occurrences[j], want.Occurrences[j])
			}
		}
	}

	if len(snap.Cues) == 0 {
		t.Fatal("sample produced no cues")
	}
	if !reflect.DeepEqual(got.Cues, snap.Cues) {
		t.Errorf("Cues = %+v, want %+v", got.Cues, snap.Cues)
	}

	if len(got.Chapters) != len(snap.Chapters) {
		t.Fatalf("chapters = %d, want %d", len(got.Chapters), len(snap.Chapters))
	}
	for i, want := range snap.Chapters {
		have := got.Chapters[i]
		if have.Chapter != want.Chapter || have.VerseCount != want.VerseCount ||
			have.SentenceCount != want.SentenceCount || have.CueCount != want.CueCount {
			t.Errorf("chapter[%d] = %+v, want %+v", i, have, want)
		}
		if strings.Join(have.CharacterNames, ",") != strings.Join(want.CharacterNames, ",") {
			t.Errorf("chapter %d names = %v, want %v", want.Chapter, have.CharacterNames, want.CharacterNames)
		}
		if len(have.Edges) != len(want.Edges) {
			t.Errorf("chapter %d edges = %+v, want %+v", want.Chapter, have.Edges, want.Edges)
		} else {
			for j := range want.Edges {
				if !reflect.DeepEqual(have.Edges[j], want.Edges[j]) {
					t.Errorf("chapter %d edge[%d] = %+v, want %+v", want.Chapter, j, have.Edges[j], want.Edges[j])
				}
			}
		}
		if len(want.Intensity) > 0 && !reflect.DeepEqual(have.Intensity, want.Intensity) {
			t.Errorf("chapter %d intensity = %+v, want %+v", want.Chapter, have.Intensity, want.Intensity)
		}
	}
}

func TestSave_Duplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot(t)

	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, snap); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Save() error = %v, want ErrAlreadyExists", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d manifests, want 1", len(list))
	}
}

func TestSave_RequiresID(t *testing.T) {
	s := openTestStore(t)
	snap := sampleSnapshot(t)
	snap.Manifest.ID = ""
	if err := s.Save(context.Background(), snap); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Save() error = %v, want ErrInvalidInput", err)
	}
}

func TestSave_Canceled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, sampleSnapshot(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}

func TestManifest_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Manifest(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Manifest() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Load(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_Cascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot(t)
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(ctx, snap.Manifest.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	for _, table := range []string{"characters", "occurrences", "cues", "chapters", "edges", "intensity"} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE snapshot_id = ?`, snap.Manifest.ID).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s rows after delete = %d, want 0", table, n)
		}
	}
}

func TestFindByFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first, second := sampleSnapshot(t), sampleSnapshot(t)
	for _, snap := range []*archive.Snapshot{first, second} {
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := s.FindByFingerprint(ctx, first.Manifest.Fingerprint)
	if err != nil {
		t.Fatalf("FindByFingerprint() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FindByFingerprint() = %d manifests, want 2", len(got))
	}

	none, err := s.FindByFingerprint(ctx, cas.Sum([]byte("other")))
	if err != nil {
		t.Fatalf("FindByFingerprint() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("FindByFingerprint(other) = %+v, want none", none)
	}
}

func TestOpenReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "narrative.db")

	if _, err := OpenReadOnly(ctx, path); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("OpenReadOnly(missing) error = %v, want ErrNotFound", err)
	}

	rw, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	snap := sampleSnapshot(t)
	if err := rw.Save(ctx, snap); err != nil {
		t.Fatal(err)
	}
	rw.Close()

	ro, err := OpenReadOnly(ctx, path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer ro.Close()
	list, err := ro.List(ctx)
	if err != nil || len(list) != 1 || list[0].ID != snap.Manifest.ID {
		t.Errorf("List() = %+v, %v", list, err)
	}
	if err := ro.Delete(ctx, snap.Manifest.ID); err == nil {
		t.Error("Delete() on a read-only store succeeded")
	}
}

func TestAnalysisResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	res := analysis.Result{
		RequestID: "req-1",
		Reference: "1:12",
		Raw:       `{"cues":[]}`,
		Cues: []analysis.AnalyzedCue{
			{Type: "causal", Location: "1:12", Explanation: "the Spirit drives him out", Confidence: 0.9},
		},
		Attempts: 2,
	}

	if _, ok, err := s.LoadResult(ctx, "k", now); ok || err != nil {
		t.Fatalf("LoadResult(empty) = %v, %v", ok, err)
	}
	if err := s.SaveResult(ctx, "k", res, now.Add(time.Minute)); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	got, ok, err := s.LoadResult(ctx, "k", now)
	if err != nil || !ok {
		t.Fatalf("LoadResult() = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(got, res) {
		t.Errorf("LoadResult() = %+v, want %+v", got, res)
	}
	if _, ok, _ := s.LoadResult(ctx, "k", now.Add(2*time.Minute)); ok {
		t.Error("expired result returned")
	}

	res.RequestID = "req-2"
	if err := s.SaveResult(ctx, "k", res, now.Add(time.Minute)); err != nil {
		t.Fatalf("SaveResult(replace) error = %v", err)
	}
	if got, _, _ := s.LoadResult(ctx, "k", now); got.RequestID != "req-2" {
		t.Errorf("replaced RequestID = %q", got.RequestID)
	}

	if err := s.DeleteResult(ctx, "k"); err != nil {
		t.Fatalf("DeleteResult() error = %v", err)
	}
	if _, ok, _ := s.LoadResult(ctx, "k", now); ok {
		t.Error("deleted result returned")
	}
	if err := s.DeleteResult(ctx, "missing"); err != nil {
		t.Errorf("DeleteResult(missing) error = %v", err)
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"up and down", "-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (x);\n"},
		{"up only", "-- +migrate Up\nSELECT 1;", "\nSELECT 1;"},
		{"no markers", "SELECT 1;", "SELECT 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upSection(tt.content); got != tt.want {
				t.Errorf("upSection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyMigrations_SkipsNonSQL(t *testing.T) {
	s := openTestStore(t)
	fsys := fstest.MapFS{
		"002_extra.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE extra (id INTEGER);\n-- +migrate Down\nDROP TABLE extra;")},
		"README.md":     {Data: []byte("not sql")},
	}
	if err := applyMigrations(context.Background(), s.db, fsys); err != nil {
		t.Fatalf("applyMigrations() error = %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO extra (id) VALUES (1)`); err != nil {
		t.Errorf("extra table missing: %v", err)
	}
}
