package archive

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/NarrativeCues/core/corpus"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/validation"
)

const corpusText = "# source = Mark 1\n" +
	"1\tπνεῦμα\tπνεῦμα\tNOUN\t_\t_\t2\tnsubj\t_\tRef=MARK_1.12\n" +
	"2\tἐκβάλλει\tἐκβάλλω\tVERB\t_\t_\t0\troot\t_\tRef=MARK_1.12\n" +
	"\n" +
	"1\tἸησοῦς\tἸησοῦς\tPROPN\t_\t_\t0\troot\t_\tRef=MARK_1.14\n" +
	"2\tΠέτρον\tΠέτρος\tPROPN\t_\t_\t1\tobj\t_\tRef=MARK_1.14\n"

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	st := corpus.New().Parse(corpusText)
	return NewSnapshot(st, "mark.conllu")
}

func TestNewSnapshot(t *testing.T) {
	snap := testSnapshot(t)
	m := snap.Manifest

	if m.Version != FormatVersion || m.ID == "" || m.Source != "mark.conllu" {
		t.Errorf("manifest = %+v", m)
	}
	if m.Sentences != 2 || m.Chapters != 1 {
		t.Errorf("Sentences = %d, Chapters = %d", m.Sentences, m.Chapters)
	}
	if m.Characters != len(snap.Characters) || m.Cues != len(snap.Cues) {
		t.Errorf("manifest counts %d/%d disagree with body %d/%d",
			m.Characters, m.Cues, len(snap.Characters), len(snap.Cues))
	}
	if len(snap.Chapters) != 1 {
		t.Fatalf("Chapters = %+v", snap.Chapters)
	}
	ch := snap.Chapters[0]
	if ch.VerseCount != 2 || ch.SentenceCount != 2 || len(ch.Intensity) != 2 {
		t.Errorf("chapter = %+v", ch)
	}
	if len(ch.Edges) == 0 {
		t.Error("chapter should carry edges")
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	for _, ext := range []string{Extension, ".snapshot.tar.gz"} {
		t.Run(ext, func(t *testing.T) {
			snap := testSnapshot(t)
			path := filepath.Join(t.TempDir(), "nested", "mark"+ext)

			if err := Write(path, snap); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}

			if got.Manifest.ID != snap.Manifest.ID || !got.Manifest.CreatedAt.Equal(snap.Manifest.CreatedAt) {
				t.Errorf("manifest = %+v, want %+v", got.Manifest, snap.Manifest)
			}
			if got.Manifest.Fingerprint != snap.Manifest.Fingerprint {
				t.Errorf("fingerprint changed")
			}
			if len(got.Characters) != len(snap.Characters) || len(got.Cues) != len(snap.Cues) {
				t.Errorf("counts = %d/%d, want %d/%d",
					len(got.Characters), len(got.Cues), len(snap.Characters), len(snap.Cues))
			}
			for i := range snap.Characters {
				if got.Characters[i].Name != snap.Characters[i].Name || got.Characters[i].Mentions != snap.Characters[i].Mentions {
					t.Errorf("character %d = %+v", i, got.Characters[i])
				}
			}
			for i := range snap.Cues {
				if got.Cues[i].Category != snap.Cues[i].Category {
					t.Errorf("cue %d category = %v, want %v", i, got.Cues[i].Category, snap.Cues[i].Category)
				}
			}
			if !reflect.DeepEqual(got.Chapters, snap.Chapters) {
				t.Errorf("chapters differ:\n got %+v\nwant %+v", got.Chapters, snap.Chapters)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	snap := testSnapshot(t)
	path := filepath.Join(t.TempDir(), "mark"+Extension)
	if err := Write(path, snap); err != nil {
		t.Fatal(err)
	}

	m, err := Info(path)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if m.ID != snap.Manifest.ID || m.Cues != snap.Manifest.Cues {
		t.Errorf("Info() = %+v", m)
	}

	// Entries sit under a directory named after the ID, manifest first.
	var names []string
	err = IterateArchive(path, func(h *tar.Header, _ io.Reader) (bool, error) {
		names = append(names, h.Name)
		return false, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	id := snap.Manifest.ID
	want := []string{id + "/", id + "/" + ManifestFile, id + "/" + SnapshotFile}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Read(filepath.Join(dir, "missing"+Extension)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}

	unsupported := filepath.Join(dir, "snap.zip")
	if err := Write(unsupported, testSnapshot(t)); err == nil {
		t.Error("Write() to unsupported extension should fail")
	}

	corrupt := filepath.Join(dir, "corrupt.tar.xz")
	if err := os.WriteFile(corrupt, []byte("not xz"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Info(corrupt); err == nil {
		t.Error("Info() on corrupt archive should fail")
	}

	snap := testSnapshot(t)
	snap.Manifest.Version = "99"
	future := filepath.Join(dir, "future"+Extension)
	if err := Write(future, snap); err != nil {
		t.Fatal(err)
	}
	_, err := Read(future)
	var pe *apperrors.ParseError
	if !errors.As(err, &pe) || !strings.Contains(err.Error(), "unsupported version") {
		t.Errorf("future version error = %v", err)
	}
	if _, err := Info(future); !errors.As(err, &pe) {
		t.Errorf("Info() future version error = %v", err)
	}
}

func TestReadFile(t *testing.T) {
	snap := testSnapshot(t)
	path := filepath.Join(t.TempDir(), "mark"+Extension)
	if err := Write(path, snap); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFile(path, ManifestFile); err != nil {
		t.Errorf("ReadFile(manifest) error = %v", err)
	}
	if _, err := ReadFile(path, snap.Manifest.ID+"/"+SnapshotFile); err != nil {
		t.Errorf("ReadFile(full path) error = %v", err)
	}
	if _, err := ReadFile(path, "absent.json"); err == nil {
		t.Error("ReadFile(absent) should fail")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"mark.snapshot.tar.xz", FormatXZ},
		{"mark.tar.gz", FormatGzip},
		{"mark.tar", FormatUnknown},
		{"mark.zip", FormatUnknown},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
		if IsSupportedFormat(tt.path) != (tt.want != FormatUnknown) {
			t.Errorf("IsSupportedFormat(%q) disagrees with DetectFormat", tt.path)
		}
	}
}

func TestSnapshotName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"mark.snapshot.tar.xz", "mark"},
		{"mark.snapshot.tar.gz", "mark"},
		{"mark.tar.xz", "mark"},
		{"mark.v2.tar.gz", "mark.v2"},
		{"mark", "mark"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SnapshotName(tt.filename); got != tt.want {
			t.Errorf("SnapshotName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestRead_RejectsTraversalEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.tar.gz")
	if err := writeArchive(path, "..", time.Unix(0, 0), []entry{
		{name: ManifestFile, data: []byte(`{"version":"1"}`)},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := Info(path); !errors.Is(err, validation.ErrPathTraversal) {
		t.Errorf("Info() error = %v, want ErrPathTraversal", err)
	}
	if _, err := ReadFile(path, ManifestFile); !errors.Is(err, validation.ErrPathTraversal) {
		t.Errorf("ReadFile() error = %v, want ErrPathTraversal", err)
	}
}

func TestWriteArchive_RemovesPartialFile(t *testing.T) {
	for _, ext := range []string{".tar.xz", ".tar.gz"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "broken"+ext)
			// A non-ASCII name with a NUL byte fits no tar header format.
			err := writeArchive(path, "snap", time.Unix(0, 0), []entry{
				{name: ManifestFile, data: []byte(`{"version":"1"}`)},
				{name: "bad\x00é.json", data: []byte(`{}`)},
			})
			if err == nil {
				t.Fatal("writeArchive() succeeded with an unencodable entry name")
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Errorf("partial archive left at %s (stat error %v)", path, statErr)
			}
		})
	}
}
