package archive

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	"github.com/FocuswithJustin/NarrativeCues/core/characters"
	"github.com/FocuswithJustin/NarrativeCues/core/corpus"
	"github.com/FocuswithJustin/NarrativeCues/core/cues"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/core/intensity"
	"github.com/FocuswithJustin/NarrativeCues/core/relations"
	"github.com/FocuswithJustin/NarrativeCues/internal/logging"
)

// FormatVersion is written into every manifest.
const FormatVersion = "1"

// Entry names inside a snapshot archive.
const (
	ManifestFile = "manifest.json"
	SnapshotFile = "snapshot.json"
)

// Manifest identifies a snapshot and summarises its size. It is the first
// entry of the archive so Info can stop after reading it.
type Manifest struct {
	Version     string         `json:"version"`
	ID          string         `json:"id"`
	Source      string         `json:"source,omitempty"`
	Fingerprint cas.HashResult `json:"fingerprint"`
	CreatedAt   time.Time      `json:"created_at"`
	Sentences   int            `json:"sentences"`
	Skipped     int            `json:"skipped"`
	Characters  int            `json:"characters"`
	Cues        int            `json:"cues"`
	Chapters    int            `json:"chapters"`
}

// Chapter holds the derived products of one chapter.
type Chapter struct {
	Chapter        int                    `json:"chapter"`
	VerseCount     int                    `json:"verse_count"`
	SentenceCount  int                    `json:"sentence_count"`
	CharacterNames []string               `json:"character_names"`
	CueCount       int                    `json:"cue_count"`
	Edges          []relations.Edge       `json:"edges"`
	Intensity      []intensity.VerseScore `json:"intensity"`
}

// Snapshot is a frozen, serialisable copy of a parsed corpus.
type Snapshot struct {
	Manifest   Manifest               `json:"manifest"`
	Characters []characters.Character `json:"characters"`
	Cues       []cues.Cue             `json:"cues"`
	Chapters   []Chapter              `json:"chapters"`
}

// NewSnapshot captures st. source names where the corpus came from.
func NewSnapshot(st *corpus.State, source string) *Snapshot {
	chapters := st.Chapters()
	snap := &Snapshot{
		Manifest: Manifest{
			Version:     FormatVersion,
			ID:          uuid.NewString(),
			Source:      source,
			Fingerprint: st.Fingerprint(),
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
			Sentences:   st.SentenceCount(),
			Skipped:     st.Skipped(),
			Characters:  len(st.Characters()),
			Cues:        len(st.Cues()),
			Chapters:    len(chapters),
		},
		Characters: st.Characters(),
		Cues:       st.Cues(),
	}
	for _, c := range chapters {
		sum := st.ChapterSummary(c)
		snap.Chapters = append(snap.Chapters, Chapter{
			Chapter:        c,
			VerseCount:     sum.VerseCount,
			SentenceCount:  sum.SentenceCount,
			CharacterNames: sum.CharacterNames,
			CueCount:       len(sum.Cues),
			Edges:          st.Relationships(c),
			Intensity:      st.Intensity(c),
		})
	}
	return snap
}

// Write stores snap at path as manifest.json followed by snapshot.json
// under a directory named after the snapshot ID.
func Write(path string, snap *Snapshot) error {
	manifest, err := json.MarshalIndent(snap.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := writeArchive(path, snap.Manifest.ID, snap.Manifest.CreatedAt, []entry{
		{name: ManifestFile, data: manifest},
		{name: SnapshotFile, data: body},
	}); err != nil {
		return apperrors.NewIO("write snapshot", path, err)
	}
	logging.SnapshotWritten("archive", snap.Manifest.ID, path,
		"format", DetectFormat(path),
		"characters", snap.Manifest.Characters,
		"cues", snap.Manifest.Cues,
	)
	return nil
}

// Read loads a full snapshot.
func Read(path string) (*Snapshot, error) {
	data, err := ReadFile(path, SnapshotFile)
	if err != nil {
		return nil, apperrors.NewIO("read snapshot", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.NewParse("snapshot", path, err.Error())
	}
	if err := checkVersion(snap.Manifest, path); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Info reads only the manifest.
func Info(path string) (*Manifest, error) {
	var m *Manifest
	err := IterateArchive(path, func(h *tar.Header, r io.Reader) (bool, error) {
		if h.Typeflag != tar.TypeReg || !isEntry(h.Name, ManifestFile) {
			return false, nil
		}
		var got Manifest
		if err := json.NewDecoder(r).Decode(&got); err != nil {
			return true, apperrors.NewParse("manifest", path, err.Error())
		}
		m = &got
		return true, nil
	})
	if err != nil {
		var pe *apperrors.ParseError
		if apperrors.As(err, &pe) {
			return nil, err
		}
		return nil, apperrors.NewIO("read manifest", path, err)
	}
	if m == nil {
		return nil, apperrors.NewNotFound("manifest", path)
	}
	if err := checkVersion(*m, path); err != nil {
		return nil, err
	}
	return m, nil
}

func checkVersion(m Manifest, path string) error {
	if m.Version != FormatVersion {
		return apperrors.NewParse("snapshot", path, fmt.Sprintf("unsupported version %q", m.Version))
	}
	return nil
}

func isEntry(name, want string) bool {
	if name == want {
		return true
	}
	n := len(name) - len(want)
	return n > 0 && name[n-1] == '/' && name[n:] == want
}
