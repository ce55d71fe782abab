package main

import (
	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/archive"
	"github.com/FocuswithJustin/NarrativeCues/internal/store"
	"github.com/FocuswithJustin/NarrativeCues/internal/validation"
)

// dbPath returns flag when set, else the configured database.
func (a *App) dbPath(flag string) (string, error) {
	path := flag
	if path == "" {
		path = a.Config.DB
	}
	if err := validation.ValidatePath(path); err != nil {
		return "", apperrors.NewValidation("db", err.Error())
	}
	return path, nil
}

// openStore opens the snapshot database. Read-only stores must already exist.
func (a *App) openStore(flag string, readOnly bool) (*store.Store, error) {
	path, err := a.dbPath(flag)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return store.OpenReadOnly(a.Ctx, path)
	}
	return store.Open(a.Ctx, path)
}

// resolveManifest finds a stored snapshot by ID or by the SHA-256 of its
// corpus. A fingerprint matching several snapshots picks the newest.
func (a *App) resolveManifest(s *store.Store, ref string) (archive.Manifest, error) {
	if !cas.IsValidHash(ref) {
		return s.Manifest(a.Ctx, ref)
	}
	found, err := s.FindByFingerprint(a.Ctx, cas.HashResult{SHA256: ref})
	if err != nil {
		return archive.Manifest{}, err
	}
	if len(found) == 0 {
		return archive.Manifest{}, apperrors.NewNotFound("snapshot", ref)
	}
	return found[0], nil
}

// loadSnapshot reads a full snapshot from an archive path, a stored ID or a
// corpus fingerprint.
func (a *App) loadSnapshot(ref, db string) (*archive.Snapshot, error) {
	if archive.IsSupportedFormat(ref) {
		return archive.Read(ref)
	}
	s, err := a.openStore(db, true)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	m, err := a.resolveManifest(s, ref)
	if err != nil {
		return nil, err
	}
	return s.Load(a.Ctx, m.ID)
}

// chapterOf returns chapter c of snap, or an empty chapter when snap has no
// sentences there.
func chapterOf(snap *archive.Snapshot, c int) archive.Chapter {
	for _, ch := range snap.Chapters {
		if ch.Chapter == c {
			return ch
		}
	}
	return archive.Chapter{Chapter: c}
}
