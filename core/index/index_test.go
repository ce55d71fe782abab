package index

import (
	"testing"

	"github.com/FocuswithJustin/NarrativeCues/core/conllu"
)

func sentence(id, chapter, verse int) *conllu.Sentence {
	return &conllu.Sentence{
		ID:      id,
		Chapter: chapter,
		Verse:   verse,
		Tokens:  []conllu.Token{{ID: 1, Form: "λόγος"}},
	}
}

func ids(ss []*conllu.Sentence) []int {
	out := make([]int, len(ss))
	for i, s := range ss {
		out[i] = s.ID
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLocation(t *testing.T) {
	tests := []struct {
		chapter, verse int
		wantC, wantV   int
	}{
		{3, 5, 3, 5},
		{0, 0, 1, 1},
		{2, 0, 2, 1},
		{0, 4, 1, 4},
	}
	for _, tt := range tests {
		c, v := Location(sentence(1, tt.chapter, tt.verse))
		if c != tt.wantC || v != tt.wantV {
			t.Errorf("Location(%d:%d) = %d:%d, want %d:%d", tt.chapter, tt.verse, c, v, tt.wantC, tt.wantV)
		}
	}
}

func TestBuild(t *testing.T) {
	x := Build([]*conllu.Sentence{
		sentence(1, 1, 1),
		sentence(2, 1, 2),
		sentence(3, 1, 2),
		sentence(4, 2, 1),
		sentence(5, 0, 0),
		sentence(6, 1, 10),
	})

	if got := x.Chapters(); !equal(got, []int{1, 2}) {
		t.Errorf("Chapters() = %v", got)
	}
	if got := x.Verses(1); !equal(got, []int{1, 2, 10}) {
		t.Errorf("Verses(1) = %v", got)
	}
	if got := ids(x.Sentences(1, 1)); !equal(got, []int{1, 5}) {
		t.Errorf("Sentences(1,1) = %v, want unresolved sentence filed under 1:1", got)
	}
	if got := ids(x.Sentences(1, 2)); !equal(got, []int{2, 3}) {
		t.Errorf("Sentences(1,2) = %v", got)
	}
	if got := x.SentenceCount(1); got != 5 {
		t.Errorf("SentenceCount(1) = %d, want 5", got)
	}
	if got := x.VerseCount(1); got != 3 {
		t.Errorf("VerseCount(1) = %d, want 3", got)
	}
	if got := ids(x.Chapter(1)); !equal(got, []int{1, 5, 2, 3, 6}) {
		t.Errorf("Chapter(1) = %v", got)
	}
	if !x.HasChapter(2) || x.HasChapter(3) {
		t.Error("HasChapter mismatch")
	}
}

func TestRange(t *testing.T) {
	x := Build([]*conllu.Sentence{
		sentence(1, 1, 1),
		sentence(2, 1, 2),
		sentence(3, 1, 3),
		sentence(4, 1, 4),
	})

	if got := ids(x.Range(1, 2, 3)); !equal(got, []int{2, 3}) {
		t.Errorf("Range(1,2,3) = %v", got)
	}
	if got := x.Range(1, 5, 9); len(got) != 0 {
		t.Errorf("Range past end = %v, want empty", ids(got))
	}
	if got := x.Range(1, 3, 2); len(got) != 0 {
		t.Errorf("inverted Range = %v, want empty", ids(got))
	}
	if got := x.Range(7, 1, 100); len(got) != 0 {
		t.Errorf("missing chapter Range = %v, want empty", ids(got))
	}
}

func TestSentencesReturnsCopy(t *testing.T) {
	x := Build([]*conllu.Sentence{sentence(1, 1, 1)})
	got := x.Sentences(1, 1)
	got[0] = nil
	if x.Sentences(1, 1)[0] == nil {
		t.Error("Sentences must not expose internal slice")
	}
}

func TestEmpty(t *testing.T) {
	x := Build(nil)
	if len(x.Chapters()) != 0 || x.SentenceCount(1) != 0 || x.VerseCount(1) != 0 {
		t.Error("empty index should report nothing")
	}
}
