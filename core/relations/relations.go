// Package relations derives the character graph of a chapter.
//
// Edges are recomputed from the roster on every call and never stored on
// the characters themselves.
package relations

import (
	"sort"

	"github.com/FocuswithJustin/NarrativeCues/core/characters"
	"github.com/FocuswithJustin/NarrativeCues/core/cues"
)

// Kind separates evidential sources of an edge.
type Kind string

const (
	// CoOccurrence edges are undirected: both characters share verses.
	CoOccurrence Kind = "co-occurrence"
	// Causal edges are directed: cue evidence attributes agency from
	// Source towards Target.
	Causal Kind = "causal"
)

// Edge is one relationship in a chapter graph. For CoOccurrence edges
// Source sorts before Target.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Kind     Kind   `json:"kind"`
	Strength int    `json:"strength"`
	Verses   []int  `json:"verses"`
}

// Build returns the co-occurrence and causal edges of chapter c.
func Build(c int, roster *characters.Roster, all []cues.Cue, resolver *characters.Resolver) []Edge {
	edges := CoOccurrences(c, roster)
	return append(edges, CausalEdges(c, roster, all, resolver)...)
}

// CoOccurrences returns one edge per pair of chapter characters sharing at
// least one verse, weighted by the number of shared verses.
func CoOccurrences(c int, roster *characters.Roster) []Edge {
	present := roster.InChapter(c)
	verseSets := make([][]int, len(present))
	for i, ch := range present {
		verseSets[i] = ch.Verses(c)
	}

	var edges []Edge
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			shared := intersect(verseSets[i], verseSets[j])
			if len(shared) == 0 {
				continue
			}
			a, b := present[i].Name, present[j].Name
			if b < a {
				a, b = b, a
			}
			edges = append(edges, Edge{Source: a, Target: b, Kind: CoOccurrence, Strength: len(shared), Verses: shared})
		}
	}
	sortEdges(edges)
	return edges
}

// Strength returns the co-occurrence strength between a and b in chapter c.
// It is symmetric in a and b.
func Strength(c int, roster *characters.Roster, a, b string) int {
	ca, okA := roster.Get(a)
	cb, okB := roster.Get(b)
	if !okA || !okB || a == b {
		return 0
	}
	return len(intersect(ca.Verses(c), cb.Verses(c)))
}

// CausalEdges links each character implicated by a causal cue of chapter c
// to the chapter's primary agent. Strength counts supporting cues.
func CausalEdges(c int, roster *characters.Roster, all []cues.Cue, resolver *characters.Resolver) []Edge {
	type key struct{ source, target string }
	acc := make(map[key]*Edge)
	var order []key

	for _, cue := range cues.OfCategory(cues.InChapter(all, c), cues.Causal) {
		for _, name := range resolver.MentionsIn(cue.Text) {
			target, ok := roster.PrimaryAgent(c, name)
			if !ok {
				continue
			}
			k := key{name, target}
			e, seen := acc[k]
			if !seen {
				e = &Edge{Source: name, Target: target, Kind: Causal}
				acc[k] = e
				order = append(order, k)
			}
			e.Strength++
			e.Verses = append(e.Verses, cue.Verse)
		}
	}

	edges := make([]Edge, 0, len(order))
	for _, k := range order {
		e := acc[k]
		e.Verses = dedupe(e.Verses)
		edges = append(edges, *e)
	}
	sortEdges(edges)
	return edges
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}

// intersect returns the common values of two ascending slices.
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func dedupe(vs []int) []int {
	sort.Ints(vs)
	var out []int
	for _, v := range vs {
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}
