package characters

// Roster is the frozen result of a resolve pass: characters in order of
// first appearance plus a name lookup built once after the pass.
type Roster struct {
	chars  []Character
	byName map[string]int
}

func newRoster(chars []Character) *Roster {
	byName := make(map[string]int, len(chars))
	for i, c := range chars {
		byName[c.Name] = i
	}
	return &Roster{chars: chars, byName: byName}
}

// Len returns the number of characters with at least one mention.
func (r *Roster) Len() int {
	return len(r.chars)
}

// All returns every character in order of first appearance. The result is
// a deep copy; changing it does not affect the roster.
func (r *Roster) All() []Character {
	out := make([]Character, len(r.chars))
	for i, ch := range r.chars {
		out[i] = ch.clone()
	}
	return out
}

// Get looks a character up by canonical name.
func (r *Roster) Get(name string) (Character, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Character{}, false
	}
	return r.chars[i].clone(), true
}

// InChapter returns the characters with at least one occurrence in chapter c.
func (r *Roster) InChapter(c int) []Character {
	var out []Character
	for _, ch := range r.chars {
		if ch.MentionsIn(c) > 0 {
			out = append(out, ch.clone())
		}
	}
	return out
}

// Names returns the names of the characters appearing in chapter c.
func (r *Roster) Names(c int) []string {
	var out []string
	for _, ch := range r.chars {
		if ch.MentionsIn(c) > 0 {
			out = append(out, ch.Name)
		}
	}
	return out
}

// InVerse returns the names of the characters appearing in chapter c, verse v.
func (r *Roster) InVerse(c, v int) []string {
	var out []string
	for _, ch := range r.chars {
		for _, o := range ch.Occurrences {
			if o.Chapter == c && o.Verse == v {
				out = append(out, ch.Name)
				break
			}
		}
	}
	return out
}

// PrimaryAgent returns the most-mentioned non-background character of
// chapter c other than exclude. Ties go to the earlier character. When no
// character qualifies, DefaultAgent is returned unless it is exclude.
func (r *Roster) PrimaryAgent(c int, exclude string) (string, bool) {
	best, bestCount := "", 0
	for _, ch := range r.chars {
		if ch.Background || ch.Name == exclude {
			continue
		}
		if n := ch.MentionsIn(c); n > bestCount {
			best, bestCount = ch.Name, n
		}
	}
	if best != "" {
		return best, true
	}
	if exclude != DefaultAgent {
		return DefaultAgent, true
	}
	return "", false
}
