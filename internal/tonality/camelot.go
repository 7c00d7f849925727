package tonality

import "strings"

// fifths places each key on the circle of fifths. Relative major and minor
// keys share a position.
var fifths = map[string]int{
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5,
	"F#": 6, "Db": 7, "Ab": 8, "Eb": 9, "Bb": 10, "F": 11,

	"Am": 0, "Em": 1, "Bm": 2, "F#m": 3, "C#m": 4, "G#m": 5,
	"Ebm": 6, "Bbm": 7, "Fm": 8, "Cm": 9, "Gm": 10, "Dm": 11,
}

// enharmonic spellings folded onto the table's names
var enharmonic = map[string]string{
	"Gb": "F#", "C#": "Db", "G#": "Ab", "D#": "Eb", "A#": "Bb",
	"Cb": "B", "E#": "F", "B#": "C", "Fb": "E",
}

// Position returns key's circle-of-fifths position 0-11.
// Labels may use "m" or "min"/"minor"/"major" suffixes and either accidental spelling.
func Position(key string) (int, bool) {
	k := normalize(key)
	p, ok := fifths[k]
	return p, ok
}

// Distance is the number of steps between two positions around the circle.
func Distance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= 12
	if 12-d < d {
		return 12 - d
	}
	return d
}

// KeyDistance returns the circle-of-fifths distance between two labels.
// ok is false if either label is unknown.
func KeyDistance(a, b string) (int, bool) {
	pa, okA := Position(a)
	pb, okB := Position(b)
	if !okA || !okB {
		return 0, false
	}
	return Distance(pa, pb), true
}

func normalize(key string) string {
	k := strings.TrimSpace(key)
	minor := false
	lower := strings.ToLower(k)
	for _, suffix := range []string{" minor", " min", "minor", "min"} {
		if strings.HasSuffix(lower, suffix) {
			k, minor = strings.TrimSpace(k[:len(k)-len(suffix)]), true
			break
		}
	}
	if !minor {
		for _, suffix := range []string{" major", " maj", "major", "maj"} {
			if strings.HasSuffix(strings.ToLower(k), suffix) {
				k = strings.TrimSpace(k[:len(k)-len(suffix)])
				break
			}
		}
	}
	if !minor && len(k) > 1 && strings.HasSuffix(k, "m") {
		k, minor = k[:len(k)-1], true
	}
	if k == "" {
		return ""
	}
	k = strings.ToUpper(k[:1]) + k[1:]

	if minor {
		if _, ok := fifths[k+"m"]; ok {
			return k + "m"
		}
		// minor table spells some roots with sharps
		for alt, canon := range enharmonic {
			if canon == k {
				if _, ok := fifths[alt+"m"]; ok {
					return alt + "m"
				}
			}
			if alt == k {
				if _, ok := fifths[canon+"m"]; ok {
					return canon + "m"
				}
			}
		}
		return k + "m"
	}
	if canon, ok := enharmonic[k]; ok {
		return canon
	}
	return k
}
