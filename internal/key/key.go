// Package key models musical key for harmonic (key-match) mixing.
//
// A key is a root note 0..11 (C=0 .. B=11) plus a mode. Distances between
// keys are computed on the Camelot wheel, where relative major/minor pairs
// (e.g. 8A/8B) are adjacent and considered harmonically equivalent for the
// purposes of key matching.
package key

// Mode is major or minor.
type Mode int

const (
	Major Mode = iota
	Minor
)

// Key is a root (0..11, C=0) plus a mode.
type Key struct {
	Root int
	Mode Mode
}

// camelotNumber maps a major-key root to its Camelot wheel position (1..12).
// The minor relative of camelotNumber[r] is the same number with the "B"
// (major) suffix swapped for "A" (minor); adjacent numbers are a fifth apart.
var camelotNumber = [12]int{
	8,  // C major  -> 8B
	3,  // C#/Db
	10, // D
	5,  // D#/Eb
	12, // E
	7,  // F
	2,  // F#/Gb
	9,  // G
	4,  // G#/Ab
	11, // A
	6,  // A#/Bb
	1,  // B
}

// camelotCode returns the wheel position 1..12 and letter 'A' (minor) or 'B'
// (major) for a key.
func camelotCode(k Key) (int, byte) {
	n := camelotNumber[((k.Root%12)+12)%12]
	if k.Mode == Minor {
		// The relative minor sits at the same wheel number with a different
		// root: shift by -3 semitones from the major root keeps the pitch
		// class but camelotNumber is indexed by root directly, so recompute
		// using the relative major's root (root+3 semitones, wrapped).
		n = camelotNumber[(((k.Root+3)%12)+12)%12]
		return n, 'A'
	}
	return n, 'B'
}

// ShortestSignedDistance returns the signed semitone distance in [-6,+6]
// from "from" to "to", treating a minor key and its relative major as
// harmonically identical (distance 0).
func ShortestSignedDistance(from, to Key) int {
	if relativeEquivalent(from, to) {
		return 0
	}
	d := ((to.Root - from.Root) % 12)
	if d > 6 {
		d -= 12
	}
	if d < -6 {
		d += 12
	}
	return d
}

// relativeEquivalent reports whether from and to are the same Camelot wheel
// number, i.e. a minor key and its relative major (or vice versa).
func relativeEquivalent(from, to Key) bool {
	fn, _ := camelotCode(from)
	tn, _ := camelotCode(to)
	return fn == tn
}

// CamelotString renders the Camelot code, e.g. "8B".
func CamelotString(k Key) string {
	n, letter := camelotCode(k)
	s := make([]byte, 0, 3)
	if n >= 10 {
		s = append(s, byte('0'+n/10))
	}
	s = append(s, byte('0'+n%10))
	s = append(s, letter)
	return string(s)
}
