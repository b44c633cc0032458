// Package learn turns user edits of dictated text into a growing custom
// dictionary.
//
// The entry point is [Engine.RecordCorrection]: it diffs the engine's output
// against the user's edited version at character level, extracts
// (original, corrected) pairs, and promotes pairs seen repeatedly into the
// shared dictionary. Character-level diffing (rather than word-level) is
// what makes this work for languages without whitespace word boundaries.
package learn

// OpKind classifies one diff operation.
type OpKind int

const (
	OpEqual OpKind = iota
	OpDelete
	OpInsert
)

// Op is one run of a character diff.
type Op struct {
	Kind OpKind
	Text string
}

// Diff computes a character-level diff between a and b using a longest
// common subsequence table, returning an ordered run-coalesced sequence of
// equal/delete/insert operations. Deletes refer to a, inserts to b.
func Diff(a, b string) []Op {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)

	// lcs[i][j] = LCS length of ra[i:], rb[j:].
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if ra[i] == rb[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	// Backtrack, emitting per-rune operations.
	var ops []Op
	emit := func(kind OpKind, r rune) {
		if len(ops) > 0 && ops[len(ops)-1].Kind == kind {
			ops[len(ops)-1].Text += string(r)
			return
		}
		ops = append(ops, Op{Kind: kind, Text: string(r)})
	}

	i, j := 0, 0
	for i < m && j < n {
		switch {
		case ra[i] == rb[j]:
			emit(OpEqual, ra[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			emit(OpDelete, ra[i])
			i++
		default:
			emit(OpInsert, rb[j])
			j++
		}
	}
	for ; i < m; i++ {
		emit(OpDelete, ra[i])
	}
	for ; j < n; j++ {
		emit(OpInsert, rb[j])
	}
	return ops
}

// Candidate is one contiguous correction extracted from a diff: the span
// [AStart, AEnd) of a (in runes) was replaced by the span [BStart, BEnd)
// of b.
type Candidate struct {
	Original  string
	Corrected string
	AStart    int
	AEnd      int
	BStart    int
	BEnd      int
}

// Candidates extracts correction candidates from the diff of a and b by
// coalescing each maximal run of non-equal operations into a single
// (deletedRun, insertedRun) pair. Candidates whose original and corrected
// text are identical, or where both sides are empty, are discarded.
func Candidates(a, b string) []Candidate {
	ops := Diff(a, b)

	var out []Candidate
	aPos, bPos := 0, 0
	i := 0
	for i < len(ops) {
		if ops[i].Kind == OpEqual {
			n := len([]rune(ops[i].Text))
			aPos += n
			bPos += n
			i++
			continue
		}

		// Coalesce the run of consecutive non-equal ops.
		c := Candidate{AStart: aPos, BStart: bPos}
		for i < len(ops) && ops[i].Kind != OpEqual {
			switch ops[i].Kind {
			case OpDelete:
				c.Original += ops[i].Text
				aPos += len([]rune(ops[i].Text))
			case OpInsert:
				c.Corrected += ops[i].Text
				bPos += len([]rune(ops[i].Text))
			}
			i++
		}
		c.AEnd = aPos
		c.BEnd = bPos

		if c.Original == c.Corrected {
			continue
		}
		if c.Original == "" && c.Corrected == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// expand widens a candidate by up to pad runes of surrounding context on
// each side, clamped to the bounds of both strings. Because the padding is
// taken from equal regions of the diff, the same runes extend both the
// original and the corrected text, turning a bare character substitution
// into a whole-word (or whole-phrase) correction.
func (c Candidate) expand(a, b []rune, pad int) Candidate {
	left := pad
	if c.AStart < left {
		left = c.AStart
	}
	if c.BStart < left {
		left = c.BStart
	}
	right := pad
	if len(a)-c.AEnd < right {
		right = len(a) - c.AEnd
	}
	if len(b)-c.BEnd < right {
		right = len(b) - c.BEnd
	}

	return Candidate{
		Original:  string(a[c.AStart-left : c.AEnd+right]),
		Corrected: string(b[c.BStart-left : c.BEnd+right]),
		AStart:    c.AStart - left,
		AEnd:      c.AEnd + right,
		BStart:    c.BStart - left,
		BEnd:      c.BEnd + right,
	}
}
