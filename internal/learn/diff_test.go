package learn

import (
	"testing"
)

// applyCandidates reconstructs b from a by replacing each candidate's
// original span with its corrected text. Candidates arrive in ascending
// span order, so the replacement walks a left to right.
func applyCandidates(a string, cands []Candidate) string {
	ra := []rune(a)
	var out []rune
	pos := 0
	for _, c := range cands {
		out = append(out, ra[pos:c.AStart]...)
		out = append(out, []rune(c.Corrected)...)
		pos = c.AEnd
	}
	out = append(out, ra[pos:]...)
	return string(out)
}

func TestDiffRoundTrip(t *testing.T) {
	cases := []struct{ a, b string }{
		{"", ""},
		{"", "hello"},
		{"hello", ""},
		{"hello", "hello"},
		{"hello world", "hello there world"},
		{"the quick brown fox", "the quiet brown cat"},
		{"他去医院了", "她去医院了"},
		{"今天天气很好", "今天天氣很好"},
		{"kitten", "sitting"},
		{"abcdef", "azcedf"},
		{"重复重复重复", "重复重复"},
		{"mixed 中文 and english", "mixed 英文 and english"},
	}

	for _, tc := range cases {
		cands := Candidates(tc.a, tc.b)
		if got := applyCandidates(tc.a, cands); got != tc.b {
			t.Errorf("roundtrip %q -> %q: replaying candidates produced %q", tc.a, tc.b, got)
		}
	}
}

func TestDiffEqualStringsHasNoCandidates(t *testing.T) {
	if cands := Candidates("住院", "住院"); len(cands) != 0 {
		t.Fatalf("candidates = %v, want none for identical strings", cands)
	}
}

func TestDiffSingleSubstitution(t *testing.T) {
	cands := Candidates("他", "她")
	if len(cands) != 1 {
		t.Fatalf("candidates = %v, want exactly one", cands)
	}
	c := cands[0]
	if c.Original != "他" || c.Corrected != "她" {
		t.Fatalf("candidate = %+v, want 他 -> 她", c)
	}
}

func TestDiffCoalescesAdjacentOps(t *testing.T) {
	// "cat" -> "dog" shares no runes: one contiguous replacement, not
	// per-rune noise.
	cands := Candidates("the cat runs", "the dog runs")
	if len(cands) != 1 {
		t.Fatalf("candidates = %v, want one coalesced replacement", cands)
	}
}

func TestDiffPureInsertionAndDeletion(t *testing.T) {
	ins := Candidates("ab", "axb")
	if len(ins) != 1 || ins[0].Original != "" || ins[0].Corrected != "x" {
		t.Fatalf("insertion candidates = %v", ins)
	}

	del := Candidates("axb", "ab")
	if len(del) != 1 || del[0].Original != "x" || del[0].Corrected != "" {
		t.Fatalf("deletion candidates = %v", del)
	}
}

func TestExpandAddsSurroundingContext(t *testing.T) {
	a, b := "明天去住院", "明天去醫院"
	cands := Candidates(a, b)
	if len(cands) != 1 {
		t.Fatalf("candidates = %v, want one", cands)
	}

	got := cands[0].expand([]rune(a), []rune(b), 2)
	if got.Original != "天去住院" || got.Corrected != "天去醫院" {
		t.Fatalf("expanded = %q -> %q, want 天去住院 -> 天去醫院", got.Original, got.Corrected)
	}
}

func TestExpandClampsAtBounds(t *testing.T) {
	a, b := "他", "她"
	c := Candidates(a, b)[0]
	got := c.expand([]rune(a), []rune(b), 2)
	if got.Original != "他" || got.Corrected != "她" {
		t.Fatalf("expanded = %q -> %q, want unchanged at string bounds", got.Original, got.Corrected)
	}
}
