package session

import "testing"

func TestAppendPreservesOrder(t *testing.T) {
	tr := NewTranscript(0)
	tr.Append(LineSessionStart, "")
	tr.Append(LineTranscription, "first chunk")
	tr.AppendSeparator(StatusTranscribing)
	tr.Append(LineTranscription, "second chunk")

	lines := tr.Lines()
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	wantKinds := []LineKind{LineSessionStart, LineTranscription, LineSeparator, LineTranscription}
	for i, k := range wantKinds {
		if lines[i].Kind != k {
			t.Errorf("line %d kind = %v, want %v", i, lines[i].Kind, k)
		}
	}
}

func TestInPlaceUpdatesKeepIdentity(t *testing.T) {
	tr := NewTranscript(0)
	id := tr.AppendSeparator(StatusTranscribing)

	tr.SetStatus(id, StatusEnhancing)
	lines := tr.Lines()
	if len(lines) != 1 || lines[0].ID != id {
		t.Fatal("status update must not replace the line")
	}
	if lines[0].Status != StatusEnhancing {
		t.Fatalf("status = %q, want enhancing", lines[0].Status)
	}

	tr.SetText(id, "updated")
	if got := tr.Lines()[0]; got.ID != id || got.Text != "updated" {
		t.Fatalf("text update changed identity: %+v", got)
	}
}

func TestSetHighlightedIsExclusive(t *testing.T) {
	tr := NewTranscript(0)
	a := tr.Append(LineTranscription, "a")
	b := tr.Append(LineTranscription, "b")

	tr.SetHighlighted(a)
	tr.SetHighlighted(b)

	for _, l := range tr.Lines() {
		want := l.ID == b
		if l.Highlighted != want {
			t.Errorf("line %q highlighted = %v, want %v", l.Text, l.Highlighted, want)
		}
	}
}

func TestRemoveKeepsOrder(t *testing.T) {
	tr := NewTranscript(0)
	tr.Append(LineTranscription, "a")
	sep := tr.AppendSeparator(StatusNone)
	tr.Append(LineTranscription, "b")

	tr.Remove(sep)

	lines := tr.Lines()
	if len(lines) != 2 || lines[0].Text != "a" || lines[1].Text != "b" {
		t.Fatalf("lines after remove = %+v", lines)
	}
}

func TestBoundedRetentionDropsOldest(t *testing.T) {
	tr := NewTranscript(3)
	tr.Append(LineTranscription, "one")
	tr.Append(LineTranscription, "two")
	tr.Append(LineTranscription, "three")
	tr.Append(LineTranscription, "four")

	lines := tr.Lines()
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0].Text != "two" {
		t.Fatalf("oldest retained = %q, want %q", lines[0].Text, "two")
	}
}

func TestLastTranscriptionSkipsOtherKinds(t *testing.T) {
	tr := NewTranscript(0)
	if got := tr.LastTranscription(); got != "" {
		t.Fatalf("empty transcript last = %q", got)
	}
	tr.Append(LineTranscription, "first")
	tr.AppendSeparator(StatusNone)
	tr.Append(LineLive, "live tail")

	if got := tr.LastTranscription(); got != "first" {
		t.Fatalf("last transcription = %q, want %q", got, "first")
	}
}
