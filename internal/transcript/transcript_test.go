package transcript

import (
	"fmt"
	"testing"

	"govorilka/internal/models"
)

func TestApplyIncoming_DistinctIDs(t *testing.T) {
	tr := New()

	for i := 1; i <= 5; i++ {
		accepted := tr.ApplyIncoming(models.Message{ID: int64(i), Text: fmt.Sprintf("msg %d", i), UserName: "a"})
		if !accepted {
			t.Errorf("message %d rejected", i)
		}
	}

	if tr.Len() != 5 {
		t.Errorf("expected 5 messages, got %d", tr.Len())
	}

	msgs := tr.Messages()
	for i, msg := range msgs {
		if msg.ID != int64(i+1) {
			t.Errorf("index %d: expected ID %d, got %d", i, i+1, msg.ID)
		}
	}
}

func TestApplyIncoming_Redelivery(t *testing.T) {
	tr := New()

	tr.ApplyIncoming(models.Message{ID: 1, Text: "hi", UserName: "a"})
	tr.ApplyIncoming(models.Message{ID: 2, Text: "yo", UserName: "b"})

	// Redelivering an already-applied id must leave the transcript
	// unchanged, even with different text.
	if tr.ApplyIncoming(models.Message{ID: 1, Text: "hi again", UserName: "a"}) {
		t.Error("redelivered message was accepted")
	}

	if tr.Len() != 2 {
		t.Errorf("expected 2 messages, got %d", tr.Len())
	}
	if tr.Messages()[0].Text != "hi" {
		t.Errorf("redelivery overwrote original text: %q", tr.Messages()[0].Text)
	}
}

func TestApplyIncoming_ZeroID(t *testing.T) {
	tr := New()

	// Unassigned ids are never deduplicated; only the backend hands
	// out identifiers.
	if !tr.ApplyIncoming(models.Message{Text: "one", UserName: "a"}) {
		t.Error("first zero-id message rejected")
	}
	if !tr.ApplyIncoming(models.Message{Text: "two", UserName: "a"}) {
		t.Error("second zero-id message rejected")
	}

	if tr.Len() != 2 {
		t.Errorf("expected 2 messages, got %d", tr.Len())
	}
}

func TestApplyHistory_Replaces(t *testing.T) {
	tr := New()
	tr.ApplyIncoming(models.Message{ID: 99, Text: "old room", UserName: "a"})

	tr.ApplyHistory([]models.Message{
		{ID: 1, Text: "hi", UserName: "a"},
		{ID: 2, Text: "yo", UserName: "b"},
	})

	if tr.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", tr.Len())
	}
	if tr.Messages()[0].ID != 1 || tr.Messages()[1].ID != 2 {
		t.Errorf("unexpected history order: %+v", tr.Messages())
	}

	// The history reset must also reset the dedup index: id 99 from
	// the previous room is fair game again.
	if !tr.ApplyIncoming(models.Message{ID: 99, Text: "new room", UserName: "a"}) {
		t.Error("id from before the history reset was still deduplicated")
	}

	// But ids present in the history payload are indexed.
	if tr.ApplyIncoming(models.Message{ID: 2, Text: "dup", UserName: "b"}) {
		t.Error("id from history payload was not deduplicated")
	}
}

func TestApplyHistory_DuplicateIDsInPayload(t *testing.T) {
	tr := New()

	tr.ApplyHistory([]models.Message{
		{ID: 1, Text: "hi", UserName: "a"},
		{ID: 1, Text: "hi again", UserName: "a"},
		{ID: 2, Text: "yo", UserName: "b"},
	})

	if tr.Len() != 2 {
		t.Errorf("expected 2 messages after dedup, got %d", tr.Len())
	}
}

func TestReset(t *testing.T) {
	tr := New()
	tr.ApplyIncoming(models.Message{ID: 1, Text: "hi", UserName: "a"})

	tr.Reset()

	if tr.Len() != 0 {
		t.Errorf("expected empty transcript, got %d messages", tr.Len())
	}
	if !tr.ApplyIncoming(models.Message{ID: 1, Text: "hi", UserName: "a"}) {
		t.Error("dedup index survived Reset")
	}
}
