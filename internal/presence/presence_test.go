package presence

import (
	"reflect"
	"testing"

	"govorilka/internal/models"
)

func TestApply_LastWriteWins(t *testing.T) {
	tr := New()

	tr.Apply("b", models.StatusOnline)
	tr.Apply("b", models.StatusOffline)

	status, ok := tr.Status("b")
	if !ok {
		t.Fatal("user b not tracked")
	}
	if status != models.StatusOffline {
		t.Errorf("expected offline, got %s", status)
	}
}

func TestOnline_Sorted(t *testing.T) {
	tr := New()

	tr.Apply("carol", models.StatusOnline)
	tr.Apply("alice", models.StatusOnline)
	tr.Apply("bob", models.StatusOffline)

	got := tr.Online()
	want := []string{"alice", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	tr := New()
	tr.Apply("a", models.StatusOnline)

	snap := tr.Snapshot()
	snap["a"] = models.StatusOffline

	if status, _ := tr.Status("a"); status != models.StatusOnline {
		t.Error("mutating a snapshot changed the tracker")
	}
}

func TestReset(t *testing.T) {
	tr := New()
	tr.Apply("a", models.StatusOnline)

	tr.Reset()

	if _, ok := tr.Status("a"); ok {
		t.Error("user survived Reset")
	}
	if len(tr.Snapshot()) != 0 {
		t.Error("snapshot not empty after Reset")
	}
}
