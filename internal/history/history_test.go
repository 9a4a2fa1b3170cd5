package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login/room" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title != "lobby" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id":"room-1","messages":[{"id":1,"text":"hi","userName":"a"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	room, err := client.FetchRoom(context.Background(), "lobby")
	if err != nil {
		t.Fatalf("FetchRoom failed: %v", err)
	}

	if room.ID != "room-1" {
		t.Errorf("expected room id room-1, got %q", room.ID)
	}
	if len(room.Messages) != 1 || room.Messages[0].ID != 1 || room.Messages[0].UserName != "a" {
		t.Errorf("unexpected messages: %+v", room.Messages)
	}
}

func TestFetchRoom_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.FetchRoom(context.Background(), "lobby"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestFetchRoom_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages": "nope"`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.FetchRoom(context.Background(), "lobby"); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestFetchRoom_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.FetchRoom(ctx, "lobby"); err == nil {
		t.Error("expected error for canceled context")
	}
}
