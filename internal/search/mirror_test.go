package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPMirrorIndex(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var doc Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			t.Errorf("decode document: %v", err)
		}
		if doc.Kind != "product" || doc.ID != "p1" {
			t.Errorf("unexpected document %+v", doc)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	mirror := NewHTTPMirror(server.URL, 2*time.Second)
	err := mirror.Index(context.Background(), Document{Kind: "product", ID: "p1", Body: map[string]string{"name": "Linen Shirt"}})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if gotPath != "/index/product/p1" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}

func TestHTTPMirrorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index locked", http.StatusConflict)
	}))
	defer server.Close()

	mirror := NewHTTPMirror(server.URL, 2*time.Second)
	if err := mirror.Index(context.Background(), Document{Kind: "product", ID: "p1"}); err == nil {
		t.Fatalf("expected error on 409")
	}
}
