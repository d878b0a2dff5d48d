package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusworks/edubase"
)

func TestGetUserCachesLookups(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/api/v1/users/7" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "edubase" {
			t.Fatalf("user agent not set: %q", r.Header.Get("User-Agent"))
		}
		json.NewEncoder(w).Encode(edubase.UserInfo{ID: 7, DisplayName: "Alice"})
	}))
	defer server.Close()

	c := New(server.URL)

	info, err := c.GetUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if info.DisplayName != "Alice" {
		t.Fatalf("unexpected display name %q", info.DisplayName)
	}

	if _, err := c.GetUser(context.Background(), 7); err != nil {
		t.Fatalf("cached get user failed: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one provider hit, got %d", hits)
	}
}

func TestDisplayNameDegradesToPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL)
	if name := c.DisplayName(context.Background(), 9); name != "user#9" {
		t.Fatalf("expected placeholder, got %q", name)
	}
}

func TestDisplayNameWithoutBaseURL(t *testing.T) {
	c := New("")
	if name := c.DisplayName(context.Background(), 3); name != "user#3" {
		t.Fatalf("expected placeholder, got %q", name)
	}
}
