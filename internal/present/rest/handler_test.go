package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/client"
)

func TestDecorateRevisionsFillsMissingNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(edubase.UserInfo{ID: 7, DisplayName: "Alice"})
	}))
	defer server.Close()

	h := &Handler{idp: client.New(server.URL)}
	views := h.decorateRevisions(context.Background(), []edubase.RevisionSummary{
		{ID: 1, UserID: 7},
		{ID: 2, UserID: 8, UserName: "bob"},
	})

	if views[0].UserName != "Alice" {
		t.Fatalf("missing name not resolved: %q", views[0].UserName)
	}
	if views[1].UserName != "bob" {
		t.Fatalf("recorded name was overwritten: %q", views[1].UserName)
	}
}

func TestDecorateRevisionsWithoutProvider(t *testing.T) {
	h := &Handler{}
	views := h.decorateRevisions(context.Background(), []edubase.RevisionSummary{
		{ID: 1, UserID: 7},
	})
	if views[0].UserName != "" {
		t.Fatalf("nameless summary changed without a provider: %q", views[0].UserName)
	}
}
