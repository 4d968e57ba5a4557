package searchindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spec-kit/support-desk/internal/config"
)

func TestNamespaceFor(t *testing.T) {
	if got := NamespaceFor("abc-123"); got != "tenant_abc-123_kb" {
		t.Errorf("NamespaceFor = %q", got)
	}
}

func TestEnsureNamespace(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, TimeoutSeconds: 2})
	namespace, err := client.EnsureNamespace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("EnsureNamespace: %v", err)
	}
	if namespace != "tenant_t1_kb" {
		t.Errorf("namespace = %q", namespace)
	}
	if gotMethod != http.MethodPut || gotPath != "/namespaces/tenant_t1_kb" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestUpsertSendsDocument(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/namespaces/ns/documents/kb_1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, TimeoutSeconds: 2})
	err := client.Upsert(context.Background(), "ns", "kb_1", "doc text", map[string]any{"item_id": "1"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if body["text"] != "doc text" {
		t.Errorf("text = %v", body["text"])
	}
	metadata, _ := body["metadata"].(map[string]any)
	if metadata["item_id"] != "1" {
		t.Errorf("metadata = %v", body["metadata"])
	}
}

func TestQueryParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["top_k"] != float64(3) {
			t.Errorf("top_k = %v", req["top_k"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"text": "first", "metadata": map[string]any{"title": "A"}},
				{"text": "second"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, TimeoutSeconds: 2})
	snippets, err := client.Query(context.Background(), "ns", "question", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(snippets) != 2 || snippets[0].Text != "first" {
		t.Errorf("snippets = %+v", snippets)
	}
	if snippets[0].Metadata["title"] != "A" {
		t.Errorf("metadata = %v", snippets[0].Metadata)
	}
}

func TestQueryErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, TimeoutSeconds: 2})
	if _, err := client.Query(context.Background(), "ns", "q", 1); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestUnconfiguredClientFails(t *testing.T) {
	client := NewClient(config.SearchConfig{})
	if _, err := client.Query(context.Background(), "ns", "q", 1); err == nil {
		t.Fatal("expected error when base URL is unset")
	}
}
