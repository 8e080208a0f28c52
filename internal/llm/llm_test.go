package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/mocktest/internal/llm/prompts"
	"github.com/pavelanni/mocktest/internal/model"
)

// fakeOpenAI serves the two endpoints the client uses.
func fakeOpenAI(t *testing.T, content string) (*httptest.Server, *string) {
	t.Helper()
	var lastBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	})
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "test-model", "object": "model"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func wrongAnswer() model.ReviewQuestion {
	return model.ReviewQuestion{
		Question: model.Question{ID: "3", Section: "Reasoning", Text: "Find the odd one out.", Options: []string{"Apple", "Mango", "Carrot", "Banana"}},
		Selected: "A",
		Correct:  "C",
	}
}

func TestExplain(t *testing.T) {
	srv, body := fakeOpenAI(t, `{"explanation": "  Carrot is a vegetable; the rest are fruits. "}`)
	c, err := New(srv.URL+"/v1", "key", "test-model", WithVariant(prompts.PromptBrief))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Explain(context.Background(), wrongAnswer())
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "Carrot is a vegetable; the rest are fruits." {
		t.Errorf("Explain() = %q", got)
	}
	if !strings.Contains(*body, "Find the odd one out.") || !strings.Contains(*body, "json_object") {
		t.Errorf("request body = %s", *body)
	}
}

func TestExplainBadResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "Carrot is a vegetable."},
		{"empty explanation", `{"explanation": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeOpenAI(t, tt.content)
			c, err := New(srv.URL+"/v1", "key", "test-model")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := c.Explain(context.Background(), wrongAnswer()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPing(t *testing.T) {
	srv, _ := fakeOpenAI(t, "{}")
	c, _ := New(srv.URL+"/v1", "key", "test-model")
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	other, _ := New(srv.URL+"/v1", "key", "missing-model")
	if err := other.Ping(context.Background()); err == nil {
		t.Error("Ping should fail for a model the endpoint does not serve")
	}
}
