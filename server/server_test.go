package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/cache"
	"github.com/sweetpotato0/raggate/config"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
	"github.com/sweetpotato0/raggate/ratelimit"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (stubEmbedder) Dimension() int { return 3 }
func (stubEmbedder) Model() string  { return "stub" }

type stubClient struct {
	calls int
	err   error
}

func (s *stubClient) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{
		Text:         "The answer.",
		Usage:        provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		FinishReason: "stop",
	}, nil
}

func (s *stubClient) Name() string { return "stub" }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 3001, Env: "test", APIPrefix: "/api", CORSOrigins: []string{"*"}},
		AI: config.AIConfig{
			Provider:           "openai",
			DefaultModel:       "gpt-4o-mini",
			DefaultTemperature: 0.7,
			DefaultMaxTokens:   1000,
			RequestTimeout:     5 * time.Second,
			MaxRetries:         3,
			EmbeddingModel:     "stub",
			EmbeddingDimension: 3,
		},
		RAG:   config.RAGConfig{ChunkSize: 600, ChunkOverlap: 100, TopK: 5, MinSimilarity: 0.3, MaxDocuments: 10},
		Cache: config.CacheConfig{MaxSize: 100, DefaultTTL: time.Minute},
	}
}

func newTestServer(t *testing.T, client provider.Client) (*Server, cache.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := cache.NewMemory(100, time.Minute)
	t.Cleanup(func() { store.Close() })
	return New(testConfig(), client, stubEmbedder{}, store), store
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Expected marshalable body, got %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "tester")
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestQueryCaching(t *testing.T) {
	client := &stubClient{}
	s, store := newTestServer(t, client)

	body := map[string]any{
		"question": "What is the answer?",
		"settings": map[string]any{"model": "gpt-4o-mini"},
	}

	first := postJSON(t, s, "/api/query", body)
	if first.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", first.Code, first.Body)
	}
	var resp1 queryResponse
	json.Unmarshal(first.Body.Bytes(), &resp1)
	if resp1.Cached {
		t.Error("Expected first call to be uncached")
	}
	if resp1.Answer != "The answer." {
		t.Errorf("Expected stub answer, got %q", resp1.Answer)
	}

	second := postJSON(t, s, "/api/query", body)
	var resp2 queryResponse
	json.Unmarshal(second.Body.Bytes(), &resp2)
	if !resp2.Cached {
		t.Error("Expected second call to hit the cache")
	}
	if resp2.Answer != resp1.Answer || resp2.TokensUsed != resp1.TokensUsed {
		t.Error("Expected cached body to match the original")
	}
	if client.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", client.calls)
	}

	stats, _ := store.Stats(context.Background())
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected hits=1 misses=1, got %d/%d", stats.Hits, stats.Misses)
	}
}

func TestQueryAuthFailureIsNotRetried(t *testing.T) {
	client := &stubClient{err: errors.New(errors.CodeAuthentication, "invalid api key")}
	s, _ := newTestServer(t, client)

	w := postJSON(t, s, "/api/query", map[string]any{"question": "hi"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body)
	}
	if client.calls != 1 {
		t.Errorf("Expected exactly 1 provider call, got %d", client.calls)
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &envelope)
	if envelope.Error.Code != string(errors.CodeAuthentication) {
		t.Errorf("Expected AUTHENTICATION, got %s", envelope.Error.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	t.Run("missing question", func(t *testing.T) {
		w := postJSON(t, s, "/api/query", map[string]any{"question": ""})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("temperature out of range", func(t *testing.T) {
		w := postJSON(t, s, "/api/query", map[string]any{
			"question": "q",
			"settings": map[string]any{"temperature": 1.5},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("maxTokens out of range", func(t *testing.T) {
		w := postJSON(t, s, "/api/query", map[string]any{
			"question": "q",
			"settings": map[string]any{"maxTokens": 50},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func uploadFile(t *testing.T, s *Server, path, fileName string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("Expected form file, got %v", err)
	}
	fw.Write(content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "tester")
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestParseEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	t.Run("markdown upload", func(t *testing.T) {
		w := uploadFile(t, s, "/api/parser/parse", "test.md", []byte("# Main Title\n\nContent here."), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
		}
		var resp struct {
			Success  bool   `json:"success"`
			FileType string `json:"fileType"`
			Result   struct {
				Text     string `json:"text"`
				Metadata struct {
					Title  string         `json:"title"`
					Custom map[string]any `json:"custom"`
				} `json:"metadata"`
			} `json:"result"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if !resp.Success || resp.FileType != "md" {
			t.Errorf("Expected successful md parse, got %+v", resp)
		}
		if resp.Result.Metadata.Title != "Main Title" {
			t.Errorf("Expected title Main Title, got %q", resp.Result.Metadata.Title)
		}
		if resp.Result.Metadata.Custom["headingCount"] != float64(1) {
			t.Errorf("Expected headingCount 1, got %v", resp.Result.Metadata.Custom["headingCount"])
		}
	})

	t.Run("corrupted docx maps to 400", func(t *testing.T) {
		w := uploadFile(t, s, "/api/parser/parse", "broken.docx", []byte("not a zip archive"), nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body)
		}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		json.Unmarshal(w.Body.Bytes(), &envelope)
		if envelope.Error.Code != string(errors.CodeFileCorrupted) {
			t.Errorf("Expected FILE_CORRUPTED, got %s", envelope.Error.Code)
		}
	})

	t.Run("unsupported type maps to 415", func(t *testing.T) {
		w := uploadFile(t, s, "/api/parser/parse", "pic.png", []byte{0x89, 'P', 'N', 'G'}, nil)
		if w.Code != http.StatusUnsupportedMediaType {
			t.Errorf("Expected 415, got %d", w.Code)
		}
	})
}

func TestValidateEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	w := uploadFile(t, s, "/api/parser/validate", "notes.txt", []byte("hello"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Valid    bool   `json:"valid"`
		FileType string `json:"fileType"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Valid || resp.FileType != "txt" {
		t.Errorf("Expected valid txt, got %+v", resp)
	}
}

func TestInfoEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		s.Engine().ServeHTTP(w, req)
		return w
	}

	t.Run("supported formats", func(t *testing.T) {
		w := get("/api/parser/supported")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		var resp struct {
			Formats          []any `json:"formats"`
			MaxFileSizeBytes int   `json:"maxFileSizeBytes"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Formats) != 6 {
			t.Errorf("Expected 6 formats, got %d", len(resp.Formats))
		}
		if resp.MaxFileSizeBytes != 10<<20 {
			t.Errorf("Expected 10 MiB limit, got %d", resp.MaxFileSizeBytes)
		}
		want := strconv.Itoa(ratelimit.PolicyDefault.Limit)
		if got := w.Header().Get("X-RateLimit-Limit"); got != want {
			t.Errorf("Expected default policy limit header %s, got %s", want, got)
		}
	})

	t.Run("models", func(t *testing.T) {
		w := get("/api/query/models")
		var resp struct {
			Models  []string `json:"models"`
			Default string   `json:"default"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Default != "gpt-4o-mini" || len(resp.Models) == 0 {
			t.Errorf("Expected openai models with default, got %+v", resp)
		}
	})

	t.Run("health", func(t *testing.T) {
		w := get("/api/query/health")
		var resp struct {
			Status   string            `json:"status"`
			Services map[string]string `json:"services"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Status != "healthy" || resp.Services["cache"] != "ok" {
			t.Errorf("Expected healthy status, got %+v", resp)
		}
	})
}

func TestAIQueryEndpoint(t *testing.T) {
	client := &stubClient{}
	s, _ := newTestServer(t, client)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("files", "facts.txt")
	fw.Write([]byte("The capital of France is Paris."))
	mw.WriteField("selectedText", "What is the capital of France?")
	mw.WriteField("settings", `{"model":"gpt-4o-mini"}`)
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ai/query", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "tester")
	s.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Response string `json:"response"`
		Model    string `json:"model"`
		RAG      struct {
			Enabled bool `json:"enabled"`
		} `json:"rag"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Response != "The answer." {
		t.Errorf("Expected stub answer, got %q", resp.Response)
	}
	if !resp.RAG.Enabled {
		t.Error("Expected RAG to be enabled for uploaded files")
	}
	if client.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", client.calls)
	}
}
