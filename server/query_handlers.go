package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
	"github.com/sweetpotato0/raggate/rag"
	"github.com/sweetpotato0/raggate/retry"

	respcache "github.com/sweetpotato0/raggate/cache"
)

const (
	maxQuestionChars  = 1000
	maxContextFiles   = 10
	maxInlineContext  = 5000
	minSettingsTokens = 100
	maxSettingsTokens = 4000
)

type querySettings struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"maxTokens"`
}

type queryRequest struct {
	Question      string        `json:"question"`
	ContextFiles  []string      `json:"contextFiles"`
	InlineContext string        `json:"inlineContext"`
	Settings      querySettings `json:"settings"`
}

type sourceRef struct {
	File       string  `json:"file"`
	Chunk      int     `json:"chunk"`
	Confidence float64 `json:"confidence,omitempty"`
	Location   string  `json:"location,omitempty"`
}

type ragInfo struct {
	Enabled bool         `json:"enabled"`
	Metrics rag.Metrics  `json:"metrics"`
	Sources []rag.Source `json:"sources"`
}

type queryResponse struct {
	Answer       string      `json:"answer"`
	Sources      []sourceRef `json:"sources"`
	Model        string      `json:"model"`
	TokensUsed   int         `json:"tokensUsed"`
	Cached       bool        `json:"cached"`
	ResponseTime int64       `json:"responseTime"`
	FinishReason string      `json:"finishReason,omitempty"`
	RAG          *ragInfo    `json:"rag,omitempty"`
}

// handleQuery answers a question over the indexed documents, caching the full
// response body keyed by question, context files, and settings.
func (s *Server) handleQuery(c *gin.Context) {
	started := time.Now()

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, errors.Wrap(errors.CodeBadRequest, "invalid request body", err))
		return
	}
	if err := s.validateQuery(&req); err != nil {
		s.renderError(c, err)
		return
	}
	model, temperature, maxTokens := s.resolveSettings(req.Settings)

	cacheKey := respcache.GenerateKey(req.Question, req.ContextFiles, map[string]any{
		"model":       model,
		"temperature": temperature,
		"maxTokens":   maxTokens,
	})
	if cached, found, err := s.store.Get(c.Request.Context(), cacheKey); err == nil && found {
		var resp queryResponse
		if json.Unmarshal(cached, &resp) == nil {
			resp.Cached = true
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	promptCtx, info := s.retrieve(c.Request.Context(), rag.QueryRequest{
		Question:      req.Question,
		InlineContext: req.InlineContext,
		DocumentIDs:   s.resolveContextFiles(req.ContextFiles),
	})

	answer, err := s.complete(c.Request.Context(), provider.Request{
		System:      rag.SystemPrompt,
		User:        rag.BuildPrompt(promptCtx, req.Question),
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	resp := queryResponse{
		Answer:       answer.Text,
		Sources:      sourceRefs(info),
		Model:        model,
		TokensUsed:   answer.Usage.TotalTokens,
		Cached:       false,
		ResponseTime: time.Since(started).Milliseconds(),
		FinishReason: answer.FinishReason,
		RAG:          info,
	}
	if body, err := json.Marshal(resp); err == nil {
		if err := s.store.Set(c.Request.Context(), cacheKey, body, 0); err != nil {
			s.logger.Warn("response cache write failed", slog.String("error", err.Error()))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// retrieve runs the RAG path and falls back to a context-free prompt when the
// index is empty or retrieval itself fails.
func (s *Server) retrieve(ctx context.Context, req rag.QueryRequest) (string, *ragInfo) {
	result, err := s.pipeline.Query(ctx, req)
	if err != nil {
		if errors.CodeOf(err) != errors.CodeNoDocuments {
			s.logger.Warn("retrieval failed, falling back to non-RAG prompt",
				slog.String("error", err.Error()))
		}
		return rag.BuildContext(nil, req.InlineContext), &ragInfo{Enabled: false}
	}
	return result.Context, &ragInfo{
		Enabled: true,
		Metrics: result.Metrics,
		Sources: result.Sources,
	}
}

// complete calls the provider with the configured timeout and retry policy,
// checking the prompt against the model's context window first.
func (s *Server) complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if err := s.tok.CheckFits(req.System+req.User, req.MaxTokens); err != nil {
		return nil, err
	}
	return retry.Do(ctx, s.retryCfg, func(ctx context.Context) (*provider.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.AI.RequestTimeout)
		defer cancel()
		return s.client.Complete(callCtx, req)
	})
}

func (s *Server) validateQuery(req *queryRequest) error {
	q := []rune(req.Question)
	if len(q) == 0 {
		return errors.New(errors.CodeValidation, "question is required")
	}
	if len(q) > maxQuestionChars {
		return errors.Newf(errors.CodeValidation, "question exceeds %d characters", maxQuestionChars)
	}
	if len(req.ContextFiles) > maxContextFiles {
		return errors.Newf(errors.CodeValidation, "contextFiles exceeds %d entries", maxContextFiles)
	}
	if len([]rune(req.InlineContext)) > maxInlineContext {
		return errors.Newf(errors.CodeValidation, "inlineContext exceeds %d characters", maxInlineContext)
	}
	if t := req.Settings.Temperature; t != nil && (*t < 0 || *t > 1) {
		return errors.New(errors.CodeValidation, "temperature must be in [0,1]")
	}
	if m := req.Settings.MaxTokens; m != nil && (*m < minSettingsTokens || *m > maxSettingsTokens) {
		return errors.Newf(errors.CodeValidation, "maxTokens must be in [%d,%d]", minSettingsTokens, maxSettingsTokens)
	}
	return nil
}

func (s *Server) resolveSettings(settings querySettings) (model string, temperature float64, maxTokens int) {
	model = settings.Model
	if model == "" {
		model = s.cfg.AI.DefaultModel
	}
	temperature = s.cfg.AI.DefaultTemperature
	if settings.Temperature != nil {
		temperature = *settings.Temperature
	}
	maxTokens = s.cfg.AI.DefaultMaxTokens
	if settings.MaxTokens != nil {
		maxTokens = *settings.MaxTokens
	}
	return model, temperature, maxTokens
}

// resolveContextFiles maps file names onto indexed document ids so retrieval
// can be scoped to the files the client named. Unknown names are ignored.
func (s *Server) resolveContextFiles(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	var ids []string
	for _, doc := range s.pipeline.Documents() {
		if _, ok := wanted[doc.FileName]; ok {
			ids = append(ids, doc.ID)
		}
	}
	return ids
}

func sourceRefs(info *ragInfo) []sourceRef {
	if info == nil || !info.Enabled {
		return []sourceRef{}
	}
	out := make([]sourceRef, len(info.Sources))
	for i, src := range info.Sources {
		out[i] = sourceRef{
			File:       src.FileName,
			Chunk:      src.ChunkIndex,
			Confidence: src.Score,
		}
	}
	return out
}

// handleModels lists the models selectable for the active provider.
func (s *Server) handleModels(c *gin.Context) {
	var models []string
	switch s.cfg.AI.Provider {
	case "gemini":
		models = []string{"gemini-1.5-flash", "gemini-1.5-pro"}
	case "claude":
		models = []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", "claude-3-opus-20240229"}
	default:
		models = []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo"}
	}
	c.JSON(http.StatusOK, gin.H{
		"models":  models,
		"default": s.cfg.AI.DefaultModel,
	})
}

// handleSettings reports the defaults and the accepted ranges.
func (s *Server) handleSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"defaults": gin.H{
			"model":       s.cfg.AI.DefaultModel,
			"temperature": s.cfg.AI.DefaultTemperature,
			"maxTokens":   s.cfg.AI.DefaultMaxTokens,
		},
		"limits": gin.H{
			"question":      gin.H{"maxChars": maxQuestionChars},
			"contextFiles":  gin.H{"max": maxContextFiles},
			"inlineContext": gin.H{"maxChars": maxInlineContext},
			"temperature":   gin.H{"min": 0.0, "max": 1.0},
			"maxTokens":     gin.H{"min": minSettingsTokens, "max": maxSettingsTokens},
		},
	})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCacheClear(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context()); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) handleHealth(c *gin.Context) {
	cacheStatus := "ok"
	if _, err := s.store.Stats(c.Request.Context()); err != nil {
		cacheStatus = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"services": gin.H{
			"llm":   s.cfg.AI.Provider,
			"cache": cacheStatus,
		},
	})
}
