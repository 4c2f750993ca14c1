// Package server exposes the gateway's HTTP surface: file parsing, RAG
// queries, cache introspection, and health.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/cache"
	"github.com/sweetpotato0/raggate/config"
	"github.com/sweetpotato0/raggate/embedder"
	"github.com/sweetpotato0/raggate/parser"
	"github.com/sweetpotato0/raggate/pkg/logging"
	"github.com/sweetpotato0/raggate/processor"
	"github.com/sweetpotato0/raggate/provider"
	"github.com/sweetpotato0/raggate/rag"
	"github.com/sweetpotato0/raggate/ratelimit"
	"github.com/sweetpotato0/raggate/retry"
	"github.com/sweetpotato0/raggate/tokenizer"
)

// Server wires the gateway components behind a gin engine.
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	registry *parser.Registry
	pipeline *rag.Pipeline
	client   provider.Client
	tok      *tokenizer.Tokenizer
	store    cache.Store

	throttler      *ratelimit.Throttler
	aiQueryLimiter *ratelimit.Limiter

	retryCfg retry.Config
	logger   *slog.Logger
}

// New assembles the server from its collaborators. The caller owns the cache
// store's lifecycle.
func New(cfg *config.Config, client provider.Client, emb embedder.Embedder, store cache.Store) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := parser.NewRegistry()
	ragCfg := rag.DefaultConfig()
	ragCfg.ChunkSize = cfg.RAG.ChunkSize
	ragCfg.ChunkOverlap = cfg.RAG.ChunkOverlap
	ragCfg.TopK = cfg.RAG.TopK
	ragCfg.MinSimilarity = cfg.RAG.MinSimilarity
	ragCfg.MaxDocuments = cfg.RAG.MaxDocuments
	ragCfg.EmbeddingModel = cfg.AI.EmbeddingModel
	ragCfg.EmbeddingDimension = cfg.AI.EmbeddingDimension

	s := &Server{
		cfg:            cfg,
		registry:       registry,
		pipeline:       rag.New(ragCfg, emb, processor.New(registry, emb)),
		client:         client,
		tok:            tokenizer.New(cfg.AI.DefaultModel),
		store:          store,
		throttler:      ratelimit.NewThrottler(),
		aiQueryLimiter: ratelimit.NewLimiter(ratelimit.PolicyAIQuery),
		retryCfg:       retry.Config{MaxAttempts: cfg.AI.MaxRetries, InitialDelay: time.Second},
		logger:         logging.WithComponent("server"),
	}
	s.engine = s.buildRouter()
	return s
}

// Engine exposes the router for serving and for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves HTTP on the configured address.
func (s *Server) Run() error {
	s.logger.Info("listening", slog.String("addr", s.cfg.Address()))
	return s.engine.Run(s.cfg.Address())
}

// HTTPServer returns an http.Server wired to the router, for graceful
// shutdown from main.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:    s.cfg.Address(),
		Handler: s.engine,
	}
}

func (s *Server) buildRouter() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(s.logger))
	engine.Use(s.corsMiddleware())

	api := engine.Group(s.cfg.Server.APIPrefix)
	api.Use(ratelimit.Middleware(
		ratelimit.Rule{Limiter: ratelimit.NewLimiter(ratelimit.PolicyGlobal), Key: ratelimit.Global},
		ratelimit.Rule{Limiter: ratelimit.NewLimiter(ratelimit.PolicyIP), Key: ratelimit.ByIP},
		ratelimit.Rule{Limiter: ratelimit.NewLimiter(ratelimit.PolicyUser), Key: ratelimit.ByUser},
		ratelimit.Rule{Limiter: ratelimit.NewLimiter(ratelimit.PolicyBurst), Key: ratelimit.ByIP},
	))

	parserGroup := api.Group("/parser")
	parserGroup.Use(ratelimit.Middleware(
		ratelimit.Rule{Limiter: ratelimit.NewLimiter(ratelimit.PolicyDefault), Key: ratelimit.ByUser},
	))
	{
		parserGroup.POST("/parse", s.handleParse)
		parserGroup.GET("/supported", s.handleSupported)
		parserGroup.POST("/validate", s.handleValidate)
	}

	aiGuard := []gin.HandlerFunc{
		ratelimit.Middleware(ratelimit.Rule{Limiter: s.aiQueryLimiter, Key: ratelimit.ByUser}),
		ratelimit.ThrottleMiddleware(s.throttler, ratelimit.ByUser),
	}

	queryGroup := api.Group("/query")
	{
		queryGroup.POST("", append(aiGuard, s.handleQuery)...)
		queryGroup.GET("/models", s.handleModels)
		queryGroup.GET("/settings", s.handleSettings)
		queryGroup.GET("/cache/stats", s.handleCacheStats)
		queryGroup.DELETE("/cache", s.handleCacheClear)
		queryGroup.GET("/health", s.handleHealth)
	}

	api.POST("/ai/query", append(aiGuard, s.handleAIQuery)...)
	return engine
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}
