// Package httpapi is the gateway's HTTP surface: chi routes, the
// {success, data, error} envelope, bearer-token auth, and the NDJSON relay
// for streamed inference output.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
	healthuc "github.com/kailas-cloud/raggate/internal/usecase/health"
	queryuc "github.com/kailas-cloud/raggate/internal/usecase/query"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the gateway's HTTP handlers.
type Server struct {
	collections   CollectionService
	query         QueryService
	models        ModelService
	tokens        TokenService
	inference     Inference
	provisioner   Provisioner
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	collections CollectionService,
	query QueryService,
	models ModelService,
	tokens TokenService,
	inference Inference,
	provisioner Provisioner,
	health HealthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		collections: collections,
		query:       query,
		models:      models,
		tokens:      tokens,
		inference:   inference,
		provisioner: provisioner,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict),
		sentinelHandler(domain.ErrModelPull, http.StatusBadRequest),
	}
	return s
}

// Routes mounts every gateway endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.HealthCheck)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api-tokens", func(r chi.Router) {
		r.Get("/", s.ListTokens)
		r.Post("/", s.CreateToken)
		r.Get("/{id}", s.GetToken)
		r.Delete("/{id}", s.DeleteToken)
	})

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.ListCollections)
		r.Post("/", s.CreateCollection)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.GetCollection)
			r.Delete("/", s.DeleteCollection)
			r.Post("/documents", s.InsertDocuments)
			r.Get("/documents", s.ListDocuments)
			r.Delete("/documents", s.DeleteDocuments)
			r.Post("/search", s.SearchCollection)
		})
	})

	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.ListModels)
		r.Post("/pull", s.PullModel)
		r.Post("/copy", s.CopyModel)
		r.Get("/{model}", s.ShowModel)
		r.Delete("/{model}", s.DeleteModel)
	})

	r.Post("/query", s.Query)
	r.Post("/embed", s.Embed)
	r.Post("/generate", s.Generate)
	r.Post("/chat", s.Chat)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// HealthCheck handles GET /health and GET /.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeData(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// CreateToken handles POST /api-tokens. The plaintext token appears in this
// response and nowhere else.
func (s *Server) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	plaintext, info, err := s.tokens.Create(r.Context(), req.Name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeData(w, http.StatusCreated, map[string]any{
		"id":         info.ID,
		"name":       info.Name,
		"created_at": info.CreatedAt,
		"token":      plaintext,
	})
}

// ListTokens handles GET /api-tokens.
func (s *Server) ListTokens(w http.ResponseWriter, r *http.Request) {
	infos, err := s.tokens.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"tokens": infos})
}

// GetToken handles GET /api-tokens/{id}.
func (s *Server) GetToken(w http.ResponseWriter, r *http.Request) {
	info, err := s.tokens.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, info)
}

// DeleteToken handles DELETE /api-tokens/{id}. Deleting the last token
// returns the gateway to open mode.
func (s *Server) DeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

// CreateCollection handles POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		EmbeddingModel string `json:"embedding_model"`
		Dimension      int    `json:"dimension"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	cfg, err := s.collections.Create(r.Context(), req.Name, req.EmbeddingModel, req.Dimension)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, cfg)
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	cfgs, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"collections": cfgs})
}

// GetCollection handles GET /collections/{collection}. The document count is
// read live from the vector store.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	cfg, count, err := s.collections.Get(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"name":            cfg.Name,
		"embedding_model": cfg.EmbeddingModel,
		"dimension":       cfg.Dimension,
		"created_at":      cfg.CreatedAt,
		"document_count":  count,
	})
}

// DeleteCollection handles DELETE /collections/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Delete(r.Context(), chi.URLParam(r, "collection")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

// InsertDocuments handles POST /collections/{collection}/documents.
func (s *Server) InsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Documents []domain.Document `json:"documents"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ids, err := s.collections.InsertDocuments(r.Context(), chi.URLParam(r, "collection"), req.Documents)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{
		"ids":   ids,
		"count": len(ids),
	})
}

// ListDocuments handles GET /collections/{collection}/documents. Paging uses
// the vector store's opaque scroll offset.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var offset any
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		} else {
			offset = raw
		}
	}

	docs, next, err := s.collections.ListDocuments(r.Context(), chi.URLParam(r, "collection"), limit, offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	data := map[string]any{
		"documents": docs,
		"count":     len(docs),
	}
	if next != nil {
		data["next_offset"] = next
	}
	writeData(w, http.StatusOK, data)
}

// DeleteDocuments handles DELETE /collections/{collection}/documents.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []any `json:"ids"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.collections.DeleteDocuments(r.Context(), chi.URLParam(r, "collection"), req.IDs); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": len(req.IDs)})
}

// SearchCollection handles POST /collections/{collection}/search.
func (s *Server) SearchCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string  `json:"query"`
		TopK           int     `json:"top_k"`
		Limit          int     `json:"limit"`
		ScoreThreshold float64 `json:"score_threshold"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	results, err := s.collections.Search(
		r.Context(), chi.URLParam(r, "collection"),
		req.Query, req.TopK, req.Limit, req.ScoreThreshold,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// ListModels handles GET /models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"models": models})
}

// ShowModel handles GET /models/{model}.
func (s *Server) ShowModel(w http.ResponseWriter, r *http.Request) {
	details, err := s.models.Show(r.Context(), chi.URLParam(r, "model"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, details)
}

// DeleteModel handles DELETE /models/{model}.
func (s *Server) DeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Delete(r.Context(), chi.URLParam(r, "model")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

// PullModel handles POST /models/pull. By default the backend's NDJSON
// progress stream is relayed; stream:false blocks until the pull completes.
func (s *Server) PullModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Model  string `json:"model"`
		Stream *bool  `json:"stream"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	name := req.Name
	if name == "" {
		name = req.Model
	}

	if req.Stream != nil && !*req.Stream {
		if err := s.models.Pull(r.Context(), name); err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"status": "success"})
		return
	}

	stream, err := s.models.PullStream(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.relayNDJSON(w, stream, nil)
}

// CopyModel handles POST /models/copy.
func (s *Server) CopyModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.models.Copy(r.Context(), req.Source, req.Destination); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"copied": true})
}

// Query handles POST /query, the unified RAG / direct workflow.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model          string               `json:"model"`
		Query          string               `json:"query"`
		Prompt         string               `json:"prompt"`
		Messages       []domain.ChatMessage `json:"messages"`
		Collection     string               `json:"collection"`
		TopK           int                  `json:"top_k"`
		Limit          int                  `json:"limit"`
		ScoreThreshold float64              `json:"score_threshold"`
		SystemPrompt   string               `json:"system_prompt"`
		Temperature    *float64             `json:"temperature"`
		TopP           *float64             `json:"top_p"`
		MaxTokens      *int                 `json:"max_tokens"`
		Stream         *bool                `json:"stream"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.query.Run(r.Context(), &queryuc.Request{
		Model:          req.Model,
		Query:          req.Query,
		Prompt:         req.Prompt,
		Messages:       req.Messages,
		Collection:     req.Collection,
		TopK:           req.TopK,
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
		SystemPrompt:   req.SystemPrompt,
		Temperature:    req.Temperature,
		TopP:           req.TopP,
		MaxTokens:      req.MaxTokens,
		Stream:         req.Stream,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if res.Stream != nil {
		var trailer []byte
		if req.Collection != "" {
			trailer, _ = json.Marshal(map[string]any{"sources": res.Sources})
		}
		s.relayNDJSON(w, res.Stream, trailer)
		return
	}
	writeData(w, http.StatusOK, res.Response)
}

// Embed handles POST /embed. Input may be a single string or a list; the
// model is auto-provisioned before embedding.
func (s *Server) Embed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string          `json:"model"`
		Input json.RawMessage `json:"input"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	input, err := decodeStringOrList(req.Input)
	if err != nil {
		writeError(w, http.StatusBadRequest, "input must be a string or a list of strings")
		return
	}
	if len(input) == 0 {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	if err := s.provisioner.Ensure(r.Context(), req.Model); err != nil {
		s.handleDomainError(w, err)
		return
	}

	vecs, err := s.inference.Embed(r.Context(), req.Model, input)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"model":      req.Model,
		"embeddings": vecs,
	})
}

// Generate handles POST /generate, a direct passthrough to text completion.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model       string   `json:"model"`
		Prompt      string   `json:"prompt"`
		System      string   `json:"system"`
		Temperature *float64 `json:"temperature"`
		TopP        *float64 `json:"top_p"`
		MaxTokens   *int     `json:"max_tokens"`
		Stream      *bool    `json:"stream"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Model == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "model and prompt are required")
		return
	}

	if err := s.provisioner.Ensure(r.Context(), req.Model); err != nil {
		s.handleDomainError(w, err)
		return
	}

	genReq := ollama.GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Options: samplingOptions(req.Temperature, req.TopP, req.MaxTokens),
	}

	if req.Stream == nil || *req.Stream {
		stream, err := s.inference.GenerateStream(r.Context(), genReq)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		s.relayNDJSON(w, stream, nil)
		return
	}

	resp, err := s.inference.Generate(r.Context(), genReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

// Chat handles POST /chat, a direct passthrough to chat completion.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model       string               `json:"model"`
		Messages    []domain.ChatMessage `json:"messages"`
		Temperature *float64             `json:"temperature"`
		TopP        *float64             `json:"top_p"`
		MaxTokens   *int                 `json:"max_tokens"`
		Stream      *bool                `json:"stream"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "model and messages are required")
		return
	}

	if err := s.provisioner.Ensure(r.Context(), req.Model); err != nil {
		s.handleDomainError(w, err)
		return
	}

	chatReq := ollama.ChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options:  samplingOptions(req.Temperature, req.TopP, req.MaxTokens),
	}

	if req.Stream == nil || *req.Stream {
		stream, err := s.inference.ChatStream(r.Context(), chatReq)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		s.relayNDJSON(w, stream, nil)
		return
	}

	resp, err := s.inference.Chat(r.Context(), chatReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

// decode reads the JSON body into v, rendering a 400 envelope on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func decodeStringOrList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return list, nil
}

func samplingOptions(temperature, topP *float64, maxTokens *int) *ollama.Options {
	if temperature == nil && topP == nil && maxTokens == nil {
		return nil
	}
	return &ollama.Options{
		Temperature: temperature,
		TopP:        topP,
		NumPredict:  maxTokens,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// safeDomainMessage exposes the error text only for recognized sentinels.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrUnauthorized,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrModelPull,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
