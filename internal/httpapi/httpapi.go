// Package httpapi implements the engine's external HTTP and WebSocket
// surface: thin handlers that decode a request, delegate to the
// appropriate component, and encode its result. No business logic lives
// here — decisions (classification, ranking, escalation) are made by the
// packages this router wires together.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/scigraph/engine/internal/aggregate"
	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/embedding"
	"github.com/scigraph/engine/internal/eventbus/wsbridge"
	"github.com/scigraph/engine/internal/extract/pdf"
	"github.com/scigraph/engine/internal/extract/problem"
	"github.com/scigraph/engine/internal/extract/section"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/importer"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/match"
	matchworkflow "github.com/scigraph/engine/internal/match/workflow"
	"github.com/scigraph/engine/internal/metrics"
	"github.com/scigraph/engine/internal/review"
	"github.com/scigraph/engine/internal/workflow"
)

// Deps bundles every component the router delegates to. Any field may be
// left nil in a deployment that does not wire that surface; handlers that
// depend on a nil field return 500 (apperrors.Internal) with an
// "is not configured" message.
type Deps struct {
	Repo         graph.Repository
	Aggregator   *aggregate.Aggregator
	Importer     *importer.Importer
	ProblemExtractor *problem.Extractor
	Embedding    *embedding.Service
	Matcher      *match.Matcher
	MatchEngine  *matchworkflow.Engine
	ReviewQueue  *review.Queue
	Workflow     *workflow.Engine
	WSBridge     *wsbridge.Bridge
	Metrics      *metrics.Metrics
	Log          *logging.Logger
}

// NewRouter builds the chi router implementing the engine's HTTP/WS
// contracts.
func NewRouter(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = logging.NewDefault("httpapi")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global()
	}

	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.stats)

		r.Get("/problems", h.listProblems)
		r.Get("/problems/{id}", h.getProblem)
		r.Put("/problems/{id}", h.putProblem)
		r.Delete("/problems/{id}", h.deleteProblem)

		r.Get("/papers", h.listPapers)
		// DOIs contain "/" (e.g. "10.1000/xyz123"), so the remainder is
		// captured with a wildcard rather than a single {doi} segment.
		r.Get("/papers/*", h.getPaper)

		r.Post("/search", h.search)

		r.Post("/extract", h.extract)
		r.Post("/extract/batch", h.extractBatch)

		r.Get("/graph", h.graph)
		r.Get("/graph/neighbors/{node_id}", h.graphNeighbors)

		r.Route("/review", func(r chi.Router) {
			r.Get("/", h.listReviews)
			r.Post("/{mention_id}/claim", h.claimReview)
			r.Post("/{mention_id}/resolve", h.resolveReview)
		})

		r.Route("/agents/workflows", func(r chi.Router) {
			r.Post("/", h.startWorkflow)
			r.Get("/", h.listWorkflows)
			r.Get("/{run_id}", h.getWorkflow)
			r.Delete("/{run_id}", h.cancelWorkflow)
			r.Post("/{run_id}/checkpoints/{checkpoint_type}", h.resolveCheckpoint)
		})

		r.Get("/agents/ws/workflows/{run_id}", h.workflowWebSocket)
	})

	return r
}

type handler struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.KindOf(err).HTTPStatus()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeUnimplemented(w http.ResponseWriter, component string) {
	writeError(w, apperrors.New(apperrors.Internal, component+" is not configured on this deployment"))
	w.Header().Set("X-Component-Status", "unconfigured")
}

func (h *handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if h.deps.Metrics != nil {
			h.deps.Metrics.RecordHTTPRequest("engine-server", r.Method, routePattern(r), strconv.Itoa(ww.Status()), time.Since(start))
		}
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.deps.Repo != nil {
		if err := h.deps.Repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	stats, err := h.deps.Repo.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) listProblems(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	q := r.URL.Query()
	filter := graph.ProblemFilter{
		Domain: q.Get("domain"),
		Limit:  atoiDefault(q.Get("limit"), 50),
		Offset: atoiDefault(q.Get("offset"), 0),
	}
	if raw := q.Get("status"); raw != "" {
		status := graph.ProblemStatus(raw)
		filter.Status = &status
	}
	problems, err := h.deps.Repo.ListProblems(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, problems)
}

func (h *handler) getProblem(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	id := chi.URLParam(r, "id")
	p, ok, err := h.deps.Repo.GetProblem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.New(apperrors.NotFound, "problem not found: "+id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) putProblem(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	id := chi.URLParam(r, "id")
	var p graph.Problem
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode problem body", err))
		return
	}
	p.ID = id
	if err := h.deps.Repo.UpdateProblem(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	updated, _, err := h.deps.Repo.GetProblem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteProblem soft-deletes by advancing status to deprecated, per the
// engine's documented DELETE semantics (hard deletes would strand
// relations other nodes still reference).
func (h *handler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	id := chi.URLParam(r, "id")
	p, ok, err := h.deps.Repo.GetProblem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.New(apperrors.NotFound, "problem not found: "+id))
		return
	}
	p.Status = graph.StatusDeprecated
	if err := h.deps.Repo.UpdateProblem(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listPapers(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	q := r.URL.Query()
	papers, err := h.deps.Repo.ListPapers(r.Context(), atoiDefault(q.Get("limit"), 50), atoiDefault(q.Get("offset"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *handler) getPaper(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	// DOIs contain "/"; chi's wildcard-free {doi} segment only captures up
	// to the first slash, so the remaining path after the mount is used
	// as-is rather than relying on URLParam.
	doi := strings.TrimPrefix(r.URL.Path, "/api/papers/")
	p, ok, err := h.deps.Repo.GetPaper(r.Context(), doi)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.New(apperrors.NotFound, "paper not found: "+doi))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type searchRequestBody struct {
	Query          string  `json:"query"`
	Domain         string  `json:"domain,omitempty"`
	Status         string  `json:"status,omitempty"`
	TopK           int     `json:"top_k"`
	SemanticWeight float64 `json:"semantic_weight"`
}

// search runs a paper search across the configured sources through the
// Aggregator and returns at most top_k results (default 20) in the
// Aggregator's order. No embedding re-ranking is applied: semantic_weight,
// domain and status are accepted in the body but not used.
func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode search request", err))
		return
	}
	if h.deps.Aggregator == nil {
		writeUnimplemented(w, "aggregator")
		return
	}
	if body.TopK <= 0 {
		body.TopK = 20
	}
	papers, err := h.deps.Aggregator.Search(r.Context(), aggregate.SearchRequest{
		Query: body.Query,
		Limit: body.TopK,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

type extractRequestBody struct {
	URL     string   `json:"url,omitempty"`
	Text    string   `json:"text,omitempty"`
	Title   string   `json:"title,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Authors []string `json:"authors,omitempty"`
}

type extractResponseBody struct {
	DOI        string                     `json:"doi,omitempty"`
	Sections   int                        `json:"sections_processed"`
	Problems   []problem.ExtractedProblem `json:"problems"`
	MentionIDs []string                   `json:"mention_ids,omitempty"`
}

// extract runs one paper's text through the PDF extractor (falling back to
// the raw text when that fails), the section segmenter, and the problem
// extractor, then embeds and matches every extracted problem. A request
// with a url and no text resolves the paper and then returns an error:
// fetching PDF bytes is not wired.
func (h *handler) extract(w http.ResponseWriter, r *http.Request) {
	var body extractRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode extract request", err))
		return
	}
	resp, err := h.runExtraction(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) extractBatch(w http.ResponseWriter, r *http.Request) {
	var bodies []extractRequestBody
	if err := json.NewDecoder(r.Body).Decode(&bodies); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode extract batch request", err))
		return
	}
	results := make([]extractResponseBody, 0, len(bodies))
	for _, body := range bodies {
		resp, err := h.runExtraction(r.Context(), body)
		if err != nil {
			h.deps.Log.WithField("doi", body.DOI).WithField("error", err).Warn("batch extraction failed for one item")
			continue
		}
		results = append(results, resp)
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) runExtraction(ctx context.Context, body extractRequestBody) (extractResponseBody, error) {
	if h.deps.ProblemExtractor == nil {
		return extractResponseBody{}, apperrors.New(apperrors.Internal, "problem extractor is not configured")
	}

	text := body.Text
	if text == "" && body.URL != "" {
		if h.deps.Aggregator == nil {
			return extractResponseBody{}, apperrors.New(apperrors.Internal, "aggregator is not configured for URL fetches")
		}
		paper, err := h.deps.Aggregator.Fetch(ctx, body.URL)
		if err != nil {
			return extractResponseBody{}, err
		}
		if paper.PDFURL == "" {
			return extractResponseBody{}, apperrors.New(apperrors.Validation, "resolved paper has no PDF URL")
		}
		return extractResponseBody{}, apperrors.New(apperrors.Internal, "PDF byte fetch is not wired on this deployment")
	}

	extracted, err := pdf.Extract([]byte(text))
	sourceText := text
	if err == nil {
		sourceText = extracted.FullText()
	}

	sections := section.Segment(sourceText)
	resp := extractResponseBody{DOI: body.DOI, Sections: len(sections)}

	for _, sec := range sections {
		result, err := h.deps.ProblemExtractor.ExtractFromSection(ctx, sec, body.Title, body.Authors)
		if err != nil {
			h.deps.Log.WithField("section", sec.Type).WithField("error", err).Warn("section extraction failed")
			continue
		}
		resp.Problems = append(resp.Problems, result.Problems...)

		for _, ep := range result.Problems {
			mentionID := h.createMentionAndMatch(ctx, body.DOI, sec, ep)
			if mentionID != "" {
				resp.MentionIDs = append(resp.MentionIDs, mentionID)
			}
		}
	}
	return resp, nil
}

func (h *handler) createMentionAndMatch(ctx context.Context, doi string, sec section.Section, ep problem.ExtractedProblem) string {
	if h.deps.Repo == nil {
		return ""
	}

	mention := graph.ProblemMention{
		ID:        uuid.NewString(),
		Statement: ep.Statement,
		PaperDOI:  doi,
		Domain:    ep.Domain,
	}

	if h.deps.Embedding != nil {
		text := embedding.ProblemEmbeddingText(ep.Domain, ep.Statement, ep.Assumptions)
		if vec, err := h.deps.Embedding.Embed(ctx, text); err == nil {
			mention.Embedding = vec
		}
	}

	if err := h.deps.Repo.CreateMention(ctx, mention); err != nil {
		h.deps.Log.WithField("error", err).Warn("create mention failed")
		return ""
	}

	if h.deps.MatchEngine != nil {
		if _, err := h.deps.MatchEngine.Run(ctx, uuid.NewString(), mention); err != nil {
			h.deps.Log.WithField("mention_id", mention.ID).WithField("error", err).Warn("matching workflow failed")
		}
	}

	return mention.ID
}

func (h *handler) graph(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	q := r.URL.Query()
	filter := graph.ProblemFilter{
		Domain: q.Get("domain"),
		Limit:  atoiDefault(q.Get("limit"), 100),
	}
	problems, err := h.deps.Repo.ListProblems(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]interface{}{"problems": problems}
	if q.Get("include_papers") == "true" {
		papers, err := h.deps.Repo.ListPapers(r.Context(), filter.Limit, 0)
		if err == nil {
			resp["papers"] = papers
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) graphNeighbors(w http.ResponseWriter, r *http.Request) {
	if h.deps.Repo == nil {
		writeUnimplemented(w, "repository")
		return
	}
	nodeID := chi.URLParam(r, "node_id")
	depth := atoiDefault(r.URL.Query().Get("depth"), 1)
	relations, err := h.deps.Repo.Neighbors(r.Context(), nodeID, depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relations)
}

// listReviews returns queued PendingReview entries ordered by SLA
// deadline, optionally narrowed to one priority class.
func (h *handler) listReviews(w http.ResponseWriter, r *http.Request) {
	if h.deps.ReviewQueue == nil {
		writeUnimplemented(w, "review queue")
		return
	}
	q := r.URL.Query()
	filter := review.ListFilter{
		Priority: graph.ReviewPriority(q.Get("priority")),
		Limit:    atoiDefault(q.Get("limit"), 50),
		Offset:   atoiDefault(q.Get("offset"), 0),
	}
	reviews, err := h.deps.ReviewQueue.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

type claimReviewRequestBody struct {
	Reviewer   string `json:"reviewer"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// claimReview checks a PendingReview out for a reviewer with a lease of
// ttl_seconds. The claim does not hide the entry from the review list or
// from other claimants.
func (h *handler) claimReview(w http.ResponseWriter, r *http.Request) {
	if h.deps.ReviewQueue == nil {
		writeUnimplemented(w, "review queue")
		return
	}
	mentionID := chi.URLParam(r, "mention_id")
	var body claimReviewRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode claim request", err))
		return
	}
	if body.Reviewer == "" {
		writeError(w, apperrors.New(apperrors.Validation, "reviewer is required"))
		return
	}
	ttl := time.Duration(body.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if err := h.deps.ReviewQueue.Claim(r.Context(), mentionID, body.Reviewer, ttl); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolveReviewRequestBody struct {
	Decision  string `json:"decision"`
	ConceptID string `json:"concept_id,omitempty"`
	Reviewer  string `json:"reviewer"`
}

// resolveReview records a reviewer's decision: "link" writes an
// INSTANCE_OF edge to concept_id, "create_new" promotes the mention to a
// brand new concept.
func (h *handler) resolveReview(w http.ResponseWriter, r *http.Request) {
	if h.deps.ReviewQueue == nil {
		writeUnimplemented(w, "review queue")
		return
	}
	mentionID := chi.URLParam(r, "mention_id")
	var body resolveReviewRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode resolve request", err))
		return
	}
	res := graph.Resolution{Decision: body.Decision, ConceptID: body.ConceptID, Reviewer: body.Reviewer}
	if err := h.deps.ReviewQueue.Resolve(r.Context(), mentionID, res); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) startWorkflow(w http.ResponseWriter, r *http.Request) {
	if h.deps.Workflow == nil {
		writeUnimplemented(w, "workflow engine")
		return
	}
	var params workflow.Params
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, apperrors.Wrap(apperrors.Validation, "decode workflow params", err))
			return
		}
	}
	runID, err := h.deps.Workflow.Start(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"run_id":        string(runID),
		"websocket_url": "/api/agents/ws/workflows/" + string(runID),
	})
}

func (h *handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	if h.deps.Workflow == nil {
		writeUnimplemented(w, "workflow engine")
		return
	}
	runs, err := h.deps.Workflow.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) getWorkflow(w http.ResponseWriter, r *http.Request) {
	if h.deps.Workflow == nil {
		writeUnimplemented(w, "workflow engine")
		return
	}
	runID := workflow.RunID(chi.URLParam(r, "run_id"))
	state, ok, err := h.deps.Workflow.GetState(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperrors.New(apperrors.NotFound, "run not found: "+string(runID)))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *handler) cancelWorkflow(w http.ResponseWriter, r *http.Request) {
	if h.deps.Workflow == nil {
		writeUnimplemented(w, "workflow engine")
		return
	}
	runID := workflow.RunID(chi.URLParam(r, "run_id"))
	if err := h.deps.Workflow.Cancel(r.Context(), runID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkpointRequestBody struct {
	Decision   workflow.Decision `json:"decision"`
	Feedback   string            `json:"feedback,omitempty"`
	EditedData json.RawMessage   `json:"edited_data,omitempty"`
}

func (h *handler) resolveCheckpoint(w http.ResponseWriter, r *http.Request) {
	if h.deps.Workflow == nil {
		writeUnimplemented(w, "workflow engine")
		return
	}
	runID := workflow.RunID(chi.URLParam(r, "run_id"))
	checkpointType := workflow.CheckpointType(chi.URLParam(r, "checkpoint_type"))

	var body checkpointRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.Validation, "decode checkpoint decision", err))
		return
	}

	state, err := h.deps.Workflow.Resume(r.Context(), runID, checkpointType, body.Decision, body.Feedback, body.EditedData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// workflowWebSocket upgrades the connection and registers it with the
// event-bus bridge for run_id. It reads client frames only to answer
// "ping" with a pong and to notice disconnects; all outbound traffic is
// pushed by the bridge from workflow engine events.
func (h *handler) workflowWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.WSBridge == nil {
		writeUnimplemented(w, "websocket bridge")
		return
	}
	runID := chi.URLParam(r, "run_id")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.deps.Log.WithField("error", err).Warn("websocket upgrade failed")
		return
	}
	defer ws.Close()

	h.deps.WSBridge.Register(runID, ws)
	defer h.deps.WSBridge.Unregister(runID, ws)

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if strings.TrimSpace(string(msg)) == "ping" {
			pong, err := wsbridge.Pong()
			if err != nil {
				continue
			}
			_ = ws.WriteMessage(websocket.TextMessage, pong)
		}
	}
}

func atoiDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
