// Package server exposes the resource operations over HTTP.
//
// The surface is thin: it validates path segments, takes the actor from a
// header set by the authenticating proxy, decodes bodies and maps the error
// taxonomy onto status codes. Every decision about state is made by the
// resource service.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/resource"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// maxBodySize caps request bodies, patches included.
const maxBodySize = 16 << 20

// DefaultUserHeader carries the authenticated user id.
const DefaultUserHeader = "X-MMS-User"

// Resources is the set of operations the server routes to.
type Resources interface {
	CreateOrg(ctx context.Context, req resource.Request, in resource.OrgInput) (*engine.Result, error)
	GetOrg(ctx context.Context, req resource.Request) (*engine.Result, error)
	CreateRepo(ctx context.Context, req resource.Request, in resource.RepoInput) (*engine.Result, error)
	GetRepo(ctx context.Context, req resource.Request) (*engine.Result, error)
	CreateBranch(ctx context.Context, req resource.Request, in resource.BranchInput) (*engine.Result, error)
	GetBranch(ctx context.Context, req resource.Request) (*engine.Result, error)
	Commit(ctx context.Context, req resource.Request, in resource.CommitInput) (*engine.Result, error)
	ReadBranchGraph(ctx context.Context, req resource.Request) (*engine.Result, error)
	CreateLock(ctx context.Context, req resource.Request) (*engine.Result, error)
	GetLock(ctx context.Context, req resource.Request) (*engine.Result, error)
	DeleteLock(ctx context.Context, req resource.Request) (*engine.Result, error)
}

var _ Resources = (*resource.Service)(nil)

// Pinger checks the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to Resources.
type Server struct {
	res        Resources
	pinger     Pinger
	metrics    http.Handler
	userHeader string
	logger     *slog.Logger
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithUserHeader overrides DefaultUserHeader.
func WithUserHeader(name string) Option {
	return func(s *Server) {
		s.userHeader = name
	}
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithPinger makes /healthz check the store.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// New creates a Server over res.
func New(res Resources, opts ...Option) *Server {
	s := &Server{
		res:        res,
		userHeader: DefaultUserHeader,
		logger:     slog.Default(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	const (
		org    = "/orgs/{org}"
		repo   = org + "/repos/{repo}"
		branch = repo + "/branches/{branch}"
		lock   = repo + "/commit/{commit}/locks/{lock}"

		// Plural alias, matching the lock's resource IRI.
		lockAlias = repo + "/commits/{commit}/locks/{lock}"
	)

	s.mux.HandleFunc("PUT "+org, s.handle(s.putOrg))
	s.mux.HandleFunc("GET "+org, s.handle(s.getOrg))
	s.mux.HandleFunc("PUT "+repo, s.handle(s.putRepo))
	s.mux.HandleFunc("GET "+repo, s.handle(s.getRepo))
	s.mux.HandleFunc("PUT "+branch, s.handle(s.putBranch))
	s.mux.HandleFunc("GET "+branch, s.handle(s.getBranch))
	s.mux.HandleFunc("POST "+branch+"/commits", s.handle(s.postCommit))
	s.mux.HandleFunc("GET "+branch+"/graph", s.handle(s.getGraph))
	for _, path := range []string{lock, lockAlias} {
		s.mux.HandleFunc("PUT "+path, s.handle(s.putLock))
		s.mux.HandleFunc("GET "+path, s.handle(s.getLock))
		s.mux.HandleFunc("DELETE "+path, s.handle(s.deleteLock))
	}

	s.mux.HandleFunc("GET /healthz", s.healthz)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// call is one routed request after the actor and body have been read.
type call struct {
	req  resource.Request
	body []byte
}

// reply is what a handler produced on success.
type reply struct {
	status int
	result *engine.Result
}

type handlerFunc func(ctx context.Context, c call) (reply, error)

// handle reads the actor, scope and body, runs h and writes the outcome.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)

		c, err := s.readCall(w, r)
		var rep reply
		if err == nil {
			rep, err = h(r.Context(), c)
		}
		if err != nil {
			status := Status(err)
			logger.Info("request failed",
				"status", status,
				"category", mms.CategoryOf(err),
				"error", err,
				"duration", time.Since(started),
			)
			s.writeError(w, status, err)
			return
		}

		logger.Debug("request done", "status", rep.status, "duration", time.Since(started))
		s.writeResult(w, rep)
	}
}

func (s *Server) readCall(w http.ResponseWriter, r *http.Request) (call, error) {
	actor := r.Header.Get(s.userHeader)
	if actor == "" {
		return call{}, mms.NewValidationError("the %s header is required", s.userHeader)
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			return call{}, mms.NewValidationError("request body could not be read: %v", err)
		}
		body = b
	}

	return call{
		req: resource.Request{
			Actor: actor,
			Scope: mms.Scope{
				Org:    r.PathValue("org"),
				Repo:   r.PathValue("repo"),
				Branch: r.PathValue("branch"),
				Commit: r.PathValue("commit"),
				Lock:   r.PathValue("lock"),
			},
			HTTP: txn.Request{
				Path:        r.URL.Path,
				Method:      r.Method,
				Body:        string(body),
				ContentType: r.Header.Get("Content-Type"),
			},
		},
		body: body,
	}, nil
}

// decode reads an optional JSON body into v.
func decode(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return mms.NewValidationError("request body is not valid JSON: %v", err)
	}
	return nil
}

func ok(res *engine.Result, err error) (reply, error) {
	return reply{status: http.StatusOK, result: res}, err
}

func created(res *engine.Result, err error) (reply, error) {
	return reply{status: http.StatusCreated, result: res}, err
}

func (s *Server) putOrg(ctx context.Context, c call) (reply, error) {
	var in resource.OrgInput
	if err := decode(c.body, &in); err != nil {
		return reply{}, err
	}
	return ok(s.res.CreateOrg(ctx, c.req, in))
}

func (s *Server) getOrg(ctx context.Context, c call) (reply, error) {
	return ok(s.res.GetOrg(ctx, c.req))
}

// repoBody carries repo metadata as an N-Triples document.
type repoBody struct {
	Title    string `json:"title"`
	Metadata string `json:"metadata"`
}

func (s *Server) putRepo(ctx context.Context, c call) (reply, error) {
	var body repoBody
	if err := decode(c.body, &body); err != nil {
		return reply{}, err
	}
	md, err := store.ParseNTriplesString(body.Metadata)
	if err != nil {
		return reply{}, mms.NewValidationError("repo metadata: %v", err)
	}
	return ok(s.res.CreateRepo(ctx, c.req, resource.RepoInput{Title: body.Title, Metadata: md.Triples()}))
}

func (s *Server) getRepo(ctx context.Context, c call) (reply, error) {
	return ok(s.res.GetRepo(ctx, c.req))
}

func (s *Server) putBranch(ctx context.Context, c call) (reply, error) {
	var in resource.BranchInput
	if err := decode(c.body, &in); err != nil {
		return reply{}, err
	}
	return ok(s.res.CreateBranch(ctx, c.req, in))
}

func (s *Server) getBranch(ctx context.Context, c call) (reply, error) {
	return ok(s.res.GetBranch(ctx, c.req))
}

// commitBody carries patches as N-Triples documents.
type commitBody struct {
	Message string `json:"message"`
	Delete  string `json:"delete"`
	Insert  string `json:"insert"`
}

func (s *Server) postCommit(ctx context.Context, c call) (reply, error) {
	var body commitBody
	if err := decode(c.body, &body); err != nil {
		return reply{}, err
	}
	del, err := store.ParseNTriplesString(body.Delete)
	if err != nil {
		return reply{}, mms.NewValidationError("delete patch: %v", err)
	}
	ins, err := store.ParseNTriplesString(body.Insert)
	if err != nil {
		return reply{}, mms.NewValidationError("insert patch: %v", err)
	}
	return created(s.res.Commit(ctx, c.req, resource.CommitInput{
		Message: body.Message,
		Delete:  del.Triples(),
		Insert:  ins.Triples(),
	}))
}

func (s *Server) getGraph(ctx context.Context, c call) (reply, error) {
	return ok(s.res.ReadBranchGraph(ctx, c.req))
}

func (s *Server) putLock(ctx context.Context, c call) (reply, error) {
	return ok(s.res.CreateLock(ctx, c.req))
}

func (s *Server) getLock(ctx context.Context, c call) (reply, error) {
	return ok(s.res.GetLock(ctx, c.req))
}

func (s *Server) deleteLock(ctx context.Context, c call) (reply, error) {
	rep, err := ok(s.res.DeleteLock(ctx, c.req))
	rep.status = http.StatusNoContent
	return rep, err
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK\n")
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch mms.CategoryOf(err) {
	case mms.CategoryValidation:
		return http.StatusBadRequest
	case mms.CategoryPermissionDenied:
		return http.StatusForbidden
	case mms.CategoryPreconditionFailed:
		switch mms.ReasonOf(err) {
		case mms.ReasonNotFound:
			return http.StatusNotFound
		case mms.ReasonStaleReference:
			return http.StatusPreconditionFailed
		default:
			return http.StatusConflict
		}
	case mms.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Category mms.Category `json:"category"`
	Reason   mms.Reason   `json:"reason,omitempty"`
	Message  string       `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorBody{Error: errorDetail{
		Category: mms.CategoryOf(err),
		Reason:   mms.ReasonOf(err),
		Message:  mms.PublicMessage(err),
	}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		s.logger.Warn("failed to write error response", "error", encErr)
	}
}

// writeResult writes the result graph as N-Triples. The ETag names the
// commit when there is one, else the transaction.
func (s *Server) writeResult(w http.ResponseWriter, rep reply) {
	res := rep.result
	if res == nil {
		w.WriteHeader(rep.status)
		return
	}
	tag := res.CommitID
	if tag == "" {
		tag = res.TransactionID
	}
	if tag != "" {
		w.Header().Set("ETag", `"`+tag+`"`)
	}
	if rep.status == http.StatusNoContent {
		w.WriteHeader(rep.status)
		return
	}
	w.Header().Set("Content-Type", "application/n-triples")
	w.WriteHeader(rep.status)
	if err := res.Graph.WriteNTriples(w); err != nil {
		s.logger.Warn("failed to write result graph", "error", err)
	}
}
