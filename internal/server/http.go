package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffersTech/kwrule/internal/cache"
	"github.com/coffersTech/kwrule/internal/compiler"
	"github.com/coffersTech/kwrule/internal/config"
	"github.com/coffersTech/kwrule/internal/pkg/rule"
)

type ctxKey int

const requestIDKey ctxKey = iota

// Options configures a CompileServer.
type Options struct {
	Config    config.Config
	TokenHash string       // bcrypt hash of the bearer token; empty disables auth
	Cache     *cache.Store // optional
}

// CompileServer exposes the keyword compilers over HTTP: expression in, JSON out.
type CompileServer struct {
	cfg       config.Config
	compilers map[cache.Key]compiler.ExpressionCompiler // keyed by requested precedence; Expr unused
	cache     *cache.Store
	tokenHash []byte
	srv       *http.Server
	parser    fastjson.ParserPool
	requests  int64
	failures  int64
}

// NewCompileServer builds a compiler for every format and precedence up front.
func NewCompileServer(opts Options) (*CompileServer, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	s := &CompileServer{
		cfg:       opts.Config,
		compilers: make(map[cache.Key]compiler.ExpressionCompiler),
		cache:     opts.Cache,
	}
	if opts.TokenHash != "" {
		if _, err := bcrypt.Cost([]byte(opts.TokenHash)); err != nil {
			return nil, fmt.Errorf("invalid token hash: %w", err)
		}
		s.tokenHash = []byte(opts.TokenHash)
	}

	for _, f := range []compiler.Format{compiler.FormatRule, compiler.FormatQuery} {
		for _, p := range []config.Precedence{config.DefaultPrecedence, config.AndOuter, config.AndTighter} {
			cfg := opts.Config
			cfg.Precedence = p
			c, err := compiler.New(cfg, f)
			if err != nil {
				return nil, err
			}
			s.compilers[cache.Key{Format: f, Precedence: p}] = c
		}
	}
	return s, nil
}

// Handler returns the routed, compressed handler.
func (s *CompileServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/api/compile", s.AuthMiddleware(http.HandlerFunc(s.handleCompile)))
	mux.Handle("/api/rule", s.AuthMiddleware(http.HandlerFunc(s.handleRule)))
	mux.Handle("/api/stats", s.AuthMiddleware(http.HandlerFunc(s.handleStats)))

	return gzhttp.GzipHandler(s.requestID(mux))
}

// Start runs the HTTP server.
func (s *CompileServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *CompileServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *CompileServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// AuthMiddleware checks the bearer token when a token hash is configured.
func (s *CompileServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="kwrule"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)); err != nil {
			log.Printf("[%s] rejected token from %s", requestIDFrom(r), r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="kwrule"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *CompileServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCompile processes POST /api/compile {"expr", "format", "precedence"}.
func (s *CompileServer) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, ok := s.readBody(w, r, p)
	if !ok {
		return
	}

	if !v.Exists("expr") || v.Get("expr").Type() != fastjson.TypeString {
		http.Error(w, "expr is required", http.StatusBadRequest)
		return
	}
	expr := string(v.GetStringBytes("expr"))

	format, err := compiler.ParseFormat(string(v.GetStringBytes("format")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	prec, err := s.precedence(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := s.compilers[cache.Key{Format: format, Precedence: prec}]
	key := cache.Key{Format: format, Precedence: c.Precedence(), Expr: expr}
	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			writeJSON(w, http.StatusOK, res)
			return
		}
	}

	res, err := c.Compile(expr)
	if err != nil {
		s.writeCompileError(w, r, err)
		return
	}
	if s.cache != nil {
		s.cache.Put(key, res)
	}

	writeJSON(w, http.StatusOK, res)
}

// handleRule processes POST /api/rule, combining a keyword expression with
// location and tag filters into one rule.
func (s *CompileServer) handleRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt64(&s.requests, 1)

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, ok := s.readBody(w, r, p)
	if !ok {
		return
	}

	prec, err := s.precedence(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg := s.cfg
	cfg.Precedence = prec

	var text *rule.Rule
	if expr := string(v.GetStringBytes("text_plain")); expr != "" {
		t, err := rule.NewKeywordRuleParser(cfg).Parse(expr)
		if err != nil {
			s.writeCompileError(w, r, fmt.Errorf("keyword rule: %w", err))
			return
		}
		text = &t
	}

	var preds []rule.Node

	locations, err := LocationsFrom(v.Get("based_location_plain"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(locations) > 0 {
		preds = append(preds, rule.NewBasedLocationParser(cfg).ParseMultiple(locations))
	}

	tags, err := TagsFrom(v.Get("tag_plain"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(tags) > 0 {
		preds = append(preds, rule.NewTagsParser(cfg).Parse(tags))
	}

	composed, err := rule.Compose(text, preds...)
	if err != nil {
		s.writeCompileError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, composed)
}

// handleStats reports request counters, cache size and cache hits.
func (s *CompileServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cached, hits int64
	if s.cache != nil {
		for _, e := range s.cache.Stats() {
			cached++
			hits += e.Hits
		}
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"requests": atomic.LoadInt64(&s.requests),
		"failures": atomic.LoadInt64(&s.failures),
		"cached":   cached,
		"hits":     hits,
	})
}

func (s *CompileServer) readBody(w http.ResponseWriter, r *http.Request, p *fastjson.Parser) (*fastjson.Value, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[%s] Failed to read body: %v", requestIDFrom(r), err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return nil, false
	}
	defer r.Body.Close()

	v, err := p.ParseBytes(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return nil, false
	}
	if v.Type() != fastjson.TypeObject {
		http.Error(w, "Invalid JSON: expected object", http.StatusBadRequest)
		return nil, false
	}
	return v, true
}

func (s *CompileServer) precedence(v *fastjson.Value) (config.Precedence, error) {
	if !v.Exists("precedence") {
		return s.cfg.Precedence, nil
	}
	return config.ParsePrecedence(string(v.GetStringBytes("precedence")))
}

// writeCompileError reports a rejected expression as 422 with its position.
func (s *CompileServer) writeCompileError(w http.ResponseWriter, r *http.Request, err error) {
	atomic.AddInt64(&s.failures, 1)
	log.Printf("[%s] compile failed: %v", requestIDFrom(r), err)

	resp := map[string]interface{}{"error": err.Error()}
	if pos, ok := compiler.Position(err); ok {
		resp["position"] = pos
	}
	if errors.Is(err, rule.ErrEmptyRule) {
		resp["error"] = "at least one of text_plain, based_location_plain or tag_plain is required"
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}
