// Package server exposes the simulator over HTTP.
//
// POST /execute runs a program and returns one snapshot per cycle.
// POST /compare runs it with forwarding off and on. POST /compile
// assembles source text. GET /stream upgrades to a WebSocket that streams
// snapshots while the program runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iurisilvio/mipssim/asm"
	"github.com/iurisilvio/mipssim/benchmarks"
	"github.com/iurisilvio/mipssim/loader"
	"github.com/iurisilvio/mipssim/timing/pipeline"
)

// ErrInvalidText is reported when a request carries no program text.
var ErrInvalidText = errors.New("INVALID_TEXT")

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Request is the body of /execute, /compare and /compile, and the first
// message of /stream.
type Request struct {
	Text           string   `json:"text"`
	DataForwarding flexBool `json:"data_forwarding"`
}

// flexBool accepts true/false as well as 0/1.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case bool:
		*b = flexBool(v)
	case float64:
		*b = v != 0
	case string:
		parsed, err := parseFlag(v)
		if err != nil {
			return err
		}
		*b = flexBool(parsed)
	case nil:
		*b = false
	default:
		return fmt.Errorf("invalid data_forwarding %s", data)
	}
	return nil
}

func parseFlag(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// ExecuteResponse is the body returned by /execute.
type ExecuteResponse struct {
	Text    string              `json:"text"`
	Result  []pipeline.Snapshot `json:"result"`
	Outcome pipeline.Outcome    `json:"outcome"`
	Stats   pipeline.Statistics `json:"stats"`
}

// CompareResponse is the body returned by /compare.
type CompareResponse struct {
	Text string `json:"text"`
	benchmarks.Comparison
}

// CompileResponse is the body returned by /compile.
type CompileResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithConfig sets the run configuration. Its Forwarding field is replaced
// by each request's data_forwarding.
func WithConfig(config benchmarks.HarnessConfig) Option {
	return func(s *Server) {
		s.config = config
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server serves the simulator API. Every request builds its own pipeline.
type Server struct {
	config benchmarks.HarnessConfig
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a server.
func New(opts ...Option) *Server {
	s := &Server{
		config: benchmarks.DefaultConfig(),
		logger: slog.Default(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.Logger == nil {
		s.config.Logger = s.logger
	}

	s.mux.HandleFunc("POST /execute", s.handleExecute)
	s.mux.HandleFunc("POST /compare", s.handleCompare)
	s.mux.HandleFunc("POST /compile", s.handleCompile)
	s.mux.HandleFunc("GET /stream", s.handleStream)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, program, ok := s.readProgram(w, r)
	if !ok {
		return
	}

	config := s.config
	config.Forwarding = bool(req.DataForwarding)
	opts := append(config.PipelineOptions(), pipeline.WithHistory(true))

	p := pipeline.NewPipeline(program, opts...)
	outcome, err := p.Run(config.MaxCycles)
	if outcome == pipeline.OutcomeFaulted {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ExecuteResponse{
		Text:    req.Text,
		Result:  p.History(),
		Outcome: outcome,
		Stats:   p.Stats(),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	req, program, ok := s.readProgram(w, r)
	if !ok {
		return
	}

	cmp, err := benchmarks.CompareForwarding(program, s.config)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusOK, CompareResponse{Text: req.Text, Comparison: cmp})
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	lines, err := asm.Assemble(req.Text)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusOK, CompileResponse{Result: strings.Join(lines, "\n")})
}

// readProgram decodes the request and loads its program text, writing the
// error response itself when that fails.
func (s *Server) readProgram(w http.ResponseWriter, r *http.Request) (Request, []string, bool) {
	req, err := readRequest(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return req, nil, false
	}

	program, err := loadProgram(req.Text)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return req, nil, false
	}
	return req, program, true
}

func loadProgram(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidText
	}
	prog, err := loader.ParseAuto(text)
	if err != nil {
		return nil, err
	}
	if len(prog.Lines) == 0 {
		return nil, ErrInvalidText
	}
	return prog.Lines, nil
}

// readRequest accepts a JSON body or form fields.
func readRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	var req Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("failed to decode request: %w", err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("failed to parse form: %w", err)
	}
	req.Text = r.PostFormValue("text")
	forwarding, err := parseFlag(r.PostFormValue("data_forwarding"))
	if err != nil {
		return req, fmt.Errorf("invalid data_forwarding: %w", err)
	}
	req.DataForwarding = flexBool(forwarding)
	return req, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Debug("request failed", "status", status, "err", err)
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
