// Package httpapi exposes the leaderboard command endpoint over HTTP.
//
// Every POST to "/" carries a command and a JSON data field, from either
// the form body or the query string, and receives one JSON envelope with
// status 200. Protected commands also carry cnonce and hash headers; the
// hash covers the exact raw request body, so the body is read once and kept.
package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/louisbranch/leaderboard/internal/platform/httpx"
	"github.com/louisbranch/leaderboard/internal/platform/requestctx"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/command"
)

const (
	// DefaultMaxBodyBytes caps request bodies when Config leaves it unset.
	DefaultMaxBodyBytes int64 = 64 << 10

	// HeaderClientNonce carries the client-chosen nonce on protected commands.
	HeaderClientNonce = "cnonce"
	// HeaderHash carries the proof on protected commands.
	HeaderHash        = "hash"

	allowedMethods = "POST, OPTIONS"
)

// CORSPolicy is the cross-origin policy browser-hosted game builds rely on.
var CORSPolicy = httpx.CORSConfig{
	AllowOrigin:  "*",
	AllowMethods: []string{http.MethodPost, http.MethodOptions},
	AllowHeaders: []string{"Authorization", "Content-Type", "Accept", "Origin", "cache-control", HeaderClientNonce, HeaderHash},
	MaxAge:       60 * time.Second,
}

// Dispatcher runs one command request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) command.Envelope
}

// Pinger reports store reachability for the /up endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config defines the handler's collaborators and limits.
type Config struct {
	Dispatcher   Dispatcher
	Pinger       Pinger
	MaxBodyBytes int64
	// TrustProxy takes the client identity from X-Forwarded-For or
	// X-Real-IP instead of the connection address.
	TrustProxy bool
}

type handler struct {
	dispatcher   Dispatcher
	pinger       Pinger
	maxBodyBytes int64
}

// NewHandler builds the leaderboard router.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	h := &handler{
		dispatcher:   cfg.Dispatcher,
		pinger:       cfg.Pinger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(httpx.RecoverPanic(), httpx.RequestID())
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(httpx.CORS(CORSPolicy))

	r.Post("/", h.serveCommand)
	r.Get("/up", h.serveUp)
	r.MethodNotAllowed(httpx.MethodNotAllowed(allowedMethods))
	return r, nil
}

func (h *handler) serveCommand(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	values := requestValues(r, raw, h.maxBodyBytes)
	identity := httpx.ClientIdentity(r)
	req := command.Request{
		ClientIdentity: identity,
		Command:        field(values, "command"),
		Data:           field(values, "data"),
		ClientNonce:    header(r, HeaderClientNonce),
		Hash:           r.Header.Get(HeaderHash),
		RawBody:        raw,
	}

	env := h.dispatcher.Dispatch(r.Context(), req)
	if err := httpx.WriteJSON(w, http.StatusOK, env); err != nil {
		log.Printf("write envelope request_id=%s: %v", requestctx.RequestIDFromContext(r.Context()), err)
	}
}

func (h *handler) serveUp(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			log.Printf("up check failed: %v", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requestValues merges query parameters with form body fields; body fields
// win on conflict. Bodies that are not form encoded contribute nothing.
func requestValues(r *http.Request, raw []byte, maxBodyBytes int64) url.Values {
	values := r.URL.Query()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return values
	}
	var body url.Values
	switch mediaType {
	case "application/x-www-form-urlencoded":
		// Malformed pairs are skipped; whatever parsed is kept.
		body, _ = url.ParseQuery(string(raw))
	case "multipart/form-data":
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return values
		}
		body = url.Values(r.MultipartForm.Value)
	}
	for key, vs := range body {
		values[key] = vs
	}
	return values
}

// field returns the last value sent for key, as a form decoder that lets
// later pairs override earlier ones would.
func field(values url.Values, key string) command.Field {
	vs, ok := values[key]
	if !ok || len(vs) == 0 {
		return command.Field{}
	}
	return command.Set(vs[len(vs)-1])
}

// header reports a request header as a Field, so a header sent with an
// empty value is distinguishable from one never sent.
func header(r *http.Request, key string) command.Field {
	vs := r.Header.Values(key)
	if len(vs) == 0 {
		return command.Field{}
	}
	return command.Set(vs[0])
}
