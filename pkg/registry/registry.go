package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// InferenceFunc answers an inference request with a status and a raw body.
type InferenceFunc func(ctx context.Context, id string, inputs json.RawMessage) (int, []byte)

// Registry serves a Store through the hub compatible http api: model
// listing, info, file tree and file content, plus an optional inference api.
type Registry struct {
	Store Store
	// Token, when set, is required as bearer token on every request.
	Token string
	// Account is answered by whoami.
	Account   types.Account
	Inference InferenceFunc
	// Middlewares run after routing, before the auth check.
	Middlewares []mux.MiddlewareFunc
}

func NewRegistry(store Store) *Registry {
	return &Registry{Store: store, Account: types.Account{Name: "hubx", Type: "user"}}
}

func (s *Registry) Handler() http.Handler {
	return s.route()
}

func (s *Registry) ListModels(w http.ResponseWriter, r *http.Request) {
	query, filter := ParseSearchFilter(r)
	summaries, err := s.Store.Search(r.Context(), query, filter)
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, summaries)
}

func (s *Registry) GetModel(w http.ResponseWriter, r *http.Request) {
	info, err := s.Store.GetInfo(r.Context(), GetModelID(r))
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, info)
}

func (s *Registry) GetTree(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Store.ListFiles(r.Context(), GetModelID(r))
	if err != nil {
		ResponseError(w, err)
		return
	}
	if r.URL.Query().Get("recursive") != "true" {
		toplevel := entries[:0]
		for _, entry := range entries {
			if !strings.Contains(entry.Path, "/") {
				toplevel = append(toplevel, entry)
			}
		}
		entries = toplevel
	}
	ResponseOK(w, entries)
}

func (s *Registry) WhoAmI(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		ResponseError(w, errors.NewAuthError(http.StatusUnauthorized, "Invalid username or password."))
		return
	}
	ResponseOK(w, s.Account)
}

// Resolve serves file content, honoring Range requests.
func (s *Registry) Resolve(w http.ResponseWriter, r *http.Request) {
	id, path := GetModelID(r), mux.Vars(r)["path"]
	content, err := s.Store.Open(r.Context(), id, path)
	if err != nil {
		ResponseError(w, err)
		return
	}
	defer content.Content.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, content.Name, content.ModTime, content.Content)
}

func (s *Registry) Infer(w http.ResponseWriter, r *http.Request) {
	id := GetModelID(r)
	if s.Inference == nil {
		ResponseError(w, errors.NewRequestError(http.StatusNotFound, fmt.Sprintf("inference is not served for %s", id)))
		return
	}
	var req struct {
		Inputs json.RawMessage `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ResponseError(w, errors.NewParameterInvalidError(err.Error()))
		return
	}
	status, body := s.Inference(r.Context(), id, req.Inputs)
	logr.FromContextOrDiscard(r.Context()).V(1).Info("inference", "id", id, "status", status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Registry) authFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.URL.Path != "/healthz" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			ResponseError(w, errors.NewAuthError(http.StatusUnauthorized, "Invalid credentials in Authorization header"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
