package registry

import (
	"net/http"

	"github.com/gorilla/mux"
)

const (
	NamePartRegexp = `[A-Za-z0-9][A-Za-z0-9._-]*`
	RevisionRegexp = `[A-Za-z0-9_][A-Za-z0-9._-]{0,127}`
)

const (
	RouteSearch    = "search"
	RouteInfo      = "info"
	RouteTree      = "tree"
	RouteWhoAmI    = "whoami"
	RouteResolve   = "resolve"
	RouteInference = "inference"
)

func (s *Registry) route() *mux.Router {
	mux := mux.NewRouter()
	mux = mux.StrictSlash(true)
	// healthy
	mux.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	model := "/{owner:" + NamePartRegexp + "}/{name:" + NamePartRegexp + "}"

	api := mux.PathPrefix("/api").Subrouter()
	api.Methods("GET").Path("/whoami-v2").HandlerFunc(s.WhoAmI).Name(RouteWhoAmI)
	api.Methods("GET").Path("/models").HandlerFunc(s.ListModels).Name(RouteSearch)
	api.Methods("GET").Path("/models" + model).HandlerFunc(s.GetModel).Name(RouteInfo)
	api.Methods("GET").Path("/models" + model + "/tree/{revision:" + RevisionRegexp + "}").HandlerFunc(s.GetTree).Name(RouteTree)

	// inference api shares the router so one server can stand in for both endpoints
	mux.Methods("POST").Path("/models" + model).HandlerFunc(MaxBytesReadHandler(s.Infer, MaxBytesRead)).Name(RouteInference)

	// file content
	mux.Methods("GET", "HEAD").Path(model + "/resolve/{revision:" + RevisionRegexp + "}/{path:.+}").HandlerFunc(s.Resolve).Name(RouteResolve)

	mux.Use(s.Middlewares...)
	mux.Use(s.authFilter)
	return mux
}
