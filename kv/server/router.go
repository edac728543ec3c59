package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
	"github.com/urfave/negroni"
)

const pingAPI = "/ping"

func createRouter(opts *Options) *mux.Router {
	rd := render.New(render.Options{
		IndentJSON: true,
	})

	router := mux.NewRouter()

	statusHandler := newStatusHandler(opts, rd)
	router.HandleFunc("/status", statusHandler.Get).Methods("GET")
	router.HandleFunc("/api/v1/status", statusHandler.Get).Methods("GET")
	router.HandleFunc("/api/v1/config", statusHandler.GetConfig).Methods("GET")

	kvHandler := newKVHandler(opts.Engine, rd)
	router.HandleFunc("/api/v1/kv", kvHandler.Get).Methods("GET")

	actionHandler := newActionHandler(opts.Submitter, rd)
	router.HandleFunc("/api/v1/actions", actionHandler.Post).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc(pingAPI, func(w http.ResponseWriter, r *http.Request) {}).Methods("GET")
	return router
}

// NewHandler returns the HTTP handler of the status API.
func NewHandler(opts *Options) http.Handler {
	n := negroni.New(negroni.NewRecovery())
	n.UseHandler(createRouter(opts))
	return n
}
