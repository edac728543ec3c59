package server

import (
	"net/http"

	"github.com/pingcap-incubator/tinycalvin/kv/scheduler"
	"github.com/unrolled/render"
)

// Status is the reply of GET /status.
type Status struct {
	Version string `json:"version"`
	GitHash string `json:"git_hash"`
	scheduler.Stats
	MedianExecLatency string `json:"median_exec_latency,omitempty"`
}

type statusHandler struct {
	opts *Options
	rd   *render.Render
}

func newStatusHandler(opts *Options, rd *render.Render) *statusHandler {
	return &statusHandler{
		opts: opts,
		rd:   rd,
	}
}

func (h *statusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Version: ReleaseVersion,
		GitHash: GitHash,
		Stats:   h.opts.Stats.Stats(),
	}
	if h.opts.Latency != nil {
		status.MedianExecLatency = h.opts.Latency.MedianLatency().String()
	}
	h.rd.JSON(w, http.StatusOK, status)
}

func (h *statusHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if h.opts.Config == nil {
		h.rd.JSON(w, http.StatusNotFound, "config is not available")
		return
	}
	h.rd.JSON(w, http.StatusOK, h.opts.Config)
}
