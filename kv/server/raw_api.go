package server

import (
	"net/http"

	"github.com/pingcap-incubator/tinycalvin/kv/storage"
	"github.com/unrolled/render"
)

// KVResponse is the reply of a raw read.
type KVResponse struct {
	Key      string `json:"key"`
	Value    string `json:"value,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`
}

// kvHandler reads committed values (GET /api/v1/kv?key=...) straight from the local engine. Writes only happen through actions.
type kvHandler struct {
	engine storage.Engine
	rd     *render.Render
}

func newKVHandler(engine storage.Engine, rd *render.Render) *kvHandler {
	return &kvHandler{
		engine: engine,
		rd:     rd,
	}
}

func (h *kvHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		h.rd.JSON(w, http.StatusNotFound, "storage is not available")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		h.rd.JSON(w, http.StatusBadRequest, "missing key")
		return
	}
	val, err := h.engine.Get([]byte(key))
	if err == storage.ErrNotFound {
		h.rd.JSON(w, http.StatusNotFound, KVResponse{Key: key, NotFound: true})
		return
	}
	if err != nil {
		h.rd.JSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.rd.JSON(w, http.StatusOK, KVResponse{Key: key, Value: string(val)})
}
