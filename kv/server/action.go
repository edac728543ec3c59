package server

import (
	"encoding/json"
	"net/http"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/unrolled/render"
)

// OpRequest is one step of a submitted action.
type OpRequest struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Delta int64  `json:"delta,omitempty"`
}

// ActionRequest is the body of POST /api/v1/actions.
type ActionRequest struct {
	DistinctID    uint64      `json:"distinct_id"`
	SingleReplica bool        `json:"single_replica"`
	ReadSet       []string    `json:"read_set"`
	WriteSet      []string    `json:"write_set"`
	ClientChannel string      `json:"client_channel,omitempty"`
	ClientMachine uint64      `json:"client_machine,omitempty"`
	Ops           []OpRequest `json:"ops"`
}

type actionHandler struct {
	submitter Submitter
	rd        *render.Render
}

func newActionHandler(submitter Submitter, rd *render.Render) *actionHandler {
	return &actionHandler{
		submitter: submitter,
		rd:        rd,
	}
}

// toAction converts a request, checking that every op stays inside the declared sets.
func (req *ActionRequest) toAction() (*action.Action, string) {
	a := &action.Action{
		DistinctID:    req.DistinctID,
		SingleReplica: req.SingleReplica,
		ReadSet:       req.ReadSet,
		WriteSet:      req.WriteSet,
		ClientMachine: req.ClientMachine,
		ClientChannel: req.ClientChannel,
	}
	for _, op := range req.Ops {
		tp, ok := action.ParseOpType(op.Type)
		if !ok {
			return nil, "unknown op type " + op.Type
		}
		if tp.IsWrite() && !a.Writes(op.Key) {
			return nil, "key " + op.Key + " is not in the write set"
		}
		if !tp.IsWrite() && !a.Reads(op.Key) {
			return nil, "key " + op.Key + " is not in the read set"
		}
		a.Ops = append(a.Ops, action.Op{Type: tp, Key: op.Key, Value: []byte(op.Value), Delta: op.Delta})
	}
	return a, ""
}

func (h *actionHandler) Post(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		h.rd.JSON(w, http.StatusNotImplemented, "this node does not accept actions")
		return
	}
	var req ActionRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	r.Body.Close()
	if err != nil {
		h.rd.JSON(w, http.StatusBadRequest, err.Error())
		return
	}
	a, msg := req.toAction()
	if a == nil {
		h.rd.JSON(w, http.StatusBadRequest, msg)
		return
	}
	h.submitter.Append(a)
	h.rd.JSON(w, http.StatusAccepted, req.DistinctID)
}
