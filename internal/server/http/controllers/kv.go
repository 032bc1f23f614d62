package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/internal/filter"
	"github.com/rzbill/seglog/internal/runtime"
)

// KVController exposes the key-value store. Keys in paths are base64url.
type KVController struct {
	rt *runtime.Runtime
}

// NewKVController creates a new key-value controller.
func NewKVController(rt *runtime.Runtime) *KVController {
	return &KVController{rt: rt}
}

// RegisterRoutes registers kv routes relative to /v1/kv.
func (c *KVController) RegisterRoutes(r chi.Router) {
	r.Get("/scan", c.handleScan)
	r.Put("/{key}", c.handlePut)
	r.Get("/{key}", c.handleGet)
	r.Delete("/{key}", c.handleDelete)
}

func (c *KVController) pathKey(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	k, err := decodePathKey(chi.URLParam(r, "key"))
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return k, true
}

func (c *KVController) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := c.pathKey(w, r)
	if !ok {
		return
	}
	var req putReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.rt.KV().Put(r.Context(), key, req.Value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *KVController) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := c.pathKey(w, r)
	if !ok {
		return
	}
	v, err := c.rt.KV().Get(key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, kvRecordJSON{Key: key, Value: v})
}

func (c *KVController) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := c.pathKey(w, r)
	if !ok {
		return
	}
	if err := c.rt.KV().Delete(r.Context(), key); err != nil {
		writeStoreError(w, err)
		return
	}
	writeNoContent(w)
}

// handleScan returns one page. Query: start (base64url key), reverse, limit,
// filter (CEL).
func (c *KVController) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filter.New(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var start []byte
	if s := q.Get("start"); s != "" {
		if start, err = decodePathKey(s); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	limit := min(parseLimit(q.Get("limit"), c.rt.Config().ScanBatchSize), maxPage)

	var cur *cursor.Cursor
	if parseBool(q.Get("reverse")) {
		cur, err = c.rt.KV().IterateFromEnd(start, limit)
	} else {
		cur, err = c.rt.KV().IterateFrom(start, limit)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer cur.Close()

	page := f.Apply(cur.NextBatch())
	if err := cur.Err(); err != nil {
		writeStoreError(w, err)
		return
	}
	resp := kvPageResp{Records: make([]kvRecordJSON, 0, len(page))}
	for _, rec := range page {
		resp.Records = append(resp.Records, kvRecordJSON{Key: rec.Key, Value: rec.Value})
	}
	if next := cur.Resume(); next != nil {
		resp.Next = encodePathKey(next)
	}
	writeJSON(w, resp)
}
