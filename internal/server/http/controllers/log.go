package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/internal/filter"
	"github.com/rzbill/seglog/internal/runtime"
	"github.com/rzbill/seglog/pkg/seq"
)

const (
	// maxPage caps the page size a client may request.
	maxPage = 10000
	// maxWaitMs caps a scan long-poll.
	maxWaitMs = 30000
)

// LogController exposes the segmented log.
type LogController struct {
	rt *runtime.Runtime
}

// NewLogController creates a new log controller.
func NewLogController(rt *runtime.Runtime) *LogController {
	return &LogController{rt: rt}
}

// RegisterRoutes registers log routes relative to /v1/log.
func (c *LogController) RegisterRoutes(r chi.Router) {
	r.Post("/append", c.handleAppend)
	r.Put("/entries/{id}", c.handlePut)
	r.Get("/entries/{id}", c.handleGet)
	r.Post("/truncate", c.handleTruncate)
	r.Post("/trim", c.handleTrim)
	r.Get("/last", c.handleReadLast)
	r.Get("/last-key", c.handleLastKey)
	r.Get("/scan", c.handleScan)
	r.Post("/catch-up", c.handleCatchUp)
}

// handleAppend appends one value, or a batch atomically when "values" is set.
func (c *LogController) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	values := req.Values
	if len(values) == 0 {
		if req.Value == nil {
			writeError(w, http.StatusBadRequest, "value or values is required")
			return
		}
		values = [][]byte{req.Value}
	}
	keys, err := c.rt.Log().AppendBatch(r.Context(), values)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := appendResp{Keys: make([]entryKeyJSON, 0, len(keys))}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, entryKeyJSON{Seq: k.Seq(), Key: k.Bytes()})
	}
	writeCreated(w, resp)
}

func (c *LogController) handlePut(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSeqParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req putReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.rt.Log().Put(r.Context(), id, req.Value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *LogController) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSeqParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	v, err := c.rt.Log().Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	k := seq.Encode(id)
	writeJSON(w, entryJSON{Seq: id, Key: k.Bytes(), Value: v})
}

func (c *LogController) handleTruncate(w http.ResponseWriter, r *http.Request) {
	var req truncateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.rt.Log().TruncateBefore(r.Context(), req.Before); err != nil {
		writeStoreError(w, err)
		return
	}
	writeNoContent(w)
}

// handleReadLast returns the newest ?count entries (default 1) oldest first.
func (c *LogController) handleReadLast(w http.ResponseWriter, r *http.Request) {
	count := parseLimit(r.URL.Query().Get("count"), 1)
	recs, err := c.rt.Log().ReadLast(min(count, maxPage))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, logPageResp{Entries: toEntries(recs)})
}

func (c *LogController) handleLastKey(w http.ResponseWriter, r *http.Request) {
	k, ok, err := c.rt.Log().LastKey()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !ok {
		writeJSON(w, lastKeyResp{})
		return
	}
	writeJSON(w, lastKeyResp{Found: true, Seq: k.Seq(), Key: k.Bytes()})
}

// handleScan returns one page. Query: start (seq), reverse, limit, filter
// (CEL), wait_ms. The response's next field resumes the scan. With wait_ms a
// forward scan that finds nothing long-polls for the next append once.
func (c *LogController) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filter.New(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var start []byte
	if s := q.Get("start"); s != "" {
		id, ok := parseSeqParam(w, s)
		if !ok {
			return
		}
		k := seq.Encode(id)
		start = k.Bytes()
	}
	limit := min(parseLimit(q.Get("limit"), c.rt.Config().ScanBatchSize), maxPage)
	reverse := parseBool(q.Get("reverse"))
	wait := time.Duration(min(parseLimit(q.Get("wait_ms"), 0), maxWaitMs)) * time.Millisecond

	woken := c.rt.Log().Appended()
	resp, err := c.scanPage(start, limit, reverse, f)
	if err == nil && wait > 0 && !reverse && len(resp.Entries) == 0 && resp.Next == nil {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-woken:
			resp, err = c.scanPage(start, limit, reverse, f)
		case <-timer.C:
		case <-r.Context().Done():
		}
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (c *LogController) scanPage(start []byte, limit int, reverse bool, f *filter.Filter) (logPageResp, error) {
	var (
		cur *cursor.Cursor
		err error
	)
	if reverse {
		cur, err = c.rt.Log().IterateFromEnd(start, limit)
	} else {
		cur, err = c.rt.Log().IterateFrom(start, limit)
	}
	if err != nil {
		return logPageResp{}, err
	}
	defer cur.Close()

	page := f.Apply(cur.NextBatch())
	if err := cur.Err(); err != nil {
		return logPageResp{}, err
	}
	resp := logPageResp{Entries: toEntries(page), Skipped: cur.Skipped()}
	if next := cur.Resume(); next != nil {
		if n, err := seq.Decode(next); err == nil {
			resp.Next = &n
		}
	}
	return resp, nil
}

// handleTrim applies one retention bound: keep (newest entries) or maxBytes
// (total value bytes).
func (c *LogController) handleTrim(w http.ResponseWriter, r *http.Request) {
	var req trimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var (
		before int64
		err    error
	)
	switch {
	case req.Keep != nil && req.MaxBytes == nil:
		before, err = c.rt.Log().TrimToCount(r.Context(), *req.Keep)
	case req.MaxBytes != nil && req.Keep == nil:
		before, err = c.rt.Log().TrimToMaxBytes(r.Context(), *req.MaxBytes)
	default:
		writeError(w, http.StatusBadRequest, "exactly one of keep or maxBytes is required")
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, trimResp{Before: before})
}

func (c *LogController) handleCatchUp(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.Log().CatchUp(); err != nil {
		writeStoreError(w, err)
		return
	}
	writeNoContent(w)
}

func parseSeqParam(w http.ResponseWriter, s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sequence must be an integer")
		return 0, false
	}
	return id, true
}

func toEntries(recs []cursor.Record) []entryJSON {
	out := make([]entryJSON, 0, len(recs))
	for _, rec := range recs {
		n, err := seq.Decode(rec.Key)
		if err != nil {
			continue
		}
		out = append(out, entryJSON{Seq: n, Key: rec.Key, Value: rec.Value})
	}
	return out
}
