package grpcserver

// Messages exchanged by seglog.v1.Log. Byte fields are base64 on the wire.

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type AppendRequest struct {
	Values [][]byte `json:"values"`
}

type AppendResponse struct {
	Seqs []int64 `json:"seqs"`
}

type PutRequest struct {
	Seq   int64  `json:"seq"`
	Value []byte `json:"value"`
}

type PutResponse struct{}

type GetRequest struct {
	Seq int64 `json:"seq"`
}

type GetResponse struct {
	Value []byte `json:"value"`
}

type ReadLastRequest struct {
	Count int `json:"count"`
}

type Entry struct {
	Seq   int64  `json:"seq"`
	Value []byte `json:"value"`
}

type ReadLastResponse struct {
	Entries []Entry `json:"entries"`
}

type LastKeyRequest struct{}

type LastKeyResponse struct {
	Found bool  `json:"found"`
	Seq   int64 `json:"seq"`
}

type TruncateRequest struct {
	Before int64 `json:"before"`
}

type TruncateResponse struct{}

type CatchUpRequest struct{}

type CatchUpResponse struct {
	NextSeq int64 `json:"nextSeq"`
}

// TrimRequest sets exactly one retention bound.
type TrimRequest struct {
	Keep     *int   `json:"keep,omitempty"`
	MaxBytes *int64 `json:"maxBytes,omitempty"`
}

// TrimResponse reports the truncation bound; 0 means nothing was removed.
type TrimResponse struct {
	Before int64 `json:"before"`
}

// ScanRequest streams entries from Start (nil: first, or last when Reverse).
// Limit bounds the total streamed; 0 streams to the end. Follow keeps the
// stream open for new appends and is only valid forward.
type ScanRequest struct {
	Start     *int64 `json:"start,omitempty"`
	Reverse   bool   `json:"reverse"`
	BatchSize int    `json:"batchSize"`
	Limit     int    `json:"limit"`
	Filter    string `json:"filter"`
	Follow    bool   `json:"follow"`
}
