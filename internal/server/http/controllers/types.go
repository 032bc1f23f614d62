package controllers

// Request/response bodies. []byte fields travel as standard base64.

type errorResp struct {
	Error string `json:"error"`
}

// appendReq carries one value or a batch; Values wins when both are set.
type appendReq struct {
	Value  []byte   `json:"value,omitempty"`
	Values [][]byte `json:"values,omitempty"`
}

type appendResp struct {
	Keys []entryKeyJSON `json:"keys"`
}

type entryKeyJSON struct {
	Seq int64  `json:"seq"`
	Key []byte `json:"key"`
}

type putReq struct {
	Value []byte `json:"value"`
}

type truncateReq struct {
	Before int64 `json:"before"`
}

type trimReq struct {
	Keep     *int   `json:"keep,omitempty"`
	MaxBytes *int64 `json:"maxBytes,omitempty"`
}

type trimResp struct {
	Before int64 `json:"before"`
}

type entryJSON struct {
	Seq   int64  `json:"seq"`
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type lastKeyResp struct {
	Found bool   `json:"found"`
	Seq   int64  `json:"seq,omitempty"`
	Key   []byte `json:"key,omitempty"`
}

type logPageResp struct {
	Entries []entryJSON `json:"entries"`
	// Next is the sequence to pass as start for the following page; absent
	// once the scan is exhausted.
	Next    *int64 `json:"next,omitempty"`
	Skipped int    `json:"skipped,omitempty"`
}

type kvRecordJSON struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type kvPageResp struct {
	Records []kvRecordJSON `json:"records"`
	// Next is the base64url start key for the following page.
	Next string `json:"next,omitempty"`
}
