package client

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// decodedValue renders a value as value_json, value_text or value_b64,
// whichever fits first.
func decodedValue(out map[string]any, value []byte) map[string]any {
	if len(value) > 0 && (value[0] == '{' || value[0] == '[') {
		var v any
		if json.Unmarshal(value, &v) == nil {
			out["value_json"] = v
			return out
		}
	}
	if utf8.Valid(value) {
		out["value_text"] = string(value)
		return out
	}
	out["value_b64"] = base64.StdEncoding.EncodeToString(value)
	return out
}

func decodedEntry(seq int64, value []byte) map[string]any {
	return decodedValue(map[string]any{"seq": seq}, value)
}

func decodedRecord(key, value []byte) map[string]any {
	out := map[string]any{"key_b64": base64.StdEncoding.EncodeToString(key)}
	if utf8.Valid(key) {
		out["key"] = string(key)
	}
	return decodedValue(out, value)
}

func parseSeq(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Newf("invalid sequence %q", s)
	}
	return n, nil
}

// valueArg returns the literal argument, or stdin when the argument is "-".
func valueArg(arg string, stdin io.Reader, b64 bool) ([]byte, error) {
	var raw []byte
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "read stdin")
		}
		raw = b
	} else {
		raw = []byte(arg)
	}
	if !b64 {
		return raw, nil
	}
	out, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decode base64 value")
	}
	return out, nil
}
