package log

import (
	"encoding/hex"
	"time"
)

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

func F(key string, value interface{}) Field         { return Field{Key: key, Value: value} }
func Str(key, value string) Field                    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field            { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }

// Component tags an entry with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Err records err under the "error" key; nil errors are recorded as nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: ErrorKey, Value: nil}
	}
	return Field{Key: ErrorKey, Value: err.Error()}
}

// Seq records a sequence number.
func Seq(value int64) Field { return Field{Key: SeqKey, Value: value} }

// Key records raw key bytes as hex.
func Key(value []byte) Field { return Field{Key: "key", Value: hex.EncodeToString(value)} }

// Well-known field keys.
const (
	ComponentKey = "component"
	ErrorKey     = "error"
	RequestIDKey = "request_id"
	SeqKey       = "seq"
)
