package log

import (
	"time"

	"go.uber.org/zap"
)

// Field is an alias for zap.Field so that callers don't need to import zap
// directly to build structured log entries.
type Field = zap.Field

// String constructs a field with the given key and value.
func String(key, val string) Field { return zap.String(key, val) }

// Int constructs a field with the given key and value.
func Int(key string, val int) Field { return zap.Int(key, val) }

// Int64 constructs a field with the given key and value.
func Int64(key string, val int64) Field { return zap.Int64(key, val) }

// Float64 constructs a field with the given key and value.
func Float64(key string, val float64) Field { return zap.Float64(key, val) }

// Bool constructs a field with the given key and value.
func Bool(key string, val bool) Field { return zap.Bool(key, val) }

// Duration constructs a field with the given key and value.
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Time constructs a field with the given key and value.
func Time(key string, val time.Time) Field { return zap.Time(key, val) }

// Err constructs a field that carries an error under the standard "error"
// key. A nil error produces a no-op field.
func Err(err error) Field { return zap.Error(err) }

// Any takes a key and an arbitrary value and chooses the best way to
// represent them as a field, falling back to reflection.
func Any(key string, val any) Field { return zap.Any(key, val) }
