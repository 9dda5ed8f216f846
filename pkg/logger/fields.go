package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindAny fieldKind = iota
	kindString
	kindInt64
	kindFloat64
	kindBool
	kindError
)

// Field is one structured key/value attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
	kind  fieldKind
}

func (f Field) addTo(ev *zerolog.Event) {
	switch f.kind {
	case kindString:
		ev.Str(f.Key, f.Value.(string))
	case kindInt64:
		ev.Int64(f.Key, f.Value.(int64))
	case kindFloat64:
		ev.Float64(f.Key, f.Value.(float64))
	case kindBool:
		ev.Bool(f.Key, f.Value.(bool))
	case kindError:
		if err, _ := f.Value.(error); err != nil {
			ev.Err(err)
		}
	default:
		ev.Interface(f.Key, f.Value)
	}
}

// digestValue is the JSON-friendly form kept in digest entries.
func (f Field) digestValue() interface{} {
	if f.kind == kindError {
		if err, _ := f.Value.(error); err != nil {
			return err.Error()
		}
		return nil
	}
	return f.Value
}

func String(key, value string) Field          { return Field{Key: key, Value: value, kind: kindString} }
func Int(key string, value int) Field         { return Field{Key: key, Value: int64(value), kind: kindInt64} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value, kind: kindInt64} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value, kind: kindFloat64} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value, kind: kindBool} }
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Error attaches err under "error". A nil err is omitted.
func Error(err error) Field { return Field{Key: "error", Value: err, kind: kindError} }

// Duration logs milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}

// Symbol tags an entry with the instrument it concerns.
func Symbol(symbol string) Field { return String("symbol", symbol) }
