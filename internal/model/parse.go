package model

import (
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

var parsers fastjson.ParserPool

// ParseEntry decodes a single producer JSON object into a LogEntry.
// Unknown fields land in Extra; missing timestamp defaults to now.
func ParseEntry(data []byte) (LogEntry, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return entryFromValue(v), nil
}

// ParseEntries decodes either a single object or an array of objects.
func ParseEntries(data []byte) ([]LogEntry, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if v.Type() == fastjson.TypeArray {
		arr, _ := v.Array()
		entries := make([]LogEntry, 0, len(arr))
		for _, val := range arr {
			entries = append(entries, entryFromValue(val))
		}
		return entries, nil
	}
	return []LogEntry{entryFromValue(v)}, nil
}

func entryFromValue(v *fastjson.Value) LogEntry {
	e := LogEntry{
		Level: ParseLevel(string(v.GetStringBytes("level"))),
	}

	if ts := v.GetInt64("timestamp"); ts != 0 {
		e.Time = time.UnixMilli(ts)
	} else {
		e.Time = time.Now()
	}

	e.Message = string(v.GetStringBytes("message"))
	if e.Message == "" {
		e.Message = string(v.GetStringBytes("msg"))
	}

	e.File = string(v.GetStringBytes("file"))
	e.Line = v.GetInt("line")
	e.Function = string(v.GetStringBytes("function"))
	e.PID = v.GetInt("process_id")
	e.TID = v.GetInt("thread_id")

	if extra := v.GetObject("extra"); extra != nil {
		e.Extra = make(map[string]string)
		extra.Visit(func(key []byte, val *fastjson.Value) {
			if val.Type() == fastjson.TypeString {
				e.Extra[string(key)] = string(val.GetStringBytes())
			} else {
				e.Extra[string(key)] = val.String()
			}
		})
	}

	return e
}
