package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const timestampFormat = time.RFC3339Nano

// JSONFormatter renders entries as single-line JSON objects.
type JSONFormatter struct {
	// PrettyPrint indents the output; intended for interactive debugging only.
	PrettyPrint bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = v
	}
	data["ts"] = entry.Timestamp.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Caller != "" {
		data["caller"] = entry.Caller
	}
	if entry.Error != nil {
		data["error"] = entry.Error.Error()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if f.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TextFormatter renders entries as "ts LEVEL message key=value ..." lines with
// fields sorted by key for stable output.
type TextFormatter struct {
	// DisableTimestamp omits the leading timestamp; useful in tests.
	DisableTimestamp bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(timestampFormat))
		buf.WriteByte(' ')
	}
	buf.WriteString(entry.Level.String())
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteByte(' ')
			buf.WriteString(k)
			buf.WriteByte('=')
			writeTextValue(&buf, entry.Fields[k])
		}
	}
	if entry.Error != nil {
		buf.WriteString(" error=")
		writeTextValue(&buf, entry.Error.Error())
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeTextValue(buf *bytes.Buffer, v interface{}) {
	switch t := v.(type) {
	case string:
		if needsQuoting(t) {
			fmt.Fprintf(buf, "%q", t)
		} else {
			buf.WriteString(t)
		}
	case error:
		fmt.Fprintf(buf, "%q", t.Error())
	default:
		fmt.Fprintf(buf, "%v", v)
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}
