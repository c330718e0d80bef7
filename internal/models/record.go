package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Sentinel is the value stored for a field whose extraction found nothing.
const Sentinel = "N/A"

// Record is one extracted item: a value for every configured field, in the
// configured order. A Record is immutable once built.
type Record struct {
	fields []string
	values map[string]string
}

// NewRecord builds a Record holding exactly the given field names. Fields
// without an entry in values get the Sentinel; entries in values that are not
// listed in fields are dropped.
func NewRecord(fields []string, values map[string]string) Record {
	r := Record{
		fields: make([]string, len(fields)),
		values: make(map[string]string, len(fields)),
	}
	copy(r.fields, fields)
	for _, name := range fields {
		v, ok := values[name]
		if !ok {
			v = Sentinel
		}
		r.values[name] = v
	}
	return r
}

// Fields returns the field names in configured order.
func (r Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value for a field.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value for a field, or the Sentinel when the field is not
// part of the record.
func (r Record) Value(name string) string {
	if v, ok := r.values[name]; ok {
		return v
	}
	return Sentinel
}

// Values returns the record values in field order.
func (r Record) Values() []string {
	out := make([]string, len(r.fields))
	for i, name := range r.fields {
		out[i] = r.values[name]
	}
	return out
}

// Map returns a copy of the field to value mapping.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Len is the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// MarshalJSON writes the record as an object whose keys follow the
// configured field order. HTML characters are not escaped.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	out := []byte{'{'}
	for i, name := range r.fields {
		if i > 0 {
			out = append(out, ',')
		}
		for j, s := range []string{name, r.values[name]} {
			buf.Reset()
			if err := enc.Encode(s); err != nil {
				return nil, err
			}
			out = append(out, bytes.TrimRight(buf.Bytes(), "\n")...)
			if j == 0 {
				out = append(out, ':')
			}
		}
	}
	return append(out, '}'), nil
}

// StopReason tells why pagination ended.
type StopReason string

const (
	StopNoContent          StopReason = "no_content"
	StopNoItems            StopReason = "no_items"
	StopItemCap            StopReason = "item_cap"
	StopPageCap            StopReason = "page_cap"
	StopPaginationDisabled StopReason = "pagination_disabled"
	StopCanceled           StopReason = "canceled"
)

// RunResult summarises one scrape.
type RunResult struct {
	BaseURL      string        `json:"base_url"`
	PagesFetched int           `json:"pages_fetched"`
	LastPage     int           `json:"last_page"`
	Records      []Record      `json:"records"`
	Stop         StopReason    `json:"stop_reason"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}
