package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	fields := []string{"title", "link", "date"}
	r := NewRecord(fields, map[string]string{
		"title": "Engineer",
		"link":  "https://example.com/1",
		"extra": "dropped",
	})

	assert.Equal(t, fields, r.Fields())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"Engineer", "https://example.com/1", Sentinel}, r.Values())

	_, ok := r.Get("extra")
	assert.False(t, ok)
	assert.Equal(t, Sentinel, r.Value("missing"))
}

func TestRecordIsImmutable(t *testing.T) {
	fields := []string{"a"}
	values := map[string]string{"a": "1"}
	r := NewRecord(fields, values)

	fields[0] = "b"
	values["a"] = "2"
	r.Fields()[0] = "c"
	r.Map()["a"] = "3"

	assert.Equal(t, []string{"a"}, r.Fields())
	assert.Equal(t, "1", r.Value("a"))
}

func TestRecordMarshalJSON(t *testing.T) {
	r := NewRecord([]string{"zeta", "alpha", "same"}, map[string]string{
		"zeta":  "Café <b>&</b>",
		"alpha": `quote "x"`,
		"same":  "same",
	})

	b, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"Café <b>&</b>","alpha":"quote \"x\"","same":"same"}`, string(b))

	var back map[string]string
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r.Map(), back)
}
