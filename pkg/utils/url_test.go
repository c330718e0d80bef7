package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{name: "parent directory", base: "https://example.com/jobs/", ref: "../apply/42", want: "https://example.com/apply/42"},
		{name: "root relative", base: "https://example.com/jobs/list", ref: "/job/7", want: "https://example.com/job/7"},
		{name: "sibling", base: "https://example.com/jobs/list", ref: "detail?id=3", want: "https://example.com/jobs/detail?id=3"},
		{name: "absolute", base: "https://example.com/", ref: "http://other.org/x", want: "http://other.org/x"},
		{name: "scheme relative", base: "https://example.com/", ref: "//cdn.example.com/a", want: "https://cdn.example.com/a"},
		{name: "surrounding space", base: "https://example.com/", ref: "  /a ", want: "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.base, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURLInvalid(t *testing.T) {
	_, err := ResolveURL("https://example.com/", "http://[::1")
	assert.Error(t, err)
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://example.com/jobs", PageURL("https://example.com/jobs", "?page={page}", "{page}", 1))
	assert.Equal(t, "https://example.com/jobs?page=2", PageURL("https://example.com/jobs", "?page={page}", "{page}", 2))
	assert.Equal(t, "https://example.com/p/10/10", PageURL("https://example.com", "/p/{page}/{page}", "{page}", 10))
}

func TestRootDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://example.com/jobs", want: "example.com"},
		{url: "https://jobs.example.co.uk/list?page=2", want: "example.co.uk"},
		{url: "http://127.0.0.1:8080/jobs", want: "127.0.0.1"},
		{url: "http://localhost/jobs", want: "localhost"},
		{url: "", want: ""},
		{url: "::", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, RootDomain(tt.url))
		})
	}
}
