package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/harvester/pkg/reporter"
	"github.com/amosWeiskopf/harvester/pkg/siteconfig"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func listingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		if page != "1" && page != "2" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		for i := 1; i <= 2; i++ {
			fmt.Fprintf(w, `<div class="job"><h2>Job %s-%d</h2><span class="co">Café %d</span><a href="/apply/%s/%d">apply</a></div>`, page, i, i, page, i)
		}
		// Same posting on both pages.
		fmt.Fprint(w, `<div class="job"><h2>Pinned</h2><a href="/apply/pinned">apply</a></div>`)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	doc := fmt.Sprintf(`base_url: %s/jobs
item_selector: div.job
fields:
  title:
    selector: h2
  company:
    selector: .co
  link:
    selector: a
    attribute: href
pagination:
  enabled: true
  pattern: "?page={page}"
  max_pages: 5
rate_limiting:
  delay_min: 0
  delay_max: 0
max_items: 100
`, baseURL)
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestNoConfigIsUsageError(t *testing.T) {
	_, stderr, err := execute(t)
	assert.ErrorIs(t, err, errNoConfig)
	assert.Contains(t, stderr, "--config")
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--config", "site.yaml", "--format", "xml")
	assert.ErrorIs(t, err, reporter.ErrUnsupportedFormat)
}

func TestTemplateSubcommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpl.json")

	stdout, _, err := execute(t, "template", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)

	cfg, err := siteconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, siteconfig.Template().Fields.Names(), cfg.Fields.Names())
}

func TestTemplateFlagIgnoresOtherFlags(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	_, _, err = execute(t, "--template", "--format", "xml")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, siteconfig.DefaultTemplatePath))
}

func TestRunWritesCSV(t *testing.T) {
	server := listingServer(t)
	output := filepath.Join(t.TempDir(), "jobs.csv")

	_, stderr, err := execute(t, "--config", writeConfig(t, server.URL), "--output", output, "--report")
	require.NoError(t, err)
	assert.Contains(t, stderr, "| Stop reason | no_content |")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 7)
	assert.Equal(t, []string{"title", "company", "link"}, rows[0])
	assert.Equal(t, []string{"Job 1-1", "Café 1", server.URL + "/apply/1/1"}, rows[1])
	assert.Equal(t, []string{"Pinned", "N/A", server.URL + "/apply/pinned"}, rows[3])
	assert.Equal(t, "Job 2-2", rows[5][0])
}

func TestRunWritesJSONWithDedupe(t *testing.T) {
	server := listingServer(t)
	dir := t.TempDir()

	_, _, err := execute(t,
		"--config", writeConfig(t, server.URL),
		"--output", filepath.Join(dir, "jobs.csv"),
		"--format", "json",
		"--dedupe", "title,link",
	)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "jobs.csv"))

	data, err := os.ReadFile(filepath.Join(dir, "jobs.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Café 1")

	var records []map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 5)
	assert.Equal(t, "Pinned", records[2]["title"])
	assert.Equal(t, "Job 2-1", records[3]["title"])
}

func TestRunUnknownDedupeField(t *testing.T) {
	server := listingServer(t)
	_, _, err := execute(t, "--config", writeConfig(t, server.URL), "--dedupe", "salary")
	assert.ErrorContains(t, err, `unknown dedupe field "salary"`)
}

func TestRunNothingScraped(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	output := filepath.Join(t.TempDir(), "out.csv")

	_, _, err := execute(t, "--config", writeConfig(t, server.URL), "--output", output)
	require.NoError(t, err)
	assert.NoFileExists(t, output)
}

func TestRunOutputFailure(t *testing.T) {
	server := listingServer(t)
	output := filepath.Join(t.TempDir(), "missing", "out.csv")

	_, _, err := execute(t, "--config", writeConfig(t, server.URL), "--output", output)
	assert.Error(t, err)
}
