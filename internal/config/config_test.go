package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const catalogYAML = `
version: v1
engine:
  workers: 4
rules:
  - id: D001
    title: Tool loop
    severity: medium
    match:
      tool: shell
      threshold: 3
      window: 5
  - id: D002
    title: Retrieval scope violation
    severity: high
    match: {}
`

func TestLoad_Catalog(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "rules.yaml", catalogYAML)

	cat, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "v1", cat.Version)
	assert.Equal(t, 4, cat.Engine.Workers)
	require.Len(t, cat.Rules, 2)
	assert.Equal(t, "D001", cat.Rules[0].ID)
	assert.Equal(t, config.SeverityHigh, cat.Rules[1].Severity)
}

func TestLoad_PerRuleFilesKeepArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	d3 := writeFile(t, dir, "D003.yml", "id: D003\ntitle: Sensitive egress\nseverity: critical\nmatch:\n  external_tools: [http_post]\n  patterns: ['AKIA[0-9A-Z]{16}']\n")
	d1 := writeFile(t, dir, "D001.yml", "id: D001\ntitle: Tool loop\nseverity: medium\nmatch:\n  tool: shell\n  threshold: 3\n  window: 5\n")

	cat, err := config.Load(d3, d1)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultVersion, cat.Version)
	assert.Equal(t, 1, cat.Engine.Workers)
	require.Len(t, cat.Rules, 2)
	assert.Equal(t, "D003", cat.Rules[0].ID)
	assert.Equal(t, "D001", cat.Rules[1].ID)
}

func TestLoad_MultiDocumentStream(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "stream.yml", "id: A\ntitle: a\nseverity: low\n---\nid: B\ntitle: b\nseverity: low\n")
	cat, err := config.Load(p)
	require.NoError(t, err)
	require.Len(t, cat.Rules, 2)
	assert.Equal(t, "B", cat.Rules[1].ID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rules")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cat     config.Catalog
		wantErr []string
	}{
		{
			name: "ok",
			cat: config.Catalog{Version: "v1", Rules: []config.RuleSpec{
				{ID: "D001", Title: "x", Severity: config.SeverityLow},
			}},
		},
		{
			name:    "missing version",
			cat:     config.Catalog{},
			wantErr: []string{"version is required"},
		},
		{
			name: "accumulates",
			cat: config.Catalog{Version: "v1", Rules: []config.RuleSpec{
				{ID: "D001", Title: "x", Severity: "urgent"},
				{ID: "D001", Severity: config.SeverityLow},
				{Title: "no id"},
			}},
			wantErr: []string{`unknown severity "urgent"`, `duplicate id "D001"`, "title is required", "rules[2]: id is required"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := config.Validate(&tc.cat)
			if len(tc.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tc.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestDecodeMatch(t *testing.T) {
	type params struct {
		Tool      string `yaml:"tool"`
		Threshold int    `yaml:"threshold"`
	}
	r := config.RuleSpec{ID: "D001", Match: map[string]any{"tool": "shell", "threshold": 3}}
	var p params
	require.NoError(t, r.DecodeMatch(&p))
	assert.Equal(t, params{Tool: "shell", Threshold: 3}, p)

	r.Match["treshold"] = 4
	err := r.DecodeMatch(&p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule D001")
}

func TestLoader_ReloadNotifies(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "rules.yaml", catalogYAML)
	l, err := config.NewLoader(p)
	require.NoError(t, err)

	got := make(chan *config.Catalog, 1)
	l.OnChange(func(c *config.Catalog) { got <- c })

	writeFile(t, dir, "rules.yaml", strings.Replace(catalogYAML, "workers: 4", "workers: 2", 1))
	_, err = l.Reload()
	require.NoError(t, err)

	select {
	case c := <-got:
		assert.Equal(t, 2, c.Engine.Workers)
		assert.Same(t, c, l.Config())
	case <-time.After(time.Second):
		t.Fatal("OnChange callback not invoked")
	}
}

func TestLoader_GateRejectionKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "rules.yaml", catalogYAML)
	l, err := config.NewLoader(p)
	require.NoError(t, err)
	before := l.Config()

	notified := false
	l.OnChange(func(*config.Catalog) { notified = true })
	l.Gate(func(c *config.Catalog) error {
		if c.Engine.Workers == 2 {
			return errors.New("two workers refused")
		}
		return nil
	})

	writeFile(t, dir, "rules.yaml", strings.Replace(catalogYAML, "workers: 4", "workers: 2", 1))
	_, err = l.Reload()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrRejected)
	assert.Contains(t, err.Error(), "two workers refused")
	assert.Same(t, before, l.Config())
	assert.False(t, notified)

	writeFile(t, dir, "rules.yaml", strings.Replace(catalogYAML, "workers: 4", "workers: 3", 1))
	got, err := l.Reload()
	require.NoError(t, err)
	assert.Same(t, got, l.Config())
	assert.True(t, notified)
}
