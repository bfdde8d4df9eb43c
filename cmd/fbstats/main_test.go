package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleExport = "Sid-id,Sidnamn,Visningar,Reaktioner,Kommentarer,Delningar,Publicerings-id,Publiceringstid\n" +
	"555,Sveriges Radio,100,10,2,1,P1,2024-03-01 10:00\n" +
	"555,Sveriges Radio,100,10,2,1,P1,2024-03-01 10:00\n" +
	"555,Sveriges Radio,50,5,1,0,P2,2024-04-02 12:00\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestAccountsJSON(t *testing.T) {
	path := writeFile(t, "export.csv", sampleExport)
	out, _, err := runCLI(t, "-quiet", "-metrics", "likes,views", path)
	require.NoError(t, err)

	var got struct {
		Accounts []struct {
			Name      string             `json:"account_name"`
			Values    map[string]float64 `json:"values"`
			PostCount int                `json:"post_count"`
		} `json:"accounts"`
		Totals map[string]float64 `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Accounts, 1)
	assert.Equal(t, "Sveriges Radio", got.Accounts[0].Name)
	assert.Equal(t, 15.0, got.Accounts[0].Values["likes"])
	assert.Equal(t, 150.0, got.Accounts[0].Values["views"])
	assert.Equal(t, 2, got.Accounts[0].PostCount)
	assert.Equal(t, 15.0, got.Totals["likes"])
}

func TestAccountsCSV(t *testing.T) {
	path := writeFile(t, "export.csv", sampleExport)
	out, _, err := runCLI(t, "-quiet", "-format", "csv", "-metrics", "likes", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Reaktioner")
	assert.Contains(t, lines[1], "Sveriges Radio")
	assert.True(t, strings.HasPrefix(lines[2], "Totalt"))
}

func TestAccountsXLSX(t *testing.T) {
	path := writeFile(t, "export.csv", sampleExport)
	out, _, err := runCLI(t, "-quiet", "-format", "xlsx", "-metrics", "likes", path)
	require.NoError(t, err)

	f, err := excelize.OpenReader(strings.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Facebook Statistik")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0], "Reaktioner")
	assert.Equal(t, []string{"Sveriges Radio", "555", "https://www.facebook.com/555", "15"}, rows[1])
	assert.Equal(t, "Totalt", rows[2][0])
}

func TestPostsSortedDescending(t *testing.T) {
	path := writeFile(t, "export.csv", sampleExport)
	out, _, err := runCLI(t, "-quiet", "-view", "posts", "-sort", "likes", "-dir", "desc", path)
	require.NoError(t, err)

	var rows []struct {
		Fields map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "P1", rows[0].Fields["post_id"])
	assert.Equal(t, "P2", rows[1].Fields["post_id"])
}

func TestStatsAcrossFiles(t *testing.T) {
	first := writeFile(t, "a.csv", sampleExport)
	second := writeFile(t, "b.csv", sampleExport)
	out, stderr, err := runCLI(t, "-view", "stats", first, second)
	require.NoError(t, err)
	assert.NotEmpty(t, stderr)

	var stats struct {
		TotalRows  int `json:"total_rows"`
		Duplicates int `json:"duplicates"`
		Files      []struct {
			Status string `json:"status"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 6, stats.TotalRows)
	assert.Equal(t, 4, stats.Duplicates)
	assert.Len(t, stats.Files, 2)
}

func TestUnparseableFileIsReported(t *testing.T) {
	good := writeFile(t, "good.csv", sampleExport)
	bad := writeFile(t, "bad.csv", "")
	_, stderr, err := runCLI(t, "-quiet", "-view", "stats", good, bad)
	require.NoError(t, err)
	assert.Contains(t, stderr, "bad.csv: failed")
}

func TestFlagErrors(t *testing.T) {
	path := writeFile(t, "export.csv", sampleExport)
	tests := []struct {
		name string
		args []string
	}{
		{"no files", []string{"-quiet"}},
		{"unknown view", []string{"-view", "pages", path}},
		{"unknown format", []string{"-format", "xml", path}},
		{"stats as csv", []string{"-view", "stats", "-format", "csv", path}},
		{"stats as xlsx", []string{"-view", "stats", "-format", "xlsx", path}},
		{"unknown metric", []string{"-quiet", "-metrics", "likes,bogus", path}},
		{"unknown scope", []string{"-quiet", "-scope", "global", path}},
		{"missing file", []string{"-quiet", filepath.Join(t.TempDir(), "nope.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestDataDirWithoutSavedTable(t *testing.T) {
	path := writeFile(t, "export.csv", sampleExport)
	out, _, err := runCLI(t, "-quiet", "-data", t.TempDir(), "-view", "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"unique_posts": 2`)
}
