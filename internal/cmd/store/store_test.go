package store

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/LithiumDevs/lithium/internal/config"
	"github.com/LithiumDevs/lithium/pkg/storage/pebblestore"
)

func testConfig(dataDir string) ConfigFunc {
	return func() (config.Config, error) {
		cfg := config.Default()
		cfg.DataDir = dataDir
		cfg.Fsync = "never"
		return cfg, nil
	}
}

// seedStore writes entries into the durable store and closes it again so the
// command under test can take the Pebble directory lock.
func seedStore(t *testing.T, dataDir string, entries map[string]string) {
	t.Helper()
	st, err := pebblestore.Open(pebblestore.Options{
		DataDir: filepath.Join(dataDir, "store"),
		Fsync:   pebblestore.FsyncModeNever,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for k, v := range entries {
		if err := st.Set(k, []byte(v)); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func lsLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			t.Fatalf("bad output line %q: %v", line, err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestLsListsEntriesUnderPrefix(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{
		"lithium:user.theme": `"dark"`,
		"lithium:account":    `{"plan":"pro"}`,
		"other:unrelated":    `"skip me"`,
	})

	cmd := newLsCommand(testConfig(dir))
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	rows := lsLines(t, buf.String())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %s", len(rows), buf.String())
	}
	// Scan order is lexical by key.
	if rows[0]["channel"] != "account" || rows[1]["channel"] != "user.theme" {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1]["value_json"] != "dark" {
		t.Fatalf("decoded value = %v", rows[1]["value_json"])
	}
}

func TestLsAppliesFilter(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{
		"lithium:a": `{"plan":"pro"}`,
		"lithium:b": `{"plan":"free"}`,
	})

	cmd := newLsCommand(testConfig(dir))
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--filter", `json.plan == "pro"`})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	rows := lsLines(t, buf.String())
	if len(rows) != 1 || rows[0]["channel"] != "a" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestLsRejectsBadFilter(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{"lithium:a": `1`})

	cmd := newLsCommand(testConfig(dir))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--filter", "key.("})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for bad filter")
	}
}

func TestGetPrintsDecodedEntry(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{"lithium:user.theme": `"dark"`})

	cmd := newGetCommand(testConfig(dir))
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"user.theme"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var row map[string]any
	if err := json.Unmarshal(buf.Bytes(), &row); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if row["key"] != "lithium:user.theme" || row["value_json"] != "dark" {
		t.Fatalf("row = %v", row)
	}
}

func TestGetMissingEntry(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{})

	cmd := newGetCommand(testConfig(dir))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"ghost"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "no persisted entry") {
		t.Fatalf("expected missing-entry error, got %v", err)
	}
}

func TestRmRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{"lithium:user.theme": `"dark"`})

	cmd := newRmCommand(testConfig(dir))
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"user.theme"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "removed lithium:user.theme") {
		t.Fatalf("output = %q", buf.String())
	}

	getCmd := newGetCommand(testConfig(dir))
	getCmd.SetOut(&bytes.Buffer{})
	getCmd.SetErr(&bytes.Buffer{})
	getCmd.SetArgs([]string{"user.theme"})
	if err := getCmd.Execute(); err == nil {
		t.Fatalf("entry survived rm")
	}
}

func TestClearRequiresConfirm(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{"lithium:a": `1`})

	cmd := newClearCommand(testConfig(dir))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--confirm") {
		t.Fatalf("expected confirm error, got %v", err)
	}
}

func TestClearRemovesAllUnderPrefix(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, map[string]string{
		"lithium:a":       `1`,
		"lithium:b":       `2`,
		"other:untouched": `3`,
	})

	cmd := newClearCommand(testConfig(dir))
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--confirm"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var data struct {
		Prefix       string `json:"prefix"`
		DeletedCount int    `json:"deleted_count"`
	}
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if data.DeletedCount != 2 || data.Prefix != "lithium:" {
		t.Fatalf("data = %+v", data)
	}

	lsCmd := newLsCommand(testConfig(dir))
	lsBuf := &bytes.Buffer{}
	lsCmd.SetOut(lsBuf)
	lsCmd.SetErr(lsBuf)
	if err := lsCmd.Execute(); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if rows := lsLines(t, lsBuf.String()); len(rows) != 0 {
		t.Fatalf("entries survived clear: %v", rows)
	}
}
