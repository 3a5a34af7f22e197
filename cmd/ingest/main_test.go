package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Merit scholarships close March 1.\fNeed-based awards close April 15."), 0o600))
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--file", path, "--dry-run", "--index", "test_policies"})
	t.Cleanup(func() {
		dryRun, filePath, indexName = false, "", ""
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, float64(2), report["Sections"])
	assert.Equal(t, float64(2), report["Chunks"])
	assert.Equal(t, true, report["DryRun"])
	assert.Equal(t, "test_policies", report["Index"])
}

func TestDropRequiresConfirmation(t *testing.T) {
	rootCmd.SetArgs([]string{"drop"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.Execute())
}
