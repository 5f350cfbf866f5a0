package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/texmacros/internal/config"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name     string
		setupDir func(t *testing.T, dir string) // setup before running
		args     []string
		wantErr  bool
	}{
		{
			name: "init empty directory",
			args: []string{},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("existing"), 0600)
			},
			args: []string{"--force"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create temp directory and change to it
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			// Run setup if provided
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			cfg, err := config.LoadFromDir(tmpDir)
			require.NoError(t, err, "written config should load")
			assert.Equal(t, config.DefaultExtensions, cfg.Extensions)
		})
	}
}

func TestInitCreatesValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "thesis"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "thesis", "thesis.tex"), []byte("\\documentclass{book}\n"), 0600))

	cmd := NewInitCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{filepath.Join(tmpDir, "thesis")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Main file: thesis.tex")

	// Read and verify config content
	content, err := os.ReadFile(filepath.Join(tmpDir, "thesis", config.ConfigFileName))
	require.NoError(t, err)

	expectedContents := []string{
		"main_file: thesis.tex",
		"- .tex",
		"respect_gitignore: true",
		"reference_ttl: 2s",
		"debounce: 100ms",
		"log_level: warn",
	}
	for _, expected := range expectedContents {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}

	cfg, err := config.LoadFromDir(filepath.Join(tmpDir, "thesis"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "thesis", "thesis.tex"), cfg.MainFile)
}
