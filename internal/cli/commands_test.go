package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/kvstems/pkg/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	cmd.SetArgs(args)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	return out.String(), err
}

func TestRunFlags(t *testing.T) {
	flags := runCmd.Flags()
	for _, name := range []string{"songs", "force-login", "clear-session", "max-tracks", "headless", "baseline"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
	assert.Equal(t, perf.BaselineDefault, flags.Lookup("baseline").DefValue)
	assert.Equal(t, "0", flags.Lookup("max-tracks").DefValue)
}

func TestPerfFlagValidation(t *testing.T) {
	t.Run("neither mode", func(t *testing.T) {
		perfOpts.abTest, perfOpts.baselineTest = "", ""
		_, err := execute(t, "perf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of")
	})

	t.Run("both modes", func(t *testing.T) {
		_, err := execute(t, "perf", "--ab-test", "default,fast", "--baseline-test", "fast")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of")
	})

	t.Run("one baseline in A/B", func(t *testing.T) {
		perfOpts.baselineTest = ""
		_, err := execute(t, "perf", "--ab-test", "default")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "two baselines")
	})
}

func TestParseABTest(t *testing.T) {
	tests := []struct {
		in      string
		a, b    string
		wantErr bool
	}{
		{in: "default,conservative", a: "default", b: "conservative"},
		{in: " fast , patient ", a: "fast", b: "patient"},
		{in: "default", wantErr: true},
		{in: "default,", wantErr: true},
		{in: "a,b,c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, b, err := parseABTest(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.a, a)
			assert.Equal(t, tt.b, b)
		})
	}
}

func TestConvertRequiresCSV(t *testing.T) {
	convertOpts.csvFile = ""
	_, err := execute(t, "convert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv")
}

func TestCleanupCommand(t *testing.T) {
	root := t.TempDir()
	songDir := filepath.Join(root, "Queen - Bohemian Rhapsody")
	require.NoError(t, os.MkdirAll(songDir, 0755))

	leftover := filepath.Join(songDir, "Queen_Bohemian_Rhapsody(Bass_Custom_Backing_Track).mp3")
	require.NoError(t, os.WriteFile(leftover, []byte("audio"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Drums.mp3.crdownload"), []byte("x"), 0644))

	out, err := execute(t, "cleanup", "--remove-partials", root)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(songDir, "Bass.mp3"))
	assert.NoFileExists(t, leftover)
	assert.NoFileExists(t, filepath.Join(root, "Drums.mp3.crdownload"))

	assert.Contains(t, out, "renamed")
	assert.Contains(t, out, "unassigned")
	assert.Contains(t, out, "removed 1 partial downloads")
}
