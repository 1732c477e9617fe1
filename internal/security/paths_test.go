package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	safe := filepath.Join(tmp, "safe")
	outside := filepath.Join(tmp, "outside")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	link := filepath.Join(safe, "link")
	require.NoError(t, os.Symlink(outside, link))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in directory", filepath.Join(safe, "run.png"), false},
		{"nested file not yet created", filepath.Join(safe, "a", "b", "run.png"), false},
		{"dot dot escape", filepath.Join(safe, "..", "run.png"), true},
		{"absolute elsewhere", "/etc/passwd", true},
		{"through symlink", filepath.Join(link, "run.png"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideDirectory)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectoryMissingDir(t *testing.T) {
	err := ValidatePathWithinDirectory("x.png", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestValidateExportPath(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	assert.NoError(t, ValidateExportPath(filepath.Join(b, "out.png"), a, b))
	assert.ErrorIs(t, ValidateExportPath("/etc/out.png", a, b), ErrOutsideDirectory)

	// defaults include the temp directory
	assert.NoError(t, ValidateExportPath(filepath.Join(os.TempDir(), "out.png")))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                         "unknown",
		"run-1.png":                "run-1.png",
		"../../etc/passwd":         "etc_passwd",
		"angular velocity (deg/s)": "angular_velocity_deg_s",
		"a//b\\\\c":                "a_b_c",
		"___":                      "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, SanitizeFilename(string(long)), maxFilenameLen)
}
