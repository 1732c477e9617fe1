package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "dev (unknown, built unknown)", String())

	defer func(v, sha, at string) { Version, GitSHA, BuildTime = v, sha, at }(Version, GitSHA, BuildTime)
	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-10-19T12:00:00Z"
	assert.Equal(t, "1.2.0 (abc123, built 2026-10-19T12:00:00Z)", String())
}
