package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfoParsesVersion(t *testing.T) {
	info, err := GetInfo()
	require.NoError(t, err)
	assert.Equal(t, Version, info.Version)
	assert.NotNil(t, info.SemVer)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestGetInfoRejectsInvalidVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "not-a-version"
	_, err := GetInfo()
	assert.Error(t, err)
}

func TestBaseVersionStripsMetadata(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "0.1.0+42.abc1234"
	assert.Equal(t, "0.1.0", GetBaseVersion())
	assert.Equal(t, "42.abc1234", GetBuildMetadata())
}

func TestFormattedVersion(t *testing.T) {
	original := Version
	originalCommit := GitCommit
	defer func() {
		Version = original
		GitCommit = originalCommit
	}()

	Version = "0.1.0"
	GitCommit = "abcdef0123456789"
	formatted := GetFormattedVersion()
	assert.Contains(t, formatted, "braid v0.1.0")
	assert.Contains(t, formatted, "(abcdef01)")
}

func TestIsPrerelease(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "0.2.0-rc.1"
	assert.True(t, IsPrerelease())

	Version = "0.2.0"
	assert.False(t, IsPrerelease())
}
