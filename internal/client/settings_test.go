// ABOUTME: Tests for TOML-backed workstation settings
// ABOUTME: Covers round-tripping, validation, and the watchdog interval default

package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agent.toml")

	in := &Settings{
		ExtensionNumber:  "201",
		ServerAddress:    "https://pop.example.com:8443",
		SharedSecret:     "hunter2",
		CheckIntervalRaw: "30s",
	}
	require.NoError(t, SaveSettings(path, in))

	out, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, in.ExtensionNumber, out.ExtensionNumber)
	assert.Equal(t, in.ServerAddress, out.ServerAddress)
	assert.Equal(t, in.SharedSecret, out.SharedSecret)
	assert.Equal(t, 30*time.Second, out.CheckInterval())
}

func TestSettings_LoadMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestSettings_Validate(t *testing.T) {
	valid := Settings{
		ExtensionNumber: "201",
		ServerAddress:   "https://pop.example.com:8443",
		SharedSecret:    "hunter2",
	}

	t.Run("complete settings pass", func(t *testing.T) {
		s := valid
		assert.NoError(t, s.Validate())
	})

	t.Run("missing extension number", func(t *testing.T) {
		s := valid
		s.ExtensionNumber = ""
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extension number")
	})

	t.Run("missing server address", func(t *testing.T) {
		s := valid
		s.ServerAddress = ""
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server address")
	})

	t.Run("missing shared secret", func(t *testing.T) {
		s := valid
		s.SharedSecret = ""
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shared secret")
	})

	t.Run("malformed check interval", func(t *testing.T) {
		s := valid
		s.CheckIntervalRaw = "often"
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "check_interval")
	})
}

func TestSettings_CheckIntervalDefault(t *testing.T) {
	s := Settings{}
	assert.Equal(t, 45*time.Second, s.CheckInterval())

	s.CheckIntervalRaw = "garbage"
	assert.Equal(t, 45*time.Second, s.CheckInterval())
}
