package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultProjectConfigPicksArtifactsDirectoryByPlatform(t *testing.T) {
	hardhat := DefaultProjectConfig("hardhat")
	require.Equal(t, "./artifacts", hardhat.ArtifactsDirectory)

	truffle := DefaultProjectConfig("truffle")
	require.Equal(t, "./build/contracts", truffle.ArtifactsDirectory)
}

func TestWriteAndReadProjectConfigRoundTrips(t *testing.T) {
	cfg := DefaultProjectConfig("hardhat")
	cfg.RPCURL = "http://localhost:9999"
	cfg.CoverageFile = "out.json"

	path := filepath.Join(t.TempDir(), "covtrace.json")
	require.NoError(t, cfg.WriteToFile(path))

	loaded, err := ReadProjectConfigFromFile(path, "hardhat")
	require.NoError(t, err)
	require.Equal(t, cfg.RPCURL, loaded.RPCURL)
	require.Equal(t, cfg.CoverageFile, loaded.CoverageFile)
}

func TestReadProjectConfigFromFileMissingFile(t *testing.T) {
	_, err := ReadProjectConfigFromFile(filepath.Join(t.TempDir(), "missing.json"), "hardhat")
	require.Error(t, err)
}

func TestValidateRejectsUnsupportedPlatform(t *testing.T) {
	cfg := DefaultProjectConfig("hardhat")
	cfg.Platform = "foundry"
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, DefaultProjectConfig("hardhat").Validate())
	require.NoError(t, DefaultProjectConfig("truffle").Validate())
}

func TestReadProjectConfigOverridesDefaultsPartially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rpcUrl":"http://example.com"}`), 0644))

	cfg, err := ReadProjectConfigFromFile(path, "truffle")
	require.NoError(t, err)
	require.Equal(t, "http://example.com", cfg.RPCURL)
	require.Equal(t, "./build/contracts", cfg.ArtifactsDirectory, "unset fields keep the platform default")
}

func TestProjectConfigJSONFieldNames(t *testing.T) {
	cfg := DefaultProjectConfig("hardhat")
	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Contains(t, raw, "rpcUrl")
	require.Contains(t, raw, "artifactsDirectory")
	require.Contains(t, raw, "coverageFile")
}
