package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const truffleArtifactFixture = `{
  "contractName": "Token",
  "bytecode": "0x6080",
  "deployedBytecode": "0xfe",
  "sourceMap": "0:1:0",
  "deployedSourceMap": "0:1:0",
  "source": "contract Token {}",
  "sourcePath": "contracts/Token.sol",
  "ast": {"nodeType":"SourceUnit"},
  "compiler": {"version": "0.8.20"}
}`

const truffleInterfaceFixture = `{
  "contractName": "IToken",
  "bytecode": "0x",
  "deployedBytecode": "0x",
  "sourcePath": "contracts/IToken.sol"
}`

func writeTruffleFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Token.json"), []byte(truffleArtifactFixture), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IToken.json"), []byte(truffleInterfaceFixture), 0644))
	return dir
}

func TestTruffleProviderFullyQualifiedNamesSkipsInterfaces(t *testing.T) {
	provider := NewTruffleProvider(writeTruffleFixture(t), "")
	names, err := provider.FullyQualifiedNames()
	require.NoError(t, err)
	require.Equal(t, []string{"contracts/Token.sol:Token"}, names)
}

func TestTruffleProviderBuildInfo(t *testing.T) {
	provider := NewTruffleProvider(writeTruffleFixture(t), "")
	info, err := provider.BuildInfo("contracts/Token.sol:Token")
	require.NoError(t, err)

	require.Equal(t, "contracts/Token.sol", info.Path)
	require.Equal(t, "0.8.20", info.CompilerVersion)
	require.Equal(t, "6080", info.ConstructorCode.Object, "0x prefix must be trimmed")
	require.Equal(t, "fe", info.RuntimeCode.Object)
	require.Equal(t, 0, info.OutputSources["contracts/Token.sol"].ID)
}

func TestTruffleProviderBuildInfoUnknownContract(t *testing.T) {
	provider := NewTruffleProvider(writeTruffleFixture(t), "")
	_, err := provider.BuildInfo("contracts/Token.sol:Missing")
	require.Error(t, err)
}
