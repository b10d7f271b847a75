package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const hardhatBuildInfoFixture = `{
  "solcVersion": "0.8.20",
  "input": {
    "sources": {
      "contracts/Token.sol": {"content": "contract Token {}"}
    }
  },
  "output": {
    "sources": {
      "contracts/Token.sol": {"id": 0, "ast": {"nodeType":"SourceUnit"}}
    },
    "contracts": {
      "contracts/Token.sol": {
        "Token": {
          "evm": {
            "bytecode": {"object": "6080", "sourceMap": "0:1:0"},
            "deployedBytecode": {"object": "fe", "sourceMap": "0:1:0", "generatedSources": [
              {"id": 1, "name": "#utility.yul", "contents": "object \"x\" {}", "ast": {"nodeType":"YulBlock"}}
            ]}
          }
        }
      }
    }
  }
}`

func writeHardhatFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	buildInfoDir := filepath.Join(dir, "build-info")
	require.NoError(t, os.MkdirAll(buildInfoDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(buildInfoDir, "abc123.json"), []byte(hardhatBuildInfoFixture), 0644))
	return dir
}

func TestHardhatProviderFullyQualifiedNames(t *testing.T) {
	provider := NewHardhatProvider(writeHardhatFixture(t), "")
	names, err := provider.FullyQualifiedNames()
	require.NoError(t, err)
	require.Equal(t, []string{"contracts/Token.sol:Token"}, names)
}

func TestHardhatProviderBuildInfo(t *testing.T) {
	provider := NewHardhatProvider(writeHardhatFixture(t), "")
	info, err := provider.BuildInfo("contracts/Token.sol:Token")
	require.NoError(t, err)

	require.Equal(t, "contracts/Token.sol", info.Path)
	require.Equal(t, "Token", info.ContractName)
	require.Equal(t, "0.8.20", info.CompilerVersion)
	require.Equal(t, "contract Token {}", info.InputSources["contracts/Token.sol"])
	require.Equal(t, 0, info.OutputSources["contracts/Token.sol"].ID)
	require.Equal(t, "6080", info.ConstructorCode.Object)
	require.Equal(t, "fe", info.RuntimeCode.Object)
	require.Len(t, info.RuntimeCode.GeneratedSources, 1)
	require.Equal(t, "#utility.yul", info.RuntimeCode.GeneratedSources[0].Name)
}

func TestHardhatProviderBuildInfoUnknownContract(t *testing.T) {
	provider := NewHardhatProvider(writeHardhatFixture(t), "")
	_, err := provider.BuildInfo("contracts/Token.sol:Missing")
	require.Error(t, err)
}

func TestHardhatProviderCompileNoProjectDirectoryIsNoOp(t *testing.T) {
	provider := NewHardhatProvider(writeHardhatFixture(t), "")
	require.NoError(t, provider.Compile())
}
