package sources

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexSourceDisambiguation(t *testing.T) {
	s := New()

	pathA := s.indexSourceLocked("A.sol", "contract A {}", nil, 0, "")
	require.Equal(t, "A.sol", pathA)

	pathB := s.indexSourceLocked("A.sol", "contract A { uint x; }", nil, 0, "")
	require.Equal(t, "A.sol:0", pathB)

	pathC := s.indexSourceLocked("A.sol", "contract A { uint x; }", nil, 0, "")
	require.Equal(t, "A.sol:0", pathC)

	original, ok := s.Source("A.sol")
	require.True(t, ok)
	require.Equal(t, "contract A {}", original.Content)
}

func TestFuzzyMatchSameLengthImmutableSlots(t *testing.T) {
	require.True(t, fuzzyMatch("abaacdbbef", "ab00cd00ef"))
	require.False(t, fuzzyMatch("abaacdbbe0", "ab00cd00ef"))
}

func TestFuzzyMatchMetadataSuffix(t *testing.T) {
	compiled := "6080604052348015600f57600080fd5b50603f80601d6000396000f3fe00"
	require.Greater(t, len(compiled), 42)
	deployed := compiled + "a264697066735822"
	require.True(t, fuzzyMatch(deployed, compiled))
}

func TestFuzzyMatchRejectsShortKnown(t *testing.T) {
	// The 42-character floor excludes trivially short stubs from the prefix rule.
	short := "1234567890123456789012345678901234567890"
	require.Len(t, short, 40)
	require.False(t, fuzzyMatch(short+"ff", short))
}

func TestBytecodeToSourceMapExactAndFuzzy(t *testing.T) {
	s := New()
	buildInfo := testBuildInfo()

	require.NoError(t, s.crawlContract("Fixture.sol:Fixture", buildInfo))

	sm, err := s.BytecodeToSourceMap(buildInfo.RuntimeCode.Object)
	require.NoError(t, err)
	require.NotNil(t, sm)

	deployed := "ff" + buildInfo.RuntimeCode.Object[2:]
	fuzzySM, err := s.BytecodeToSourceMap(deployed)
	require.NoError(t, err)
	require.Same(t, sm, fuzzySM)

	// A subsequent direct lookup of the fuzzily-matched key must return the identical SourceMap.
	again, err := s.BytecodeToSourceMap(deployed)
	require.NoError(t, err)
	require.Same(t, sm, again)

	path, err := s.CompilerSourcePath(deployed, 0)
	require.NoError(t, err)
	require.Equal(t, "Fixture.sol", path)
}

func TestBytecodeToSourceMapUnknown(t *testing.T) {
	s := New()
	_, err := s.BytecodeToSourceMap("aabbcc")
	require.Error(t, err)
	var noMap *NoSourceMap
	require.ErrorAs(t, err, &noMap)
}

func TestAddressToBytecodeLowercases(t *testing.T) {
	s := New()
	s.LoadAddresses(map[string]string{"0xABCDEF": "0x6000"})

	bytecode, err := s.AddressToBytecode("0xabcdef")
	require.NoError(t, err)
	require.Equal(t, "6000", bytecode)

	_, err = s.AddressToBytecode("0x000000")
	require.Error(t, err)
	var unknown *UnknownAddress
	require.ErrorAs(t, err, &unknown)
}
