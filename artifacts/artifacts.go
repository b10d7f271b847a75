// Package artifacts loads compiled-contract build information from a Solidity build tool's on-disk output, in the
// shape the sources package needs to construct CompilerSources and SourceMaps.
package artifacts

import (
	"encoding/json"
)

// Provider enumerates the fully-qualified contract names a build produced and hands back per-contract build info.
// Concrete providers (HardhatProvider, TruffleProvider) adapt a specific build tool's on-disk layout to this shape.
type Provider interface {
	// FullyQualifiedNames returns every "<path>:<contractName>" this provider knows about.
	FullyQualifiedNames() ([]string, error)

	// BuildInfo returns the build info for one fully-qualified name.
	BuildInfo(fqn string) (*BuildInfo, error)

	// Compile shells out to the underlying build tool, if this provider supports it. Providers that don't support
	// recompilation (or are constructed over a directory the caller has already built) return nil.
	Compile() error
}

// BuildInfo is the per-contract slice of a compiler run that Sources.Crawl needs: the input sources the compiler
// read, the id/ast pair the compiler assigned each output source, and the runtime/constructor bytecode plus
// compressed source map for the one contract this BuildInfo describes.
type BuildInfo struct {
	// Path is the source file path declaring the contract ("contracts/Token.sol").
	Path string

	// ContractName is the contract's name within Path.
	ContractName string

	// InputSources maps every source path the compilation touched to its original file content.
	InputSources map[string]string

	// OutputSources maps every source path to the compiler-assigned id and parsed AST root for that source.
	OutputSources map[string]OutputSource

	// ConstructorCode is the contract's creation bytecode and associated source map.
	ConstructorCode Code

	// RuntimeCode is the contract's deployed bytecode and associated source map.
	RuntimeCode Code

	// CompilerVersion is the solc version string the contract was compiled with, if the build tool records it.
	CompilerVersion string
}

// OutputSource is one entry of the compiler's output.sources map: the source's assigned id (used to index
// SourceRange.SourceIndex) and its parsed AST root.
type OutputSource struct {
	ID  int
	AST json.RawMessage
}

// Code is one of a contract's two bytecode objects (constructor or runtime), plus any compiler-generated sources
// attached to it (ABI decoding stubs, Yul utility functions) which carry their own synthetic source ids.
type Code struct {
	// Object is the bytecode as a hex string without a "0x" prefix. Unresolved link references (external library
	// placeholders) are left as-is; Sources treats such bytecode as unmatchable until linked.
	Object string

	// SourceMap is the compiler's compressed source-map string for Object.
	SourceMap string

	// GeneratedSources lists compiler-synthesized sources referenced by this code object's source map, each with
	// its own id distinct from the ids in OutputSources.
	GeneratedSources []GeneratedSource
}

// GeneratedSource is one compiler-synthesized source attached to a bytecode object, conventionally named with a
// leading "#".
type GeneratedSource struct {
	ID       int
	Name     string
	Contents string
	AST      json.RawMessage
}
