package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/covtrace/covtrace/utils"
	"github.com/pkg/errors"
)

// TruffleProvider reads Truffle's per-contract artifact JSON files (commonly "build/contracts/*.json"), each
// describing one contract's full compilation rather than Hardhat's per-run build-info bundle. Truffle artifacts
// carry only the one source file a contract was declared in, plus flattened source/sourceMap fields, so they are
// re-projected into the same BuildInfo shape the Hardhat loader produces.
type TruffleProvider struct {
	// ArtifactsDirectory is the Truffle build/contracts directory.
	ArtifactsDirectory string

	// ProjectDirectory is the directory `npx truffle compile` is invoked from. Empty disables Compile.
	ProjectDirectory string

	artifacts []truffleArtifact
	loaded    bool
}

// NewTruffleProvider constructs a TruffleProvider rooted at the given Truffle build/contracts directory.
func NewTruffleProvider(artifactsDirectory string, projectDirectory string) *TruffleProvider {
	return &TruffleProvider{ArtifactsDirectory: artifactsDirectory, ProjectDirectory: projectDirectory}
}

type truffleArtifact struct {
	ContractName      string          `json:"contractName"`
	Bytecode          string          `json:"bytecode"`
	DeployedBytecode  string          `json:"deployedBytecode"`
	SourceMap         string          `json:"sourceMap"`
	DeployedSourceMap string          `json:"deployedSourceMap"`
	Source            string          `json:"source"`
	SourcePath        string          `json:"sourcePath"`
	AST               json.RawMessage `json:"ast"`
	CompilerVersion   struct {
		Version string `json:"version"`
	} `json:"compiler"`
}

// Compile shells out to "npx truffle compile --all" in ProjectDirectory. A TruffleProvider constructed with an
// empty ProjectDirectory treats this as a no-op.
func (p *TruffleProvider) Compile() error {
	if p.ProjectDirectory == "" {
		return nil
	}

	cmd := exec.Command("npx", "truffle", "compile", "--all")
	cmd.Dir = p.ProjectDirectory
	_, _, combined, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		return errors.Wrapf(err, "truffle compile failed: %s", string(combined))
	}
	return nil
}

func (p *TruffleProvider) load() error {
	if p.loaded {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(p.ArtifactsDirectory, "*.json"))
	if err != nil {
		return errors.WithStack(err)
	}

	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			return errors.Wrapf(err, "reading truffle artifact %s", match)
		}

		var artifact truffleArtifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			return errors.Wrapf(err, "parsing truffle artifact %s", match)
		}
		// Interface/abstract-contract artifacts carry no bytecode; they contribute no source map and are skipped.
		if artifact.Bytecode == "" || artifact.Bytecode == "0x" {
			continue
		}
		p.artifacts = append(p.artifacts, artifact)
	}

	p.loaded = true
	return nil
}

// FullyQualifiedNames implements Provider.
func (p *TruffleProvider) FullyQualifiedNames() ([]string, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(p.artifacts))
	for _, artifact := range p.artifacts {
		names = append(names, fmt.Sprintf("%s:%s", artifact.SourcePath, artifact.ContractName))
	}
	return names, nil
}

// BuildInfo implements Provider.
func (p *TruffleProvider) BuildInfo(fqn string) (*BuildInfo, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	path, name, err := splitFQN(fqn)
	if err != nil {
		return nil, err
	}

	for _, artifact := range p.artifacts {
		if artifact.SourcePath != path || artifact.ContractName != name {
			continue
		}

		return &BuildInfo{
			Path:         path,
			ContractName: name,
			InputSources: map[string]string{path: artifact.Source},
			// Truffle artifacts assign every source id 0, since each artifact describes exactly one source file;
			// Sources disambiguates any path collisions across artifacts on content, as usual.
			OutputSources: map[string]OutputSource{
				path: {ID: 0, AST: artifact.AST},
			},
			ConstructorCode: Code{Object: trimHexPrefix(artifact.Bytecode), SourceMap: artifact.SourceMap},
			RuntimeCode:     Code{Object: trimHexPrefix(artifact.DeployedBytecode), SourceMap: artifact.DeployedSourceMap},
			CompilerVersion: artifact.CompilerVersion.Version,
		}, nil
	}

	return nil, errors.Errorf("no truffle artifact for %s", fqn)
}

func trimHexPrefix(s string) string {
	return strings.TrimPrefix(s, "0x")
}
