package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/covtrace/covtrace/utils"
	"github.com/pkg/errors"
)

// HardhatProvider reads Hardhat's "build-info" JSON files (artifacts/build-info/*.json under the Hardhat artifacts
// directory), which bundle the full compiler input and output in one document per compilation.
type HardhatProvider struct {
	// ArtifactsDirectory is the Hardhat artifacts directory (commonly "artifacts"); build-info files live under
	// "<ArtifactsDirectory>/build-info/*.json".
	ArtifactsDirectory string

	// ProjectDirectory is the directory `npx hardhat compile` is invoked from. Empty disables Compile.
	ProjectDirectory string

	buildInfos []hardhatBuildInfo
	loaded     bool
}

// NewHardhatProvider constructs a HardhatProvider rooted at the given Hardhat artifacts directory.
func NewHardhatProvider(artifactsDirectory string, projectDirectory string) *HardhatProvider {
	return &HardhatProvider{ArtifactsDirectory: artifactsDirectory, ProjectDirectory: projectDirectory}
}

// hardhatBuildInfo mirrors the on-disk shape of a single Hardhat build-info document.
type hardhatBuildInfo struct {
	SolcVersion string `json:"solcVersion"`
	Input       struct {
		Sources map[string]struct {
			Content string `json:"content"`
		} `json:"sources"`
	} `json:"input"`
	Output struct {
		Sources map[string]struct {
			ID  int             `json:"id"`
			AST json.RawMessage `json:"ast"`
		} `json:"sources"`
		Contracts map[string]map[string]struct {
			EVM struct {
				Bytecode         hardhatCodeObject `json:"bytecode"`
				DeployedBytecode hardhatCodeObject `json:"deployedBytecode"`
			} `json:"evm"`
		} `json:"contracts"`
	} `json:"output"`
}

type hardhatCodeObject struct {
	Object           string `json:"object"`
	SourceMap        string `json:"sourceMap"`
	GeneratedSources []struct {
		ID       int             `json:"id"`
		Name     string          `json:"name"`
		Contents string          `json:"contents"`
		AST      json.RawMessage `json:"ast"`
	} `json:"generatedSources"`
}

// Compile shells out to "npx hardhat compile" in ProjectDirectory. A HardhatProvider constructed with an empty
// ProjectDirectory treats this as a no-op, for the --no-compile CLI path.
func (p *HardhatProvider) Compile() error {
	if p.ProjectDirectory == "" {
		return nil
	}

	cmd := exec.Command("npx", "hardhat", "compile")
	cmd.Dir = p.ProjectDirectory
	_, _, combined, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		return errors.Wrapf(err, "hardhat compile failed: %s", string(combined))
	}
	return nil
}

func (p *HardhatProvider) load() error {
	if p.loaded {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(p.ArtifactsDirectory, "build-info", "*.json"))
	if err != nil {
		return errors.WithStack(err)
	}

	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			return errors.Wrapf(err, "reading build-info file %s", match)
		}

		var info hardhatBuildInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return errors.Wrapf(err, "parsing build-info file %s", match)
		}
		p.buildInfos = append(p.buildInfos, info)
	}

	p.loaded = true
	return nil
}

// FullyQualifiedNames implements Provider.
func (p *HardhatProvider) FullyQualifiedNames() ([]string, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	var names []string
	for _, info := range p.buildInfos {
		for path, contracts := range info.Output.Contracts {
			for name := range contracts {
				names = append(names, fmt.Sprintf("%s:%s", path, name))
			}
		}
	}
	return names, nil
}

// BuildInfo implements Provider.
func (p *HardhatProvider) BuildInfo(fqn string) (*BuildInfo, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	path, name, err := splitFQN(fqn)
	if err != nil {
		return nil, err
	}

	for _, info := range p.buildInfos {
		contracts, ok := info.Output.Contracts[path]
		if !ok {
			continue
		}
		contract, ok := contracts[name]
		if !ok {
			continue
		}

		inputSources := make(map[string]string, len(info.Input.Sources))
		for srcPath, src := range info.Input.Sources {
			inputSources[srcPath] = src.Content
		}

		outputSources := make(map[string]OutputSource, len(info.Output.Sources))
		for srcPath, src := range info.Output.Sources {
			outputSources[srcPath] = OutputSource{ID: src.ID, AST: src.AST}
		}

		return &BuildInfo{
			Path:            path,
			ContractName:    name,
			InputSources:    inputSources,
			OutputSources:   outputSources,
			ConstructorCode: toCode(contract.EVM.Bytecode),
			RuntimeCode:     toCode(contract.EVM.DeployedBytecode),
			CompilerVersion: info.SolcVersion,
		}, nil
	}

	return nil, errors.Errorf("no build-info entry for %s", fqn)
}

func toCode(obj hardhatCodeObject) Code {
	code := Code{Object: obj.Object, SourceMap: obj.SourceMap}
	for _, gs := range obj.GeneratedSources {
		code.GeneratedSources = append(code.GeneratedSources, GeneratedSource{
			ID: gs.ID, Name: gs.Name, Contents: gs.Contents, AST: gs.AST,
		})
	}
	return code
}
