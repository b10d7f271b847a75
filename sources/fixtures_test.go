package sources

import "github.com/covtrace/covtrace/artifacts"

// testBuildInfo returns a minimal single-contract BuildInfo whose runtime bytecode begins with a wildcard-eligible
// '00' byte, for exercising the same-length fuzzy-match rule.
func testBuildInfo() *artifacts.BuildInfo {
	return &artifacts.BuildInfo{
		Path:         "Fixture.sol",
		ContractName: "Fixture",
		InputSources: map[string]string{"Fixture.sol": "contract Fixture {}"},
		OutputSources: map[string]artifacts.OutputSource{
			"Fixture.sol": {ID: 0},
		},
		RuntimeCode: artifacts.Code{
			Object:    "006080604052600080fd",
			SourceMap: "0:19:0",
		},
	}
}
