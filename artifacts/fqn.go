package artifacts

import (
	"strings"

	"github.com/pkg/errors"
)

// splitFQN splits a fully-qualified contract name "<path>:<contractName>" into its path and contract name. Paths
// may themselves contain ":" only through Sources' own disambiguation suffixes, which never appear in a build
// tool's raw output, so splitting on the last colon is always correct here.
func splitFQN(fqn string) (path string, contractName string, err error) {
	idx := strings.LastIndex(fqn, ":")
	if idx < 0 {
		return "", "", errors.Errorf("%q is not a fully-qualified contract name", fqn)
	}
	return fqn[:idx], fqn[idx+1:], nil
}
