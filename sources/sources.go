// Package sources owns every bytecode and compiler source the attribution engine has learned about: which
// addresses run which bytecode, which SourceMap belongs to which bytecode, and which source path a given
// (bytecode, sourceIndex) pair resolves to once duplicate nominal paths have been disambiguated.
package sources

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/covtrace/covtrace/artifacts"
	"github.com/covtrace/covtrace/sourcemap"
	"github.com/pkg/errors"
)

// CompilerSource is one source file as the compiler saw it: its path, its exact content, and its parsed AST.
type CompilerSource struct {
	// Path is the source's nominal path, possibly disambiguated with a ":<k>" suffix (see indexSourceLocked).
	Path string

	// Content is the exact source text the compiler read for this path.
	Content string

	// AST is the compiler's AST root for this source, as raw JSON (walked lazily by the coverage package).
	AST json.RawMessage

	// ID is the compiler-assigned source id this entry was registered under for one particular bytecode.
	ID int

	// CompilerVersion is the solc version string the compilation that produced this source reported, if any. Used
	// by the coverage package to gate version-sensitive AST node handling.
	CompilerVersion string
}

// FuzzyMatchCache persists a resolved fuzzy bytecode match across process invocations, so a later run against the
// same deployed code does not need to re-scan every known bytecode. Sources consults it before the fuzzy scan but
// a miss or absent cache never changes the scan's result, only its cost.
type FuzzyMatchCache interface {
	// Get returns the previously-matched known bytecode key for deployedBytecode, if any.
	Get(deployedBytecode string) (matchedKey string, ok bool)

	// Put records that deployedBytecode resolved, via a fuzzy match, to matchedKey.
	Put(deployedBytecode string, matchedKey string)
}

// UnknownAddress is returned when no bytecode is known for a requested address.
type UnknownAddress struct {
	Address string
}

func (e *UnknownAddress) Error() string {
	return fmt.Sprintf("no bytecode known for address %s", e.Address)
}

// NoSourceMap is returned when a bytecode matches no known SourceMap, exactly or fuzzily.
type NoSourceMap struct {
	Bytecode string
}

func (e *NoSourceMap) Error() string {
	n := len(e.Bytecode)
	if n > 42 {
		n = 42
	}
	return fmt.Sprintf("no source map for bytecode %s...", e.Bytecode[:n])
}

// NoPathForSource is returned when a (bytecode, sourceIndex) pair has no disambiguated path recorded.
type NoPathForSource struct {
	Bytecode    string
	SourceIndex int
}

func (e *NoPathForSource) Error() string {
	return fmt.Sprintf("no path recorded for source index %d of bytecode %.10s...", e.SourceIndex, e.Bytecode)
}

// Sources owns every known bytecode, its SourceMap, its deployed addresses, and the disambiguated path for every
// (bytecode, sourceIndex) pair it has indexed. All mutating operations are serialized behind a single coarse
// lock.
type Sources struct {
	mu sync.Mutex

	// FuzzyCache is consulted (and written to) by BytecodeToSourceMap before it falls back to the O(n) fuzzy scan.
	// Nil disables persistence without disabling fuzzy matching itself.
	FuzzyCache FuzzyMatchCache

	addressToBytecode map[string]string
	bytecodeToMap     map[string]*sourcemap.SourceMap
	// bytecodeToSources maps a bytecode key to its sourceIndex->disambiguated-path table, exactly as that bytecode's
	// compilation indexed it.
	bytecodeToSources map[string]map[int]string
	pathToSource      map[string]*CompilerSource
	pathUniqueCounter map[string]int
}

// New constructs an empty Sources.
func New() *Sources {
	return &Sources{
		addressToBytecode: make(map[string]string),
		bytecodeToMap:     make(map[string]*sourcemap.SourceMap),
		bytecodeToSources: make(map[string]map[int]string),
		pathToSource:      make(map[string]*CompilerSource),
		pathUniqueCounter: make(map[string]int),
	}
}

// Crawl loads every contract an artifacts.Provider knows about: for each fully-qualified name it builds the ordered
// compiler sources, parses the constructor and runtime SourceMaps, and seeds both bytecode->SourceMap lookups from
// each code object's .Object.
func (s *Sources) Crawl(provider artifacts.Provider) error {
	fqns, err := provider.FullyQualifiedNames()
	if err != nil {
		return errors.WithMessage(err, "listing fully-qualified contract names")
	}

	for _, fqn := range fqns {
		buildInfo, err := provider.BuildInfo(fqn)
		if err != nil {
			return errors.WithMessagef(err, "loading build info for %s", fqn)
		}

		if err := s.crawlContract(fqn, buildInfo); err != nil {
			return errors.WithMessagef(err, "indexing %s", fqn)
		}
	}
	return nil
}

func (s *Sources) crawlContract(fqn string, buildInfo *artifacts.BuildInfo) error {
	base := make(map[int]CompilerSource, len(buildInfo.OutputSources))
	for path, out := range buildInfo.OutputSources {
		base[out.ID] = CompilerSource{
			Path:            path,
			Content:         buildInfo.InputSources[path],
			AST:             out.AST,
			ID:              out.ID,
			CompilerVersion: buildInfo.CompilerVersion,
		}
	}

	if err := s.indexCode(fqn, buildInfo.ConstructorCode, base, buildInfo.CompilerVersion); err != nil {
		return errors.WithMessage(err, "constructor bytecode")
	}
	if err := s.indexCode(fqn, buildInfo.RuntimeCode, base, buildInfo.CompilerVersion); err != nil {
		return errors.WithMessage(err, "runtime bytecode")
	}
	return nil
}

// indexCode parses one code object's SourceMap and indexes every source (ordinary plus compiler-generated) it
// references, keyed by the code object's bytecode.
func (s *Sources) indexCode(fqn string, code artifacts.Code, base map[int]CompilerSource, compilerVersion string) error {
	// Unlinked library placeholders ("__$...$__") or an absent code object leave nothing to index.
	if code.Object == "" || strings.Contains(code.Object, "__") {
		return nil
	}

	sm, err := sourcemap.Parse(fqn, code.Object, code.SourceMap)
	if err != nil {
		return err
	}

	all := make(map[int]CompilerSource, len(base)+len(code.GeneratedSources))
	for id, cs := range base {
		all[id] = cs
	}
	for _, gs := range code.GeneratedSources {
		all[gs.ID] = CompilerSource{
			Path: gs.Name, Content: gs.Contents, AST: gs.AST, ID: gs.ID, CompilerVersion: compilerVersion,
		}
	}

	key := strings.ToLower(code.Object)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bytecodeToMap[key] = sm
	if _, ok := s.bytecodeToSources[key]; !ok {
		s.bytecodeToSources[key] = make(map[int]string)
	}
	for id, cs := range all {
		path := s.indexSourceLocked(cs.Path, cs.Content, cs.AST, cs.ID, cs.CompilerVersion)
		s.bytecodeToSources[key][id] = path
	}
	return nil
}

// indexSourceLocked applies the path-disambiguation rule: a path with identical content to an already-stored path
// is reused; a path with conflicting content is assigned a ":<k>" suffix, searching existing suffixes for a
// content match before allocating a new one. Caller holds s.mu.
func (s *Sources) indexSourceLocked(path string, content string, ast json.RawMessage, id int, compilerVersion string) string {
	if existing, ok := s.pathToSource[path]; !ok {
		s.pathToSource[path] = &CompilerSource{Path: path, Content: content, AST: ast, ID: id, CompilerVersion: compilerVersion}
		return path
	} else if existing.Content == content {
		return path
	}

	unique := s.pathUniqueCounter[path]
	for k := 0; k < unique; k++ {
		candidate := fmt.Sprintf("%s:%d", path, k)
		// A candidate in [0, unique) was allocated by a prior call, so it is always present; no presence check is
		// needed here.
		if s.pathToSource[candidate].Content == content {
			return candidate
		}
	}

	candidate := fmt.Sprintf("%s:%d", path, unique)
	s.pathToSource[candidate] = &CompilerSource{Path: candidate, Content: content, AST: ast, ID: id, CompilerVersion: compilerVersion}
	s.pathUniqueCounter[path] = unique + 1
	return candidate
}

// LoadAddresses merges addr->bytecode pairs into the address table, lowercasing every address key.
func (s *Sources) LoadAddresses(addresses map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, bytecode := range addresses {
		s.addressToBytecode[strings.ToLower(addr)] = strings.ToLower(strings.TrimPrefix(bytecode, "0x"))
	}
}

// AddressToBytecode returns the bytecode bound to a deployed address.
func (s *Sources) AddressToBytecode(address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytecode, ok := s.addressToBytecode[strings.ToLower(address)]
	if !ok {
		return "", &UnknownAddress{Address: address}
	}
	return bytecode, nil
}

// BytecodeToSourceMap resolves a bytecode to its SourceMap, trying an exact match first, then the persistent
// fuzzy-match cache, then a fuzzy scan of every known bytecode. A successful fuzzy match is cached both in-memory
// and (if FuzzyCache is set) persistently, and the matched path table is copied under the new key so later
// CompilerSourcePath lookups against this exact bytecode succeed without rescanning.
func (s *Sources) BytecodeToSourceMap(bytecode string) (*sourcemap.SourceMap, error) {
	key := strings.ToLower(strings.TrimPrefix(bytecode, "0x"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if sm, ok := s.bytecodeToMap[key]; ok {
		return sm, nil
	}

	if s.FuzzyCache != nil {
		if matchedKey, ok := s.FuzzyCache.Get(key); ok {
			if sm, ok := s.bytecodeToMap[matchedKey]; ok {
				s.aliasLocked(key, matchedKey, sm)
				return sm, nil
			}
		}
	}

	for knownKey, sm := range s.bytecodeToMap {
		if fuzzyMatch(key, knownKey) {
			s.aliasLocked(key, knownKey, sm)
			if s.FuzzyCache != nil {
				s.FuzzyCache.Put(key, knownKey)
			}
			return sm, nil
		}
	}

	return nil, &NoSourceMap{Bytecode: key}
}

// aliasLocked registers a fuzzy-matched bytecode key as equivalent to an already-indexed key: same SourceMap, same
// sourceIndex->path table. Caller holds s.mu.
func (s *Sources) aliasLocked(newKey string, matchedKey string, sm *sourcemap.SourceMap) {
	s.bytecodeToMap[newKey] = sm
	if table, ok := s.bytecodeToSources[matchedKey]; ok {
		s.bytecodeToSources[newKey] = table
	}
}

// fuzzyMatch implements the two permissive bytecode-matching rules: a same-length match tolerating compiler-left
// '0' nibbles (immutable slots), and a prefix match for deployed code with an appended or modified metadata tail.
func fuzzyMatch(deployed string, known string) bool {
	if len(deployed) == len(known) {
		for i := 0; i < len(deployed); i++ {
			if known[i] != '0' && known[i] != deployed[i] {
				return false
			}
		}
		return true
	}

	if len(deployed) > len(known) && len(known) > 42 {
		return deployed[:len(known)] == known
	}

	return false
}

// CompilerSourcePath returns the disambiguated path a (bytecode, sourceIndex) pair resolved to during indexing.
func (s *Sources) CompilerSourcePath(bytecode string, sourceIndex int) (string, error) {
	key := strings.ToLower(strings.TrimPrefix(bytecode, "0x"))

	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.bytecodeToSources[key]
	if !ok {
		return "", &NoPathForSource{Bytecode: key, SourceIndex: sourceIndex}
	}
	path, ok := table[sourceIndex]
	if !ok {
		return "", &NoPathForSource{Bytecode: key, SourceIndex: sourceIndex}
	}
	return path, nil
}

// Source returns the CompilerSource stored under a disambiguated path.
func (s *Sources) Source(path string) (*CompilerSource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.pathToSource[path]
	return cs, ok
}

// Paths returns every disambiguated source path currently indexed.
func (s *Sources) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.pathToSource))
	for path := range s.pathToSource {
		paths = append(paths, path)
	}
	return paths
}
