package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// StaticClient is a deterministic, fixture-backed Client: it never calls a
// real LLM provider, matching vectorindex.Memory's status as the in-memory
// default/test double for an external collaborator named out of scope by
// the specification (§1/§6). Grounded on C360Studio-semspec's
// cmd/mock-llm fixture-routing idiom (route by node name, then by
// numbered sequential fixture, falling back to a repeating base fixture),
// adapted from an HTTP mock server to an in-process Client so the batch
// CLI has something concrete to run against without a second process.
//
// Fixture layout under Dir: "<node>.json" is the repeating fallback,
// "<node>.1.json", "<node>.2.json", … are consumed in order on the Nth
// call for that node. Each fixture is the JSON-encoded target struct, plus
// an optional top-level "_tool_calls" array naming the tools the response
// should be treated as having invoked (defaulting to req.RequiredTools
// when absent, since a fixture that matches the schema is presumed to
// have "called" whatever the caller required).
type StaticClient struct {
	Dir string

	mu    sync.Mutex
	calls map[string]int
}

// NewStaticClient constructs a StaticClient reading fixtures from dir.
func NewStaticClient(dir string) *StaticClient {
	return &StaticClient{Dir: dir, calls: make(map[string]int)}
}

var fixtureSeqRE = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// Complete implements Client by loading the next fixture for req.Node.
func (c *StaticClient) Complete(_ context.Context, req Request, target any) Result {
	path, err := c.nextFixturePath(req.Node)
	if err != nil {
		return Result{Err: fmt.Errorf("staticclient: %w", err)}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{Err: fmt.Errorf("staticclient: reading fixture %s: %w", path, err)}
	}

	var envelope struct {
		ToolCalls []string `json:"_tool_calls"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Result{Err: fmt.Errorf("staticclient: parsing fixture envelope %s: %w", path, err)}
	}

	if target != nil {
		if err := json.Unmarshal(raw, target); err != nil {
			return Result{Err: fmt.Errorf("staticclient: parsing fixture %s into target: %w", path, err)}
		}
	}

	toolCalls := envelope.ToolCalls
	if toolCalls == nil {
		toolCalls = req.RequiredTools
	}

	return Result{Parsed: target, ToolCalls: toolCalls}
}

// nextFixturePath resolves the Nth call for node to a fixture path: the
// Nth numbered fixture if present, otherwise the base "<node>.json"
// fallback.
func (c *StaticClient) nextFixturePath(node string) (string, error) {
	c.mu.Lock()
	n := c.calls[node] + 1
	c.calls[node] = n
	c.mu.Unlock()

	numbered, err := c.numberedFixtures(node)
	if err != nil {
		return "", err
	}
	if n <= len(numbered) {
		return numbered[n-1], nil
	}

	base := filepath.Join(c.Dir, node+".json")
	if _, err := os.Stat(base); err != nil {
		return "", fmt.Errorf("no fixture for node %q (call %d): %w", node, n, err)
	}
	return base, nil
}

// numberedFixtures returns node's "<node>.N.json" fixtures sorted by N.
func (c *StaticClient) numberedFixtures(node string) ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading fixture dir %s: %w", c.Dir, err)
	}

	type seq struct {
		n    int
		path string
	}
	var found []seq
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fixtureSeqRE.FindStringSubmatch(e.Name())
		if m == nil || m[1] != node {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		found = append(found, seq{n: n, path: filepath.Join(c.Dir, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, s := range found {
		paths[i] = s.path
	}
	return paths, nil
}

// FixtureNodeName derives the fixture base name for a node by lower-casing
// it; no characters are stripped or escaped. Exported so callers constructing fixture
// directories by hand (tests, seed data) can compute the expected
// filename instead of hard-coding the node's string form.
func FixtureNodeName(node string) string {
	return strings.ToLower(node)
}
