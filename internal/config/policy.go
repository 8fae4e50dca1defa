package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brixta-dev/mcp-bridge/openapi"
	"github.com/brixta-dev/mcp-bridge/toolgen"
)

// Policy restricts which specification operations become tools
type Policy struct {
	// DisabledMethods lists HTTP methods that never become tools
	DisabledMethods []string `yaml:"disabledMethods"`

	// DisabledOperations lists operation IDs that never become tools
	DisabledOperations []string `yaml:"disabledOperations"`

	// DisabledPaths lists regex patterns; operations whose path matches
	// any pattern never become tools
	DisabledPaths []string `yaml:"disabledPaths"`

	pathPatterns []*regexp.Regexp
}

// DefaultPolicy returns a policy that allows everything
func DefaultPolicy() *Policy {
	return &Policy{}
}

// LoadPolicyFile loads a policy from a YAML file. A missing file means
// no restrictions.
func LoadPolicyFile(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return nil, fmt.Errorf("opening policy file: %w", err)
	}
	defer f.Close()

	return LoadPolicy(f)
}

// LoadPolicy loads a policy from a reader
func LoadPolicy(r io.Reader) (*Policy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading policy: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := policy.compile(); err != nil {
		return nil, err
	}
	return policy, nil
}

func (p *Policy) compile() error {
	p.pathPatterns = p.pathPatterns[:0]
	for _, pattern := range p.DisabledPaths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid path pattern %q: %w", pattern, err)
		}
		p.pathPatterns = append(p.pathPatterns, re)
	}
	return nil
}

// Allows reports whether an operation may become a tool
func (p *Policy) Allows(op openapi.Operation) bool {
	for _, method := range p.DisabledMethods {
		if strings.EqualFold(method, op.Method) {
			return false
		}
	}
	for _, id := range p.DisabledOperations {
		if id == op.ID {
			return false
		}
	}
	for _, re := range p.pathPatterns {
		if re.MatchString(op.Path) {
			return false
		}
	}
	return true
}

// Filter adapts the policy for tool synthesis
func (p *Policy) Filter() toolgen.Filter {
	return p.Allows
}
