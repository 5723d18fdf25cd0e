package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Policies []ruleEntry `yaml:"policies"`
}

type ruleEntry struct {
	Route string   `yaml:"route"`
	Roles []string `yaml:"roles"`
}

// LoadFile reads a YAML policy file and builds a Table from it.
//
// File shape:
//
//	policies:
//	  - route: /api/admin
//	    roles: [ROLE_SYSTEM_ADMIN, ROLE_ADMIN]
//	  - route: /api/billing
//	    roles: [ROLE_BILLING]
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from raw YAML policy bytes.
func Parse(data []byte) (*Table, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal policy file: %w", err)
	}

	rules := make([]Rule, 0, len(file.Policies))
	for _, entry := range file.Policies {
		rules = append(rules, Rule{
			Pattern:       entry.Route,
			RequiredRoles: entry.Roles,
		})
	}

	table, err := NewTable(rules)
	if err != nil {
		return nil, fmt.Errorf("build policy table: %w", err)
	}
	return table, nil
}
