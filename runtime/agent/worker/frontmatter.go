// Package worker loads `.worker` files (YAML-frontmatter plus a free-form
// instruction body) into WorkerDefinitions and resolves them into callable
// Workers (spec component C2).
package worker

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the parsed YAML block at the top of a `.worker` file.
type Frontmatter struct {
	Name              string   `yaml:"name"`
	Model             string   `yaml:"model"`
	CompatibleModels  []string `yaml:"compatible_models"`
	InputModelRef     string   `yaml:"input_model_ref"`
	Toolsets          []string `yaml:"toolsets"`
	Entry             bool     `yaml:"entry"`
	Description       string   `yaml:"description"`
}

const frontmatterDelim = "---"

// ParseFile splits raw `.worker` file contents into Frontmatter and the
// instruction body. The file must start with a line containing only "---",
// followed by a YAML block, a closing "---" line, and the body.
func ParseFile(path string, data []byte) (Frontmatter, string, error) {
	text := string(data)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return Frontmatter{}, "", fmt.Errorf("worker %s: missing frontmatter delimiter", path)
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		return Frontmatter{}, "", fmt.Errorf("worker %s: unterminated frontmatter block", path)
	}
	yamlBlock := strings.Join(lines[1:end], "\n")
	body := strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return Frontmatter{}, "", fmt.Errorf("worker %s: invalid frontmatter: %w", path, err)
	}
	if strings.TrimSpace(fm.Name) == "" {
		return Frontmatter{}, "", fmt.Errorf("worker %s: frontmatter.name is required", path)
	}
	return fm, body, nil
}
