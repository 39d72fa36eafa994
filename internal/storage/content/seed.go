// Converts project collections to and from YAML seed files.

package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kennan/folio/internal/storage/entity"
)

// textFields are the project fields seed authors tend to write unquoted,
// such as `year: 2024`.
var textFields = []string{"name", "location", "year", "area", "role", "software"}

// DecodeSeed parses a YAML seed file. The document is either a list of
// projects or a mapping with a "projects" key. Keys use the JSON field names.
func DecodeSeed(data []byte) ([]*entity.Project, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if len(doc.Content) == 0 {
		return []*entity.Project{}, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		var list *yaml.Node
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "projects" {
				list = root.Content[i+1]
			}
		}
		if list == nil {
			return nil, errors.New("seed has no projects key")
		}
		root = list
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: projects must be a list", root.Line)
	}

	var raw []map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	for _, m := range raw {
		for _, k := range textFields {
			switch v := m[k].(type) {
			case int, int64, uint64, float64, bool:
				m[k] = fmt.Sprint(v)
			}
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert seed: %w", err)
	}
	return Decode(b)
}

// EncodeSeed formats projects as a YAML seed file, keeping the field order of
// the JSON representation.
func EncodeSeed(projects []*entity.Project) ([]byte, error) {
	b, err := Encode(projects)
	if err != nil {
		return nil, err
	}
	// JSON is a subset of YAML; decoding it into a node keeps key order.
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert projects: %w", err)
	}
	list := doc.Content[0]
	blockStyle(list)
	root := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "projects"},
			list,
		},
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seed: %w", err)
	}
	return out, nil
}

// blockStyle drops the flow and quoting styles inherited from JSON. Empty
// collections stay in flow style.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	if (n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode) && len(n.Content) == 0 {
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Check reports every problem of a project collection: missing ids or names,
// duplicate ids, unknown categories and dangling scene references.
func Check(projects []*entity.Project) []string {
	var problems []string
	var seen []string
	for i, p := range projects {
		name := p.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
			problems = append(problems, name+": missing id")
		} else if slices.Contains(seen, p.ID) {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", name))
		}
		seen = append(seen, p.ID)
		if p.Name == "" {
			problems = append(problems, name+": missing name")
		}
		var verr *entity.ValidationError
		if err := p.Validate(); errors.As(err, &verr) {
			for _, pb := range verr.Problems {
				problems = append(problems, name+": "+pb)
			}
		}
	}
	return problems
}
