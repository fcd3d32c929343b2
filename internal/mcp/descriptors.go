package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDescriptor is a transport-neutral view of a registered tool.
type ToolDescriptor interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	OutputSchema() json.RawMessage // nil when the tool declares none
}

// ToolInfo summarizes a tool's arguments.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required,omitempty"`
	Optional    []string `json:"optional,omitempty"`
}

type toolDescriptor struct {
	tool mcp.Tool
}

func (d toolDescriptor) Name() string        { return d.tool.Name }
func (d toolDescriptor) Description() string { return d.tool.Description }

func (d toolDescriptor) InputSchema() json.RawMessage {
	if d.tool.RawInputSchema != nil {
		return d.tool.RawInputSchema
	}
	data, err := json.Marshal(d.tool.InputSchema)
	if err != nil {
		return nil
	}
	return data
}

func (d toolDescriptor) OutputSchema() json.RawMessage {
	if d.tool.RawOutputSchema != nil {
		return d.tool.RawOutputSchema
	}
	if d.tool.OutputSchema.Type == "" {
		return nil
	}
	data, err := json.Marshal(d.tool.OutputSchema)
	if err != nil {
		return nil
	}
	return data
}

// Descriptors returns all registered tools sorted by name.
func (s *Server) Descriptors() []ToolDescriptor {
	registered := s.mcpServer.ListTools()
	out := make([]ToolDescriptor, 0, len(registered))
	for _, st := range registered {
		out = append(out, toolDescriptor{tool: st.Tool})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

// Describe returns a single tool's descriptor. Unknown names produce an
// error listing similarly named tools.
func (s *Server) Describe(name string) (ToolDescriptor, error) {
	if st := s.mcpServer.GetTool(name); st != nil {
		return toolDescriptor{tool: st.Tool}, nil
	}
	similar := s.findSimilarTools(name)
	if len(similar) == 0 {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return nil, fmt.Errorf("unknown tool %q (did you mean: %s?)", name, strings.Join(similar, ", "))
}

// Summarize extracts argument names from a descriptor's input schema.
func Summarize(d ToolDescriptor) ToolInfo {
	info := ToolInfo{Name: d.Name(), Description: d.Description()}

	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(d.InputSchema(), &schema); err != nil {
		return info
	}

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}
	for name := range schema.Properties {
		if required[name] {
			info.Required = append(info.Required, name)
		} else {
			info.Optional = append(info.Optional, name)
		}
	}
	sort.Strings(info.Required)
	sort.Strings(info.Optional)
	return info
}

// findSimilarTools finds tools with similar names.
func (s *Server) findSimilarTools(name string) []string {
	var similar []string
	name = strings.ToLower(name)

	for _, d := range s.Descriptors() {
		toolLower := strings.ToLower(d.Name())
		// Check for common substrings
		if strings.Contains(toolLower, name) || strings.Contains(name, toolLower) {
			similar = append(similar, d.Name())
		} else if levenshteinDistance(name, toolLower) <= 3 {
			similar = append(similar, d.Name())
		}
	}

	if len(similar) > 3 {
		similar = similar[:3]
	}
	return similar
}

// levenshteinDistance calculates edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				min(matrix[i][j-1]+1, matrix[i-1][j-1]+cost),
			)
		}
	}

	return matrix[len(a)][len(b)]
}
