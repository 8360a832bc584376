package pipeline

import (
	"fmt"
	"strings"
)

// VisualizationFormat is the output format of Plan.Visualize.
type VisualizationFormat string

const (
	FormatText    VisualizationFormat = "text"
	FormatMermaid VisualizationFormat = "mermaid"
	FormatDOT     VisualizationFormat = "dot"
)

// Visualize renders the plan. Flags are looked up in c.
func (p *Plan) Visualize(c *Collection, format VisualizationFormat) (string, error) {
	switch format {
	case FormatText, "":
		return p.visualizeText(c), nil
	case FormatMermaid:
		return p.visualizeMermaid(c), nil
	case FormatDOT:
		return p.visualizeDOT(c), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func flags(c *Collection, name string) string {
	pl, ok := c.Get(name)
	if !ok {
		return ""
	}
	var f []string
	if pl.Isolated() {
		f = append(f, "isolated")
	}
	if pl.AlwaysProcess() {
		f = append(f, "always-process")
	}
	if len(f) == 0 {
		return ""
	}
	return " (" + strings.Join(f, ", ") + ")"
}

func (p *Plan) visualizeText(c *Collection) string {
	var sb strings.Builder
	sb.WriteString("Pipeline Execution Plan\n")
	sb.WriteString("=======================\n\n")

	for i, level := range p.Levels {
		fmt.Fprintf(&sb, "┌─ Level %d\n", i+1)
		for j, name := range level {
			prefix := "├──"
			if j == len(level)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(&sb, "│ %s [%s]%s\n", prefix, name, flags(c, name))
			if deps := p.Dependencies[name]; len(deps) > 0 {
				fmt.Fprintf(&sb, "│       ⤷ depends on: %s\n", strings.Join(deps, ", "))
			}
		}
		if i < len(p.Levels)-1 {
			sb.WriteString("↓\n")
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %d pipelines across %d levels\n", len(p.Order), len(p.Levels))
	return sb.String()
}

func nodeID(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_", "/", "_")
	return "p_" + r.Replace(name)
}

func (p *Plan) visualizeMermaid(c *Collection) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph TD\n")
	for _, name := range p.Order {
		fmt.Fprintf(&sb, "    %s[\"%s%s\"]\n", nodeID(name), name, flags(c, name))
	}
	sb.WriteString("\n")
	for _, name := range p.Order {
		for _, dep := range p.Dependencies[name] {
			fmt.Fprintf(&sb, "    %s --> %s\n", nodeID(dep), nodeID(name))
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func (p *Plan) visualizeDOT(c *Collection) string {
	var sb strings.Builder
	sb.WriteString("digraph Pipelines {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n\n")
	for i, level := range p.Levels {
		fmt.Fprintf(&sb, "    subgraph level_%d {\n", i+1)
		sb.WriteString("        rank=same;\n")
		for _, name := range level {
			fmt.Fprintf(&sb, "        %q [label=%q];\n", name, name+flags(c, name))
		}
		sb.WriteString("    }\n")
	}
	sb.WriteString("\n")
	for _, name := range p.Order {
		for _, dep := range p.Dependencies[name] {
			fmt.Fprintf(&sb, "    %q -> %q;\n", dep, name)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
