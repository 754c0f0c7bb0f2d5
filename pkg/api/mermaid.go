package api

import (
	"fmt"
	"sort"
	"strings"
)

// Mermaid renders the compiled graph as a Mermaid flowchart.
//
// Shapes carry the node kind: START and FINISH are circles, chat nodes are
// stadiums, tool nodes subroutines, everything else a rectangle. Static
// edges are solid arrows, fan-out destinations each get their own arrow, and
// conditional edges render one dashed, labeled arrow per label-map entry
// (an unlabeled conditional edge renders a single dashed arrow marked "?").
func (g *Graph) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, name := range g.order {
		node := g.nodes[name]
		opener, closer := "[", "]"
		switch node.Kind {
		case KindStart, KindFinish:
			opener, closer = "((", "))"
		case KindChat:
			opener, closer = "([", "])"
		case KindTool:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(name), opener, displayName(name), closer)
	}

	for _, e := range g.edges {
		from := mermaidID(e.From)
		switch e.Kind {
		case EdgeStatic:
			fmt.Fprintf(&sb, "    %s --> %s\n", from, mermaidID(e.To))
		case EdgeFanOut:
			for _, to := range e.Targets {
				fmt.Fprintf(&sb, "    %s --> %s\n", from, mermaidID(to))
			}
		case EdgeConditional:
			if len(e.Labels) == 0 {
				fmt.Fprintf(&sb, "    %s -. \"?\" .-> %s\n", from, mermaidID(Finish))
				continue
			}
			for _, label := range sortedKeys(e.Labels) {
				to := e.Labels[label]
				safeLabel := strings.ReplaceAll(label, "\"", "'")
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, safeLabel, mermaidID(to))
			}
		}
	}

	return sb.String()
}

func displayName(name string) string {
	switch name {
	case Start:
		return "start"
	case Finish:
		return "finish"
	default:
		return name
	}
}

func mermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", " ", "_")
	return r.Replace(id)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
