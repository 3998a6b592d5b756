package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yanmxa/gencode/internal/tool/ui"
)

// ToolSearchTool is the built-in escape hatch for deferred-expansion's
// yes_hidden tools: it fuzzy-matches a query against every registered
// tool's name and description, hidden ones included, the same
// case-insensitive regex-or-substring style GrepTool uses for file
// content. It is never itself deferred.
type ToolSearchTool struct{}

func (t *ToolSearchTool) Name() string { return "ToolSearch" }
func (t *ToolSearchTool) Description() string {
	return "Search for tools not currently listed in this turn's tool list"
}
func (t *ToolSearchTool) Icon() string { return ui.IconGrep }

func (t *ToolSearchTool) Execute(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	start := time.Now()

	query, ok := params["query"].(string)
	if !ok || query == "" {
		return ui.NewErrorResult(t.Name(), "query is required")
	}

	re, reErr := regexp.Compile("(?i)" + query)
	needle := strings.ToLower(query)

	var matches []ToolDescriptor
	for _, d := range DefaultRegistry.VisibleTools(nil, IncludeHidden) {
		if d.Name == t.Name() {
			continue
		}
		haystack := d.Name + " " + d.Description
		if (reErr == nil && re.MatchString(haystack)) || strings.Contains(strings.ToLower(haystack), needle) {
			matches = append(matches, d)
		}
	}

	if len(matches) == 0 {
		result := ui.NewSuccessResult(t.Name(), t.Icon(), "no matches", 0, 0, 0, time.Since(start))
		result.Output = fmt.Sprintf("No tools match %q", query)
		return result
	}

	var sb strings.Builder
	for _, d := range matches {
		fmt.Fprintf(&sb, "%s: %s", d.Name, d.Description)
		if d.Deferred == DeferredHidden {
			sb.WriteString(" (hidden — call it directly by name to use it)")
		}
		sb.WriteString("\n")
	}

	result := ui.NewSuccessResult(t.Name(), t.Icon(), fmt.Sprintf("%d match(es)", len(matches)), 0, 0, len(matches), time.Since(start))
	result.Output = sb.String()
	return result
}

func init() {
	Register(&ToolSearchTool{})
}
