package mcpcontext

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const previewLimit = 600

// RefinedResult is the distilled outcome of one successful tool call. It is
// consumed by the aggregator immediately and never persisted.
type RefinedResult struct {
	Name        string
	Description string
	Summary     string
	Server      string
	Metrics     map[string]interface{}
	Preview     string
}

// Refine extracts text and structured content from a tool result and applies
// the summarisation rules. Returns nil when nothing is worth surfacing.
func Refine(tool mcp.Tool, result *mcp.CallToolResult, serverLabel string) *RefinedResult {
	text := renderTextContent(result.Content)
	summary, metrics, preview := summarize(text, result.StructuredContent)

	if summary == "" && len(metrics) == 0 && preview == "" {
		return nil
	}
	return &RefinedResult{
		Name:        tool.Name,
		Description: tool.Description,
		Summary:     summary,
		Server:      serverLabel,
		Metrics:     metrics,
		Preview:     preview,
	}
}

// renderTextContent flattens the textual blocks of a tool response.
func renderTextContent(blocks []mcp.Content) string {
	var fragments []string
	for _, block := range blocks {
		if text, ok := block.(mcp.TextContent); ok {
			if trimmed := strings.TrimSpace(text.Text); trimmed != "" {
				fragments = append(fragments, trimmed)
			}
		}
	}
	return strings.Join(fragments, "\n")
}

func summarize(text string, structured interface{}) (string, map[string]interface{}, string) {
	payload := structured
	if payload == nil {
		payload = tryParseJSON(text)
	}

	if payload != nil {
		summary, metrics := summarizeStructured(payload)
		preview := ""
		switch payload.(type) {
		case map[string]interface{}, []interface{}:
			if encoded, err := json.Marshal(payload); err == nil {
				preview = truncate(string(encoded))
			}
		}
		if preview == "" && text != "" {
			preview = truncate(text)
		}
		return summary, metrics, preview
	}

	if text == "" {
		return "", nil, ""
	}
	preview := truncate(text)
	summary := preview
	if idx := strings.IndexByte(preview, '\n'); idx >= 0 {
		summary = preview[:idx]
	}
	return summary, nil, preview
}

func summarizeStructured(payload interface{}) (string, map[string]interface{}) {
	switch value := payload.(type) {
	case []interface{}:
		if len(value) == 0 {
			return "Tool returned an empty list.", nil
		}
		if numbers, ok := asNumbers(value); ok {
			return fmt.Sprintf("Processed %d numeric values from MCP tool.", len(value)),
				aggregateNumericValues(numbers)
		}
		if objects, ok := asObjects(value); ok {
			return summarizeRecords(objects)
		}
	case map[string]interface{}:
		numeric := map[string]float64{}
		for key, field := range value {
			if n, ok := asNumber(field); ok {
				numeric[key] = n
			}
		}
		if len(numeric) > 0 {
			metrics := make(map[string]interface{}, len(numeric))
			for key, n := range numeric {
				metrics[key] = aggregateNumericValues([]float64{n})
			}
			return "Extracted numeric metrics from MCP tool payload.", metrics
		}
	}

	preview := ""
	if encoded, err := json.Marshal(payload); err == nil {
		preview = string(encoded)
	}
	return "Structured data returned; no numeric aggregations available.",
		map[string]interface{}{"data_preview": truncate(preview)}
}

func summarizeRecords(records []map[string]interface{}) (string, map[string]interface{}) {
	aggregates := map[string][]float64{}
	for _, record := range records {
		for key, field := range record {
			if n, ok := asNumber(field); ok {
				aggregates[key] = append(aggregates[key], n)
			}
		}
	}

	if len(aggregates) == 0 {
		return fmt.Sprintf("Processed %d records without numeric fields to aggregate.", len(records)), nil
	}

	metrics := make(map[string]interface{}, len(aggregates))
	for key, values := range aggregates {
		metrics[key] = aggregateNumericValues(values)
	}
	return fmt.Sprintf("Aggregated %d records across %d numeric field(s).", len(records), len(metrics)),
		metrics
}

// aggregateNumericValues computes the standard stats over a numeric list,
// each rounded to three decimal places. An empty list yields an empty map.
func aggregateNumericValues(values []float64) map[string]interface{} {
	if len(values) == 0 {
		return map[string]interface{}{}
	}

	total := 0.0
	min := values[0]
	max := values[0]
	for _, v := range values {
		total += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	count := float64(len(values))
	return map[string]interface{}{
		"count":   count,
		"sum":     round3(total),
		"average": round3(total / count),
		"min":     round3(min),
		"max":     round3(max),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// formatSections renders refined results into a prompt-friendly block, one
// section per result, blank-line separated.
func formatSections(results []*RefinedResult) string {
	sections := make([]string, 0, len(results))
	for _, result := range results {
		lines := []string{fmt.Sprintf("Tool %s: %s", result.Name, result.Summary)}
		if result.Server != "" {
			lines = append(lines, "Server: "+result.Server)
		}
		if result.Description != "" {
			lines = append(lines, "Description: "+result.Description)
		}
		if len(result.Metrics) > 0 {
			lines = append(lines, "Metrics: "+truncate(stringifyMetrics(result.Metrics)))
		}
		if result.Preview != "" {
			lines = append(lines, "Preview: "+result.Preview)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func stringifyMetrics(metrics map[string]interface{}) string {
	encoded, err := json.Marshal(metrics)
	if err != nil {
		keys := make([]string, 0, len(metrics))
		for key := range metrics {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return strings.Join(keys, ", ")
	}
	return string(encoded)
}

// formatOfflineNotice renders a human-readable note naming servers that
// failed to list their tools.
func formatOfflineNotice(servers []string) string {
	switch len(servers) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("MCP server '%s' is currently unavailable.", servers[0])
	default:
		return fmt.Sprintf("MCP servers %s are currently unavailable.", strings.Join(servers, ", "))
	}
}

// truncate bounds text so the assembled prompt stays compact.
func truncate(text string) string {
	stripped := strings.TrimSpace(text)
	runes := []rune(stripped)
	if len(runes) <= previewLimit {
		return stripped
	}
	return strings.TrimRight(string(runes[:previewLimit]), " \t\n\r") + "…"
}

func tryParseJSON(candidate string) interface{} {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return nil
	}
	return value
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		// booleans aggregate as 1/0
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asNumbers(values []interface{}) ([]float64, bool) {
	numbers := make([]float64, 0, len(values))
	for _, v := range values {
		n, ok := asNumber(v)
		if !ok {
			return nil, false
		}
		numbers = append(numbers, n)
	}
	return numbers, true
}

func asObjects(values []interface{}) ([]map[string]interface{}, bool) {
	objects := make([]map[string]interface{}, 0, len(values))
	for _, v := range values {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, false
		}
		objects = append(objects, obj)
	}
	return objects, true
}
