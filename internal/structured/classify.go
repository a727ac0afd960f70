package structured

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Classify inspects raw model output and assigns a content type with an
// optional structured extraction. Detection order is significant: the first
// matching heuristic wins, so e.g. a table inside a code fence is reported
// as a table.
func Classify(content string) Analysis {
	stripped := strings.TrimSpace(content)
	if stripped == "" {
		return Analysis{Type: TypeText, Text: content}
	}

	for _, detect := range detectors {
		if a, ok := detect(stripped, content); ok {
			return a
		}
	}

	return Analysis{Type: TypeText, Text: content}
}

// detector inspects stripped content (and the original text) and reports a
// match. Evaluated in order; first match wins.
type detector func(stripped, original string) (Analysis, bool)

var detectors = []detector{
	detectImage,
	detectTable,
	detectList,
	detectJSONOrChart,
	detectCode,
	detectHTML,
	detectMarkdown,
}

var (
	directImageRe = regexp.MustCompile(`(?i)^https?://\S+\.(png|jpe?g|gif|webp|svg)$`)
	mdImageRe     = regexp.MustCompile(`^!\[([^\]]*)\]\((https?://[^\s)]+)\)$`)
	imageExtRe    = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|svg)$`)

	tableSeparatorRe = regexp.MustCompile(`^\|?\s*:?-{3,}`)

	orderedMarkerRe   = regexp.MustCompile(`^(\d+)[.)]\s+(.*)`)
	unorderedMarkerRe = regexp.MustCompile(`^[-*+]\s+(.*)`)
	anyMarkerRe       = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+(.*)`)
	headingRe         = regexp.MustCompile(`^#{1,6}\s`)

	fencedBlockRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")
	itemTitleRe   = regexp.MustCompile(`(?s)^\*\*(.+?)\*\*:?\s*(.*)`)
	itemBulletRe  = regexp.MustCompile(`^-\s+(.*)`)

	openTagRe    = regexp.MustCompile(`<[^>]+>`)
	closeTagRe   = regexp.MustCompile(`</[^>]+>`)
	inlineLinkRe = regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`)
)

func detectImage(stripped, original string) (Analysis, bool) {
	if directImageRe.MatchString(stripped) {
		return Analysis{Type: TypeImage, Data: ImageData{URL: stripped}, Text: original}, true
	}
	if m := mdImageRe.FindStringSubmatch(stripped); m != nil && imageExtRe.MatchString(m[2]) {
		return Analysis{
			Type: TypeImage,
			Data: ImageData{URL: strings.TrimSpace(m[2]), Alt: strings.TrimSpace(m[1])},
			Text: original,
		}, true
	}
	return Analysis{}, false
}

func detectTable(stripped, original string) (Analysis, bool) {
	if table := parseTable(stripped); table != nil {
		return Analysis{Type: TypeTable, Data: *table, Text: original}, true
	}
	return Analysis{}, false
}

func detectList(stripped, original string) (Analysis, bool) {
	if list := parseList(stripped); list != nil {
		return Analysis{Type: TypeList, Data: *list, Text: original}, true
	}
	return Analysis{}, false
}

func detectJSONOrChart(stripped, original string) (Analysis, bool) {
	value, ok := parseJSONValue(stripped)
	if !ok {
		return Analysis{}, false
	}
	if looksLikeChartSpec(value) {
		return Analysis{Type: TypeChart, Data: JSONData{Value: value}, Text: original}, true
	}
	return Analysis{Type: TypeJSON, Data: JSONData{Value: value}, Text: original}, true
}

func detectCode(stripped, original string) (Analysis, bool) {
	if code := parseCodeBlock(original); code != nil {
		return Analysis{Type: TypeCode, Data: *code, Text: original}, true
	}
	return Analysis{}, false
}

func detectHTML(stripped, original string) (Analysis, bool) {
	if openTagRe.MatchString(stripped) && closeTagRe.MatchString(stripped) {
		return Analysis{Type: TypeHTML, Text: original}, true
	}
	return Analysis{}, false
}

func detectMarkdown(stripped, original string) (Analysis, bool) {
	if looksLikeMarkdown(stripped) {
		return Analysis{Type: TypeMarkdown, Text: original}, true
	}
	return Analysis{}, false
}

// parseTable attempts markdown, HTML, and weak "looks like a table" forms,
// in that order.
func parseTable(content string) *TableData {
	if table := parseMarkdownTable(content); table != nil {
		return table
	}
	lowered := strings.ToLower(content)
	if strings.Contains(lowered, "<table") && strings.Contains(lowered, "</table>") {
		return &TableData{HTML: content}
	}
	if looksLikeTable(content) {
		return &TableData{Raw: content}
	}
	return nil
}

// parseMarkdownTable scans for a header line followed by a separator line.
// Rows with a cell count differing from the header are skipped, not fatal;
// the first non-pipe line terminates the table.
func parseMarkdownTable(content string) *TableData {
	lines := nonBlankLines(content)
	if len(lines) < 2 {
		return nil
	}

	for idx := 0; idx < len(lines)-1; idx++ {
		headerLine := lines[idx]
		separatorLine := lines[idx+1]
		if !strings.Contains(headerLine, "|") {
			continue
		}
		if !tableSeparatorRe.MatchString(separatorLine) {
			continue
		}

		headers := splitTableCells(headerLine)
		var rows [][]string
		for _, rowLine := range lines[idx+2:] {
			if !strings.Contains(rowLine, "|") {
				break
			}
			cells := splitTableCells(rowLine)
			if len(cells) != len(headers) {
				continue
			}
			rows = append(rows, cells)
		}

		if len(rows) > 0 {
			return &TableData{Headers: headers, Rows: rows}
		}
	}
	return nil
}

func splitTableCells(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// looksLikeTable reports whether the content resembles a table without
// necessarily parsing into one.
func looksLikeTable(content string) bool {
	lowered := strings.ToLower(content)
	if strings.Contains(lowered, "<table") && strings.Contains(lowered, "</table>") {
		return true
	}
	lines := nonBlankLines(content)
	for idx := 0; idx < len(lines)-1; idx++ {
		if strings.Count(lines[idx], "|") >= 2 && tableSeparatorRe.MatchString(lines[idx+1]) {
			return true
		}
	}
	return false
}

// parseList detects ordered lists first, then unordered ones.
func parseList(content string) *ListData {
	if items := parseMarkerList(content, orderedMarkerRe, 2); len(items) > 0 {
		return &ListData{Ordered: true, Items: normaliseListItems(items)}
	}
	if items := parseMarkerList(content, unorderedMarkerRe, 1); len(items) > 0 {
		return &ListData{Ordered: false, Items: normaliseListItems(items)}
	}
	return nil
}

// parseMarkerList collects items introduced by markerRe (whose text is in
// capture group textGroup). Continuation lines are appended to the current
// item; blank lines are preserved as separators inside an item; a heading
// flushes the current item; a marker of the other list style folds into the
// current item as a "- " sub-bullet rather than opening a new item.
func parseMarkerList(content string, markerRe *regexp.Regexp, textGroup int) []string {
	var items []string
	var current []string
	open := false

	flush := func() {
		if open {
			items = append(items, strings.TrimSpace(strings.Join(current, "\n")))
		}
		current = nil
		open = false
	}

	for _, rawLine := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(rawLine)
		if stripped == "" {
			if open {
				current = append(current, "")
			}
			continue
		}

		if m := markerRe.FindStringSubmatch(stripped); m != nil {
			flush()
			current = []string{strings.TrimSpace(m[textGroup])}
			open = true
			continue
		}

		if !open {
			continue
		}

		if headingRe.MatchString(stripped) {
			flush()
			continue
		}
		if m := anyMarkerRe.FindStringSubmatch(stripped); m != nil {
			current = append(current, "- "+strings.TrimSpace(m[1]))
			continue
		}
		current = append(current, stripped)
	}
	flush()

	out := items[:0]
	for _, item := range items {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normaliseListItems converts raw markdown list entries into structured items:
// fenced code blocks are pulled out first, then a leading "**Title**:" is
// split off, then inline "- " bullets are separated from the description.
func normaliseListItems(items []string) []ListItem {
	normalised := make([]ListItem, 0, len(items))
	for _, raw := range items {
		body, codeBlocks := extractCodeBlocks(raw)

		title := ""
		description := strings.TrimSpace(body)
		if m := itemTitleRe.FindStringSubmatch(description); m != nil {
			title = strings.TrimSpace(m[1])
			description = strings.TrimSpace(m[2])
		}

		var bullets []string
		var remaining []string
		for _, line := range strings.Split(description, "\n") {
			stripped := strings.TrimSpace(line)
			if m := itemBulletRe.FindStringSubmatch(stripped); m != nil {
				bullets = append(bullets, strings.TrimSpace(m[1]))
			} else {
				remaining = append(remaining, line)
			}
		}

		var kept []string
		for _, line := range remaining {
			if strings.TrimSpace(line) != "" {
				kept = append(kept, line)
			}
		}

		normalised = append(normalised, ListItem{
			Raw:         raw,
			Title:       title,
			Description: strings.TrimSpace(strings.Join(kept, "\n")),
			Bullets:     bullets,
			CodeBlocks:  codeBlocks,
		})
	}
	return normalised
}

// extractCodeBlocks removes fenced blocks from the text, returning them as
// {language, code} entries. Language defaults to "text".
func extractCodeBlocks(text string) (string, []CodeBlock) {
	var blocks []CodeBlock
	cleaned := fencedBlockRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := fencedBlockRe.FindStringSubmatch(match)
		language := strings.TrimSpace(sub[1])
		if language == "" {
			language = "text"
		}
		blocks = append(blocks, CodeBlock{Language: language, Code: strings.TrimSpace(sub[2])})
		return ""
	})
	return strings.TrimSpace(cleaned), blocks
}

// parseCodeBlock extracts the first fenced block anywhere in the content.
func parseCodeBlock(content string) *CodeData {
	m := fencedBlockRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	language := strings.TrimSpace(m[1])
	if language == "" {
		language = "text"
	}
	code := strings.TrimSpace(m[2])

	data := &CodeData{Language: language, Code: code}
	switch strings.ToLower(language) {
	case "json", "javascript":
		if parsed, ok := parseJSONValue(code); ok {
			data.Parsed = parsed
		} else if parsed, ok := parseJSONValue(strings.Trim(code, "`;")); ok {
			data.Parsed = parsed
		}
	}
	return data
}

// parseJSONValue parses strict JSON, then falls back to a Python-literal
// rewrite. Only top-level objects and arrays are accepted.
func parseJSONValue(content string) (interface{}, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		rewritten, ok := pythonLiteralToJSON(trimmed)
		if !ok {
			return nil, false
		}
		if err := json.Unmarshal([]byte(rewritten), &value); err != nil {
			return nil, false
		}
	}

	switch value.(type) {
	case map[string]interface{}, []interface{}:
		return value, true
	}
	return nil, false
}

// looksLikeChartSpec heuristically determines whether a parsed JSON value
// resembles a chart specification. Intentionally loose: plain analytics JSON
// can be classified as a chart; key presence is the documented behaviour.
func looksLikeChartSpec(value interface{}) bool {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return false
	}

	chartType := firstTruthy(obj["type"], obj["chartType"])
	data := firstTruthy(obj["data"], obj["datasets"], obj["series"])
	if s, ok := chartType.(string); ok && s != "" && truthy(data) {
		return true
	}

	if _, hasMark := obj["mark"]; hasMark {
		if _, hasEncoding := obj["encoding"]; hasEncoding {
			return true
		}
	}

	for _, key := range []string{"datasets", "series", "axes", "scales"} {
		if _, present := obj[key]; present {
			return true
		}
	}

	return false
}

func looksLikeMarkdown(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		for _, prefix := range []string{"# ", "## ", "### ", "- ", "* ", "> ", "1. "} {
			if strings.HasPrefix(stripped, prefix) {
				return true
			}
		}
	}
	if inlineLinkRe.MatchString(content) {
		return true
	}
	return strings.Contains(content, "```")
}

func nonBlankLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// firstTruthy mirrors Python's "a or b" chaining over heterogeneous values.
func firstTruthy(values ...interface{}) interface{} {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
