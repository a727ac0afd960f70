// Package structured analyses raw model output and renders it into
// frontend-ready components.
package structured

// ContentType tags the shape detected in a model response.
type ContentType string

const (
	TypeText     ContentType = "text"
	TypeTable    ContentType = "table"
	TypeList     ContentType = "list"
	TypeImage    ContentType = "image"
	TypeJSON     ContentType = "json"
	TypeChart    ContentType = "chart"
	TypeCode     ContentType = "code"
	TypeHTML     ContentType = "html"
	TypeMarkdown ContentType = "markdown"
)

// Data is the structured extraction attached to an Analysis. Exactly one
// concrete type backs each non-nil value, keeping builder dispatch exhaustive.
type Data interface {
	contentData()
}

// ImageData describes a direct or markdown image reference.
type ImageData struct {
	URL string
	Alt string
}

// TableData holds a parsed markdown table, or one of the two weaker forms:
// a raw HTML table (HTML set) or text that merely resembles a table (Raw set).
type TableData struct {
	Headers []string
	Rows    [][]string
	HTML    string
	Raw     string
}

// ListData holds normalised ordered/unordered list items.
type ListData struct {
	Ordered bool
	Items   []ListItem
}

// ListItem is a single normalised list entry.
type ListItem struct {
	Raw         string
	Title       string
	Description string
	Bullets     []string
	CodeBlocks  []CodeBlock
}

// CodeBlock is a fenced code block extracted from a list item.
type CodeBlock struct {
	Language string
	Code     string
}

// CodeData describes a standalone fenced code block, optionally with its
// body parsed as JSON.
type CodeData struct {
	Language string
	Code     string
	Parsed   interface{}
}

// JSONData wraps a parsed JSON object or array; it backs both JSON and
// CHART analyses.
type JSONData struct {
	Value interface{}
}

func (ImageData) contentData() {}
func (TableData) contentData() {}
func (ListData) contentData()  {}
func (CodeData) contentData()  {}
func (JSONData) contentData()  {}

// Analysis is the immutable classification result for one model response.
type Analysis struct {
	Type ContentType
	Data Data
	Text string
}

// Component is a normalised {type, payload} unit ready for rendering.
type Component struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}
