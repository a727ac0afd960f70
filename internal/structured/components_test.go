package structured

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildComponentsEmptyContent(t *testing.T) {
	components := BuildComponents(Classify(""))
	require.Len(t, components, 1)
	require.Equal(t, "text", components[0].Type)
	require.Equal(t, "", components[0].Payload["content"])
}

func TestBuildComponentsPlainText(t *testing.T) {
	components := BuildComponents(Classify("  hello there  "))
	require.Len(t, components, 1)
	require.Equal(t, "text", components[0].Type)
	require.Equal(t, "hello there", components[0].Payload["content"])
}

func TestBuildComponentsTable(t *testing.T) {
	content := "| Name | Age |\n| --- | --- |\n| Ada | 36 |"
	components := BuildComponents(Classify(content))
	require.Len(t, components, 1)
	require.Equal(t, "table", components[0].Type)
	require.Equal(t, []string{"Name", "Age"}, components[0].Payload["headers"])
	require.Equal(t, [][]string{{"Ada", "36"}}, components[0].Payload["rows"])
}

func TestBuildComponentsHTMLTableFallsBackToText(t *testing.T) {
	content := "<table><tr><td>x</td></tr></table>"
	components := BuildComponents(Classify(content))
	require.Len(t, components, 1)
	require.Equal(t, "text", components[0].Type)
	require.Equal(t, content, components[0].Payload["content"])
}

func TestBuildComponentsList(t *testing.T) {
	content := "- **Speed**: runs fast\n- **Safety**: checked at compile time"
	components := BuildComponents(Classify(content))
	require.Len(t, components, 1)
	require.Equal(t, "list", components[0].Type)

	items := components[0].Payload["items"].([]string)
	require.Equal(t, []string{
		"Speed\nruns fast",
		"Safety\nchecked at compile time",
	}, items)
}

func TestBuildComponentsListItemWithBulletsAndCode(t *testing.T) {
	a := Analysis{
		Type: TypeList,
		Data: ListData{Items: []ListItem{{
			Raw:         "ignored when parts exist",
			Title:       "Setup",
			Description: "do this first",
			Bullets:     []string{"install", "configure"},
			CodeBlocks:  []CodeBlock{{Language: "bash", Code: "make run"}},
		}}},
		Text: "whatever",
	}
	components := BuildComponents(a)
	require.Len(t, components, 1)

	items := components[0].Payload["items"].([]string)
	require.Len(t, items, 1)
	require.Equal(t, "Setup\ndo this first\n- install\n- configure\n```bash\nmake run\n```", items[0])
}

func TestBuildComponentsListFallsBackToRaw(t *testing.T) {
	a := Analysis{
		Type: TypeList,
		Data: ListData{Items: []ListItem{{Raw: "  bare entry  "}}},
		Text: "original",
	}
	components := BuildComponents(a)
	items := components[0].Payload["items"].([]string)
	require.Equal(t, []string{"bare entry"}, items)
}

func TestBuildComponentsEmptyListUsesFallbackText(t *testing.T) {
	a := Analysis{Type: TypeList, Data: ListData{}, Text: "some text"}
	components := BuildComponents(a)
	require.Equal(t, "list", components[0].Type)
	require.Equal(t, []string{"some text"}, components[0].Payload["items"].([]string))

	a = Analysis{Type: TypeList, Data: ListData{}, Text: "   "}
	components = BuildComponents(a)
	require.Equal(t, "text", components[0].Type)
}

func TestBuildComponentsImage(t *testing.T) {
	components := BuildComponents(Classify("![logo](https://example.com/logo.png)"))
	require.Len(t, components, 1)
	require.Equal(t, "image", components[0].Type)
	require.Equal(t, "https://example.com/logo.png", components[0].Payload["url"])
	require.Equal(t, "logo", components[0].Payload["alt"])
}

func TestBuildComponentsImageWithoutAlt(t *testing.T) {
	components := BuildComponents(Classify("https://example.com/plot.png"))
	require.Equal(t, "image", components[0].Type)
	require.Equal(t, "", components[0].Payload["alt"])
}

func TestBuildComponentsCode(t *testing.T) {
	components := BuildComponents(Classify("```go\nfunc main() {}\n```"))
	require.Len(t, components, 1)
	require.Equal(t, "code", components[0].Type)
	require.Equal(t, "func main() {}", components[0].Payload["code"])
	require.Equal(t, "go", components[0].Payload["language"])
	require.NotContains(t, components[0].Payload, "data")
}

func TestBuildComponentsCodeCarriesParsedData(t *testing.T) {
	components := BuildComponents(Classify("```json\n{\"k\": 1}\n```"))
	require.Equal(t, "code", components[0].Type)

	parsed := components[0].Payload["data"].(map[string]interface{})
	require.Equal(t, float64(1), parsed["k"])
}

func TestBuildComponentsChart(t *testing.T) {
	content := `{"type":"bar","data":{"labels":["a","b"],"datasets":[{"data":[1,2]}]}}`
	components := BuildComponents(Classify(content))
	require.Len(t, components, 1)
	require.Equal(t, "chart", components[0].Type)

	payload := components[0].Payload
	require.Equal(t, "bar", payload["chart_type"])
	require.Equal(t, []interface{}{"a", "b"}, payload["labels"])
	require.Equal(t, []interface{}{float64(1), float64(2)}, payload["values"])
	require.NotNil(t, payload["data"])
	require.NotContains(t, payload, "title")
}

func TestBuildComponentsChartEmptyDatasetsDeferToSeries(t *testing.T) {
	content := `{"type":"bar","data":{"datasets":[],"series":[{"data":[9]}]}}`
	components := BuildComponents(Classify(content))
	require.Equal(t, "chart", components[0].Type)
	require.Equal(t, []interface{}{float64(9)}, components[0].Payload["values"])
}

func TestBuildComponentsChartEmptyDataDefersToValues(t *testing.T) {
	content := `{"type":"line","data":{"datasets":[{"data":[],"values":[7,8]}]}}`
	components := BuildComponents(Classify(content))
	require.Equal(t, "chart", components[0].Type)
	require.Equal(t, []interface{}{float64(7), float64(8)}, components[0].Payload["values"])
}

func TestBuildComponentsChartWithoutTypeGetsTitle(t *testing.T) {
	content := `{"series": [{"values": [3, 4]}]}`
	components := BuildComponents(Classify(content))
	require.Equal(t, "chart", components[0].Type)

	payload := components[0].Payload
	require.NotContains(t, payload, "chart_type")
	require.Equal(t, content, payload["title"])
}

func TestBuildComponentsJSON(t *testing.T) {
	content := `{"name": "ada"}`
	components := BuildComponents(Classify(content))
	require.Len(t, components, 1)
	require.Equal(t, "custom", components[0].Type)

	data := components[0].Payload["data"].(map[string]interface{})
	require.Equal(t, "ada", data["name"])
	require.Equal(t, content, components[0].Payload["content"])
}

func TestBuildComponentsHTML(t *testing.T) {
	content := "<div>hello</div>"
	components := BuildComponents(Classify(content))
	require.Equal(t, "custom", components[0].Type)

	data := components[0].Payload["data"].(map[string]interface{})
	require.Equal(t, content, data["html"])
}

func TestBuildComponentsAlwaysReturnsAtLeastOne(t *testing.T) {
	for _, content := range []string{"", "plain", "# md", "<p>x</p>", "1. a\n2. b"} {
		require.NotEmpty(t, BuildComponents(Classify(content)), "content=%q", content)
	}
}
