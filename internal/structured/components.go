package structured

import (
	"fmt"
	"strings"
)

// BuildComponents translates a classified analysis into the component
// payloads the frontend renders. The result always holds at least one
// component; content that cannot be rendered structurally degrades to a
// plain text component.
func BuildComponents(a Analysis) []Component {
	components := buildComponents(a)
	if len(components) == 0 {
		components = []Component{textComponent(a.Text)}
	}
	return components
}

func buildComponents(a Analysis) []Component {
	switch data := a.Data.(type) {
	case TableData:
		if a.Type == TypeTable {
			if c := tableComponent(data, a.Text); c != nil {
				return []Component{*c}
			}
			return nil
		}
	case ListData:
		if a.Type == TypeList {
			return []Component{listComponent(data, a.Text)}
		}
	case ImageData:
		if a.Type == TypeImage {
			return []Component{imageComponent(data)}
		}
	case CodeData:
		if a.Type == TypeCode {
			return []Component{codeComponent(data, a.Text)}
		}
	case JSONData:
		switch a.Type {
		case TypeChart:
			return []Component{chartComponent(data.Value, a.Text)}
		case TypeJSON:
			return []Component{customComponent(data.Value, a.Text)}
		}
	}

	switch a.Type {
	case TypeHTML:
		return []Component{customComponent(map[string]interface{}{"html": a.Text}, a.Text)}
	case TypeMarkdown, TypeText:
		return []Component{textComponent(a.Text)}
	}
	return nil
}

func textComponent(text string) Component {
	return Component{
		Type: "text",
		Payload: map[string]interface{}{
			"content": strings.TrimSpace(text),
		},
	}
}

func listComponent(data ListData, fallback string) Component {
	var entries []string
	for _, item := range data.Items {
		var parts []string
		if title := strings.TrimSpace(item.Title); title != "" {
			parts = append(parts, title)
		}
		if desc := strings.TrimSpace(item.Description); desc != "" {
			parts = append(parts, desc)
		}
		for _, bullet := range item.Bullets {
			parts = append(parts, "- "+bullet)
		}
		for _, block := range item.CodeBlocks {
			if block.Code != "" {
				parts = append(parts, fmt.Sprintf("```%s\n%s\n```", block.Language, block.Code))
			}
		}
		if len(parts) == 0 {
			if raw := strings.TrimSpace(item.Raw); raw != "" {
				parts = append(parts, raw)
			}
		}
		if entry := strings.TrimSpace(strings.Join(parts, "\n")); entry != "" {
			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 && strings.TrimSpace(fallback) != "" {
		entries = append(entries, strings.TrimSpace(fallback))
	}
	if len(entries) == 0 {
		return textComponent(fallback)
	}
	return Component{Type: "list", Payload: map[string]interface{}{"items": entries}}
}

func tableComponent(data TableData, fallback string) *Component {
	payload := map[string]interface{}{}
	if len(data.Headers) > 0 {
		payload["headers"] = data.Headers
	}
	if len(data.Rows) > 0 {
		payload["rows"] = data.Rows
	}

	// HTML and raw table forms carry no grid the frontend can render.
	if len(payload) == 0 {
		if fallback != "" {
			c := textComponent(fallback)
			return &c
		}
		return nil
	}
	return &Component{Type: "table", Payload: payload}
}

func imageComponent(data ImageData) Component {
	payload := map[string]interface{}{"alt": data.Alt}
	if data.URL != "" {
		payload["url"] = data.URL
	}
	return Component{Type: "image", Payload: payload}
}

func codeComponent(data CodeData, fallback string) Component {
	code := data.Code
	if code == "" {
		code = fallback
	}
	payload := map[string]interface{}{"code": code}
	if data.Language != "" {
		payload["language"] = data.Language
	}
	if data.Parsed != nil {
		payload["data"] = data.Parsed
	}
	return Component{Type: "code", Payload: payload}
}

func chartComponent(spec interface{}, fallback string) Component {
	payload := map[string]interface{}{"data": spec}

	obj, _ := spec.(map[string]interface{})
	chartType, _ := firstTruthy(obj["type"], obj["chartType"], obj["chart_type"]).(string)
	if chartType != "" {
		payload["chart_type"] = chartType
	}
	if labels, ok := obj["labels"].([]interface{}); ok {
		payload["labels"] = labels
	}
	if values, ok := obj["values"].([]interface{}); ok {
		payload["values"] = values
	}

	if section, ok := obj["data"].(map[string]interface{}); ok {
		if _, have := payload["labels"]; !have {
			if labels, ok := section["labels"].([]interface{}); ok {
				payload["labels"] = labels
			}
		}
		// an empty list defers to the alternate key
		datasets, ok := section["datasets"].([]interface{})
		if !ok || len(datasets) == 0 {
			datasets, ok = section["series"].([]interface{})
		}
		if ok && len(datasets) > 0 {
			if first, ok := datasets[0].(map[string]interface{}); ok {
				values, ok := first["data"].([]interface{})
				if !ok || len(values) == 0 {
					values, ok = first["values"].([]interface{})
				}
				if ok {
					if _, have := payload["values"]; !have {
						payload["values"] = values
					}
				}
			}
		}
	}

	if chartType == "" && strings.TrimSpace(fallback) != "" {
		payload["title"] = strings.TrimSpace(fallback)
	}
	return Component{Type: "chart", Payload: payload}
}

func customComponent(data interface{}, fallback string) Component {
	payload := map[string]interface{}{"data": data}
	if strings.TrimSpace(fallback) != "" {
		payload["content"] = strings.TrimSpace(fallback)
	}
	return Component{Type: "custom", Payload: payload}
}
