package mcpcontext

import "github.com/mark3labs/mcp-go/mcp"

// BuildArguments derives a tool-call argument map from the prompt and the
// tool's input schema. Enum properties take their first listed value, string
// properties take the whole prompt, and string arrays take a one-element
// array holding the prompt (or the item enum's first value). Optional
// properties that cannot be filled are omitted; a required property that
// cannot be filled declines the call entirely.
func BuildArguments(schema mcp.ToolInputSchema, prompt string) (map[string]interface{}, bool) {
	if len(schema.Properties) == 0 {
		return map[string]interface{}{}, true
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	arguments := make(map[string]interface{})
	for name, raw := range schema.Properties {
		value, ok := fillProperty(raw, prompt)
		if ok {
			arguments[name] = value
			continue
		}
		if required[name] {
			return nil, false
		}
	}
	return arguments, true
}

func fillProperty(raw interface{}, prompt string) (interface{}, bool) {
	prop, ok := raw.(map[string]interface{})
	if !ok {
		return nil, false
	}

	if enum, ok := prop["enum"].([]interface{}); ok && len(enum) > 0 {
		return enum[0], true
	}

	propType, _ := prop["type"].(string)
	switch propType {
	case "string":
		return prompt, true
	case "array":
		items, _ := prop["items"].(map[string]interface{})
		if enum, ok := items["enum"].([]interface{}); ok && len(enum) > 0 {
			return []interface{}{enum[0]}, true
		}
		if itemType, _ := items["type"].(string); itemType == "string" {
			return []interface{}{prompt}, true
		}
	}
	return nil, false
}
