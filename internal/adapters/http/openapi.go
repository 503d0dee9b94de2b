package http

import (
	"embed"
	"encoding/json"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML embed.FS

var (
	openAPIJSON     []byte
	openAPIJSONOnce sync.Once
	openAPIJSONErr  error
	openAPIVersion  = "dev"
)

// SetAPIVersion sets info.version of the served OpenAPI document. It must
// be called before the first request.
func SetAPIVersion(v string) {
	if v != "" {
		openAPIVersion = v
	}
}

// getOpenAPIJSON returns the OpenAPI specification as JSON.
// The YAML is converted on first access and cached.
func getOpenAPIJSON() ([]byte, error) {
	openAPIJSONOnce.Do(func() {
		openAPIJSON, openAPIJSONErr = convertOpenAPIToJSON()
	})
	return openAPIJSON, openAPIJSONErr
}

func convertOpenAPIToJSON() ([]byte, error) {
	yamlData, err := openAPIYAML.ReadFile("openapi.yaml")
	if err != nil {
		return nil, err
	}

	var spec map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &spec); err != nil {
		return nil, err
	}

	doc, _ := convertYAMLToJSON(spec).(map[string]interface{})
	if info, ok := doc["info"].(map[string]interface{}); ok {
		info["version"] = openAPIVersion
	}

	return json.MarshalIndent(doc, "", "  ")
}

// convertYAMLToJSON recursively converts YAML map keys to strings, as
// nested mappings may decode with interface{} keys.
func convertYAMLToJSON(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = convertYAMLToJSON(value)
		}
		return result
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if strKey, ok := key.(string); ok {
				result[strKey] = convertYAMLToJSON(value)
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, value := range v {
			result[i] = convertYAMLToJSON(value)
		}
		return result
	default:
		return v
	}
}
