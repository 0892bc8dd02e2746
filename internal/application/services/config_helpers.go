package services

import (
	"fmt"

	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// Helpers for reading workflow trigger, condition and action configs, which
// arrive as decoded JSON (numbers are float64, arrays are []interface{}).

// GetConfigString safely extracts a string value from a config map.
// It returns an empty string if the key does not exist or the value is not a string.
func GetConfigString(config map[string]interface{}, key string) string {
	if val, ok := config[key].(string); ok {
		return val
	}
	return ""
}

// GetConfigStringRequired extracts a string value and returns an error if missing or empty.
func GetConfigStringRequired(config map[string]interface{}, key string) (string, error) {
	val := GetConfigString(config, key)
	if val == "" {
		return "", fmt.Errorf("missing required config key: %s", key)
	}
	return val, nil
}

// GetConfigNumber extracts a numeric value. Numeric strings are accepted.
func GetConfigNumber(config map[string]interface{}, key string) (float64, bool) {
	return utils.ToFloat(config[key])
}

// GetConfigInt extracts a number and truncates it, or returns def
func GetConfigInt(config map[string]interface{}, key string, def int) int {
	if f, ok := GetConfigNumber(config, key); ok {
		return int(f)
	}
	return def
}

// GetConfigStrings extracts a list of strings. ok is false when the key is absent
// or not a list; non-string items are skipped.
func GetConfigStrings(config map[string]interface{}, key string) ([]string, bool) {
	switch v := config[key].(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// GetConfigMap extracts a nested map[string]interface{} from a config map.
func GetConfigMap(config map[string]interface{}, key string) (map[string]interface{}, bool) {
	if val, ok := config[key].(map[string]interface{}); ok {
		return val, true
	}
	return nil, false
}
