package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// Model-provided arguments arrive as loosely-typed JSON. Numbers may
// come as float64, json.Number-style strings, or integers depending on
// the provider, so the accessors coerce.

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func floatArg(args map[string]any, key string) (float64, bool) {
	if args == nil {
		return 0, false
	}
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func intArg(args map[string]any, key string) (int, bool) {
	f, ok := floatArg(args, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func requireString(args map[string]any, key string) (string, error) {
	v := stringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}
