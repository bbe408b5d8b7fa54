package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"old_api_key":   {},
	"new_api_key":   {},
	"apikey":        {},
	"secret":        {},
	"token":         {},
	"password":      {},
	"authorization": {},
}

// IsSensitive reports whether values stored under key are credentials.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskSecret keeps the key prefix and the last four characters.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskMetadata copies audit metadata, masking string values under sensitive
// keys at any depth. Blank keys are dropped.
func MaskMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskEntry(IsSensitive(key), value)
	}
	return out
}

func maskEntry(sensitive bool, value any) any {
	switch v := value.(type) {
	case string:
		if sensitive {
			return MaskSecret(v)
		}
		return v
	case map[string]any:
		return MaskMetadata(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = maskEntry(sensitive, item)
		}
		return items
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	idx := strings.LastIndex(value, "_")
	if idx == -1 || idx == len(value)-1 {
		return "", value
	}
	return value[:idx+1], value[idx+1:]
}
