package feeds

// EnvelopeKeys are checked in order when a payload is an object instead of a list
var EnvelopeKeys = []string{"posts", "results", "data"}

const maxEnvelopeDepth = 3

// Unwrap extracts the raw post list from a decoded JSON payload. A list is
// returned as is. Objects are searched for EnvelopeKeys and the first list or
// object value is unwrapped again, so {"data":{"posts":[...]}} works too. Anything
// else yields an empty list.
func Unwrap(payload any) []any {
	return unwrap(payload, 0)
}

func unwrap(payload any, depth int) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		if depth >= maxEnvelopeDepth {
			break
		}
		for _, key := range EnvelopeKeys {
			// scalars such as "" or false do not hold posts, try the next key
			switch inner := v[key].(type) {
			case []any, map[string]any:
				return unwrap(inner, depth+1)
			}
		}
	}
	return []any{}
}
