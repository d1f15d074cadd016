package schema

import "strings"

// knownTags are the provider prefixes recognized as already-resolved model
// identifiers and passed through unchanged. Any other leading "x/" segment
// is treated as part of the model name: it goes through aliasing and, if
// still untagged, gets the preferred provider prefix.
var knownTags = map[string]bool{
	"openai":     true,
	"anthropic":  true,
	"nvidia_nim": true,
}

// Aliases is the set of tables Normalize consults: the configured big/small
// targets and an optional set of extra substring aliases.
type Aliases struct {
	BigModel    string
	SmallModel  string
	Preferred   string // "openai", "anthropic", or "nvidia"
	Extra       map[string]string
}

func (a Aliases) preferredTag() string {
	switch a.Preferred {
	case "anthropic":
		return "anthropic"
	case "nvidia":
		return "nvidia_nim"
	default:
		return "openai"
	}
}

// Normalize applies the model-name normalization rules in order: explicit
// provider tags pass through, haiku/sonnet/opus substrings alias to the
// configured small/big targets, extra aliases apply the same way, and an
// untagged result is prefixed with the preferred provider. Normalize is
// idempotent: an already-tagged string is returned unchanged.
func Normalize(model string, a Aliases) string {
	if model == "" {
		return model
	}

	if tag, _, ok := strings.Cut(model, "/"); ok {
		if knownTags[tag] {
			return model
		}
	}

	resolved := model
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "haiku"):
		resolved = a.SmallModel
	case strings.Contains(lower, "sonnet"), strings.Contains(lower, "opus"):
		resolved = a.BigModel
	default:
		for substr, target := range a.Extra {
			if strings.Contains(lower, strings.ToLower(substr)) {
				resolved = target
				break
			}
		}
	}

	if tag, _, ok := strings.Cut(resolved, "/"); ok && knownTags[tag] {
		return resolved
	}

	return a.preferredTag() + "/" + resolved
}
