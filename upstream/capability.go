package upstream

import "strings"

// SupportsFunctionCalling is the model-capability predicate the rest of the
// proxy treats as an external collaborator: given an effective, normalized
// model identifier, report whether that model accepts a tool catalog at
// all. Real deployments would back this with a maintained capability table;
// this default assumes every OpenAI and Anthropic-native model supports
// function calling and only excludes NVIDIA NIM models known not to.
func SupportsFunctionCalling(effectiveModel string) bool {
	if strings.HasPrefix(effectiveModel, "nvidia_nim/") {
		rest := strings.TrimPrefix(effectiveModel, "nvidia_nim/")
		return !knownNoToolSupport[rest]
	}
	return true
}

var knownNoToolSupport = map[string]bool{
	"meta/llama3-8b":  true,
	"meta/llama3-70b": true,
}
