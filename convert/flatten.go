package convert

import (
	"strings"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// maxTokensCeilingOpenAIFamily is the hard ceiling OpenAI-compatible
// upstreams enforce on max_tokens.
const maxTokensCeilingOpenAIFamily = 16384

// imagePlaceholder replaces an image block's content for upstreams that
// cannot accept structured image content.
const imagePlaceholder = "[Image content not supported in this context]"

// Flatten reduces a run of contiguous text/image content blocks to a single
// string: images become a placeholder, the transformed blocks are joined
// with single spaces and the result trimmed, and an empty result becomes
// the literal "..." (OpenAI-family endpoints reject empty content).
func Flatten(blocks []schema.Content) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case schema.BlockText:
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case schema.BlockImage:
			parts = append(parts, imagePlaceholder)
		}
	}
	joined := strings.TrimSpace(strings.Join(parts, " "))
	if joined == "" {
		return "..."
	}
	return joined
}
