package schema

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
)

var structValidate = validator.New()

// Validate rejects an empty model, a non-positive max_tokens, a tool
// definition missing a name, and any unknown content-block tag. The first
// three are struct-tag rules enforced by validator; the content-block check
// walks the tagged-union Messages slice by hand since that shape doesn't
// reduce to a struct tag.
func (r *MessageRequest) Validate() error {
	if err := structValidate.Struct(r); err != nil {
		return apierror.New(apierror.KindInvalidRequest, firstValidationMessage(err))
	}

	for i, turn := range r.Messages {
		if !turn.IsBlocks {
			continue
		}
		for j, block := range turn.Blocks {
			if block.Type == BlockUnknown {
				return apierror.New(apierror.KindInvalidRequest,
					fmt.Sprintf("messages[%d].content[%d]: unknown content block type", i, j))
			}
		}
	}
	return nil
}

func firstValidationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
