package edit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/errs"
)

// ParseBatch decodes a batch file: a JSON array, comments and trailing
// commas allowed, whose items are titles or topic objects.
//
//	[
//	  "Budget",                        // bare title
//	  {"title": "Hiring", "children": {"attached": [{"title": "Recruiter"}]}},
//	]
func ParseBatch(data []byte) ([]TopicInput, error) {
	const op = "batch"
	var items []json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &items); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, op, "", fmt.Errorf("batch must be an array: %w", err))
	}

	inputs := make([]TopicInput, 0, len(items))
	for i, raw := range items {
		raw = bytes.TrimSpace(raw)
		switch {
		case len(raw) > 0 && raw[0] == '"':
			var title string
			if err := json.Unmarshal(raw, &title); err != nil {
				return nil, errs.Wrap(errs.KindInvalidInput, op, "", fmt.Errorf("item %d: %w", i, err))
			}
			inputs = append(inputs, TopicInput{Title: title})
		case len(raw) > 0 && raw[0] == '{':
			node := &document.Topic{}
			if err := json.Unmarshal(raw, node); err != nil {
				return nil, errs.Wrap(errs.KindInvalidInput, op, "", fmt.Errorf("item %d: %w", i, err))
			}
			inputs = append(inputs, TopicInput{Node: node})
		default:
			return nil, errs.New(errs.KindInvalidInput, op, "", "item %d: want a title or a topic object, got %s", i, raw)
		}
	}
	return inputs, nil
}

// Titles turns plain titles into batch items.
func Titles(titles ...string) []TopicInput {
	inputs := make([]TopicInput, len(titles))
	for i, t := range titles {
		inputs[i] = TopicInput{Title: t}
	}
	return inputs
}
