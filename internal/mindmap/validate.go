package mindmap

import (
	"fmt"

	"github.com/agentic-research/xmindctl/internal/document"
)

// ValidationError is one structural problem in a document.
type ValidationError struct {
	// Path addresses the offending node.
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Problems returns every structural problem found in doc: sheets without a
// root topic, empty topic ids and ids used more than once.
func Problems(doc *document.Document) []ValidationError {
	var problems []ValidationError
	seen := make(map[string]string) // id -> path of first use

	use := func(id, path string) {
		if id == "" {
			problems = append(problems, ValidationError{Path: path, Message: "empty id"})
			return
		}
		if first, dup := seen[id]; dup {
			problems = append(problems, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("id %q already used by %s", id, first),
			})
			return
		}
		seen[id] = path
	}

	for i, s := range doc.Sheets {
		path := fmt.Sprintf("sheet[%d]", i)
		if s.RootTopic == nil {
			problems = append(problems, ValidationError{Path: path, Message: "no root topic"})
		}
		if s.ID != "" {
			use(s.ID, path)
		}
		if s.Style != nil && s.Style.ID != "" {
			use(s.Style.ID, path+".style")
		}
	}
	_ = doc.Walk(func(v document.Visit) error {
		use(v.Topic.ID, v.Path)
		return nil
	})
	return problems
}

// Validate returns the first problem in doc that is not listed in baseline.
// Documents saved by other tools may already carry problems; a baseline taken
// before an edit keeps those from blocking the write.
func Validate(doc *document.Document, baseline []ValidationError) error {
	known := make(map[ValidationError]bool, len(baseline))
	for _, p := range baseline {
		known[p] = true
	}
	for _, p := range Problems(doc) {
		if !known[p] {
			return &p
		}
	}
	return nil
}
