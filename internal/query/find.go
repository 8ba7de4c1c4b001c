package query

import (
	"encoding/json"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/errs"
)

// Match is a topic selected by Find.
type Match struct {
	Sheet int    `json:"sheet"`
	Path  string `json:"path"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Depth int    `json:"depth"`
}

// Filter is a compiled boolean expression over topics.
//
// The expression sees every key of the topic's JSON (title, id, labels,
// markers, ...) plus:
//
//	depth        0 for a root topic
//	path         path expression addressing the topic
//	sheet        sheet index
//	sheet_title  sheet title
//	category     relation category under the parent ("" for a root)
//	parent       parent title ("" for a root)
//	child_count  number of direct children across all categories
//
// Unknown names evaluate to nil, so `priority == nil` is a valid test.
type Filter struct {
	expression string
	program    *exprvm.Program
}

// Compile parses expression.
func Compile(expression string) (*Filter, error) {
	if expression == "" {
		return nil, errs.New(errs.KindInvalidExpression, "find", "", "expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidExpression, "find", expression, err)
	}
	return &Filter{expression: expression, program: program}, nil
}

// Match reports whether the topic described by v satisfies the filter.
func (f *Filter) Match(doc *document.Document, v document.Visit) (bool, error) {
	env, err := environment(doc, v)
	if err != nil {
		return false, err
	}
	out, err := exprlang.Run(f.program, env)
	if err != nil {
		return false, errs.Wrap(errs.KindInvalidExpression, "find", f.expression, fmt.Errorf("at %s: %w", v.Path, err))
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Find returns the topics of doc matching expression, depth first.
func Find(doc *document.Document, expression string) ([]Match, error) {
	f, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	var matches []Match
	err = doc.Walk(func(v document.Visit) error {
		ok, err := f.Match(doc, v)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, Match{
				Sheet: v.Sheet,
				Path:  v.Path,
				ID:    v.Topic.ID,
				Title: v.Topic.Title,
				Depth: v.Depth,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func environment(doc *document.Document, v document.Visit) (map[string]any, error) {
	data, err := v.Topic.MarshalJSON()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, "find", v.Path, err)
	}
	env := map[string]any{}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, "find", v.Path, err)
	}

	children := 0
	for _, category := range v.Topic.Children.Categories() {
		list, _ := v.Topic.Children.Get(category)
		children += len(list)
	}
	parent := ""
	if v.Parent != nil {
		parent = v.Parent.Title
	}
	sheetTitle := ""
	if s, ok := doc.Sheet(v.Sheet); ok {
		sheetTitle = s.Title
	}

	env["depth"] = v.Depth
	env["path"] = v.Path
	env["sheet"] = v.Sheet
	env["sheet_title"] = sheetTitle
	env["category"] = v.Category
	env["parent"] = parent
	env["child_count"] = children
	return env, nil
}
