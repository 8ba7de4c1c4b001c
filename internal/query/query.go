// Package query answers read-only questions about a document: JSONPath
// selections over its raw JSON and expression filters over its topics.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/errs"
)

// JSONPath evaluates a full JSONPath selector against the document's JSON
// and returns copies of the selected values. Unlike pathexpr it supports the
// whole JSONPath language, but its results cannot be edited.
func JSONPath(doc *document.Document, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidExpression, "query", selector, fmt.Errorf("invalid jsonpath: %w", err))
	}
	root, err := generic(doc)
	if err != nil {
		return nil, err
	}
	return x.Get(root), nil
}

// generic decodes the document into maps and slices.
func generic(doc *document.Document) (any, error) {
	data, err := doc.Marshal()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, "encode", "", err)
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, "decode", "", err)
	}
	return root, nil
}
