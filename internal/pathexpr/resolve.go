package pathexpr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/errs"
)

// Kind says what a Handle points at.
type Kind uint8

const (
	KindDocument Kind = iota
	KindSheet
	KindTopic
	KindChildren
	KindTopicList
	KindStyle
	KindProperties
	KindValue
)

var kindNames = [...]string{"document", "sheet", "topic", "children", "topic list", "style", "properties", "value"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Handle is a live reference into a document. Mutating Sheet, Topic,
// Children or Style through a handle mutates the document. Value is a
// decoded copy and is read-only.
type Handle struct {
	Kind Kind
	// Path is the canonical expression addressing this node.
	Path string

	Document *document.Document
	Sheet    *document.Sheet // owning sheet, set below the sheet list
	Topic    *document.Topic
	Children *document.Children
	Category string // for KindTopicList
	Style    *document.Style
	Value    any
}

// Resolve evaluates p against doc. An empty result is not an error.
func (p *Path) Resolve(doc *document.Document) []Handle {
	root := Handle{Kind: KindDocument, Path: "sheet", Document: doc}
	return evaluate(p.steps, []Handle{root})
}

// Resolve compiles expr and evaluates it against doc.
func Resolve(doc *document.Document, expr string) ([]Handle, error) {
	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return p.Resolve(doc), nil
}

func evaluate(steps []step, in []Handle) []Handle {
	cur := in
	for _, s := range steps {
		var next []Handle
		for _, h := range cur {
			next = append(next, apply(s, h)...)
		}
		cur = next
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

func apply(s step, h Handle) []Handle {
	switch s.kind {
	case stepField:
		if c, ok := h.field(s.name); ok {
			return []Handle{c}
		}
	case stepIndex:
		elems := h.elements()
		i := s.index
		if i < 0 {
			i += len(elems)
		}
		if i >= 0 && i < len(elems) {
			return []Handle{elems[i]}
		}
	case stepWildcard:
		return h.elements()
	case stepDescend:
		return h.descendants()
	case stepFilter:
		if !h.isList() {
			if s.pred.match(h) {
				return []Handle{h}
			}
			return nil
		}
		var out []Handle
		for _, e := range h.elements() {
			if s.pred.match(e) {
				out = append(out, e)
			}
		}
		return out
	}
	return nil
}

func (h Handle) isList() bool {
	switch h.Kind {
	case KindDocument, KindTopicList:
		return true
	case KindValue:
		_, ok := h.Value.([]any)
		return ok
	}
	return false
}

func (h Handle) sheetHandle(i int, s *document.Sheet) Handle {
	return Handle{Kind: KindSheet, Path: fmt.Sprintf("sheet[%d]", i), Document: h.Document, Sheet: s}
}

func (h Handle) topicHandle(path string, t *document.Topic) Handle {
	return Handle{Kind: KindTopic, Path: path, Document: h.Document, Sheet: h.Sheet, Topic: t}
}

func (h Handle) valueHandle(path string, v any) Handle {
	return Handle{Kind: KindValue, Path: path, Document: h.Document, Sheet: h.Sheet, Value: v}
}

func (h Handle) field(name string) (Handle, bool) {
	path := h.Path + document.FieldSelector(name)
	switch h.Kind {
	case KindSheet:
		switch name {
		case "rootTopic":
			if h.Sheet.RootTopic == nil {
				return Handle{}, false
			}
			return h.topicHandle(path, h.Sheet.RootTopic), true
		case "style":
			if h.Sheet.Style == nil {
				return Handle{}, false
			}
			return Handle{Kind: KindStyle, Path: path, Document: h.Document, Sheet: h.Sheet, Style: h.Sheet.Style}, true
		}
		if v, ok := h.Sheet.Field(name); ok {
			return h.valueHandle(path, v), true
		}
	case KindTopic:
		if name == "children" {
			if h.Topic.Children == nil {
				return Handle{}, false
			}
			return Handle{Kind: KindChildren, Path: path, Document: h.Document, Sheet: h.Sheet, Topic: h.Topic, Children: h.Topic.Children}, true
		}
		if v, ok := h.Topic.Field(name); ok {
			return h.valueHandle(path, v), true
		}
	case KindChildren:
		if _, ok := h.Children.Get(name); ok {
			c := h
			c.Kind = KindTopicList
			c.Path = path
			c.Category = name
			return c, true
		}
	case KindStyle:
		if name == "properties" {
			if h.Style.Properties == nil {
				return Handle{}, false
			}
			c := h
			c.Kind = KindProperties
			c.Path = path
			return c, true
		}
		if v, ok := h.Style.Field(name); ok {
			return h.valueHandle(path, v), true
		}
	case KindProperties:
		raw, ok := h.Style.Properties.Get(name)
		if !ok {
			return Handle{}, false
		}
		return h.valueHandle(path, decode(raw)), true
	case KindValue:
		if m, ok := h.Value.(map[string]any); ok {
			if v, ok := m[name]; ok {
				return h.valueHandle(path, v), true
			}
		}
	}
	return Handle{}, false
}

func (h Handle) elements() []Handle {
	var out []Handle
	switch h.Kind {
	case KindDocument:
		for i, s := range h.Document.Sheets {
			out = append(out, h.sheetHandle(i, s))
		}
	case KindTopicList:
		list, _ := h.Children.Get(h.Category)
		for i, t := range list {
			out = append(out, h.topicHandle(fmt.Sprintf("%s[%d]", h.Path, i), t))
		}
	case KindChildren:
		for _, category := range h.Children.Categories() {
			c, _ := h.field(category)
			out = append(out, c)
		}
	case KindProperties:
		for p := h.Style.Properties.Oldest(); p != nil; p = p.Next() {
			out = append(out, h.valueHandle(h.Path+document.FieldSelector(p.Key), decode(p.Value)))
		}
	case KindValue:
		switch v := h.Value.(type) {
		case []any:
			for i, e := range v {
				out = append(out, h.valueHandle(fmt.Sprintf("%s[%d]", h.Path, i), e))
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out = append(out, h.valueHandle(h.Path+document.FieldSelector(k), v[k]))
			}
		}
	}
	return out
}

// descendants returns every topic at or below h, depth first.
func (h Handle) descendants() []Handle {
	var out []Handle
	switch h.Kind {
	case KindDocument:
		for _, s := range h.elements() {
			out = append(out, s.descendants()...)
		}
	case KindSheet:
		if root, ok := h.field("rootTopic"); ok {
			out = root.descendants()
		}
	case KindTopic:
		out = append(out, h)
		if c, ok := h.field("children"); ok {
			out = append(out, c.descendants()...)
		}
	case KindChildren, KindTopicList:
		for _, e := range h.elements() {
			out = append(out, e.descendants()...)
		}
	}
	return out
}

func decode(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func (p *predicate) match(h Handle) bool {
	results := evaluate(p.path, []Handle{h})
	if p.op == "" {
		return len(results) > 0
	}
	var compared, equal bool
	for _, r := range results {
		if r.Kind != KindValue {
			continue
		}
		compared = true
		if sameValue(r.Value, p.value) {
			equal = true
		}
	}
	if p.op == "==" {
		return equal
	}
	return compared && !equal
}

func sameValue(a, b any) bool {
	switch bv := b.(type) {
	case nil:
		return a == nil
	case string:
		av, ok := a.(string)
		return ok && av == bv
	case bool:
		av, ok := a.(bool)
		return ok && av == bv
	case float64:
		av, ok := a.(float64)
		return ok && av == bv
	}
	return false
}

// Resolver picks one node out of a resolution.
type Resolver struct {
	Logger *slog.Logger
	// Strict rejects expressions matching more than one node instead of
	// using the first match.
	Strict bool
}

// One resolves expr and returns its single target.
func (r Resolver) One(doc *document.Document, expr string) (Handle, error) {
	handles, err := Resolve(doc, expr)
	if err != nil {
		return Handle{}, err
	}
	return r.First(handles, expr)
}

// First returns the first handle. More than one handle is a warning, or an
// error when strict; none is an error.
func (r Resolver) First(handles []Handle, expr string) (Handle, error) {
	switch {
	case len(handles) == 0:
		return Handle{}, errs.New(errs.KindAddressing, "resolve", expr, "no node matches")
	case len(handles) > 1 && r.Strict:
		return Handle{}, errs.New(errs.KindAddressing, "resolve", expr, "matches %d nodes, expected one", len(handles))
	case len(handles) > 1:
		if r.Logger != nil {
			r.Logger.Warn("path matches several nodes, using the first",
				"expr", expr, "matches", len(handles), "using", handles[0].Path)
		}
	}
	return handles[0], nil
}

// Topic resolves expr to a topic.
func (r Resolver) Topic(doc *document.Document, expr string) (*document.Topic, Handle, error) {
	h, err := r.One(doc, expr)
	if err != nil {
		return nil, Handle{}, err
	}
	if h.Kind != KindTopic {
		hint := ""
		if h.Kind == KindSheet {
			hint = " (address its root with .rootTopic)"
		}
		return nil, h, errs.New(errs.KindAddressing, "resolve", expr, "resolves to a %s, not a topic%s", h.Kind, hint)
	}
	return h.Topic, h, nil
}
