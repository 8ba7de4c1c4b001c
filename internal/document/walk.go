package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// SkipChildren returned from a Walk callback skips the topic's subtree.
var SkipChildren = errors.New("skip children")

// Visit is one topic reached by Walk.
type Visit struct {
	Sheet    int
	Topic    *Topic
	Parent   *Topic // nil for a root topic
	Category string
	Index    int
	Depth    int
	// Path is a path expression that addresses Topic.
	Path string
}

// Walk calls fn for every topic, depth first, sheets in order, categories
// in source order.
func (d *Document) Walk(fn func(Visit) error) error {
	for i, s := range d.Sheets {
		if s.RootTopic == nil {
			continue
		}
		v := Visit{Sheet: i, Topic: s.RootTopic, Path: fmt.Sprintf("sheet[%d].rootTopic", i)}
		if err := walkTopic(v, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkTopic(v Visit, fn func(Visit) error) error {
	if err := fn(v); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, category := range v.Topic.Children.Categories() {
		list, _ := v.Topic.Children.Get(category)
		for i, child := range list {
			next := Visit{
				Sheet:    v.Sheet,
				Topic:    child,
				Parent:   v.Topic,
				Category: category,
				Index:    i,
				Depth:    v.Depth + 1,
				Path:     fmt.Sprintf("%s.children%s[%d]", v.Path, FieldSelector(category), i),
			}
			if err := walkTopic(next, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_:-]*$`)

// FieldSelector renders a field step: ".name", or "['name']" for names
// that are not plain identifiers.
func FieldSelector(name string) string {
	if identifier.MatchString(name) {
		return "." + name
	}
	quoted, _ := marshal(name)
	return "[" + string(quoted) + "]"
}

// IDs returns every sheet, style and topic id in the document.
func (d *Document) IDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, s := range d.Sheets {
		if s.ID != "" {
			ids[s.ID] = struct{}{}
		}
		if s.Style != nil && s.Style.ID != "" {
			ids[s.Style.ID] = struct{}{}
		}
	}
	_ = d.Walk(func(v Visit) error {
		if v.Topic.ID != "" {
			ids[v.Topic.ID] = struct{}{}
		}
		return nil
	})
	return ids
}

// TopicIDs returns the ids of t and all its descendants.
func (t *Topic) TopicIDs() []string {
	var ids []string
	_ = walkTopic(Visit{Topic: t}, func(v Visit) error {
		if v.Topic.ID != "" {
			ids = append(ids, v.Topic.ID)
		}
		return nil
	})
	return ids
}

func isTopicKey(key string) bool {
	switch key {
	case "id", "title", "titleUnedited", "children":
		return true
	}
	return false
}

// Field returns the scalar value of an attribute: a typed field or a
// decoded extra key. Nested objects are returned decoded as well.
func (t *Topic) Field(name string) (any, bool) {
	switch name {
	case "id":
		return t.ID, t.ID != "" || has(t.fields, name)
	case "title":
		return t.Title, t.Title != "" || has(t.fields, name)
	case "titleUnedited":
		return t.TitleUnedited, t.TitleUnedited || has(t.fields, name)
	case "children":
		return nil, false
	}
	return decodeExtra(t.fields, name)
}

// Field is Topic.Field for sheets.
func (s *Sheet) Field(name string) (any, bool) {
	switch name {
	case "id":
		return s.ID, s.ID != "" || has(s.fields, name)
	case "title":
		return s.Title, s.Title != "" || has(s.fields, name)
	case "rootTopic", "style":
		return nil, false
	}
	return decodeExtra(s.fields, name)
}

// Field is Topic.Field for styles.
func (st *Style) Field(name string) (any, bool) {
	switch name {
	case "id":
		return st.ID, st.ID != "" || has(st.fields, name)
	case "properties":
		return nil, false
	}
	return decodeExtra(st.fields, name)
}

// Extra returns the raw value of a key the model does not type.
func (s *Sheet) Extra(key string) (json.RawMessage, bool) {
	switch key {
	case "id", "title", "rootTopic", "style":
		return nil, false
	}
	return lookup(s.fields, key)
}

func has(fields *Attrs, key string) bool {
	_, ok := lookup(fields, key)
	return ok
}

func decodeExtra(fields *Attrs, key string) (any, bool) {
	raw, ok := lookup(fields, key)
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}
