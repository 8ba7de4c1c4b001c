// Package document is the in-memory form of an XMind content.json.
//
// A Document is an ordered list of sheets. Sheets, topics and styles carry a
// few typed fields the tool edits (id, title, ...) plus an ordered bag of
// every key found in the source JSON. Serialization walks that bag in its
// original order and substitutes the current value of each typed field, so
// keys the tool does not understand survive a read-write cycle untouched.
package document

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attrs is an ordered JSON object whose values are kept undecoded.
type Attrs = orderedmap.OrderedMap[string, json.RawMessage]

func newAttrs() *Attrs {
	return orderedmap.New[string, json.RawMessage]()
}

// CategoryAttached is the relation category of ordinary sub-topics.
const CategoryAttached = "attached"

// FillProperty is the style property holding a sheet's background color.
const FillProperty = "svg:fill"

// Document is the sheet list of one archive.
type Document struct {
	Sheets []*Sheet

	// single is set when the source was one sheet object rather than an array.
	single bool
}

// Sheet is one canvas. RootTopic is never nil on a parsed sheet.
type Sheet struct {
	ID        string
	Title     string
	RootTopic *Topic
	Style     *Style

	fields *Attrs
}

// Topic is one node of the mind-map tree.
type Topic struct {
	ID            string
	Title         string
	TitleUnedited bool
	Children      *Children

	fields *Attrs
}

// Children groups sub-topics by relation category, in source order.
type Children struct {
	categories *orderedmap.OrderedMap[string, []*Topic]
}

// Style is a sheet style: an id plus a property map.
type Style struct {
	ID         string
	Properties *Attrs

	fields *Attrs
}

// NewTopic returns a topic as XMind creates it from the UI: titled,
// titleUnedited set, no children.
func NewTopic(id, title string) *Topic {
	return &Topic{ID: id, Title: title, TitleUnedited: true, fields: newAttrs()}
}

// NewSheet returns a sheet with the given root topic.
func NewSheet(id, title string, root *Topic) *Sheet {
	return &Sheet{ID: id, Title: title, RootTopic: root, fields: newAttrs()}
}

// New returns a document holding sheets.
func New(sheets ...*Sheet) *Document {
	return &Document{Sheets: sheets}
}

// Sheet returns sheet i, or false when i is out of range.
func (d *Document) Sheet(i int) (*Sheet, bool) {
	if i < 0 || i >= len(d.Sheets) {
		return nil, false
	}
	return d.Sheets[i], true
}

// EnsureChildren creates the children grouping if absent.
func (t *Topic) EnsureChildren() *Children {
	if t.Children == nil {
		t.Children = &Children{}
	}
	return t.Children
}

// Attached returns the attached sub-topics.
func (t *Topic) Attached() []*Topic {
	if t.Children == nil {
		return nil
	}
	list, _ := t.Children.Get(CategoryAttached)
	return list
}

// AppendChild appends child to category, creating the grouping and the
// category when missing.
func (t *Topic) AppendChild(category string, child *Topic) {
	c := t.EnsureChildren()
	list, _ := c.Get(category)
	c.Set(category, append(list, child))
}

// Extra returns the raw value of a key the model does not type.
func (t *Topic) Extra(key string) (json.RawMessage, bool) {
	if t.fields == nil || isTopicKey(key) {
		return nil, false
	}
	return t.fields.Get(key)
}

// Get returns the topics of category.
func (c *Children) Get(category string) ([]*Topic, bool) {
	if c == nil || c.categories == nil {
		return nil, false
	}
	return c.categories.Get(category)
}

// Set replaces the topics of category. A new category is appended.
func (c *Children) Set(category string, topics []*Topic) {
	if c.categories == nil {
		c.categories = orderedmap.New[string, []*Topic]()
	}
	c.categories.Set(category, topics)
}

// Categories returns the category names in order.
func (c *Children) Categories() []string {
	if c == nil || c.categories == nil {
		return nil
	}
	names := make([]string, 0, c.categories.Len())
	for p := c.categories.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}
	return names
}

// EnsureStyle returns the sheet style, creating one with an id from newID
// when the sheet has none. A style without an id also gets one.
func (s *Sheet) EnsureStyle(newID func() string) *Style {
	if s.Style == nil {
		s.Style = &Style{fields: newAttrs()}
	}
	if s.Style.ID == "" {
		s.Style.ID = newID()
	}
	return s.Style
}

// Background returns the sheet fill color, if set.
func (s *Sheet) Background() (string, bool) {
	if s.Style == nil {
		return "", false
	}
	return s.Style.Property(FillProperty)
}

// Property returns a string property.
func (st *Style) Property(key string) (string, bool) {
	if st == nil || st.Properties == nil {
		return "", false
	}
	raw, ok := st.Properties.Get(key)
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), true
	}
	return v, true
}

// SetProperty sets a string property, creating the property map if absent.
func (st *Style) SetProperty(key, value string) error {
	raw, err := marshal(value)
	if err != nil {
		return err
	}
	if st.Properties == nil {
		st.Properties = newAttrs()
	}
	st.Properties.Set(key, raw)
	return nil
}
