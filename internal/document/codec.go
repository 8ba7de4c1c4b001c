package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/agentic-research/xmindctl/internal/errs"
)

// Parse decodes content.json. The input is an array of sheets; a single
// sheet object is also accepted and is written back as an object.
func Parse(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errs.New(errs.KindInvalidFormat, "parse", "", "empty document")
	}

	doc := &Document{}
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &doc.Sheets); err != nil {
			return nil, errs.Wrap(errs.KindInvalidFormat, "parse", "", err)
		}
	case '{':
		var sheet Sheet
		if err := json.Unmarshal(trimmed, &sheet); err != nil {
			return nil, errs.Wrap(errs.KindInvalidFormat, "parse", "", err)
		}
		doc.Sheets = []*Sheet{&sheet}
		doc.single = true
	default:
		return nil, errs.New(errs.KindInvalidFormat, "parse", "", "expected a sheet array, got %q", trimmed[:1])
	}

	for i, s := range doc.Sheets {
		if s == nil {
			return nil, errs.New(errs.KindInvalidFormat, "parse", "", "sheet %d is null", i)
		}
		if s.RootTopic == nil {
			return nil, errs.New(errs.KindInvalidFormat, "parse", "", "sheet %d has no rootTopic", i)
		}
	}
	return doc, nil
}

// Marshal encodes the document compactly, without HTML escaping.
func (d *Document) Marshal() ([]byte, error) {
	if d.single && len(d.Sheets) == 1 {
		return d.Sheets[0].MarshalJSON()
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, s := range d.Sheets {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := s.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("sheet %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIndent is Marshal with each level indented by indent.
func (d *Document) MarshalIndent(indent string) ([]byte, error) {
	compact, err := d.Marshal()
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return compact, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Sheet) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("sheet: %w", err)
	}
	s.fields = fields
	if err := getString(fields, "id", &s.ID); err != nil {
		return err
	}
	if err := getString(fields, "title", &s.Title); err != nil {
		return err
	}
	if raw, ok := fields.Get("rootTopic"); ok && !isNull(raw) {
		s.RootTopic = &Topic{}
		if err := json.Unmarshal(raw, s.RootTopic); err != nil {
			return fmt.Errorf("sheet %q rootTopic: %w", s.ID, err)
		}
	}
	if raw, ok := fields.Get("style"); ok && !isNull(raw) {
		s.Style = &Style{}
		if err := json.Unmarshal(raw, s.Style); err != nil {
			return fmt.Errorf("sheet %q style: %w", s.ID, err)
		}
	}
	return nil
}

func (s *Sheet) MarshalJSON() ([]byte, error) {
	out := cloneAttrs(s.fields)
	if err := putString(out, s.fields, "id", s.ID); err != nil {
		return nil, err
	}
	if err := putString(out, s.fields, "title", s.Title); err != nil {
		return nil, err
	}
	if s.RootTopic != nil {
		if err := putValue(out, "rootTopic", s.RootTopic); err != nil {
			return nil, err
		}
	}
	if s.Style != nil {
		if err := putValue(out, "style", s.Style); err != nil {
			return nil, err
		}
	}
	return writeObject(out), nil
}

func (t *Topic) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("topic: %w", err)
	}
	t.fields = fields
	if err := getString(fields, "id", &t.ID); err != nil {
		return err
	}
	if err := getString(fields, "title", &t.Title); err != nil {
		return err
	}
	if raw, ok := fields.Get("titleUnedited"); ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &t.TitleUnedited); err != nil {
			return fmt.Errorf("topic %q titleUnedited: %w", t.ID, err)
		}
	}
	if raw, ok := fields.Get("children"); ok && !isNull(raw) {
		t.Children = &Children{}
		if err := json.Unmarshal(raw, t.Children); err != nil {
			return fmt.Errorf("topic %q children: %w", t.ID, err)
		}
	}
	return nil
}

func (t *Topic) MarshalJSON() ([]byte, error) {
	out := cloneAttrs(t.fields)
	if err := putString(out, t.fields, "id", t.ID); err != nil {
		return nil, err
	}
	if err := putString(out, t.fields, "title", t.Title); err != nil {
		return nil, err
	}
	if err := putBool(out, t.fields, "titleUnedited", t.TitleUnedited); err != nil {
		return nil, err
	}
	if t.Children != nil {
		if err := putValue(out, "children", t.Children); err != nil {
			return nil, err
		}
	}
	return writeObject(out), nil
}

func (c *Children) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	for p := fields.Oldest(); p != nil; p = p.Next() {
		var topics []*Topic
		if !isNull(p.Value) {
			topics = []*Topic{}
			if err := json.Unmarshal(p.Value, &topics); err != nil {
				return fmt.Errorf("category %q: %w", p.Key, err)
			}
		}
		for i, t := range topics {
			if t == nil {
				return fmt.Errorf("category %q: topic %d is null", p.Key, i)
			}
		}
		c.Set(p.Key, topics)
	}
	return nil
}

func (c *Children) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if c.categories != nil {
		first := true
		for p := c.categories.Oldest(); p != nil; p = p.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := marshal(p.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			// A nil list was read as null.
			if p.Value == nil {
				buf.WriteString(":null")
				continue
			}
			buf.WriteString(":[")
			for i, t := range p.Value {
				if i > 0 {
					buf.WriteByte(',')
				}
				b, err := t.MarshalJSON()
				if err != nil {
					return nil, err
				}
				buf.Write(b)
			}
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (st *Style) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("style: %w", err)
	}
	st.fields = fields
	if err := getString(fields, "id", &st.ID); err != nil {
		return err
	}
	if raw, ok := fields.Get("properties"); ok && !isNull(raw) {
		props, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("style %q properties: %w", st.ID, err)
		}
		st.Properties = props
	}
	return nil
}

func (st *Style) MarshalJSON() ([]byte, error) {
	out := cloneAttrs(st.fields)
	if err := putString(out, st.fields, "id", st.ID); err != nil {
		return nil, err
	}
	if st.Properties != nil {
		out.Set("properties", writeObject(st.Properties))
	}
	return writeObject(out), nil
}

func decodeObject(data []byte) (*Attrs, error) {
	fields := newAttrs()
	if err := fields.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return fields, nil
}

func cloneAttrs(fields *Attrs) *Attrs {
	out := newAttrs()
	if fields == nil {
		return out
	}
	for p := fields.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, p.Value)
	}
	return out
}

func lookup(fields *Attrs, key string) (json.RawMessage, bool) {
	if fields == nil {
		return nil, false
	}
	return fields.Get(key)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func getString(fields *Attrs, key string, dst *string) error {
	raw, ok := fields.Get(key)
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

// putString writes v under key unless the key was absent and v is empty.
// An unchanged value keeps its original encoding.
func putString(out, orig *Attrs, key, v string) error {
	raw, present := lookup(orig, key)
	if !present && v == "" {
		return nil
	}
	if present {
		var old string
		if json.Unmarshal(raw, &old) == nil && old == v {
			return nil
		}
	}
	b, err := marshal(v)
	if err != nil {
		return err
	}
	out.Set(key, b)
	return nil
}

func putBool(out, orig *Attrs, key string, v bool) error {
	raw, present := lookup(orig, key)
	if !present && !v {
		return nil
	}
	if present {
		var old bool
		if json.Unmarshal(raw, &old) == nil && old == v {
			return nil
		}
	}
	b, err := marshal(v)
	if err != nil {
		return err
	}
	out.Set(key, b)
	return nil
}

func putValue(out *Attrs, key string, v json.Marshaler) error {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	out.Set(key, b)
	return nil
}

func writeObject(fields *Attrs) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for p := fields.Oldest(); p != nil; p = p.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := marshal(p.Key) // strings always encode
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(p.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// marshal is json.Marshal without HTML escaping or a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
