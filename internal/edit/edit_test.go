package edit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/errs"
)

func newDoc(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(`[
		{"id":"s1","title":"One","rootTopic":{"id":"r1","title":"A","children":{"attached":[{"id":"b","title":"B"}]}}},
		{"id":"s2","title":"Two","rootTopic":{"id":"r2","title":"X"},"style":{"id":"st2","properties":{"svg:fill":"#FFFFFFFF","keep":"me"}}}
	]`))
	require.NoError(t, err)
	return doc
}

func titles(topics []*document.Topic) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, t.Title)
	}
	return out
}

// constGenerator always returns the same candidates in a cycle.
type constGenerator struct {
	ids []string
	i   int
}

func (g *constGenerator) NewID() string {
	id := g.ids[g.i%len(g.ids)]
	g.i++
	return id
}

func TestCreateTopic(t *testing.T) {
	doc := newDoc(t)
	e := New(&SequenceGenerator{Prefix: "t"})
	parent := doc.Sheets[0].RootTopic.Attached()[0]
	require.Nil(t, parent.Children)

	topic, err := e.CreateTopic(doc, parent, "New", "")
	require.NoError(t, err)
	assert.Equal(t, "t1", topic.ID)
	assert.Equal(t, "New", topic.Title)
	assert.True(t, topic.TitleUnedited)
	assert.Equal(t, []*document.Topic{topic}, parent.Attached())
}

func TestCreateTopic_ExplicitID(t *testing.T) {
	doc := newDoc(t)
	e := New(nil)
	root := doc.Sheets[0].RootTopic

	topic, err := e.CreateTopic(doc, root, "Mine", "custom-id")
	require.NoError(t, err)
	assert.Equal(t, "custom-id", topic.ID)

	_, err = e.CreateTopic(doc, root, "Again", "custom-id")
	assert.True(t, errors.Is(err, errs.ErrDuplicateID))
	_, err = e.CreateTopic(doc, root, "Sheet id", "s2")
	assert.True(t, errors.Is(err, errs.ErrDuplicateID))
	assert.Len(t, root.Attached(), 2)
}

func TestCreateTopic_AppendOrder(t *testing.T) {
	doc := newDoc(t)
	e := New(nil)
	root := doc.Sheets[1].RootTopic

	want := []string{"one", "two", "three", "four", "five"}
	for _, title := range want {
		_, err := e.CreateTopic(doc, root, title, "")
		require.NoError(t, err)
	}
	assert.Equal(t, want, titles(root.Attached()))
}

func TestCreateTopic_GeneratedIDsAreUnique(t *testing.T) {
	doc := newDoc(t)
	// The generator proposes ids the document already has before fresh ones.
	e := New(&constGenerator{ids: []string{"r1", "b", "st2", "fresh-1", "r1", "fresh-2"}})
	root := doc.Sheets[0].RootTopic

	first, err := e.CreateTopic(doc, root, "x", "")
	require.NoError(t, err)
	second, err := e.CreateTopic(doc, root, "y", "")
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", first.ID)
	assert.Equal(t, "fresh-2", second.ID)

	ids := doc.IDs()
	assert.Len(t, ids, 8)
}

func TestCreateTopic_UUIDs(t *testing.T) {
	doc := newDoc(t)
	var e Editor
	seen := map[string]bool{}
	for range 50 {
		topic, err := e.CreateTopic(doc, doc.Sheets[0].RootTopic, "t", "")
		require.NoError(t, err)
		_, err = uuid.Parse(topic.ID)
		require.NoError(t, err)
		assert.False(t, seen[topic.ID])
		seen[topic.ID] = true
	}
}

func TestCreateTopic_ExhaustedGenerator(t *testing.T) {
	doc := newDoc(t)
	e := New(&constGenerator{ids: []string{"b"}})
	_, err := e.CreateTopic(doc, doc.Sheets[0].RootTopic, "x", "")
	assert.True(t, errors.Is(err, errs.ErrDuplicateID))
	assert.Len(t, doc.Sheets[0].RootTopic.Attached(), 1)
}

func TestCreateTopic_NilParent(t *testing.T) {
	_, err := New(nil).CreateTopic(newDoc(t), nil, "x", "")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestCreateTopicsBatch(t *testing.T) {
	doc := newDoc(t)
	e := New(&SequenceGenerator{Prefix: "g"})
	root := doc.Sheets[0].RootTopic

	var node document.Topic
	require.NoError(t, json.Unmarshal([]byte(`{"id":"kept","title":"Obj","markers":[{"markerId":"priority-1"}],"children":{"attached":[{"title":"Nested"}]}}`), &node))

	created, err := e.CreateTopicsBatch(doc, root, []TopicInput{
		{Title: "T1"},
		{Node: &node},
		{Title: "T2"},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	assert.Equal(t, []string{"B", "T1", "Obj", "T2"}, titles(root.Attached()))
	assert.Equal(t, "g1", created[0].ID)
	assert.Equal(t, "kept", created[1].ID)
	assert.Equal(t, "g2", created[1].Attached()[0].ID)
	assert.Equal(t, "g3", created[2].ID)
	_, ok := created[1].Extra("markers")
	assert.True(t, ok)
}

func TestCreateTopicsBatch_AllOrNothing(t *testing.T) {
	tests := []struct {
		name   string
		inputs func(t *testing.T) []TopicInput
		kind   error
	}{
		{
			name: "duplicate explicit id",
			inputs: func(t *testing.T) []TopicInput {
				return []TopicInput{{Title: "ok"}, {Node: document.NewTopic("b", "clash")}}
			},
			kind: errs.ErrDuplicateID,
		},
		{
			name: "duplicate inside the batch",
			inputs: func(t *testing.T) []TopicInput {
				return []TopicInput{{Node: document.NewTopic("same", "1")}, {Node: document.NewTopic("same", "2")}}
			},
			kind: errs.ErrDuplicateID,
		},
		{
			name: "nested duplicate",
			inputs: func(t *testing.T) []TopicInput {
				var node document.Topic
				require.NoError(t, json.Unmarshal([]byte(`{"title":"p","children":{"attached":[{"id":"r2","title":"c"}]}}`), &node))
				return []TopicInput{{Node: &node}}
			},
			kind: errs.ErrDuplicateID,
		},
		{
			name: "empty item",
			inputs: func(t *testing.T) []TopicInput {
				return []TopicInput{{Title: "ok"}, {}}
			},
			kind: errs.ErrInvalidInput,
		},
		{
			name:   "empty batch",
			inputs: func(t *testing.T) []TopicInput { return nil },
			kind:   errs.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDoc(t)
			before, err := doc.Marshal()
			require.NoError(t, err)

			created, err := New(nil).CreateTopicsBatch(doc, doc.Sheets[0].RootTopic, tt.inputs(t))
			require.Error(t, err)
			assert.Nil(t, created)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			after, err := doc.Marshal()
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))
		})
	}
}

func TestSetSheetBackground_CreatesStyle(t *testing.T) {
	doc := newDoc(t)
	e := New(&SequenceGenerator{Prefix: "style-"})

	sheet, err := e.SetSheetBackground(doc, 0, "#FF0000FF")
	require.NoError(t, err)
	require.NotNil(t, sheet.Style)
	assert.Equal(t, "style-1", sheet.Style.ID)

	color, ok := sheet.Background()
	require.True(t, ok)
	assert.Equal(t, "#FF0000FF", color)
}

func TestSetSheetBackground_GeneratedStyleID(t *testing.T) {
	doc := newDoc(t)
	sheet, err := New(nil).SetSheetBackground(doc, 0, "#FF0000FF")
	require.NoError(t, err)
	assert.NotEmpty(t, sheet.Style.ID)
	assert.NotContains(t, []string{"s1", "s2", "r1", "r2", "b", "st2"}, sheet.Style.ID)
}

func TestSetSheetBackground_KeepsExistingStyle(t *testing.T) {
	doc := newDoc(t)
	sheet, err := New(nil).SetSheetBackground(doc, 1, "#123456FF")
	require.NoError(t, err)
	assert.Equal(t, "st2", sheet.Style.ID)

	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"properties":{"svg:fill":"#123456FF","keep":"me"}`)
}

func TestSetSheetBackground_IndexOutOfRange(t *testing.T) {
	doc := newDoc(t)
	for _, index := range []int{-1, 2, 10} {
		_, err := New(nil).SetSheetBackground(doc, index, "#000000FF")
		assert.True(t, errors.Is(err, errs.ErrIndexOutOfRange), "index %d: %v", index, err)
	}
	assert.Nil(t, doc.Sheets[0].Style)
}

func TestSetAllSheetsBackground(t *testing.T) {
	doc := newDoc(t)
	n, err := New(nil).SetAllSheetsBackground(doc, "#000000FF")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, s := range doc.Sheets {
		color, ok := s.Background()
		assert.True(t, ok)
		assert.Equal(t, "#000000FF", color)
	}
	assert.NotEqual(t, doc.Sheets[0].Style.ID, doc.Sheets[1].Style.ID)

	_, err = New(nil).SetAllSheetsBackground(document.New(), "#000000FF")
	assert.True(t, errors.Is(err, errs.ErrAddressing))
}

func TestRetitle(t *testing.T) {
	doc := newDoc(t)
	require.NoError(t, RetitleSheet(doc, 0, "Plan"))
	require.NoError(t, RetitleRootTopic(doc, 0, "Goals"))
	assert.Equal(t, "Plan", doc.Sheets[0].Title)
	assert.Equal(t, "Goals", doc.Sheets[0].RootTopic.Title)

	assert.True(t, errors.Is(RetitleSheet(doc, 3, "x"), errs.ErrIndexOutOfRange))
	assert.True(t, errors.Is(RetitleRootTopic(doc, 3, "x"), errs.ErrIndexOutOfRange))
}
