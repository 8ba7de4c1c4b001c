// Package edit implements the mutations applied to a loaded document:
// inserting topics, batch inserts and sheet backgrounds.
//
// Every operation works on the in-memory tree only. Callers write the
// document back once the operation has returned without error, so a failed
// operation never reaches the archive on disk.
package edit

import (
	"fmt"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/errs"
)

// maxAttempts bounds the retries when a generator keeps returning taken ids.
const maxAttempts = 64

// Editor applies mutations. The zero value generates UUIDs.
type Editor struct {
	IDs IDGenerator
}

// New returns an Editor drawing ids from ids, or UUIDs when ids is nil.
func New(ids IDGenerator) *Editor {
	return &Editor{IDs: ids}
}

func (e *Editor) generator() IDGenerator {
	if e == nil || e.IDs == nil {
		return UUIDGenerator{}
	}
	return e.IDs
}

// newID returns a candidate absent from taken and records it there.
func (e *Editor) newID(op string, taken map[string]struct{}) (string, error) {
	gen := e.generator()
	for range maxAttempts {
		id := gen.NewID()
		if _, dup := taken[id]; id != "" && !dup {
			taken[id] = struct{}{}
			return id, nil
		}
	}
	return "", errs.New(errs.KindDuplicateID, op, "", "id generator returned %d taken ids in a row", maxAttempts)
}

// claim records an explicit id, failing if the document already uses it.
func claim(op, id string, taken map[string]struct{}) error {
	if _, dup := taken[id]; dup {
		return errs.New(errs.KindDuplicateID, op, "", "id %q already exists", id)
	}
	taken[id] = struct{}{}
	return nil
}

// CreateTopic appends a new topic titled title to parent's attached
// children, creating the grouping if needed. An empty id is generated.
func (e *Editor) CreateTopic(doc *document.Document, parent *document.Topic, title, id string) (*document.Topic, error) {
	const op = "insert"
	if parent == nil {
		return nil, errs.New(errs.KindInvalidInput, op, "", "no parent topic")
	}
	taken := doc.IDs()
	if id == "" {
		var err error
		if id, err = e.newID(op, taken); err != nil {
			return nil, err
		}
	} else if err := claim(op, id, taken); err != nil {
		return nil, err
	}

	t := document.NewTopic(id, title)
	parent.AppendChild(document.CategoryAttached, t)
	return t, nil
}

// TopicInput is one item of a batch: a bare title, or a prebuilt node whose
// ids are kept where present.
type TopicInput struct {
	Title string
	Node  *document.Topic
}

// CreateTopicsBatch appends one topic per input, in order. Every input is
// built and checked before the first append, so on error parent is
// unchanged.
func (e *Editor) CreateTopicsBatch(doc *document.Document, parent *document.Topic, inputs []TopicInput) ([]*document.Topic, error) {
	const op = "insert batch"
	if parent == nil {
		return nil, errs.New(errs.KindInvalidInput, op, "", "no parent topic")
	}
	if len(inputs) == 0 {
		return nil, errs.New(errs.KindInvalidInput, op, "", "no topics to insert")
	}

	taken := doc.IDs()
	built := make([]*document.Topic, 0, len(inputs))
	for i, in := range inputs {
		switch {
		case in.Node != nil:
			if err := e.assignIDs(op, in.Node, taken); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			built = append(built, in.Node)
		case in.Title != "":
			id, err := e.newID(op, taken)
			if err != nil {
				return nil, err
			}
			built = append(built, document.NewTopic(id, in.Title))
		default:
			return nil, errs.New(errs.KindInvalidInput, op, "", "item %d has neither a title nor a topic", i)
		}
	}

	for _, t := range built {
		parent.AppendChild(document.CategoryAttached, t)
	}
	return built, nil
}

// assignIDs claims the explicit ids of t's subtree and generates the rest.
func (e *Editor) assignIDs(op string, t *document.Topic, taken map[string]struct{}) error {
	if t.ID == "" {
		id, err := e.newID(op, taken)
		if err != nil {
			return err
		}
		t.ID = id
	} else if err := claim(op, t.ID, taken); err != nil {
		return err
	}
	for _, category := range t.Children.Categories() {
		list, _ := t.Children.Get(category)
		for _, child := range list {
			if err := e.assignIDs(op, child, taken); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetSheetBackground sets the fill color of sheet index.
func (e *Editor) SetSheetBackground(doc *document.Document, index int, color string) (*document.Sheet, error) {
	sheet, ok := doc.Sheet(index)
	if !ok {
		return nil, errs.New(errs.KindIndexOutOfRange, "background", "",
			"sheet %d does not exist (document has %d)", index, len(doc.Sheets))
	}
	if err := e.ApplyBackground(doc, sheet, color); err != nil {
		return nil, err
	}
	return sheet, nil
}

// ApplyBackground gives sheet a style (with a fresh id) if it has none and
// sets its fill property to color.
func (e *Editor) ApplyBackground(doc *document.Document, sheet *document.Sheet, color string) error {
	taken := doc.IDs()
	var genErr error
	style := sheet.EnsureStyle(func() string {
		id, err := e.newID("background", taken)
		genErr = err
		return id
	})
	if genErr != nil {
		return genErr
	}
	if err := style.SetProperty(document.FillProperty, color); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "background", "", err)
	}
	return nil
}

// SetAllSheetsBackground applies color to every sheet and returns how many
// were changed.
func (e *Editor) SetAllSheetsBackground(doc *document.Document, color string) (int, error) {
	if len(doc.Sheets) == 0 {
		return 0, errs.New(errs.KindAddressing, "background", "", "document has no sheets")
	}
	for _, sheet := range doc.Sheets {
		if err := e.ApplyBackground(doc, sheet, color); err != nil {
			return 0, err
		}
	}
	return len(doc.Sheets), nil
}

// RetitleSheet renames sheet index.
func RetitleSheet(doc *document.Document, index int, title string) error {
	sheet, ok := doc.Sheet(index)
	if !ok {
		return errs.New(errs.KindIndexOutOfRange, "retitle", "", "sheet %d does not exist", index)
	}
	sheet.Title = title
	return nil
}

// RetitleRootTopic renames the root topic of sheet index.
func RetitleRootTopic(doc *document.Document, index int, title string) error {
	sheet, ok := doc.Sheet(index)
	if !ok {
		return errs.New(errs.KindIndexOutOfRange, "retitle", "", "sheet %d does not exist", index)
	}
	sheet.RootTopic.Title = title
	return nil
}
