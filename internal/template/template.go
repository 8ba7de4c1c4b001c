// Package template builds the blank archive used when no template file is
// given.
package template

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/xmindctl/internal/archive"
	"github.com/agentic-research/xmindctl/internal/edit"
)

const (
	DefaultSheetTitle = "Map 1"
	DefaultRootTitle  = "Central Topic"

	structureClass = "org.xmind.ui.map.unbalanced"
)

// Options customizes Blank. Empty titles fall back to the defaults.
type Options struct {
	SheetTitle string
	RootTitle  string
	IDs        edit.IDGenerator
	Version    string
}

type blankTopic struct {
	ID             string `json:"id"`
	Class          string `json:"class"`
	Title          string `json:"title"`
	StructureClass string `json:"structureClass"`
	TitleUnedited  bool   `json:"titleUnedited,omitempty"`
}

type blankSheet struct {
	ID               string     `json:"id"`
	Class            string     `json:"class"`
	Title            string     `json:"title"`
	RootTopic        blankTopic `json:"rootTopic"`
	TopicPositioning string     `json:"topicPositioning"`
}

type creator struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Blank returns a one-sheet archive with content.json, metadata.json and
// manifest.json.
func Blank(opts Options) ([]byte, error) {
	ids := opts.IDs
	if ids == nil {
		ids = edit.UUIDGenerator{}
	}
	sheetTitle := opts.SheetTitle
	if sheetTitle == "" {
		sheetTitle = DefaultSheetTitle
	}
	root := blankTopic{
		ID:             ids.NewID(),
		Class:          "topic",
		Title:          opts.RootTitle,
		StructureClass: structureClass,
	}
	if root.Title == "" {
		root.Title = DefaultRootTitle
		root.TitleUnedited = true
	}

	content, err := json.Marshal([]blankSheet{{
		ID:               ids.NewID(),
		Class:            "sheet",
		Title:            sheetTitle,
		RootTopic:        root,
		TopicPositioning: "fixed",
	}})
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	metadata, err := json.Marshal(map[string]creator{"creator": {Name: "xmindctl", Version: opts.Version}})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	manifest, err := json.Marshal(map[string]map[string]struct{}{
		"file-entries": {archive.ContentEntry: {}, "metadata.json": {}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return archive.Build([]archive.NamedEntry{
		{Name: archive.ContentEntry, Content: content},
		{Name: "metadata.json", Content: metadata},
		{Name: "manifest.json", Content: manifest},
	})
}
