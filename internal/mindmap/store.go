// Package mindmap runs the read, edit and write cycle on XMind archives.
//
// A Store reads content.json out of an archive, hands the parsed document to
// an edit function and writes the result back with every other entry copied
// unchanged. No document outlives the call that loaded it.
package mindmap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/xmindctl/internal/archive"
	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/edit"
	"github.com/agentic-research/xmindctl/internal/errs"
	"github.com/agentic-research/xmindctl/internal/logging"
	"github.com/agentic-research/xmindctl/internal/pathexpr"
	"github.com/agentic-research/xmindctl/internal/template"
)

// Store operates on archives in FS.
type Store struct {
	FS       billy.Filesystem
	Logger   *slog.Logger
	Editor   *edit.Editor
	Resolver pathexpr.Resolver
	// Version is recorded in the metadata of archives built from scratch.
	Version string
}

// NewStore returns a Store with a UUID editor and a lenient resolver.
func NewStore(fsys billy.Filesystem, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		FS:       fsys,
		Logger:   logger,
		Editor:   edit.New(nil),
		Resolver: pathexpr.Resolver{Logger: logger},
	}
}

// Read loads the document of the archive at path.
func (s *Store) Read(path string) (*document.Document, error) {
	data, err := archive.Extract(s.FS, path, archive.ContentEntry)
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(data)
	if err != nil {
		var classified *errs.Error
		if errors.As(err, &classified) && classified.Path == "" {
			classified.Path = path
		}
		return nil, err
	}
	s.Logger.Debug("read archive", "path", path, "sheets", len(doc.Sheets), "bytes", len(data))
	return doc, nil
}

// Modify loads path, applies fn and writes the result to output (path when
// output is empty). If fn fails, or leaves the document with a structural
// problem it did not have before, nothing is written.
func (s *Store) Modify(path, output string, fn func(*document.Document) error) error {
	doc, err := s.Read(path)
	if err != nil {
		return err
	}
	baseline := Problems(doc)

	if err := fn(doc); err != nil {
		return err
	}
	if err := Validate(doc, baseline); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "validate", path, err)
	}

	data, err := doc.Marshal()
	if err != nil {
		return errs.Wrap(errs.KindInvalidFormat, "encode", path, err)
	}
	if output == "" {
		output = path
	}
	if err := archive.ReplaceEntry(s.FS, path, archive.ContentEntry, data, output); err != nil {
		return err
	}
	s.Logger.Info("wrote archive", "path", output, "source", path, "content_bytes", len(data))
	return nil
}

// CreateOptions configures Create.
type CreateOptions struct {
	// Template is an archive to start from; empty means the built-in blank.
	Template   string
	SheetTitle string
	RootTitle  string
}

// Create writes a new archive at output. A template without title changes
// is copied byte for byte.
func (s *Store) Create(output string, opts CreateOptions) error {
	if opts.Template == "" {
		var ids edit.IDGenerator
		if s.Editor != nil {
			ids = s.Editor.IDs
		}
		data, err := template.Blank(template.Options{
			SheetTitle: opts.SheetTitle,
			RootTitle:  opts.RootTitle,
			IDs:        ids,
			Version:    s.Version,
		})
		if err != nil {
			return errs.Wrap(errs.KindWriteFailure, "create", output, err)
		}
		if err := archive.WriteFile(s.FS, output, data, 0o644); err != nil {
			return err
		}
		s.Logger.Info("created archive", "path", output, "template", "builtin")
		return nil
	}

	// A template must at least carry a readable document.
	if _, err := s.Read(opts.Template); err != nil {
		return err
	}

	if opts.SheetTitle == "" && opts.RootTitle == "" {
		if err := s.copyFile(opts.Template, output); err != nil {
			return err
		}
		s.Logger.Info("created archive", "path", output, "template", opts.Template)
		return nil
	}

	return s.Modify(opts.Template, output, func(doc *document.Document) error {
		if opts.SheetTitle != "" {
			if err := edit.RetitleSheet(doc, 0, opts.SheetTitle); err != nil {
				return err
			}
		}
		if opts.RootTitle != "" {
			return edit.RetitleRootTopic(doc, 0, opts.RootTitle)
		}
		return nil
	})
}

func (s *Store) copyFile(src, dst string) error {
	data, err := util.ReadFile(s.FS, src)
	if err != nil {
		return errs.Wrap(errs.KindNotFound, "copy", src, err)
	}
	mode := fs.FileMode(0o644)
	if info, err := s.FS.Stat(src); err == nil {
		mode = info.Mode().Perm()
	}
	return archive.WriteFile(s.FS, dst, data, mode)
}

// InsertTopic adds one topic under the topic addressed by parentExpr.
func (s *Store) InsertTopic(path, output, parentExpr, title, id string) (*document.Topic, error) {
	var created *document.Topic
	err := s.Modify(path, output, func(doc *document.Document) error {
		parent, h, err := s.Resolver.Topic(doc, parentExpr)
		if err != nil {
			return err
		}
		created, err = s.Editor.CreateTopic(doc, parent, title, id)
		if err != nil {
			return err
		}
		s.Logger.Debug("inserted topic", "parent", h.Path, "id", created.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// InsertTopics adds a batch of topics under the topic addressed by
// parentExpr. Either all of them are written or none.
func (s *Store) InsertTopics(path, output, parentExpr string, inputs []edit.TopicInput) ([]*document.Topic, error) {
	var created []*document.Topic
	err := s.Modify(path, output, func(doc *document.Document) error {
		parent, h, err := s.Resolver.Topic(doc, parentExpr)
		if err != nil {
			return err
		}
		created, err = s.Editor.CreateTopicsBatch(doc, parent, inputs)
		if err != nil {
			return err
		}
		s.Logger.Debug("inserted topics", "parent", h.Path, "count", len(created))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetBackground sets the fill color of sheet index.
func (s *Store) SetBackground(path, output string, index int, color string) error {
	return s.Modify(path, output, func(doc *document.Document) error {
		_, err := s.Editor.SetSheetBackground(doc, index, color)
		return err
	})
}

// SetAllBackgrounds sets the fill color of every sheet and returns how many
// sheets there were.
func (s *Store) SetAllBackgrounds(path, output, color string) (int, error) {
	var n int
	err := s.Modify(path, output, func(doc *document.Document) error {
		var err error
		n, err = s.Editor.SetAllSheetsBackground(doc, color)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SheetInfo summarizes one sheet.
type SheetInfo struct {
	Index      int    `json:"index"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	RootTopic  string `json:"root_topic"`
	Topics     int    `json:"topics"`
	HasStyle   bool   `json:"has_style"`
	Background string `json:"background,omitempty"`
}

// ListSheets summarizes every sheet of the archive at path.
func (s *Store) ListSheets(path string) ([]SheetInfo, error) {
	doc, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	infos := make([]SheetInfo, len(doc.Sheets))
	for i, sh := range doc.Sheets {
		bg, _ := sh.Background()
		infos[i] = SheetInfo{
			Index:      i,
			ID:         sh.ID,
			Title:      sh.Title,
			RootTopic:  sh.RootTopic.Title,
			HasStyle:   sh.Style != nil,
			Background: bg,
		}
	}
	_ = doc.Walk(func(v document.Visit) error {
		infos[v.Sheet].Topics++
		return nil
	})
	return infos, nil
}

// TopicInfo is one topic with a path expression that addresses it.
type TopicInfo struct {
	Sheet    int    `json:"sheet"`
	Path     string `json:"path"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Depth    int    `json:"depth"`
	Category string `json:"category,omitempty"`
}

// ListTopics lists every topic of the archive at path, depth first.
func (s *Store) ListTopics(path string) ([]TopicInfo, error) {
	doc, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	return Topics(doc), nil
}

// Topics lists every topic of doc, depth first.
func Topics(doc *document.Document) []TopicInfo {
	var topics []TopicInfo
	_ = doc.Walk(func(v document.Visit) error {
		topics = append(topics, TopicInfo{
			Sheet:    v.Sheet,
			Path:     v.Path,
			ID:       v.Topic.ID,
			Title:    v.Topic.Title,
			Depth:    v.Depth,
			Category: v.Category,
		})
		return nil
	})
	return topics
}

// Entries describes the members of the archive at path.
func (s *Store) Entries(path string) ([]archive.Entry, error) {
	entries, err := archive.List(s.FS, path)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}
