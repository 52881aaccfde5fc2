// Package vault imports existing notes (markdown vaults, PDFs) into the
// similarity index so classification context and duplicate detection cover
// material the pipeline never produced itself.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/notedrop/seiri/internal/similarity"
)

// Note is one imported document.
type Note struct {
	Title    string
	Content  string
	Path     string
	Metadata map[string]string
}

// Importer walks a vault directory and indexes its notes with imported
// provenance.
type Importer struct {
	store  similarity.Store
	logger *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the importer's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Importer) {
		i.logger = logger
	}
}

// NewImporter builds a vault importer over the given index.
func NewImporter(store similarity.Store, opts ...Option) *Importer {
	i := &Importer{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportDir walks root recursively, importing .md and .pdf files. Files
// that fail to parse are logged and skipped; the walk continues. Returns
// the number of notes imported.
func (i *Importer) ImportDir(ctx context.Context, root string) (int, error) {
	imported := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		var note Note
		var readErr error
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md":
			note, readErr = ReadMarkdown(path)
		case ".pdf":
			note, readErr = ReadPDF(path)
		default:
			return nil
		}
		if readErr != nil {
			i.logger.Warn("skipping unreadable vault file",
				zap.String("path", path),
				zap.Error(readErr))
			return nil
		}
		if strings.TrimSpace(note.Content) == "" {
			return nil
		}

		if err := i.indexNote(ctx, root, note); err != nil {
			i.logger.Warn("failed to index vault note",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}
		imported++
		return nil
	})
	if err != nil {
		return imported, fmt.Errorf("vault import failed: %w", err)
	}

	i.logger.Info("vault import complete",
		zap.String("root", root),
		zap.Int("imported", imported))
	return imported, nil
}

func (i *Importer) indexNote(ctx context.Context, root string, note Note) error {
	rel, err := filepath.Rel(root, note.Path)
	if err != nil {
		rel = filepath.Base(note.Path)
	}

	meta := map[string]string{
		"source": "imported",
		"title":  note.Title,
		"path":   note.Path,
	}
	if subject := note.Metadata["subject"]; subject != "" {
		meta["subject"] = subject
	}
	return i.store.Add(ctx, "vault/"+filepath.ToSlash(rel), searchText(note), meta)
}

// searchText prefixes the body with the title so short notes still carry
// their topic into the embedding.
func searchText(note Note) string {
	if note.Title == "" {
		return note.Content
	}
	return note.Title + "\n" + note.Content
}

// ReadMarkdown parses a markdown note, honoring YAML frontmatter when
// present. Broken frontmatter is not fatal: the whole file becomes the body.
func ReadMarkdown(path string) (Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Note{}, fmt.Errorf("failed to read note: %w", err)
	}

	body, frontmatter := splitFrontmatter(string(data))
	meta := make(map[string]string)
	if frontmatter != "" {
		var raw map[string]any
		if err := yaml.Unmarshal([]byte(frontmatter), &raw); err == nil {
			for k, v := range raw {
				meta[k] = fmt.Sprintf("%v", v)
			}
		} else {
			body = string(data)
		}
	}

	title := meta["title"]
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Note{
		Title:    title,
		Content:  strings.TrimSpace(body),
		Path:     path,
		Metadata: meta,
	}, nil
}

// splitFrontmatter returns (body, frontmatter). A document without a
// leading "---" fence has no frontmatter.
func splitFrontmatter(content string) (string, string) {
	if !strings.HasPrefix(content, "---\n") {
		return content, ""
	}
	rest := content[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, ""
	}
	body := rest[end+4:]
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	return body, rest[:end]
}

// ReadPDF extracts the plain text of every page.
func ReadPDF(path string) (Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Note{}, fmt.Errorf("failed to read pdf: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Note{}, fmt.Errorf("failed to open pdf: %w", err)
	}

	var buf bytes.Buffer
	for p := 1; p <= r.NumPage(); p++ {
		page := r.Page(p)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Note{}, fmt.Errorf("failed to extract pdf page %d: %w", p, err)
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}

	return Note{
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content:  strings.TrimSpace(buf.String()),
		Path:     path,
		Metadata: map[string]string{},
	}, nil
}
