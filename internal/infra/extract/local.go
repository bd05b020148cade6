package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

// Extractor turns a staged upload into one concatenated text corpus.
// Archives are walked entry by entry; each readable document contributes
// a titled section so the downstream analysis can attribute content to
// its source file.
type Extractor struct {
	// MaxEntryBytes bounds how much of a single archive entry is read.
	MaxEntryBytes int64
}

func New() *Extractor {
	return &Extractor{MaxEntryBytes: 64 << 20}
}

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".xml":  true,
	".html": true,
	".htm":  true,
}

func readable(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

func (e *Extractor) Extract(ctx context.Context, path, filename string) (domain.Extraction, error) {
	if strings.EqualFold(filepath.Ext(filename), ".zip") {
		return e.extractArchive(ctx, path)
	}
	return e.extractFile(path, filename)
}

func (e *Extractor) extractFile(path, filename string) (domain.Extraction, error) {
	if !readable(filename) {
		return domain.Extraction{
			Errors: []string{fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))},
		}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read staged file: %w", err)
	}
	text := sanitize(raw)
	if strings.TrimSpace(text) == "" {
		return domain.Extraction{Errors: []string{"file contains no extractable text"}}, nil
	}
	return domain.Extraction{
		Success:        true,
		Text:           section(filename, text),
		UnitsProcessed: 1,
	}, nil
}

func (e *Extractor) extractArchive(ctx context.Context, path string) (domain.Extraction, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	// Stable document order keeps repeated runs of the same archive
	// producing the same corpus.
	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var (
		out    strings.Builder
		result domain.Extraction
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return domain.Extraction{}, err
		}
		if !readable(f.Name) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: unsupported file type", f.Name))
			continue
		}
		text, err := e.readEntry(f)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out.WriteString(section(f.Name, text))
		result.UnitsProcessed++
	}

	result.Text = out.String()
	result.Success = result.UnitsProcessed > 0
	if !result.Success && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, "archive contains no extractable documents")
	}
	return result, nil
}

func (e *Extractor) readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, e.MaxEntryBytes))
	if err != nil {
		return "", err
	}
	return sanitize(raw), nil
}

func section(name, text string) string {
	return fmt.Sprintf("\n\n=== %s ===\n\n%s", filepath.Base(name), text)
}

// sanitize normalizes line endings and drops invalid UTF-8 so prompt
// assembly downstream never sees mojibake control bytes.
func sanitize(raw []byte) string {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
