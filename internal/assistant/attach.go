package assistant

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// CharCountWarningThreshold is the aggregate attachment size, in characters,
// above which callers should warn the user. It never fails a request.
const CharCountWarningThreshold = 100000

// Source is one file to attach.
type Source interface {
	// Path identifies the file in error messages.
	Path() string
	// Name is the label used in the file context block.
	Name() string
	ReadText(ctx context.Context) (string, error)
}

// TextExtractor turns raw file bytes into text, decoding by file type.
type TextExtractor interface {
	ExtractText(name string, data []byte) (string, error)
}

// LoadAttachments reads all sources concurrently. The first failure cancels
// the rest and no files are returned. Results keep input order.
func LoadAttachments(ctx context.Context, sources []Source) ([]AttachedFile, error) {
	files := make([]AttachedFile, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			text, err := src.ReadText(gctx)
			if err != nil {
				return &FileError{Path: src.Path(), Err: err}
			}
			files[i] = AttachedFile{Name: src.Name(), Content: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// PathSources wraps local file paths. Relative paths are resolved against
// the working directory.
func PathSources(paths []string, extractor TextExtractor) []Source {
	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = &pathSource{path: p, extractor: extractor}
	}
	return sources
}

type pathSource struct {
	path      string
	extractor TextExtractor
}

func (s *pathSource) Path() string { return s.path }

func (s *pathSource) Name() string { return filepath.Base(s.path) }

func (s *pathSource) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return s.extractor.ExtractText(s.Name(), data)
}

// AttachmentSet holds the files attached to the next request and their
// aggregate character count.
type AttachmentSet struct {
	mu        sync.Mutex
	files     []AttachedFile
	charCount int
}

// Add appends files and updates the character count in one step.
func (a *AttachmentSet) Add(files ...AttachedFile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range files {
		a.files = append(a.files, f)
		a.charCount += utf8.RuneCountInString(f.Content)
	}
}

func (a *AttachmentSet) Files() []AttachedFile {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AttachedFile, len(a.files))
	copy(out, a.files)
	return out
}

// Names returns the attached file names in order.
func (a *AttachmentSet) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, len(a.files))
	for i, f := range a.files {
		names[i] = f.Name
	}
	return names
}

func (a *AttachmentSet) CharCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.charCount
}

// ExceedsWarning reports whether the attached text is above the advisory
// threshold.
func (a *AttachmentSet) ExceedsWarning() bool {
	return a.CharCount() > CharCountWarningThreshold
}

func (a *AttachmentSet) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = nil
	a.charCount = 0
}
