package parser

import (
	"context"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// SourceReader reads repository files by relative path.
type SourceReader interface {
	ReadFile(rel string) ([]byte, error)
}

// FileError records a file that could not be read or parsed. Such files are
// skipped; they never fail the whole extraction.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string { return e.File + ": " + e.Err.Error() }

// ExtractAll parses files concurrently and returns their exported
// declarations ordered by file, line, then name. Files with unsupported
// extensions are ignored.
func ExtractAll(ctx context.Context, files []string, reader SourceReader, workers int) ([]Declaration, []FileError) {
	if workers < 1 {
		workers = 1
	}

	p := pool.New().WithMaxGoroutines(workers)
	var mu sync.Mutex
	var decls []Declaration
	var errs []FileError

	for _, f := range files {
		if !Supported(f) {
			continue
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			found, err := extractFile(ctx, f, reader)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, FileError{File: f, Err: err})
				return
			}
			decls = append(decls, found...)
		})
	}
	p.Wait()

	sort.Slice(decls, func(i, j int) bool {
		a, b := decls[i], decls[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})
	sort.Slice(errs, func(i, j int) bool { return errs[i].File < errs[j].File })
	return decls, errs
}

func extractFile(ctx context.Context, file string, reader SourceReader) ([]Declaration, error) {
	src, err := reader.ReadFile(file)
	if err != nil {
		return nil, err
	}
	p := NewParser()
	defer p.Close()
	return p.Declarations(ctx, file, src)
}
