package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
)

const queryExtension = ".sql"

// FileQueryLoader resolves query names to annotated sql files of a source.
// Parsed queries are immutable, so they are cached and shared between
// benchmarks referencing the same name.
type FileQueryLoader struct {
	source Source

	mu    sync.Mutex
	cache map[string]*Query
}

func NewFileQueryLoader(source Source) *FileQueryLoader {
	return &FileQueryLoader{source: source, cache: make(map[string]*Query)}
}

func queryFile(name string) string {
	if strings.HasSuffix(name, queryExtension) {
		return name
	}
	return name + queryExtension
}

func (l *FileQueryLoader) LoadFromFile(ctx context.Context, name string, attributes Attributes) (*Query, error) {
	resolved, err := substitute(name, attributes.Lookup)
	if err != nil {
		return nil, &UnresolvedQueryError{Query: name, Err: err}
	}
	resolved = strings.TrimSuffix(path.Clean(resolved), queryExtension)

	l.mu.Lock()
	cached, ok := l.cache[resolved]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, file, err := readCandidates(ctx, l.source, queryFile(resolved))
	if err != nil {
		if isNotExist(err) {
			return nil, &UnresolvedQueryError{Query: resolved, Err: fmt.Errorf("no %v in %v", queryFile(resolved), l.source.Name())}
		}
		return nil, fmt.Errorf("failed to read query %v from %v: %w", file, l.source.Name(), err)
	}

	query, err := ParseQuery(resolved, splitLines(string(data)))
	if err != nil {
		return nil, err
	}
	Logger.Debugf("parsed query %v: %v properties, %v statements", resolved, len(query.Properties), len(query.templates))

	l.mu.Lock()
	l.cache[resolved] = query
	l.mu.Unlock()
	return query, nil
}
