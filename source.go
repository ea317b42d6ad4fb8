package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type DirSource struct {
	name string
	fsys fs.FS
}

func NewDirSource(name string, fsys fs.FS) *DirSource {
	return &DirSource{name: name, fsys: fsys}
}

func (s *DirSource) Name() string { return s.name }

func (s *DirSource) Read(_ context.Context, file string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		return nil, err
	}
	return decompress(file, data)
}

func (s *DirSource) List(_ context.Context, dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	files := make([]string, 0)
	err := fs.WalkDir(s.fsys, dir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// OpenSource picks the source implementation from the location: s3://bucket/prefix
// for object storage, a local directory otherwise.
func OpenSource(ctx context.Context, location string, s3 S3Config) (Source, error) {
	if strings.HasPrefix(location, "s3://") {
		return NewS3Source(ctx, location, s3)
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %v: %w", location, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %v is not a directory", location)
	}
	return NewDirSource(location, os.DirFS(location)), nil
}

func readCandidates(ctx context.Context, source Source, file string) ([]byte, string, error) {
	var lastErr error
	for _, candidate := range []string{file, file + ".gz", file + ".zst"} {
		data, err := source.Read(ctx, candidate)
		if err == nil {
			return data, candidate, nil
		}
		lastErr = err
		if !isNotExist(err) {
			return nil, candidate, err
		}
	}
	return nil, file, lastErr
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func decompress(file string, data []byte) ([]byte, error) {
	switch path.Ext(file) {
	case ".gz":
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip resource %v: %w", file, err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case ".zst":
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		decoded, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd resource %v: %w", file, err)
		}
		return decoded, nil
	}
	return data, nil
}

// StripCompression removes a trailing compression extension from a resource path.
func StripCompression(file string) string {
	for _, extension := range []string{".gz", ".zst"} {
		if strings.HasSuffix(file, extension) {
			return strings.TrimSuffix(file, extension)
		}
	}
	return file
}
