package main

import "context"

// Source hands out raw resource content. Paths are slash separated and
// relative to the source root; missing resources wrap fs.ErrNotExist.
type Source interface {
	Name() string
	Read(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, dir string) ([]string, error)
}

type QueryLoader interface {
	LoadFromFile(ctx context.Context, name string, attributes Attributes) (*Query, error)
}
