package treefs

import (
	"context"
	"fmt"
	"iter"
)

// WalkEntry is one visited directory. When walking top-down, callers may
// replace or filter Dirs before continuing the loop to prune the traversal.
type WalkEntry struct {
	Path  string
	Dirs  []string
	Files []string
}

// Walk traverses the tree below top depth-first, in listing order. With
// topdown a directory is yielded before its subdirectories, otherwise after.
//
// The sequence is lazy: each directory is listed only when the loop reaches
// it, and ranging over the sequence again walks the remote tree again. A
// listing failure is yielded once as an error and ends the walk.
func (c *Client) Walk(ctx context.Context, top string, topdown bool) iter.Seq2[*WalkEntry, error] {
	return func(yield func(*WalkEntry, error) bool) {
		c.walk(ctx, top, topdown, yield)
	}
}

func (c *Client) walk(ctx context.Context, top string, topdown bool, yield func(*WalkEntry, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield(nil, fmt.Errorf("walk %q: %w", top, err))
		return false
	}

	objs, err := c.List(ctx, top)
	if err != nil {
		yield(nil, fmt.Errorf("walk %q: %w", top, err))
		return false
	}

	entry := &WalkEntry{Path: top, Dirs: []string{}, Files: []string{}}
	for i := range objs {
		if IsDir(&objs[i]) {
			entry.Dirs = append(entry.Dirs, objs[i].Name)
		} else {
			entry.Files = append(entry.Files, objs[i].Name)
		}
	}

	if topdown && !yield(entry, nil) {
		return false
	}
	for _, name := range entry.Dirs {
		if !c.walk(ctx, Join(top, name), topdown, yield) {
			return false
		}
	}
	if !topdown {
		return yield(entry, nil)
	}
	return true
}
