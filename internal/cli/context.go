// Package cli holds the planctl subcommands.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/planner"
)

// Catalog is the part of *catalog.Loader the commands use.
type Catalog interface {
	Load(ctx context.Context, req catalog.LoadRequest) (*catalog.LoadResult, error)
	Status(ctx context.Context) (*catalog.Status, error)
}

type Context struct {
	Catalog Catalog
	Runner  *planner.Runner
	Store   cache.Store
	Out     io.Writer
	Timeout time.Duration
}

func (c *Context) deadline() (context.Context, context.CancelFunc) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (c *Context) printJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
