package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/catalog"
)

type RefreshCmd struct {
	Term     string   `help:"Term code to refresh; newest term when empty."`
	Subjects []string `help:"Subject codes to refresh; configured defaults when empty." sep:","`
}

func (c *RefreshCmd) Run(ctx *Context) error {
	runCtx, cancel := ctx.deadline()
	defer cancel()

	result, err := ctx.Catalog.Load(runCtx, catalog.LoadRequest{
		Term:     strings.TrimSpace(c.Term),
		Subjects: c.Subjects,
		Refresh:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	fmt.Fprintf(ctx.Out, "Refreshed term %s: %d courses from %d subjects\n",
		result.Term, result.Index.Len(), len(result.Subjects))
	if len(result.FailedSubjects) > 0 {
		fmt.Fprintf(ctx.Out, "Failed subjects: %s\n", strings.Join(result.FailedSubjects, ", "))
	}
	return nil
}

type StatusCmd struct {
	Keys bool `help:"List every cached catalog key."`
}

func (c *StatusCmd) Run(ctx *Context) error {
	runCtx, cancel := ctx.deadline()
	defer cancel()

	status, err := ctx.Catalog.Status(runCtx)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "Cached subjects: %d\n", status.CachedSubjects)
	fmt.Fprintf(ctx.Out, "Cached catalogs: %d\n", status.CachedCatalogs)
	for _, prefix := range []string{cache.PrefixPlan, cache.PrefixRequirements, cache.PrefixDescription} {
		keys, err := ctx.Store.Keys(runCtx, prefix)
		if err != nil {
			return fmt.Errorf("failed to list %s keys: %w", prefix, err)
		}
		fmt.Fprintf(ctx.Out, "Cached %s entries: %d\n", strings.TrimSuffix(prefix, ":"), len(keys))
	}
	if c.Keys {
		for _, key := range status.Keys {
			fmt.Fprintln(ctx.Out, key)
		}
	}
	return nil
}

type CleanupCmd struct {
	MinTTL time.Duration `name:"min-ttl" help:"Delete keys expiring sooner than this." default:"10m"`
}

func (c *CleanupCmd) Run(ctx *Context) error {
	cleaner, ok := ctx.Store.(cache.Cleaner)
	if !ok {
		return errors.New("cache store does not support cleanup")
	}

	runCtx, cancel := ctx.deadline()
	defer cancel()

	deleted, err := cleaner.Cleanup(runCtx, cache.Prefixes, c.MinTTL)
	if err != nil {
		return fmt.Errorf("cleanup failed after %d deletions: %w", deleted, err)
	}
	fmt.Fprintf(ctx.Out, "Deleted %d cache entries expiring within %s\n", deleted, c.MinTTL)
	return nil
}
