package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

type CatalogState int

const (
	CatalogUninitialized CatalogState = iota
	CatalogLoading
	CatalogReady
)

func (s CatalogState) String() string {
	switch s {
	case CatalogLoading:
		return "loading"
	case CatalogReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

const (
	DefaultOrganizationCatalogSize = 20

	catalogLoadTimeout = 30 * time.Second
)

// OrganizationCatalog holds the bounded list of well-known organizations.
// It is loaded lazily on first use and kept for the process lifetime.
// A failed load leaves the catalog uninitialized so the next call retries.
type OrganizationCatalog struct {
	source ports.OrganizationSource
	size   int

	group singleflight.Group

	mu      sync.RWMutex
	state   CatalogState
	names   []string
	members map[string]struct{}
}

func NewOrganizationCatalog(source ports.OrganizationSource, size int) *OrganizationCatalog {
	if size <= 0 {
		size = DefaultOrganizationCatalogSize
	}
	return &OrganizationCatalog{source: source, size: size}
}

func (c *OrganizationCatalog) State() CatalogState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Contains reports whether name is an exact catalog member.
func (c *OrganizationCatalog) Contains(ctx context.Context, name string) (bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[name]
	return ok, nil
}

func (c *OrganizationCatalog) Names(ctx context.Context) ([]string, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out, nil
}

func (c *OrganizationCatalog) ensureLoaded(ctx context.Context) error {
	if c.State() == CatalogReady {
		return nil
	}

	// The shared load is detached from the caller that started it; each
	// caller stops waiting when its own context ends.
	ch := c.group.DoChan("catalog", func() (any, error) {
		c.mu.Lock()
		if c.state == CatalogReady {
			c.mu.Unlock()
			return nil, nil
		}
		c.state = CatalogLoading
		c.mu.Unlock()

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogLoadTimeout)
		defer cancel()
		names, err := c.source.ListOrganizations(loadCtx, c.size)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state = CatalogUninitialized
			return nil, fmt.Errorf("load organization catalog: %w", err)
		}
		if len(names) > c.size {
			names = names[:c.size]
		}
		c.names = names
		c.members = make(map[string]struct{}, len(names))
		for _, name := range names {
			c.members[name] = struct{}{}
		}
		c.state = CatalogReady
		slog.Info("organization_catalog_loaded", "organizations", len(names))
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
