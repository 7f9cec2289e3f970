package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/underlog/underlog"
	"github.com/underlog/underlog/internal/store"
)

// projectBlobs adapts one project's image table to the renderer's blob
// interface, translating the store's not-found sentinel into the one
// the dimension cache distinguishes placeholders by.
type projectBlobs struct {
	store     *store.Store
	projectID int64
}

func (p projectBlobs) GetImage(ctx context.Context, name string) ([]byte, error) {
	blob, err := p.store.GetImage(ctx, p.projectID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", underlog.ErrImageNotFound, name)
	}
	return blob, err
}

// ResolverFactory returns the per-project image resolver the render
// service uses to sniff stored image dimensions.
func ResolverFactory(st *store.Store) func(projectID int64) underlog.ImageResolver {
	return func(projectID int64) underlog.ImageResolver {
		return &underlog.BlobResolver{Source: projectBlobs{store: st, projectID: projectID}}
	}
}
