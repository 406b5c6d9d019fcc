package clean

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// SessionDeleter removes a session record from the KV store
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
}

// StoreCleaner adapts the session store to the cleaner job interface
type StoreCleaner struct {
	store SessionDeleter
}

// NewStoreCleaner creates session record cleaner
func NewStoreCleaner(store SessionDeleter) (*StoreCleaner, error) {
	if store == nil {
		return nil, fmt.Errorf("no sessions store")
	}
	return &StoreCleaner{store: store}, nil
}

// Clean drops the session record
func (sc *StoreCleaner) Clean(ctx context.Context, id string) error {
	goapp.Log.Info().Str("ID", goapp.Sanitize(id)).Msg("dropping session record")
	return sc.store.Delete(ctx, id)
}

// ExpiredLister returns IDs of audio objects older than the given age
type ExpiredLister interface {
	ExpiredIDs(ctx context.Context, expire time.Duration) ([]string, error)
}

// FileIDsProvider feeds the clean timer with expired session IDs from file storage
type FileIDsProvider struct {
	lister ExpiredLister
	expire time.Duration
}

// NewFileIDsProvider creates expired IDs provider
func NewFileIDsProvider(lister ExpiredLister, expire time.Duration) (*FileIDsProvider, error) {
	if lister == nil {
		return nil, fmt.Errorf("no expired lister")
	}
	if expire <= 0 {
		return nil, fmt.Errorf("wrong expire duration %v", expire)
	}
	return &FileIDsProvider{lister: lister, expire: expire}, nil
}

// GetExpired returns IDs to clean
func (p *FileIDsProvider) GetExpired(ctx context.Context) ([]string, error) {
	goapp.Log.Info().Dur("older than", p.expire).Msg("selecting expired sessions")
	return p.lister.ExpiredIDs(ctx, p.expire)
}
