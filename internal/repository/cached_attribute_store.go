package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domrepo "MarketForge/internal/domain/repository"
	pkgcache "MarketForge/pkg/cache"
	applogger "MarketForge/pkg/logger"
)

const sectorsTTL = 12 * time.Hour

// CachedAttributeStore layers a cache over sector lookups. Sector mappings
// change rarely, so a stale read is harmless; cache errors degrade to the
// underlying store.
type CachedAttributeStore struct {
	inner domrepo.AttributeStore
	cache pkgcache.Service
	l     *applogger.Logger
}

func NewCachedAttributeStore(inner domrepo.AttributeStore, cache pkgcache.Service) *CachedAttributeStore {
	return &CachedAttributeStore{inner: inner, cache: cache}
}

// SetLogger injects a structured logger.
func (s *CachedAttributeStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CachedAttributeStore) GetSectors(ctx context.Context, symbols []string) (map[string]string, error) {
	key := sectorsKey(symbols)

	var cached map[string]string
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, pkgcache.ErrCacheMiss) && s.l != nil {
		s.l.Warn("sector cache get error", applogger.Error(err))
	}

	sectors, err := s.inner.GetSectors(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, sectors, sectorsTTL); err != nil && s.l != nil {
		s.l.Warn("sector cache set error", applogger.Error(err))
	}
	return sectors, nil
}

func sectorsKey(symbols []string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return pkgcache.GenerateKey("sectors", strings.Join(sorted, ","))
}

var _ domrepo.AttributeStore = (*CachedAttributeStore)(nil)
