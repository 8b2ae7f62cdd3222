package session

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rentagg/feedbot/internal/models"
)

// Language cache configuration constants
const (
	// LanguageCacheExpiration keeps a preference in memory effectively for
	// the process lifetime; reads are authoritative within the process.
	LanguageCacheExpiration = gocache.NoExpiration
	// LanguageCacheCleanupInterval is unused with NoExpiration but required
	// by the cache constructor.
	LanguageCacheCleanupInterval = 10 * time.Minute
	// languagePersistTimeout bounds the background durability write.
	languagePersistTimeout = 15 * time.Second
)

// LanguagePersister is the durable side of language preferences. Both
// operations are best-effort: pass/fail results, no propagated errors.
type LanguagePersister interface {
	SaveLocale(ctx context.Context, userID int64, loc models.Locale) bool
	LoadLocale(ctx context.Context, userID int64) (models.Locale, bool)
}

// LanguageResolver resolves a user's locale: in-memory cache first, durable
// store second, configured default last. Writes go to the cache
// synchronously (authoritative for the process lifetime) and to the durable
// store asynchronously; a crash between the two loses only durability, not
// correctness of the current session.
type LanguageResolver struct {
	cache        *gocache.Cache
	persister    LanguagePersister
	defaultLoc   models.Locale
	asyncPersist bool
}

// NewLanguageResolver creates a resolver with the given durable store and
// default locale. A nil persister disables durability (used in tests).
func NewLanguageResolver(persister LanguagePersister, defaultLoc models.Locale) *LanguageResolver {
	slog.Debug("Creating LanguageResolver", "default", defaultLoc)
	return &LanguageResolver{
		cache:        gocache.New(LanguageCacheExpiration, LanguageCacheCleanupInterval),
		persister:    persister,
		defaultLoc:   defaultLoc,
		asyncPersist: true,
	}
}

// SetSynchronousPersist makes durability writes block (for tests).
func (r *LanguageResolver) SetSynchronousPersist() {
	r.asyncPersist = false
}

// Set records the user's locale choice. The cache write is synchronous; the
// durability write is dispatched in the background and its failure only
// logged.
func (r *LanguageResolver) Set(ctx context.Context, userID int64, loc models.Locale) {
	r.cache.Set(cacheKey(userID), loc, gocache.NoExpiration)
	slog.Debug("LanguageResolver cached locale", "userID", userID, "locale", loc)

	if r.persister == nil {
		return
	}
	persist := func() {
		pctx, cancel := context.WithTimeout(context.Background(), languagePersistTimeout)
		defer cancel()
		if !r.persister.SaveLocale(pctx, userID, loc) {
			slog.Warn("LanguageResolver durability write failed", "userID", userID, "locale", loc)
		}
	}
	if r.asyncPersist {
		go persist()
	} else {
		persist()
	}
}

// Resolve returns the user's locale: cache, then durable store, then the
// configured default.
func (r *LanguageResolver) Resolve(ctx context.Context, userID int64) models.Locale {
	if v, ok := r.cache.Get(cacheKey(userID)); ok {
		if loc, ok := v.(models.Locale); ok {
			return loc
		}
	}
	if r.persister != nil {
		if loc, ok := r.persister.LoadLocale(ctx, userID); ok {
			r.cache.Set(cacheKey(userID), loc, gocache.NoExpiration)
			slog.Debug("LanguageResolver restored locale from store", "userID", userID, "locale", loc)
			return loc
		}
	}
	return r.defaultLoc
}

func cacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
