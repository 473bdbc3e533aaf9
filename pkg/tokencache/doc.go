// Package tokencache persists bearer tokens between runs so that interactive
// logins (device code flow) and password logins are not repeated on every
// export.
//
// Two stores are provided:
//
//   - FileStore keeps every entry in a single JSON file (".token_cache.json"
//     by default) written with mode 0600.
//   - RedisStore keeps entries in Redis with a TTL equal to the entry's
//     retention, for shared cron hosts.
//
// # Basic Usage
//
//	store := tokencache.NewFileStore(".token_cache.json")
//
//	key := tokencache.Key{
//		Source:   "matching-materials",
//		ClientID: clientID,
//		Scopes:   []string{"https://graph.microsoft.com/User.Read"},
//	}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, tokencache.ErrCacheMiss) {
//		// acquire a new token
//	}
//
// # Metrics
//
//   - matexport_token_cache_hits_total{backend}
//   - matexport_token_cache_misses_total{backend}
//   - matexport_token_cache_errors_total{backend, operation}
package tokencache
