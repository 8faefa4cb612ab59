package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Matching engine constants
const (
	// DefaultMatchTimeBudget is the default wall-clock budget for one matching run
	DefaultMatchTimeBudget = 30 * time.Second

	// DefaultSyncCorpusLimit is the corpus size above which an initial match
	// or recount runs asynchronously instead of inline with the request
	DefaultSyncCorpusLimit = 10000

	// DefaultCorpusRetryAttempts is the bounded retry count for corpus reads
	DefaultCorpusRetryAttempts = 3

	// DefaultCorpusRetryBackoff is the base backoff between corpus read retries
	DefaultCorpusRetryBackoff = 500 * time.Millisecond

	// CorpusBatchSize is the number of guests fetched per corpus page
	CorpusBatchSize = 1000
)
