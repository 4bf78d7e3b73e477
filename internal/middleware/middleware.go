package middleware

import (
	"net/netip"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/database"
	"github.com/mailblast/mailblast/internal/logger"
	"github.com/mailblast/mailblast/internal/session"
)

// Middleware holds all HTTP middleware
type Middleware struct {
	rdb      *database.Redis
	log      *logger.Logger
	cfg      *config.Config
	sessions *session.Manager
	proxies  []netip.Prefix
}

// New creates a new Middleware instance. rdb may be nil; rate limiting is then disabled.
// Trusted proxy entries that fail to parse are logged and skipped; Config.Validate reports them.
func New(rdb *database.Redis, log *logger.Logger, cfg *config.Config, sessions *session.Manager) *Middleware {
	proxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring trusted proxies")
		proxies = nil
	}
	return &Middleware{
		rdb:      rdb,
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		proxies:  proxies,
	}
}
