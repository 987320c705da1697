// Package health reports whether each external integration is usable.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/cache"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/oauth"
)

// Integration is the health of one external service.
type Integration struct {
	Service    string         `json:"service"`
	Configured bool           `json:"configured"`
	Connected  bool           `json:"connected"`
	Healthy    bool           `json:"healthy"`
	Error      string         `json:"error,omitempty"`
	Account    string         `json:"account,omitempty"`
	LastSync   *time.Time     `json:"last_sync,omitempty"`
	LastStatus string         `json:"last_sync_status,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Report aggregates every integration. Healthy is true when every configured
// integration is connected and answers its probe.
type Report struct {
	Healthy      bool          `json:"healthy"`
	CheckedAt    time.Time     `json:"checked_at"`
	Integrations []Integration `json:"integrations"`
}

// Connection is the part of an OAuth service health needs.
type Connection interface {
	Key() string
	IsConfigured() bool
	Status(ctx context.Context) (oauth.Status, error)
}

// Probe performs one cheap authenticated call and returns provider specific details.
type Probe func(ctx context.Context) (map[string]any, error)

// Checker checks one integration.
type Checker struct {
	conn  Connection
	probe Probe
	db    *gorm.DB
}

// NewChecker pairs a connection with its probe. db may be nil, in which case
// the last sync run is not reported.
func NewChecker(conn Connection, probe Probe, db *gorm.DB) *Checker {
	return &Checker{conn: conn, probe: probe, db: db}
}

// Check never returns an error: failures end up in Integration.Error.
func (c *Checker) Check(ctx context.Context) Integration {
	out := Integration{Service: c.conn.Key(), Configured: c.conn.IsConfigured()}
	c.lastSync(ctx, &out)
	if !out.Configured {
		out.Error = "not configured"
		return out
	}
	st, err := c.conn.Status(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if !st.Connected {
		out.Error = oauth.ErrNotConnected.Error()
		return out
	}
	out.Connected = true
	out.Account = st.AccountEmail
	if out.Account == "" {
		out.Account = st.AccountName
	}
	if c.probe == nil {
		out.Healthy = true
		return out
	}
	details, err := c.probe(ctx)
	out.Details = details
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Healthy = true
	return out
}

func (c *Checker) lastSync(ctx context.Context, out *Integration) {
	if c.db == nil {
		return
	}
	var last models.SyncLog
	err := c.db.WithContext(ctx).Where("type = ?", out.Service).Order("created_at DESC, id DESC").First(&last).Error
	if err != nil {
		return
	}
	at := last.CreatedAt
	out.LastSync = &at
	out.LastStatus = last.Status
}

const reportKey = "all"

// Service caches the aggregate report.
type Service struct {
	checkers []*Checker
	cache    *cache.TTL[string, Report]
	log      *zap.Logger
	now      func() time.Time
}

// NewService checks every checker in order. A ttl of zero disables caching.
func NewService(ttl time.Duration, log *zap.Logger, checkers ...*Checker) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{checkers: checkers, log: log, now: time.Now}
	s.cache = cache.New(func(ctx context.Context, _ string) (Report, error) {
		return s.check(ctx), nil
	}, ttl)
	return s
}

// Report returns the cached report unless force is set or it has expired.
func (s *Service) Report(ctx context.Context, force bool) Report {
	// the loader never fails
	if force {
		r, _ := s.cache.Refresh(ctx, reportKey)
		return r
	}
	r, _ := s.cache.Get(ctx, reportKey)
	return r
}

// Invalidate drops the cached report, e.g. after connect or disconnect.
func (s *Service) Invalidate() { s.cache.Invalidate(reportKey) }

func (s *Service) check(ctx context.Context) Report {
	r := Report{Healthy: true, CheckedAt: s.now()}
	for _, c := range s.checkers {
		in := c.Check(ctx)
		if in.Configured && !in.Healthy {
			r.Healthy = false
			s.log.Warn("integration unhealthy", zap.String("service", in.Service), zap.String("error", in.Error))
		}
		r.Integrations = append(r.Integrations, in)
	}
	return r
}
