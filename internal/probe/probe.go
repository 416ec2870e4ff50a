// Package probe checks whether instance bot endpoints are reachable by
// dialing their websocket URLs on a schedule.
package probe

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"nhooyr.io/websocket"

	"github.com/you/napgram-console/internal/store"
)

// Status of one instance endpoint.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Lister supplies the instances to probe.
type Lister interface {
	ListInstances(ctx context.Context) ([]store.Instance, error)
}

type Prober struct {
	lister  Lister
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	status map[int64]Status

	cron *cron.Cron
}

func New(lister Lister, dialTimeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &Prober{
		lister:  lister,
		timeout: dialTimeout,
		logger:  logger,
		status:  make(map[int64]Status),
	}
}

// Start schedules RunOnce at the given interval ("30s", "2m", ...) until
// Stop is called. The first sweep runs immediately.
func (p *Prober) Start(ctx context.Context, interval string) error {
	c := cron.New()
	if _, err := c.AddFunc("@every "+strings.TrimSpace(interval), func() {
		sweep, cancel := context.WithTimeout(ctx, p.timeout*4)
		defer cancel()
		p.RunOnce(sweep)
	}); err != nil {
		return err
	}
	p.cron = c
	c.Start()

	go func() {
		first, cancel := context.WithTimeout(ctx, p.timeout*4)
		defer cancel()
		p.RunOnce(first)
	}()
	return nil
}

func (p *Prober) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

// RunOnce probes every instance once and records the results.
func (p *Prober) RunOnce(ctx context.Context) {
	instances, err := p.lister.ListInstances(ctx)
	if err != nil {
		p.logger.Error("probe sweep: list instances", "err", err)
		return
	}

	var wg sync.WaitGroup
	for _, inst := range instances {
		wg.Add(1)
		go func(inst store.Instance) {
			defer wg.Done()
			status := p.Check(ctx, inst.QQBot.WSURL)
			p.mu.Lock()
			p.status[inst.ID] = status
			p.mu.Unlock()
		}(inst)
	}
	wg.Wait()
}

// Check dials one websocket URL. An endpoint that completes the handshake
// is online; a failed dial is offline; no URL at all is unknown.
func (p *Prober) Check(ctx context.Context, wsURL string) Status {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		return StatusUnknown
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		return StatusOffline
	}
	_ = conn.Close(websocket.StatusNormalClosure, "probe")
	return StatusOnline
}

// StatusFor returns the last probed status for an instance; instances not
// yet swept report unknown.
func (p *Prober) StatusFor(instanceID int64) Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.status[instanceID]; ok {
		return s
	}
	return StatusUnknown
}
