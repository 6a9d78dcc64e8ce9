package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dentallab/internal/domain/orders"
	"dentallab/pkg/logger"
)

// StageTemplatesChannel is the NOTIFY channel fired when an organization's
// stage templates change. The payload is the organization id.
const StageTemplatesChannel = "stage_templates_changed"

// StageTemplateCache keeps each organization's production pipeline in memory
// and drops an entry when PostgreSQL announces a change.
type StageTemplateCache struct {
	pool   *pgxpool.Pool
	source orders.StageTemplateSource

	mu    sync.RWMutex
	byOrg map[uuid.UUID][]orders.StageTemplate
	// gen advances on every invalidation. A load that overlaps one is not stored.
	gen uint64

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewStageTemplateCache wraps source. With a nil pool entries are never
// invalidated by the database and Start is a no-op.
func NewStageTemplateCache(pool *pgxpool.Pool, source orders.StageTemplateSource) *StageTemplateCache {
	return &StageTemplateCache{
		pool:   pool,
		source: source,
		byOrg:  make(map[uuid.UUID][]orders.StageTemplate),
	}
}

// StageTemplate returns the cached pipeline, loading it on a miss.
func (c *StageTemplateCache) StageTemplate(ctx context.Context, orgID uuid.UUID) ([]orders.StageTemplate, error) {
	c.mu.RLock()
	tpl, ok := c.byOrg[orgID]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return append([]orders.StageTemplate(nil), tpl...), nil
	}

	tpl, err := c.source.StageTemplate(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.byOrg[orgID] = tpl
	}
	c.mu.Unlock()
	return append([]orders.StageTemplate(nil), tpl...), nil
}

// Start begins listening for invalidations.
func (c *StageTemplateCache) Start(ctx context.Context) {
	if c.pool == nil {
		return
	}
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "stage template cache started")
}

// Stop ends the listener and waits for it.
func (c *StageTemplateCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "stage template cache stopped")
}

func (c *StageTemplateCache) listenLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			c.sleep(time.Second)
			continue
		}
		if _, err := conn.Exec(c.ctx, "LISTEN "+StageTemplatesChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "channel", StageTemplatesChannel, "error", err)
			conn.Release()
			c.sleep(time.Second)
			continue
		}
		// Anything cached before LISTEN took effect may be stale.
		c.invalidate("")
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *StageTemplateCache) waitForNotifications(conn *pgxpool.Conn) {
	for c.ctx.Err() == nil {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()
		if err != nil {
			if c.ctx.Err() != nil || ctx.Err() != nil {
				continue
			}
			logger.Warn(c.ctx, "LISTEN connection lost", "error", err)
			return
		}
		c.invalidate(n.Payload)
	}
}

// invalidate drops one organization, or everything when payload is not an id.
func (c *StageTemplateCache) invalidate(payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	orgID, err := uuid.Parse(strings.TrimSpace(payload))
	if err != nil {
		c.byOrg = make(map[uuid.UUID][]orders.StageTemplate)
		return
	}
	delete(c.byOrg, orgID)
}

func (c *StageTemplateCache) sleep(d time.Duration) {
	select {
	case <-c.ctx.Done():
	case <-time.After(d):
	}
}

var _ orders.StageTemplateSource = (*StageTemplateCache)(nil)
