// Package browser manages a pool of headless Chromium instances used by the
// extraction agent. Browsers are recycled after an age or request ceiling so
// long-running crawls do not accumulate leaked renderer state.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/oklog/ulid/v2"

	"github.com/nineylabs/placefeed/internal/config"
)

var ErrPoolClosed = errors.New("browser pool is closed")

// Instance wraps a rod.Browser with pool bookkeeping.
type Instance struct {
	ID           string
	Browser      *rod.Browser
	InUse        bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
	RequestCount int
}

// Pool hands out browser instances up to a fixed size, blocking acquirers
// when everything is busy.
type Pool struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	waiting   []chan *Instance
	cfg       *config.Config
	logger    *slog.Logger
	closed    bool
}

func NewPool(cfg *config.Config, logger *slog.Logger) *Pool {
	return &Pool{
		instances: make(map[string]*Instance),
		cfg:       cfg,
		logger:    logger.With("component", "browser"),
	}
}

// Warmup makes sure Chromium is on disk so the first crawl does not pay the
// download. Call it once at startup.
func (p *Pool) Warmup(ctx context.Context) error {
	if p.cfg.ChromePath != "" {
		p.logger.Info("using configured chrome binary", "path", p.cfg.ChromePath)
		return nil
	}
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return err
	}
	p.logger.Info("chromium available", "path", path)
	return nil
}

// Acquire returns an available browser, launching a new one while the pool
// has capacity. When the pool is full it blocks until a browser is released
// or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	for _, inst := range p.instances {
		if !inst.InUse && p.healthy(inst) {
			inst.InUse = true
			inst.LastUsedAt = time.Now()
			p.mu.Unlock()
			return inst, nil
		}
	}

	if len(p.instances) < p.cfg.BrowserPoolSize {
		inst, err := p.launch()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.instances[inst.ID] = inst
		p.mu.Unlock()
		return inst, nil
	}

	wait := make(chan *Instance, 1)
	p.waiting = append(p.waiting, wait)
	p.mu.Unlock()

	select {
	case inst, ok := <-wait:
		if !ok {
			return nil, ErrPoolClosed
		}
		return inst, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, ch := range p.waiting {
			if ch == wait {
				p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release hands a browser back, recycling it when it has hit the age or
// request ceiling.
func (p *Pool) Release(inst *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.shutdown(inst)
		return
	}

	inst.InUse = false
	inst.RequestCount++
	inst.LastUsedAt = time.Now()

	if time.Since(inst.CreatedAt) > p.cfg.BrowserMaxAge || inst.RequestCount >= p.cfg.BrowserMaxRequests {
		p.recycle(inst)
		return
	}

	if len(p.waiting) > 0 {
		next := p.waiting[0]
		p.waiting = p.waiting[1:]
		inst.InUse = true
		inst.LastUsedAt = time.Now()
		next <- inst
	}
}

// Close tears down every browser and fails all waiters.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, inst := range p.instances {
		p.shutdown(inst)
	}
	p.instances = make(map[string]*Instance)

	for _, ch := range p.waiting {
		close(ch)
	}
	p.waiting = nil
}

// StartCleanup runs until ctx is done, closing browsers idle past the
// configured timeout.
func (p *Pool) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.closeIdle()
		}
	}
}

func (p *Pool) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for id, inst := range p.instances {
		if !inst.InUse && time.Since(inst.LastUsedAt) > p.cfg.BrowserIdleTimeout {
			p.logger.Info("closing idle browser", "id", id, "idle", time.Since(inst.LastUsedAt))
			p.shutdown(inst)
			delete(p.instances, id)
		}
	}
}

func (p *Pool) launch() (*Instance, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("window-size", "1920,1080").
		Set("lang", "ko-KR,ko,en-US,en")

	if p.cfg.ChromePath != "" {
		l = l.Bin(p.cfg.ChromePath)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:         ulid.Make().String(),
		Browser:    b,
		InUse:      true,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}
	p.logger.Info("browser launched", "id", inst.ID)
	return inst, nil
}

func (p *Pool) healthy(inst *Instance) bool {
	if time.Since(inst.CreatedAt) > p.cfg.BrowserMaxAge {
		return false
	}
	if inst.RequestCount >= p.cfg.BrowserMaxRequests {
		return false
	}
	defer func() { recover() }()
	_, err := inst.Browser.Pages()
	return err == nil
}

// recycle closes a worn-out browser and replaces it in the background so a
// waiter is not stuck behind the relaunch.
func (p *Pool) recycle(inst *Instance) {
	p.logger.Info("recycling browser", "id", inst.ID, "age", time.Since(inst.CreatedAt), "requests", inst.RequestCount)
	p.shutdown(inst)
	delete(p.instances, inst.ID)

	go func() {
		replacement, err := p.launch()
		if err != nil {
			p.logger.Error("relaunching browser", "error", err)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed {
			p.shutdown(replacement)
			return
		}
		replacement.InUse = false
		p.instances[replacement.ID] = replacement

		if len(p.waiting) > 0 {
			next := p.waiting[0]
			p.waiting = p.waiting[1:]
			replacement.InUse = true
			replacement.LastUsedAt = time.Now()
			next <- replacement
		}
	}()
}

func (p *Pool) shutdown(inst *Instance) {
	if inst.Browser != nil {
		if err := inst.Browser.Close(); err != nil {
			p.logger.Warn("closing browser", "id", inst.ID, "error", err)
		}
	}
}
