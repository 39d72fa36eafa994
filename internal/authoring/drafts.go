package authoring

import (
	"context"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/kennan/folio/internal/storage/entity"
)

// DefaultIdleTimeout is how long an untouched wizard is kept.
const DefaultIdleTimeout = 2 * time.Hour

type draftKey struct {
	owner string
	key   string
}

type draftEntry struct {
	wizard  *Wizard
	touched time.Time
}

// Drafts keeps the open wizards of each admin session.
type Drafts struct {
	idle time.Duration
	now  func() time.Time

	mu    sync.Mutex
	items map[draftKey]*draftEntry
}

// NewDrafts returns an empty registry expiring wizards idle for longer than
// idle.
func NewDrafts(idle time.Duration) *Drafts {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Drafts{idle: idle, now: time.Now, items: map[draftKey]*draftEntry{}}
}

// Start opens a wizard on initial (nil for a new project) owned by owner and
// returns its key.
func (d *Drafts) Start(owner string, initial *entity.Project) (string, *Wizard) {
	key := ksid.NewID().String()
	w := NewWizard(initial, d.now())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[draftKey{owner, key}] = &draftEntry{wizard: w, touched: d.now()}
	return key, w
}

// Get returns the wizard owner opened under key.
func (d *Drafts) Get(owner, key string) (*Wizard, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.items[draftKey{owner, key}]
	if !ok {
		return nil, false
	}
	if d.now().Sub(e.touched) > d.idle {
		delete(d.items, draftKey{owner, key})
		return nil, false
	}
	e.touched = d.now()
	return e.wizard, true
}

// Discard drops a wizard.
func (d *Drafts) Discard(owner, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, draftKey{owner, key})
}

// Len returns the number of open wizards.
func (d *Drafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Sweep drops idle wizards and returns how many were dropped.
func (d *Drafts) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	now := d.now()
	for k, e := range d.items {
		if now.Sub(e.touched) > d.idle {
			delete(d.items, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (d *Drafts) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.Sweep()
		}
	}
}
