// Package accounts keeps the tracked accounts in a JSON file that may also
// be edited by hand or by another process while the registry is open.
package accounts

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

var (
	// ErrNotFound is returned when no tracked account matches a reference.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when adding an account ID that is already tracked.
	ErrDuplicate = errors.New("account already tracked")
)

// EventKind identifies what happened to the registry.
type EventKind int

const (
	Loaded EventKind = iota
	Reloaded
	Added
	Removed
	Switched
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case Reloaded:
		return "reloaded"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Switched:
		return "switched"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is published on every change to the tracked accounts.
type Event struct {
	Kind    EventKind
	Account *models.Account
	Err     error
}

const eventBuffer = 64

// Registry is the set of tracked accounts plus the one selected as active.
type Registry struct {
	file *file

	mu     sync.RWMutex
	list   []models.Account
	active string

	events    chan Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open loads the registry at path, creating an empty file when missing,
// and starts watching it for outside edits.
func Open(path string) (*Registry, error) {
	if path == "" {
		return nil, errors.New("accounts path is required")
	}

	f, err := newFile(path)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		file:   f,
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	doc, err := f.read()
	switch {
	case err == nil:
		r.list, r.active = doc.Accounts, doc.ActiveAccount
	case errors.Is(err, errMissing):
		if err := f.write(document{}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	w, err := f.watch()
	if err != nil {
		return nil, err
	}
	go r.watchLoop(w, reloadDelay)

	r.publish(Event{Kind: Loaded})
	return r, nil
}

// Path is the location of the backing file.
func (r *Registry) Path() string { return r.file.path }

// Events delivers registry changes. Old events are dropped when the
// reader falls behind.
func (r *Registry) Events() <-chan Event { return r.events }

// List returns a copy of the tracked accounts in insertion order.
func (r *Registry) List() []models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.list)
}

// Len is the number of tracked accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// Lookup finds an account by ID or key.
func (r *Registry) Lookup(ref string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.find(ref)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	acc := r.list[i]
	return &acc, nil
}

// Active returns the selected account, falling back to the first tracked
// one. It is nil when nothing is tracked.
func (r *Registry) Active() *models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.find(r.active)
	if i < 0 && len(r.list) > 0 {
		i = 0
	}
	if i < 0 {
		return nil
	}
	acc := r.list[i]
	return &acc
}

// Use selects the active account by ID or key.
func (r *Registry) Use(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(ref)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	prev := r.active
	r.active = r.list[i].ID
	if err := r.persist(); err != nil {
		r.active = prev
		return err
	}

	acc := r.list[i]
	r.publish(Event{Kind: Switched, Account: &acc})
	return nil
}

// Add starts tracking an account. The first account added becomes active.
func (r *Registry) Add(acc models.Account) error {
	if acc.ID == "" {
		return errors.New("account id is required")
	}
	if acc.AddedAt.IsZero() {
		acc.AddedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.find(acc.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, acc.ID)
	}

	prevActive := r.active
	r.list = append(r.list, acc)
	if len(r.list) == 1 {
		r.active = acc.ID
	}
	if err := r.persist(); err != nil {
		r.list = r.list[:len(r.list)-1]
		r.active = prevActive
		return err
	}

	r.publish(Event{Kind: Added, Account: &acc})
	return nil
}

// Remove stops tracking an account. Removing the active account makes the
// next remaining one active.
func (r *Registry) Remove(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(ref)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	prevList, prevActive := r.list, r.active
	removed := r.list[i]
	r.list = slices.Delete(slices.Clone(r.list), i, i+1)
	if r.active == removed.ID {
		r.active = ""
		if len(r.list) > 0 {
			r.active = r.list[0].ID
		}
	}
	if err := r.persist(); err != nil {
		r.list, r.active = prevList, prevActive
		return err
	}

	r.publish(Event{Kind: Removed, Account: &removed})
	return nil
}

// Close stops the watcher. It is safe to call more than once.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done
		r.closeErr = r.file.closeWatch()
	})
	return r.closeErr
}

// find returns the index of ref, matched against ID then key. Callers hold mu.
func (r *Registry) find(ref string) int {
	if ref == "" {
		return -1
	}
	if i := slices.IndexFunc(r.list, func(a models.Account) bool { return a.ID == ref }); i >= 0 {
		return i
	}
	return slices.IndexFunc(r.list, func(a models.Account) bool { return a.Key == ref })
}

// persist writes the current state. Callers hold mu.
func (r *Registry) persist() error {
	return r.file.write(document{Accounts: r.list, ActiveAccount: r.active})
}

// replace swaps in a freshly read document.
func (r *Registry) replace(doc document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list, r.active = doc.Accounts, doc.ActiveAccount
}

// publish never blocks: when the buffer is full the oldest event is dropped.
func (r *Registry) publish(ev Event) {
	for {
		select {
		case r.events <- ev:
			return
		default:
		}
		select {
		case <-r.events:
		default:
		}
	}
}
