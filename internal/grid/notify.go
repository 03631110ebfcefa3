package grid

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounce is the coalescing window for change notifications.
const DefaultDebounce = 5 * time.Millisecond

// ListenerID identifies a registered change listener.
type ListenerID int

// notifier coalesces bursts of change notifications. The first non-instant
// broadcast arms a timer; later broadcasts inside the window ride along
// without re-arming it, so a steady stream of edits still notifies once per
// window.
type notifier struct {
	mu        sync.Mutex
	delay     time.Duration
	nextID    ListenerID
	listeners map[ListenerID]func()
	timer     *time.Timer
	armed     uint64
}

func newNotifier(delay time.Duration) *notifier {
	return &notifier{
		delay:     delay,
		listeners: make(map[ListenerID]func()),
	}
}

func (n *notifier) add(fn func()) ListenerID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.listeners[n.nextID] = fn
	return n.nextID
}

func (n *notifier) remove(id ListenerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, id)
}

func (n *notifier) broadcast(instant bool) {
	n.mu.Lock()
	if instant || n.delay <= 0 {
		if n.timer != nil {
			n.timer.Stop()
			n.timer = nil
		}
		fns := n.snapshotLocked()
		n.mu.Unlock()
		call(fns)
		return
	}
	if n.timer == nil {
		n.armed++
		gen := n.armed
		n.timer = time.AfterFunc(n.delay, func() { n.fire(gen) })
	}
	n.mu.Unlock()
}

// flush fires a pending notification now. It is a no-op when nothing is armed.
func (n *notifier) flush() {
	n.mu.Lock()
	if n.timer == nil {
		n.mu.Unlock()
		return
	}
	n.timer.Stop()
	n.timer = nil
	fns := n.snapshotLocked()
	n.mu.Unlock()
	call(fns)
}

func (n *notifier) pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timer != nil
}

// fire ignores timers that were stopped or superseded after they expired.
func (n *notifier) fire(gen uint64) {
	n.mu.Lock()
	if n.timer == nil || gen != n.armed {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	fns := n.snapshotLocked()
	n.mu.Unlock()
	call(fns)
}

// snapshotLocked returns listeners in registration order.
func (n *notifier) snapshotLocked() []func() {
	ids := make([]ListenerID, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), len(ids))
	for i, id := range ids {
		fns[i] = n.listeners[id]
	}
	return fns
}

func call(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

func (n *notifier) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.listeners = make(map[ListenerID]func())
}
