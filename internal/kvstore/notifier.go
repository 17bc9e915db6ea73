package kvstore

import "sync"

// Notifier broadcasts an advisory "storage updated" signal carrying only
// the entity kind that changed. Consumers re-read the store on signal;
// this is not an ordering or consistency mechanism.
type Notifier struct {
	mu   sync.Mutex
	subs []chan string
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Subscribe() <-chan string {
	n.mu.Lock()
	defer n.mu.Unlock()

	// buffered, so a slow consumer does not stall writers
	ch := make(chan string, 16)
	n.subs = append(n.subs, ch)
	return ch
}

// Notify never blocks: when a subscriber's buffer is full, the signal for
// it is dropped (it is advisory only).
func (n *Notifier) Notify(entityKind string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- entityKind:
		default:
		}
	}
}
