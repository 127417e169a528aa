package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
)

// readiness tracks which of the two viewer streams have reported at least
// once. Aggregation holds off until both have, so the conversation list
// never flashes a half-empty transient state right after mount. A stream
// that fails counts as ready-and-empty.
type readiness int

const (
	noneReady readiness = iota
	inboundReady
	outboundReady
	bothReady
)

func (r readiness) markInbound() readiness {
	switch r {
	case noneReady:
		return inboundReady
	case outboundReady:
		return bothReady
	}
	return r
}

func (r readiness) markOutbound() readiness {
	switch r {
	case noneReady:
		return outboundReady
	case inboundReady:
		return bothReady
	}
	return r
}

// ConversationAggregator maintains a live, ordered conversation list for one
// viewer. It consumes two full-snapshot streams (inbound: receiver == viewer,
// outbound: sender == viewer) and re-runs the whole aggregation on every
// emission from either; the merge is commutative, so the result does not
// depend on which stream reports first after a mutation.
type ConversationAggregator struct {
	viewerID  string
	messages  repository.MessageRepository
	directory *Directory

	updates   chan []*entity.Conversation
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewConversationAggregator(viewerID string, messages repository.MessageRepository, directory *Directory) *ConversationAggregator {
	return &ConversationAggregator{
		viewerID:  viewerID,
		messages:  messages,
		directory: directory,
		updates:   make(chan []*entity.Conversation, 1),
	}
}

// Start opens both subscriptions and begins aggregating. The aggregator
// stops when ctx is cancelled or Close is called.
func (a *ConversationAggregator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	inbound, err := a.messages.Subscribe(ctx, repository.MessageFilter{ReceiverID: a.viewerID})
	if err != nil {
		cancel()
		return err
	}

	outbound, err := a.messages.Subscribe(ctx, repository.MessageFilter{SenderID: a.viewerID})
	if err != nil {
		inbound.Close()
		cancel()
		return err
	}

	profileChanges, unsubscribe := a.directory.Subscribe()

	go a.run(ctx, inbound, outbound, profileChanges, unsubscribe)

	return nil
}

// Updates emits the full conversation list after each aggregation pass.
// Only the latest list matters; a slow consumer sees intermediate lists
// replaced, never queued. The channel closes on teardown.
func (a *ConversationAggregator) Updates() <-chan []*entity.Conversation {
	return a.updates
}

func (a *ConversationAggregator) Close() {
	a.closeOnce.Do(a.cancel)
}

func (a *ConversationAggregator) run(ctx context.Context, inbound, outbound repository.MessageStream, profileChanges <-chan struct{}, unsubscribe func()) {
	defer close(a.updates)
	defer unsubscribe()
	defer inbound.Close()
	defer outbound.Close()

	var inboundMsgs, outboundMsgs []*entity.Message
	state := noneReady

	inCh := inbound.Updates()
	outCh := outbound.Updates()

	for {
		select {
		case snapshot, ok := <-inCh:
			if !ok {
				// Stream failed: degrade to no data for this mount.
				inCh = nil
				inboundMsgs = nil
			} else {
				inboundMsgs = snapshot
			}
			state = state.markInbound()

		case snapshot, ok := <-outCh:
			if !ok {
				outCh = nil
				outboundMsgs = nil
			} else {
				outboundMsgs = snapshot
			}
			state = state.markOutbound()

		case <-profileChanges:
			// A previously missing profile resolved; re-aggregate so its
			// dropped messages are included.

		case <-ctx.Done():
			return
		}

		if state != bothReady {
			continue
		}

		conversations := AggregateConversations(ctx, a.viewerID, inboundMsgs, outboundMsgs, a.directory)
		a.emit(ctx, conversations)
	}
}

// emit replaces any unconsumed list with the latest one.
func (a *ConversationAggregator) emit(ctx context.Context, conversations []*entity.Conversation) {
	for {
		select {
		case a.updates <- conversations:
			return
		case <-ctx.Done():
			return
		default:
			select {
			case <-a.updates:
			default:
			}
		}
	}
}

// AggregateConversations groups both snapshot directions into one bucket per
// counterpart and derives unread counts, last-message summaries, and list
// order. Messages whose counterpart profile cannot be resolved are silently
// dropped; they come back on a later pass once the profile resolves.
func AggregateConversations(ctx context.Context, viewerID string, inbound, outbound []*entity.Message, directory *Directory) []*entity.Conversation {
	now := time.Now()

	buckets := make(map[string][]*entity.Message)
	var order []string

	add := func(counterpartID string, message *entity.Message) {
		if _, seen := buckets[counterpartID]; !seen {
			order = append(order, counterpartID)
		}
		buckets[counterpartID] = append(buckets[counterpartID], message)
	}

	for _, message := range inbound {
		add(message.SenderID, message)
	}
	for _, message := range outbound {
		add(message.ReceiverID, message)
	}

	var conversations []*entity.Conversation
	for _, counterpartID := range order {
		counterpart, ok := directory.Resolve(ctx, counterpartID)
		if !ok {
			continue
		}

		messages := buckets[counterpartID]
		sort.SliceStable(messages, func(i, j int) bool {
			return messages[i].OrderKey(now).After(messages[j].OrderKey(now))
		})

		unread := lo.CountBy(messages, func(m *entity.Message) bool {
			return m.ReceiverID == viewerID && !m.Read
		})

		var last *entity.Message
		if len(messages) > 0 {
			last = messages[0]
		}

		conversations = append(conversations, &entity.Conversation{
			Counterpart: counterpart,
			Messages:    messages,
			UnreadCount: unread,
			LastMessage: last,
		})
	}

	// Most recently active conversation first; empty buckets sort last.
	sort.SliceStable(conversations, func(i, j int) bool {
		left, right := conversations[i].LastMessage, conversations[j].LastMessage
		if left == nil {
			return false
		}
		if right == nil {
			return true
		}
		return left.OrderKey(now).After(right.OrderKey(now))
	})

	return conversations
}
