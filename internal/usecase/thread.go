package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	"clubportal/pkg/logger"
)

// Thread is the live two-way message stream between the viewer and one
// counterpart, ordered chronologically for natural reading. Opening a thread
// marks every currently unread inbound message as read, fire-and-forget.
//
// Lifecycle: closed -> open (subscribing) -> open (synced). Close tears both
// subscriptions down; reopening subscribes fresh with no carried-over state.
type Thread struct {
	viewerID      string
	counterpartID string
	messages      repository.MessageRepository

	updates   chan []*entity.Message
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewThread(viewerID, counterpartID string, messages repository.MessageRepository) *Thread {
	return &Thread{
		viewerID:      viewerID,
		counterpartID: counterpartID,
		messages:      messages,
		updates:       make(chan []*entity.Message, 1),
	}
}

func (t *Thread) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	inbound, err := t.messages.Subscribe(ctx, repository.MessageFilter{
		SenderID:   t.counterpartID,
		ReceiverID: t.viewerID,
	})
	if err != nil {
		cancel()
		return err
	}

	outbound, err := t.messages.Subscribe(ctx, repository.MessageFilter{
		SenderID:   t.viewerID,
		ReceiverID: t.counterpartID,
	})
	if err != nil {
		inbound.Close()
		cancel()
		return err
	}

	go t.run(ctx, inbound, outbound)

	return nil
}

// Updates emits the merged, chronologically ordered thread after each
// snapshot from either direction. The channel closes on teardown.
func (t *Thread) Updates() <-chan []*entity.Message {
	return t.updates
}

func (t *Thread) Close() {
	t.closeOnce.Do(t.cancel)
}

func (t *Thread) run(ctx context.Context, inbound, outbound repository.MessageStream) {
	defer close(t.updates)
	defer inbound.Close()
	defer outbound.Close()

	var inboundMsgs, outboundMsgs []*entity.Message
	state := noneReady
	marked := make(map[string]struct{})

	inCh := inbound.Updates()
	outCh := outbound.Updates()

	for {
		select {
		case snapshot, ok := <-inCh:
			if !ok {
				inCh = nil
				inboundMsgs = nil
			} else {
				inboundMsgs = snapshot
				t.markNewlyVisible(ctx, snapshot, marked)
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

		case <-ctx.Done():
			return
		}

		if state != bothReady {
			continue
		}

		t.emit(ctx, MergeThread(inboundMsgs, outboundMsgs))
	}
}

// markNewlyVisible issues a read receipt for every unread inbound message
// that has not already been marked by this thread. Failures are logged and
// swallowed; unread counters catch up on the next aggregation pass.
func (t *Thread) markNewlyVisible(ctx context.Context, inbound []*entity.Message, marked map[string]struct{}) {
	for _, message := range inbound {
		if message.Read {
			continue
		}
		if _, done := marked[message.ID]; done {
			continue
		}
		marked[message.ID] = struct{}{}

		go func(id string) {
			if err := t.messages.MarkRead(ctx, id); err != nil {
				logger.Warn("Failed to mark message %s as read: %v", id, err)
			}
		}(message.ID)
	}
}

func (t *Thread) emit(ctx context.Context, messages []*entity.Message) {
	for {
		select {
		case t.updates <- messages:
			return
		case <-ctx.Done():
			return
		default:
			select {
			case <-t.updates:
			default:
			}
		}
	}
}

// MergeThread combines both direction snapshots into one chronological list,
// oldest first. The merge is commutative over its inputs.
func MergeThread(inbound, outbound []*entity.Message) []*entity.Message {
	now := time.Now()

	merged := make([]*entity.Message, 0, len(inbound)+len(outbound))
	merged = append(merged, inbound...)
	merged = append(merged, outbound...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OrderKey(now).Before(merged[j].OrderKey(now))
	})

	return merged
}
