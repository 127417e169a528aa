package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
)

func testProfiles() []*entity.UserProfile {
	return []*entity.UserProfile{
		{ID: "admin-1", FirstName: "Dana", LastName: "Keller", Role: entity.RoleAdmin},
		{ID: "trainer-1", FirstName: "Milan", LastName: "Novak", Role: entity.RoleTrainer},
		{ID: "member-1", FirstName: "Ada", LastName: "Berg", Role: "member"},
		{ID: "member-2", FirstName: "Tom", LastName: "Vries", Role: "member"},
	}
}

func messageAt(id, sender, receiver string, sentAt time.Time, read bool) *entity.Message {
	return &entity.Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "hello",
		SentAt:     sentAt,
		Read:       read,
	}
}

func TestAggregateConversationsUnreadCount(t *testing.T) {
	directory := NewDirectory(newStubUserRepo(testProfiles()...))
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	inbound := []*entity.Message{
		messageAt("m1", "member-1", "admin-1", base, false),
		messageAt("m2", "member-1", "admin-1", base.Add(time.Minute), false),
		messageAt("m3", "member-1", "admin-1", base.Add(2*time.Minute), true),
	}
	outbound := []*entity.Message{
		// The viewer's own unread replies never count against them.
		messageAt("m4", "admin-1", "member-1", base.Add(3*time.Minute), false),
	}

	conversations := AggregateConversations(context.Background(), "admin-1", inbound, outbound, directory)

	require.Len(t, conversations, 1)
	assert.Equal(t, "member-1", conversations[0].Counterpart.ID)
	assert.Equal(t, 2, conversations[0].UnreadCount)
	assert.Len(t, conversations[0].Messages, 4)
}

func TestAggregateConversationsOrderingAndLastMessage(t *testing.T) {
	directory := NewDirectory(newStubUserRepo(testProfiles()...))
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	inbound := []*entity.Message{
		messageAt("old", "member-1", "admin-1", base, true),
		messageAt("newest", "member-2", "admin-1", base.Add(time.Hour), false),
	}
	outbound := []*entity.Message{
		messageAt("mid", "admin-1", "member-1", base.Add(30*time.Minute), false),
	}

	conversations := AggregateConversations(context.Background(), "admin-1", inbound, outbound, directory)

	require.Len(t, conversations, 2)

	// Most recently active conversation first.
	assert.Equal(t, "member-2", conversations[0].Counterpart.ID)
	assert.Equal(t, "newest", conversations[0].LastMessage.ID)

	assert.Equal(t, "member-1", conversations[1].Counterpart.ID)
	assert.Equal(t, "mid", conversations[1].LastMessage.ID)

	// Within a conversation the preview list is newest first.
	require.Len(t, conversations[1].Messages, 2)
	assert.Equal(t, "mid", conversations[1].Messages[0].ID)
	assert.Equal(t, "old", conversations[1].Messages[1].ID)
}

func TestAggregatorEmissionOrderIsCommutative(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	inboundMsgs := []*entity.Message{
		messageAt("m1", "member-1", "admin-1", base, false),
		messageAt("m2", "member-2", "admin-1", base.Add(time.Minute), false),
	}
	outboundMsgs := []*entity.Message{
		messageAt("m3", "admin-1", "member-1", base.Add(2*time.Minute), false),
		messageAt("m4", "admin-1", "trainer-1", base.Add(3*time.Minute), false),
	}

	// Whichever stream reports first after a mutation, the aggregated list
	// must come out the same.
	run := func(inboundFirst bool) []*entity.Conversation {
		repo := newStubMessageRepo()
		directory := NewDirectory(newStubUserRepo(testProfiles()...))

		aggregator := NewConversationAggregator("admin-1", repo, directory)
		require.NoError(t, aggregator.Start(context.Background()))
		defer aggregator.Close()

		inbound := repo.stream(repository.MessageFilter{ReceiverID: "admin-1"})
		outbound := repo.stream(repository.MessageFilter{SenderID: "admin-1"})
		require.NotNil(t, inbound)
		require.NotNil(t, outbound)

		if inboundFirst {
			inbound.emit(inboundMsgs)
			outbound.emit(outboundMsgs)
		} else {
			outbound.emit(outboundMsgs)
			inbound.emit(inboundMsgs)
		}

		return receiveConversations(t, aggregator.Updates())
	}

	first := run(true)
	second := run(false)

	require.Len(t, first, 3)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Counterpart.ID, second[i].Counterpart.ID)
		assert.Equal(t, first[i].UnreadCount, second[i].UnreadCount)
		assert.Equal(t, first[i].LastMessage.ID, second[i].LastMessage.ID)

		require.Equal(t, len(first[i].Messages), len(second[i].Messages))
		for j := range first[i].Messages {
			assert.Equal(t, first[i].Messages[j].ID, second[i].Messages[j].ID)
		}
	}
}

func TestAggregateConversationsDropsUnresolvedProfiles(t *testing.T) {
	users := newStubUserRepo(testProfiles()...)
	directory := NewDirectory(users)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	inbound := []*entity.Message{
		messageAt("m1", "ghost", "admin-1", base, false),
		messageAt("m2", "member-1", "admin-1", base.Add(time.Minute), false),
	}

	conversations := AggregateConversations(context.Background(), "admin-1", inbound, nil, directory)

	require.Len(t, conversations, 1)
	assert.Equal(t, "member-1", conversations[0].Counterpart.ID)
}

func TestAggregatorWaitsForBothStreams(t *testing.T) {
	repo := newStubMessageRepo()
	directory := NewDirectory(newStubUserRepo(testProfiles()...))

	aggregator := NewConversationAggregator("admin-1", repo, directory)
	require.NoError(t, aggregator.Start(context.Background()))
	defer aggregator.Close()

	inbound := repo.stream(repository.MessageFilter{ReceiverID: "admin-1"})
	outbound := repo.stream(repository.MessageFilter{SenderID: "admin-1"})
	require.NotNil(t, inbound)
	require.NotNil(t, outbound)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	inbound.emit([]*entity.Message{messageAt("m1", "member-1", "admin-1", base, false)})

	// One stream reporting is not enough to aggregate.
	select {
	case conversations := <-aggregator.Updates():
		t.Fatalf("unexpected emission before both streams reported: %v", conversations)
	case <-time.After(50 * time.Millisecond):
	}

	outbound.emit(nil)

	conversations := receiveConversations(t, aggregator.Updates())
	require.Len(t, conversations, 1)
	assert.Equal(t, "member-1", conversations[0].Counterpart.ID)
	assert.Equal(t, 1, conversations[0].UnreadCount)
}

func TestAggregatorEmptyStreamsEmitEmptyList(t *testing.T) {
	repo := newStubMessageRepo()
	directory := NewDirectory(newStubUserRepo(testProfiles()...))

	aggregator := NewConversationAggregator("admin-1", repo, directory)
	require.NoError(t, aggregator.Start(context.Background()))
	defer aggregator.Close()

	repo.stream(repository.MessageFilter{ReceiverID: "admin-1"}).emit(nil)
	repo.stream(repository.MessageFilter{SenderID: "admin-1"}).emit(nil)

	conversations := receiveConversations(t, aggregator.Updates())
	assert.Empty(t, conversations)
}

func TestAggregatorFailedStreamCountsAsEmpty(t *testing.T) {
	repo := newStubMessageRepo()
	directory := NewDirectory(newStubUserRepo(testProfiles()...))

	aggregator := NewConversationAggregator("admin-1", repo, directory)
	require.NoError(t, aggregator.Start(context.Background()))
	defer aggregator.Close()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Inbound dies before ever reporting; outbound delivers normally.
	repo.stream(repository.MessageFilter{ReceiverID: "admin-1"}).Close()
	repo.stream(repository.MessageFilter{SenderID: "admin-1"}).emit([]*entity.Message{
		messageAt("m1", "admin-1", "member-2", base, false),
	})

	conversations := receiveConversations(t, aggregator.Updates())
	require.Len(t, conversations, 1)
	assert.Equal(t, "member-2", conversations[0].Counterpart.ID)
	assert.Equal(t, 0, conversations[0].UnreadCount)
}

func TestAggregatorReaggregatesWhenProfileResolves(t *testing.T) {
	users := newStubUserRepo(testProfiles()...)
	directory := NewDirectory(users)

	repo := newStubMessageRepo()
	aggregator := NewConversationAggregator("admin-1", repo, directory)
	require.NoError(t, aggregator.Start(context.Background()))
	defer aggregator.Close()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo.stream(repository.MessageFilter{ReceiverID: "admin-1"}).emit([]*entity.Message{
		messageAt("m1", "late-user", "admin-1", base, false),
	})
	repo.stream(repository.MessageFilter{SenderID: "admin-1"}).emit(nil)

	conversations := receiveConversations(t, aggregator.Updates())
	assert.Empty(t, conversations, "unresolvable counterpart should be dropped")

	// The profile appears later (e.g. resolved by another view) and the
	// directory broadcast triggers a fresh pass without any stream activity.
	users.add(&entity.UserProfile{ID: "late-user", FirstName: "Lea", LastName: "Roth", Role: "member"})
	_, ok := directory.Resolve(context.Background(), "late-user")
	require.True(t, ok)

	conversations = receiveConversations(t, aggregator.Updates())
	require.Len(t, conversations, 1)
	assert.Equal(t, "late-user", conversations[0].Counterpart.ID)
}

func TestAggregatorCloseClosesUpdates(t *testing.T) {
	repo := newStubMessageRepo()
	directory := NewDirectory(newStubUserRepo(testProfiles()...))

	aggregator := NewConversationAggregator("admin-1", repo, directory)
	require.NoError(t, aggregator.Start(context.Background()))

	aggregator.Close()

	select {
	case _, open := <-aggregator.Updates():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("updates channel was not closed on teardown")
	}
}

func receiveConversations(t *testing.T, ch <-chan []*entity.Conversation) []*entity.Conversation {
	t.Helper()
	select {
	case conversations := <-ch:
		return conversations
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a conversation emission")
		return nil
	}
}
