package repository

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	"clubportal/pkg/errors"
	"clubportal/pkg/logger"
)

const messagesCollection = "messages"

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) buildQuery(filter repository.MessageFilter) firestore.Query {
	query := r.client.Collection(messagesCollection).Query
	if filter.SenderID != "" {
		query = query.Where("senderId", "==", filter.SenderID)
	}
	if filter.ReceiverID != "" {
		query = query.Where("receiverId", "==", filter.ReceiverID)
	}
	return query
}

func (r *firestoreMessageRepository) Subscribe(ctx context.Context, filter repository.MessageFilter) (repository.MessageStream, error) {
	if filter.SenderID == "" && filter.ReceiverID == "" {
		return nil, errors.BadRequest("Message subscription requires a sender or receiver filter", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	stream := &messageStream{
		updates: make(chan []*entity.Message, 1),
		cancel:  cancel,
	}

	go stream.run(ctx, r.buildQuery(filter).Snapshots(ctx))

	return stream, nil
}

// messageStream pumps full query snapshots to its consumer. The run
// goroutine is the only sender and closes the channel on exit, so a consumer
// never sees an emission after the stream has wound down.
type messageStream struct {
	updates   chan []*entity.Message
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *messageStream) run(ctx context.Context, it *firestore.QuerySnapshotIterator) {
	defer close(s.updates)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if status.Code(err) != codes.Canceled {
				// Degrade to "no data" for the rest of this mount.
				logger.Error("Message subscription failed: %v", err)
			}
			return
		}

		messages := decodeMessageDocs(snap.Documents)

		select {
		case s.updates <- messages:
		case <-ctx.Done():
			return
		}
	}
}

func (s *messageStream) Updates() <-chan []*entity.Message {
	return s.updates
}

func (s *messageStream) Close() {
	s.closeOnce.Do(s.cancel)
}

func decodeMessageDocs(it *firestore.DocumentIterator) []*entity.Message {
	var messages []*entity.Message
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages: %v", err)
			break
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}
	return messages
}

func (r *firestoreMessageRepository) Fetch(ctx context.Context, filter repository.MessageFilter) ([]*entity.Message, error) {
	if filter.SenderID == "" && filter.ReceiverID == "" {
		return nil, errors.BadRequest("Message fetch requires a sender or receiver filter", nil)
	}

	docs, err := r.buildQuery(filter).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to fetch messages", err)
	}

	var messages []*entity.Message
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) (string, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.Read = false

	// sentAt carries the serverTimestamp tag; the store assigns it on write.
	_, err := r.client.Collection(messagesCollection).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return "", errors.Internal("Failed to create message", err)
	}

	return message.ID, nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.client.Collection(messagesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID

	return &message, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.client.Collection(messagesCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to mark message as read", err)
	}

	return nil
}
