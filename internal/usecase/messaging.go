package usecase

import (
	"context"

	"github.com/samber/lo"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	"clubportal/internal/domain/service"
	"clubportal/pkg/errors"
	"clubportal/pkg/logger"
)

// MessagingService is the one-shot request surface over the same engine the
// live aggregator and threads run on: fetch instead of subscribe, then the
// identical pure merge/aggregate steps.
type MessagingService struct {
	messages  repository.MessageRepository
	directory *Directory
	composer  *Composer
	uploader  service.AttachmentUploader
}

func NewMessagingService(messages repository.MessageRepository, directory *Directory, composer *Composer, uploader service.AttachmentUploader) *MessagingService {
	return &MessagingService{
		messages:  messages,
		directory: directory,
		composer:  composer,
		uploader:  uploader,
	}
}

// Conversations returns the viewer's aggregated conversation list as of now.
func (s *MessagingService) Conversations(ctx context.Context, viewerID string) ([]*entity.Conversation, error) {
	inbound, err := s.messages.Fetch(ctx, repository.MessageFilter{ReceiverID: viewerID})
	if err != nil {
		logger.Error("Inbound fetch failed for user %s: %v", viewerID, err)
		inbound = nil
	}

	outbound, err := s.messages.Fetch(ctx, repository.MessageFilter{SenderID: viewerID})
	if err != nil {
		logger.Error("Outbound fetch failed for user %s: %v", viewerID, err)
		outbound = nil
	}

	return AggregateConversations(ctx, viewerID, inbound, outbound, s.directory), nil
}

// Thread returns the chronological two-way thread with one counterpart and
// marks its unread inbound messages as read, fire-and-forget.
func (s *MessagingService) Thread(ctx context.Context, viewerID, counterpartID string) ([]*entity.Message, error) {
	if _, ok := s.directory.Resolve(ctx, counterpartID); !ok {
		return nil, errors.NotFound("Counterpart", nil)
	}

	inbound, err := s.messages.Fetch(ctx, repository.MessageFilter{
		SenderID:   counterpartID,
		ReceiverID: viewerID,
	})
	if err != nil {
		return nil, err
	}

	outbound, err := s.messages.Fetch(ctx, repository.MessageFilter{
		SenderID:   viewerID,
		ReceiverID: counterpartID,
	})
	if err != nil {
		return nil, err
	}

	// Read receipts must not block thread display, and must outlive the
	// request that triggered them.
	background := context.WithoutCancel(ctx)
	for _, message := range inbound {
		if message.Read {
			continue
		}
		go func(id string) {
			if err := s.messages.MarkRead(background, id); err != nil {
				logger.Warn("Failed to mark message %s as read: %v", id, err)
			}
		}(message.ID)
	}

	return MergeThread(inbound, outbound), nil
}

// MarkRead marks one message as read on behalf of its receiver. Only the
// receiver may flip the flag; it never reverts.
func (s *MessagingService) MarkRead(ctx context.Context, viewerID, messageID string) error {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	if message.ReceiverID != viewerID {
		return errors.Forbidden("Only the receiver can mark a message as read", nil)
	}

	return s.messages.MarkRead(ctx, messageID)
}

// Recipients lists compose-recipient candidates, excluding the viewer.
func (s *MessagingService) Recipients(ctx context.Context, viewerID, role string) ([]*entity.UserProfile, error) {
	candidates, err := s.directory.Candidates(ctx, role)
	if err != nil {
		return nil, err
	}

	return lo.Filter(candidates, func(p *entity.UserProfile, _ int) bool {
		return p.ID != viewerID
	}), nil
}

// AttachmentURL resolves a message's attachment to a short-lived download
// link. Only the two participants of the message may fetch it.
func (s *MessagingService) AttachmentURL(ctx context.Context, viewerID, messageID string) (string, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return "", err
	}

	if message.SenderID != viewerID && message.ReceiverID != viewerID {
		return "", errors.Forbidden("Only message participants can download the attachment", nil)
	}

	if !message.HasAttachment() {
		return "", errors.NotFound("Attachment", nil)
	}

	return s.uploader.SignedDownloadURL(ctx, message.FileURL)
}

// Compose validates and sends a message to one or many recipients.
func (s *MessagingService) Compose(ctx context.Context, viewerID string, input ComposeInput) (*ComposeResult, error) {
	return s.composer.Send(ctx, viewerID, input)
}
