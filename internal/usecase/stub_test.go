package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	"clubportal/pkg/errors"
)

type stubStream struct {
	ch        chan []*entity.Message
	closeOnce sync.Once
}

func newStubStream() *stubStream {
	return &stubStream{ch: make(chan []*entity.Message, 8)}
}

func (s *stubStream) Updates() <-chan []*entity.Message { return s.ch }

func (s *stubStream) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

func (s *stubStream) emit(messages []*entity.Message) {
	s.ch <- messages
}

type stubMessageRepo struct {
	mu sync.Mutex

	streams map[repository.MessageFilter]*stubStream
	fetch   map[repository.MessageFilter][]*entity.Message

	records   map[string]*entity.Message
	created   []*entity.Message
	createErr map[string]error // keyed by receiver ID

	markedRead  []string
	markReadErr error

	subscribeErr error
	fetchErr     error
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{
		streams:   make(map[repository.MessageFilter]*stubStream),
		fetch:     make(map[repository.MessageFilter][]*entity.Message),
		records:   make(map[string]*entity.Message),
		createErr: make(map[string]error),
	}
}

func (r *stubMessageRepo) Subscribe(_ context.Context, filter repository.MessageFilter) (repository.MessageStream, error) {
	if r.subscribeErr != nil {
		return nil, r.subscribeErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stream := newStubStream()
	r.streams[filter] = stream
	return stream, nil
}

func (r *stubMessageRepo) stream(filter repository.MessageFilter) *stubStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[filter]
}

func (r *stubMessageRepo) Fetch(_ context.Context, filter repository.MessageFilter) ([]*entity.Message, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetch[filter], nil
}

func (r *stubMessageRepo) Create(_ context.Context, message *entity.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.createErr[message.ReceiverID]; err != nil {
		return "", err
	}

	message.ID = fmt.Sprintf("msg-%d", len(r.created)+1)
	r.created = append(r.created, message)
	r.records[message.ID] = message
	return message.ID, nil
}

func (r *stubMessageRepo) GetByID(_ context.Context, id string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.records[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return message, nil
}

func (r *stubMessageRepo) MarkRead(_ context.Context, id string) error {
	if r.markReadErr != nil {
		return r.markReadErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.markedRead = append(r.markedRead, id)
	if message, ok := r.records[id]; ok {
		message.Read = true
	}
	return nil
}

func (r *stubMessageRepo) marked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.markedRead...)
}

func (r *stubMessageRepo) createdMessages() []*entity.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.Message(nil), r.created...)
}

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.UserProfile
	gets  map[string]int

	listErr error
}

func newStubUserRepo(users ...*entity.UserProfile) *stubUserRepo {
	repo := &stubUserRepo{
		users: make(map[string]*entity.UserProfile),
		gets:  make(map[string]int),
	}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*entity.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gets[id]++
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

func (r *stubUserRepo) ListByRole(_ context.Context, role string, _ int) ([]*entity.UserProfile, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var users []*entity.UserProfile
	for _, user := range r.users {
		if role == "" || user.Role == role {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *stubUserRepo) add(user *entity.UserProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *stubUserRepo) getCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets[id]
}

type stubUploader struct {
	mu        sync.Mutex
	uploads   int
	uploadErr error
}

func (u *stubUploader) Upload(_ context.Context, _ io.Reader, fileName, _ string) (*entity.Attachment, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.uploadErr != nil {
		return nil, u.uploadErr
	}

	u.uploads++
	return &entity.Attachment{
		URL:      fmt.Sprintf("https://storage.googleapis.com/club-media/attachments/blob-%d", u.uploads),
		FileName: fileName,
	}, nil
}

func (u *stubUploader) SignedDownloadURL(_ context.Context, fileURL string) (string, error) {
	return fileURL + "?signed", nil
}

func (u *stubUploader) Close() error { return nil }

func (u *stubUploader) uploadCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.uploads
}
