package chat

import (
	"context"
	"errors"
	"sync"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory Store for controller tests.
type fakeStore struct {
	mu       sync.Mutex
	messages []Message
	nextId   int64

	failLoads   bool
	failInserts bool
}

func newFakeStore(messages ...Message) *fakeStore {
	nextId := int64(1)
	for _, m := range messages {
		if m.Id >= nextId {
			nextId = m.Id + 1
		}
	}
	return &fakeStore{messages: messages, nextId: nextId}
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts {
		return errStoreDown
	}
	msg.Id = f.nextId
	f.nextId++
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) LoadMessagesByUser(ctx context.Context, userId int64) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads {
		return nil, errStoreDown
	}
	var out []Message
	for _, m := range f.messages {
		if m.UserId == userId {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadActiveMessages(ctx context.Context) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads {
		return nil, errStoreDown
	}
	var out []Message
	for _, m := range f.messages {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkMessageInactive(ctx context.Context, messageId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts {
		return errStoreDown
	}
	for i := range f.messages {
		if f.messages[i].Id == messageId {
			f.messages[i].Active = false
		}
	}
	return nil
}

func (f *fakeStore) MarkChatInactiveForUser(ctx context.Context, chat string, userId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts {
		return errStoreDown
	}
	for i := range f.messages {
		if f.messages[i].Chat == chat && f.messages[i].UserId == userId {
			f.messages[i].Active = false
		}
	}
	return nil
}

func (f *fakeStore) stored() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}
