package chat

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DisplayTimeLayout is the localized "HH:MM DD.MM.YYYY" render format.
// Internal state always keeps raw time.Time; this layout is applied only
// when serializing a view and parsed back only for client-supplied display
// stamps, so ordering never depends on the lossy minute-precision string.
const DisplayTimeLayout = "15:04 02.01.2006"

func FormatDisplayTime(t time.Time) string {
	return t.Format(DisplayTimeLayout)
}

func ParseDisplayTime(s string) (time.Time, error) {
	return time.Parse(DisplayTimeLayout, strings.TrimSpace(s))
}

// Message is the store row projected into controller state. UserId 0 means
// an anonymous author, Chat "" means an unbound single-turn exchange. Key is
// set only on locally-appended optimistic messages so clients can reconcile
// them once a reload returns the stored row.
type Message struct {
	Id        int64
	UserId    int64
	Text      string
	Active    bool
	Answer    bool
	Chat      string
	CreatedAt time.Time

	Key uuid.UUID
}

func (m Message) HasUser() bool { return m.UserId != 0 }

const anonChatPrefix = "anon:"

// chatKey is the grouping key: unbound messages each get a synthetic
// conversation of their own, so anonymous questions are never merged with a
// named chat or with each other.
func chatKey(m Message) string {
	if m.Chat != "" {
		return m.Chat
	}
	return anonChatPrefix + strconv.FormatInt(m.Id, 10)
}

// Conversation is a derived, never persisted summary of one chat.
type Conversation struct {
	Chat  string
	First Message // earliest message, drives the admin queue order
	Last  Message // latest message, drives read state and input gating
	Count int
}

// Unread reports whether the conversation still awaits an admin answer.
func (c *Conversation) Unread() bool { return !c.Last.Answer }

// Anonymous reports whether the conversation wraps a single unbound message.
func (c *Conversation) Anonymous() bool { return strings.HasPrefix(c.Chat, anonChatPrefix) }

// Group partitions messages into conversations by chat id. Every message
// lands in exactly one conversation, and conversations without messages
// never appear. The result is deterministic for a given message set.
func Group(messages []Message) map[string]*Conversation {
	conversations := make(map[string]*Conversation)
	for _, m := range messages {
		key := chatKey(m)
		c, ok := conversations[key]
		if !ok {
			conversations[key] = &Conversation{Chat: key, First: m, Last: m, Count: 1}
			continue
		}
		c.Count++
		if m.CreatedAt.Before(c.First.CreatedAt) {
			c.First = m
		}
		if !m.CreatedAt.Before(c.Last.CreatedAt) {
			c.Last = m
		}
	}
	return conversations
}

// AdminQueue orders conversations for the admin: the chat whose pending
// message has waited longest comes first. Chat id breaks ties so repeated
// grouping of the same message set yields the same order.
func AdminQueue(conversations map[string]*Conversation) []*Conversation {
	queue := make([]*Conversation, 0, len(conversations))
	for _, c := range conversations {
		queue = append(queue, c)
	}
	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].First.CreatedAt.Equal(queue[j].First.CreatedAt) {
			return queue[i].First.CreatedAt.Before(queue[j].First.CreatedAt)
		}
		return queue[i].Chat < queue[j].Chat
	})
	return queue
}

// UserChats orders conversations for the end user: chats awaiting an admin
// answer sort last, and within each class the most recently active chat
// comes first. Chat id breaks ties.
func UserChats(conversations map[string]*Conversation) []*Conversation {
	chats := make([]*Conversation, 0, len(conversations))
	for _, c := range conversations {
		chats = append(chats, c)
	}
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].Unread() != chats[j].Unread() {
			return !chats[i].Unread()
		}
		if !chats[i].Last.CreatedAt.Equal(chats[j].Last.CreatedAt) {
			return chats[i].Last.CreatedAt.After(chats[j].Last.CreatedAt)
		}
		return chats[i].Chat < chats[j].Chat
	})
	return chats
}

// ChatMessages returns the messages of one conversation in replay order,
// oldest first.
func ChatMessages(messages []Message, chat string) []Message {
	var out []Message
	for _, m := range messages {
		if chatKey(m) == chat {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Id < out[j].Id
	})
	return out
}

func withoutChat(messages []Message, chat string) []Message {
	var out []Message
	for _, m := range messages {
		if chatKey(m) != chat {
			out = append(out, m)
		}
	}
	return out
}
