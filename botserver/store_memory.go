package botserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	now           func() time.Time
	seq           int64
	clients       map[int64]*Client
	conversations map[int64]*Conversation
	messages      []StoredMessage
	intents       map[int64]*Intent
	variations    []Variation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:           time.Now,
		clients:       make(map[int64]*Client),
		conversations: make(map[int64]*Conversation),
		intents:       make(map[int64]*Intent),
	}
}

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) CreateClient(ctx context.Context, name, token string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Client{ID: s.nextID(), Name: name, AccessToken: token, CreatedAt: s.now()}
	s.clients[c.ID] = c
	out := *c
	return &out, nil
}

func (s *MemoryStore) ClientByToken(ctx context.Context, token string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.AccessToken == token {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ClientByName(ctx context.Context, name string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.Name == name {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetClientToken(ctx context.Context, clientID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	c.AccessToken = token
	return nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, clientID int64) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Conversation{ID: s.nextID(), ClientID: clientID, StartTime: s.now()}
	s.conversations[c.ID] = c
	out := *c
	return &out, nil
}

func (s *MemoryStore) LatestConversation(ctx context.Context, clientID int64) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Conversation
	for _, c := range s.conversations {
		if c.ClientID != clientID {
			continue
		}
		if latest == nil || c.StartTime.After(latest.StartTime) || (c.StartTime.Equal(latest.StartTime) && c.ID > latest.ID) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) HasMessageSince(ctx context.Context, conversationID int64, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.Timestamp.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, conversationID int64, sender Sender, content string) (*StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}
	m := StoredMessage{ID: s.nextID(), ConversationID: conversationID, Sender: sender, Content: content, Timestamp: s.now()}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *MemoryStore) Messages(ctx context.Context, conversationID int64) ([]StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StoredMessage
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateIntent(ctx context.Context, title, response string, variations []string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := &Intent{ID: s.nextID(), Title: title, Response: response}
	s.intents[in.ID] = in
	for _, v := range variations {
		s.variations = append(s.variations, Variation{ID: s.nextID(), IntentID: in.ID, Text: v})
	}
	out := *in
	return &out, nil
}

func (s *MemoryStore) IntentByTitle(ctx context.Context, title string) (*Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *Intent
	for _, in := range s.intents {
		if in.Title == title && (found == nil || in.ID < found.ID) {
			found = in
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	out := *found
	return &out, nil
}

// IntentByVariation returns the intent of the first variation equal to text.
func (s *MemoryStore) IntentByVariation(ctx context.Context, text string) (*Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.variations {
		if v.Text == text {
			if in, ok := s.intents[v.IntentID]; ok {
				out := *in
				return &out, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Intent(ctx context.Context, id int64) (*Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *in
	return &out, nil
}

func (s *MemoryStore) Variations(ctx context.Context) ([]Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Variation(nil), s.variations...), nil
}

func (s *MemoryStore) ClearIntents(ctx context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intents, variations := len(s.intents), len(s.variations)
	s.intents = make(map[int64]*Intent)
	s.variations = nil
	return intents, variations, nil
}

func (s *MemoryStore) Unanswered(ctx context.Context, fallback string) ([]UnansweredQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []UnansweredQuestion
	for i, m := range s.messages {
		if m.Sender != SenderBot || m.Content != fallback {
			continue
		}
		// the user message right before the fallback in the same conversation
		for j := i - 1; j >= 0; j-- {
			prev := s.messages[j]
			if prev.ConversationID != m.ConversationID || prev.Sender != SenderUser {
				continue
			}
			name := ""
			if conv, ok := s.conversations[m.ConversationID]; ok {
				if c, ok := s.clients[conv.ClientID]; ok {
					name = c.Name
				}
			}
			out = append(out, UnansweredQuestion{ClientName: name, Question: prev.Content, AskedAt: prev.Timestamp})
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Engagement(ctx context.Context, fallback string) ([]ClientEngagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byClient := make(map[int64]*ClientEngagement, len(s.clients))
	for id, c := range s.clients {
		byClient[id] = &ClientEngagement{ClientName: c.Name}
	}
	for _, conv := range s.conversations {
		if e, ok := byClient[conv.ClientID]; ok {
			e.TotalConversations++
		}
	}
	for _, m := range s.messages {
		conv, ok := s.conversations[m.ConversationID]
		if !ok {
			continue
		}
		e, ok := byClient[conv.ClientID]
		if !ok {
			continue
		}
		e.TotalMessages++
		if m.Sender == SenderBot {
			e.BotResponses++
			if m.Content == fallback {
				e.FallbackCount++
			}
		}
	}

	out := make([]ClientEngagement, 0, len(byClient))
	for _, e := range byClient {
		e.Assertiveness = assertiveness(e.BotResponses, e.FallbackCount)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalConversations != out[j].TotalConversations {
			return out[i].TotalConversations > out[j].TotalConversations
		}
		return strings.Compare(out[i].ClientName, out[j].ClientName) < 0
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
