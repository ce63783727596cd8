package presence

import (
	"context"
	"sync"
	"time"

	"fanlink/pkg/logger"
)

const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// Status is the ephemeral online/offline record for one user. It is never
// written to durable history; losing it on restart is expected.
type Status struct {
	UserID        string    `json:"user_id"`
	State         string    `json:"state"`
	LastChangedAt time.Time `json:"last_changed_at"`
}

// TypingState is the ephemeral typing flag for one user in one conversation.
type TypingState struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

// Update is what subscribers receive. Exactly one of Presence or Typing is
// set.
type Update struct {
	Presence *Status      `json:"presence,omitempty"`
	Typing   *TypingState `json:"typing,omitempty"`
}

// Store is the ephemeral key-value backend. Keys carry a TTL so that state
// owned by a crashed process expires on its own.
type Store interface {
	SetPresence(ctx context.Context, userID, state string, ttl time.Duration) error
	GetPresence(ctx context.Context, userID string) (string, error)
	SetTyping(ctx context.Context, conversationID, userID string, ttl time.Duration) error
	ClearTyping(ctx context.Context, conversationID, userID string) error
}

// Subscription is one live listener on a user or conversation key. Cancel
// guarantees no further delivery and closes C.
type Subscription struct {
	C       chan Update
	service *Service
	key     string
}

func (s *Subscription) Cancel() {
	s.service.unsubscribe(s.key, s)
}

// Service owns presence and typing signaling. Correctness never depends on a
// well-behaved client: the websocket layer calls Disconnected when a
// connection drops, and typing flags clear themselves after the idle window
// even without a disconnect.
type Service struct {
	store       Store
	presenceTTL time.Duration
	typingTTL   time.Duration

	mutex        sync.RWMutex
	subscribers  map[string]map[*Subscription]bool
	typingTimers map[string]*time.Timer
	typingByUser map[string]map[string]string // userID -> timer key -> conversationID
}

func NewService(store Store, typingTTL time.Duration) *Service {
	if typingTTL <= 0 {
		typingTTL = 2 * time.Second
	}
	return &Service{
		store:        store,
		presenceTTL:  5 * time.Minute, // backstop only; explicit offline is the normal path
		typingTTL:    typingTTL,
		subscribers:  make(map[string]map[*Subscription]bool),
		typingTimers: make(map[string]*time.Timer),
		typingByUser: make(map[string]map[string]string),
	}
}

func userKey(userID string) string         { return "user:" + userID }
func conversationKey(convID string) string { return "conv:" + convID }
func timerKey(convID, userID string) string {
	return convID + ":" + userID
}

func (s *Service) SetOnline(ctx context.Context, userID string) error {
	if err := s.store.SetPresence(ctx, userID, StateOnline, s.presenceTTL); err != nil {
		return err
	}

	s.publish(userKey(userID), Update{Presence: &Status{
		UserID:        userID,
		State:         StateOnline,
		LastChangedAt: time.Now(),
	}})

	return nil
}

func (s *Service) SetOffline(ctx context.Context, userID string) error {
	if err := s.store.SetPresence(ctx, userID, StateOffline, s.presenceTTL); err != nil {
		return err
	}

	s.publish(userKey(userID), Update{Presence: &Status{
		UserID:        userID,
		State:         StateOffline,
		LastChangedAt: time.Now(),
	}})

	return nil
}

func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	state, err := s.store.GetPresence(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = StateOffline
	}

	return &Status{UserID: userID, State: state}, nil
}

// SetTyping sets or clears the flag. Setting arms an idle timer that clears
// the flag on its own, so a stale "typing" can never persist past the
// window even if the client forgets to send a stop.
func (s *Service) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	if isTyping {
		if err := s.store.SetTyping(ctx, conversationID, userID, s.typingTTL); err != nil {
			return err
		}
		s.armTypingTimer(conversationID, userID)
	} else {
		if err := s.store.ClearTyping(ctx, conversationID, userID); err != nil {
			return err
		}
		s.disarmTypingTimer(conversationID, userID)
	}

	s.publish(conversationKey(conversationID), Update{Typing: &TypingState{
		ConversationID: conversationID,
		UserID:         userID,
		Typing:         isTyping,
	}})

	return nil
}

// Disconnected is the disconnect hook: flips presence offline and clears
// every typing flag the user still holds. Invoked by the connection layer,
// never by the client.
func (s *Service) Disconnected(userID string) {
	ctx := context.Background()

	if err := s.SetOffline(ctx, userID); err != nil {
		logger.Warn("Presence: failed to set %s offline on disconnect: %v", userID, err)
	}

	s.mutex.Lock()
	conversations := make(map[string]string, len(s.typingByUser[userID]))
	for key, convID := range s.typingByUser[userID] {
		conversations[key] = convID
	}
	s.mutex.Unlock()

	for _, convID := range conversations {
		if err := s.SetTyping(ctx, convID, userID, false); err != nil {
			logger.Warn("Presence: failed to clear typing for %s in %s: %v", userID, convID, err)
		}
	}
}

func (s *Service) SubscribeUser(userID string) *Subscription {
	return s.subscribe(userKey(userID))
}

func (s *Service) SubscribeConversation(conversationID string) *Subscription {
	return s.subscribe(conversationKey(conversationID))
}

func (s *Service) subscribe(key string) *Subscription {
	sub := &Subscription{
		C:       make(chan Update, 16),
		service: s,
		key:     key,
	}

	s.mutex.Lock()
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[*Subscription]bool)
	}
	s.subscribers[key][sub] = true
	s.mutex.Unlock()

	return sub
}

func (s *Service) unsubscribe(key string, sub *Subscription) {
	s.mutex.Lock()
	if subs, ok := s.subscribers[key]; ok {
		if subs[sub] {
			delete(subs, sub)
			close(sub.C)
		}
		if len(subs) == 0 {
			delete(s.subscribers, key)
		}
	}
	s.mutex.Unlock()
}

func (s *Service) publish(key string, update Update) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for sub := range s.subscribers[key] {
		select {
		case sub.C <- update:
		default:
			// Slow subscriber: drop rather than block signaling.
		}
	}
}

func (s *Service) armTypingTimer(conversationID, userID string) {
	key := timerKey(conversationID, userID)

	s.mutex.Lock()
	if timer, ok := s.typingTimers[key]; ok {
		timer.Stop()
	}
	if s.typingByUser[userID] == nil {
		s.typingByUser[userID] = make(map[string]string)
	}
	s.typingByUser[userID][key] = conversationID

	s.typingTimers[key] = time.AfterFunc(s.typingTTL, func() {
		if err := s.SetTyping(context.Background(), conversationID, userID, false); err != nil {
			logger.Warn("Presence: typing expiry for %s in %s failed: %v", userID, conversationID, err)
		}
	})
	s.mutex.Unlock()
}

func (s *Service) disarmTypingTimer(conversationID, userID string) {
	key := timerKey(conversationID, userID)

	s.mutex.Lock()
	if timer, ok := s.typingTimers[key]; ok {
		timer.Stop()
		delete(s.typingTimers, key)
	}
	if byUser, ok := s.typingByUser[userID]; ok {
		delete(byUser, key)
		if len(byUser) == 0 {
			delete(s.typingByUser, userID)
		}
	}
	s.mutex.Unlock()
}
