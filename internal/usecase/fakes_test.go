package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fanlink/internal/domain/entity"
	"fanlink/pkg/errors"
)

// fakeWalletRepo mirrors the store's transactional semantics in memory: the
// mutex serializes debits the way the backing transaction does, and ledger
// entries are keyed by idempotency key.
type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*entity.Wallet
	entries map[string]*entity.LedgerEntry

	failCredit bool
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		wallets: make(map[string]*entity.Wallet),
		entries: make(map[string]*entity.LedgerEntry),
	}
}

func (f *fakeWalletRepo) fund(userID string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets[userID] = &entity.Wallet{UserID: userID, Balance: amount, Currency: "USD"}
}

func (f *fakeWalletRepo) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.wallets[userID]; ok {
		return w.Balance
	}
	return 0
}

func (f *fakeWalletRepo) GetWallet(ctx context.Context, userID string) (*entity.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, errors.NotFound("Wallet", nil)
	}
	copy := *wallet
	return &copy, nil
}

func (f *fakeWalletRepo) Debit(ctx context.Context, userID string, amount int64, reason, idempotencyKey, counterparty string) (*entity.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.entries[idempotencyKey]; ok {
		copy := *existing
		return &copy, errors.AlreadyApplied(idempotencyKey)
	}

	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, errors.InsufficientFunds(amount, 0)
	}
	if wallet.Balance < amount {
		return nil, errors.InsufficientFunds(amount, wallet.Balance)
	}

	previous := wallet.Balance
	wallet.Balance -= amount
	entry := &entity.LedgerEntry{
		ID:              idempotencyKey,
		UserID:          userID,
		Counterparty:    counterparty,
		Type:            entity.LedgerEntryDebit,
		Amount:          -amount,
		PreviousBalance: previous,
		NewBalance:      wallet.Balance,
		Reason:          reason,
		CreatedAt:       time.Now(),
	}
	f.entries[idempotencyKey] = entry

	copy := *entry
	return &copy, nil
}

func (f *fakeWalletRepo) Credit(ctx context.Context, userID string, amount int64, reason, counterparty string) (*entity.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCredit {
		return nil, errors.Unavailable("Store unavailable", nil)
	}

	wallet, ok := f.wallets[userID]
	if !ok {
		wallet = &entity.Wallet{UserID: userID, Currency: "USD"}
		f.wallets[userID] = wallet
	}

	previous := wallet.Balance
	wallet.Balance += amount
	entry := &entity.LedgerEntry{
		ID:              "credit-" + userID + "-" + reason + "-" + time.Now().Format("150405.000000000"),
		UserID:          userID,
		Counterparty:    counterparty,
		Type:            entity.LedgerEntryCredit,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      wallet.Balance,
		Reason:          reason,
		CreatedAt:       time.Now(),
	}
	f.entries[entry.ID] = entry

	copy := *entry
	return &copy, nil
}

func (f *fakeWalletRepo) GetEntryByID(ctx context.Context, entryID string) (*entity.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[entryID]
	if !ok {
		return nil, errors.NotFound("Ledger entry", nil)
	}
	copy := *entry
	return &copy, nil
}

func (f *fakeWalletRepo) ListEntriesByUser(ctx context.Context, userID string, limit, offset int) ([]entity.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []entity.LedgerEntry
	for _, entry := range f.entries {
		if entry.UserID == userID {
			result = append(result, *entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// fakeChatStore implements both ConversationRepository and MessageRepository
// over one in-memory map, the way the store keeps messages under their
// conversation.
type fakeChatStore struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	messages      map[string]map[string]*entity.Message // convID -> msgID -> message

	failGrant bool // forces AddUnlockedViewer to fail
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string]map[string]*entity.Message),
	}
}

func (f *fakeChatStore) EnsureConversation(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.conversations[conv.ID]; ok {
		copy := *existing
		return &copy, nil
	}

	stored := *conv
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.conversations[conv.ID] = &stored
	f.messages[conv.ID] = make(map[string]*entity.Message)

	copy := stored
	return &copy, nil
}

func (f *fakeChatStore) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	copy := *conv
	return &copy, nil
}

func (f *fakeChatStore) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*entity.Conversation
	for _, conv := range f.conversations {
		if conv.HasParticipant(userID) {
			copy := *conv
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].LastMessageAt.After(result[j].LastMessageAt)
		}
		return result[i].ID < result[j].ID
	})

	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, total, nil
}

func (f *fakeChatStore) AppendMessage(ctx context.Context, message *entity.Message) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conv, ok := f.conversations[message.ConversationID]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	if !conv.HasParticipant(message.SenderID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	conv.MessageCount++
	message.Seq = conv.MessageCount
	message.CreatedAt = time.Now()

	preview := message.Body
	if message.Locked {
		preview = "Locked " + message.Kind
	}
	conv.LastMessage = preview
	conv.LastMessageKind = message.Kind
	conv.LastMessageAt = message.CreatedAt
	conv.UpdatedAt = message.CreatedAt

	if conv.UnreadCount == nil {
		conv.UnreadCount = make(map[string]int)
	}
	for _, participant := range conv.Participants {
		if participant != message.SenderID && message.Kind != entity.MessageKindSystem {
			conv.UnreadCount[participant]++
		}
	}

	stored := *message
	f.messages[message.ConversationID][message.ID] = &stored

	copy := stored
	return &copy, nil
}

func (f *fakeChatStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	conv, ok := f.conversations[conversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	if conv.UnreadCount != nil {
		conv.UnreadCount[userID] = 0
	}
	return nil
}

func (f *fakeChatStore) getMessage(conversationID, messageID string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.messages[conversationID][messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	copy := *msg
	return &copy, nil
}

func (f *fakeChatStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*entity.Message
	for _, msg := range f.messages[conversationID] {
		copy := *msg
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (f *fakeChatStore) Watch(ctx context.Context, conversationID string, limit int) (<-chan []*entity.Message, error) {
	out := make(chan []*entity.Message, 1)
	window, err := f.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	out <- window
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (f *fakeChatStore) AddUnlockedViewer(ctx context.Context, conversationID, messageID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGrant {
		return errors.Unavailable("Store unavailable", nil)
	}

	msg, ok := f.messages[conversationID][messageID]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	for _, id := range msg.UnlockedBy {
		if id == viewerID {
			return nil
		}
	}
	msg.UnlockedBy = append(msg.UnlockedBy, viewerID)
	return nil
}

func (f *fakeChatStore) MarkReadMessage(ctx context.Context, conversationID, messageID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.messages[conversationID][messageID]
	if !ok {
		return nil
	}
	for _, reader := range msg.ReadBy {
		if reader == userID {
			return nil
		}
	}
	msg.ReadBy = append(msg.ReadBy, userID)
	return nil
}

func (f *fakeChatStore) Delete(ctx context.Context, conversationID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages[conversationID], messageID)
	return nil
}

// messageRepoView adapts fakeChatStore to the MessageRepository interface
// (GetByID and MarkRead collide with the conversation-side methods).
type messageRepoView struct {
	store *fakeChatStore
}

func (v messageRepoView) GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	return v.store.getMessage(conversationID, messageID)
}

func (v messageRepoView) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	return v.store.ListByConversation(ctx, conversationID, limit)
}

func (v messageRepoView) Watch(ctx context.Context, conversationID string, limit int) (<-chan []*entity.Message, error) {
	return v.store.Watch(ctx, conversationID, limit)
}

func (v messageRepoView) AddUnlockedViewer(ctx context.Context, conversationID, messageID, viewerID string) error {
	return v.store.AddUnlockedViewer(ctx, conversationID, messageID, viewerID)
}

func (v messageRepoView) MarkRead(ctx context.Context, conversationID, messageID, userID string) error {
	return v.store.MarkReadMessage(ctx, conversationID, messageID, userID)
}

func (v messageRepoView) Delete(ctx context.Context, conversationID, messageID string) error {
	return v.store.Delete(ctx, conversationID, messageID)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	copy := *user
	return &copy, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	return f.Create(ctx, user)
}

type fakeStreamRepo struct {
	mu      sync.Mutex
	streams map[string]*entity.Stream
	nextID  int
}

func newFakeStreamRepo() *fakeStreamRepo {
	return &fakeStreamRepo{streams: make(map[string]*entity.Stream)}
}

func (f *fakeStreamRepo) Create(ctx context.Context, stream *entity.Stream) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stream.ID == "" {
		f.nextID++
		stream.ID = fmt.Sprintf("stream-%d", f.nextID)
	}
	stream.Active = true
	stream.SessionEarnings = 0
	stream.StartedAt = time.Now()
	copy := *stream
	f.streams[stream.ID] = &copy
	return nil
}

func (f *fakeStreamRepo) GetByID(ctx context.Context, id string) (*entity.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream, ok := f.streams[id]
	if !ok {
		return nil, errors.NotFound("Stream", nil)
	}
	copy := *stream
	return &copy, nil
}

func (f *fakeStreamRepo) GetActiveByCreator(ctx context.Context, creatorID string) (*entity.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stream := range f.streams {
		if stream.CreatorID == creatorID && stream.Active {
			copy := *stream
			return &copy, nil
		}
	}
	return nil, errors.NotFound("Active stream", nil)
}

func (f *fakeStreamRepo) AddEarnings(ctx context.Context, streamID string, amount int64) (*entity.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream, ok := f.streams[streamID]
	if !ok {
		return nil, errors.NotFound("Stream", nil)
	}
	if !stream.Active {
		return nil, errors.BadRequest("Stream is no longer live", nil)
	}
	stream.SessionEarnings += amount
	copy := *stream
	return &copy, nil
}

func (f *fakeStreamRepo) End(ctx context.Context, streamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream, ok := f.streams[streamID]
	if !ok {
		return errors.NotFound("Stream", nil)
	}
	stream.Active = false
	stream.EndedAt = time.Now()
	return nil
}

type fakeRepairRepo struct {
	mu      sync.Mutex
	repairs map[string]*entity.UnlockRepair
}

func newFakeRepairRepo() *fakeRepairRepo {
	return &fakeRepairRepo{repairs: make(map[string]*entity.UnlockRepair)}
}

func (f *fakeRepairRepo) Put(ctx context.Context, repair *entity.UnlockRepair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *repair
	f.repairs[repair.ID] = &copy
	return nil
}

func (f *fakeRepairRepo) List(ctx context.Context, limit int) ([]*entity.UnlockRepair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*entity.UnlockRepair
	for _, repair := range f.repairs {
		copy := *repair
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeRepairRepo) Update(ctx context.Context, repair *entity.UnlockRepair) error {
	return f.Put(ctx, repair)
}

func (f *fakeRepairRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repairs, id)
	return nil
}

func (f *fakeRepairRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.repairs)
}

// fakeNotifier records everything pushed so tests can assert on delivery.
type fakeNotifier struct {
	mu        sync.Mutex
	toUser    map[string][][]byte
	broadcast map[string][][]byte
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		toUser:    make(map[string][][]byte),
		broadcast: make(map[string][][]byte),
	}
}

func (f *fakeNotifier) SendToUser(userID string, message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toUser[userID] = append(f.toUser[userID], message)
}

func (f *fakeNotifier) BroadcastToRoom(roomID string, message []byte, excludeUserID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast[roomID] = append(f.broadcast[roomID], message)
}

func (f *fakeNotifier) roomMessageCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcast[roomID])
}
