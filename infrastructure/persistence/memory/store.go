package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
)

// Store keeps rooms and join requests in process memory and enforces the same
// constraints as the Postgres schema: unique room code, unique (room, user)
// request, request rows require their room and vanish with it.
type Store struct {
	mu sync.RWMutex

	rooms         map[string]*roomEntry // ID -> Room
	codeIndex     map[string]string     // Code -> room ID
	requests      map[string]*requestEntry
	roomUserIndex map[roomUserKey]string // (room, user) -> request ID
	seq           uint64

	publisher repository.ChangePublisher
}

type roomEntry struct {
	room model.Room
	seq  uint64
}

type requestEntry struct {
	request model.JoinRequest
	seq     uint64
}

type roomUserKey struct {
	roomID string
	userID string
}

// NewStore creates an empty store. publisher may be nil.
func NewStore(publisher repository.ChangePublisher) *Store {
	return &Store{
		rooms:         make(map[string]*roomEntry),
		codeIndex:     make(map[string]string),
		requests:      make(map[string]*requestEntry),
		roomUserIndex: make(map[roomUserKey]string),
		publisher:     publisher,
	}
}

func (s *Store) Rooms() repository.RoomRepository {
	return &roomRepository{store: s}
}

func (s *Store) JoinRequests() repository.JoinRequestRepository {
	return &joinRequestRepository{store: s}
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) notify(ctx context.Context, events ...repository.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	now := time.Now().UTC()
	for _, event := range events {
		if event.At.IsZero() {
			event.At = now
		}
		_ = s.publisher.Publish(ctx, event)
	}
}

type roomRepository struct {
	store *Store
}

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	if _, taken := s.codeIndex[room.Code]; taken {
		s.mu.Unlock()
		return apperror.ErrRoomCodeTaken
	}
	if _, exists := s.rooms[room.ID]; exists {
		s.mu.Unlock()
		return apperror.New(apperror.Conflict, "room id already exists")
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	s.rooms[room.ID] = &roomEntry{room: *room, seq: s.nextSeq()}
	s.codeIndex[room.Code] = room.ID
	s.mu.Unlock()

	s.notify(ctx, repository.ChangeEvent{
		RoomID: room.ID,
		Table:  repository.TableRooms,
		Op:     repository.ChangeInsert,
		RowID:  room.ID,
	})
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.rooms[id]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}
	room := entry.room
	return &room, nil
}

func (r *roomRepository) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.codeIndex[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}
	room := r.store.rooms[id].room
	return &room, nil
}

func (r *roomRepository) ListByHost(ctx context.Context, hostID string) ([]model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	entries := make([]*roomEntry, 0)
	for _, entry := range r.store.rooms {
		if entry.room.HostID == hostID {
			entries = append(entries, entry)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.room.CreatedAt.Equal(b.room.CreatedAt) {
			return a.room.CreatedAt.After(b.room.CreatedAt)
		}
		return a.seq > b.seq
	})

	rooms := make([]model.Room, 0, len(entries))
	for _, entry := range entries {
		rooms = append(rooms, entry.room)
	}
	return rooms, nil
}

// Delete removes the room and, like the FK cascade, any request rows left in it.
func (r *roomRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	entry, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return apperror.ErrRoomNotFound
	}
	delete(s.rooms, id)
	delete(s.codeIndex, entry.room.Code)
	for requestID, req := range s.requests {
		if req.request.RoomID == id {
			s.removeRequestLocked(requestID)
		}
	}
	s.mu.Unlock()

	s.notify(ctx, repository.ChangeEvent{
		RoomID: id,
		Table:  repository.TableRooms,
		Op:     repository.ChangeDelete,
		RowID:  id,
	})
	return nil
}

type joinRequestRepository struct {
	store *Store
}

func (r *joinRequestRepository) Create(ctx context.Context, request *model.JoinRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	key := roomUserKey{roomID: request.RoomID, userID: request.UserID}

	s.mu.Lock()
	if _, ok := s.rooms[request.RoomID]; !ok {
		s.mu.Unlock()
		return apperror.ErrRoomNotFound
	}
	if _, dup := s.roomUserIndex[key]; dup {
		s.mu.Unlock()
		return apperror.ErrDuplicateRequest
	}
	if _, exists := s.requests[request.ID]; exists {
		s.mu.Unlock()
		return apperror.New(apperror.Conflict, "join request id already exists")
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = model.JoinRequestPending
	}
	stored := *request
	stored.Room = nil
	s.requests[request.ID] = &requestEntry{request: stored, seq: s.nextSeq()}
	s.roomUserIndex[key] = request.ID
	s.mu.Unlock()

	s.notify(ctx, repository.ChangeEvent{
		RoomID: request.RoomID,
		Table:  repository.TableJoinRequests,
		Op:     repository.ChangeInsert,
		RowID:  request.ID,
	})
	return nil
}

func (r *joinRequestRepository) GetByID(ctx context.Context, id string) (*model.JoinRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.requests[id]
	if !ok {
		return nil, apperror.ErrJoinRequestNotFound
	}
	request := entry.request
	return &request, nil
}

func (r *joinRequestRepository) UpdateStatus(ctx context.Context, id string, status model.JoinRequestStatus) (*model.JoinRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	s.mu.Lock()
	entry, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperror.ErrJoinRequestNotFound
	}
	entry.request.Status = status
	request := entry.request
	s.mu.Unlock()

	s.notify(ctx, repository.ChangeEvent{
		RoomID: request.RoomID,
		Table:  repository.TableJoinRequests,
		Op:     repository.ChangeUpdate,
		RowID:  request.ID,
	})
	return &request, nil
}

func (r *joinRequestRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s := r.store
	s.mu.Lock()
	entry, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	request := entry.request
	s.removeRequestLocked(id)
	s.mu.Unlock()

	s.notify(ctx, deleteEvent(request))
	return true, nil
}

func (r *joinRequestRepository) DeleteByRoomAndUser(ctx context.Context, roomID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s := r.store
	s.mu.Lock()
	id, ok := s.roomUserIndex[roomUserKey{roomID: roomID, userID: userID}]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	request := s.requests[id].request
	s.removeRequestLocked(id)
	s.mu.Unlock()

	s.notify(ctx, deleteEvent(request))
	return true, nil
}

func (r *joinRequestRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s := r.store
	var removed int64

	s.mu.Lock()
	for id, entry := range s.requests {
		if entry.request.RoomID == roomID {
			s.removeRequestLocked(id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.notify(ctx, repository.ChangeEvent{
			RoomID: roomID,
			Table:  repository.TableJoinRequests,
			Op:     repository.ChangeDelete,
		})
	}
	return removed, nil
}

func (r *joinRequestRepository) ListByRoomAndStatus(ctx context.Context, roomID string, status model.JoinRequestStatus) ([]model.JoinRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	entries := make([]*requestEntry, 0)
	for _, entry := range r.store.requests {
		if entry.request.RoomID == roomID && entry.request.Status == status {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.request.CreatedAt.Equal(b.request.CreatedAt) {
			return a.request.CreatedAt.Before(b.request.CreatedAt)
		}
		return a.seq < b.seq
	})

	requests := make([]model.JoinRequest, 0, len(entries))
	for _, entry := range entries {
		requests = append(requests, entry.request)
	}
	return requests, nil
}

func (s *Store) removeRequestLocked(id string) {
	entry, ok := s.requests[id]
	if !ok {
		return
	}
	delete(s.roomUserIndex, roomUserKey{roomID: entry.request.RoomID, userID: entry.request.UserID})
	delete(s.requests, id)
}

func deleteEvent(request model.JoinRequest) repository.ChangeEvent {
	return repository.ChangeEvent{
		RoomID: request.RoomID,
		Table:  repository.TableJoinRequests,
		Op:     repository.ChangeDelete,
		RowID:  request.ID,
	}
}
