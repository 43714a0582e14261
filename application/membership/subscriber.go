package membership

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hilthontt/lobby/domain/apperror"
	"github.com/hilthontt/lobby/domain/model"
	"github.com/hilthontt/lobby/domain/repository"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/metrics"
	"go.uber.org/zap"
)

var (
	ErrSubscriberClosed = errors.New("membership subscriber is closed")
	ErrNilObserver      = errors.New("observer cannot be nil")
)

// Observer receives every published view of a room. It runs on the room's
// sync goroutine and must not block.
type Observer func(view model.MembershipView)

// Unsubscribe detaches an observer. Calling it more than once is a no-op.
type Unsubscribe func()

// retryWindow bounds a single backoff run; refresh and resubscribe start a
// new run after it, so retries never stop while the room is watched.
const retryWindow = time.Hour

type Options struct {
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Subscriber keeps one change-feed subscription per watched room and
// publishes a freshly derived MembershipView to the room's observers after
// every change. The feed is opened by the first observer of a room and
// closed when the last one leaves.
type Subscriber struct {
	feed     repository.ChangeFeed
	rooms    repository.RoomRepository
	requests repository.JoinRequestRepository
	metrics  metrics.Manager
	logger   *logger.Logger
	opts     Options

	mu      sync.Mutex
	entries map[string]*roomEntry
	closed  bool
}

func NewSubscriber(
	feed repository.ChangeFeed,
	rooms repository.RoomRepository,
	requests repository.JoinRequestRepository,
	metricsManager metrics.Manager,
	logger *logger.Logger,
	opts Options,
) *Subscriber {
	if metricsManager == nil {
		metricsManager = metrics.NewNopManager()
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 250 * time.Millisecond
	}
	if opts.RetryMaxInterval <= 0 {
		opts.RetryMaxInterval = 30 * time.Second
	}
	return &Subscriber{
		feed:     feed,
		rooms:    rooms,
		requests: requests,
		metrics:  metricsManager,
		logger:   logger,
		opts:     opts,
		entries:  make(map[string]*roomEntry),
	}
}

// roomEntry is the per-room registry record.
type roomEntry struct {
	roomID string
	refs   int // guarded by Subscriber.mu

	ready   chan struct{}
	initErr error

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	subMu sync.Mutex
	sub   repository.FeedSubscription

	// publishMu serializes derivation and delivery for the room.
	publishMu sync.Mutex
	last      *model.MembershipView

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextID    uint64
}

func newRoomEntry(roomID string) *roomEntry {
	ctx, cancel := context.WithCancel(context.Background())
	return &roomEntry{
		roomID:    roomID,
		ready:     make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		observers: make(map[uint64]Observer),
	}
}

// Subscribe registers observer for roomID. The observer has received the
// current view by the time Subscribe returns. The first subscription of a
// room derives that view synchronously; later ones get the last snapshot.
func (s *Subscriber) Subscribe(ctx context.Context, roomID string, observer Observer) (Unsubscribe, error) {
	if observer == nil {
		return nil, ErrNilObserver
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriberClosed
	}
	entry, ok := s.entries[roomID]
	if !ok {
		entry = newRoomEntry(roomID)
		s.entries[roomID] = entry
	}
	entry.refs++
	s.mu.Unlock()

	if !ok {
		if err := s.open(ctx, entry); err != nil {
			s.fail(entry, err)
		} else {
			close(entry.ready)
		}
	}

	select {
	case <-entry.ready:
	case <-ctx.Done():
		s.release(entry)
		return nil, ctx.Err()
	}
	if entry.initErr != nil {
		return nil, entry.initErr
	}

	entry.publishMu.Lock()
	id := entry.addObserver(observer)
	observer(*entry.last)
	entry.publishMu.Unlock()

	s.metrics.DeltaUpDownCounter(ctx, metrics.ActiveObservers, 1)

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.removeObserver(id)
			s.metrics.DeltaUpDownCounter(context.Background(), metrics.ActiveObservers, -1)
			s.release(entry)
		})
	}, nil
}

// open subscribes to the feed before the first derivation so that no change
// committed after the derivation can be missed.
func (s *Subscriber) open(ctx context.Context, entry *roomEntry) error {
	sub, err := s.feed.Subscribe(ctx, entry.roomID)
	if err != nil {
		s.logger.Error("failed to open change feed", zap.String("roomID", entry.roomID), zap.Error(err))
		return apperror.Wrap(apperror.TransientStore, "failed to open change feed", err)
	}
	if !entry.setSub(sub) {
		_ = sub.Close()
		return ErrSubscriberClosed
	}
	s.metrics.DeltaUpDownCounter(ctx, metrics.ActiveFeedSubscriptions, 1)

	view, err := s.timedDerive(ctx, entry.roomID)
	if err != nil {
		s.logger.Error("initial membership derivation failed", zap.String("roomID", entry.roomID), zap.Error(err))
		return err
	}
	entry.last = &view

	s.logger.Debug("room sync started", zap.String("roomID", entry.roomID))
	go s.run(entry)
	return nil
}

func (s *Subscriber) fail(entry *roomEntry, err error) {
	s.mu.Lock()
	if s.entries[entry.roomID] == entry {
		delete(s.entries, entry.roomID)
	}
	s.mu.Unlock()

	entry.initErr = err
	close(entry.ready)
	s.stop(entry)
}

func (s *Subscriber) release(entry *roomEntry) {
	s.mu.Lock()
	entry.refs--
	last := entry.refs == 0
	if last && s.entries[entry.roomID] == entry {
		delete(s.entries, entry.roomID)
	}
	s.mu.Unlock()

	if last {
		s.stop(entry)
	}
}

// stop cancels the room goroutine and closes the feed. It does not wait, so
// it is safe to reach from inside an observer.
func (s *Subscriber) stop(entry *roomEntry) {
	entry.stopOnce.Do(func() {
		entry.cancel()

		entry.subMu.Lock()
		sub := entry.sub
		entry.sub = nil
		entry.subMu.Unlock()

		if sub != nil {
			if err := sub.Close(); err != nil {
				s.logger.Warn("failed to close change feed", zap.String("roomID", entry.roomID), zap.Error(err))
			}
			s.metrics.DeltaUpDownCounter(context.Background(), metrics.ActiveFeedSubscriptions, -1)
		}
		s.logger.Debug("room sync stopped", zap.String("roomID", entry.roomID))
	})
}

func (s *Subscriber) run(entry *roomEntry) {
	for {
		events := entry.events()
		if events == nil {
			return
		}

		select {
		case <-entry.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				if entry.ctx.Err() != nil {
					return
				}
				s.logger.Warn("change feed closed unexpectedly, resubscribing", zap.String("roomID", entry.roomID))
				if !s.resubscribe(entry) {
					return
				}
				s.refresh(entry)
				continue
			}

			s.metrics.IncrementCounter(entry.ctx, metrics.FeedEventsReceived)
			coalesced := drain(events)
			s.logger.Debug("room changed",
				zap.String("roomID", entry.roomID),
				zap.String("table", event.Table),
				zap.String("op", string(event.Op)),
				zap.Int("coalesced", coalesced))

			s.refresh(entry)
		}
	}
}

// drain empties whatever is already buffered; one derivation covers them all.
func drain(events <-chan repository.ChangeEvent) int {
	n := 0
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// refresh derives and publishes, retrying with exponential backoff until it
// succeeds or the room is no longer watched. Failed attempts leave the last
// published view in place.
func (s *Subscriber) refresh(entry *roomEntry) {
	operation := func() (struct{}, error) {
		return struct{}{}, s.deriveAndPublish(entry)
	}
	notify := func(err error, next time.Duration) {
		s.logger.Warn("membership derivation failed, retrying",
			zap.String("roomID", entry.roomID),
			zap.Duration("retryIn", next),
			zap.Error(err))
	}

	for entry.ctx.Err() == nil {
		_, err := backoff.Retry(entry.ctx, operation,
			backoff.WithBackOff(s.newBackOff()),
			backoff.WithMaxElapsedTime(retryWindow),
			backoff.WithNotify(notify))
		if err == nil {
			return
		}
	}
}

func (s *Subscriber) resubscribe(entry *roomEntry) bool {
	operation := func() (repository.FeedSubscription, error) {
		return s.feed.Subscribe(entry.ctx, entry.roomID)
	}

	for entry.ctx.Err() == nil {
		sub, err := backoff.Retry(entry.ctx, operation,
			backoff.WithBackOff(s.newBackOff()),
			backoff.WithMaxElapsedTime(retryWindow))
		if err != nil {
			continue
		}
		if !entry.setSub(sub) {
			_ = sub.Close()
			return false
		}
		return true
	}
	return false
}

func (s *Subscriber) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitialInterval
	b.MaxInterval = s.opts.RetryMaxInterval
	return b
}

func (s *Subscriber) deriveAndPublish(entry *roomEntry) error {
	entry.publishMu.Lock()
	defer entry.publishMu.Unlock()

	view, err := s.timedDerive(entry.ctx, entry.roomID)
	if err != nil {
		return err
	}

	entry.last = &view
	for _, observer := range entry.snapshotObservers() {
		observer(view)
	}
	return nil
}

func (s *Subscriber) timedDerive(ctx context.Context, roomID string) (model.MembershipView, error) {
	start := time.Now()
	view, err := s.Derive(ctx, roomID)
	if err != nil {
		s.metrics.IncrementCounter(ctx, metrics.DerivationFailures)
		return view, err
	}
	s.metrics.IncrementCounter(ctx, metrics.MembershipDerivations)
	s.metrics.RecordHistogram(ctx, metrics.DerivationDuration, time.Since(start).Seconds())
	return view, nil
}

// Derive builds the current view of a room straight from the store. A room
// that no longer exists yields an empty view flagged RoomDeleted.
func (s *Subscriber) Derive(ctx context.Context, roomID string) (model.MembershipView, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			return model.NewMembershipView(roomID, nil, nil, true), nil
		}
		return model.MembershipView{}, err
	}

	approved, err := s.requests.ListByRoomAndStatus(ctx, roomID, model.JoinRequestApproved)
	if err != nil {
		return model.MembershipView{}, err
	}

	pending, err := s.requests.ListByRoomAndStatus(ctx, roomID, model.JoinRequestPending)
	if err != nil {
		return model.MembershipView{}, err
	}

	return model.NewMembershipView(roomID, approved, pending, false), nil
}

// Snapshot returns the last published view of a watched room.
func (s *Subscriber) Snapshot(roomID string) (model.MembershipView, bool) {
	s.mu.Lock()
	entry, ok := s.entries[roomID]
	s.mu.Unlock()
	if !ok {
		return model.MembershipView{}, false
	}

	select {
	case <-entry.ready:
	default:
		return model.MembershipView{}, false
	}
	if entry.initErr != nil {
		return model.MembershipView{}, false
	}

	entry.publishMu.Lock()
	defer entry.publishMu.Unlock()
	return *entry.last, true
}

// ActiveRooms returns the number of rooms with at least one observer.
func (s *Subscriber) ActiveRooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every room. Later Subscribe calls fail with ErrSubscriberClosed.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.closed = true
	entries := make([]*roomEntry, 0, len(s.entries))
	for id, entry := range s.entries {
		entries = append(entries, entry)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		s.stop(entry)
	}
}

func (e *roomEntry) events() <-chan repository.ChangeEvent {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.sub == nil {
		return nil
	}
	return e.sub.Events()
}

// setSub installs a feed subscription unless the entry was already stopped.
func (e *roomEntry) setSub(sub repository.FeedSubscription) bool {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.ctx.Err() != nil {
		return false
	}
	e.sub = sub
	return true
}

func (e *roomEntry) addObserver(observer Observer) uint64 {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.nextID++
	e.observers[e.nextID] = observer
	return e.nextID
}

func (e *roomEntry) removeObserver(id uint64) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	delete(e.observers, id)
}

func (e *roomEntry) snapshotObservers() []Observer {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	observers := make([]Observer, 0, len(e.observers))
	for _, observer := range e.observers {
		observers = append(observers, observer)
	}
	return observers
}
