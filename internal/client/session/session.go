// Package session is a client's live connection to one or more rosters.
// Opening a view subscribes to the roster's events and loads its player
// list; edits made through a view are applied optimistically and settled
// against the server.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/rostersync/internal/client/cache"
	"github.com/mcoot/rostersync/internal/client/mutation"
	"github.com/mcoot/rostersync/internal/client/reconcile"
	"github.com/mcoot/rostersync/internal/client/transport"
	"github.com/mcoot/rostersync/internal/client/xivgear"
	"github.com/mcoot/rostersync/internal/model"
)

// Gateway performs reads and writes against the server. Both the HTTP
// client and the server-side controller satisfy it.
type Gateway interface {
	CreateRoster(ctx context.Context, name string) (*model.Roster, error)
	GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error)
	UpdateRoster(ctx context.Context, slug model.RosterSlug, name string) (*model.Roster, error)
	ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error)
	CreatePlayer(ctx context.Context, slug model.RosterSlug, name string, role model.Role) (*model.Player, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	UpdatePlayer(ctx context.Context, id model.PlayerID, update model.PlayerUpdate) (*model.Player, error)
	SoftDeletePlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	ActivatePlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetOrCreateGearChoice(ctx context.Context, id model.PlayerID) (*model.GearChoice, error)
	UpdateGearChoice(ctx context.Context, id model.PlayerID, update model.GearChoiceUpdate) (*model.GearChoice, error)
}

var _ Gateway = (*transport.Client)(nil)

// Importer turns an external gear plan link into a gear update
type Importer interface {
	Import(ctx context.Context, rawURL string) (model.GearChoiceUpdate, error)
}

var _ Importer = (*xivgear.Client)(nil)

// Config holds a session's collaborators
type Config struct {
	Gateway Gateway
	Source  transport.Source
	Logger  *slog.Logger

	// Importer backs View.ImportGear; without one imports fail
	Importer Importer

	// Reconnect reopens dropped feeds and refreshes the roster afterwards
	Reconnect  bool
	NewBackOff func() backoff.BackOff

	CacheOptions []cache.Option
}

// Session owns a client cache and the event feeds that keep it current
type Session struct {
	cache      *cache.Cache
	coord      *mutation.Coordinator
	gateway    Gateway
	importer   Importer
	source     transport.Source
	reconciler *reconcile.Reconciler
	logger     *slog.Logger

	mu     sync.Mutex
	feeds  map[model.RosterSlug]*liveFeed
	closed bool
}

// ErrClosed is returned when opening a roster on a closed session
var ErrClosed = errors.New("session closed")

// ErrNoImporter is returned by ImportGear when the session has no Importer
var ErrNoImporter = errors.New("no gear importer configured")

// liveFeed is one roster's event stream, shared by every open view of it
type liveFeed struct {
	feed   transport.Feed
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a session
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "session"))

	c := cache.New(append([]cache.Option{cache.WithLogger(logger)}, cfg.CacheOptions...)...)
	s := &Session{
		cache:      c,
		coord:      mutation.NewCoordinator(c),
		gateway:    cfg.Gateway,
		importer:   cfg.Importer,
		reconciler: reconcile.New(c, logger),
		logger:     logger,
		feeds:      make(map[model.RosterSlug]*liveFeed),
	}

	s.source = cfg.Source
	if cfg.Reconnect {
		s.source = &transport.Reconnecting{
			Source:      cfg.Source,
			OnReconnect: s.refresh,
			NewBackOff:  cfg.NewBackOff,
			Logger:      logger,
		}
	}
	return s
}

// Cache returns the session's cache
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

// Pending reports unsettled mutations touching keys matched by sel
func (s *Session) Pending(sel cache.Selector) int {
	return s.coord.Pending(sel)
}

// refresh marks everything cached for a roster stale; events sent while
// disconnected were never seen
func (s *Session) refresh(slug model.RosterSlug) {
	s.logger.Info("refreshing roster after reconnect", slog.String("roster", string(slug)))
	s.cache.Invalidate(cache.Roster(slug))
}

// Live reports whether the session holds an event feed for slug
func (s *Session) Live(slug model.RosterSlug) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.feeds[slug]
	return ok
}

// acquire takes a reference on slug's feed, opening it if this is the
// first view. The source is opened without holding mu.
func (s *Session) acquire(ctx context.Context, slug model.RosterSlug) error {
	if s.addRef(slug) {
		return nil
	}

	feed, err := s.source.Open(ctx, slug)
	if err != nil {
		return fmt.Errorf("failed to subscribe to roster %s: %w", slug, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		feed.Close()
		return ErrClosed
	}
	if lf, ok := s.feeds[slug]; ok {
		// Another view opened the roster meanwhile; share its feed
		lf.refs++
		s.mu.Unlock()
		feed.Close()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	lf := &liveFeed{feed: feed, refs: 1, cancel: cancel, done: make(chan struct{})}
	s.feeds[slug] = lf
	s.mu.Unlock()

	go func() {
		defer close(lf.done)
		s.reconciler.Run(runCtx, feed.Events())
	}()
	return nil
}

func (s *Session) addRef(slug model.RosterSlug) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lf, ok := s.feeds[slug]; ok {
		lf.refs++
		return true
	}
	return false
}

func (s *Session) release(slug model.RosterSlug) {
	s.mu.Lock()
	lf, ok := s.feeds[slug]
	if !ok {
		s.mu.Unlock()
		return
	}
	lf.refs--
	if lf.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.feeds, slug)
	s.mu.Unlock()

	stopFeed(lf)
}

func stopFeed(lf *liveFeed) {
	lf.cancel()
	lf.feed.Close()
	<-lf.done
}

// Close stops every feed. Open views stay readable but no longer update,
// and later OpenRoster calls fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	feeds := s.feeds
	s.feeds = make(map[model.RosterSlug]*liveFeed)
	s.closed = true
	s.mu.Unlock()

	for _, lf := range feeds {
		stopFeed(lf)
	}
}

// CreateRoster creates a roster and seeds its cache entry
func (s *Session) CreateRoster(name string) *mutation.Attempt[*model.Roster] {
	return mutation.Start(s.coord, mutation.Mutation[*model.Roster]{
		Name: "createRoster",
		Call: func(ctx context.Context) (*model.Roster, error) {
			return s.gateway.CreateRoster(ctx, name)
		},
		Adopt: func(r *model.Roster) []mutation.Write {
			return []mutation.Write{{Key: cache.RosterKey(r.Slug), Value: *r}}
		},
	})
}

// OpenRoster subscribes to slug's events and loads its active players.
// The view must be closed; the feed stops when the last view of a roster
// closes.
func (s *Session) OpenRoster(ctx context.Context, slug model.RosterSlug) (*View, error) {
	if err := s.acquire(ctx, slug); err != nil {
		return nil, err
	}

	v := &View{session: s, slug: slug}

	// Subscribed first, so nothing published after the load is missed
	if err := v.load(ctx, cache.RosterKey(slug), s.fetchRoster(slug)); err != nil {
		s.release(slug)
		return nil, err
	}
	if err := v.load(ctx, cache.PlayerListKey(slug, true), s.fetchPlayers(slug, true)); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (s *Session) fetchRoster(slug model.RosterSlug) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		r, err := s.gateway.GetRoster(ctx, slug)
		if err != nil {
			return nil, err
		}
		return *r, nil
	}
}

func (s *Session) fetchPlayers(slug model.RosterSlug, active bool) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		return s.gateway.ListPlayers(ctx, slug, active)
	}
}

func (s *Session) fetchPlayer(id model.PlayerID) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		p, err := s.gateway.GetPlayer(ctx, id)
		if err != nil {
			return nil, err
		}
		return *p, nil
	}
}

func (s *Session) fetchGear(id model.PlayerID) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		g, err := s.gateway.GetOrCreateGearChoice(ctx, id)
		if err != nil {
			return nil, err
		}
		return *g, nil
	}
}
