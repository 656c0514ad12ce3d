package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/client/cache"
	"github.com/mcoot/rostersync/internal/client/session"
	"github.com/mcoot/rostersync/internal/client/transport"
	"github.com/mcoot/rostersync/internal/client/xivgear"
	"github.com/mcoot/rostersync/internal/client/xivgear/xivgeartest"
	"github.com/mcoot/rostersync/internal/factory"
	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

const (
	slug      model.RosterSlug = "abc"
	waitFor                    = 2 * time.Second
	pollEvery                  = 10 * time.Millisecond
)

type SessionSuite struct {
	suite.Suite
	app *factory.TestApp
	ctx context.Context
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.ctx = context.Background()
	s.app = factory.NewTestApp()
	// Registered first so it runs after every session and view is closed
	s.T().Cleanup(s.app.Hubs.Close)
	s.app.MockRandom.QueueString(string(slug))
	_, err := s.app.RosterController.CreateRoster(s.ctx, "Static")
	s.Require().NoError(err)
}

func (s *SessionSuite) newSession(gateway session.Gateway) *session.Session {
	return s.newSessionWith(session.Config{Gateway: gateway})
}

// newSessionWith fills in the local feed, logger and inline dispatch
func (s *SessionSuite) newSessionWith(cfg session.Config) *session.Session {
	cfg.Source = transport.LocalSource{Channel: s.app.Broadcast}
	cfg.Logger = testutil.NopLogger()
	cfg.CacheOptions = []cache.Option{cache.WithDispatch(cache.Inline)}
	sess := session.New(cfg)
	s.T().Cleanup(sess.Close)
	return sess
}

func (s *SessionSuite) open(sess *session.Session) *session.View {
	view, err := sess.OpenRoster(s.ctx, slug)
	s.Require().NoError(err)
	s.T().Cleanup(view.Close)
	return view
}

func (s *SessionSuite) addPlayer(name string) *model.Player {
	p, err := s.app.RosterController.CreatePlayer(s.ctx, slug, name, model.RoleTank)
	s.Require().NoError(err)
	return p
}

func names(players []model.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Name)
	}
	return out
}

func (s *SessionSuite) TestOpenLoadsRosterAndPlayers() {
	s.addPlayer("Tank1")
	view := s.open(s.newSession(s.app.RosterController))

	roster, ok := view.Roster()
	s.Require().True(ok)
	s.Equal("Static", roster.Name)

	players, ok := view.Players()
	s.Require().True(ok)
	s.Equal([]string{"Tank1"}, names(players))
}

func (s *SessionSuite) TestOpenMissingRoster() {
	sess := s.newSession(s.app.RosterController)
	_, err := sess.OpenRoster(s.ctx, "missing")
	s.ErrorIs(err, model.ErrRosterNotFound)
	s.False(sess.Live("missing"))
}

func (s *SessionSuite) TestCreatePlayerReachesEveryClient() {
	a := s.open(s.newSession(s.app.RosterController))
	b := s.open(s.newSession(s.app.RosterController))

	player, err := a.CreatePlayer("Tank1", model.RoleTank).Await(s.ctx)
	s.Require().NoError(err)
	s.Equal("Tank1", player.Name)
	s.Equal(slug, player.RosterSlug)

	players, _ := a.Players()
	s.Equal([]string{"Tank1"}, names(players))
	cached, ok := a.Player(player.ID)
	s.Require().True(ok)
	s.Equal(*player, cached)

	s.Eventually(func() bool {
		players, _ := b.Players()
		return len(players) == 1 && players[0].ID == player.ID
	}, waitFor, pollEvery)
}

// failingGateway rejects gear updates as if the network dropped
type failingGateway struct {
	session.Gateway
}

func (failingGateway) UpdateGearChoice(ctx context.Context, id model.PlayerID, update model.GearChoiceUpdate) (*model.GearChoice, error) {
	return nil, fmt.Errorf("%w: connection reset", model.ErrTransient)
}

func (s *SessionSuite) TestFailedGearUpdateRollsBack() {
	player := s.addPlayer("Tank1")
	view := s.open(s.newSession(failingGateway{s.app.RosterController}))

	before, err := view.LoadGear(s.ctx, player.ID)
	s.Require().NoError(err)
	s.False(before.Slot(model.SlotWeapon).Obtained)

	attempt := view.UpdateGear(player.ID, model.GearChoiceUpdate{}.SetObtained(model.SlotWeapon, true))
	optimistic, _ := view.Gear(player.ID)
	s.True(optimistic.Slot(model.SlotWeapon).Obtained)
	s.Equal(1, view.Pending())

	_, err = attempt.Await(s.ctx)
	s.ErrorIs(err, model.ErrTransient)

	after, _ := view.Gear(player.ID)
	s.Equal(before, after)
	s.Equal(0, view.Pending())

	server, err := s.app.RosterController.GetOrCreateGearChoice(s.ctx, player.ID)
	s.Require().NoError(err)
	s.False(server.Slot(model.SlotWeapon).Obtained)
}

func (s *SessionSuite) TestCrossClientSoftDelete() {
	player := s.addPlayer("Tank1")
	a := s.open(s.newSession(s.app.RosterController))
	bSession := s.newSession(s.app.RosterController)
	b := s.open(bSession)
	_, err := b.LoadGear(s.ctx, player.ID)
	s.Require().NoError(err)

	attempt := a.DeletePlayer(player.ID)
	optimistic, _ := a.Players()
	s.Empty(optimistic, "removed before the server answers")

	deleted, err := attempt.Await(s.ctx)
	s.Require().NoError(err)
	s.False(deleted.IsActive())

	s.Eventually(func() bool {
		players, ok := b.Players()
		return ok && len(players) == 0
	}, waitFor, pollEvery)
	s.Eventually(func() bool {
		p, ok := b.Player(player.ID)
		return ok && !p.IsActive()
	}, waitFor, pollEvery)

	// Only the lists are affected
	s.False(bSession.Cache().IsStale(cache.GearChoiceKey(slug, player.ID)))
}

func (s *SessionSuite) TestSelfDeliveryConverges() {
	player := s.addPlayer("Tank1")
	s.addPlayer("Healer1")
	view := s.open(s.newSession(s.app.RosterController))

	name := "MainTank"
	_, err := view.UpdatePlayer(player.ID, model.PlayerUpdate{Name: &name}).Await(s.ctx)
	s.Require().NoError(err)

	server, err := s.app.RosterController.ListPlayers(s.ctx, slug, true)
	s.Require().NoError(err)
	s.Eventually(func() bool {
		players, _ := view.Players()
		p, _ := view.Player(player.ID)
		return assert.ObjectsAreEqual(server, players) && p.Name == name
	}, waitFor, pollEvery)
}

func (s *SessionSuite) TestUpdatePlayerIsOptimisticInList() {
	player := s.addPlayer("Tank1")
	view := s.open(s.newSession(s.app.RosterController))

	role := model.RoleHealer
	attempt := view.UpdatePlayer(player.ID, model.PlayerUpdate{Role: &role})
	players, _ := view.Players()
	s.Require().Len(players, 1)
	s.Equal(model.RoleHealer, players[0].Role)

	updated, err := attempt.Await(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.RoleHealer, updated.Role)
}

func (s *SessionSuite) TestActivateRestoresPlayer() {
	player := s.addPlayer("Tank1")
	_, err := s.app.RosterController.SoftDeletePlayer(s.ctx, player.ID)
	s.Require().NoError(err)

	view := s.open(s.newSession(s.app.RosterController))
	inactive, err := view.LoadInactive(s.ctx)
	s.Require().NoError(err)
	s.Len(inactive, 1)
	_, err = view.LoadPlayer(s.ctx, player.ID)
	s.Require().NoError(err)

	attempt := view.ActivatePlayer(player.ID)
	inactive, _ = view.InactivePlayers()
	s.Empty(inactive)
	cached, _ := view.Player(player.ID)
	s.True(cached.IsActive())

	_, err = attempt.Await(s.ctx)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		players, _ := view.Players()
		return len(players) == 1 && players[0].ID == player.ID
	}, waitFor, pollEvery)
}

func (s *SessionSuite) TestRenameReachesOtherClients() {
	a := s.open(s.newSession(s.app.RosterController))
	b := s.open(s.newSession(s.app.RosterController))

	attempt := a.Rename("Savage")
	r, _ := a.Roster()
	s.Equal("Savage", r.Name)
	_, err := attempt.Await(s.ctx)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		r, _ := b.Roster()
		return r.Name == "Savage"
	}, waitFor, pollEvery)
}

func (s *SessionSuite) TestViewsShareOneFeed() {
	sess := s.newSession(s.app.RosterController)
	first, err := sess.OpenRoster(s.ctx, slug)
	s.Require().NoError(err)
	second, err := sess.OpenRoster(s.ctx, slug)
	s.Require().NoError(err)
	s.True(sess.Live(slug))

	first.Close()
	first.Close()
	s.True(sess.Live(slug), "second view still open")

	second.Close()
	s.False(sess.Live(slug))
}

func (s *SessionSuite) TestCreateRoster() {
	sess := s.newSession(s.app.RosterController)
	s.app.MockRandom.QueueString("xyz")
	roster, err := sess.CreateRoster("Alt").Await(s.ctx)
	s.Require().NoError(err)

	cached, ok := cache.Value[model.Roster](sess.Cache(), cache.RosterKey("xyz"))
	s.Require().True(ok)
	s.Equal(*roster, cached)
}

// trackingSource remembers the subscriptions it opens so a test can drop them
type trackingSource struct {
	channel broadcast.Channel
	mu      sync.Mutex
	subs    []*broadcast.Subscription
}

func (t *trackingSource) Open(ctx context.Context, slug model.RosterSlug) (transport.Feed, error) {
	sub := t.channel.Subscribe(context.WithoutCancel(ctx), slug)
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return sub, nil
}

func (t *trackingSource) drop(i int) {
	t.mu.Lock()
	sub := t.subs[i]
	t.mu.Unlock()
	sub.Close()
}

// countingGateway counts player list fetches
type countingGateway struct {
	session.Gateway
	lists atomic.Int32
}

func (g *countingGateway) ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error) {
	g.lists.Add(1)
	return g.Gateway.ListPlayers(ctx, slug, active)
}

func (s *SessionSuite) TestReconnectRefreshesRoster() {
	source := &trackingSource{channel: s.app.Broadcast}
	gateway := &countingGateway{Gateway: s.app.RosterController}
	sess := session.New(session.Config{
		Gateway:      gateway,
		Source:       source,
		Logger:       testutil.NopLogger(),
		Reconnect:    true,
		NewBackOff:   func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		CacheOptions: []cache.Option{cache.WithDispatch(cache.Inline)},
	})
	s.T().Cleanup(sess.Close)
	view := s.open(sess)
	s.EqualValues(1, gateway.lists.Load())

	source.drop(0)

	s.Eventually(func() bool {
		return gateway.lists.Load() >= 2
	}, waitFor, pollEvery)

	// The new feed is live
	s.addPlayer("Tank1")
	s.Eventually(func() bool {
		players, _ := view.Players()
		return len(players) == 1
	}, waitFor, pollEvery)
}

func (s *SessionSuite) TestPlayerUpdateReachesOtherClientsList() {
	player := s.addPlayer("Tank1")
	a := s.open(s.newSession(s.app.RosterController))
	b := s.open(s.newSession(s.app.RosterController))

	var changes atomic.Int32
	stop := b.Subscribe(func() { changes.Add(1) })
	defer stop()

	s.app.MockClock.Advance(time.Minute)
	name := "MainTank"
	_, err := a.UpdatePlayer(player.ID, model.PlayerUpdate{Name: &name}).Await(s.ctx)
	s.Require().NoError(err)

	players, _ := a.Players()
	s.Equal([]string{"MainTank"}, names(players))
	s.Eventually(func() bool {
		players, _ := b.Players()
		return assert.ObjectsAreEqual([]string{"MainTank"}, names(players))
	}, waitFor, pollEvery)
	s.Positive(changes.Load(), "subscribers hear about single-player changes")
}

// heldGateway lets player updates reach the server but holds the reply
type heldGateway struct {
	session.Gateway
	written chan struct{}
	release chan struct{}
}

func (g *heldGateway) UpdatePlayer(ctx context.Context, id model.PlayerID, update model.PlayerUpdate) (*model.Player, error) {
	p, err := g.Gateway.UpdatePlayer(ctx, id, update)
	close(g.written)
	<-g.release
	return p, err
}

func (s *SessionSuite) TestOwnEventBeforeReplyConverges() {
	player := s.addPlayer("Tank1")
	gateway := &heldGateway{Gateway: s.app.RosterController, written: make(chan struct{}), release: make(chan struct{})}
	sess := s.newSession(gateway)
	view := s.open(sess)
	_, err := view.LoadPlayer(s.ctx, player.ID)
	s.Require().NoError(err)

	s.app.MockClock.Advance(time.Minute)
	name := "MainTank"
	attempt := view.UpdatePlayer(player.ID, model.PlayerUpdate{Name: &name})
	optimistic, _ := view.Player(player.ID)
	s.Equal(name, optimistic.Name)
	s.True(player.UpdatedAt.Equal(optimistic.UpdatedAt), "optimistic value keeps the old stamp")

	settled := make(chan error, 1)
	go func() {
		_, err := attempt.Await(s.ctx)
		settled <- err
	}()
	<-gateway.written

	server, err := s.app.RosterController.GetPlayer(s.ctx, player.ID)
	s.Require().NoError(err)

	// The broadcast lands while the reply is still held
	s.Eventually(func() bool {
		p, _ := view.Player(player.ID)
		players, _ := view.Players()
		return assert.ObjectsAreEqual(*server, p) && assert.ObjectsAreEqual([]model.Player{*server}, players)
	}, waitFor, pollEvery)
	s.Equal(1, view.Pending())

	close(gateway.release)
	s.Require().NoError(<-settled)

	p, _ := view.Player(player.ID)
	s.Equal(*server, p)
	list, err := s.app.RosterController.ListPlayers(s.ctx, slug, true)
	s.Require().NoError(err)
	s.Eventually(func() bool {
		players, _ := view.Players()
		raw, _ := cache.Value[[]model.Player](sess.Cache(), cache.PlayerListKey(slug, true))
		return assert.ObjectsAreEqual(list, players) && assert.ObjectsAreEqual(list, raw)
	}, waitFor, pollEvery)
	s.Equal(0, view.Pending())
}

// slowSource stalls opening one roster until released
type slowSource struct {
	transport.Source
	slow    model.RosterSlug
	entered chan struct{}
	release chan struct{}
}

func (src *slowSource) Open(ctx context.Context, slug model.RosterSlug) (transport.Feed, error) {
	if slug == src.slow {
		close(src.entered)
		<-src.release
	}
	return src.Source.Open(ctx, slug)
}

func (s *SessionSuite) TestSlowFeedDoesNotBlockOtherRosters() {
	source := &slowSource{
		Source:  transport.LocalSource{Channel: s.app.Broadcast},
		slow:    "slow",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sess := session.New(session.Config{
		Gateway:      s.app.RosterController,
		Source:       source,
		Logger:       testutil.NopLogger(),
		CacheOptions: []cache.Option{cache.WithDispatch(cache.Inline)},
	})
	s.T().Cleanup(sess.Close)

	slowDone := make(chan error, 1)
	go func() {
		_, err := sess.OpenRoster(s.ctx, "slow")
		slowDone <- err
	}()
	<-source.entered

	opened := make(chan error, 1)
	go func() {
		view, err := sess.OpenRoster(s.ctx, slug)
		if err == nil {
			s.True(sess.Live(slug))
			view.Close()
		}
		opened <- err
	}()
	select {
	case err := <-opened:
		s.Require().NoError(err)
	case <-time.After(waitFor):
		s.FailNow("opening one roster waited on another's feed")
	}

	close(source.release)
	s.ErrorIs(<-slowDone, model.ErrRosterNotFound)
	s.False(sess.Live("slow"))
}

func (s *SessionSuite) TestOpenAfterCloseFails() {
	sess := s.newSession(s.app.RosterController)
	sess.Close()

	_, err := sess.OpenRoster(s.ctx, slug)
	s.ErrorIs(err, session.ErrClosed)
	s.False(sess.Live(slug))
}

const importSetID = "3f2b8c1e-9d4a-4e7b-8a6f-1c2d3e4f5a6b"

func (s *SessionSuite) gearServer() *xivgeartest.Server {
	server := xivgeartest.NewServer()
	s.T().Cleanup(server.Close)
	server.Sets[importSetID] = `{"job":"WHM","items":{"Weapon":{"id":1},"Head":{"id":2},"Wrist":{"id":3}}}`
	server.Items["WHM"] = `{"items":[{"primaryKey":1,"acquisitionSource":"SavageRaid"},{"primaryKey":2,"acquisitionSource":"AugTome"}]}`
	return server
}

func (s *SessionSuite) TestImportGearAdoptsImportedSources() {
	player := s.addPlayer("Tank1")
	_, err := s.app.RosterController.UpdateGearChoice(s.ctx, player.ID,
		model.GearChoiceUpdate{}.SetSource(model.SlotFeet, model.SourceTome).SetObtained(model.SlotHead, true))
	s.Require().NoError(err)

	server := s.gearServer()
	view := s.open(s.newSessionWith(session.Config{
		Gateway:  s.app.RosterController,
		Importer: xivgear.NewClient(server.URL, server.URL),
	}))
	_, err = view.LoadGear(s.ctx, player.ID)
	s.Require().NoError(err)

	gear, err := view.ImportGear(player.ID, xivgeartest.SetURL(importSetID)).Await(s.ctx)
	s.Require().NoError(err)

	s.Equal(model.SourceRaid, gear.Slot(model.SlotWeapon).Source)
	s.Equal(model.SourceTome, gear.Slot(model.SlotHead).Source)
	s.Equal(model.SourceCrafted, gear.Slot(model.SlotBracelet).Source)
	// Slots the set leaves empty and obtained flags are untouched
	s.Equal(model.SourceTome, gear.Slot(model.SlotFeet).Source)
	s.True(gear.Slot(model.SlotHead).Obtained)

	cached, ok := view.Gear(player.ID)
	s.Require().True(ok)
	s.Equal(*gear, cached)
	s.Equal(0, view.Pending())
}

func (s *SessionSuite) TestImportGearBadLinkLeavesGear() {
	player := s.addPlayer("Tank1")
	server := s.gearServer()
	view := s.open(s.newSessionWith(session.Config{
		Gateway:  s.app.RosterController,
		Importer: xivgear.NewClient(server.URL, server.URL),
	}))
	before, err := view.LoadGear(s.ctx, player.ID)
	s.Require().NoError(err)

	_, err = view.ImportGear(player.ID, "https://example.com/?page=sl%7C"+importSetID).Await(s.ctx)
	s.True(model.IsValidation(err), err)

	after, _ := view.Gear(player.ID)
	s.Equal(before, after)
}

func (s *SessionSuite) TestImportGearWithoutImporter() {
	player := s.addPlayer("Tank1")
	view := s.open(s.newSession(s.app.RosterController))

	_, err := view.ImportGear(player.ID, xivgeartest.SetURL(importSetID)).Await(s.ctx)
	s.ErrorIs(err, session.ErrNoImporter)
}
