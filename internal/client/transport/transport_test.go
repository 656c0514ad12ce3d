package transport_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rostersync/internal/api"
	"github.com/mcoot/rostersync/internal/client/transport"
	"github.com/mcoot/rostersync/internal/factory"
	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

type TransportSuite struct {
	suite.Suite
	app    *factory.TestApp
	server *httptest.Server
	client *transport.Client
	ctx    context.Context
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	s.ctx = context.Background()
	s.app = factory.NewTestApp()
	s.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:           testutil.NopLogger(),
		RosterController: s.app.RosterController,
		Broadcast:        s.app.Broadcast,
	}))
	s.client = transport.NewClient(s.server.URL)
}

func (s *TransportSuite) TearDownTest() {
	// Ending the hubs ends any open streams so the server can shut down
	s.app.Hubs.Close()
	s.server.Close()
}

func (s *TransportSuite) createRoster(slug string) *model.Roster {
	s.app.MockRandom.QueueString(slug)
	roster, err := s.client.CreateRoster(s.ctx, "Static")
	s.Require().NoError(err)
	return roster
}

func (s *TransportSuite) receive(feed transport.Feed) model.Event {
	select {
	case event, ok := <-feed.Events():
		s.Require().True(ok, "feed closed")
		return event
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for event")
		return nil
	}
}

func (s *TransportSuite) TestHealth() {
	health, err := s.client.Health(s.ctx)
	s.Require().NoError(err)
	s.Equal("ok", health.Status)
}

func (s *TransportSuite) TestRosterAndPlayerRoundTrip() {
	roster := s.createRoster("abc")
	s.Equal(model.RosterSlug("abc"), roster.Slug)

	renamed, err := s.client.UpdateRoster(s.ctx, "abc", "Renamed")
	s.Require().NoError(err)
	s.Equal("Renamed", renamed.Name)

	player, err := s.client.CreatePlayer(s.ctx, "abc", "Tank1", model.RoleTank)
	s.Require().NoError(err)
	s.Equal("Tank1", player.Name)

	name := "Healer1"
	role := model.RoleHealer
	updated, err := s.client.UpdatePlayer(s.ctx, player.ID, model.PlayerUpdate{Name: &name, Role: &role})
	s.Require().NoError(err)
	s.Equal(model.RoleHealer, updated.Role)

	deleted, err := s.client.SoftDeletePlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	s.False(deleted.IsActive())

	active, err := s.client.ListPlayers(s.ctx, "abc", true)
	s.Require().NoError(err)
	s.Empty(active)
	inactive, err := s.client.ListPlayers(s.ctx, "abc", false)
	s.Require().NoError(err)
	s.Len(inactive, 1)

	restored, err := s.client.ActivatePlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	s.True(restored.IsActive())

	got, err := s.client.GetPlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Equal(restored.ID, got.ID)
}

func (s *TransportSuite) TestGear() {
	s.createRoster("abc")
	player, err := s.client.CreatePlayer(s.ctx, "abc", "Tank1", model.RoleTank)
	s.Require().NoError(err)

	gear, err := s.client.GetOrCreateGearChoice(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Equal(model.SourceRaid, gear.Slot(model.SlotWeapon).Source)

	updated, err := s.client.UpdateGearChoice(s.ctx, player.ID,
		model.GearChoiceUpdate{}.SetSource(model.SlotHead, model.SourceTome).SetObtained(model.SlotWeapon, true))
	s.Require().NoError(err)
	s.Equal(model.SourceTome, updated.Slot(model.SlotHead).Source)
	s.True(updated.Slot(model.SlotWeapon).Obtained)
}

func (s *TransportSuite) TestErrorsMapToModel() {
	_, err := s.client.GetRoster(s.ctx, "missing")
	s.ErrorIs(err, model.ErrRosterNotFound)

	_, err = s.client.GetPlayer(s.ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	s.createRoster("abc")
	_, err = s.client.CreatePlayer(s.ctx, "abc", "  ", model.RoleTank)
	s.True(model.IsValidation(err), "got %v", err)
}

func (s *TransportSuite) TestUnreachableServerIsTransient() {
	client := transport.NewClient("http://127.0.0.1:1")
	_, err := client.GetRoster(s.ctx, "abc")
	s.ErrorIs(err, model.ErrTransient)
}

func (s *TransportSuite) TestSSESourceDeliversEvents() {
	s.createRoster("abc")
	source := transport.NewSSESource(s.server.URL, testutil.NopLogger())

	feed, err := source.Open(s.ctx, "abc")
	s.Require().NoError(err)
	defer feed.Close()

	player, err := s.client.CreatePlayer(s.ctx, "abc", "Tank1", model.RoleTank)
	s.Require().NoError(err)

	event := s.receive(feed)
	s.Equal(model.EventRosterUpdated, event.Type())

	_, err = s.client.SoftDeletePlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	deleted, ok := s.receive(feed).(model.PlayerDeleted)
	s.Require().True(ok)
	s.Equal(player.ID, deleted.Player.ID)
}

func (s *TransportSuite) TestSSESourceMissingRoster() {
	source := transport.NewSSESource(s.server.URL, testutil.NopLogger())
	_, err := source.Open(s.ctx, "missing")
	s.ErrorIs(err, model.ErrRosterNotFound)
}

func (s *TransportSuite) TestSSEFeedCloseIsIdempotent() {
	s.createRoster("abc")
	feed, err := transport.NewSSESource(s.server.URL, testutil.NopLogger()).Open(s.ctx, "abc")
	s.Require().NoError(err)
	feed.Close()
	feed.Close()
	_, ok := <-feed.Events()
	s.False(ok)
}

func (s *TransportSuite) TestWSSourceDeliversEvents() {
	s.createRoster("abc")
	player, err := s.client.CreatePlayer(s.ctx, "abc", "Tank1", model.RoleTank)
	s.Require().NoError(err)

	feed, err := transport.NewWSSource(s.server.URL, testutil.NopLogger()).Open(s.ctx, "abc")
	s.Require().NoError(err)
	defer feed.Close()

	name := "Renamed"
	_, err = s.client.UpdatePlayer(s.ctx, player.ID, model.PlayerUpdate{Name: &name})
	s.Require().NoError(err)

	updated, ok := s.receive(feed).(model.PlayerUpdated)
	s.Require().True(ok)
	s.Equal("Renamed", updated.Player.Name)
}

func (s *TransportSuite) TestWSSourceMissingRoster() {
	_, err := transport.NewWSSource(s.server.URL, testutil.NopLogger()).Open(s.ctx, "missing")
	s.ErrorIs(err, model.ErrRosterNotFound)
}

func (s *TransportSuite) TestLocalSource() {
	s.createRoster("abc")
	feed, err := transport.LocalSource{Channel: s.app.Broadcast}.Open(s.ctx, "abc")
	s.Require().NoError(err)
	defer feed.Close()

	_, err = s.client.CreatePlayer(s.ctx, "abc", "Tank1", model.RoleTank)
	s.Require().NoError(err)
	s.Equal(model.EventRosterUpdated, s.receive(feed).Type())
}

// fakeSource hands out feeds the test can end at will
type fakeSource struct {
	mu    sync.Mutex
	feeds []*fakeFeed
	opens chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{opens: make(chan struct{}, 10)}
}

func (f *fakeSource) Open(ctx context.Context, slug model.RosterSlug) (transport.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed := &fakeFeed{events: make(chan model.Event, 10)}
	f.feeds = append(f.feeds, feed)
	f.opens <- struct{}{}
	return feed, nil
}

func (f *fakeSource) feed(i int) *fakeFeed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds[i]
}

type fakeFeed struct {
	events chan model.Event
	once   sync.Once
}

func (f *fakeFeed) Events() <-chan model.Event { return f.events }
func (f *fakeFeed) Close()                     { f.once.Do(func() { close(f.events) }) }

func (s *TransportSuite) TestReconnectingReopensAndNotifies() {
	source := newFakeSource()
	reconnected := make(chan model.RosterSlug, 1)
	r := &transport.Reconnecting{
		Source:      source,
		OnReconnect: func(slug model.RosterSlug) { reconnected <- slug },
		NewBackOff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		Logger:      testutil.NopLogger(),
	}

	feed, err := r.Open(s.ctx, "abc")
	s.Require().NoError(err)
	defer feed.Close()
	<-source.opens

	source.feed(0).events <- model.RosterUpdated{Roster: model.Roster{Slug: "abc"}}
	s.Equal(model.EventRosterUpdated, s.receive(feed).Type())

	// Drop the connection
	source.feed(0).Close()

	select {
	case slug := <-reconnected:
		s.Equal(model.RosterSlug("abc"), slug)
	case <-time.After(2 * time.Second):
		s.FailNow("did not reconnect")
	}

	source.feed(1).events <- model.PlayerUpdated{Player: model.Player{RosterSlug: "abc"}}
	s.Equal(model.EventPlayerUpdated, s.receive(feed).Type())
}

func (s *TransportSuite) TestReconnectingInitialErrorReturned() {
	r := &transport.Reconnecting{Source: transport.NewSSESource(s.server.URL, testutil.NopLogger())}
	_, err := r.Open(s.ctx, "missing")
	s.ErrorIs(err, model.ErrRosterNotFound)
}
