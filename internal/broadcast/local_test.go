package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

type LocalSuite struct {
	suite.Suite
	local *Local
	ctx   context.Context
}

func TestLocalSuite(t *testing.T) {
	suite.Run(t, new(LocalSuite))
}

func (s *LocalSuite) SetupTest() {
	s.local = NewLocal(testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *LocalSuite) TearDownTest() {
	s.local.Close()
}

func (s *LocalSuite) TestPublishReachesSubscribersOfTopicOnly() {
	abc := s.local.Subscribe(s.ctx, "abc")
	defer abc.Close()
	xyz := s.local.Subscribe(s.ctx, "xyz")
	defer xyz.Close()

	s.local.Publish(s.ctx, playerUpdated("abc", "Tank1"))

	got := receive(s.T(), abc.Events())
	s.Equal(model.RosterSlug("abc"), got.Topic())

	select {
	case e := <-xyz.Events():
		s.Failf("unexpected event", "xyz received %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *LocalSuite) TestPublishWithoutSubscribersIsNoop() {
	s.local.Publish(s.ctx, playerUpdated("nobody", "x"))
	s.Equal(0, s.local.HubCount())
}

func (s *LocalSuite) TestCloseIsIdempotentAndEndsStream() {
	sub := s.local.Subscribe(s.ctx, "abc")
	sub.Close()
	sub.Close()

	_, ok := <-sub.Events()
	s.False(ok)

	select {
	case <-sub.Done():
	default:
		s.Fail("done should be closed")
	}
}

func (s *LocalSuite) TestContextCancelEndsSubscription() {
	ctx, cancel := context.WithCancel(s.ctx)
	sub := s.local.Subscribe(ctx, "abc")
	cancel()

	select {
	case _, ok := <-sub.Events():
		s.False(ok)
	case <-time.After(time.Second):
		s.Fail("stream did not end after cancel")
	}
}

func (s *LocalSuite) TestCleanupKeepsHubsWithSubscribers() {
	live := s.local.Subscribe(s.ctx, "abc")
	defer live.Close()
	gone := s.local.Subscribe(s.ctx, "xyz")
	gone.Close()

	s.local.CleanupEmptyHubs()

	s.Equal(1, s.local.HubCount())
	s.NotNil(s.local.GetHub("abc"))
	s.Nil(s.local.GetHub("xyz"))
}

func (s *LocalSuite) TestSubscribeAfterCleanupCreatesFreshHub() {
	first := s.local.Subscribe(s.ctx, "abc")
	first.Close()
	s.local.CleanupEmptyHubs()

	second := s.local.Subscribe(s.ctx, "abc")
	defer second.Close()
	s.local.Publish(s.ctx, playerUpdated("abc", "again"))

	got := receive(s.T(), second.Events())
	s.Equal("again", got.(model.PlayerUpdated).Player.Name)
}

func (s *LocalSuite) TestRemoveHubEndsSubscriptionsAndCloseStillSafe() {
	sub := s.local.Subscribe(s.ctx, "abc")
	s.local.RemoveHub("abc")

	_, ok := <-sub.Events()
	s.False(ok)
	sub.Close()
}

func (s *LocalSuite) TestJanitorStopsWithContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.local.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	sub := s.local.Subscribe(s.ctx, "abc")
	sub.Close()
	s.Eventually(func() bool { return s.local.HubCount() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("janitor did not stop")
	}
}
