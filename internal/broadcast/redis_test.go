package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

type RedisSuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *redis.Client
	ctx    context.Context
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.ctx = context.Background()
}

func (s *RedisSuite) TearDownTest() {
	_ = s.client.Close()
	s.mini.Close()
}

func (s *RedisSuite) newInstance() (*Redis, *Local) {
	local := NewLocal(testutil.NopLogger())
	r := NewRedis(s.client, local, testutil.NopLogger())
	s.Require().NoError(r.Start(s.ctx))
	s.T().Cleanup(func() {
		_ = r.Close()
		local.Close()
	})
	return r, local
}

func (s *RedisSuite) TestEventsCrossInstances() {
	a, _ := s.newInstance()
	b, _ := s.newInstance()

	sub := b.Subscribe(s.ctx, "abc")
	defer sub.Close()

	deleted := model.PlayerDeleted{RosterSlug: "abc", Player: model.Player{ID: "p1", RosterSlug: "abc", Name: "Tank1"}}
	a.Publish(s.ctx, deleted)

	got := receive(s.T(), sub.Events())
	s.Equal(deleted, got)
}

func (s *RedisSuite) TestPublishUsesRosterChannel() {
	_, local := s.newInstance()
	sub := local.Subscribe(s.ctx, "abc")
	defer sub.Close()

	data, err := model.EncodeEvent(playerUpdated("abc", "raw"))
	s.Require().NoError(err)
	s.mini.Publish("rostersync:events:abc", string(data))

	got := receive(s.T(), sub.Events())
	s.Equal("raw", got.(model.PlayerUpdated).Player.Name)
}

func (s *RedisSuite) TestGarbageMessagesAreSkipped() {
	_, local := s.newInstance()
	sub := local.Subscribe(s.ctx, "abc")
	defer sub.Close()

	s.mini.Publish("rostersync:events:abc", "not json")
	data, err := model.EncodeEvent(playerUpdated("abc", "after"))
	s.Require().NoError(err)
	s.mini.Publish("rostersync:events:abc", string(data))

	got := receive(s.T(), sub.Events())
	s.Equal("after", got.(model.PlayerUpdated).Player.Name)
}

func (s *RedisSuite) TestStartTwiceFails() {
	r, _ := s.newInstance()
	s.Error(r.Start(s.ctx))
}

func (s *RedisSuite) TestPublishFailureIsSwallowed() {
	local := NewLocal(testutil.NopLogger())
	defer local.Close()
	r := NewRedis(s.client, local, testutil.NopLogger())
	s.mini.Close()

	done := make(chan struct{})
	go func() {
		r.Publish(s.ctx, playerUpdated("abc", "x"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("publish blocked on a dead server")
	}
}
