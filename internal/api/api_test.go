package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rostersync/internal/api"
	"github.com/mcoot/rostersync/internal/api/apierr"
	"github.com/mcoot/rostersync/internal/api/response"
	"github.com/mcoot/rostersync/internal/factory"
	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(app.Hubs.Close)

	router := api.NewRouter(api.RouterConfig{
		Logger:           testutil.NopLogger(),
		RosterController: app.RosterController,
		Broadcast:        app.Broadcast,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (ts *testServer) createRoster(t *testing.T, slug string) model.Roster {
	t.Helper()
	ts.app.MockRandom.QueueString(slug)
	rr := ts.request(http.MethodPost, "/api/v1/rosters", map[string]string{"name": "Static"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[model.Roster](t, rr)
}

func (ts *testServer) createPlayer(t *testing.T, slug, name string) model.Player {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/rosters/"+slug+"/players", map[string]string{"name": name, "role": "Tank"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[model.Player](t, rr)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[response.Health](t, rr).Status)
}

func TestCreateAndGetRoster(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createRoster(t, "abc")
	assert.Equal(t, model.RosterSlug("abc"), created.Slug)

	rr := ts.request(http.MethodGet, "/api/v1/rosters/abc", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Static", decodeBody[model.Roster](t, rr).Name)
}

func TestRenameRoster(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")

	rr := ts.request(http.MethodPatch, "/api/v1/rosters/abc", map[string]string{"name": "Savage"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Savage", decodeBody[model.Roster](t, rr).Name)
}

func TestRosterNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/rosters/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeRosterNotFound, decodeBody[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestCreatePlayerValidationError(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")

	rr := ts.request(http.MethodPost, "/api/v1/rosters/abc/players", map[string]string{"name": "", "role": "Tank"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeValidationError, body.Error.Code)
	assert.Equal(t, "name", body.Error.Field)
}

func TestInvalidBody(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")

	rr := ts.request(http.MethodPost, "/api/v1/rosters/abc/players", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decodeBody[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestPlayerLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")
	p := ts.createPlayer(t, "abc", "Tank1")

	rr := ts.request(http.MethodGet, "/api/v1/rosters/abc/players", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[response.PlayerList](t, rr).Players, 1)

	rr = ts.request(http.MethodPatch, "/api/v1/players/"+string(p.ID), map[string]string{"role": "Healer"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.RoleHealer, decodeBody[model.Player](t, rr).Role)

	rr = ts.request(http.MethodDelete, "/api/v1/players/"+string(p.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, decodeBody[model.Player](t, rr).DeletedAt)

	rr = ts.request(http.MethodGet, "/api/v1/rosters/abc/players?active=true", nil)
	assert.Empty(t, decodeBody[response.PlayerList](t, rr).Players)
	rr = ts.request(http.MethodGet, "/api/v1/rosters/abc/players?active=false", nil)
	assert.Len(t, decodeBody[response.PlayerList](t, rr).Players, 1)

	rr = ts.request(http.MethodPost, "/api/v1/players/"+string(p.ID)+"/activate", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decodeBody[model.Player](t, rr).DeletedAt)
}

func TestListPlayersBadActiveFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")

	rr := ts.request(http.MethodGet, "/api/v1/rosters/abc/players?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGearEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")
	p := ts.createPlayer(t, "abc", "Tank1")

	rr := ts.request(http.MethodGet, "/api/v1/players/"+string(p.ID)+"/gear", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"weapon":"Raid"`)

	rr = ts.request(http.MethodPatch, "/api/v1/players/"+string(p.ID)+"/gear", `{"weaponObtained":true,"ring1":"Crafted"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	gear := decodeBody[model.GearChoice](t, rr)
	assert.True(t, gear.Slot(model.SlotWeapon).Obtained)
	assert.Equal(t, model.SourceCrafted, gear.Slot(model.SlotRing1).Source)

	rr = ts.request(http.MethodPatch, "/api/v1/players/"+string(p.ID)+"/gear", `{"head":"Shop"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGearForMissingPlayer(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/missing/gear", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decodeBody[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestEventsForMissingRoster(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/rosters/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMutationResponseMatchesBroadcastPayload(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoster(t, "abc")
	p := ts.createPlayer(t, "abc", "Tank1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sub := ts.app.Broadcast.Subscribe(ctx, "abc")
	defer sub.Close()

	rr := ts.request(http.MethodPatch, "/api/v1/players/"+string(p.ID), map[string]string{"name": "MainTank"})
	require.Equal(t, http.StatusOK, rr.Code)
	fromResponse := decodeBody[model.Player](t, rr)

	event := <-sub.Events()
	assert.Equal(t, model.PlayerUpdated{Player: fromResponse}, event)
}
