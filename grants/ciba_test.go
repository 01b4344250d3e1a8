package grants_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-grant-server/clients"
	"github.com/jrsteele09/go-grant-server/grants"
	"github.com/jrsteele09/go-grant-server/grants/longpoll"
	"github.com/jrsteele09/go-grant-server/oauth2"
	"github.com/jrsteele09/go-grant-server/oauthmodel"
	"github.com/jrsteele09/go-grant-server/store"
	"github.com/stretchr/testify/require"
)

const cibaPollInterval = 5 * time.Second

type cibaFixture struct {
	requests *store.InMemoryRepo[oauthmodel.BackChannelAuthenticationRequest]
	handler  *grants.CIBAHandler
	client   *clients.Client
	now      time.Time
}

func newCIBAFixture(t *testing.T, options ...grants.CIBAOption) *cibaFixture {
	t.Helper()
	f := &cibaFixture{
		client: &clients.Client{ID: "ciba-client"},
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	// The store shares the fixture clock so records written with absolute
	// expirations anchored to it do not age out against the wall clock.
	f.requests = store.NewInMemoryRepo[oauthmodel.BackChannelAuthenticationRequest](
		store.WithNowFunc[oauthmodel.BackChannelAuthenticationRequest](func() time.Time { return f.now }))
	options = append(options, grants.WithCIBANowFunc(func() time.Time { return f.now }))
	f.handler = grants.NewCIBAHandler(f.requests, cibaPollInterval, options...)
	return f
}

func (f *cibaFixture) storeRequest(t *testing.T, status oauthmodel.BackChannelAuthenticationStatus) {
	t.Helper()
	request := &oauthmodel.BackChannelAuthenticationRequest{
		ID:        "auth-req-1",
		ClientID:  f.client.ID,
		Status:    status,
		Scope:     []string{"openid"},
		ExpiresAt: f.now.Add(5 * time.Minute),
		CreatedAt: f.now,
	}
	if status == oauthmodel.BackChannelStatusAuthenticated {
		request.Grant = &oauthmodel.AuthorizedGrant{
			Session: &oauthmodel.AuthSession{Subject: "user-1", SessionID: "session-1", AuthenticatedAt: f.now},
			Context: &oauthmodel.AuthorizationContext{ClientID: f.client.ID, Scope: []string{"openid"}},
		}
	}
	require.NoError(t, f.requests.Set(context.Background(), request.ID, request, store.Options{}))
}

func (f *cibaFixture) poll(client *clients.Client) (*oauthmodel.AuthorizedGrant, error) {
	return f.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{
		GrantType:               string(oauth2.CIBAGrant),
		AuthenticationRequestID: "auth-req-1",
	}, client)
}

func TestCIBAPendingReturnsAuthorizationPendingAndAdvancesPollWindow(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusPending)

	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAuthorizationPending)

	stored, err := fixture.requests.Get(context.Background(), "auth-req-1", false)
	require.NoError(t, err)
	require.Equal(t, fixture.now.Add(cibaPollInterval), stored.NextPollAt)
}

func TestCIBAPollingTooFastReturnsSlowDown(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusPending)

	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAuthorizationPending)

	// Second poll inside the interval.
	fixture.now = fixture.now.Add(time.Second)
	_, err = fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorSlowDown)

	// Once the interval has passed the poll is compliant again.
	fixture.now = fixture.now.Add(cibaPollInterval)
	_, err = fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAuthorizationPending)
}

func TestCIBAAuthenticatedFinalizesInsidePollWindow(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusAuthenticated)

	// Pacing only gates undecided requests; a poll that lands inside the
	// window after the user authenticated still collects the grant.
	stored, err := fixture.requests.Get(context.Background(), "auth-req-1", false)
	require.NoError(t, err)
	stored.NextPollAt = fixture.now.Add(3 * time.Second)
	require.NoError(t, fixture.requests.Set(context.Background(), stored.ID, stored, store.Options{}))

	grant, err := fixture.poll(fixture.client)
	require.NoError(t, err)
	require.Equal(t, "user-1", grant.Session.Subject)
}

func TestCIBADeniedResolvesInsidePollWindow(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusDenied)

	stored, err := fixture.requests.Get(context.Background(), "auth-req-1", false)
	require.NoError(t, err)
	stored.NextPollAt = fixture.now.Add(3 * time.Second)
	require.NoError(t, fixture.requests.Set(context.Background(), stored.ID, stored, store.Options{}))

	_, err = fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAccessDenied)
}

func TestCIBAAuthenticatedPollClientReceivesGrantOnce(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusAuthenticated)

	grant, err := fixture.poll(fixture.client)
	require.NoError(t, err)
	require.Equal(t, "user-1", grant.Session.Subject)

	// The record is consumed; a replayed auth_req_id no longer resolves.
	_, err = fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorExpiredToken)
}

func TestCIBADeniedReturnsAccessDeniedAndConsumesRequest(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusDenied)

	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAccessDenied)

	stored, err := fixture.requests.Get(context.Background(), "auth-req-1", false)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestCIBAOwnershipCheckedBeforeStatus(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusAuthenticated)

	// A foreign client gets unauthorized_client, not the request's state,
	// and the record survives the attempt.
	_, err := fixture.poll(&clients.Client{ID: "other-client"})
	requireGrantError(t, err, oauth2.ErrorUnauthorizedClient)

	stored, err := fixture.requests.Get(context.Background(), "auth-req-1", false)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCIBAUnknownRequestReturnsExpiredToken(t *testing.T) {
	fixture := newCIBAFixture(t)

	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorExpiredToken)
}

func TestCIBAExpiredRequestReturnsExpiredToken(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusPending)

	fixture.now = fixture.now.Add(6 * time.Minute)
	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorExpiredToken)
}

func TestCIBAPushClientCannotPollTokenEndpoint(t *testing.T) {
	fixture := newCIBAFixture(t)
	fixture.storeRequest(t, oauthmodel.BackChannelStatusAuthenticated)

	pushClient := &clients.Client{ID: fixture.client.ID, BackChannelTokenDeliveryMode: clients.DeliveryModePush}
	_, err := fixture.poll(pushClient)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestCIBAMissingAuthReqID(t *testing.T) {
	fixture := newCIBAFixture(t)

	_, err := fixture.handler.Authorize(context.Background(), &oauthmodel.TokenRequest{}, fixture.client)
	requireGrantError(t, err, oauth2.ErrorInvalidGrant)
}

func TestCIBALongPollWakesOnApproval(t *testing.T) {
	notifier := longpoll.NewNotifier()
	fixture := newCIBAFixture(t, grants.WithLongPolling(notifier, 2*time.Second))
	fixture.storeRequest(t, oauthmodel.BackChannelStatusPending)

	// Approve the request from another goroutine while the poll is parked.
	go func() {
		time.Sleep(50 * time.Millisecond)
		stored, _ := fixture.requests.Get(context.Background(), "auth-req-1", false)
		stored.Status = oauthmodel.BackChannelStatusAuthenticated
		stored.Grant = &oauthmodel.AuthorizedGrant{
			Session: &oauthmodel.AuthSession{Subject: "user-1", SessionID: "session-1", AuthenticatedAt: fixture.now},
			Context: &oauthmodel.AuthorizationContext{ClientID: fixture.client.ID},
		}
		_ = fixture.requests.Set(context.Background(), stored.ID, stored, store.Options{})
		notifier.Notify(stored.ID)
	}()

	grant, err := fixture.poll(fixture.client)
	require.NoError(t, err)
	require.Equal(t, "user-1", grant.Session.Subject)
}

func TestCIBALongPollTimesOutToAuthorizationPending(t *testing.T) {
	notifier := longpoll.NewNotifier()
	fixture := newCIBAFixture(t, grants.WithLongPolling(notifier, 20*time.Millisecond))
	fixture.storeRequest(t, oauthmodel.BackChannelStatusPending)

	start := time.Now()
	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAuthorizationPending)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCIBALongPollAdvancesPollWindowBeforeParking(t *testing.T) {
	notifier := longpoll.NewNotifier()
	fixture := newCIBAFixture(t, grants.WithLongPolling(notifier, 20*time.Millisecond))
	fixture.storeRequest(t, oauthmodel.BackChannelStatusPending)

	_, err := fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorAuthorizationPending)

	// The window is persisted before the wait, so a client that times out
	// and immediately re-polls is still paced.
	stored, err := fixture.requests.Get(context.Background(), "auth-req-1", false)
	require.NoError(t, err)
	require.Equal(t, fixture.now.Add(cibaPollInterval), stored.NextPollAt)

	fixture.now = fixture.now.Add(time.Second)
	_, err = fixture.poll(fixture.client)
	requireGrantError(t, err, oauth2.ErrorSlowDown)
}
