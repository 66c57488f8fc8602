package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Rally/config"
	"github.com/Gopher0727/Rally/internal/app"
	"github.com/Gopher0727/Rally/internal/storage"
	"github.com/Gopher0727/Rally/internal/testutil"
	logger "github.com/Gopher0727/Rally/middleware/log"
)

func newServer(t *testing.T, requireConfirm bool) *httptest.Server {
	gin.SetMode(gin.TestMode)
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.WorkerPool.Size = 4
	cfg.WorkerPool.QueueSize = 16
	cfg.Auth.RequireEmailConfirmation = requireConfirm

	rdb, _ := testutil.NewRedis(t)
	store, err := storage.NewLocalStore(t.TempDir(), "http://cdn.test/images")
	require.NoError(t, err)

	a := app.New(app.Infra{
		Config: cfg,
		Logger: logger.NewNop(),
		DB:     testutil.NewDB(t),
		Redis:  rdb,
		Store:  store,
		IDs:    testutil.NewIDs(t),
	})
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.Engine)
	t.Cleanup(srv.Close)
	return srv
}

func signedIn(t *testing.T, srv *httptest.Server, name string) (*Client, *Profile) {
	c := New(srv.URL, WithHTTPClient(srv.Client()))
	s := NewSession(c)
	state, err := s.Signup(context.Background(), name, name+"@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, state)
	return c, s.User()
}

func TestClient_GroupFlow(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, false)
	alice, _ := signedIn(t, srv, "alice")
	bob, bobProfile := signedIn(t, srv, "bob")

	g, err := alice.CreateGroup(ctx, "Trip", "")
	require.NoError(t, err)
	assert.Len(t, g.Code, 6)

	_, err = bob.GetGroup(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = bob.JoinGroupByCode(ctx, "nope00")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := bob.JoinGroupByCode(ctx, strings.ToLower(g.Code))
	require.NoError(t, err)
	assert.Equal(t, g.ID, id)

	_, err = bob.JoinGroupByCode(ctx, g.Code)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	summary, err := alice.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.MemberCount)

	users, err := alice.GetUsersByIDs(ctx, []int64{bobProfile.ID, bobProfile.ID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].UserName)

	assert.ErrorIs(t, bob.DeleteGroup(ctx, g.ID), ErrForbidden)
	require.NoError(t, alice.DeleteGroup(ctx, g.ID))
	_, err = alice.GetGroup(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ItemsCommentsDates(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, false)
	c, me := signedIn(t, srv, "carol")

	g, err := c.CreateGroup(ctx, "Weekend", "")
	require.NoError(t, err)

	_, err = c.CreateBucketListItem(ctx, g.ID, NewItem{Title: "  "})
	assert.ErrorIs(t, err, ErrValidation)

	it, err := c.CreateBucketListItem(ctx, g.ID, NewItem{Title: "Picnic", Date: "2025-06-01"})
	require.NoError(t, err)
	assert.Equal(t, StatusIdea, it.Status)

	updated, err := c.UpdateBucketListItem(ctx, it.ID, map[string]any{"status": "planning", "hacked": true})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, updated.Status)

	require.NoError(t, c.Rsvp(ctx, it.ID))
	require.NoError(t, c.Rsvp(ctx, it.ID))
	_, err = c.AddComment(ctx, it.ID, "bring snacks")
	require.NoError(t, err)

	board, err := c.GetBucketListBoard(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekend", board.GroupName)
	require.Len(t, board.Items, 1)
	assert.Equal(t, []int64{me.ID}, board.Items[0].Upvotes)
	assert.Equal(t, int64(1), board.Items[0].CommentCount)
	assert.Contains(t, board.Upvoters, me.ID)

	comments, err := c.GetComments(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "carol", comments[0].UserName)

	require.NoError(t, c.RemoveRsvp(ctx, it.ID))
	items, err := c.GetBucketListItems(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, items[0].Upvotes)

	s, err := c.SuggestDate(ctx, it.ID, "2025-07-01")
	require.NoError(t, err)
	vote, err := c.VoteForDate(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, vote.Voted)
	vote, err = c.VoteForDate(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, vote.Voted)

	_, err = c.EditDateSuggestion(ctx, s.ID, "not-a-date")
	assert.ErrorIs(t, err, ErrValidation)
	edited, err := c.EditDateSuggestion(ctx, s.ID, "2025-07-02")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-02", edited.Date)
	require.NoError(t, c.DeleteDateSuggestion(ctx, s.ID))
	list, err := c.ListDateSuggestions(ctx, it.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, c.DeleteBucketListItem(ctx, it.ID))
	n, err := c.GetCommentCount(ctx, it.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, n)
}

func TestClient_UploadImage(t *testing.T) {
	srv := newServer(t, false)
	c, _ := signedIn(t, srv, "dora")

	url, err := c.UploadImage(context.Background(), "items/1/photo.jpg", "photo.jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/images/items/1/photo.jpg", url)

	_, err = c.UploadImage(context.Background(), "avatars/x.jpg", "x.jpg", "image/jpeg", strings.NewReader("jpeg"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClient_UploadAvatar(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, false)
	c, me := signedIn(t, srv, "fred")

	first, err := c.UploadAvatar(ctx, "a.png", "image/png", strings.NewReader("png1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.AvatarURL, "http://cdn.test/images/avatars/"))

	second, err := c.UploadAvatar(ctx, "b.png", "image/png", strings.NewReader("png2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.AvatarURL, second.AvatarURL)

	got, err := c.GetUser(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, second.AvatarURL, got.AvatarURL)

	_, err = c.UploadAvatar(ctx, "a.txt", "text/plain", strings.NewReader("nope"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSession_States(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, false)
	c := New(srv.URL, WithHTTPClient(srv.Client()))
	s := NewSession(c)
	assert.Equal(t, StateAnonymous, s.State())

	state, err := s.Login(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, StateAnonymous, state)

	_, err = s.Signup(ctx, "erin", "erin@example.com", "secret1")
	require.NoError(t, err)

	state, err = s.Signup(ctx, "erin", "erin2@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, StateAnonymous, state)
	assert.Empty(t, c.Token())

	state, err = s.Login(ctx, "erin@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, "erin", s.User().UserName)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", me.Email)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, StateAnonymous, s.State())
	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSession_AwaitingConfirmation(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, true)
	s := NewSession(New(srv.URL, WithHTTPClient(srv.Client())))

	state, err := s.Signup(ctx, "finn", "finn@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingEmail, state)
	assert.Equal(t, "finn@example.com", s.PendingEmail())

	state, err = s.Login(ctx, "finn@example.com", "secret1")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)
	assert.Equal(t, StateAnonymous, state)
}

func TestKindOf(t *testing.T) {
	cases := map[int]error{
		400: ErrValidation,
		401: ErrUnauthorized,
		403: ErrForbidden,
		404: ErrNotFound,
		409: ErrConflict,
		429: ErrRateLimited,
		503: ErrUnavailable,
		500: ErrServer,
	}
	for status, want := range cases {
		assert.ErrorIs(t, newAPIError(status, "x"), want, status)
	}
	assert.ErrorIs(t, newAPIError(409, "email is already registered"), ErrEmailTaken)
}
