package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestManager_IssueParse(t *testing.T) {
	m := NewManager(secret, time.Hour, nil)
	tok, s, err := m.Issue("uid-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, err := m.Parse(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)
	assert.Equal(t, s.ID, got.ID)
	assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestManager_IssueRejectsEmptyUID(t *testing.T) {
	m := NewManager(secret, time.Hour, nil)
	_, _, err := m.Issue("  ")
	assert.Error(t, err)
}

func TestManager_ParseRejects(t *testing.T) {
	m := NewManager(secret, time.Hour, nil)
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager("another-secret-of-enough-length", time.Hour, nil)
		tok, _, err := other.Issue("u")
		require.NoError(t, err)
		_, err = m.Parse(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewManager(secret, time.Minute, nil)
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, _, err := old.Issue("u")
		require.NoError(t, err)
		_, err = m.Parse(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("none alg", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject: "u", ID: "x", Issuer: issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Parse(ctx, s)
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestManager_RevokeMemory(t *testing.T) {
	m := NewManager(secret, time.Hour, nil)
	ctx := context.Background()
	tok, s, err := m.Issue("u")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, s))
	_, err = m.Parse(ctx, tok)
	assert.ErrorIs(t, err, ErrRevoked)

	require.NoError(t, m.Revoke(ctx, nil))
}

func TestMemoryRevoker_ExpiredEntriesForgotten(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Now()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	r.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, err = r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Empty(t, r.until)
}

func TestRedisRevoker(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedisRevoker(client)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists(revokedKeyPrefix+"jti-1"))

	mr.FastForward(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "past", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revokedKeyPrefix+"past"))
}

func TestRedisRevoker_ManagerAcrossInstances(t *testing.T) {
	client, _ := setupTestRedis(t)
	a := NewManager(secret, time.Hour, NewRedisRevoker(client))
	b := NewManager(secret, time.Hour, NewRedisRevoker(client))
	ctx := context.Background()

	tok, s, err := a.Issue("u")
	require.NoError(t, err)
	require.NoError(t, a.Revoke(ctx, s))

	_, err = b.Parse(ctx, tok)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestRedisRevoker_Unavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	_, err := NewRedisRevoker(client).IsRevoked(context.Background(), "x")
	assert.Error(t, err)
}

func TestCookieOptions(t *testing.T) {
	o := CookieOptions{Name: "session", Secure: true, SameSite: ParseSameSite("none")}

	rec := httptest.NewRecorder()
	o.SetCookie(rec, "tok", time.Now().Add(time.Hour))
	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, "session", c[0].Name)
	assert.Equal(t, "tok", c[0].Value)
	assert.True(t, c[0].HttpOnly)
	assert.True(t, c[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, c[0].SameSite)
	assert.Equal(t, "/", c[0].Path)

	rec = httptest.NewRecorder()
	o.ClearCookie(rec)
	c = rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, "", c[0].Value)
	assert.True(t, c[0].MaxAge < 0)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite(" Lax "))
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("bogus"))
}
