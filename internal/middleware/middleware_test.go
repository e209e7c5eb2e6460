package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smsgate/internal/flash"
	"github.com/smsgate/internal/session"
	"github.com/smsgate/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = SessionOptions{CookieName: "sid", TTL: time.Minute}

func do(t *testing.T, h http.Handler, method, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// jar keeps the latest cookies like a browser would.
type jar struct{ cookies []*http.Cookie }

func (j *jar) do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := do(t, h, method, path, j.cookies)
	if set := rec.Result().Cookies(); len(set) > 0 {
		j.cookies = set
	}
	return rec
}

func TestSessions_NewSessionSetsCookieAndPersists(t *testing.T) {
	store := memory.New()
	h := Sessions(store, testOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.FromContext(r.Context()).Set("username", "alice")
	}))

	rec := do(t, h, http.MethodGet, "/login", nil)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "sid", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	_, found, err := store.FindSession(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	require.True(t, found)
}

func TestSessions_UntouchedSessionGetsNoCookie(t *testing.T) {
	h := Sessions(memory.New(), testOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.False(t, session.FromContext(r.Context()).Has("username"))
	}))

	rec := do(t, h, http.MethodGet, "/login", nil)
	require.Empty(t, rec.Result().Cookies())
}

func TestSessions_ExistingSessionIsReused(t *testing.T) {
	store := memory.New()
	var seen string
	h := Sessions(store, testOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())
		if v, ok := s.Get("username"); ok {
			seen = v
			return
		}
		s.Set("username", "alice")
	}))

	first := do(t, h, http.MethodGet, "/", nil).Result().Cookies()
	require.Len(t, first, 1)

	second := do(t, h, http.MethodGet, "/", first).Result().Cookies()
	assert.Equal(t, "alice", seen)
	require.Len(t, second, 1, "idle timeout is refreshed on every request")
	assert.Equal(t, first[0].Value, second[0].Value)
}

func TestSessions_UnknownCookieStartsFreshSession(t *testing.T) {
	store := memory.New()
	h := Sessions(store, testOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())
		require.False(t, s.Has("username"))
		s.Set("username", "bob")
	}))

	rec := do(t, h, http.MethodGet, "/", []*http.Cookie{{Name: "sid", Value: "../../etc"}})
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.NotEqual(t, "../../etc", cookies[0].Value)
}

type failingStore struct{ *memory.Client }

func (failingStore) FindSession(ctx context.Context, token string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestSessions_StoreFailureIsUnavailable(t *testing.T) {
	called := false
	h := Sessions(failingStore{memory.New()}, testOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := do(t, h, http.MethodGet, "/", []*http.Cookie{{Name: "sid", Value: "token"}})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.False(t, called)
}

func TestFlash_SurvivesExactlyOneRedirect(t *testing.T) {
	store := memory.New()
	var got []bool
	h := Sessions(store, testOpts)(Flash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var helper flash.Helper
		if r.Method == http.MethodPost {
			helper.Set(r, "status", "done")
			http.Redirect(w, r, "/upload", http.StatusSeeOther)
			return
		}
		_, ok := helper.Get(r, "status")
		got = append(got, ok)
	})))

	browser := &jar{}
	browser.do(t, h, http.MethodGet, "/upload")
	browser.do(t, h, http.MethodPost, "/upload")
	browser.do(t, h, http.MethodGet, "/upload")
	browser.do(t, h, http.MethodGet, "/upload")

	require.Equal(t, []bool{false, true, false}, got)
}

func TestFlash_WithoutSessionPassesThrough(t *testing.T) {
	called := false
	h := Flash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Nil(t, flash.FromContext(r.Context()))
	}))
	do(t, h, http.MethodGet, "/", nil)
	require.True(t, called)
}

func TestRecoverHTML(t *testing.T) {
	h := RecoverHTML(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Internal server error")
}

func TestRateLimitSubmissions(t *testing.T) {
	h := RateLimitSubmissions(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/login", nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/login", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/login", nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/login", nil).Code)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	require.True(t, l.allow("a"))
	require.False(t, l.allow("a"))
	now = now.Add(61 * time.Second)
	require.True(t, l.allow("a"))
}

func TestRateLimiter_DropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	require.True(t, l.allow("a"))
	require.True(t, l.allow("b"))
	require.Len(t, l.limiters, 2)

	now = now.Add(2 * time.Minute)
	require.True(t, l.allow("c"))
	require.Len(t, l.limiters, 1)
	require.Contains(t, l.limiters, "c")
}

func postFrom(t *testing.T, h http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTrustedRealIP(t *testing.T) {
	trusted, err := ParseTrustedProxies("10.0.0.0/8")
	require.NoError(t, err)
	var seen string
	h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	postFrom(t, h, "10.1.2.3:5000", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", seen)

	postFrom(t, h, "198.51.100.9:5000", "203.0.113.7")
	assert.Equal(t, "198.51.100.9:5000", seen, "headers from untrusted peers are ignored")
}

func TestRateLimitSubmissions_ForgedForwardedForIsIgnored(t *testing.T) {
	h := TrustedRealIP(nil)(RateLimitSubmissions(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	require.Equal(t, http.StatusOK, postFrom(t, h, "198.51.100.9:5000", "1.1.1.1").Code)
	require.Equal(t, http.StatusTooManyRequests, postFrom(t, h, "198.51.100.9:5001", "2.2.2.2").Code)
}

func TestRateLimitSubmissions_BehindTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies("10.0.0.1")
	require.NoError(t, err)
	h := TrustedRealIP(trusted)(RateLimitSubmissions(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	require.Equal(t, http.StatusOK, postFrom(t, h, "10.0.0.1:5000", "203.0.113.7").Code)
	require.Equal(t, http.StatusOK, postFrom(t, h, "10.0.0.1:5000", "203.0.113.8").Code)
	require.Equal(t, http.StatusTooManyRequests, postFrom(t, h, "10.0.0.1:5000", "203.0.113.7").Code)
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies(" 10.0.0.0/8, 192.168.1.10 ,, ::1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "192.168.1.10/32", got[1].String())
	assert.Equal(t, "::1/128", got[2].String())

	empty, err := ParseTrustedProxies("")
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = ParseTrustedProxies("10.0.0.0/33")
	require.Error(t, err)
	_, err = ParseTrustedProxies("proxy.local")
	require.Error(t, err)
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "****", MaskSessionID("abc"))
	assert.Equal(t, "abcd***", MaskSessionID("abcdef"))
}
