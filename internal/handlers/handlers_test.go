package handlers

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/fittrack/internal/logger"
	"github.com/nkiryanov/fittrack/internal/models"
	"github.com/nkiryanov/fittrack/internal/repository"
	"github.com/nkiryanov/fittrack/internal/repository/memory"
	"github.com/nkiryanov/fittrack/internal/service/account"
	"github.com/nkiryanov/fittrack/internal/service/auth"
	"github.com/nkiryanov/fittrack/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/fittrack/internal/service/workout"
)

// Mailer that keeps links of sent emails
type fakeMailer struct {
	mu    sync.Mutex
	links []*url.URL
}

var hrefRe = regexp.MustCompile(`href="([^"]+)"`)

func (m *fakeMailer) Send(_ context.Context, _ string, _ string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	match := hrefRe.FindStringSubmatch(body)
	if len(match) != 2 {
		return nil
	}
	link, err := url.Parse(html.UnescapeString(match[1]))
	if err != nil {
		return err
	}
	m.links = append(m.links, link)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

func (m *fakeMailer) lastLink(t *testing.T) *url.URL {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.links, "email with link must be sent")
	return m.links[len(m.links)-1]
}

// Both services on the same memory storage, like two binaries on one database
type testEnv struct {
	userURL    string
	workoutURL string

	auth     *auth.AuthService
	users    repository.UserRepo
	workouts repository.WorkoutRepo
	mailer   *fakeMailer
	clock    *testClock
}

// Clock shared by services of the test, safe to move while servers run
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		mailer: &fakeMailer{},
		clock:  &testClock{now: time.Now().Truncate(time.Second)},
	}
	clock := env.clock.Now

	storage := memory.NewStorage()
	env.users = storage.User()
	env.workouts = storage.Workout()

	tokens, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Now:           clock,
	})
	require.NoError(t, err)

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	env.auth, err = auth.NewService(auth.Config{Hasher: hasher}, tokens, env.users)
	require.NoError(t, err)

	accounts, err := account.NewService(account.Config{
		PublicURL: "http://localhost:3000",
		Hasher:    hasher,
		Now:       clock,
	}, env.users, env.mailer, logger.NewNoOpLogger())
	require.NoError(t, err)

	workouts := workout.NewService(workout.Config{Now: clock}, env.workouts)

	userSrv := httptest.NewServer(NewUserRouter(env.auth, accounts, logger.NewNoOpLogger()))
	t.Cleanup(userSrv.Close)
	workoutSrv := httptest.NewServer(NewWorkoutRouter(env.auth, workouts, logger.NewNoOpLogger()))
	t.Cleanup(workoutSrv.Close)

	env.userURL = userSrv.URL
	env.workoutURL = workoutSrv.URL
	return env
}

// Verified user created right in the storage
func (e *testEnv) createUser(t *testing.T, email string, password string) models.User {
	t.Helper()

	hash, err := auth.BcryptHasher{Cost: bcrypt.MinCost}.Hash(password)
	require.NoError(t, err)

	u, err := e.users.CreateUser(t.Context(), repository.CreateUserParams{Email: email, Username: "runner", HashedPassword: hash})
	require.NoError(t, err)

	u, err = e.users.UpdateUser(t.Context(), u.ID, repository.WithVerified(true))
	require.NoError(t, err)
	return u
}

// Client that keeps cookies between requests, like a browser
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// Client logged in as verified user with the email
func (e *testEnv) loggedIn(t *testing.T, email string) *http.Client {
	t.Helper()

	e.createUser(t, email, "StrongEnoughPassword")
	client := newClient(t)

	resp, body := do(t, client, http.MethodPost, e.userURL+"/api/auth/login",
		`{"email": "`+email+`", "password": "StrongEnoughPassword"}`)
	require.Equalf(t, http.StatusOK, resp.StatusCode, "login failed. Body: %s", body)

	return client
}

func do(t *testing.T, client *http.Client, method string, url string, body string, headers ...string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func Test_Health(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for url, service := range map[string]string{
		env.userURL:    UserServiceName,
		env.workoutURL: WorkoutServiceName,
	} {
		resp, body := do(t, http.DefaultClient, http.MethodGet, url+"/health", "")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, `"status":"OK"`)
		require.Contains(t, body, `"service":"`+service+`"`)
		require.Contains(t, body, `"timestamp":`)
	}
}
