package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"streamwatch/internal/domain"
	"streamwatch/internal/service"
)

const testTemplatesGlob = "../../web/templates/*.html"

type mockUserRepo struct {
	usersByName  map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByName:  make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	user, ok := m.usersByName[username]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	username, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByUsername(context.Background(), username)
}

func (m *mockUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, ok := m.usersByName[username]
	return ok, nil
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := m.usersByEmail[email]
	return ok, nil
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.usersByName[user.Username] = user
	m.usersByEmail[user.Email] = user.Username
	return nil
}

func (m *mockUserRepo) UpdatePasswordByEmail(_ context.Context, email, hashedPassword string) error {
	username, ok := m.usersByEmail[email]
	if !ok {
		return pgx.ErrNoRows
	}
	user := m.usersByName[username]
	user.HashedPassword = hashedPassword
	m.usersByName[username] = user
	return nil
}

type mockWatchlistRepo struct {
	lists map[string][]string
}

func newMockWatchlistRepo() *mockWatchlistRepo {
	return &mockWatchlistRepo{lists: make(map[string][]string)}
}

func (m *mockWatchlistRepo) List(_ context.Context, username string) ([]string, error) {
	return m.lists[username], nil
}

func (m *mockWatchlistRepo) Add(_ context.Context, username, streamerName string) (bool, error) {
	for _, name := range m.lists[username] {
		if name == streamerName {
			return false, nil
		}
	}
	m.lists[username] = append(m.lists[username], streamerName)
	return true, nil
}

func (m *mockWatchlistRepo) Remove(_ context.Context, username, streamerName string) error {
	kept := m.lists[username][:0]
	for _, name := range m.lists[username] {
		if name != streamerName {
			kept = append(kept, name)
		}
	}
	m.lists[username] = kept
	return nil
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendVerificationCode(_ context.Context, toEmail string, code string) error {
	if m.err != nil {
		return m.err
	}
	m.lastTo = toEmail
	m.lastCode = code
	return nil
}

type testEnv struct {
	router *gin.Engine
	users  *mockUserRepo
	watch  *mockWatchlistRepo
	sender *mockEmailSender
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newMockUserRepo()
	watch := newMockWatchlistRepo()
	sender := &mockEmailSender{}

	logger := zap.NewNop()
	tokens := service.NewTokenService("secret", 8*time.Hour)
	verifier := service.NewVerificationService(nil)
	authSvc := service.NewAuthService(logger, users, sender, verifier, tokens)
	watchSvc := service.NewWatchlistService(logger, watch)

	router := NewRouter(
		logger,
		NewAuthHandler(logger, authSvc),
		NewWatchlistHandler(logger, watchSvc),
		tokens,
		testTemplatesGlob,
	)
	return &testEnv{router: router, users: users, watch: watch, sender: sender}
}

func performForm(r http.Handler, method, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var body string
	if form != nil {
		body = form.Encode()
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// mergeCookies acumula las cookies de la respuesta sobre las del cliente,
// como haría un navegador.
func mergeCookies(existing []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	merged := map[string]*http.Cookie{}
	for _, c := range existing {
		merged[c.Name] = c
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(merged, c.Name)
			continue
		}
		merged[c.Name] = c
	}
	var out []*http.Cookie
	for _, c := range merged {
		out = append(out, c)
	}
	return out
}

func TestIndex(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "home page") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRegisterFlow_EndToEnd(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"a@x.com"},
		"username": {"alice"},
		"password": {"password1"},
	}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 to /verify, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/verify" {
		t.Fatalf("expected redirect to /verify, got %q", loc)
	}
	if env.sender.lastTo != "a@x.com" || env.sender.lastCode == "" {
		t.Fatalf("expected verification code mailed")
	}
	if len(env.users.usersByName) != 0 {
		t.Fatalf("expected no user before code confirmation")
	}

	cookies := mergeCookies(nil, rec)

	rec = performForm(env.router, http.MethodGet, "/verify", nil, cookies)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "verification code") {
		t.Fatalf("expected verify page, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = performForm(env.router, http.MethodPost, "/verify", url.Values{
		"code": {env.sender.lastCode},
	}, cookies)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 to /dashboard, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", loc)
	}

	access := cookieByName(rec, "access_token")
	if access == nil {
		t.Fatalf("expected access_token cookie")
	}
	if !strings.HasPrefix(access.Value, "Bearer ") {
		t.Fatalf("expected Bearer cookie value, got %q", access.Value)
	}
	if access.MaxAge != 28800 {
		t.Fatalf("expected max-age 28800, got %d", access.MaxAge)
	}
	if !access.HttpOnly {
		t.Fatalf("expected httponly cookie")
	}

	user, err := env.users.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected user committed, got %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	cookies = mergeCookies(cookies, rec)
	rec = performForm(env.router, http.MethodGet, "/dashboard", nil, cookies)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "alice") {
		t.Fatalf("expected dashboard for alice, got %d", rec.Code)
	}
}

func TestRegister_ConflictRerendersForm(t *testing.T) {
	env := setupRouter(t)

	if err := env.users.Create(context.Background(), domain.User{Username: "alice", Email: "a@x.com"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"other@x.com"},
		"username": {"alice"},
		"password": {"password1"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected re-rendered form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already registered") {
		t.Fatalf("expected conflict message, got: %s", rec.Body.String())
	}
}

func TestRegister_ShortPasswordRerendersForm(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"a@x.com"},
		"username": {"alice"},
		"password": {"short"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected re-rendered form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "8-20 characters") {
		t.Fatalf("expected validation message, got: %s", rec.Body.String())
	}
	if env.sender.lastCode != "" {
		t.Fatalf("expected no mail sent")
	}
}

func TestRegister_MalformedEmailRerendersForm(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"not-an-email"},
		"username": {"alice"},
		"password": {"password1"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected re-rendered form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "valid email address") {
		t.Fatalf("expected email validation message, got: %s", rec.Body.String())
	}
	if env.sender.lastCode != "" {
		t.Fatalf("expected no mail sent")
	}
}

func TestVerify_MismatchRestartsFlow(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"a@x.com"},
		"username": {"alice"},
		"password": {"password1"},
	}, nil)
	cookies := mergeCookies(nil, rec)

	wrong := "0000"
	if wrong == env.sender.lastCode {
		wrong = "0001"
	}
	rec = performForm(env.router, http.MethodPost, "/verify", url.Values{"code": {wrong}}, cookies)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "start over") {
		t.Fatalf("expected mismatch message, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.users.usersByName) != 0 {
		t.Fatalf("expected no user written on mismatch")
	}

	// El estado pendiente fue descartado: reintentar redirige a /login.
	rec = performForm(env.router, http.MethodGet, "/verify", nil, cookies)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login after discarded session, got %d", rec.Code)
	}
}

func TestLogin_WrongCredentialsRerendersForm(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/login", url.Values{
		"username": {"alice"},
		"password": {"password1"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected re-rendered form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Incorrect username or password") {
		t.Fatalf("expected credentials message, got: %s", rec.Body.String())
	}
	if cookieByName(rec, "access_token") != nil {
		t.Fatalf("expected no access cookie on failed login")
	}
}

func TestResetPasswordFlow_EndToEnd(t *testing.T) {
	env := setupRouter(t)

	// Registro completo para tener un usuario con contraseña vieja.
	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"a@x.com"},
		"username": {"alice"},
		"password": {"oldpassword1"},
	}, nil)
	cookies := mergeCookies(nil, rec)
	rec = performForm(env.router, http.MethodPost, "/verify", url.Values{"code": {env.sender.lastCode}}, cookies)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("registration verify failed: %d", rec.Code)
	}

	// Reset desde una sesión nueva.
	rec = performForm(env.router, http.MethodPost, "/reset-password", url.Values{"email": {"a@x.com"}}, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/verify" {
		t.Fatalf("expected redirect to /verify, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	resetCookies := mergeCookies(nil, rec)

	rec = performForm(env.router, http.MethodPost, "/verify", url.Values{"code": {env.sender.lastCode}}, resetCookies)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/reset-password-confirmed" {
		t.Fatalf("expected redirect to confirm page, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if cookieByName(rec, "access_token") != nil {
		t.Fatalf("expected no token on reset verification")
	}

	rec = performForm(env.router, http.MethodGet, "/reset-password-confirmed", nil, resetCookies)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "new password") {
		t.Fatalf("expected confirm page, got %d", rec.Code)
	}

	rec = performForm(env.router, http.MethodPost, "/reset-password-confirmed", url.Values{
		"password":         {"newpassword1"},
		"confirm_password": {"different1"},
	}, resetCookies)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "do not match") {
		t.Fatalf("expected mismatch message, got %d", rec.Code)
	}

	rec = performForm(env.router, http.MethodPost, "/reset-password-confirmed", url.Values{
		"password":         {"newpassword1"},
		"confirm_password": {"newpassword1"},
	}, resetCookies)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	// Password viejo fuera, nuevo adentro.
	rec = performForm(env.router, http.MethodPost, "/login", url.Values{
		"username": {"alice"},
		"password": {"oldpassword1"},
	}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Incorrect username or password") {
		t.Fatalf("expected old password rejected, got %d", rec.Code)
	}
	rec = performForm(env.router, http.MethodPost, "/login", url.Values{
		"username": {"alice"},
		"password": {"newpassword1"},
	}, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected login with new password, got %d", rec.Code)
	}
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/reset-password", url.Values{"email": {"nobody@x.com"}}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "not registered") {
		t.Fatalf("expected unknown email message, got %d", rec.Code)
	}
}

func TestResetConfirmPage_WithoutPendingRedirects(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodGet, "/reset-password-confirmed", nil, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d", rec.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := setupRouter(t)

	rec := performForm(env.router, http.MethodPost, "/logout", nil, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d", rec.Code)
	}
	access := cookieByName(rec, "access_token")
	if access == nil || access.MaxAge >= 0 {
		t.Fatalf("expected expired access cookie, got %+v", access)
	}
}

func TestEmailSendFailure_SurfacedToUser(t *testing.T) {
	env := setupRouter(t)
	env.sender.err = errors.New("smtp down")

	rec := performForm(env.router, http.MethodPost, "/register", url.Values{
		"email":    {"a@x.com"},
		"username": {"alice"},
		"password": {"password1"},
	}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Could not send") {
		t.Fatalf("expected send failure message, got %d: %s", rec.Code, rec.Body.String())
	}
}
