package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/config"
	"github.com/yigit/libris/internal/middleware"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/clock"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

var apiToday = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	deps   *Dependencies
}

func newTestConfig(t *testing.T, csrf bool) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = "0"
	cfg.Server.Mode = "test"
	cfg.Server.StoragePath = t.TempDir()
	cfg.Server.BaseURL = "/uploads"
	cfg.Server.CSRFEnabled = csrf
	cfg.Database.Driver = config.DriverMemory
	cfg.JWT.Secret = "api-test-secret"
	cfg.JWT.AccessTokenExpiration = "1h"
	cfg.JWT.RefreshTokenExpiration = "720h"
	cfg.JWT.Issuer = "libris.test"
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Seed.AdminUsername = "admin"
	cfg.Seed.AdminEmail = "admin@libris.test"
	cfg.Seed.AdminPassword = "Admin123"
	return cfg
}

func newTestAPI(t *testing.T, csrf bool) *testAPI {
	t.Helper()
	ctx := context.Background()
	cfg := newTestConfig(t, csrf)
	lgr := zerolog.Nop()

	store, err := SetupStore(ctx, cfg, false, lgr)
	require.NoError(t, err)
	require.NoError(t, SeedDefaultData(ctx, cfg, store, false, lgr))

	deps, err := BuildDependencies(ctx, cfg, store, clock.Fixed(apiToday.Add(9*time.Hour)), lgr)
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	return &testAPI{t: t, router: SetupRouter(cfg, deps, lgr), deps: deps}
}

type apiResult struct {
	Code    int
	Body    map[string]any
	Cookies []*http.Cookie
}

func (r apiResult) errorCode() string {
	errObj, _ := r.Body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func (r apiResult) errorMessage() string {
	errObj, _ := r.Body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	return msg
}

func (r apiResult) data() map[string]any {
	data, _ := r.Body["data"].(map[string]any)
	return data
}

func (a *testAPI) do(method, path, token string, body any, mutate ...func(*http.Request)) apiResult {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	result := apiResult{Code: rec.Code, Cookies: rec.Result().Cookies()}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &result.Body)
	}
	return result
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Username: username, Password: password})
	require.Equal(a.t, http.StatusOK, res.Code, res.Body)
	token := res.data()["token"].(map[string]any)
	return token["access_token"].(string)
}

// register creates an account through the API and returns its access token
func (a *testAPI) register(username string) string {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "Secret1",
		Password2: "Secret1",
	})
	require.Equal(a.t, http.StatusCreated, res.Code, res.Body)
	return a.login(username, "Secret1")
}

func (a *testAPI) promote(username string, role models.RoleType) {
	a.t.Helper()
	ctx := context.Background()
	user, err := a.deps.Store.Repos.UserRepository.GetByUsername(ctx, username)
	require.NoError(a.t, err)
	require.NoError(a.t, a.deps.Store.Repos.UserRepository.UpdateRole(ctx, user.ID, role))
}

func (a *testAPI) createBook(token, title, isbn string) int64 {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/books", token, dto.CreateBookRequest{
		Title:     title,
		Author:    "Author of " + title,
		ISBN:      isbn,
		Category:  string(models.CategoryMystery),
		Language:  "English",
		Condition: string(models.ConditionGood),
	})
	require.Equal(a.t, http.StatusCreated, res.Code, res.Body)
	return int64(res.data()["id"].(float64))
}

func loanBody(id int64) map[string]any {
	return map[string]any{"book_id": id}
}

func TestHealthAndDocs(t *testing.T) {
	api := newTestAPI(t, false)

	res := api.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "pong", res.Body["message"])

	res = api.do(http.MethodGet, "/swagger/doc.json", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Libris API", res.Body["info"].(map[string]any)["title"])
}

func TestAuthenticationRequired(t *testing.T) {
	api := newTestAPI(t, false)

	res := api.do(http.MethodGet, "/api/v1/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, string(dto.ErrorCodeUnauthorized), res.errorCode())

	res = api.do(http.MethodGet, "/api/v1/books", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = api.do(http.MethodPost, "/api/v1/borrow", "", loanBody(1))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, string(dto.ErrorCodeInvalidCredentials), res.errorCode())
}

func TestBorrowAndReturnOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.login("admin", "Admin123")
	alice := api.register("alice")
	bob := api.register("bob")
	api.register("libby")
	api.promote("libby", models.RoleLibrarian)
	librarian := api.login("libby", "Secret1")

	bookID := api.createBook(admin, "The Moonstone", "9780000000101")

	res := api.do(http.MethodPost, "/api/v1/borrow", alice, loanBody(bookID))
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "You have successfully borrowed 'The Moonstone'. It is due on 2024-03-24.", res.Body["message"])
	book := res.Body["book"].(map[string]any)
	assert.Equal(t, false, book["available"])
	assert.Equal(t, "alice", book["borrower"])
	assert.Equal(t, "2024-03-10", book["borrow_date"])
	assert.Equal(t, "2024-03-24", book["due_date"])
	assert.EqualValues(t, 14, book["days_left"])

	t.Run("second borrower is refused", func(t *testing.T) {
		res := api.do(http.MethodPost, "/api/v1/borrow", bob, loanBody(bookID))
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, string(dto.ErrorCodeBookUnavailable), res.errorCode())
		assert.Contains(t, res.errorMessage(), "alice")
		assert.Contains(t, res.errorMessage(), "2024-03-24")
	})

	t.Run("borrower is redacted for other users", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/books/%d", bookID)

		res := api.do(http.MethodGet, path, bob, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, dto.CheckedOutPlaceholder, res.data()["borrower"])
		assert.Nil(t, res.data()["borrower_id"])

		res = api.do(http.MethodGet, path, alice, nil)
		assert.Equal(t, "alice", res.data()["borrower"])

		res = api.do(http.MethodGet, path, librarian, nil)
		assert.Equal(t, "alice", res.data()["borrower"])
	})

	t.Run("only the borrower or staff may return", func(t *testing.T) {
		res := api.do(http.MethodPost, "/api/v1/return", bob, loanBody(bookID))
		assert.Equal(t, http.StatusForbidden, res.Code)
		assert.Equal(t, string(dto.ErrorCodeNotBorrower), res.errorCode())
	})

	res = api.do(http.MethodPost, "/api/v1/return", alice, loanBody(bookID))
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "You have successfully returned 'The Moonstone'.", res.Body["message"])
	book = res.Body["book"].(map[string]any)
	assert.Equal(t, true, book["available"])
	assert.Nil(t, book["borrower"])
	assert.Nil(t, book["due_date"])

	res = api.do(http.MethodPost, "/api/v1/return", alice, loanBody(bookID))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, string(dto.ErrorCodeBookAlreadyAvailable), res.errorCode())
}

func TestLoanRequestValidation(t *testing.T) {
	api := newTestAPI(t, false)
	alice := api.register("alice")

	res := api.do(http.MethodPost, "/api/v1/borrow", alice, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPost, "/api/v1/borrow", alice, loanBody(9999))
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = api.do(http.MethodPost, "/api/v1/return", alice, loanBody(9999))
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestBorrowLimitOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.login("admin", "Admin123")
	alice := api.register("alice")

	var ids []int64
	for i := 0; i < models.MaxBorrowLimit+1; i++ {
		ids = append(ids, api.createBook(admin, fmt.Sprintf("Volume %d", i), fmt.Sprintf("97800000002%02d", i)))
	}

	for _, id := range ids[:models.MaxBorrowLimit] {
		res := api.do(http.MethodPost, "/api/v1/borrow", alice, loanBody(id))
		require.Equal(t, http.StatusOK, res.Code, res.Body)
	}

	res := api.do(http.MethodPost, "/api/v1/borrow", alice, loanBody(ids[models.MaxBorrowLimit]))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, string(dto.ErrorCodeBorrowLimitReached), res.errorCode())
}

func TestListBorrowedOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.login("admin", "Admin123")
	alice := api.register("alice")
	bob := api.register("bob")

	first := api.createBook(admin, "First", "9780000000301")
	second := api.createBook(admin, "Second", "9780000000302")
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/borrow", alice, loanBody(first)).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/borrow", bob, loanBody(second)).Code)

	res := api.do(http.MethodGet, "/api/v1/books/borrowed", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	own := res.Body["my_borrowed_books"].([]any)
	require.Len(t, own, 1)
	assert.Equal(t, "First", own[0].(map[string]any)["title"])

	res = api.do(http.MethodGet, "/api/v1/books/borrowed", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	groups := res.Body["borrowed_books_by_user"].([]any)
	require.Len(t, groups, 2)
	assert.Equal(t, "alice", groups[0].(map[string]any)["borrower_name"])
	assert.Equal(t, "bob", groups[1].(map[string]any)["borrower_name"])
}

func TestBookUpdateIgnoresLoanFields(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.login("admin", "Admin123")
	alice := api.register("alice")
	bob := api.register("bob")

	bookID := api.createBook(admin, "Bleak House", "9780000000501")
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/borrow", alice, loanBody(bookID)).Code)

	path := fmt.Sprintf("/api/v1/books/%d", bookID)
	res := api.do(http.MethodPatch, path, admin, map[string]any{
		"title":       "Bleak House (annotated)",
		"available":   true,
		"borrower_id": 1,
		"borrow_date": "2020-01-01",
		"due_date":    "2020-01-15",
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	res = api.do(http.MethodGet, path, admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	book := res.data()
	assert.Equal(t, "Bleak House (annotated)", book["title"])
	assert.Equal(t, false, book["available"])
	assert.Equal(t, "alice", book["borrower"])
	assert.Equal(t, "2024-03-10", book["borrow_date"])
	assert.Equal(t, "2024-03-24", book["due_date"])

	res = api.do(http.MethodPost, "/api/v1/borrow", bob, loanBody(bookID))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, string(dto.ErrorCodeBookUnavailable), res.errorCode())
}

func TestCatalogWritesRequireStaff(t *testing.T) {
	api := newTestAPI(t, false)
	alice := api.register("alice")

	res := api.do(http.MethodPost, "/api/v1/books", alice, dto.CreateBookRequest{
		Title: "Nope", Author: "Nobody", ISBN: "9780000000401",
		Category: "MY", Language: "English", Condition: "GD",
	})
	assert.Equal(t, http.StatusForbidden, res.Code)

	admin := api.login("admin", "Admin123")
	res = api.do(http.MethodPost, "/api/v1/books", admin, dto.CreateBookRequest{
		Title: "Bad isbn", Author: "Somebody", ISBN: "isbn-with-letters",
		Category: "MY", Language: "English", Condition: "GD",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	t.Run("role change applies to existing tokens", func(t *testing.T) {
		api.promote("alice", models.RoleLibrarian)
		id := api.createBook(alice, "Now allowed", "9780000000402")
		assert.Positive(t, id)
	})
}

func TestListBooksPaginated(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.login("admin", "Admin123")
	for i := 0; i < 3; i++ {
		api.createBook(admin, fmt.Sprintf("Paged %d", i), fmt.Sprintf("97800000005%02d", i))
	}

	res := api.do(http.MethodGet, "/api/v1/books?size=2&ordering=-title", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	items := res.data()["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Paged 2", items[0].(map[string]any)["title"])
	pagination := res.data()["pagination"].(map[string]any)
	assert.EqualValues(t, 3, pagination["totalItems"])
	assert.EqualValues(t, 2, pagination["totalPages"])

	res = api.do(http.MethodGet, "/api/v1/books?ordering=price", admin, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	api := newTestAPI(t, false)
	alice := api.register("alice")

	res := api.do(http.MethodPost, "/api/v1/auth/logout", alice, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	res = api.do(http.MethodGet, "/api/v1/books", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestUserAdministrationOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.login("admin", "Admin123")
	alice := api.register("alice")

	res := api.do(http.MethodGet, "/api/v1/users/me", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	aliceID := int64(res.data()["id"].(float64))

	res = api.do(http.MethodGet, "/api/v1/users", alice, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = api.do(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d/role", aliceID), admin, dto.UpdateRoleRequest{Role: "XX"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d/role", aliceID), admin, dto.UpdateRoleRequest{Role: "LB"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	res = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", aliceID), admin, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = api.do(http.MethodGet, "/api/v1/users/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCSRFProtection(t *testing.T) {
	api := newTestAPI(t, true)
	creds := dto.LoginRequest{Username: "admin", Password: "Admin123"}

	res := api.do(http.MethodPost, "/api/v1/auth/login", "", creds)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, string(dto.ErrorCodeCSRFFailed), res.errorCode())

	res = api.do(http.MethodGet, "/api/v1/csrf", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	token := res.Body["csrfToken"].(string)
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, c := range res.Cookies {
		if c.Name == middleware.CSRFCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", creds, func(r *http.Request) {
		r.AddCookie(cookie)
		r.Header.Set(middleware.CSRFHeaderName, strings.ToUpper(token))
	})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", creds, func(r *http.Request) {
		r.AddCookie(cookie)
		r.Header.Set(middleware.CSRFHeaderName, token)
	})
	assert.Equal(t, http.StatusOK, res.Code)
}
