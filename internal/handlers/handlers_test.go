package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"expense-ledger/internal/accounts"
	"expense-ledger/internal/auth"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/logging"
	"expense-ledger/internal/models"
	"expense-ledger/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret"

type apiResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Error     json.RawMessage `json:"error"`
	Data      json.RawMessage `json:"data"`
	User      json.RawMessage `json:"user"`
	ExpenseID string          `json:"expenseId"`
}

// APITestSuite drives the router against a real SQLite database.
type APITestSuite struct {
	suite.Suite
	db     *storage.DB
	creds  *auth.Credentials
	router http.Handler
	now    time.Time
}

func (suite *APITestSuite) SetupTest() {
	db, err := storage.NewDB(context.Background(), filepath.Join(suite.T().TempDir(), "api.db"))
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	suite.now = time.Now()
	suite.creds = auth.New(auth.Config{Secret: testSecret})
	suite.router = suite.newRouter(suite.creds)
}

func (suite *APITestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *APITestSuite) newRouter(creds *auth.Credentials) http.Handler {
	h := NewHandlers(
		accounts.New(suite.db, creds),
		ledger.New(suite.db, ledger.WithClock(func() time.Time { return suite.now })),
		creds,
		WithHealthCheck(suite.db.Ping),
	)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (suite *APITestSuite) do(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, apiResponse) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (suite *APITestSuite) signupAndLogin(name, username, email string) *http.Cookie {
	w, _ := suite.do(http.MethodPost, "/auth/signup", map[string]string{
		"name": name, "username": username, "email": email, "password": "passwodrd123",
	})
	require.Equal(suite.T(), http.StatusCreated, w.Code)

	w, _ = suite.do(http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": "passwodrd123",
	})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	return tokenCookie(suite.T(), w)
}

func tokenCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == TokenCookieName {
			return c
		}
	}
	t.Fatal("no token cookie set")
	return nil
}

func (suite *APITestSuite) TestLoganPaulFlow() {
	w, resp := suite.do(http.MethodPost, "/auth/signup", map[string]string{
		"name":     "Logan Paul",
		"username": "lowlifelogan",
		"email":    "loganpaul@gmail.com",
		"password": "passwodrd123",
	})
	require.Equal(suite.T(), http.StatusCreated, w.Code)
	assert.Equal(suite.T(), "success", resp.Status)

	w, resp = suite.do(http.MethodPost, "/auth/login", map[string]string{
		"email":    "loganpaul@gmail.com",
		"password": "passwodrd123",
	})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "User login successful", resp.Message)
	assert.Contains(suite.T(), string(resp.User), `"username":"lowlifelogan"`)
	assert.NotContains(suite.T(), w.Body.String(), "password")

	cookie := tokenCookie(suite.T(), w)
	assert.True(suite.T(), cookie.HttpOnly)
	assert.Equal(suite.T(), 3600, cookie.MaxAge)
	assert.Equal(suite.T(), http.SameSiteStrictMode, cookie.SameSite)

	w, resp = suite.do(http.MethodPost, "/expense/add", map[string]any{
		"title":    "Some random expense",
		"amount":   42,
		"category": "Some random category",
		"date":     "2023-12-31",
	}, cookie)
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	expenseID, err := uuid.Parse(resp.ExpenseID)
	require.NoError(suite.T(), err)

	w, _ = suite.do(http.MethodDelete, "/expense/delete", map[string]string{
		"expenseId": "00000000-0000-0000-0000-000000000000",
	}, cookie)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w, _ = suite.do(http.MethodDelete, "/expense/delete", map[string]string{
		"expenseId": expenseID.String(),
	}, cookie)
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)
	assert.Empty(suite.T(), w.Body.String())
}

func (suite *APITestSuite) TestSignupValidationAndConflict() {
	w, resp := suite.do(http.MethodPost, "/auth/signup", map[string]string{
		"name": "Lo", "username": "lo", "email": "nope", "password": "short",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "Input validation failed", resp.Message)

	var fields []models.FieldError
	require.NoError(suite.T(), json.Unmarshal(resp.Error, &fields))
	assert.Len(suite.T(), fields, 4)

	suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")
	w, resp = suite.do(http.MethodPost, "/auth/signup", map[string]string{
		"name": "Logan Paul", "username": "lowlifelogan", "email": "loganpaul@gmail.com", "password": "passwodrd123",
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "User already exists", resp.Message)
}

func (suite *APITestSuite) TestLoginFailures() {
	suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	w, resp := suite.do(http.MethodPost, "/auth/login", map[string]string{
		"email": "loganpaul@gmail.com", "password": "wrongpassword",
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), "Incorrect Password", resp.Message)

	w, resp = suite.do(http.MethodPost, "/auth/login", map[string]string{
		"email": "jakepaul@gmail.com", "password": "passwodrd123",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "User doesn't exist", resp.Message)

	w, _ = suite.do(http.MethodPost, "/auth/login", `{"email":`)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestLoginWithoutSecret() {
	suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")
	suite.router = suite.newRouter(auth.New(auth.Config{}))

	w, resp := suite.do(http.MethodPost, "/auth/login", map[string]string{
		"email": "loganpaul@gmail.com", "password": "passwodrd123",
	})
	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.Equal(suite.T(), "Internal server error", resp.Message)
}

func (suite *APITestSuite) TestGate() {
	expired := auth.New(auth.Config{Secret: testSecret}, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	expiredToken, _, err := expired.IssueToken(models.Claims{ID: uuid.New(), Name: "Logan Paul", Username: "lowlifelogan"})
	require.NoError(suite.T(), err)

	foreign := auth.New(auth.Config{Secret: "someone-elses-secret"})
	foreignToken, _, err := foreign.IssueToken(models.Claims{ID: uuid.New()})
	require.NoError(suite.T(), err)

	tests := []struct {
		name    string
		cookie  *http.Cookie
		status  int
		message string
	}{
		{name: "no token", status: http.StatusForbidden, message: "No token provided. Access forbidden"},
		{name: "expired", cookie: &http.Cookie{Name: TokenCookieName, Value: expiredToken}, status: http.StatusUnauthorized, message: "Token expired"},
		{name: "garbage", cookie: &http.Cookie{Name: TokenCookieName, Value: "garbage"}, status: http.StatusUnauthorized, message: "Invalid token"},
		{name: "wrong signature", cookie: &http.Cookie{Name: TokenCookieName, Value: foreignToken}, status: http.StatusUnauthorized, message: "Invalid token"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			w, resp := suite.do(http.MethodGet, "/expense/all", nil, cookies...)
			assert.Equal(suite.T(), tt.status, w.Code)
			assert.Equal(suite.T(), "failure", resp.Status)
			assert.Equal(suite.T(), tt.message, resp.Message)
		})
	}
}

func (suite *APITestSuite) TestGateWithoutSecret() {
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")
	suite.router = suite.newRouter(auth.New(auth.Config{}))

	w, _ := suite.do(http.MethodGet, "/expense/all", nil, cookie)
	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
}

func (suite *APITestSuite) TestBearerHeader() {
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	req := httptest.NewRequest(http.MethodGet, "/expense/all", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *APITestSuite) TestAddExpenseValidation() {
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "fractional amount", body: `{"title":"Coffee","amount":4.5,"category":"Food","date":"2024-05-01"}`, field: "amount"},
		{name: "quoted amount", body: `{"title":"Groceries","amount":"50","category":"Food","date":"2020-01-01"}`, field: "amount"},
		{name: "boolean amount", body: `{"title":"Groceries","amount":true,"category":"Food","date":"2020-01-01"}`, field: "amount"},
		{name: "amount beyond int64", body: `{"title":"Groceries","amount":1e19,"category":"Food","date":"2020-01-01"}`, field: "amount"},
		{name: "negative amount", body: `{"title":"Coffee","amount":-1,"category":"Food","date":"2024-05-01"}`, field: "amount"},
		{name: "missing amount", body: `{"title":"Coffee","category":"Food","date":"2024-05-01"}`, field: "amount"},
		{name: "short title", body: `{"title":"Co","amount":4,"category":"Food","date":"2024-05-01"}`, field: "title"},
		{name: "short category", body: `{"title":"Coffee","amount":4,"category":"F","date":"2024-05-01"}`, field: "category"},
		{name: "bad date", body: `{"title":"Coffee","amount":4,"category":"Food","date":"2023-02-30"}`, field: "date"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			w, resp := suite.do(http.MethodPost, "/expense/add", tt.body, cookie)
			assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

			var fields []models.FieldError
			require.NoError(suite.T(), json.Unmarshal(resp.Error, &fields))
			require.Len(suite.T(), fields, 1)
			assert.Equal(suite.T(), tt.field, fields[0].Field)
		})
	}

	w, _ := suite.do(http.MethodPost, "/expense/add", `not json`, cookie)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	list, resp := suite.do(http.MethodGet, "/expense/all", nil, cookie)
	require.Equal(suite.T(), http.StatusOK, list.Code)
	assert.JSONEq(suite.T(), `[]`, string(resp.Data))
}

func (suite *APITestSuite) TestAddExpenseIntegralAmounts() {
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	for _, amount := range []string{"50.0", "5e1"} {
		body := `{"title":"Groceries","amount":` + amount + `,"category":"Food","date":"2020-01-01"}`
		w, resp := suite.do(http.MethodPost, "/expense/add", body, cookie)
		require.Equal(suite.T(), http.StatusCreated, w.Code, amount)
		assert.NotEmpty(suite.T(), resp.ExpenseID)
	}

	w, resp := suite.do(http.MethodGet, "/expense/all", nil, cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var expenses []models.ExpenseView
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &expenses))
	require.Len(suite.T(), expenses, 2)
	for _, e := range expenses {
		assert.Equal(suite.T(), int64(50), e.Amount)
	}
}

func (suite *APITestSuite) TestTrailingDataIsRejected() {
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	body := `{"title":"Groceries","amount":50,"category":"Food","date":"2020-01-01"} trailing`
	w, resp := suite.do(http.MethodPost, "/expense/add", body, cookie)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "Invalid request payload", resp.Message)

	body = `{"title":"Groceries","amount":50,"category":"Food","date":"2020-01-01"}{}`
	w, _ = suite.do(http.MethodPost, "/expense/add", body, cookie)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	// trailing whitespace is fine
	body = "{\"title\":\"Groceries\",\"amount\":50,\"category\":\"Food\",\"date\":\"2020-01-01\"}\n  "
	w, _ = suite.do(http.MethodPost, "/expense/add", body, cookie)
	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	w, resp = suite.do(http.MethodGet, "/expense/all", nil, cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var expenses []models.ExpenseView
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &expenses))
	assert.Len(suite.T(), expenses, 1)
}

func TestIntegerAmount(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{json.Number("50"), 50},
		{json.Number("50.0"), 50},
		{json.Number("-3"), -3},
		{json.Number("4.5"), 0},
		{json.Number("1e19"), 0},
		{"50", 0},
		{nil, 0},
		{float64(50), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, integerAmount(tt.in), "%#v", tt.in)
	}
}

func (suite *APITestSuite) TestDeleteIsScopedToOwner() {
	logan := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")
	jake := suite.signupAndLogin("Jake Paul", "jakepaul", "jakepaul@gmail.com")

	w, resp := suite.do(http.MethodPost, "/expense/add", map[string]any{
		"title": "Boxing gloves", "amount": 120, "category": "Sports", "date": "2024-05-01",
	}, logan)
	require.Equal(suite.T(), http.StatusCreated, w.Code)

	w, _ = suite.do(http.MethodDelete, "/expense/delete", map[string]string{"expenseId": resp.ExpenseID}, jake)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w, listResp := suite.do(http.MethodGet, "/expense/all", nil, logan)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), string(listResp.Data), "Boxing gloves")

	w, _ = suite.do(http.MethodDelete, "/expense/delete", map[string]string{"expenseId": "not-a-uuid"}, logan)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestListFilters() {
	suite.now = time.Date(2024, 3, 31, 12, 0, 0, 0, time.Local)
	suite.router = suite.newRouter(suite.creds)
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	for _, e := range []struct{ title, date string }{
		{"Ancient", "2024-01-15"},
		{"Month edge", "2024-02-29"},
		{"Week edge", "2024-03-24"},
		{"Today", "2024-03-31"},
	} {
		w, _ := suite.do(http.MethodPost, "/expense/add", map[string]any{
			"title": e.title, "amount": 10, "category": "Food", "date": e.date,
		}, cookie)
		require.Equal(suite.T(), http.StatusCreated, w.Code)
	}

	tests := []struct {
		filter string
		titles []string
	}{
		{filter: "", titles: []string{"Today", "Week edge", "Month edge", "Ancient"}},
		{filter: "weekly", titles: []string{"Today", "Week edge"}},
		{filter: "monthly", titles: []string{"Today", "Week edge", "Month edge"}},
	}

	for _, tt := range tests {
		suite.Run("filter="+tt.filter, func() {
			w, resp := suite.do(http.MethodGet, "/expense/all?filter="+tt.filter, nil, cookie)
			require.Equal(suite.T(), http.StatusOK, w.Code)

			var views []models.ExpenseView
			require.NoError(suite.T(), json.Unmarshal(resp.Data, &views))
			var titles []string
			for _, v := range views {
				titles = append(titles, v.Title)
				require.NotNil(suite.T(), v.CategoryName)
				assert.Equal(suite.T(), "Food", *v.CategoryName)
			}
			assert.Equal(suite.T(), tt.titles, titles)
		})
	}

	w, resp := suite.do(http.MethodGet, "/expense/all?filter=yearly", nil, cookie)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "Input validation failed", resp.Message)
}

func (suite *APITestSuite) TestListCategories() {
	cookie := suite.signupAndLogin("Logan Paul", "lowlifelogan", "loganpaul@gmail.com")

	w, _ := suite.do(http.MethodPost, "/expense/add", map[string]any{
		"title": "Guitar strings", "amount": 15, "category": "Music", "date": "2024-05-01",
	}, cookie)
	require.Equal(suite.T(), http.StatusCreated, w.Code)

	w, resp := suite.do(http.MethodGet, "/category/all", nil, cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var categories []models.Category
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &categories))
	require.Len(suite.T(), categories, 8)
	assert.Equal(suite.T(), "Music", categories[0].Name)
	assert.False(suite.T(), categories[0].IsGlobal())
}

func (suite *APITestSuite) TestLogoutClearsCookie() {
	w, resp := suite.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "success", resp.Status)
	assert.Equal(suite.T(), -1, tokenCookie(suite.T(), w).MaxAge)
}

func (suite *APITestSuite) TestHealth() {
	w, _ := suite.do(http.MethodGet, "/healthz", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	suite.db.Close()
	w, _ = suite.do(http.MethodGet, "/healthz", nil)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	suite.db = nil
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, tokenFromRequest(req))

	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", tokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, tokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-cookie", tokenFromRequest(req))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "text")

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/brew")
	assert.Contains(t, out, "status=418")
}

func TestWriteInternalHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeInternal(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: relation \"users\" does not exist"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "relation"))
}
