package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"cremeria-raiz/internal/auth"
	"cremeria-raiz/internal/catalog"
	"cremeria-raiz/internal/session"
	"cremeria-raiz/internal/storage"
	"cremeria-raiz/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var csrfFieldRe = regexp.MustCompile(`name="gorilla\.csrf\.Token" value="([^"]+)"`)

// browser keeps cookies and the last CSRF token between requests.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	token   string
}

func newBrowser(t *testing.T, handler http.Handler) *browser {
	return &browser{t: t, handler: handler, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	if m := csrfFieldRe.FindStringSubmatch(rec.Body.String()); m != nil {
		b.token = m[1]
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, http.NoBody))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if b.token != "" && form.Get("gorilla.csrf.Token") == "" {
		form.Set("gorilla.csrf.Token", b.token)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) sessionToken() string {
	if c, ok := b.cookies[session.DefaultCookieName]; ok {
		return c.Value
	}
	return ""
}

// HandlersTestSuite drives the full router against an in-memory database
type HandlersTestSuite struct {
	suite.Suite
	db     *storage.DB
	router http.Handler
}

func (suite *HandlersTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:", zap.NewNop())
	require.NoError(suite.T(), err)
	suite.db = db

	hash, err := auth.HashPassword("admin123")
	require.NoError(suite.T(), err)
	_, err = db.CreateUser(context.Background(), "admin", hash)
	require.NoError(suite.T(), err)

	suite.router = newTestRouter(suite.T(), db)
}

func (suite *HandlersTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func newTestRouter(t *testing.T, db *storage.DB) http.Handler {
	t.Helper()
	templates, err := web.ParseTemplates(time.UTC)
	require.NoError(t, err)

	sessions := session.NewManager(db, session.Options{})
	h := NewHandlers(Deps{
		Sessions:  sessions,
		Auth:      auth.NewAuthenticator(db, sessions, zap.NewNop()),
		Catalog:   catalog.NewService(db, zap.NewNop()),
		Sweeper:   db,
		DB:        db,
		Templates: templates,
		Logger:    zap.NewNop(),
	})
	return NewRouter(h, RouterOptions{CSRFKey: []byte(strings.Repeat("k", 32))})
}

func (suite *HandlersTestSuite) login(b *browser) {
	b.get("/login")
	rec := b.post("/login", url.Values{"username": {"admin"}, "password": {"admin123"}})
	require.Equal(suite.T(), http.StatusFound, rec.Code)
	require.Equal(suite.T(), "/dashboard", rec.Header().Get("Location"))
}

func (suite *HandlersTestSuite) TestRootRedirectsToDashboard() {
	rec := newBrowser(suite.T(), suite.router).get("/")
	assert.Equal(suite.T(), http.StatusFound, rec.Code)
	assert.Equal(suite.T(), "/dashboard", rec.Header().Get("Location"))
}

func (suite *HandlersTestSuite) TestHealthzAndStatic() {
	b := newBrowser(suite.T(), suite.router)

	rec := b.get("/healthz")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "ok", rec.Body.String())

	rec = b.get("/static/style.css")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Header().Get("Content-Type"), "text/css")
}

func (suite *HandlersTestSuite) TestDashboardRequiresLogin() {
	b := newBrowser(suite.T(), suite.router)

	rec := b.get("/dashboard")
	assert.Equal(suite.T(), http.StatusFound, rec.Code)
	assert.Equal(suite.T(), "/login", rec.Header().Get("Location"))

	rec = b.get("/login")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), MsgLoginRequired)

	rec = b.get("/login")
	assert.NotContains(suite.T(), rec.Body.String(), MsgLoginRequired, "flash is shown once")
}

func (suite *HandlersTestSuite) TestDashboardPostRequiresLogin() {
	b := newBrowser(suite.T(), suite.router)
	b.get("/login")

	rec := b.post("/dashboard", url.Values{
		"action": {catalog.ActionAdd}, "nombre": {"Queso"}, "descripcion": {"Fresco"}, "precio": {"10"},
	})
	assert.Equal(suite.T(), http.StatusFound, rec.Code)
	assert.Equal(suite.T(), "/login", rec.Header().Get("Location"))

	n, err := suite.db.ProductCount(context.Background())
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), n)
}

func (suite *HandlersTestSuite) TestLoginShowsWelcomeOnce() {
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)

	rec := b.get("/dashboard")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), WelcomeMessage("admin"))
	assert.Contains(suite.T(), rec.Body.String(), "Cerrar Sesión")

	rec = b.get("/dashboard")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.NotContains(suite.T(), rec.Body.String(), WelcomeMessage("admin"))
}

func (suite *HandlersTestSuite) TestLoginRotatesSessionToken() {
	b := newBrowser(suite.T(), suite.router)
	b.get("/dashboard") // leaves an anonymous session carrying a flash
	before := b.sessionToken()
	require.NotEmpty(suite.T(), before)

	suite.login(b)
	after := b.sessionToken()
	assert.NotEmpty(suite.T(), after)
	assert.NotEqual(suite.T(), before, after)
}

func (suite *HandlersTestSuite) TestLoginErrors() {
	tests := []struct {
		name     string
		form     url.Values
		wantMsg  string
		wantEcho string
	}{
		{"empty username", url.Values{"username": {"  "}, "password": {"admin123"}}, MsgMissingFields, ""},
		{"empty password", url.Values{"username": {"admin"}, "password": {""}}, MsgMissingFields, `value="admin"`},
		{"wrong password", url.Values{"username": {"admin"}, "password": {"nope"}}, MsgBadCredentials, `value="admin"`},
		{"unknown user", url.Values{"username": {"ghost"}, "password": {"admin123"}}, MsgBadCredentials, `value="ghost"`},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			b := newBrowser(suite.T(), suite.router)
			b.get("/login")

			rec := b.post("/login", tt.form)
			assert.Equal(suite.T(), http.StatusOK, rec.Code)
			assert.Contains(suite.T(), rec.Body.String(), tt.wantMsg)
			if tt.wantEcho != "" {
				assert.Contains(suite.T(), rec.Body.String(), tt.wantEcho)
			}

			assert.Equal(suite.T(), http.StatusFound, b.get("/dashboard").Code, "still anonymous")
		})
	}
}

func (suite *HandlersTestSuite) TestLoginPagesRedirectWhenAuthenticated() {
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)

	rec := b.get("/login")
	assert.Equal(suite.T(), http.StatusFound, rec.Code)
	assert.Equal(suite.T(), "/dashboard", rec.Header().Get("Location"))

	rec = b.post("/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	assert.Equal(suite.T(), http.StatusFound, rec.Code)
}

func (suite *HandlersTestSuite) TestLogout() {
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)
	b.get("/dashboard")

	rec := b.get("/logout")
	assert.Equal(suite.T(), http.StatusFound, rec.Code)
	assert.Equal(suite.T(), "/login", rec.Header().Get("Location"))

	rec = b.get("/login")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), GoodbyeMessage("admin"))

	assert.Equal(suite.T(), http.StatusFound, b.get("/dashboard").Code)
}

func (suite *HandlersTestSuite) TestLogoutWithoutSession() {
	b := newBrowser(suite.T(), suite.router)

	rec := b.get("/logout")
	assert.Equal(suite.T(), http.StatusFound, rec.Code)

	rec = b.get("/login")
	assert.Contains(suite.T(), rec.Body.String(), MsgNoSession)
	assert.Contains(suite.T(), rec.Body.String(), `class="info-message"`)
}

func (suite *HandlersTestSuite) TestProductLifecycle() {
	ctx := context.Background()
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)
	b.get("/dashboard")

	rec := b.post("/dashboard", url.Values{
		"action": {catalog.ActionAdd}, "nombre": {"Queso Oaxaca"}, "descripcion": {"Hebra artesanal"},
		"precio": {"120.5"}, "imagen_url": {""},
	})
	require.Equal(suite.T(), http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(suite.T(), body, catalog.MsgAdded)
	assert.Contains(suite.T(), body, "Queso Oaxaca")
	assert.Contains(suite.T(), body, "$120.50 MXN")
	assert.Contains(suite.T(), body, "Sin imagen")

	rec = b.post("/dashboard", url.Values{
		"action": {catalog.ActionAdd}, "nombre": {"Crema"}, "descripcion": {"Ácida"}, "precio": {"45"},
	})
	table := rec.Body.String()[strings.Index(rec.Body.String(), `<table id="products">`):]
	assert.Less(suite.T(), strings.Index(table, "Crema"), strings.Index(table, "Queso Oaxaca"), "newest first")

	products, err := suite.db.ListProducts(ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), products, 2)
	oaxaca := products[1]

	rec = b.post("/dashboard", url.Values{
		"action": {catalog.ActionEdit}, "id": {itoa(oaxaca.ID)}, "nombre": {"Queso Oaxaca Grande"},
		"descripcion": {"Hebra"}, "precio": {"150"},
	})
	assert.Contains(suite.T(), rec.Body.String(), catalog.MsgUpdated)
	assert.Contains(suite.T(), rec.Body.String(), "Queso Oaxaca Grande")

	rec = b.post("/dashboard", url.Values{
		"action": {catalog.ActionEdit}, "id": {"999"}, "nombre": {"X"}, "descripcion": {"Y"}, "precio": {"1"},
	})
	assert.Contains(suite.T(), rec.Body.String(), catalog.MsgEditNotFound)

	rec = b.post("/dashboard", url.Values{"action": {catalog.ActionDelete}, "id": {itoa(oaxaca.ID)}})
	assert.Contains(suite.T(), rec.Body.String(), catalog.MsgDeleted)
	assert.NotContains(suite.T(), rec.Body.String(), "Queso Oaxaca Grande")

	rec = b.post("/dashboard", url.Values{"action": {catalog.ActionDelete}, "id": {itoa(oaxaca.ID)}})
	assert.Contains(suite.T(), rec.Body.String(), catalog.MsgDelNotFound)

	rec = b.post("/dashboard", url.Values{"action": {catalog.ActionDelete}, "id": {"abc"}})
	assert.Contains(suite.T(), rec.Body.String(), catalog.MsgDeleteInvalid)

	n, err := suite.db.ProductCount(ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, n)
}

func (suite *HandlersTestSuite) TestInvalidAddShowsMessageAndWritesNothing() {
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)
	b.get("/dashboard")

	rec := b.post("/dashboard", url.Values{
		"action": {catalog.ActionAdd}, "nombre": {"Queso"}, "descripcion": {"Fresco"}, "precio": {"gratis"},
	})
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), catalog.MsgAddInvalid)

	n, err := suite.db.ProductCount(context.Background())
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), n)
}

func (suite *HandlersTestSuite) TestUnrecognizedActionJustRenders() {
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)
	b.get("/dashboard")

	rec := b.post("/dashboard", url.Values{"action": {"drop_table"}})
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.NotContains(suite.T(), rec.Body.String(), `class="error-message"`)
	assert.NotContains(suite.T(), rec.Body.String(), `class="success-message"`)
}

func (suite *HandlersTestSuite) TestProductNamesAreEscaped() {
	b := newBrowser(suite.T(), suite.router)
	suite.login(b)
	b.get("/dashboard")

	rec := b.post("/dashboard", url.Values{
		"action": {catalog.ActionAdd}, "nombre": {`<script>alert(1)</script>`},
		"descripcion": {`"quoted" & <b>bold</b>`}, "precio": {"10"}, "imagen_url": {"javascript:alert(1)"},
	})
	body := rec.Body.String()
	assert.Contains(suite.T(), body, catalog.MsgAdded)
	assert.NotContains(suite.T(), body, "<script>alert(1)</script>")
	assert.NotContains(suite.T(), body, "<b>bold</b>")
	assert.NotContains(suite.T(), body, `src="javascript:`)
}

func (suite *HandlersTestSuite) TestPostWithoutCSRFTokenIsRejected() {
	b := newBrowser(suite.T(), suite.router)
	b.get("/login")
	b.token = ""

	rec := b.post("/login", url.Values{"username": {"admin"}, "password": {"admin123"}})
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), MsgForbidden)
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestDashboardShowsLoadError(t *testing.T) {
	db, err := storage.NewDB(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	hash, err := auth.HashPassword("admin123")
	require.NoError(t, err)
	_, err = db.CreateUser(context.Background(), "admin", hash)
	require.NoError(t, err)

	b := newBrowser(t, newTestRouter(t, db))
	b.get("/login")
	require.Equal(t, http.StatusFound, b.post("/login", url.Values{"username": {"admin"}, "password": {"admin123"}}).Code)

	// sessions keep working; only the catalog table is gone
	_, err = db.Execute(context.Background(), `DROP TABLE productos`, nil)
	require.NoError(t, err)

	rec := b.get("/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), catalog.MsgListFailed)
	assert.Contains(t, rec.Body.String(), "No hay productos registrados")
}

func TestGoodbyeMessageDefaultsName(t *testing.T) {
	assert.Equal(t, "Sesión cerrada exitosamente. ¡Hasta pronto, Usuario!", GoodbyeMessage(""))
	assert.Equal(t, "Bienvenido, admin!", WelcomeMessage("admin"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
