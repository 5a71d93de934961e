package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/Nepenthes/pkg/flash"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeTestConfig(t, dir)
	writeTemplate(t, filepath.Join(dir, "site", "index.html"), `Home {{.path}} {{.locale}}`)
	writeTemplate(t, filepath.Join(dir, "site", "404.html"), `Nope {{.path}}`)
	writeTemplate(t, filepath.Join(dir, "cp", "settings.html"), `{{csrfInput}}{{footHtml}}`)
	writeTemplate(t, filepath.Join(dir, "translations", "de.yaml"), "Save: Speichern\n")

	config, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	logger := newLogger(&bytes.Buffer{}, "error")

	db, err := initDB(config.Server.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, setupAuthSchema(db))
	require.NoError(t, flash.SetupSchema(db))

	server, err := NewServer(NewConfigManager(config, path, logger), logger, db, make(chan string, 1))
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return server, dir
}

func TestHandleSite(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Home index en-US", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "NEPENTHES_SESSION=")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	rec = httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, req)
	assert.Equal(t, "Home index de", rec.Body.String())

	rec = httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing/here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Nope nothing/here", rec.Body.String())

	rec = httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSiteControlPanel(t *testing.T) {
	server, _ := newTestServer(t)
	require.NoError(t, server.flashes.AddJS(context.Background(), "sess-1", "App.cp.init()"))

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.AddCookie(&http.Cookie{Name: "NEPENTHES_SESSION", Value: "sess-1"})
	rec := httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `<input type="hidden" name="NEPENTHES_CSRF_TOKEN" value="`+csrfToken("sess-1")+`">`))
	assert.Contains(t, body, "App.cp.init();")
	assert.Empty(t, rec.Header().Get("Set-Cookie"), "existing sessions are reused")

	rec = httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "CP templates are not reachable from the site")
}

func TestTemplateAPI(t *testing.T) {
	server, dir := newTestServer(t)

	do := func(method, target, body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if key != "" {
			req.Header.Set(authHeader, key)
		}
		rec := httptest.NewRecorder()
		server.apiMux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/templates/test", `{{add 1 2}} {{.who}}`, "")
	require.Equal(t, http.StatusOK, rec.Code, "the API is open until a key exists")
	assert.Equal(t, "3 ", rec.Body.String())

	key, err := createAPIKey(context.Background(), server.db, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, key.Scopes)

	rec = do(http.MethodPost, "/api/templates/test", `x`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(http.MethodPost, "/api/templates/test?vars="+url.QueryEscape(`{"who":"you"}`), `hi {{.who}}`, key.RawKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi you", rec.Body.String())

	rec = do(http.MethodGet, "/api/templates/exists?name=404", "", key.RawKey)
	require.Equal(t, http.StatusOK, rec.Code)
	var exists map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exists))
	assert.Equal(t, true, exists["exists"])
	assert.Equal(t, filepath.Join(dir, "site", "404.html"), exists["path"])

	rec = do(http.MethodGet, "/api/templates/preview?name=missing", "", key.RawKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	reader, err := createAPIKey(context.Background(), server.db, "reader", []string{"templates:read"})
	require.NoError(t, err)
	rec = do(http.MethodDelete, "/api/templates/cache", "", reader.RawKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(http.MethodDelete, "/api/templates/cache", "", key.RawKey)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFlashAPI(t *testing.T) {
	server, _ := newTestServer(t)

	post := func(body string) int {
		rec := httptest.NewRecorder()
		server.apiMux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flashes", strings.NewReader(body)))
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, post(`{"session_id":"sess-2","kind":"js_resource","value":"js/editor.js"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"session_id":"sess-2","kind":"css","value":"x"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"kind":"js","value":"x"}`))
	assert.Equal(t, http.StatusBadRequest, post(`not json`))

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.AddCookie(&http.Cookie{Name: "NEPENTHES_SESSION", Value: "sess-2"})
	rec := httptest.NewRecorder()
	server.siteMux.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), `<script type="text/javascript" src="http://localhost:7377/cpresources/js/editor.js"></script>`)
}

func TestAuthAPI(t *testing.T) {
	server, _ := newTestServer(t)

	do := func(method, target, body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if key != "" {
			req.Header.Set(authHeader, key)
		}
		rec := httptest.NewRecorder()
		server.apiMux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/api/auth/me", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scopes":["*"]}`, rec.Body.String())

	rec = do(http.MethodPost, "/api/auth/keys", `{"description":"admin"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var master CreateKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &master))
	assert.Equal(t, []string{"*"}, master.Scopes)

	rec = do(http.MethodPost, "/api/auth/keys", `{"scopes":["templates:delete"]}`, master.RawKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `unknown scope`)

	rec = do(http.MethodPost, "/api/auth/keys", `{"scopes":[]}`, master.RawKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/api/auth/keys", `{"scopes":["templates:*"],"description":"editor"}`, master.RawKey)
	require.Equal(t, http.StatusCreated, rec.Code)
	var editor CreateKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &editor))

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/templates/exists?name=404", "", editor.RawKey).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/templates/cache", "", editor.RawKey).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/server/version", "", editor.RawKey).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/auth/keys", "", editor.RawKey).Code)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/auth/me", "", "nep_wrong").Code)

	rec = do(http.MethodGet, "/api/auth/keys", "", master.RawKey)
	require.Equal(t, http.StatusOK, rec.Code)
	var keys []APIKeyInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	require.Len(t, keys, 2)
	assert.Equal(t, "editor", keys[1].Description)
	assert.Equal(t, []string{"templates:*"}, keys[1].Scopes)
	assert.False(t, keys[1].CreatedAt.IsZero())

	rec = do(http.MethodGet, "/api/auth/scopes", "", editor.RawKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"flashes:write"`)

	assert.Equal(t, http.StatusConflict, do(http.MethodDelete, fmt.Sprintf("/api/auth/keys/%d", master.ID), "", master.RawKey).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodDelete, "/api/auth/keys/abc", "", master.RawKey).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, fmt.Sprintf("/api/auth/keys/%d", editor.ID), "", master.RawKey).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, fmt.Sprintf("/api/auth/keys/%d", editor.ID), "", master.RawKey).Code)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/auth/me", "", editor.RawKey).Code)
}

func TestScopeSetAllows(t *testing.T) {
	granted, err := parseScopes([]string{"templates:*", " flashes:write ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"flashes:write", "templates:*"}, granted.sorted())

	assert.True(t, granted.allows("templates:read"))
	assert.True(t, granted.allows("templates:write"))
	assert.True(t, granted.allows("flashes:write"))
	assert.False(t, granted.allows("server:read"))
	assert.True(t, scopeSet{"*": {}}.allows("server:control"))

	_, err = parseScopes([]string{"nothing:*"})
	assert.ErrorIs(t, err, errUnknownScope)
	_, err = parseScopes([]string{"server:*", "*"})
	assert.NoError(t, err)
}
