package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

const authSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id            INTEGER   PRIMARY KEY,
    key_hash      TEXT      NOT NULL UNIQUE,
    scopes        TEXT      NOT NULL,
    description   TEXT      NOT NULL,
    created_at    INTEGER   NOT NULL
);
`

const (
	authHeader  = "nepenthes-auth"
	keyPrefix   = "nep_"
	masterScope = "*"
)

// apiScopes lists every scope the admin API checks. "group:*" grants each
// scope of a group and "*" grants all of them.
var apiScopes = map[string]string{
	"auth:manage":     "create, list and revoke API keys",
	"templates:read":  "render, preview and look up templates",
	"templates:write": "clear the template caches",
	"flashes:write":   "queue control panel flashes for a session",
	"server:read":     "read the version and health",
	"server:config":   "read and update the configuration",
	"server:control":  "shut down or restart the server",
}

var (
	errUnknownScope = errors.New("unknown scope")
	errNoScopes     = errors.New("at least one scope is required")
	errInvalidKey   = errors.New("invalid or missing API key")

	errLastMasterKey = errors.New("cannot revoke the last master key")
)

type scopesContextKey struct{}

// scopeSet is the set of scopes granted to a request.
type scopeSet map[string]struct{}

// parseScopes validates scopes against apiScopes.
func parseScopes(scopes []string) (scopeSet, error) {
	set := make(scopeSet, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if !knownScope(scope) {
			return nil, fmt.Errorf("%w %q", errUnknownScope, scope)
		}
		set[scope] = struct{}{}
	}
	return set, nil
}

func knownScope(scope string) bool {
	if scope == masterScope {
		return true
	}
	if group, ok := strings.CutSuffix(scope, ":*"); ok {
		for known := range apiScopes {
			if strings.HasPrefix(known, group+":") {
				return true
			}
		}
		return false
	}
	_, ok := apiScopes[scope]
	return ok
}

func (s scopeSet) allows(scope string) bool {
	if _, ok := s[masterScope]; ok {
		return true
	}
	if _, ok := s[scope]; ok {
		return true
	}
	group, _, _ := strings.Cut(scope, ":")
	_, ok := s[group+":*"]
	return ok
}

func (s scopeSet) sorted() []string {
	scopes := make([]string, 0, len(s))
	for scope := range s {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

// hasScope reports whether the key that authenticated r grants scope.
func hasScope(r *http.Request, scope string) bool {
	granted, ok := r.Context().Value(scopesContextKey{}).(scopeSet)
	return ok && granted.allows(scope)
}

// AuthAPI serves /api/auth and guards the rest of the admin API.
type AuthAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupAuthSchema(db *sql.DB) error {
	_, err := db.Exec(authSchema)
	return err
}

func NewAuthAPI(db *sql.DB, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{db: db, logger: logger}
}

// RegisterRoutes sets up the /api/auth endpoints.
func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", a.handleMe)
	mux.HandleFunc("GET /api/auth/scopes", a.handleScopes)
	mux.HandleFunc("GET /api/auth/keys", a.handleListKeys)
	mux.HandleFunc("POST /api/auth/keys", a.handleCreateKey)
	mux.HandleFunc("DELETE /api/auth/keys/{id}", a.handleRevokeKey)
}

// APIKeyInfo describes a stored key. The raw key is never stored.
type APIKeyInfo struct {
	ID          int       `json:"id"`
	Scopes      []string  `json:"scopes"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateKeyRequest is the body of POST /api/auth/keys.
type CreateKeyRequest struct {
	Scopes      []string `json:"scopes"`
	Description string   `json:"description"`
}

// CreateKeyResponse carries the raw key, shown only once.
type CreateKeyResponse struct {
	ID     int      `json:"id"`
	RawKey string   `json:"raw_key"`
	Scopes []string `json:"scopes"`
}

// Authenticate resolves the key in the nepenthes-auth header to its scopes.
// While no key exists the API is open and every scope is granted.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		granted, err := a.scopesFor(r.Context(), r.Header.Get(authHeader))
		if errors.Is(err, errInvalidKey) {
			respondWithError(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		if err != nil {
			a.logger.Error("Failed to authenticate API request", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopesContextKey{}, granted)))
	})
}

func (a *AuthAPI) scopesFor(ctx context.Context, rawKey string) (scopeSet, error) {
	if rawKey != "" {
		var stored string
		err := a.db.QueryRowContext(ctx, `SELECT scopes FROM api_keys WHERE key_hash = ?`, hashAPIKey(rawKey)).Scan(&stored)
		if err == nil {
			granted := make(scopeSet)
			for _, scope := range strings.Fields(stored) {
				granted[scope] = struct{}{}
			}
			return granted, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up API key: %w", err)
		}
	}

	count, err := countKeys(ctx, a.db)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return scopeSet{masterScope: {}}, nil
	}
	return nil, errInvalidKey
}

func (a *AuthAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	granted, _ := r.Context().Value(scopesContextKey{}).(scopeSet)
	respondWithJSON(w, http.StatusOK, map[string]any{"scopes": granted.sorted()})
}

func (a *AuthAPI) handleScopes(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, apiScopes)
}

func (a *AuthAPI) handleListKeys(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}
	keys, err := listAPIKeys(r.Context(), a.db)
	if err != nil {
		a.logger.Error("Failed to list API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list keys")
		return
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (a *AuthAPI) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	key, err := createAPIKey(r.Context(), a.db, req.Description, req.Scopes)
	switch {
	case errors.Is(err, errUnknownScope), errors.Is(err, errNoScopes):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		a.logger.Error("Failed to create API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create key")
	default:
		a.logger.Info("API key created", "id", key.ID, "scopes", key.Scopes)
		respondWithJSON(w, http.StatusCreated, key)
	}
}

func (a *AuthAPI) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid key ID")
		return
	}

	err = revokeAPIKey(r.Context(), a.db, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		respondWithError(w, http.StatusNotFound, "Key not found")
	case errors.Is(err, errLastMasterKey):
		respondWithError(w, http.StatusConflict, err.Error())
	case err != nil:
		a.logger.Error("Failed to revoke API key", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to revoke key")
	default:
		a.logger.Info("API key revoked", "id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// rowQuerier is implemented by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countKeys(ctx context.Context, q rowQuerier) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count API keys: %w", err)
	}
	return count, nil
}

// createAPIKey stores a new key for scopes. The first key always gets the
// master scope so the API cannot be locked.
func createAPIKey(ctx context.Context, db *sql.DB, description string, scopes []string) (*CreateKeyResponse, error) {
	granted, err := parseScopes(scopes)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	count, err := countKeys(ctx, tx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		granted = scopeSet{masterScope: {}}
	} else if len(granted) == 0 {
		return nil, errNoScopes
	}

	rawKey := keyPrefix + rand.Text()
	sorted := granted.sorted()
	var id int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, scopes, description, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		hashAPIKey(rawKey), strings.Join(sorted, " "), description, time.Now().Unix()).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to save API key: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit API key: %w", err)
	}
	return &CreateKeyResponse{ID: id, RawKey: rawKey, Scopes: sorted}, nil
}

func listAPIKeys(ctx context.Context, db *sql.DB) ([]APIKeyInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, scopes, description, created_at FROM api_keys ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query API keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := []APIKeyInfo{}
	for rows.Next() {
		var (
			key     APIKeyInfo
			scopes  string
			created int64
		)
		if err := rows.Scan(&key.ID, &scopes, &key.Description, &created); err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		key.Scopes = strings.Fields(scopes)
		key.CreatedAt = time.Unix(created, 0).UTC()
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// revokeAPIKey deletes a key unless it is the only one holding the master scope.
func revokeAPIKey(ctx context.Context, db *sql.DB, id int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var scopes string
	if err := tx.QueryRowContext(ctx, `SELECT scopes FROM api_keys WHERE id = ?`, id).Scan(&scopes); err != nil {
		return err
	}
	if slices.Contains(strings.Fields(scopes), masterScope) {
		var masters int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE ' ' || scopes || ' ' LIKE '% * %'`).Scan(&masters)
		if err != nil {
			return fmt.Errorf("failed to count master keys: %w", err)
		}
		if masters <= 1 {
			return errLastMasterKey
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	return tx.Commit()
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
