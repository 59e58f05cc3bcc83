package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/masterie/masterie/internal/kvstore"
	"github.com/masterie/masterie/internal/logger"
	"github.com/masterie/masterie/internal/model"
)

// fakeAccount はフェイクIdP内のアカウント。
type fakeAccount struct {
	id        string
	email     string
	password  string
	username  string
	confirmed bool
}

// fakeProvider は認証APIと行ストレージAPIを最小限に模したテスト用サーバー。
// chiでルーティングし、メモリ上にアカウントとusers行を保持する。
type fakeProvider struct {
	mu sync.Mutex

	accounts      map[string]*fakeAccount     // email -> account
	users         map[string]model.User       // id -> application user record
	tables        map[string][]map[string]any // table name -> rows（users以外の汎用テーブル）
	activeTokens  map[string]string           // access token -> account id
	refreshTokens map[string]string           // refresh token -> account id

	tokenSeq    int
	insertCalls int
	// confirmationRequired が true の間、signup は identities 0件で応答する
	confirmationRequired bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:      make(map[string]*fakeAccount),
		users:         make(map[string]model.User),
		activeTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
	}
}

// addAccount は確認済みアカウントを登録する。
func (f *fakeProvider) addAccount(id, email, password, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = &fakeAccount{id: id, email: email, password: password, username: username, confirmed: true}
}

// addUserRow はアプリケーションのユーザーレコードを登録する。
func (f *fakeProvider) addUserRow(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// hasActiveSession はアクセストークンが有効なセッションを指すかを返す。
func (f *fakeProvider) hasActiveSession(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.activeTokens[token]
	return ok
}

func (f *fakeProvider) issueTokens(accountID string) (access, refresh string) {
	f.tokenSeq++
	access = fmt.Sprintf("access-%d", f.tokenSeq)
	refresh = fmt.Sprintf("refresh-%d", f.tokenSeq)
	f.activeTokens[access] = accountID
	f.refreshTokens[refresh] = accountID
	return access, refresh
}

func (f *fakeProvider) accountJSON(a *fakeAccount, identities int) map[string]any {
	ids := make([]map[string]any, 0, identities)
	for i := 0; i < identities; i++ {
		ids = append(ids, map[string]any{"id": a.id, "provider": "email"})
	}
	return map[string]any{
		"id":            a.id,
		"email":         a.email,
		"user_metadata": map[string]any{"username": a.username},
		"identities":    ids,
	}
}

func (f *fakeProvider) handler(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/token", f.handleToken)
		r.Post("/signup", f.handleSignup)
		r.Post("/logout", f.handleLogout)
		r.Post("/recover", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		})
		r.Put("/user", f.handleUpdateUser)
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Get("/users", f.handleUsersGet)
		r.Post("/users", f.handleUsersPost)
		r.Patch("/users", f.handleUsersPatch)
		r.Get("/{table}", f.handleTableGet)
		r.Post("/{table}", f.handleTablePost)
	})

	return r
}

// addRows は任意テーブルの行データを登録する。
func (f *fakeProvider) addRows(table string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables == nil {
		f.tables = make(map[string][]map[string]any)
	}
	f.tables[table] = append(f.tables[table], rows...)
}

// handleTableGet は任意テーブルのSELECTを模す。eqフィルタとlimitのみ対応する。
func (f *fakeProvider) handleTableGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := chi.URLParam(r, "table")
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	rows := make([]map[string]any, 0)
	for _, row := range f.tables[table] {
		match := true
		for key, vals := range r.URL.Query() {
			if key == "select" || key == "order" || key == "limit" {
				continue
			}
			want, ok := strings.CutPrefix(vals[0], "eq.")
			if !ok {
				continue
			}
			if fmt.Sprint(row[key]) != want {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, row)
		}
		if limit >= 0 && len(rows) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleTablePost は任意テーブルのINSERTを模す。単一オブジェクトと配列の両方を受ける。
func (f *fakeProvider) handleTablePost(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := chi.URLParam(r, "table")
	if f.tables == nil {
		f.tables = make(map[string][]map[string]any)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		var single map[string]any
		if err := json.Unmarshal(raw, &single); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
			return
		}
		rows = []map[string]any{single}
	}

	f.tables[table] = append(f.tables[table], rows...)
	writeJSON(w, http.StatusCreated, rows)
}

func (f *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Query().Get("grant_type") {
	case "password":
		a, ok := f.accounts[body.Email]
		if !ok || a.password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		if !a.confirmed {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Email not confirmed",
			})
			return
		}
		access, refresh := f.issueTokens(a.id)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": refresh,
			"user":          f.accountJSON(a, 1),
		})
	case "refresh_token":
		accountID, ok := f.refreshTokens[body.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token",
			})
			return
		}
		delete(f.refreshTokens, body.RefreshToken)
		var account *fakeAccount
		for _, a := range f.accounts {
			if a.id == accountID {
				account = a
				break
			}
		}
		if account == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error_description": "account gone"})
			return
		}
		access, refresh := f.issueTokens(accountID)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": refresh,
			"user":          f.accountJSON(account, 1),
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
	}
}

func (f *fakeProvider) handleSignup(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body struct {
		Email    string            `json:"email"`
		Password string            `json:"password"`
		Data     map[string]string `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if _, exists := f.accounts[body.Email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"msg": "User already registered",
		})
		return
	}

	a := &fakeAccount{
		id:        fmt.Sprintf("account-%d", len(f.accounts)+1),
		email:     body.Email,
		password:  body.Password,
		username:  body.Data["username"],
		confirmed: !f.confirmationRequired,
	}
	f.accounts[body.Email] = a

	identities := 1
	if f.confirmationRequired {
		identities = 0
	}
	writeJSON(w, http.StatusOK, f.accountJSON(a, identities))
}

func (f *fakeProvider) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	delete(f.activeTokens, token)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeProvider) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if _, ok := f.activeTokens[token]; !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeProvider) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := make([]model.User, 0)
	idFilter := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	for _, u := range f.users {
		if idFilter == "" || u.ID == idFilter {
			rows = append(rows, u)
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (f *fakeProvider) handleUsersPost(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertCalls++

	var u model.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}
	if _, exists := f.users[u.ID]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{
			"message": `duplicate key value violates unique constraint "users_pkey"`,
			"code":    "23505",
		})
		return
	}
	f.users[u.ID] = u
	writeJSON(w, http.StatusCreated, []model.User{u})
}

func (f *fakeProvider) handleUsersPatch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	u, ok := f.users[id]
	if !ok {
		writeJSON(w, http.StatusOK, []model.User{})
		return
	}

	var fields map[string]any
	_ = json.NewDecoder(r.Body).Decode(&fields)

	// 部分更新: JSON経由で既存行にマージする
	raw, _ := json.Marshal(u)
	merged := make(map[string]any)
	_ = json.Unmarshal(raw, &merged)
	for k, v := range fields {
		merged[k] = v
	}
	raw, _ = json.Marshal(merged)
	_ = json.Unmarshal(raw, &u)

	f.users[id] = u
	writeJSON(w, http.StatusOK, []model.User{u})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestClients はフェイクプロバイダーに向けたAuthClientとRestClientを生成する。
func newTestClients(t *testing.T, f *fakeProvider) (*AuthClient, *RestClient, kvstore.Store) {
	t.Helper()

	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-anon-key",
	}, nil, logger.Setup(testWriter{t}))

	kv := kvstore.NewMemoryStore()
	return NewAuthClient(c, kv), NewRestClient(c), kv
}

// testWriter はテストログへ書き込むio.Writer。
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
