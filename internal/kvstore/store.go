// Package kvstore は端末ローカルのキーバリュー永続化を提供する。
// 選択中プログラムやセッショントークンバンドルなど、
// サーバー非依存のクライアント状態の保存に使う。
package kvstore

import "sync"

// よく使うキーの定義。
const (
	// KeySelectedProgram は選択中プログラムIDを保持するキー。
	KeySelectedProgram = "selected_program"
	// KeyAuthSession は永続化されたセッショントークンバンドルを保持するキー。
	KeyAuthSession = "auth.session"
)

// Store はキーバリュー永続化のインターフェース。
// ストア層はこのポート越しにのみローカル保存へアクセスする。
type Store interface {
	// Get はキーに対応する値を返す。存在しない場合はok=falseを返す。
	Get(key string) (value string, ok bool, err error)
	// Set はキーに値を保存する。
	Set(key, value string) error
	// Delete はキーを削除する。存在しないキーの削除はエラーにならない。
	Delete(key string) error
}

// MemoryStore はメモリ上のStore実装。テストで使用する。
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryStore はMemoryStoreの新しいインスタンスを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

// Get はキーに対応する値を返す。
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

// Set はキーに値を保存する。
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// Delete はキーを削除する。
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
