// Package program は学習プログラムのカタログと選択状態を管理する。
package program

import (
	"context"
	"log/slog"
	"sync"

	"github.com/masterie/masterie/internal/kvstore"
	"github.com/masterie/masterie/internal/model"
)

// catalog は提供する学習プログラムの静的カタログ。
// 現時点でバックエンドにprogramsテーブルはなく、提供状況もリリース判断で決まるため
// クライアント側に持つ。提供開始はIsAvailableの切り替えのみで行う。
var catalog = []model.Program{
	{ID: "law", Name: "法学", Description: "憲法・民法・刑法を中心とした法学の基礎", Icon: "⚖️", IsAvailable: true},
	{ID: "accounting", Name: "会計学", Description: "簿記・財務会計・管理会計", Icon: "📊", IsAvailable: false},
	{ID: "political-science", Name: "政治学", Description: "政治理論・行政学・国際関係", Icon: "🏛️", IsAvailable: false},
	{ID: "business", Name: "経営学", Description: "経営戦略・組織論・マーケティング", Icon: "💼", IsAvailable: false},
	{ID: "economics", Name: "経済学", Description: "ミクロ経済学・マクロ経済学", Icon: "📈", IsAvailable: false},
	{ID: "sociology", Name: "社会学", Description: "社会理論・社会調査法", Icon: "👥", IsAvailable: false},
}

// Store は学習プログラムの選択状態を管理する。
// 選択はメモリとkvstoreへ同時に書き込まれ、再構築時にkvstoreから復元される。
type Store struct {
	kv     kvstore.Store
	logger *slog.Logger

	mu       sync.RWMutex
	selected string
}

// NewStore はStoreを生成し、永続化された選択状態を復元する。
func NewStore(kv kvstore.Store, logger *slog.Logger) *Store {
	s := &Store{
		kv:     kv,
		logger: logger,
	}

	value, ok, err := kv.Get(kvstore.KeySelectedProgram)
	if err != nil {
		logger.Warn("failed to restore selected program", slog.String("error", err.Error()))
		return s
	}
	if ok && value != "" {
		// 復元値がカタログから消えている場合は破棄する
		if _, found := find(value); found {
			s.selected = value
		} else {
			logger.Warn("persisted program no longer in catalog, discarding", slog.String("program_id", value))
			_ = kv.Delete(kvstore.KeySelectedProgram)
		}
	}
	return s
}

// List は学習プログラムの一覧を返す。
// 現在は静的カタログを返すだけだが、将来バックエンドから取得するため
// シグネチャは非同期読み込みの形を維持している。
func (s *Store) List(ctx context.Context) ([]model.Program, error) {
	programs := make([]model.Program, len(catalog))
	copy(programs, catalog)
	return programs, nil
}

// Selected は選択中のプログラムIDを返す。未選択の場合は空文字。
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SelectedProgram は選択中のプログラム定義を返す。未選択の場合はnil。
func (s *Store) SelectedProgram() *model.Program {
	s.mu.RLock()
	id := s.selected
	s.mu.RUnlock()

	if id == "" {
		return nil
	}
	if p, found := find(id); found {
		return &p
	}
	return nil
}

// Select はプログラムを選択し、kvstoreへ書き込む。
// 未知のIDと未提供のプログラムは拒否する。同じIDの再選択は冪等。
func (s *Store) Select(programID string) error {
	p, found := find(programID)
	if !found {
		return model.NewProgramUnknownError(programID)
	}
	if !p.IsAvailable {
		return model.NewProgramNotAvailableError(programID)
	}

	s.mu.Lock()
	s.selected = programID
	s.mu.Unlock()

	if err := s.kv.Set(kvstore.KeySelectedProgram, programID); err != nil {
		return model.NewStorageError(err.Error())
	}

	s.logger.Info("program selected", slog.String("program_id", programID))
	return nil
}

// Clear は選択状態を破棄する。
func (s *Store) Clear() error {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()

	if err := s.kv.Delete(kvstore.KeySelectedProgram); err != nil {
		return model.NewStorageError(err.Error())
	}
	return nil
}

// find はカタログからIDでプログラムを探す。
func find(programID string) (model.Program, bool) {
	for _, p := range catalog {
		if p.ID == programID {
			return p, true
		}
	}
	return model.Program{}, false
}
