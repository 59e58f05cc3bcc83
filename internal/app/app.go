// Package app はサブコマンドの解析と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/masterie/masterie/internal/backend"
	"github.com/masterie/masterie/internal/config"
	"github.com/masterie/masterie/internal/kvstore"
	"github.com/masterie/masterie/internal/logger"
	"github.com/masterie/masterie/internal/metrics"
	"github.com/masterie/masterie/internal/profile"
	"github.com/masterie/masterie/internal/program"
	"github.com/masterie/masterie/internal/quiz"
	"github.com/masterie/masterie/internal/security"
	"github.com/masterie/masterie/internal/session"
	"github.com/masterie/masterie/internal/streak"
)

// App は全依存関係をワイヤリング済みのアプリケーションを表す。
// outは画面表示、inはクイズ中の解答入力に使う。ログはstderr側に分離される。
type App struct {
	cfg *config.Config
	out io.Writer
	in  io.Reader

	sessions  *session.Store
	programs  *program.Store
	quizzes   *quiz.Service
	rest      *backend.RestClient
	sanitizer security.TextSanitizerService
	avatars   profile.AvatarFetcherService
	gatherer  prometheus.Gatherer
}

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// .envは開発用。存在しなければ環境変数のみで動く
	_ = godotenv.Load()

	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// wire は全依存関係を構築する。
func wire(cfg *config.Config) (*App, error) {
	kv, err := kvstore.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	// メトリクスはアドレスが設定された場合のみ収集する
	var recorder metrics.Recorder = metrics.Nop{}
	var gatherer prometheus.Gatherer
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		recorder = metrics.NewCollector(registry)
		gatherer = registry
	}

	client := backend.NewClient(backend.Config{
		BaseURL:    cfg.BackendURL,
		APIKey:     cfg.BackendKey,
		Timeout:    cfg.HTTPTimeout,
		RatePerSec: cfg.RateLimitPerSec,
		Burst:      cfg.RateLimitBurst,
	}, recorder, slog.Default())

	authClient := backend.NewAuthClient(client, kv)
	rest := backend.NewRestClient(client)

	streakService := streak.NewService(rest, slog.Default())
	sessions := session.NewStore(
		authClient, rest, streakService, kv,
		session.Config{RedirectURL: cfg.RedirectURL},
		slog.Default(),
	)

	ssrfGuard := security.NewSSRFGuard()

	return &App{
		cfg:       cfg,
		out:       os.Stdout,
		in:        os.Stdin,
		sessions:  sessions,
		programs:  program.NewStore(kv, slog.Default()),
		quizzes:   quiz.NewService(rest, slog.Default()),
		rest:      rest,
		sanitizer: security.NewTextSanitizer(),
		avatars:   profile.NewAvatarFetcher(ssrfGuard, cfg.AvatarMaxSize, slog.Default()),
		gatherer:  gatherer,
	}, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応する処理を実行する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, cmdArgs := ParseCommand(args)

	// help は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHelp {
		printUsage(os.Stdout)
		return nil
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	app, err := wire(cfg)
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// メトリクスサーバーはアドレスが設定された場合のみ起動する
	if cfg.MetricsAddr != "" && app.gatherer != nil {
		go func() {
			slog.Info("metrics server starting", slog.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.SetupMetricsRoute(app.gatherer)); err != nil {
				slog.Error("metrics server error", slog.String("error", err.Error()))
			}
		}()
	}

	slog.Info("starting",
		slog.String("command", string(cmd)),
		slog.String("backend_url", cfg.BackendURL),
	)

	return app.run(ctx, cmd, cmdArgs)
}

// run はサブコマンドを対応するハンドラーへ振り分ける。
func (a *App) run(ctx context.Context, cmd Command, args []string) error {
	switch cmd {
	case CommandLogin:
		return a.runLogin(ctx, args)
	case CommandRegister:
		return a.runRegister(ctx, args)
	case CommandLogout:
		return a.runLogout(ctx)
	case CommandWhoami:
		return a.runWhoami(ctx)
	case CommandPrograms:
		return a.runPrograms(ctx)
	case CommandSelect:
		return a.runSelect(ctx, args)
	case CommandCategories:
		return a.runCategories(ctx)
	case CommandQuiz:
		return a.runQuiz(ctx, args)
	case CommandLeaderboard:
		return a.runLeaderboard(ctx)
	case CommandAchievements:
		return a.runAchievements(ctx)
	case CommandResetPassword:
		return a.runResetPassword(ctx, args)
	case CommandUpdatePassword:
		return a.runUpdatePassword(ctx, args)
	default:
		printUsage(a.out)
		return nil
	}
}

// printUsage は使い方を表示する。
func printUsage(w io.Writer) {
	fmt.Fprint(w, `masterie - ゲーミフィケーション学習アプリ

使い方:
  masterie login <email> <password>        サインイン
  masterie register <email> <password> <username>  アカウント登録
  masterie logout                          サインアウト
  masterie whoami                          現在のユーザー情報を表示
  masterie programs                        学習プログラム一覧を表示
  masterie select <program-id>             学習プログラムを選択
  masterie categories                      カテゴリ一覧を表示
  masterie quiz [category-id]              クイズを開始
  masterie leaderboard                     リーダーボードを表示
  masterie achievements                    獲得実績を表示
  masterie reset-password <email>          パスワードリセットメールを送信
  masterie update-password <new-password>  パスワードを更新
  masterie help                            この使い方を表示

環境変数:
  MASTERIE_BACKEND_URL   バックエンドのベースURL（必須）
  MASTERIE_BACKEND_KEY   公開APIキー（必須）
  MASTERIE_STATE_DIR     ローカル状態の保存先（デフォルト: ~/.masterie）
  MASTERIE_METRICS_ADDR  Prometheusメトリクスの待ち受けアドレス（任意）
`)
}
