package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/masterie/masterie/internal/model"
	"github.com/masterie/masterie/internal/quiz"
)

// runLogin はパスワードサインインを実行する。
func (a *App) runLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: masterie login <email> <password>")
	}

	if err := a.sessions.SignIn(ctx, args[0], args[1]); err != nil {
		return err
	}

	user := a.sessions.User()
	fmt.Fprintf(a.out, "ようこそ、%sさん！\n", user.Username)
	fmt.Fprintf(a.out, "レベル%d / %d XP / 連続学習 %d日目\n", user.Level, user.XP, user.StreakDays)
	return nil
}

// runRegister はアカウント登録を実行する。
// メール確認が必要な場合は案内を表示して正常終了する。
func (a *App) runRegister(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: masterie register <email> <password> <username>")
	}

	err := a.sessions.SignUp(ctx, args[0], args[1], args[2])
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeConfirmationRequired {
			fmt.Fprintf(a.out, "%s\n%s\n", apiErr.Message, apiErr.Action)
			return nil
		}
		return err
	}

	user := a.sessions.User()
	fmt.Fprintf(a.out, "登録が完了しました。ようこそ、%sさん！\n", user.Username)
	return nil
}

// runLogout はサインアウトを実行する。
func (a *App) runLogout(ctx context.Context) error {
	if err := a.sessions.RefreshUser(ctx); err != nil {
		return err
	}
	if a.sessions.Session() == nil {
		fmt.Fprintln(a.out, "サインインしていません。")
		return nil
	}

	if err := a.sessions.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "サインアウトしました。")
	return nil
}

// runWhoami は現在のユーザー情報を表示する。
func (a *App) runWhoami(ctx context.Context) error {
	user, err := a.requireAuth(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ユーザー名: %s\n", user.Username)
	fmt.Fprintf(a.out, "メール:     %s\n", user.Email)
	fmt.Fprintf(a.out, "レベル:     %d（次のレベルまで %d XP）\n", user.Level, quiz.XPForNextLevel(user.XP)-user.XP)
	fmt.Fprintf(a.out, "XP:         %d\n", user.XP)
	fmt.Fprintf(a.out, "連続学習:   %d日\n", user.StreakDays)
	if selected := a.sessions.SelectedProgram(); selected != "" {
		fmt.Fprintf(a.out, "プログラム: %s\n", selected)
	}

	if user.AvatarURL != "" {
		data, mimeType, _ := a.avatars.FetchAvatar(ctx, user.AvatarURL)
		if data != nil {
			fmt.Fprintf(a.out, "アバター:   %s (%d bytes)\n", mimeType, len(data))
		}
	}
	return nil
}

// runPrograms は学習プログラム一覧を表示する。
func (a *App) runPrograms(ctx context.Context) error {
	programs, err := a.programs.List(ctx)
	if err != nil {
		return err
	}

	selected := a.programs.Selected()
	for _, p := range programs {
		marker := " "
		if p.ID == selected {
			marker = "*"
		}
		status := ""
		if !p.IsAvailable {
			status = "（準備中）"
		}
		fmt.Fprintf(a.out, "%s %s %-20s %s%s\n", marker, p.Icon, p.ID, p.Name, status)
	}
	return nil
}

// runSelect は学習プログラムを選択する。
func (a *App) runSelect(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: masterie select <program-id>")
	}

	if _, err := a.requireAuth(ctx); err != nil {
		return err
	}

	if err := a.programs.Select(args[0]); err != nil {
		return err
	}
	if err := a.sessions.SetSelectedProgram(args[0]); err != nil {
		return err
	}

	p := a.programs.SelectedProgram()
	fmt.Fprintf(a.out, "%s %s を選択しました。\n", p.Icon, p.Name)
	return nil
}

// runCategories はカテゴリ一覧を表示する。
func (a *App) runCategories(ctx context.Context) error {
	if _, err := a.requireAuth(ctx); err != nil {
		return err
	}
	if err := a.requireProgram(); err != nil {
		return err
	}

	categories, err := a.rest.ListCategories(ctx, a.sessions.Session().AccessToken)
	if err != nil {
		return err
	}

	for _, c := range categories {
		// アイコン・説明はHTML断片として届くため平文化して表示する
		icon := a.sanitizer.SanitizeText(c.Icon)
		fmt.Fprintf(a.out, "%s  %s（%d問）\n    %s\n",
			icon, c.Name, c.QuestionCount, a.sanitizer.SanitizeText(c.Description))
	}
	return nil
}

// runQuiz はクイズを開始する。引数でカテゴリIDを指定できる。
func (a *App) runQuiz(ctx context.Context, args []string) error {
	user, err := a.requireAuth(ctx)
	if err != nil {
		return err
	}
	if err := a.requireProgram(); err != nil {
		return err
	}

	categoryID := ""
	if len(args) > 0 {
		categoryID = args[0]
	}

	token := a.sessions.Session().AccessToken
	qs, err := a.quizzes.Start(ctx, token, user.ID, a.programs.Selected(), categoryID, a.cfg.QuizQuestionLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "全%d問のクイズを開始します。\n\n", len(qs.Questions))

	scanner := bufio.NewScanner(a.in)
	for i, question := range qs.Questions {
		fmt.Fprintf(a.out, "問%d: %s\n", i+1, a.sanitizer.SanitizeText(question.QuestionText))
		for j, opt := range question.Options {
			fmt.Fprintf(a.out, "  %d) %s\n", j+1, a.sanitizer.SanitizeText(opt.Text))
		}
		fmt.Fprint(a.out, "> ")

		start := time.Now()
		if !scanner.Scan() {
			fmt.Fprintln(a.out, "\n入力が終了したため、ここまでの解答で確定します。")
			break
		}
		input := strings.TrimSpace(scanner.Text())
		timeSpent := int(time.Since(start).Seconds())

		answer := input
		// 選択式は番号入力を選択肢IDへ変換する
		if question.QuestionType == model.QuestionTypeMultipleChoice {
			if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(question.Options) {
				answer = question.Options[n-1].ID
			}
		}

		correct, graded := a.quizzes.Answer(qs, question, answer, timeSpent)
		switch {
		case !graded:
			fmt.Fprintln(a.out, "（この問題は採点対象外です）")
		case correct:
			fmt.Fprintln(a.out, "正解！")
		default:
			fmt.Fprintln(a.out, "不正解…")
			if question.Explanation != "" {
				fmt.Fprintf(a.out, "解説: %s\n", a.sanitizer.SanitizeText(question.Explanation))
			}
		}
		fmt.Fprintln(a.out)
	}

	summary, err := a.quizzes.Finish(ctx, token, user, qs)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "結果: %d / %d 問正解（+%d XP）\n",
		summary.Result.Score, summary.Result.TotalQuestions, summary.EarnedXP)
	if summary.LeveledUp {
		fmt.Fprintf(a.out, "レベルアップ！ レベル%dになりました。\n", summary.Level)
	}
	for _, ach := range summary.NewAchievements {
		fmt.Fprintf(a.out, "実績解除: %s %s\n",
			a.sanitizer.SanitizeText(ach.Icon), a.sanitizer.SanitizeText(ach.Name))
	}
	return nil
}

// runLeaderboard はリーダーボードの上位20件を表示する。
func (a *App) runLeaderboard(ctx context.Context) error {
	if _, err := a.requireAuth(ctx); err != nil {
		return err
	}

	entries, err := a.rest.ListLeaderboard(ctx, a.sessions.Session().AccessToken, 20)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Fprintf(a.out, "%3d. %-20s Lv%-3d %d XP\n", e.Rank, e.Username, e.Level, e.Score)
	}
	return nil
}

// runAchievements は獲得実績を表示する。
func (a *App) runAchievements(ctx context.Context) error {
	user, err := a.requireAuth(ctx)
	if err != nil {
		return err
	}

	earned, err := a.rest.ListUserAchievements(ctx, a.sessions.Session().AccessToken, user.ID)
	if err != nil {
		return err
	}

	if len(earned) == 0 {
		fmt.Fprintln(a.out, "まだ実績がありません。クイズに挑戦しましょう！")
		return nil
	}

	for _, ua := range earned {
		fmt.Fprintf(a.out, "%s %s — %s（%s）\n",
			a.sanitizer.SanitizeText(ua.Achievement.Icon),
			a.sanitizer.SanitizeText(ua.Achievement.Name),
			a.sanitizer.SanitizeText(ua.Achievement.Description),
			ua.AchievedAt.Format("2006-01-02"),
		)
	}
	return nil
}

// runResetPassword はパスワードリセットメールの送信を依頼する。
func (a *App) runResetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: masterie reset-password <email>")
	}

	if !a.sessions.ResetPassword(ctx, args[0]) {
		return a.sessions.Err()
	}
	fmt.Fprintln(a.out, "パスワードリセットメールを送信しました。")
	return nil
}

// runUpdatePassword はパスワードを更新する。
func (a *App) runUpdatePassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: masterie update-password <new-password>")
	}

	if _, err := a.requireAuth(ctx); err != nil {
		return err
	}

	if !a.sessions.UpdatePassword(ctx, args[0]) {
		return a.sessions.Err()
	}
	fmt.Fprintln(a.out, "パスワードを更新しました。")
	return nil
}

// requireAuth はセッションを復元し、認証済みであることを保証する。
// 未認証の場合はサインインを案内するエラーを返す。
func (a *App) requireAuth(ctx context.Context) (*model.User, error) {
	if err := a.sessions.RefreshUser(ctx); err != nil {
		return nil, err
	}
	user := a.sessions.User()
	if user == nil {
		return nil, model.NewSessionMissingError()
	}
	return user, nil
}

// requireProgram は学習プログラムが選択済みであることを保証する。
func (a *App) requireProgram() error {
	if a.programs.Selected() == "" {
		return fmt.Errorf("学習プログラムが選択されていません。先に masterie select <program-id> を実行してください")
	}
	return nil
}
