package app

// Command はアプリケーションのサブコマンドを表す。
type Command string

const (
	// CommandLogin はパスワードサインインを示す。
	CommandLogin Command = "login"
	// CommandRegister はアカウント登録を示す。
	CommandRegister Command = "register"
	// CommandLogout はサインアウトを示す。
	CommandLogout Command = "logout"
	// CommandWhoami は現在のユーザー情報の表示を示す。
	CommandWhoami Command = "whoami"
	// CommandPrograms は学習プログラム一覧の表示を示す。
	CommandPrograms Command = "programs"
	// CommandSelect は学習プログラムの選択を示す。
	CommandSelect Command = "select"
	// CommandCategories はカテゴリ一覧の表示を示す。
	CommandCategories Command = "categories"
	// CommandQuiz はクイズの開始を示す。
	CommandQuiz Command = "quiz"
	// CommandLeaderboard はリーダーボードの表示を示す。
	CommandLeaderboard Command = "leaderboard"
	// CommandAchievements は獲得実績の表示を示す。
	CommandAchievements Command = "achievements"
	// CommandResetPassword はパスワードリセットメールの送信を示す。
	CommandResetPassword Command = "reset-password"
	// CommandUpdatePassword はパスワードの更新を示す。
	CommandUpdatePassword Command = "update-password"
	// CommandHelp は使い方の表示を示す。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空またはサポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandHelp, nil
	}

	switch args[0] {
	case "login":
		return CommandLogin, args[1:]
	case "register":
		return CommandRegister, args[1:]
	case "logout":
		return CommandLogout, args[1:]
	case "whoami":
		return CommandWhoami, args[1:]
	case "programs":
		return CommandPrograms, args[1:]
	case "select":
		return CommandSelect, args[1:]
	case "categories":
		return CommandCategories, args[1:]
	case "quiz":
		return CommandQuiz, args[1:]
	case "leaderboard":
		return CommandLeaderboard, args[1:]
	case "achievements":
		return CommandAchievements, args[1:]
	case "reset-password":
		return CommandResetPassword, args[1:]
	case "update-password":
		return CommandUpdatePassword, args[1:]
	case "help":
		return CommandHelp, args[1:]
	default:
		return CommandHelp, nil
	}
}
