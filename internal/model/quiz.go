package model

import "time"

// QuestionType は問題の形式を表す。
type QuestionType string

const (
	// QuestionTypeMultipleChoice は選択式問題を示す。
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	// QuestionTypeFillIn は記述式（穴埋め）問題を示す。
	QuestionTypeFillIn QuestionType = "fill_in"
	// QuestionTypeEssay は論述式問題を示す。採点対象外。
	QuestionTypeEssay QuestionType = "essay"
)

// Difficulty は問題の難易度を表す。
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Category は問題カテゴリを表す。
// IconはバックエンドからHTML断片として届くため、表示前にサニタイズが必要。
type Category struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Icon          string `json:"icon"`
	QuestionCount int    `json:"question_count"`
}

// Option は選択式問題の選択肢を表す。
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question はクイズの問題を表す。
type Question struct {
	ID            string       `json:"id"`
	QuestionText  string       `json:"question_text"`
	Options       []Option     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	QuestionType  QuestionType `json:"question_type"`
	TopicID       string       `json:"topic_id"`
	ProgramID     string       `json:"program_id"`
	Difficulty    Difficulty   `json:"difficulty"`
	CreatedAt     time.Time    `json:"created_at,omitzero"`
}

// UserAnswer はユーザーの1問への解答記録を表す。
// AnswerValueには選択肢ID、または記述式の解答文字列が入る。
type UserAnswer struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	QuestionID  string    `json:"question_id"`
	IsCorrect   bool      `json:"is_correct"`
	AnswerValue string    `json:"answer_index"`
	TimeSpent   int       `json:"time_spent"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// QuizResult は1回のクイズセッションの集計結果を表す。
type QuizResult struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	TimeTaken      int       `json:"time_taken"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}
