package quiz

// XPPerCorrectAnswer は正解1問あたりの獲得XP。
const XPPerCorrectAnswer = 10

// LevelForXP は累計XPからレベルを計算する。
// レベルnは(n-1)*100 XPから始まる（0-99: Lv1, 100-199: Lv2, ...）。
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/100 + 1
}

// XPForNextLevel は次のレベルに到達するために必要な累計XPを返す。
func XPForNextLevel(xp int) int {
	return LevelForXP(xp) * 100
}
