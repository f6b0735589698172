package model

type LevelProgress struct {
	Level        int
	XP           int
	LeveledUp    bool
	LevelsGained int
}

type LeaderboardEntry struct {
	UserID string
	Level  int
	XP     int
}

// XPForLevel is the XP needed to advance from level to level+1.
func XPForLevel(level int) int {
	return 100 + (level-1)*25
}
