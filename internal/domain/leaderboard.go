package domain

// GameType identifies a mini-game or the combined board.
type GameType string

const (
	GameCyberDefense GameType = "cyber-defense"
	GamePopPop       GameType = "pop-pop"
	GameGlobal       GameType = "global"
)

// Playable reports whether scores can be submitted for the game type.
func (g GameType) Playable() bool {
	return g == GameCyberDefense || g == GamePopPop
}

// Valid reports whether g names a known board.
func (g GameType) Valid() bool {
	return g.Playable() || g == GameGlobal
}

// Player is a wallet that has submitted at least one score.
// Corresponds to players table in PostgreSQL.
type Player struct {
	ID            int64
	WalletAddress string
	DisplayName   string
	CreatedAt     int64 // ms
}

// GameSession is one submitted score.
// Corresponds to game_sessions table in PostgreSQL.
type GameSession struct {
	ID            int64
	PlayerID      int64
	WalletAddress string
	DisplayName   string
	GameType      GameType
	Score         int64
	CreatedAt     int64 // ms
}

// LeaderboardEntry is one ranked row of a board.
type LeaderboardEntry struct {
	Rank          int      `json:"rank"`
	WalletAddress string   `json:"walletAddress"`
	Score         int64    `json:"score"`
	GamesPlayed   int      `json:"gamesPlayed"`
	GameType      GameType `json:"gameType"`
	DisplayName   string   `json:"displayName"`
}

// LeaderboardData groups all boards.
type LeaderboardData struct {
	CyberDefense []LeaderboardEntry `json:"cyberDefense"`
	PopPop       []LeaderboardEntry `json:"popPop"`
	Global       []LeaderboardEntry `json:"global"`
}
