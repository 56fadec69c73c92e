package main

// Server -> spectator message types. Spectators never send commands.
const (
	MsgWelcome = "welcome" // JSON, BattleInfo
	MsgEvent   = "event"   // binary msgpack Event
	MsgEnd     = "end"     // JSON, BattleInfo with final status
)

// Envelope wraps all JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// BattleInfo describes a live battle
type BattleInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Step    int    `json:"step"`
	Steps   int    `json:"steps"` // scripted step count
	Viewers int    `json:"viewers"`
}

// ErrorMsg carries an error for the spectator
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// TokenRequest asks for a spectator token
type TokenRequest struct {
	Passphrase string `json:"passphrase"`
}

// TokenResponse carries a spectator token and where to use it
type TokenResponse struct {
	Token string `json:"token"`
	WSURL string `json:"ws"`
}

// StartResponse is returned when a battle is launched
type StartResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
