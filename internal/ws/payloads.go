package ws

// Envelope wraps every server message.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// server → client
type BalancePayload struct {
	Wallet           string `json:"wallet"`
	Credits          int64  `json:"credits"`
	TotalGamesPlayed int64  `json:"total_games_played"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
