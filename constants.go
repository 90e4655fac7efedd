package pokerclient

const (
	// General
	UnsetValue = -1

	// RoomStatus
	RoomStatus_Waiting = "waiting"
	RoomStatus_Playing = "playing"

	// Round
	GameRound_Waiting  = "waiting"
	GameRound_Preflop  = "preflop"
	GameRound_Flop     = "flop"
	GameRound_Turn     = "turn"
	GameRound_River    = "river"
	GameRound_Showdown = "showdown"

	// Wager Action
	WagerAction_Fold  = "fold"
	WagerAction_Check = "check"
	WagerAction_Call  = "call"
	WagerAction_AllIn = "allin"
	WagerAction_Bet   = "bet"
	WagerAction_Raise = "raise"
)
