package pokerclient

import (
	"encoding/json"
	"fmt"
)

// EventType is the discriminator of every inbound event on the remote channel.
type EventType string

const (
	EventType_RoomJoined          EventType = "room-joined"
	EventType_GameStateUpdate     EventType = "game-state-update"
	EventType_GameActionBroadcast EventType = "game-action-broadcast"
	EventType_TurnTimerStarted    EventType = "turn-timer-started"
	EventType_PlayerReadyChanged  EventType = "player-ready-changed"
	EventType_PlayerJoined        EventType = "player-joined"
	EventType_CreditsUpdated      EventType = "credits-updated"
	EventType_ThemeChanged        EventType = "theme-changed"
	EventType_IdleWarning         EventType = "idle-warning"
	EventType_KickedForIdle       EventType = "kicked-for-idle"
)

// BroadcastType is the sub-discriminator of game-action-broadcast events.
type BroadcastType string

const (
	BroadcastType_GameStartCountdown    BroadcastType = "game-start-countdown"
	BroadcastType_DealerDealingStart    BroadcastType = "dealer-dealing-start"
	BroadcastType_CardDealingToPlayer   BroadcastType = "card-dealing-to-player"
	BroadcastType_DealerDealingComplete BroadcastType = "dealer-dealing-complete"
	BroadcastType_PlayerAction          BroadcastType = "player-action"
	BroadcastType_PlayerEliminated      BroadcastType = "player-eliminated"
	BroadcastType_GameWinner            BroadcastType = "game-winner"
	BroadcastType_ShowdownComplete      BroadcastType = "showdown-complete"
	BroadcastType_NewGameCountdown      BroadcastType = "new-game-countdown"
)

// Event is the wire envelope for all inbound events.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RoomJoinedPayload struct {
	Room *RoomSnapshot `json:"room"`
}

/*
RoomSnapshot 完整房間快照
  - 玩家欄位使用 PlayerPatch，才能區分「payload 未帶」與「明確清空」
*/
type RoomSnapshot struct {
	ID       string        `json:"id"`
	Code     string        `json:"code"`
	Capacity int           `json:"capacity"`
	BuyIn    int64         `json:"buy_in"`
	Status   string        `json:"status"`
	Players  []PlayerPatch `json:"players"`
	Game     *GameState    `json:"game,omitempty"`
}

/*
GameStateUpdatePayload 局部更新
  - GameState / Players 只帶有異動的欄位
  - 玩家欄位使用 pointer 區分「未帶」與「清空」
*/
type GameStateUpdatePayload struct {
	GameState *GameStatePatch `json:"game_state,omitempty"`
	Players   []PlayerPatch   `json:"players,omitempty"`
}

type GameStatePatch struct {
	Round          *string   `json:"round,omitempty"`
	CommunityCards []string  `json:"community_cards,omitempty"`
	CurrentBet     *int64    `json:"current_bet,omitempty"`
	CurrentSeat    *int      `json:"current_seat,omitempty"`
	DealerSeat     *int      `json:"dealer_seat,omitempty"`
	Pot            *int64    `json:"pot,omitempty"`
	SidePots       []SidePot `json:"side_pots,omitempty"`
}

type PlayerPatch struct {
	Seat       int       `json:"seat"`
	UserID     string    `json:"user_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Chips      *int64    `json:"chips,omitempty"`
	CurrentBet *int64    `json:"current_bet,omitempty"`
	Cards      *[]string `json:"cards,omitempty"`
	IsFolded   *bool     `json:"is_folded,omitempty"`
	IsReady    *bool     `json:"is_ready,omitempty"`
	IsIdle     *bool     `json:"is_idle,omitempty"`
}

func (pp *PlayerPatch) UnmarshalJSON(data []byte) error {
	type rawPlayerPatch PlayerPatch
	raw := rawPlayerPatch{Seat: UnsetValue}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*pp = PlayerPatch(raw)
	return nil
}

type GameActionBroadcastPayload struct {
	Type      BroadcastType `json:"type"`
	PlayerID  string        `json:"player,omitempty"`
	Action    string        `json:"action,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Seat      int           `json:"position"`
	Countdown int           `json:"countdown,omitempty"` // Seconds, countdown 類型事件用
	CardCount int           `json:"card_count,omitempty"` // card-dealing-to-player 發牌張數
}

func (p *GameActionBroadcastPayload) UnmarshalJSON(data []byte) error {
	type rawBroadcast GameActionBroadcastPayload
	raw := rawBroadcast{Seat: UnsetValue}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = GameActionBroadcastPayload(raw)
	return nil
}

type TurnTimerStartedPayload struct {
	PlayerID   string `json:"player_id"`
	Seat       int    `json:"seat"`
	Deadline   int64  `json:"deadline"` // 絕對時間 (Epoch Milliseconds)
	DurationMs int64  `json:"duration"` // 本回合思考時間總長 (Milliseconds)
}

func (p *TurnTimerStartedPayload) UnmarshalJSON(data []byte) error {
	type rawTimerStarted TurnTimerStartedPayload
	raw := rawTimerStarted{Seat: UnsetValue}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = TurnTimerStartedPayload(raw)
	return nil
}

type PlayerReadyChangedPayload struct {
	Seat    int  `json:"seat"`
	IsReady bool `json:"is_ready"`
}

type PlayerJoinedPayload struct {
	Player *RoomPlayer `json:"player"`
}

type CreditsUpdatedPayload struct {
	UserID  string `json:"user_id"`
	Credits int64  `json:"credits"`
}

type ThemeChangedPayload struct {
	Theme string `json:"theme"`
}

type IdleWarningPayload struct {
	Seat        int `json:"seat"`
	SecondsLeft int `json:"seconds_left"`
}

type KickedForIdlePayload struct {
	Reason string `json:"reason"`
}

// ParseEventPayload parses the event payload into the struct matching its type.
func ParseEventPayload(event Event) (interface{}, error) {
	switch event.Type {
	case EventType_RoomJoined:
		var payload RoomJoinedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_GameStateUpdate:
		var payload GameStateUpdatePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_GameActionBroadcast:
		var payload GameActionBroadcastPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_TurnTimerStarted:
		var payload TurnTimerStartedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_PlayerReadyChanged:
		var payload PlayerReadyChangedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_PlayerJoined:
		var payload PlayerJoinedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_CreditsUpdated:
		var payload CreditsUpdatedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_ThemeChanged:
		var payload ThemeChangedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_IdleWarning:
		var payload IdleWarningPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil

	case EventType_KickedForIdle:
		var payload KickedForIdlePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}

	return nil, fmt.Errorf("pokerclient: unknown event type: %s", event.Type)
}
