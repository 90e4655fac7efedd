package pokerclient

import (
	"encoding/json"

	"github.com/thoas/go-funk"
)

type Room struct {
	ID       string        `json:"id"`
	Code     string        `json:"code"`      // 房間邀請碼
	Capacity int           `json:"capacity"`  // 座位數上限
	BuyIn    int64         `json:"buy_in"`    // 入桌籌碼
	Status   string        `json:"status"`    // waiting, playing
	Players  []*RoomPlayer `json:"players"`   // 桌上玩家狀態
	Game     *GameState    `json:"game"`      // 本手狀態 (尚未開局時為 nil)
	UpdateAt int64         `json:"update_at"` // 更新時間 (Milliseconds)
}

type RoomPlayer struct {
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	Seat       int      `json:"seat"` // 座位編號 0 ~ capacity-1
	Chips      int64    `json:"chips"`
	Cards      []string `json:"cards,omitempty"` // 只有觀看者有權限看見時才會出現
	CurrentBet int64    `json:"current_bet"`
	IsFolded   bool     `json:"is_folded"`
	IsReady    bool     `json:"is_ready"`
	IsIdle     bool     `json:"is_idle"`
}

type GameState struct {
	Round          string    `json:"round"` // preflop, flop, turn, river, showdown, waiting
	CommunityCards []string  `json:"community_cards"`
	CurrentBet     int64     `json:"current_bet"`
	CurrentSeat    int       `json:"current_seat"` // 行動中座位編號 (UnsetValue 表示沒有人行動中)
	DealerSeat     int       `json:"dealer_seat"`
	Pot            int64     `json:"pot"`
	SidePots       []SidePot `json:"side_pots,omitempty"`
}

type SidePot struct {
	Amount int64 `json:"amount"`
	Seats  []int `json:"seats"`
}

// Room Getters
func (r Room) GetJSON() (string, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (r Room) FindPlayerBySeat(seat int) *RoomPlayer {
	for _, player := range r.Players {
		if player.Seat == seat {
			return player
		}
	}
	return nil
}

func (r Room) FindPlayerByUserID(userID string) *RoomPlayer {
	for _, player := range r.Players {
		if player.UserID == userID {
			return player
		}
	}
	return nil
}

func (r Room) SeatedPlayers() []*RoomPlayer {
	return funk.Filter(r.Players, func(player *RoomPlayer) bool {
		return player.Seat != UnsetValue
	}).([]*RoomPlayer)
}

func (r Room) ReadyPlayers() []*RoomPlayer {
	return funk.Filter(r.Players, func(player *RoomPlayer) bool {
		return player.IsReady
	}).([]*RoomPlayer)
}

func (r Room) CurrentRound() string {
	if r.Game == nil {
		return GameRound_Waiting
	}
	return r.Game.Round
}

// Clone 產生 Room 的深拷貝，merge 時使用 (copy-on-write)
func (r Room) Clone() *Room {
	cloned := r

	cloned.Players = make([]*RoomPlayer, 0, len(r.Players))
	for _, player := range r.Players {
		p := *player
		p.Cards = cloneCards(player.Cards)
		cloned.Players = append(cloned.Players, &p)
	}

	if r.Game != nil {
		game := *r.Game
		game.CommunityCards = cloneCards(r.Game.CommunityCards)
		if r.Game.SidePots != nil {
			game.SidePots = make([]SidePot, 0, len(r.Game.SidePots))
			for _, sidePot := range r.Game.SidePots {
				sp := sidePot
				sp.Seats = append([]int{}, sidePot.Seats...)
				game.SidePots = append(game.SidePots, sp)
			}
		}
		cloned.Game = &game
	}

	return &cloned
}

func cloneCards(cards []string) []string {
	if cards == nil {
		return nil
	}
	return append([]string{}, cards...)
}

// GameState Getters
func (gs GameState) IsWaiting() bool {
	return gs.Round == GameRound_Waiting
}

func (gs GameState) HasCurrentSeat() bool {
	return gs.CurrentSeat != UnsetValue
}

/*
UnmarshalJSON 解析 GameState 時，缺少的座位欄位預設為 UnsetValue
  - 避免 server 省略欄位時被 zero value 當成座位 0
*/
func (gs *GameState) UnmarshalJSON(data []byte) error {
	type rawGameState GameState
	raw := rawGameState{
		CurrentSeat: UnsetValue,
		DealerSeat:  UnsetValue,
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*gs = GameState(raw)
	return nil
}
