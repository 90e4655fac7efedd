package pokerclient

import (
	"time"

	"github.com/rs/zerolog"
)

/*
SnapshotMerger 負責把遠端事件合併進本地 view model
  - ApplySnapshot: 完整快照整份替換 (保留 payload 未帶的 ready / cards)
  - ApplyGameStateUpdate: 局部更新，只動有帶到的欄位與座位
  - 其餘 Apply*: 單一座位/欄位的窄更新

每個 Apply 都回傳 (*Room, bool)。沒有可見異動時回傳「原本的指標」且
changed = false，呈現層靠 reference identity 決定是否重繪，這是合約不是優化。
*/
type SnapshotMerger struct {
	logger zerolog.Logger
}

func NewSnapshotMerger(logger zerolog.Logger) *SnapshotMerger {
	return &SnapshotMerger{
		logger: logger.With().Str("component", "merger").Logger(),
	}
}

func (m *SnapshotMerger) ApplySnapshot(prev *Room, snapshot *RoomSnapshot) (*Room, bool) {
	if snapshot == nil {
		m.logger.Debug().Msg("dropping empty room snapshot")
		return prev, false
	}

	merged := &Room{
		ID:       snapshot.ID,
		Code:     snapshot.Code,
		Capacity: snapshot.Capacity,
		BuyIn:    snapshot.BuyIn,
		Status:   snapshot.Status,
		Players:  make([]*RoomPlayer, 0, len(snapshot.Players)),
	}

	if snapshot.Game != nil {
		game := *snapshot.Game
		merged.Game = &game
	}

	// 狀態回到 waiting 表示一手結束，手牌必須清掉
	handBoundary := snapshot.Status == RoomStatus_Waiting

	for _, patch := range snapshot.Players {
		player := &RoomPlayer{
			UserID: patch.UserID,
			Name:   patch.Name,
			Seat:   patch.Seat,
		}

		var previous *RoomPlayer
		if prev != nil {
			previous = prev.FindPlayerBySeat(patch.Seat)
			if previous != nil && patch.UserID != "" && previous.UserID != patch.UserID {
				// 同座位換人，不能沿用舊狀態
				previous = nil
			}
		}
		applyPlayerPatch(player, previous, patch)

		if handBoundary {
			player.Cards = nil
		}
		merged.Players = append(merged.Players, player)
	}

	if prev != nil && roomEqual(prev, merged) {
		return prev, false
	}

	merged.UpdateAt = time.Now().UnixMilli()
	return merged, true
}

func (m *SnapshotMerger) ApplyGameStateUpdate(prev *Room, patch *GameStateUpdatePayload) (*Room, bool) {
	if prev == nil {
		m.logger.Debug().Msg("dropping game state update without a room")
		return prev, false
	}
	if patch == nil {
		return prev, false
	}

	merged := prev.Clone()

	if patch.GameState != nil {
		m.applyGameStatePatch(merged, patch.GameState)
	}

	for _, playerPatch := range patch.Players {
		player := merged.FindPlayerBySeat(playerPatch.Seat)
		if player == nil {
			// 玩家已離桌的過期事件
			m.logger.Debug().Int("seat", playerPatch.Seat).Msg("dropping player patch for unknown seat")
			continue
		}
		applyPlayerPatch(player, player, playerPatch)
	}

	if roomEqual(prev, merged) {
		return prev, false
	}

	merged.UpdateAt = time.Now().UnixMilli()
	return merged, true
}

func (m *SnapshotMerger) applyGameStatePatch(room *Room, patch *GameStatePatch) {
	if room.Game == nil {
		room.Game = &GameState{
			Round:       GameRound_Waiting,
			CurrentSeat: UnsetValue,
			DealerSeat:  UnsetValue,
		}
	}
	game := room.Game
	prevRound := game.Round

	if patch.Round != nil {
		game.Round = *patch.Round
	}

	switch {
	case game.Round == GameRound_Waiting && prevRound != GameRound_Waiting:
		// 一手結束: 清空公牌、手牌與下注
		game.CommunityCards = nil
		game.CurrentSeat = UnsetValue
		room.Status = RoomStatus_Waiting
		for _, player := range room.Players {
			player.Cards = nil
			player.CurrentBet = 0
			player.IsFolded = false
		}
	case game.Round == GameRound_Preflop && prevRound != GameRound_Preflop:
		// 新的一手開始
		game.CommunityCards = nil
		room.Status = RoomStatus_Playing
	}

	if patch.CommunityCards != nil {
		// 同一手內公牌只增不減，較短的列表視為過期事件
		if len(patch.CommunityCards) >= len(game.CommunityCards) {
			game.CommunityCards = append([]string{}, patch.CommunityCards...)
		} else {
			m.logger.Debug().
				Int("incoming", len(patch.CommunityCards)).
				Int("current", len(game.CommunityCards)).
				Msg("dropping stale community cards")
		}
	}

	if patch.CurrentBet != nil {
		game.CurrentBet = *patch.CurrentBet
	}
	if patch.CurrentSeat != nil {
		game.CurrentSeat = *patch.CurrentSeat
	}
	if patch.DealerSeat != nil {
		game.DealerSeat = *patch.DealerSeat
	}
	if patch.Pot != nil {
		game.Pot = *patch.Pot
	}
	if patch.SidePots != nil {
		game.SidePots = patch.SidePots
	}
}

/*
ApplyPlayerAction 處理單一座位的細粒度動作廣播
  - 只動該座位的 bet / folded 與彩池，其他座位完全不變
  - 籌碼量以後續的 game-state-update 為準，這裡不動
*/
func (m *SnapshotMerger) ApplyPlayerAction(prev *Room, broadcast *GameActionBroadcastPayload) (*Room, bool) {
	if prev == nil {
		return prev, false
	}

	if prev.FindPlayerBySeat(broadcast.Seat) == nil {
		m.logger.Debug().
			Int("seat", broadcast.Seat).
			Str("action", broadcast.Action).
			Msg("dropping action broadcast for unknown seat")
		return prev, false
	}

	merged := prev.Clone()
	player := merged.FindPlayerBySeat(broadcast.Seat)

	switch broadcast.Action {
	case WagerAction_Fold:
		player.IsFolded = true
	case WagerAction_Bet, WagerAction_Raise, WagerAction_Call, WagerAction_AllIn:
		player.CurrentBet += broadcast.Amount
		if merged.Game != nil {
			merged.Game.Pot += broadcast.Amount
			if player.CurrentBet > merged.Game.CurrentBet {
				merged.Game.CurrentBet = player.CurrentBet
			}
		}
	case WagerAction_Check:
		// 沒有可見異動
	default:
		m.logger.Debug().Str("action", broadcast.Action).Msg("ignoring unknown wager action")
	}

	if roomEqual(prev, merged) {
		return prev, false
	}

	merged.UpdateAt = time.Now().UnixMilli()
	return merged, true
}

func (m *SnapshotMerger) ApplyPlayerEliminated(prev *Room, seat int) (*Room, bool) {
	return m.applyPlayerFlag(prev, seat, func(player *RoomPlayer) {
		player.IsFolded = true
	})
}

func (m *SnapshotMerger) ApplyReadyChanged(prev *Room, seat int, isReady bool) (*Room, bool) {
	return m.applyPlayerFlag(prev, seat, func(player *RoomPlayer) {
		player.IsReady = isReady
	})
}

func (m *SnapshotMerger) ApplyIdleFlag(prev *Room, seat int, isIdle bool) (*Room, bool) {
	return m.applyPlayerFlag(prev, seat, func(player *RoomPlayer) {
		player.IsIdle = isIdle
	})
}

func (m *SnapshotMerger) ApplyPlayerJoined(prev *Room, joined *RoomPlayer) (*Room, bool) {
	if prev == nil || joined == nil {
		return prev, false
	}
	if joined.Seat == UnsetValue {
		m.logger.Debug().Str("user_id", joined.UserID).Msg("dropping joined player without seat")
		return prev, false
	}

	merged := prev.Clone()
	if existing := merged.FindPlayerBySeat(joined.Seat); existing != nil {
		*existing = *joined
	} else {
		player := *joined
		merged.Players = append(merged.Players, &player)
	}

	if roomEqual(prev, merged) {
		return prev, false
	}

	merged.UpdateAt = time.Now().UnixMilli()
	return merged, true
}

func (m *SnapshotMerger) applyPlayerFlag(prev *Room, seat int, update func(player *RoomPlayer)) (*Room, bool) {
	if prev == nil {
		return prev, false
	}
	if prev.FindPlayerBySeat(seat) == nil {
		m.logger.Debug().Int("seat", seat).Msg("dropping update for unknown seat")
		return prev, false
	}

	merged := prev.Clone()
	update(merged.FindPlayerBySeat(seat))

	if roomEqual(prev, merged) {
		return prev, false
	}

	merged.UpdateAt = time.Now().UnixMilli()
	return merged, true
}

// applyPlayerPatch 把 patch 有帶到的欄位套用到 player，nil 欄位沿用 previous
func applyPlayerPatch(player *RoomPlayer, previous *RoomPlayer, patch PlayerPatch) {
	if patch.UserID != "" {
		player.UserID = patch.UserID
	} else if previous != nil {
		player.UserID = previous.UserID
	}
	if patch.Name != "" {
		player.Name = patch.Name
	} else if previous != nil {
		player.Name = previous.Name
	}

	if patch.Chips != nil {
		player.Chips = *patch.Chips
	} else if previous != nil {
		player.Chips = previous.Chips
	}
	if patch.CurrentBet != nil {
		player.CurrentBet = *patch.CurrentBet
	} else if previous != nil {
		player.CurrentBet = previous.CurrentBet
	}
	if patch.Cards != nil {
		player.Cards = cloneCards(*patch.Cards)
	} else if previous != nil {
		player.Cards = cloneCards(previous.Cards)
	}
	if patch.IsFolded != nil {
		player.IsFolded = *patch.IsFolded
	} else if previous != nil {
		player.IsFolded = previous.IsFolded
	}
	if patch.IsReady != nil {
		player.IsReady = *patch.IsReady
	} else if previous != nil {
		player.IsReady = previous.IsReady
	}
	if patch.IsIdle != nil {
		player.IsIdle = *patch.IsIdle
	} else if previous != nil {
		player.IsIdle = previous.IsIdle
	}
}

// Equality helpers: UpdateAt 不列入比較，只比玩家可見欄位
func roomEqual(a, b *Room) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Code != b.Code || a.Capacity != b.Capacity ||
		a.BuyIn != b.BuyIn || a.Status != b.Status {
		return false
	}
	if !gameStateEqual(a.Game, b.Game) {
		return false
	}
	if len(a.Players) != len(b.Players) {
		return false
	}
	for i := range a.Players {
		if !playerEqual(a.Players[i], b.Players[i]) {
			return false
		}
	}
	return true
}

func playerEqual(a, b *RoomPlayer) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID &&
		a.Name == b.Name &&
		a.Seat == b.Seat &&
		a.Chips == b.Chips &&
		a.CurrentBet == b.CurrentBet &&
		a.IsFolded == b.IsFolded &&
		a.IsReady == b.IsReady &&
		a.IsIdle == b.IsIdle &&
		cardsEqual(a.Cards, b.Cards)
}

func gameStateEqual(a, b *GameState) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Round != b.Round || a.CurrentBet != b.CurrentBet ||
		a.CurrentSeat != b.CurrentSeat || a.DealerSeat != b.DealerSeat ||
		a.Pot != b.Pot {
		return false
	}
	if !cardsEqual(a.CommunityCards, b.CommunityCards) {
		return false
	}
	if len(a.SidePots) != len(b.SidePots) {
		return false
	}
	for i := range a.SidePots {
		if a.SidePots[i].Amount != b.SidePots[i].Amount {
			return false
		}
		if len(a.SidePots[i].Seats) != len(b.SidePots[i].Seats) {
			return false
		}
		for j := range a.SidePots[i].Seats {
			if a.SidePots[i].Seats[j] != b.SidePots[i].Seats[j] {
				return false
			}
		}
	}
	return true
}

func cardsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
