package pokerclient

import (
	"time"
)

/*
Dispatch 單一事件入口
  - 依照 event type 分流到 merger / countdown / animation
  - 事件依抵達順序套用，不重排、不依序號緩衝
  - 重連後在第一份權威快照抵達前，丟棄所有局部事件
*/
func (ve *viewEngine) Dispatch(event Event) error {
	payload, err := ParseEventPayload(event)
	if err != nil {
		ve.logger.Warn().Str("type", string(event.Type)).Err(err).Msg("dropping malformed event")
		return err
	}

	ve.lock.Lock()
	resuming := ve.resuming
	ve.lock.Unlock()

	if resuming && event.Type != EventType_RoomJoined {
		ve.logger.Debug().Str("type", string(event.Type)).Msg("dropping event while waiting for authoritative snapshot")
		return nil
	}

	switch p := payload.(type) {
	case *RoomJoinedPayload:
		ve.handleRoomJoined(p)
	case *GameStateUpdatePayload:
		ve.handleGameStateUpdate(p)
	case *GameActionBroadcastPayload:
		ve.handleGameActionBroadcast(p)
	case *TurnTimerStartedPayload:
		ve.handleTurnTimerStarted(p)
	case *PlayerReadyChangedPayload:
		ve.handlePlayerReadyChanged(p)
	case *PlayerJoinedPayload:
		ve.handlePlayerJoined(p)
	case *CreditsUpdatedPayload:
		ve.handleCreditsUpdated(p)
	case *ThemeChangedPayload:
		ve.handleThemeChanged(p)
	case *IdleWarningPayload:
		ve.handleIdleWarning(p)
	case *KickedForIdlePayload:
		ve.handleKickedForIdle(p)
	}

	return nil
}

func (ve *viewEngine) handleRoomJoined(payload *RoomJoinedPayload) {
	ve.lock.Lock()
	merged, changed := ve.merger.ApplySnapshot(ve.room, payload.Room)
	ve.room = merged
	wasDegraded := ve.degraded
	ve.degraded = false
	ve.resuming = false
	prevPhase := ve.phase
	if merged != nil {
		// 快照是權威狀態，牌局階段必須跟著快照的 round 對齊
		if merged.Status == RoomStatus_Waiting {
			ve.setPhaseLocked(HandPhase_Idle)
		} else {
			ve.applyRoundPhaseLocked("", merged.CurrentRound())
		}
	}
	phase := ve.phase
	ve.lock.Unlock()

	ve.refreshLayout(merged)
	ve.syncReadyGroup(merged)

	if wasDegraded {
		ve.logger.Info().Msg("authoritative snapshot received, resuming normal merge")
		ve.onDegradedChanged(false)
	}
	if phase != prevPhase {
		ve.onPhaseChanged(phase)
	}
	if changed {
		ve.emitViewUpdated(merged)
	}
}

func (ve *viewEngine) handleGameStateUpdate(payload *GameStateUpdatePayload) {
	ve.lock.Lock()
	prevRound := ""
	if ve.room != nil {
		prevRound = ve.room.CurrentRound()
	}
	prevPhase := ve.phase
	merged, changed := ve.merger.ApplyGameStateUpdate(ve.room, payload)
	ve.room = merged
	if changed && merged != nil {
		ve.applyRoundPhaseLocked(prevRound, merged.CurrentRound())
	}
	phase := ve.phase
	ve.lock.Unlock()

	if changed {
		ve.refreshLayout(merged)
		ve.syncReadyGroup(merged)
		if phase != prevPhase {
			ve.onPhaseChanged(phase)
		}
		ve.emitViewUpdated(merged)
	}
}

func (ve *viewEngine) handleGameActionBroadcast(payload *GameActionBroadcastPayload) {
	switch payload.Type {
	case BroadcastType_GameStartCountdown:
		ve.setPhase(HandPhase_Countdown)

	case BroadcastType_DealerDealingStart:
		// 防止 server 在重連後重播發牌事件
		ve.seq.BeginDealing()
		ve.setPhase(HandPhase_Dealing)

	case BroadcastType_CardDealingToPlayer:
		if _, err := ve.seq.TriggerCardFlight(payload.Seat, payload.CardCount); err != nil {
			ve.logger.Debug().Int("seat", payload.Seat).Err(err).Msg("card flight skipped")
		}

	case BroadcastType_DealerDealingComplete:
		ve.setPhase(HandPhase_Preflop)

	case BroadcastType_PlayerAction:
		ve.applyMerge(func(room *Room) (*Room, bool) {
			return ve.merger.ApplyPlayerAction(room, payload)
		})
		if payload.Amount > 0 && payload.Action != WagerAction_Fold && payload.Action != WagerAction_Check {
			if _, err := ve.seq.TriggerChipFlight(payload.Seat, payload.Amount); err != nil {
				ve.logger.Debug().Int("seat", payload.Seat).Err(err).Msg("chip flight skipped")
			}
		}

	case BroadcastType_PlayerEliminated:
		ve.applyMerge(func(room *Room) (*Room, bool) {
			return ve.merger.ApplyPlayerEliminated(room, payload.Seat)
		})

	case BroadcastType_ShowdownComplete:
		ve.setPhase(HandPhase_Showdown)

	case BroadcastType_GameWinner:
		ve.setPhase(HandPhase_Payout)
		if _, err := ve.seq.TriggerPotAward(payload.Seat, payload.Amount); err != nil {
			ve.logger.Debug().Int("seat", payload.Seat).Err(err).Msg("pot award skipped")
		}

	case BroadcastType_NewGameCountdown:
		ve.setPhase(HandPhase_Countdown)
		if _, err := ve.seq.TriggerFeltRipple(); err != nil {
			ve.logger.Debug().Err(err).Msg("felt ripple skipped")
		}

	default:
		ve.logger.Debug().Str("broadcast", string(payload.Type)).Msg("ignoring unknown broadcast type")
	}
}

/*
handleTurnTimerStarted 只餵 countdown，不動 view model
  - 座位是唯一識別，payload 沒帶座位時用 player id 反查
*/
func (ve *viewEngine) handleTurnTimerStarted(payload *TurnTimerStartedPayload) {
	if payload.Deadline <= 0 {
		ve.logger.Debug().Str("player_id", payload.PlayerID).Msg("dropping turn timer without deadline")
		return
	}

	seat := payload.Seat
	if seat == UnsetValue {
		ve.lock.Lock()
		if ve.room != nil {
			if player := ve.room.FindPlayerByUserID(payload.PlayerID); player != nil {
				seat = player.Seat
			}
		}
		ve.lock.Unlock()
	}

	if seat == UnsetValue {
		ve.logger.Debug().Str("player_id", payload.PlayerID).Msg("dropping turn timer for unknown player")
		return
	}

	ve.cd.Start(seat, time.UnixMilli(payload.Deadline), time.Duration(payload.DurationMs)*time.Millisecond)
}

func (ve *viewEngine) handlePlayerReadyChanged(payload *PlayerReadyChangedPayload) {
	ve.applyMerge(func(room *Room) (*Room, bool) {
		return ve.merger.ApplyReadyChanged(room, payload.Seat, payload.IsReady)
	})
}

func (ve *viewEngine) handlePlayerJoined(payload *PlayerJoinedPayload) {
	ve.applyMerge(func(room *Room) (*Room, bool) {
		return ve.merger.ApplyPlayerJoined(room, payload.Player)
	})
}

func (ve *viewEngine) handleCreditsUpdated(payload *CreditsUpdatedPayload) {
	ve.lock.Lock()
	if ve.options != nil && payload.UserID == ve.options.ViewerID {
		ve.credits = payload.Credits
	}
	ve.lock.Unlock()

	ve.onCreditsUpdated(payload.UserID, payload.Credits)
}

func (ve *viewEngine) handleThemeChanged(payload *ThemeChangedPayload) {
	ve.lock.Lock()
	ve.theme = payload.Theme
	ve.lock.Unlock()

	ve.onThemeChanged(payload.Theme)
}

func (ve *viewEngine) handleIdleWarning(payload *IdleWarningPayload) {
	ve.applyMerge(func(room *Room) (*Room, bool) {
		return ve.merger.ApplyIdleFlag(room, payload.Seat, true)
	})

	ve.onNotice(Notice{
		Level:   "warning",
		Message: "inactive players will be removed from the table soon",
	})
}

// handleKickedForIdle 是終態: 停止渲染房間並回到大廳
func (ve *viewEngine) handleKickedForIdle(payload *KickedForIdlePayload) {
	ve.lock.Lock()
	ve.roomCode = ""
	ve.room = nil
	ve.phase = HandPhase_Idle
	ve.degraded = false
	ve.resuming = false
	ve.lock.Unlock()

	ve.cd.Stop()
	ve.seq.Reset()
	ve.readyGroup.Stop()

	if err := ve.channel.Close(); err != nil {
		ve.logger.Warn().Err(err).Msg("failed to close channel after kick")
	}

	ve.logger.Info().Str("reason", payload.Reason).Msg("kicked from room")
	ve.onRoomExited(payload.Reason)
}

// applyMerge runs a merge step and publishes the view model only when the
// merge reports an observable change.
func (ve *viewEngine) applyMerge(merge func(room *Room) (*Room, bool)) {
	ve.lock.Lock()
	merged, changed := merge(ve.room)
	ve.room = merged
	ve.lock.Unlock()

	if changed {
		ve.refreshLayout(merged)
		ve.syncReadyGroup(merged)
		ve.emitViewUpdated(merged)
	}
}

func (ve *viewEngine) setPhase(phase HandPhase) {
	ve.lock.Lock()
	changed := ve.phase != phase
	ve.phase = phase
	ve.lock.Unlock()

	if changed {
		ve.onPhaseChanged(phase)
	}
}

func (ve *viewEngine) setPhaseLocked(phase HandPhase) {
	ve.phase = phase
}

// applyRoundPhaseLocked maps round changes onto the betting phases. The
// dealing phase is only left via dealer-dealing-complete, not by round
// updates that race ahead of the card flights.
func (ve *viewEngine) applyRoundPhaseLocked(prevRound, round string) {
	if prevRound == round {
		return
	}
	if ve.phase == HandPhase_Dealing {
		return
	}

	switch round {
	case GameRound_Waiting:
		ve.setPhaseLocked(HandPhase_Idle)
	case GameRound_Preflop:
		ve.setPhaseLocked(HandPhase_Preflop)
	case GameRound_Flop:
		ve.setPhaseLocked(HandPhase_Flop)
	case GameRound_Turn:
		ve.setPhaseLocked(HandPhase_Turn)
	case GameRound_River:
		ve.setPhaseLocked(HandPhase_River)
	case GameRound_Showdown:
		ve.setPhaseLocked(HandPhase_Showdown)
	}
}

func (ve *viewEngine) refreshLayout(room *Room) {
	if room == nil {
		return
	}
	ve.seq.SetLayout(ve.viewerSeat(room), room.Capacity)
}

/*
syncReadyGroup 把桌上玩家的 ready 狀態灌進 ready group
  - 全員 ready 時 OnCompleted 會觸發 onAllPlayersReady
  - 只在等待開局階段有意義，開打後停用
*/
func (ve *viewEngine) syncReadyGroup(room *Room) {
	if room == nil || room.Status != RoomStatus_Waiting {
		ve.lock.Lock()
		ve.allReadyNotified = false
		ve.lock.Unlock()
		ve.readyGroup.Stop()
		return
	}

	players := room.SeatedPlayers()
	if len(players) < 2 {
		ve.lock.Lock()
		ve.allReadyNotified = false
		ve.lock.Unlock()
		ve.readyGroup.Stop()
		return
	}

	anyNotReady := false
	for _, player := range players {
		if !player.IsReady {
			anyNotReady = true
			break
		}
	}
	if anyNotReady {
		ve.lock.Lock()
		ve.allReadyNotified = false
		ve.lock.Unlock()
	}

	ve.readyGroup.Stop()
	ve.readyGroup.ResetParticipants()
	for _, player := range players {
		ve.readyGroup.Add(int64(player.Seat), false)
	}
	ve.readyGroup.Start()
	for _, player := range players {
		if player.IsReady {
			ve.readyGroup.Ready(int64(player.Seat))
		}
	}
}

func (ve *viewEngine) emitViewUpdated(room *Room) {
	ve.onViewUpdated(room)
}
