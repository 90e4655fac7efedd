package pokerclient

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeChannel 測試用的 in-memory channel，可以模擬斷線與重連
type fakeChannel struct {
	connected      bool
	closed         bool
	connectErr     error
	sent           []Message
	onEvent        func(event Event)
	onConnected    func()
	onDisconnected func(err error)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		onEvent:        func(Event) {},
		onConnected:    func() {},
		onDisconnected: func(error) {},
	}
}

func (fc *fakeChannel) Connect() error {
	if fc.connectErr != nil {
		return fc.connectErr
	}
	fc.connected = true
	fc.onConnected()
	return nil
}

func (fc *fakeChannel) Close() error {
	fc.connected = false
	fc.closed = true
	return nil
}

func (fc *fakeChannel) Send(msg Message) error {
	if !fc.connected {
		return errors.New("fake channel: not connected")
	}
	fc.sent = append(fc.sent, msg)
	return nil
}

func (fc *fakeChannel) OnEvent(fn func(event Event))      { fc.onEvent = fn }
func (fc *fakeChannel) OnConnected(fn func())             { fc.onConnected = fn }
func (fc *fakeChannel) OnDisconnected(fn func(err error)) { fc.onDisconnected = fn }

func (fc *fakeChannel) emit(event Event)         { fc.onEvent(event) }
func (fc *fakeChannel) dropConnection(err error) { fc.connected = false; fc.onDisconnected(err) }
func (fc *fakeChannel) reconnect()               { fc.connected = true; fc.onConnected() }

func makeEvent(t *testing.T, eventType EventType, payload interface{}) Event {
	t.Helper()
	data, err := json.Marshal(payload)
	assert.Nil(t, err)
	return Event{Type: eventType, Payload: data}
}

func playingSnapshot() *RoomSnapshot {
	return &RoomSnapshot{
		ID:       "room-id",
		Code:     "R123",
		Capacity: 6,
		BuyIn:    1000,
		Status:   RoomStatus_Playing,
		Players: []PlayerPatch{
			{Seat: 0, UserID: "u1", Name: "Alice", Chips: int64Ptr(900)},
			{Seat: 2, UserID: "u2", Name: "Bob", Chips: int64Ptr(800)},
		},
		Game: &GameState{
			Round:       GameRound_Preflop,
			CurrentSeat: 2,
			DealerSeat:  0,
			Pot:         300,
		},
	}
}

func newTestEngine(t *testing.T) (ViewEngine, *fakeChannel) {
	t.Helper()
	fc := newFakeChannel()
	options := NewViewEngineOptions()
	options.ViewerID = "u1"
	engine := NewViewEngine(options, WithChannel(fc))
	return engine, fc
}

func Test_ViewEngine_EnterRoomSendsJoinHandshake(t *testing.T) {
	engine, fc := newTestEngine(t)

	err := engine.EnterRoom("R123")
	assert.Nil(t, err)
	assert.Len(t, fc.sent, 1)
	assert.Equal(t, MessageType_JoinRoom, fc.sent[0].Type)

	var param JoinRoomParam
	assert.Nil(t, json.Unmarshal(fc.sent[0].Payload, &param))
	assert.Equal(t, "R123", param.RoomCode)

	assert.Equal(t, ErrViewEngineAlreadyInRoom, engine.EnterRoom("R456"))
}

func Test_ViewEngine_RequiresChannel(t *testing.T) {
	engine := NewViewEngine(NewViewEngineOptions())
	assert.Equal(t, ErrViewEngineChannelRequired, engine.EnterRoom("R123"))
}

func Test_ViewEngine_ActionsRequireRoom(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.Equal(t, ErrViewEngineNotInRoom, engine.ToggleReady())
	assert.Equal(t, ErrViewEngineNotInRoom, engine.SendGameAction(WagerAction_Call, 100))
	assert.Equal(t, ErrViewEngineNotInRoom, engine.SendMessage("hello"))
	assert.Equal(t, ErrViewEngineNotInRoom, engine.LeaveRoom())
}

func Test_ViewEngine_RoomJoinedBuildsView(t *testing.T) {
	engine, fc := newTestEngine(t)

	updated := 0
	engine.OnViewUpdated(func(room *Room) {
		updated++
	})

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	view := engine.GetView()
	assert.NotNil(t, view)
	assert.Equal(t, "R123", view.Code)
	assert.Len(t, view.Players, 2)
	assert.Equal(t, 1, updated)
}

func Test_ViewEngine_SendGameAction(t *testing.T) {
	engine, fc := newTestEngine(t)
	assert.Nil(t, engine.EnterRoom("R123"))

	assert.Nil(t, engine.SendGameAction(WagerAction_Raise, 200))

	last := fc.sent[len(fc.sent)-1]
	assert.Equal(t, MessageType_GameAction, last.Type)

	var param GameActionParam
	assert.Nil(t, json.Unmarshal(last.Payload, &param))
	assert.Equal(t, WagerAction_Raise, param.Action)
	assert.Equal(t, int64(200), param.Amount)
}

func Test_ViewEngine_DisconnectFreezesView(t *testing.T) {
	engine, fc := newTestEngine(t)

	degradedStates := make([]bool, 0)
	engine.OnDegradedChanged(func(degraded bool) {
		degradedStates = append(degradedStates, degraded)
	})

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))
	frozen := engine.GetView()

	fc.dropConnection(errors.New("connection reset"))
	assert.True(t, engine.IsDegraded())
	assert.Equal(t, []bool{true}, degradedStates)

	// 斷線期間最後狀態保持凍結，不清空
	assert.Same(t, frozen, engine.GetView())
}

func Test_ViewEngine_ReconnectResumeGate(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))
	frozen := engine.GetView()

	fc.dropConnection(errors.New("connection reset"))
	fc.reconnect()

	// 重連會重送 join-room handshake
	assert.Equal(t, MessageType_JoinRoom, fc.sent[len(fc.sent)-1].Type)

	// 權威快照抵達前，局部事件一律丟棄
	flop := GameRound_Flop
	fc.emit(makeEvent(t, EventType_GameStateUpdate, GameStateUpdatePayload{
		GameState: &GameStatePatch{Round: &flop, CommunityCards: []string{"2S", "7H", "9C"}},
	}))
	assert.Same(t, frozen, engine.GetView())
	assert.True(t, engine.IsDegraded())

	// 快照抵達後恢復正常 merge
	snapshot := playingSnapshot()
	snapshot.Game.Round = GameRound_Flop
	snapshot.Game.CommunityCards = []string{"2S", "7H", "9C"}
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: snapshot}))

	assert.False(t, engine.IsDegraded())
	view := engine.GetView()
	assert.NotSame(t, frozen, view)
	assert.Equal(t, GameRound_Flop, view.Game.Round)

	// 恢復後局部事件照常套用
	turn := GameRound_Turn
	fc.emit(makeEvent(t, EventType_GameStateUpdate, GameStateUpdatePayload{
		GameState: &GameStatePatch{Round: &turn, CommunityCards: []string{"2S", "7H", "9C", "JD"}},
	}))
	assert.Equal(t, GameRound_Turn, engine.GetView().Game.Round)
}

func Test_ViewEngine_PhaseFollowsDealing(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	fc.emit(makeEvent(t, EventType_GameActionBroadcast, GameActionBroadcastPayload{
		Type: BroadcastType_DealerDealingStart,
	}))
	assert.Equal(t, HandPhase_Dealing, engine.GetPhase())

	// 發牌期間搶先抵達的 round 更新不能中斷發牌動畫階段
	preflop := GameRound_Preflop
	fc.emit(makeEvent(t, EventType_GameStateUpdate, GameStateUpdatePayload{
		GameState: &GameStatePatch{Round: &preflop, CurrentBet: int64Ptr(20)},
	}))
	assert.Equal(t, HandPhase_Dealing, engine.GetPhase())

	fc.emit(makeEvent(t, EventType_GameActionBroadcast, GameActionBroadcastPayload{
		Type: BroadcastType_DealerDealingComplete,
	}))
	assert.Equal(t, HandPhase_Preflop, engine.GetPhase())

	flop := GameRound_Flop
	fc.emit(makeEvent(t, EventType_GameStateUpdate, GameStateUpdatePayload{
		GameState: &GameStatePatch{Round: &flop, CommunityCards: []string{"2S", "7H", "9C"}},
	}))
	assert.Equal(t, HandPhase_Flop, engine.GetPhase())
}

func Test_ViewEngine_JoinMidHandSyncsPhase(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))

	// 中途進房: 階段必須直接對齊快照的 round
	snapshot := playingSnapshot()
	snapshot.Game.Round = GameRound_Flop
	snapshot.Game.CommunityCards = []string{"2S", "7H", "9C"}
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: snapshot}))

	assert.Equal(t, HandPhase_Flop, engine.GetPhase())
}

func Test_ViewEngine_ReconnectSnapshotResyncsPhase(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))

	snapshot := playingSnapshot()
	snapshot.Game.Round = GameRound_Flop
	snapshot.Game.CommunityCards = []string{"2S", "7H", "9C"}
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: snapshot}))
	assert.Equal(t, HandPhase_Flop, engine.GetPhase())

	fc.dropConnection(errors.New("connection reset"))
	fc.reconnect()

	// 斷線期間牌局前進到 turn，重連後的快照必須把階段一起帶過去
	resumed := playingSnapshot()
	resumed.Game.Round = GameRound_Turn
	resumed.Game.CommunityCards = []string{"2S", "7H", "9C", "JD"}
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: resumed}))
	assert.Equal(t, HandPhase_Turn, engine.GetPhase())

	// 同 round 的局部更新不能讓階段倒退
	turn := GameRound_Turn
	fc.emit(makeEvent(t, EventType_GameStateUpdate, GameStateUpdatePayload{
		GameState: &GameStatePatch{Round: &turn, CurrentBet: int64Ptr(50)},
	}))
	assert.Equal(t, HandPhase_Turn, engine.GetPhase())
}

func Test_ViewEngine_TurnTimerStarted(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	deadline := time.Now().Add(30 * time.Second).UnixMilli()
	fc.emit(makeEvent(t, EventType_TurnTimerStarted, TurnTimerStartedPayload{
		PlayerID:   "u2",
		Seat:       2,
		Deadline:   deadline,
		DurationMs: 30000,
	}))

	state := engine.Countdown().State()
	assert.True(t, state.Active)
	assert.Equal(t, 2, state.Seat)
	assert.Greater(t, engine.Countdown().RemainingSeconds(), 25.0)
}

func Test_ViewEngine_TurnTimerSeatFallbackFromPlayerID(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	fc.emit(Event{
		Type:    EventType_TurnTimerStarted,
		Payload: json.RawMessage(`{"player_id":"u2","deadline":9999999999999,"duration":30000}`),
	})

	assert.Equal(t, 2, engine.Countdown().State().Seat)
}

func Test_ViewEngine_TurnTimerWithoutDeadlineIgnored(t *testing.T) {
	engine, fc := newTestEngine(t)

	expiredCount := 0
	engine.Countdown().OnExpired(func(seat int) {
		expiredCount++
	})

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	// 缺 deadline 的 payload 是 no-op，不能起一個立刻到期的倒數
	fc.emit(Event{
		Type:    EventType_TurnTimerStarted,
		Payload: json.RawMessage(`{"player_id":"u2","seat":2,"duration":30000}`),
	})

	state := engine.Countdown().State()
	assert.False(t, state.Active)
	assert.Equal(t, UnsetValue, state.Seat)

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, expiredCount)
}

func Test_ViewEngine_EnterRoomRetryAfterDialFailure(t *testing.T) {
	engine, fc := newTestEngine(t)

	fc.connectErr = errors.New("dial tcp: connection refused")
	assert.Equal(t, fc.connectErr, engine.EnterRoom("R123"))

	// 撥號失敗不能留下半開的 session，重試必須可行
	fc.connectErr = nil
	assert.Nil(t, engine.EnterRoom("R123"))
	assert.Equal(t, MessageType_JoinRoom, fc.sent[len(fc.sent)-1].Type)
}

func Test_ViewEngine_ActionBroadcastForUnknownSeatIgnored(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))
	before := engine.GetView()

	fc.emit(makeEvent(t, EventType_GameActionBroadcast, GameActionBroadcastPayload{
		Type:   BroadcastType_PlayerAction,
		Action: WagerAction_Raise,
		Amount: 200,
		Seat:   5,
	}))

	assert.Same(t, before, engine.GetView())
}

func Test_ViewEngine_KickedForIdleIsTerminal(t *testing.T) {
	engine, fc := newTestEngine(t)

	exitReason := ""
	engine.OnRoomExited(func(reason string) {
		exitReason = reason
	})

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	fc.emit(makeEvent(t, EventType_KickedForIdle, KickedForIdlePayload{Reason: "idle_timeout"}))

	assert.Equal(t, "idle_timeout", exitReason)
	assert.Nil(t, engine.GetView())
	assert.True(t, fc.closed)
	assert.Equal(t, ErrViewEngineNotInRoom, engine.ToggleReady())
}

func Test_ViewEngine_IdleWarningRaisesNotice(t *testing.T) {
	engine, fc := newTestEngine(t)

	notices := make([]Notice, 0)
	engine.OnNotice(func(notice Notice) {
		notices = append(notices, notice)
	})

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	fc.emit(makeEvent(t, EventType_IdleWarning, IdleWarningPayload{Seat: 0, SecondsLeft: 30}))

	assert.Len(t, notices, 1)
	assert.Equal(t, "warning", notices[0].Level)
	assert.True(t, engine.GetView().FindPlayerBySeat(0).IsIdle)
}

func Test_ViewEngine_ThemeAndCredits(t *testing.T) {
	engine, fc := newTestEngine(t)

	theme := ""
	engine.OnThemeChanged(func(next string) {
		theme = next
	})
	var credits int64
	engine.OnCreditsUpdated(func(userID string, amount int64) {
		credits = amount
	})

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_ThemeChanged, ThemeChangedPayload{Theme: "midnight"}))
	fc.emit(makeEvent(t, EventType_CreditsUpdated, CreditsUpdatedPayload{UserID: "u1", Credits: 5000}))

	assert.Equal(t, "midnight", theme)
	assert.Equal(t, int64(5000), credits)
}

func Test_ViewEngine_AllPlayersReady(t *testing.T) {
	engine, fc := newTestEngine(t)

	readyCh := make(chan struct{}, 1)
	engine.OnAllPlayersReady(func() {
		readyCh <- struct{}{}
	})

	assert.Nil(t, engine.EnterRoom("R123"))

	ready := true
	snapshot := &RoomSnapshot{
		ID:       "room-id",
		Code:     "R123",
		Capacity: 6,
		BuyIn:    1000,
		Status:   RoomStatus_Waiting,
		Players: []PlayerPatch{
			{Seat: 0, UserID: "u1", Name: "Alice", Chips: int64Ptr(1000), IsReady: &ready},
			{Seat: 2, UserID: "u2", Name: "Bob", Chips: int64Ptr(1000), IsReady: &ready},
		},
	}
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: snapshot}))

	select {
	case <-readyCh:
	case <-time.After(time.Second):
		t.Fatal("expected all-players-ready callback")
	}
}

func Test_ViewEngine_LeaveRoomClearsSession(t *testing.T) {
	engine, fc := newTestEngine(t)

	assert.Nil(t, engine.EnterRoom("R123"))
	fc.emit(makeEvent(t, EventType_RoomJoined, RoomJoinedPayload{Room: playingSnapshot()}))

	assert.Nil(t, engine.LeaveRoom())
	assert.Nil(t, engine.GetView())
	assert.True(t, fc.closed)
	assert.Equal(t, HandPhase_Idle, engine.GetPhase())
}
