package pokerclient

import (
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/weedbox/syncsaga"

	"github.com/weedbox/pokerclient/animation"
	"github.com/weedbox/pokerclient/countdown"
	"github.com/weedbox/pokerclient/seatlayout"
)

var (
	ErrViewEngineChannelRequired = errors.New("pokerclient: channel is required")
	ErrViewEngineNotInRoom       = errors.New("pokerclient: not in a room")
	ErrViewEngineAlreadyInRoom   = errors.New("pokerclient: already in a room")
)

// HandPhase is the animation lifecycle of a single hand. Transitions are
// driven exclusively by inbound events, never by local timers guessing game
// progress.
type HandPhase string

const (
	HandPhase_Idle      HandPhase = "idle"
	HandPhase_Countdown HandPhase = "countdown"
	HandPhase_Dealing   HandPhase = "dealing"
	HandPhase_Preflop   HandPhase = "preflop"
	HandPhase_Flop      HandPhase = "flop"
	HandPhase_Turn      HandPhase = "turn"
	HandPhase_River     HandPhase = "river"
	HandPhase_Showdown  HandPhase = "showdown"
	HandPhase_Payout    HandPhase = "payout"
)

// Notice is a transient, non-fatal message for the presentation layer.
type Notice struct {
	Level   string `json:"level"` // info, warning
	Message string `json:"message"`
}

type ViewEngineOpt func(*viewEngine)

type ViewEngine interface {
	// Events
	OnViewUpdated(fn func(room *Room))                        // view model 更新事件監聽器
	OnPhaseChanged(fn func(phase HandPhase))                  // 牌局動畫階段監聽器
	OnDegradedChanged(fn func(degraded bool))                 // 連線降級狀態監聽器
	OnRoomExited(fn func(reason string))                      // 強制離房監聽器
	OnNotice(fn func(notice Notice))                          // 提示訊息監聽器
	OnThemeChanged(fn func(theme string))                     // 桌布主題監聽器
	OnCreditsUpdated(fn func(userID string, credits int64))   // 錢包餘額監聽器
	OnAllPlayersReady(fn func())                              // 全員準備完成監聽器

	// Lifecycle
	EnterRoom(roomCode string) error
	LeaveRoom() error

	// View Access
	GetView() *Room
	GetPhase() HandPhase
	IsDegraded() bool
	Countdown() *countdown.Timer
	Animations() *animation.Sequencer

	// Inbound
	Dispatch(event Event) error

	// Player Actions (fire-and-forget)
	ToggleReady() error
	SendGameAction(action string, amount int64) error
	SendMessage(message string) error
}

type ViewEngineOptions struct {
	ViewerID string
}

func NewViewEngineOptions() *ViewEngineOptions {
	return &ViewEngineOptions{}
}

type viewEngine struct {
	lock    sync.Mutex
	options *ViewEngineOptions
	logger  zerolog.Logger
	merger  *SnapshotMerger
	cd      *countdown.Timer
	seq     *animation.Sequencer
	channel Channel
	clock   clockwork.Clock

	room             *Room
	phase            HandPhase
	roomCode         string
	theme            string
	credits          int64
	degraded         bool
	resuming         bool
	allReadyNotified bool
	readyGroup       *syncsaga.ReadyGroup

	onViewUpdated     func(room *Room)
	onPhaseChanged    func(phase HandPhase)
	onDegradedChanged func(degraded bool)
	onRoomExited      func(reason string)
	onNotice          func(notice Notice)
	onThemeChanged    func(theme string)
	onCreditsUpdated  func(userID string, credits int64)
	onAllPlayersReady func()
}

func NewViewEngine(options *ViewEngineOptions, opts ...ViewEngineOpt) ViewEngine {
	ve := &viewEngine{
		options:           options,
		logger:            zerolog.Nop(),
		clock:             clockwork.NewRealClock(),
		phase:             HandPhase_Idle,
		readyGroup:        syncsaga.NewReadyGroup(),
		onViewUpdated:     func(*Room) {},
		onPhaseChanged:    func(HandPhase) {},
		onDegradedChanged: func(bool) {},
		onRoomExited:      func(string) {},
		onNotice:          func(Notice) {},
		onThemeChanged:    func(string) {},
		onCreditsUpdated:  func(string, int64) {},
		onAllPlayersReady: func() {},
	}

	for _, opt := range opts {
		opt(ve)
	}

	ve.merger = NewSnapshotMerger(ve.logger)
	ve.cd = countdown.NewTimer(
		countdown.WithClock(ve.clock),
		countdown.WithLogger(ve.logger),
	)
	ve.seq = animation.NewSequencer(animation.WithLogger(ve.logger))

	ve.readyGroup.OnCompleted(func(rg *syncsaga.ReadyGroup) {
		ve.handleAllPlayersReady()
	})

	return ve
}

func WithChannel(ch Channel) ViewEngineOpt {
	return func(ve *viewEngine) {
		ve.channel = ch
	}
}

func WithLogger(logger zerolog.Logger) ViewEngineOpt {
	return func(ve *viewEngine) {
		ve.logger = logger.With().Str("component", "view_engine").Logger()
	}
}

func WithClock(clock clockwork.Clock) ViewEngineOpt {
	return func(ve *viewEngine) {
		ve.clock = clock
	}
}

func (ve *viewEngine) OnViewUpdated(fn func(room *Room)) {
	ve.onViewUpdated = fn
}

func (ve *viewEngine) OnPhaseChanged(fn func(phase HandPhase)) {
	ve.onPhaseChanged = fn
}

func (ve *viewEngine) OnDegradedChanged(fn func(degraded bool)) {
	ve.onDegradedChanged = fn
}

func (ve *viewEngine) OnRoomExited(fn func(reason string)) {
	ve.onRoomExited = fn
}

func (ve *viewEngine) OnNotice(fn func(notice Notice)) {
	ve.onNotice = fn
}

func (ve *viewEngine) OnThemeChanged(fn func(theme string)) {
	ve.onThemeChanged = fn
}

func (ve *viewEngine) OnCreditsUpdated(fn func(userID string, credits int64)) {
	ve.onCreditsUpdated = fn
}

func (ve *viewEngine) OnAllPlayersReady(fn func()) {
	ve.onAllPlayersReady = fn
}

func (ve *viewEngine) GetView() *Room {
	ve.lock.Lock()
	defer ve.lock.Unlock()
	return ve.room
}

func (ve *viewEngine) GetPhase() HandPhase {
	ve.lock.Lock()
	defer ve.lock.Unlock()
	return ve.phase
}

func (ve *viewEngine) IsDegraded() bool {
	ve.lock.Lock()
	defer ve.lock.Unlock()
	return ve.degraded
}

func (ve *viewEngine) Countdown() *countdown.Timer {
	return ve.cd
}

func (ve *viewEngine) Animations() *animation.Sequencer {
	return ve.seq
}

/*
EnterRoom 進房
  - 連上遠端 channel 後送出 join-room handshake
  - 斷線重連時 channel 會重新觸發 connected，handshake 因此自動重送
*/
func (ve *viewEngine) EnterRoom(roomCode string) error {
	if ve.channel == nil {
		return ErrViewEngineChannelRequired
	}

	ve.lock.Lock()
	if ve.roomCode != "" {
		ve.lock.Unlock()
		return ErrViewEngineAlreadyInRoom
	}
	ve.roomCode = roomCode
	ve.lock.Unlock()

	ve.channel.OnEvent(func(event Event) {
		if err := ve.Dispatch(event); err != nil {
			ve.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to dispatch event")
		}
	})
	ve.channel.OnConnected(func() {
		ve.handleConnected()
	})
	ve.channel.OnDisconnected(func(err error) {
		ve.handleDisconnected(err)
	})

	if err := ve.channel.Connect(); err != nil {
		ve.lock.Lock()
		ve.roomCode = ""
		ve.lock.Unlock()
		return err
	}
	return nil
}

func (ve *viewEngine) LeaveRoom() error {
	ve.lock.Lock()
	if ve.roomCode == "" {
		ve.lock.Unlock()
		return ErrViewEngineNotInRoom
	}
	ve.roomCode = ""
	ve.room = nil
	ve.phase = HandPhase_Idle
	ve.degraded = false
	ve.resuming = false
	ve.lock.Unlock()

	ve.cd.Stop()
	ve.seq.Reset()
	ve.readyGroup.Stop()

	return ve.channel.Close()
}

func (ve *viewEngine) ToggleReady() error {
	roomCode, err := ve.currentRoomCode()
	if err != nil {
		return err
	}

	msg, err := NewMessage(MessageType_ToggleReady, ToggleReadyParam{RoomCode: roomCode})
	if err != nil {
		return err
	}
	return ve.channel.Send(msg)
}

func (ve *viewEngine) SendGameAction(action string, amount int64) error {
	roomCode, err := ve.currentRoomCode()
	if err != nil {
		return err
	}

	msg, err := NewMessage(MessageType_GameAction, GameActionParam{
		RoomCode: roomCode,
		Action:   action,
		Amount:   amount,
	})
	if err != nil {
		return err
	}
	return ve.channel.Send(msg)
}

func (ve *viewEngine) SendMessage(message string) error {
	roomCode, err := ve.currentRoomCode()
	if err != nil {
		return err
	}

	msg, err := NewMessage(MessageType_SendMessage, SendMessageParam{
		RoomCode: roomCode,
		Message:  message,
	})
	if err != nil {
		return err
	}
	return ve.channel.Send(msg)
}

func (ve *viewEngine) currentRoomCode() (string, error) {
	ve.lock.Lock()
	defer ve.lock.Unlock()
	if ve.roomCode == "" {
		return "", ErrViewEngineNotInRoom
	}
	return ve.roomCode, nil
}

// viewerSeat resolves the viewer's seat in the current room, UnsetValue for
// an unseated observer.
func (ve *viewEngine) viewerSeat(room *Room) int {
	if room == nil || ve.options == nil || ve.options.ViewerID == "" {
		return UnsetValue
	}
	if player := room.FindPlayerByUserID(ve.options.ViewerID); player != nil {
		return player.Seat
	}
	return UnsetValue
}

// ProjectSeat maps a seat of the current room into the viewer-relative layout.
func (ve *viewEngine) ProjectSeat(seat int) (seatlayout.Point, error) {
	ve.lock.Lock()
	room := ve.room
	ve.lock.Unlock()

	if room == nil {
		return seatlayout.Point{}, ErrViewEngineNotInRoom
	}
	return seatlayout.Project(seat, ve.viewerSeat(room), room.Capacity)
}

func (ve *viewEngine) handleConnected() {
	ve.lock.Lock()
	roomCode := ve.roomCode
	wasDegraded := ve.degraded
	if wasDegraded {
		// 重連後等第一份快照，期間丟棄所有局部事件
		ve.resuming = true
	}
	ve.lock.Unlock()

	if roomCode == "" {
		return
	}

	ve.logger.Info().Str("room_code", roomCode).Bool("rejoin", wasDegraded).Msg("channel connected, sending join handshake")

	msg, err := NewMessage(MessageType_JoinRoom, JoinRoomParam{RoomCode: roomCode})
	if err != nil {
		ve.logger.Error().Err(err).Msg("failed to build join handshake")
		return
	}
	if err := ve.channel.Send(msg); err != nil {
		ve.logger.Error().Err(err).Msg("failed to send join handshake")
	}
}

func (ve *viewEngine) handleDisconnected(err error) {
	ve.lock.Lock()
	if ve.degraded {
		ve.lock.Unlock()
		return
	}
	// 凍結最後狀態，只標記 degraded，不清空 view model
	ve.degraded = true
	ve.lock.Unlock()

	ve.logger.Warn().Err(err).Msg("channel disconnected, view degraded")
	ve.onDegradedChanged(true)
}

func (ve *viewEngine) handleAllPlayersReady() {
	ve.lock.Lock()
	if ve.allReadyNotified {
		ve.lock.Unlock()
		return
	}
	ve.allReadyNotified = true
	ve.lock.Unlock()

	ve.onAllPlayersReady()
}
