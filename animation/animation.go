package animation

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoas/go-funk"
	"github.com/weedbox/timebank"

	"github.com/weedbox/pokerclient/seatlayout"
)

var (
	ErrUnknownKind         = errors.New("animation: unknown event kind")
	ErrAnchorUnresolved    = errors.New("animation: anchor could not be resolved")
	ErrLayoutNotConfigured = errors.New("animation: table layout not configured")
)

type Kind string

const (
	Kind_CardFlight Kind = "card_flight"
	Kind_ChipFlight Kind = "chip_flight"
	Kind_FeltRipple Kind = "felt_ripple"
	Kind_CardBurn   Kind = "card_burn"
)

const (
	cardFlightLifetime = 800 * time.Millisecond
	feltRippleLifetime = 1500 * time.Millisecond
	cardBurnLifetime   = 600 * time.Millisecond

	// chip flights normally end via CompleteChipFlight; the failsafe catches
	// presentation layers that never report completion
	chipFlightFailsafe = 5 * time.Second
)

// Event is a short-lived visual effect, removed independently of the data stream.
type Event struct {
	ID        string      `json:"id"`
	Kind      Kind        `json:"kind"`
	Payload   interface{} `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type CardFlightPayload struct {
	Seat  int              `json:"seat"`
	Count int              `json:"count"`
	From  seatlayout.Point `json:"from"`
	To    seatlayout.Point `json:"to"`
}

type ChipFlightPayload struct {
	Seat   int              `json:"seat"`
	Amount int64            `json:"amount"`
	From   seatlayout.Point `json:"from"`
	To     seatlayout.Point `json:"to"`
}

/*
Sequencer owns the live animation events of one table view.

Every event gets a unique id and its own timebank so expiries never fight each
other; at most one dealing sequence is live per hand. Card and chip flights
resolve their anchors at trigger time, an unresolvable anchor drops the event
instead of animating from an undefined origin.
*/
type Sequencer struct {
	mu          sync.Mutex
	logger      zerolog.Logger
	events      map[string]*Event
	banks       map[string]*timebank.TimeBank
	dealingIDs  []string
	viewerSeat  int
	seatCount   int
	hasLayout   bool
	onTriggered func(event Event)
	onExpired   func(event Event)
}

func NewSequencer(opts ...SequencerOpt) *Sequencer {
	s := &Sequencer{
		logger:      zerolog.Nop(),
		events:      make(map[string]*Event),
		banks:       make(map[string]*timebank.TimeBank),
		dealingIDs:  make([]string, 0),
		viewerSeat:  seatlayout.UnsetSeat,
		onTriggered: func(Event) {},
		onExpired:   func(Event) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type SequencerOpt func(*Sequencer)

func WithLogger(logger zerolog.Logger) SequencerOpt {
	return func(s *Sequencer) {
		s.logger = logger.With().Str("component", "animation").Logger()
	}
}

func (s *Sequencer) OnTriggered(fn func(event Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTriggered = fn
}

func (s *Sequencer) OnExpired(fn func(event Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// SetLayout tells the sequencer how to resolve seat anchors.
func (s *Sequencer) SetLayout(viewerSeat, seatCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewerSeat = viewerSeat
	s.seatCount = seatCount
	s.hasLayout = seatCount >= seatlayout.MinSeatCount
}

/*
BeginDealing starts a new dealing sequence.

Any unexpired card events of a previous sequence are force-cleared first, so a
server replaying dealing events after a reconnect cannot leave two sequences
on the felt at once.
*/
func (s *Sequencer) BeginDealing() {
	s.mu.Lock()
	stale := s.dealingIDs
	s.dealingIDs = make([]string, 0)
	s.mu.Unlock()

	for _, id := range stale {
		s.expire(id, true)
	}

	if len(stale) > 0 {
		s.logger.Debug().Int("cleared", len(stale)).Msg("cleared previous dealing sequence")
	}
}

// TriggerCardFlight animates a card flying from the dealer anchor to a seat.
// Part of the current dealing sequence.
func (s *Sequencer) TriggerCardFlight(seat, count int) (string, error) {
	from := seatlayout.PotAnchor()
	to, err := s.resolveSeatAnchor(seat)
	if err != nil {
		s.logger.Debug().Int("seat", seat).Err(err).Msg("dropping card flight")
		return "", err
	}

	id, err := s.trigger(Kind_CardFlight, CardFlightPayload{
		Seat:  seat,
		Count: count,
		From:  from,
		To:    to,
	}, cardFlightLifetime)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.dealingIDs = append(s.dealingIDs, id)
	s.mu.Unlock()
	return id, nil
}

// TriggerChipFlight animates chips flying from a seat to the pot. The event
// lives until CompleteChipFlight, with a failsafe expiry.
func (s *Sequencer) TriggerChipFlight(seat int, amount int64) (string, error) {
	from, err := s.resolveSeatAnchor(seat)
	if err != nil {
		s.logger.Debug().Int("seat", seat).Err(err).Msg("dropping chip flight")
		return "", err
	}

	return s.trigger(Kind_ChipFlight, ChipFlightPayload{
		Seat:   seat,
		Amount: amount,
		From:   from,
		To:     seatlayout.PotAnchor(),
	}, chipFlightFailsafe)
}

// TriggerPotAward animates the pot flying to the winner's seat.
func (s *Sequencer) TriggerPotAward(seat int, amount int64) (string, error) {
	to, err := s.resolveSeatAnchor(seat)
	if err != nil {
		s.logger.Debug().Int("seat", seat).Err(err).Msg("dropping pot award")
		return "", err
	}

	return s.trigger(Kind_ChipFlight, ChipFlightPayload{
		Seat:   seat,
		Amount: amount,
		From:   seatlayout.PotAnchor(),
		To:     to,
	}, chipFlightFailsafe)
}

// CompleteChipFlight ends a chip flight once the presentation layer reports
// the flight finished.
func (s *Sequencer) CompleteChipFlight(id string) {
	s.expire(id, true)
}

func (s *Sequencer) TriggerFeltRipple() (string, error) {
	return s.trigger(Kind_FeltRipple, nil, feltRippleLifetime)
}

func (s *Sequencer) TriggerCardBurn() (string, error) {
	return s.trigger(Kind_CardBurn, nil, cardBurnLifetime)
}

// Trigger schedules a generic event with its kind-specific lifetime.
func (s *Sequencer) Trigger(kind Kind, payload interface{}) (string, error) {
	switch kind {
	case Kind_CardFlight:
		return s.trigger(kind, payload, cardFlightLifetime)
	case Kind_ChipFlight:
		return s.trigger(kind, payload, chipFlightFailsafe)
	case Kind_FeltRipple:
		return s.trigger(kind, payload, feltRippleLifetime)
	case Kind_CardBurn:
		return s.trigger(kind, payload, cardBurnLifetime)
	}
	return "", ErrUnknownKind
}

// Live returns the currently unexpired events, oldest first.
func (s *Sequencer) Live() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, *event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events
}

// Reset cancels every live event without firing expiry callbacks. Used when
// the client leaves the room.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, bank := range s.banks {
		bank.Cancel()
		delete(s.banks, id)
	}
	s.events = make(map[string]*Event)
	s.dealingIDs = make([]string, 0)
}

func (s *Sequencer) trigger(kind Kind, payload interface{}, lifetime time.Duration) (string, error) {
	event := &Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.events[event.ID] = event
	bank := timebank.NewTimeBank()
	s.banks[event.ID] = bank
	onTriggered := s.onTriggered
	s.mu.Unlock()

	if err := bank.NewTask(lifetime, func(isCancelled bool) {
		if isCancelled {
			return
		}
		s.expire(event.ID, false)
	}); err != nil {
		s.mu.Lock()
		delete(s.events, event.ID)
		delete(s.banks, event.ID)
		s.mu.Unlock()
		return "", err
	}

	onTriggered(*event)
	return event.ID, nil
}

func (s *Sequencer) expire(id string, cancelTask bool) {
	s.mu.Lock()
	event, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.events, id)

	if bank, exists := s.banks[id]; exists {
		if cancelTask {
			bank.Cancel()
		}
		delete(s.banks, id)
	}

	s.dealingIDs = funk.Filter(s.dealingIDs, func(dealingID string) bool {
		return dealingID != id
	}).([]string)

	onExpired := s.onExpired
	s.mu.Unlock()

	onExpired(*event)
}

func (s *Sequencer) resolveSeatAnchor(seat int) (seatlayout.Point, error) {
	s.mu.Lock()
	viewerSeat := s.viewerSeat
	seatCount := s.seatCount
	hasLayout := s.hasLayout
	s.mu.Unlock()

	if !hasLayout {
		return seatlayout.Point{}, ErrLayoutNotConfigured
	}

	point, err := seatlayout.Project(seat, viewerSeat, seatCount)
	if err != nil {
		return seatlayout.Point{}, ErrAnchorUnresolved
	}
	return point, nil
}
