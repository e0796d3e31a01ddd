// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
	"github.com/tomtom215/stellr/internal/models"
)

const (
	minStaleAfter = 5 * time.Minute
	maxStaleAfter = 15 * time.Minute
)

// Broadcaster publishes ephemeral channel payloads.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload interface{}) error
}

// Invoker issues mutation RPCs.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload interface{}) (json.RawMessage, error)
}

// Tracker receives messaging outcomes for monitoring.
type Tracker interface {
	TrackMessaging(action string, success bool)
}

// ParticipantLookup resolves the participants of a conversation.
type ParticipantLookup interface {
	Participants(conversationID string) (user1, user2 string, ok bool)
}

// Deps are the collaborators of a Facade. Tracker, Participants and Actions
// may be nil.
type Deps struct {
	Broadcaster  Broadcaster
	RPC          Invoker
	Tracker      Tracker
	Participants ParticipantLookup
	Actions      *logging.UserActionLogger
}

type timer interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Facade is the realtime messaging surface of one session.
type Facade struct {
	userID     string
	cfg        config.RealtimeConfig
	staleAfter time.Duration

	bc           Broadcaster
	rpc          Invoker
	tracker      Tracker
	participants ParticipantLookup
	actions      *logging.UserActionLogger
	logger       zerolog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer

	mu        sync.Mutex
	closed    bool
	local     map[string]*localTyping
	remote    map[typingKey]*remoteTyping
	limiters  map[string]*rate.Limiter
	reactions map[string][]models.Reaction
	presence  map[string]models.PresenceRecord

	typing     *emitter.Emitter[models.TypingEvent]
	receipts   *emitter.Emitter[models.ReadReceipt]
	deliveries *emitter.Emitter[models.DeliveryUpdate]
	reactionEv *emitter.Emitter[models.ReactionEvent]
	presenceEv *emitter.Emitter[models.PresenceRecord]
}

// New returns a facade for userID.
func New(userID string, cfg config.RealtimeConfig, deps Deps) *Facade {
	f := &Facade{
		userID:       userID,
		cfg:          cfg,
		staleAfter:   clampStaleAfter(cfg.PresenceStaleAfter),
		bc:           deps.Broadcaster,
		rpc:          deps.RPC,
		tracker:      deps.Tracker,
		participants: deps.Participants,
		actions:      deps.Actions,
		logger:       logging.WithComponent("realtime"),
		now:          time.Now,
		afterFunc:    realAfterFunc,
		local:        make(map[string]*localTyping),
		remote:       make(map[typingKey]*remoteTyping),
		limiters:     make(map[string]*rate.Limiter),
		reactions:    make(map[string][]models.Reaction),
		presence:     make(map[string]models.PresenceRecord),
		typing:       emitter.New[models.TypingEvent]("typing"),
		receipts:     emitter.New[models.ReadReceipt]("read-receipts"),
		deliveries:   emitter.New[models.DeliveryUpdate]("deliveries"),
		reactionEv:   emitter.New[models.ReactionEvent]("reactions"),
		presenceEv:   emitter.New[models.PresenceRecord]("presence"),
	}

	gauge := func(kind string) func(int) {
		return func(n int) { metrics.RealtimeListeners.WithLabelValues(kind).Set(float64(n)) }
	}
	f.typing.OnCountChange(gauge("typing"))
	f.receipts.OnCountChange(gauge("read_receipt"))
	f.deliveries.OnCountChange(gauge("delivery"))
	f.reactionEv.OnCountChange(gauge("reaction"))
	f.presenceEv.OnCountChange(gauge("presence"))
	return f
}

// clampStaleAfter keeps the presence window inside 5 to 15 minutes for
// facades built without validated config. Zero selects the 10 minute default.
func clampStaleAfter(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return 10 * time.Minute
	case d < minStaleAfter:
		return minStaleAfter
	case d > maxStaleAfter:
		return maxStaleAfter
	default:
		return d
	}
}

// Attach subscribes the facade to the typing channel, message updates,
// reactions and presence.
func (f *Facade) Attach(feed changefeed.Subscriber) (*emitter.Subscription, error) {
	return changefeed.SubscribeAll(feed,
		changefeed.Binding{Table: changefeed.ChannelTyping, Types: []changefeed.EventType{changefeed.Broadcast}, Fn: f.onTypingEvent},
		changefeed.Binding{Table: changefeed.TableMessages, Types: []changefeed.EventType{changefeed.Update}, Fn: f.onMessageUpdate},
		changefeed.Binding{Table: changefeed.TableMessageReactions, Types: []changefeed.EventType{changefeed.Insert}, Fn: f.onReactionInsert},
		changefeed.Binding{Table: changefeed.TableMessageReactions, Types: []changefeed.EventType{changefeed.Delete}, Fn: f.onReactionDelete},
		changefeed.Binding{Table: changefeed.TableUserPresence, Types: []changefeed.EventType{changefeed.Insert, changefeed.Update}, Fn: f.onPresence},
	)
}

// OnTyping registers fn for remote typing transitions.
func (f *Facade) OnTyping(fn func(models.TypingEvent)) *emitter.Subscription {
	return f.typing.On(fn)
}

// OnReadReceipt registers fn for messages marked read.
func (f *Facade) OnReadReceipt(fn func(models.ReadReceipt)) *emitter.Subscription {
	return f.receipts.On(fn)
}

// OnMessageDelivery registers fn for delivery status changes.
func (f *Facade) OnMessageDelivery(fn func(models.DeliveryUpdate)) *emitter.Subscription {
	return f.deliveries.On(fn)
}

// OnMessageReaction registers fn for reaction echoes.
func (f *Facade) OnMessageReaction(fn func(models.ReactionEvent)) *emitter.Subscription {
	return f.reactionEv.On(fn)
}

// OnPresence registers fn for presence updates.
func (f *Facade) OnPresence(fn func(models.PresenceRecord)) *emitter.Subscription {
	return f.presenceEv.On(fn)
}

// Close stops every pending typing timer. Listeners stay registered.
func (f *Facade) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for _, st := range f.local {
		st.reset()
	}
	for key, st := range f.remote {
		st.timer.Stop()
		delete(f.remote, key)
	}
}

func (f *Facade) track(action string, err error) {
	if f.tracker != nil {
		f.tracker.TrackMessaging(action, err == nil)
	}
}

// eventTime prefers the commit timestamp of e.
func (f *Facade) eventTime(e changefeed.Event) time.Time {
	if !e.CommitTimestamp.IsZero() {
		return e.CommitTimestamp
	}
	return f.now().UTC()
}
