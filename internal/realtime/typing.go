// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package realtime

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/metrics"
	"github.com/tomtom215/stellr/internal/models"
)

// stopSendTimeout bounds the stop event sent when the debounce timer fires.
const stopSendTimeout = 5 * time.Second

var (
	errNoConversation = errors.New("conversation id is required")
	errTypingLimited  = errors.New("typing start rate limited")
)

// localTyping is the session user's typing state in one conversation.
type localTyping struct {
	typing bool
	timer  timer
	gen    uint64 // invalidates timers that fire after a reset
}

func (st *localTyping) reset() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.typing = false
	st.gen++
}

type typingKey struct {
	conversationID string
	userID         string
}

// remoteTyping exists only while the remote user is typing.
type remoteTyping struct {
	timer timer
	gen   uint64
}

func (f *Facade) localState(conversationID string) *localTyping {
	st, ok := f.local[conversationID]
	if !ok {
		st = &localTyping{}
		f.local[conversationID] = st
	}
	return st
}

// StartTyping announces that the session user is typing.
func (f *Facade) StartTyping(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return apperrors.Validation("realtime.StartTyping", errNoConversation)
	}
	f.mu.Lock()
	st := f.localState(conversationID)
	fresh := !st.typing
	st.typing = true
	gen := st.gen
	f.mu.Unlock()

	if fresh {
		return f.announceStart(ctx, conversationID, gen)
	}
	if err := f.sendTyping(ctx, conversationID, true); !errors.Is(err, errTypingLimited) {
		return err
	}
	return nil
}

// StopTyping announces that the session user stopped typing and cancels a
// pending debounce timer.
func (f *Facade) StopTyping(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return apperrors.Validation("realtime.StopTyping", errNoConversation)
	}
	f.mu.Lock()
	f.localState(conversationID).reset()
	f.mu.Unlock()

	return f.sendTyping(ctx, conversationID, false)
}

// Keystroke feeds the composer text into the debouncer. The first
// non-empty keystroke starts typing. Every keystroke restarts the inactivity
// timer, and typing stops when it fires or when the text is cleared.
func (f *Facade) Keystroke(ctx context.Context, conversationID, text string) error {
	if conversationID == "" {
		return apperrors.Validation("realtime.Keystroke", errNoConversation)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	st := f.localState(conversationID)

	if strings.TrimSpace(text) == "" {
		wasTyping := st.typing
		st.reset()
		f.mu.Unlock()
		if wasTyping {
			return f.sendTyping(ctx, conversationID, false)
		}
		return nil
	}

	start := !st.typing
	if st.timer != nil {
		st.timer.Stop()
	}
	st.typing = true
	st.gen++
	gen := st.gen
	st.timer = f.afterFunc(f.cfg.TypingDebounce, func() { f.debounceExpired(conversationID, gen) })
	f.mu.Unlock()

	if start {
		return f.announceStart(ctx, conversationID, gen)
	}
	return nil
}

// announceStart sends the start of a typing burst. When the event is not
// delivered the local state is rolled back, so the peer never receives a
// stop without its start and the next keystroke tries again.
func (f *Facade) announceStart(ctx context.Context, conversationID string, gen uint64) error {
	err := f.sendTyping(ctx, conversationID, true)
	if err == nil {
		return nil
	}
	f.mu.Lock()
	if st, ok := f.local[conversationID]; ok && st.gen == gen {
		st.reset()
	}
	f.mu.Unlock()
	if errors.Is(err, errTypingLimited) {
		return nil
	}
	return err
}

func (f *Facade) debounceExpired(conversationID string, gen uint64) {
	f.mu.Lock()
	st, ok := f.local[conversationID]
	if !ok || st.gen != gen || !st.typing {
		f.mu.Unlock()
		return
	}
	st.typing = false
	st.timer = nil
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopSendTimeout)
	defer cancel()
	if err := f.sendTyping(ctx, conversationID, false); err != nil {
		f.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Typing stop after inactivity failed")
	}
}

// sendTyping broadcasts one typing event. Start events are rate limited per
// conversation; a limited start returns errTypingLimited.
func (f *Facade) sendTyping(ctx context.Context, conversationID string, isTyping bool) error {
	if isTyping && !f.limiter(conversationID).Allow() {
		metrics.TypingEventsSent.WithLabelValues("rate_limited").Inc()
		return errTypingLimited
	}

	ev := models.TypingEvent{
		ConversationID: conversationID,
		UserID:         f.userID,
		IsTyping:       isTyping,
		At:             f.now().UTC(),
	}
	if err := f.bc.Broadcast(ctx, changefeed.ChannelTyping, ev); err != nil {
		metrics.TypingEventsSent.WithLabelValues("error").Inc()
		return apperrors.Network("realtime.typing", err)
	}
	metrics.TypingEventsSent.WithLabelValues("sent").Inc()
	return nil
}

func (f *Facade) limiter(conversationID string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[conversationID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.TypingRatePerSec), f.cfg.TypingBurst)
		f.limiters[conversationID] = l
	}
	return l
}

// onTypingEvent drives the remote typing state machine. Listeners see
// transitions only: idle to typing, and typing to idle on a stop event or
// after the safety timeout.
func (f *Facade) onTypingEvent(e changefeed.Event) {
	var ev models.TypingEvent
	if err := e.DecodeNew(&ev); err != nil {
		f.logger.Warn().Err(err).Msg("Undecodable typing event")
		return
	}
	if ev.UserID == "" || ev.ConversationID == "" || ev.UserID == f.userID {
		return
	}
	if ev.At.IsZero() {
		ev.At = f.eventTime(e)
	}
	key := typingKey{conversationID: ev.ConversationID, userID: ev.UserID}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	st, typing := f.remote[key]

	if ev.IsTyping {
		if !typing {
			st = &remoteTyping{}
			f.remote[key] = st
		} else {
			st.timer.Stop()
		}
		st.gen++
		gen := st.gen
		st.timer = f.afterFunc(f.cfg.TypingTimeout, func() { f.remoteExpired(key, gen) })
		f.mu.Unlock()

		if !typing {
			f.typing.Emit(ev)
		}
		return
	}

	if !typing {
		f.mu.Unlock()
		return
	}
	st.timer.Stop()
	delete(f.remote, key)
	f.mu.Unlock()

	f.typing.Emit(ev)
}

func (f *Facade) remoteExpired(key typingKey, gen uint64) {
	f.mu.Lock()
	st, ok := f.remote[key]
	if !ok || st.gen != gen {
		f.mu.Unlock()
		return
	}
	delete(f.remote, key)
	f.mu.Unlock()

	f.typing.Emit(models.TypingEvent{
		ConversationID: key.conversationID,
		UserID:         key.userID,
		IsTyping:       false,
		At:             f.now().UTC(),
	})
}

// IsTyping reports whether userID is typing in conversationID.
func (f *Facade) IsTyping(conversationID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.remote[typingKey{conversationID: conversationID, userID: userID}]
	return ok
}

// TypingUsers lists the remote users typing in conversationID, sorted.
func (f *Facade) TypingUsers(conversationID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var users []string
	for key := range f.remote {
		if key.conversationID == conversationID {
			users = append(users, key.userID)
		}
	}
	sort.Strings(users)
	return users
}
