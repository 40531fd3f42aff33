package app

import (
	"errors"
	"unicode/utf8"

	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRateLimited = errors.New("chat rate limit exceeded")

// ChatInput is an inbound chat request; nil fields were absent on the wire.
type ChatInput struct {
	User *string
	Text *string
}

// ChatRelay rebroadcasts viewer chat to every viewer, the sender included.
type ChatRelay struct {
	hub        Broadcaster
	limiter    *RateLimiter
	maxTextLen int
	observer   ChatObserver
}

// NewChatRelay builds a relay. limiter may be nil; maxTextLen <= 0 keeps text as is.
func NewChatRelay(hub Broadcaster, limiter *RateLimiter, maxTextLen int, observer ChatObserver) *ChatRelay {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ChatRelay{hub: hub, limiter: limiter, maxTextLen: maxTextLen, observer: observer}
}

// Submit fills defaults (user "anon", text ""), applies the sender's rate limit and broadcasts.
func (r *ChatRelay) Submit(sender string, in ChatInput) (domain.ChatMessage, error) {
	if !r.limiter.Allow(sender) {
		r.observer.ChatFrame(ChatLimited)
		log.Debug().Str("module", "app.chat").Str("sender", sender).Msg("chat rate limited")
		return domain.ChatMessage{}, ErrRateLimited
	}

	msg := domain.ChatMessage{User: domain.AnonymousUser}
	if in.User != nil {
		msg.User = *in.User
	}
	if in.Text != nil {
		msg.Text = r.truncate(*in.Text)
	}

	res := r.hub.Broadcast(domain.NewChatMessage(msg.User, msg.Text))
	r.observer.ChatFrame(ChatAccepted)
	log.Debug().Str("module", "app.chat").Str("sender", sender).Str("user", msg.User).Int("delivered", res.Delivered).Msg("chat relayed")
	return msg, nil
}

// Malformed records a frame that was ignored.
func (r *ChatRelay) Malformed(sender string) {
	r.observer.ChatFrame(ChatMalformed)
	log.Debug().Str("module", "app.chat").Str("sender", sender).Msg("malformed frame ignored")
}

// Forget releases per-sender state once a viewer disconnects.
func (r *ChatRelay) Forget(sender string) {
	r.limiter.Forget(sender)
}

func (r *ChatRelay) truncate(text string) string {
	if r.maxTextLen <= 0 || utf8.RuneCountInString(text) <= r.maxTextLen {
		return text
	}
	return string([]rune(text)[:r.maxTextLen])
}
