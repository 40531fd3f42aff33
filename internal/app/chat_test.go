package app

import (
	"strings"
	"testing"
	"time"

	"github.com/dkeye/WaterRocket/internal/config"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/stretchr/testify/require"
)

type chatRecorder struct {
	results []ChatResult
}

func (o *chatRecorder) ChatFrame(r ChatResult) { o.results = append(o.results, r) }

func ptr(s string) *string { return &s }

func TestChatRelay_MissingFieldsGetDefaults(t *testing.T) {
	req := require.New(t)
	hub := &recordingHub{}
	relay := NewChatRelay(hub, nil, 0, nil)

	// Given a frame without user and text
	msg, err := relay.Submit("v1", ChatInput{})

	// Then it is relayed as anon with empty text
	req.NoError(err)
	req.Equal(domain.ChatMessage{User: "anon", Text: ""}, msg)
	req.Equal([]domain.BroadcastMessage{domain.NewChatMessage("anon", "")}, hub.messages())
}

func TestChatRelay_KeepsProvidedFields(t *testing.T) {
	req := require.New(t)
	hub := &recordingHub{}
	relay := NewChatRelay(hub, nil, 0, nil)

	msg, err := relay.Submit("v1", ChatInput{User: ptr(""), Text: ptr("hello")})

	req.NoError(err)
	req.Equal(domain.ChatMessage{User: "", Text: "hello"}, msg)
}

func TestChatRelay_TruncatesLongText(t *testing.T) {
	req := require.New(t)
	hub := &recordingHub{}
	relay := NewChatRelay(hub, nil, 5, nil)

	msg, err := relay.Submit("v1", ChatInput{User: ptr("bob"), Text: ptr("🚀🚀🚀🚀🚀🚀🚀")})

	req.NoError(err)
	req.Equal(strings.Repeat("🚀", 5), msg.Text)
}

func TestChatRelay_RateLimitPerSender(t *testing.T) {
	req := require.New(t)
	hub := &recordingHub{}
	obs := &chatRecorder{}
	relay := NewChatRelay(hub, NewRateLimiter(2, time.Minute), 0, obs)

	_, err := relay.Submit("v1", ChatInput{Text: ptr("1")})
	req.NoError(err)
	_, err = relay.Submit("v1", ChatInput{Text: ptr("2")})
	req.NoError(err)
	_, err = relay.Submit("v1", ChatInput{Text: ptr("3")})
	req.ErrorIs(err, ErrRateLimited)

	// Another sender is unaffected.
	_, err = relay.Submit("v2", ChatInput{Text: ptr("x")})
	req.NoError(err)

	// Forgetting a sender resets its window.
	relay.Forget("v1")
	_, err = relay.Submit("v1", ChatInput{Text: ptr("4")})
	req.NoError(err)

	relay.Malformed("v1")
	req.Len(hub.messages(), 4)
	req.Equal([]ChatResult{ChatAccepted, ChatAccepted, ChatLimited, ChatAccepted, ChatAccepted, ChatMalformed}, obs.results)
}

func TestChatRelay_DefaultConfigRelaysVerbatim(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")
	cfg, err := config.Load()
	req.NoError(err)

	hub := &recordingHub{}
	relay := NewChatRelay(hub, NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval), cfg.Chat.MaxTextLen, nil)

	// Given a long text and a burst from one sender
	long := strings.Repeat("x", 600)
	msg, err := relay.Submit("v1", ChatInput{User: ptr("bob"), Text: ptr(long)})
	req.NoError(err)
	req.Equal(long, msg.Text)
	for i := 0; i < 24; i++ {
		_, err := relay.Submit("v1", ChatInput{Text: ptr("spam")})
		req.NoError(err)
	}

	// Then everything is rebroadcast unchanged
	msgs := hub.messages()
	req.Len(msgs, 25)
	req.Equal(domain.NewChatMessage("bob", long), msgs[0])
}
