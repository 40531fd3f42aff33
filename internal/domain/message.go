package domain

import "time"

// Channel is the client-side routing tag of a broadcast.
type Channel string

const (
	ChannelLaunchLog Channel = "launch_log"
	ChannelChat      Channel = "chat"
)

const (
	AnonymousUser = "anon"
	SystemUser    = "SYSTEM"
)

// BroadcastMessage is the {channel, data} envelope delivered to every viewer.
type BroadcastMessage struct {
	Channel Channel `json:"channel"`
	Data    any     `json:"data"`
}

// LaunchLog is the launch_log payload.
type LaunchLog struct {
	Player       string  `json:"player"`
	MaxAltitudeM float64 `json:"max_altitude_m"`
	RangeM       float64 `json:"range_m"`
	Timestamp    string  `json:"timestamp"`
}

// ChatMessage is the chat payload.
type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// FormatTimestamp renders t as UTC ISO-8601 with a trailing Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

func NewLaunchLogMessage(l LaunchLog) BroadcastMessage {
	return BroadcastMessage{Channel: ChannelLaunchLog, Data: l}
}

func NewChatMessage(user, text string) BroadcastMessage {
	return BroadcastMessage{Channel: ChannelChat, Data: ChatMessage{User: user, Text: text}}
}
