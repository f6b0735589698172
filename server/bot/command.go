package bot

import (
	"context"

	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
)

type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
	OptionBoolean
	OptionUser
	OptionChannel
	OptionRole
)

type Choice struct {
	Name  string
	Value string
}

type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Choices     []Choice
	Min         *int
	Max         *int
}

// Input is one invocation of a command. User, channel and role options hold ids.
type Input struct {
	UserID    string
	Username  string
	GuildID   string
	ChannelID string
	Options   map[string]interface{}
}

func (in Input) String(name string) string {
	if v, ok := in.Options[name].(string); ok {
		return v
	}
	return ""
}

func (in Input) Int(name string, def int) int {
	switch v := in.Options[name].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func (in Input) Bool(name string, def bool) bool {
	if v, ok := in.Options[name].(bool); ok {
		return v
	}
	return def
}

func (in Input) Has(name string) bool {
	_, ok := in.Options[name]
	return ok
}

type Reply struct {
	Content string
	Buttons []chat.Button
	// Public replies are visible to the whole channel.
	Public bool
}

func text(content string) Reply {
	return Reply{Content: content}
}

type Command struct {
	Name        string
	Description string
	Options     []Option
	Public      bool
	Execute     func(ctx context.Context, in Input) (Reply, error)
}

func intPtr(v int) *int {
	return &v
}
