// Package chat is the outbound side of the chat platform as the schedulers and
// command handlers see it.
package chat

import "context"

type ButtonStyle int

const (
	ButtonLink ButtonStyle = iota
	ButtonPrimary
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a link button when URL is set, otherwise an interaction button
// identified by CustomID.
type Button struct {
	Label    string
	URL      string
	CustomID string
	Style    ButtonStyle
}

type Message struct {
	Content string
	Buttons []Button
}

func Text(content string) Message {
	return Message{Content: content}
}

type Sender interface {
	SendDM(ctx context.Context, userID string, msg Message) error
	SendChannel(ctx context.Context, channelID string, msg Message) error
}
