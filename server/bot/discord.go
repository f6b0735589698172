package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
)

const interactionTimeout = 30 * time.Second

var optionTypes = map[OptionType]discordgo.ApplicationCommandOptionType{
	OptionString:  discordgo.ApplicationCommandOptionString,
	OptionInteger: discordgo.ApplicationCommandOptionInteger,
	OptionBoolean: discordgo.ApplicationCommandOptionBoolean,
	OptionUser:    discordgo.ApplicationCommandOptionUser,
	OptionChannel: discordgo.ApplicationCommandOptionChannel,
	OptionRole:    discordgo.ApplicationCommandOptionRole,
}

var buttonStyles = map[chat.ButtonStyle]discordgo.ButtonStyle{
	chat.ButtonLink:      discordgo.LinkButton,
	chat.ButtonPrimary:   discordgo.PrimaryButton,
	chat.ButtonSecondary: discordgo.SecondaryButton,
	chat.ButtonSuccess:   discordgo.SuccessButton,
	chat.ButtonDanger:    discordgo.DangerButton,
}

func (b *Bot) applicationCommands() []*discordgo.ApplicationCommand {
	commands := make([]*discordgo.ApplicationCommand, 0, len(b.commandOrder))
	for _, name := range b.commandOrder {
		c := b.commands[name]
		options := make([]*discordgo.ApplicationCommandOption, 0, len(c.Options))
		for _, o := range c.Options {
			options = append(options, toDiscordOption(o))
		}
		commands = append(commands, &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
			Options:     options,
		})
	}
	return commands
}

func toDiscordOption(o Option) *discordgo.ApplicationCommandOption {
	option := &discordgo.ApplicationCommandOption{
		Type:        optionTypes[o.Type],
		Name:        o.Name,
		Description: o.Description,
		Required:    o.Required,
	}
	for _, c := range o.Choices {
		option.Choices = append(option.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value})
	}
	if o.Min != nil {
		minValue := float64(*o.Min)
		option.MinValue = &minValue
	}
	if o.Max != nil {
		option.MaxValue = float64(*o.Max)
	}
	return option
}

func toComponents(buttons []chat.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	var rows []discordgo.MessageComponent
	// an action row holds at most five buttons
	for start := 0; start < len(buttons); start += 5 {
		end := start + 5
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, button := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    button.Label,
				Style:    buttonStyles[button.Style],
				URL:      button.URL,
				CustomID: button.CustomID,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func inputFromInteraction(i *discordgo.InteractionCreate) Input {
	user := interactionUser(i)
	in := Input{
		UserID:    user.ID,
		Username:  user.Username,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Options:   map[string]interface{}{},
	}
	for _, o := range i.ApplicationCommandData().Options {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			in.Options[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			in.Options[o.Name] = o.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			in.Options[o.Name] = o.BoolValue()
		default:
			// users, channels and roles arrive as ids
			in.Options[o.Name] = fmt.Sprint(o.Value)
		}
	}
	return in
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.respondCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if !isRSVPCustomID(customID) {
			return
		}
		reply := b.HandleRSVP(ctx, interactionUser(i).ID, i.GuildID, customID)
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: reply.Content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}, discordgo.WithContext(ctx))
		if err != nil {
			b.logger.Error("failed to respond to rsvp", "err", err)
		}
	}
}

func (b *Bot) respondCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	command, ok := b.commands[name]

	// calendar calls can outlast the three second ack window
	data := &discordgo.InteractionResponseData{}
	if !ok || !command.Public {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx)); err != nil {
		b.logger.Error("failed to defer interaction", "command", name, "err", err)
		return
	}

	reply := b.ExecuteCommand(ctx, name, inputFromInteraction(i))
	components := toComponents(reply.Buttons)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &reply.Content,
		Components: &components,
	}, discordgo.WithContext(ctx)); err != nil {
		b.logger.Error("failed to edit interaction response", "command", name, "err", err)
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	b.HandleMessage(ctx, m.GuildID, m.ChannelID, m.Author.ID, m.Author.Bot)
}

// discordSender delivers chat messages through the bot session.
type discordSender struct {
	session *discordgo.Session
}

func (d *discordSender) SendDM(ctx context.Context, userID string, msg chat.Message) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "failed to open dm with %s", userID)
	}
	return d.SendChannel(ctx, channel.ID, msg)
}

func (d *discordSender) SendChannel(ctx context.Context, channelID string, msg chat.Message) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Content,
		Components: toComponents(msg.Buttons),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "failed to send message to %s", channelID)
	}
	return nil
}
