package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Intents requested from the gateway. Message content is privileged and must
// be enabled for the application.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsMessageContent

// Discord connects a Bot to a discordgo session and implements Platform.
type Discord struct {
	session *discordgo.Session
	bot     *Bot
	logger  *slog.Logger
	status  string
}

// NewSession creates an unopened session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	return s, nil
}

// NewDiscord wires b to session. b replies through the returned adapter.
func NewDiscord(session *discordgo.Session, b *Bot, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Discord{
		session: session,
		bot:     b,
		logger:  logger,
		status:  b.Prefix() + "allow <wallet>",
	}
	b.SetPlatform(d)
	session.AddHandler(d.onReady)
	session.AddHandler(d.onMessageCreate)
	return d
}

// Open connects to the gateway.
func (d *Discord) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (d *Discord) Close() error {
	return d.session.Close()
}

// ErrGatewayNotReady is returned by Ping before the READY event arrives.
var ErrGatewayNotReady = errors.New("discord gateway not ready")

// Ping reports whether the gateway session is connected and ready.
func (d *Discord) Ping(_ context.Context) error {
	d.session.RLock()
	defer d.session.RUnlock()
	if !d.session.DataReady {
		return ErrGatewayNotReady
	}
	return nil
}

// Reply answers msg in its channel, referencing the original message.
func (d *Discord) Reply(ctx context.Context, msg *Message, text string) error {
	ref := &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	if _, err := d.session.ChannelMessageSendReply(msg.ChannelID, text, ref, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// GrantRole adds the role called roleName to a member.
func (d *Discord) GrantRole(ctx context.Context, guildID, userID, roleName string) error {
	roles, err := d.guildRoles(guildID)
	if err != nil {
		return err
	}
	roleID, ok := roleIDByName(roles, roleName)
	if !ok {
		return fmt.Errorf("role %q not found in guild %s", roleName, guildID)
	}
	if err := d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}

func (d *Discord) onReady(s *discordgo.Session, r *discordgo.Ready) {
	d.logger.Info("discord gateway ready",
		slog.String("user", r.User.Username),
		slog.Int("guilds", len(r.Guilds)),
	)
	if err := s.UpdateGameStatus(0, d.status); err != nil {
		d.logger.Warn("failed to set presence", slog.String("error", err.Error()))
	}
}

// onMessageCreate runs on its own goroutine; discordgo dispatches handlers
// concurrently unless SyncEvents is set.
func (d *Discord) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if _, _, ok := d.bot.parse(m.Content); !ok {
		return
	}

	var lookupErrs []error

	channelName := ""
	if ch, err := d.channel(m.ChannelID); err == nil {
		channelName = ch.Name
	} else {
		d.logger.Warn("channel lookup failed", slog.String("channel_id", m.ChannelID), slog.String("error", err.Error()))
		lookupErrs = append(lookupErrs, fmt.Errorf("channel %s: %w", m.ChannelID, err))
	}

	roles, err := d.guildRoles(m.GuildID)
	if err != nil {
		d.logger.Warn("role lookup failed", slog.String("guild_id", m.GuildID), slog.String("error", err.Error()))
		lookupErrs = append(lookupErrs, err)
	}

	msg := messageFromEvent(m, channelName, roles)
	msg.LookupErr = lookupError(lookupErrs)
	d.bot.Handle(context.Background(), msg)
}

func (d *Discord) channel(id string) (*discordgo.Channel, error) {
	if ch, err := d.session.State.Channel(id); err == nil {
		return ch, nil
	}
	return d.session.Channel(id)
}

func (d *Discord) guildRoles(guildID string) ([]*discordgo.Role, error) {
	if g, err := d.session.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	roles, err := d.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild roles: %w", err)
	}
	return roles, nil
}

// messageFromEvent converts a gateway event. Member role IDs are mapped to
// names, keeping the member's own order; unknown IDs are dropped.
func messageFromEvent(m *discordgo.MessageCreate, channelName string, guildRoles []*discordgo.Role) *Message {
	msg := &Message{
		ID:          m.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		ChannelName: channelName,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		Content:     m.Content,
	}

	if m.Member != nil {
		msg.Roles = roleNames(m.Member.Roles, guildRoles)
		if !m.Member.JoinedAt.IsZero() {
			joined := m.Member.JoinedAt.UTC()
			msg.JoinedAt = &joined
		}
	}

	return msg
}

// lookupError folds failed lookups into one ErrMemberLookup, or nil.
func lookupError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMemberLookup, errors.Join(errs...))
}

func roleNames(ids []string, guildRoles []*discordgo.Role) []string {
	byID := make(map[string]string, len(guildRoles))
	for _, r := range guildRoles {
		byID[r.ID] = r.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

func roleIDByName(roles []*discordgo.Role, name string) (string, bool) {
	for _, r := range roles {
		if r.Name == name {
			return r.ID, true
		}
	}
	return "", false
}
