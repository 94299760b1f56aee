package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/listkeeper/listkeeper/internal/game"
	"github.com/listkeeper/listkeeper/internal/metrics"
)

// channelScope says which configured channels a command may run in.
type channelScope int

const (
	scopeAny channelScope = iota
	scopeAllowlist
	scopeGame
)

// Denial reasons, used as metrics labels.
const (
	deniedChannel  = "channel"
	deniedRole     = "role"
	deniedCooldown = "cooldown"
)

const defaultCommandTimeout = 15 * time.Second

// request is one parsed command invocation.
type request struct {
	id        string
	msg       *Message
	community *Community
	command   string
	args      []string
	logger    *slog.Logger
}

// arg returns the i-th argument or "".
func (r *request) arg(i int) string {
	if i < len(r.args) {
		return r.args[i]
	}
	return ""
}

type handlerFunc func(ctx context.Context, req *request) (string, error)

type command struct {
	handle       handlerFunc
	scope        channelScope
	admin        bool
	cooldownGame string // non-empty for cooldown-limited games
}

// Options configures a Bot.
type Options struct {
	Prefix         string
	Platform       Platform
	Limiter        Limiter
	Metrics        metrics.Recorder
	Logger         *slog.Logger
	CommandTimeout time.Duration
}

// Bot routes messages to command handlers.
type Bot struct {
	prefix      string
	communities map[string]*Community
	platform    Platform
	limiter     Limiter
	metrics     metrics.Recorder
	logger      *slog.Logger
	timeout     time.Duration
	commands    map[string]command
}

// New creates a Bot serving communities, keyed by guild ID.
func New(communities map[string]*Community, opts Options) *Bot {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	b := &Bot{
		prefix:      opts.Prefix,
		communities: communities,
		platform:    opts.Platform,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		timeout:     opts.CommandTimeout,
	}

	b.commands = map[string]command{
		"gm":        {handle: b.handleGM, scope: scopeAny},
		"allow":     {handle: b.handleAllow, scope: scopeAllowlist},
		"check":     {handle: b.handleCheck, scope: scopeAllowlist},
		"roles":     {handle: b.handleRoles, scope: scopeAllowlist},
		"count":     {handle: b.handleCount, scope: scopeAllowlist, admin: true},
		"checkid":   {handle: b.handleCheckID, scope: scopeAllowlist, admin: true},
		"sacrifice": {handle: b.handleSacrifice, scope: scopeGame, cooldownGame: game.NameOracle},
		"slot":      {handle: b.handleSlot, scope: scopeGame, cooldownGame: game.NameSlot},
	}

	return b
}

// SetPlatform sets the platform used for replies. The Discord adapter needs
// the bot before it can be built, so it is attached afterwards.
func (b *Bot) SetPlatform(p Platform) {
	b.platform = p
}

// Prefix returns the command prefix.
func (b *Bot) Prefix() string {
	return b.prefix
}

// parse splits content into a command name and arguments.
// ok is false when content is not addressed to the bot.
func (b *Bot) parse(content string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, b.prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Handle processes one message. Messages from unknown guilds, non-command
// messages and unknown commands are ignored. It never panics.
func (b *Bot) Handle(ctx context.Context, msg *Message) {
	name, args, ok := b.parse(msg.Content)
	if !ok {
		return
	}
	cmd, ok := b.commands[name]
	if !ok {
		return
	}
	community, ok := b.communities[msg.GuildID]
	if !ok {
		return
	}

	req := &request{
		id:        uuid.NewString(),
		msg:       msg,
		community: community,
		command:   name,
		args:      args,
	}
	req.logger = b.logger.With(
		slog.String("command_id", req.id),
		slog.String("command", name),
		slog.String("guild_id", msg.GuildID),
		slog.String("project", community.Project.Name),
		slog.String("user_id", msg.AuthorID),
	)

	defer func() {
		if rvr := recover(); rvr != nil {
			req.logger.Error("panic recovered",
				slog.Any("panic", rvr),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	b.dispatch(ctx, cmd, req)
}

func (b *Bot) dispatch(ctx context.Context, cmd command, req *request) {
	start := time.Now()
	community := req.community

	// Every scoped command depends on channel or roles; without them a member
	// would be judged ineligible or out of channel for a platform fault.
	if req.msg.LookupErr != nil && cmd.scope != scopeAny {
		req.logger.Warn("command skipped, member lookup failed", slog.String("error", req.msg.LookupErr.Error()))
		b.reply(ctx, req, errorReply(req.msg.LookupErr))
		return
	}

	if !community.allows(cmd.scope, req.msg.ChannelName) {
		// Wrong channel: stay quiet, like any other unrelated chatter.
		b.metrics.IncCommandDenied(deniedChannel)
		req.logger.Debug("command ignored outside its channels", slog.String("channel", req.msg.ChannelName))
		return
	}

	if cmd.admin && !community.isAdmin(req.msg.Roles) {
		b.metrics.IncCommandDenied(deniedRole)
		b.reply(ctx, req, replyNotAdmin)
		return
	}

	if cmd.cooldownGame != "" && community.Project.GameCooldown > 0 && b.limiter != nil {
		subject := fmt.Sprintf("%s:%s:%s", community.Project.Name, cmd.cooldownGame, req.msg.AuthorID)
		res, err := b.limiter.CheckCooldown(ctx, subject, community.Project.GameCooldown)
		if err != nil {
			req.logger.Warn("cooldown check failed, allowing", slog.String("error", err.Error()))
		}
		if res != nil && !res.Allowed {
			b.metrics.IncCommandDenied(deniedCooldown)
			b.reply(ctx, req, cooldownReply(res.RetryAfter))
			return
		}
	}

	b.metrics.IncCommand(req.command)

	text, err := cmd.handle(ctx, req)
	if err != nil {
		req.logger.Error("command failed",
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
		b.reply(ctx, req, errorReply(err))
		return
	}

	req.logger.Info("command handled",
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)
	if text != "" {
		b.reply(ctx, req, text)
	}
}

func (b *Bot) reply(ctx context.Context, req *request, text string) {
	if b.platform == nil {
		return
	}
	if err := b.platform.Reply(ctx, req.msg, text); err != nil {
		req.logger.Warn("reply failed", slog.String("error", err.Error()))
	}
}
