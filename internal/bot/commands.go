package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/listkeeper/listkeeper/internal/game"
	"github.com/listkeeper/listkeeper/internal/model"
	"github.com/listkeeper/listkeeper/internal/service"
)

func (b *Bot) handleGM(_ context.Context, req *request) (string, error) {
	return gmReply(req.msg.AuthorName), nil
}

func (b *Bot) handleAllow(ctx context.Context, req *request) (string, error) {
	reg := req.community.Registrar
	res, err := reg.Register(ctx, service.Registration{
		UserID:    req.msg.AuthorID,
		Username:  req.msg.AuthorName,
		JoinedAt:  req.msg.JoinedAt,
		UserRoles: req.msg.Roles,
		WalletArg: req.arg(0),
	})
	if err != nil {
		return "", err
	}

	req.logger.Info("registration",
		slog.String("outcome", string(res.Outcome)),
		slog.String("list", res.ListName),
	)

	switch res.Outcome {
	case model.OutcomeInvalidWallet:
		return replyInvalidWallet(b.prefix), nil
	case model.OutcomeIneligible:
		return ineligibleReply(reg.Resolver().Recognized()), nil
	case model.OutcomeCreated:
		return createdReply(res.ListName, res.Wallet), nil
	case model.OutcomeUnchanged:
		return unchangedReply(res.ListName, res.Wallet), nil
	default:
		return updatedReply(res.ListName, res.PreviousWallet, res.Wallet), nil
	}
}

func (b *Bot) handleCheck(ctx context.Context, req *request) (string, error) {
	reg := req.community.Registrar
	res, err := reg.Check(ctx, req.msg.AuthorID, req.msg.Roles)
	if err != nil {
		return "", err
	}

	switch {
	case !res.Eligible:
		return ineligibleReply(reg.Resolver().Recognized()), nil
	case res.Entry == nil:
		return notRegisteredReply(b.prefix, res.ListName), nil
	default:
		return registeredReply(res.ListName, res.Entry.Wallet), nil
	}
}

func (b *Bot) handleRoles(_ context.Context, req *request) (string, error) {
	resolver := req.community.Registrar.Resolver()
	held := resolver.Held(req.msg.Roles)
	if len(held) == 0 {
		return ineligibleReply(resolver.Recognized()), nil
	}
	list, _ := resolver.Resolve(req.msg.Roles)
	return rolesReply(held, list), nil
}

func (b *Bot) handleCount(ctx context.Context, req *request) (string, error) {
	listName := req.arg(0)
	reg := req.community.Registrar
	if listName != "" && !contains(reg.Resolver().Recognized(), listName) {
		return unknownListReply(listName, reg.Resolver().Recognized()), nil
	}

	n, err := reg.Count(ctx, listName)
	if err != nil {
		return "", err
	}
	return countReply(n, listName), nil
}

func (b *Bot) handleCheckID(ctx context.Context, req *request) (string, error) {
	if req.arg(0) == "" {
		return checkIDUsage(b.prefix), nil
	}
	userID, err := service.ParseUserID(req.arg(0))
	if err != nil {
		return replyInvalidUserID, nil
	}

	entry, err := req.community.Registrar.Lookup(ctx, userID, req.arg(1))
	if errors.Is(err, service.ErrEntryNotFound) {
		return noEntryReply(userID), nil
	}
	if err != nil {
		return "", err
	}
	return entryReply(entry), nil
}

func (b *Bot) handleSacrifice(ctx context.Context, req *request) (string, error) {
	won := req.community.Oracle.Consult()
	b.metrics.IncGameRoll(game.NameOracle, won)
	if !won {
		return replySacrificeRejected, nil
	}
	return sacrificeAcceptedReply(b.grantReward(ctx, req)), nil
}

func (b *Bot) handleSlot(ctx context.Context, req *request) (string, error) {
	spin := req.community.Slot.Spin()
	b.metrics.IncGameRoll(game.NameSlot, spin.Won)
	if !spin.Won {
		return slotLossReply(spin), nil
	}
	return slotWinReply(spin, b.grantReward(ctx, req)), nil
}

// grantReward gives the project's reward role to the author and returns the
// role name, or "" when none is configured or the grant failed.
func (b *Bot) grantReward(ctx context.Context, req *request) string {
	role := req.community.Project.RewardRole
	if role == "" || b.platform == nil {
		return ""
	}
	if err := b.platform.GrantRole(ctx, req.msg.GuildID, req.msg.AuthorID, role); err != nil {
		req.logger.Error("grant reward role failed",
			slog.String("role", role),
			slog.String("error", err.Error()),
		)
		return ""
	}
	req.logger.Info("reward role granted", slog.String("role", role))
	return role
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
