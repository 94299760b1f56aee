package bot

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/listkeeper/listkeeper/internal/game"
	"github.com/listkeeper/listkeeper/internal/model"
	"github.com/listkeeper/listkeeper/internal/service"
	"github.com/listkeeper/listkeeper/internal/wallet"
)

const (
	replyNotAdmin          = "You don't have permission to use that command."
	replyInvalidUserID     = "That is not a valid user ID or mention."
	replyStoreUnavailable  = "The allow list is unavailable right now. Please try again in a moment."
	replyInternalError     = "Something went wrong. Please try again later."
	replyLookupFailed      = "I couldn't read your roles just now. Please try again in a moment."
	replySacrificeRejected = "The oracle rejects your sacrifice."
)

func gmReply(name string) string {
	return "gm to you, " + name
}

func replyInvalidWallet(prefix string) string {
	return fmt.Sprintf("That doesn't look like a wallet address. Use `%sallow 0x...` with a 42 character address; ENS names are not supported.", prefix)
}

func ineligibleReply(recognized []string) string {
	return "You need one of these roles to join the allow list: " + strings.Join(recognized, ", ") + "."
}

func createdReply(list, addr string) string {
	return fmt.Sprintf("Added `%s` to the %s list.", wallet.Checksum(addr), list)
}

func unchangedReply(list, addr string) string {
	return fmt.Sprintf("`%s` is already on the %s list.", wallet.Checksum(addr), list)
}

func updatedReply(list, previous, addr string) string {
	return fmt.Sprintf("Updated your %s wallet from `%s` to `%s`.", list, wallet.Checksum(previous), wallet.Checksum(addr))
}

func notRegisteredReply(prefix, list string) string {
	return fmt.Sprintf("You are not on the %s list yet. Use `%sallow <wallet>` to register.", list, prefix)
}

func registeredReply(list, addr string) string {
	return fmt.Sprintf("You are on the %s list with `%s`.", list, wallet.Checksum(addr))
}

func rolesReply(held []string, list string) string {
	return fmt.Sprintf("Your recognized roles: %s. Registrations go to the %s list.", strings.Join(held, ", "), list)
}

func unknownListReply(list string, recognized []string) string {
	return fmt.Sprintf("There is no %s list. Lists: %s.", list, strings.Join(recognized, ", "))
}

func countReply(n int64, list string) string {
	noun := "wallets"
	if n == 1 {
		noun = "wallet"
	}
	if list == "" {
		return fmt.Sprintf("%d %s registered.", n, noun)
	}
	return fmt.Sprintf("%d %s on the %s list.", n, noun, list)
}

func checkIDUsage(prefix string) string {
	return fmt.Sprintf("Usage: `%scheckid <user id or mention> [list]`", prefix)
}

func noEntryReply(userID string) string {
	return fmt.Sprintf("No entry for <@%s>.", userID)
}

func entryReply(e *model.ListEntry) string {
	return fmt.Sprintf("<@%s> (%s) is on the %s list with `%s`, recorded %s.",
		e.UserID, e.Username, e.ListName, wallet.Checksum(e.Wallet), e.RecordedAt.UTC().Format("2006-01-02 15:04 MST"))
}

func sacrificeAcceptedReply(role string) string {
	if role == "" {
		return "The oracle accepts your sacrifice."
	}
	return fmt.Sprintf("The oracle accepts your sacrifice. You have been granted %s.", role)
}

func slotLossReply(spin game.Spin) string {
	return fmt.Sprintf("%s\nNo luck this time.", spin)
}

func slotWinReply(spin game.Spin, role string) string {
	if role == "" {
		return fmt.Sprintf("%s\nJackpot!", spin)
	}
	return fmt.Sprintf("%s\nJackpot! You have been granted %s.", spin, role)
}

func cooldownReply(retryAfter time.Duration) string {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("Slow down. Try again in %ds.", secs)
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		return replyStoreUnavailable
	case errors.Is(err, ErrMemberLookup):
		return replyLookupFailed
	}
	return replyInternalError
}
