// Package wallet extracts Ethereum-style addresses from free text.
package wallet

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// addressPattern is a search, not an anchored match: junk around a valid
// address is tolerated and only the address itself is returned.
var addressPattern = regexp.MustCompile(`(?i)0x[0-9a-f]{40}`)

// Validate returns the first address found in raw.
// The second result is false when raw holds no address; name-service
// names such as "vitalik.eth" are never resolved and so never match.
func Validate(raw string) (string, bool) {
	match := addressPattern.FindString(raw)
	if match == "" {
		return "", false
	}
	return match, true
}

// Checksum renders addr in EIP-55 mixed case.
// It is display-only; stored wallets keep the casing the user sent.
func Checksum(addr string) string {
	return common.HexToAddress(addr).Hex()
}
