// Command admintoken generates an admin API token and the Argon2id hash to
// put in ADMIN_TOKEN_HASH. The plaintext is printed once and never stored.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/listkeeper/listkeeper/internal/auth"
)

type output struct {
	Token       string `json:"token"`
	Hash        string `json:"hash"`
	Fingerprint string `json:"fingerprint"`
}

func main() {
	format := flag.String("format", "plain", "Output format: plain, env or json")
	flag.Parse()

	generated, err := auth.GenerateAdminToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate admin token:", err)
		os.Exit(1)
	}

	out := output{
		Token:       generated.Plaintext,
		Hash:        generated.Hash,
		Fingerprint: generated.Fingerprint[:8],
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println("token:      ", out.Token)
		fmt.Println("hash:       ", out.Hash)
		fmt.Println("fingerprint:", out.Fingerprint)
	case "env":
		// Single quotes keep the $ separators of the PHC string literal.
		fmt.Printf("ADMIN_TOKEN_HASH='%s'\n", out.Hash)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain, env or json")
		os.Exit(1)
	}
}
