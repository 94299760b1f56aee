package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/listkeeper/listkeeper/internal/eligibility"
)

const sampleProjects = `
projects:
  - guild_id: "900000000000000001"
    name: blerx
    recognized_roles: [Friends, Blerxers]
    policy: last_match
    admin_roles: [Mods]
    allowlist_channels: [allowlist]
    game_channels: [altar, casino]
    reward_role: Chosen
    oracle_odds: 6
    slot_symbols: [a, b, c]
    game_cooldown: 30s
  - guild_id: "900000000000000002"
    name: glim
    recognized_roles: [OG]
`

func TestParseProjects(t *testing.T) {
	t.Parallel()

	projects, err := ParseProjects([]byte(sampleProjects))
	if err != nil {
		t.Fatalf("ParseProjects: %v", err)
	}

	blerx, ok := projects.ByGuild("900000000000000001")
	if !ok {
		t.Fatal("blerx not found")
	}
	want := Project{
		GuildID:           "900000000000000001",
		Name:              "blerx",
		RecognizedRoles:   []string{"Friends", "Blerxers"},
		Policy:            eligibility.PolicyLastMatch,
		AdminRoles:        []string{"Mods"},
		AllowlistChannels: []string{"allowlist"},
		GameChannels:      []string{"altar", "casino"},
		RewardRole:        "Chosen",
		OracleOdds:        6,
		SlotSymbols:       []string{"a", "b", "c"},
		GameCooldown:      30 * time.Second,
	}
	if diff := cmp.Diff(want, blerx); diff != "" {
		t.Errorf("blerx mismatch (-want +got):\n%s", diff)
	}

	glim, ok := projects.ByName("glim")
	if !ok {
		t.Fatal("glim not found by name")
	}
	if glim.Policy != eligibility.PolicyPriority {
		t.Errorf("default policy = %s, want priority", glim.Policy)
	}
	if glim.OracleOdds != defaultOracleOdds {
		t.Errorf("default odds = %d, want %d", glim.OracleOdds, defaultOracleOdds)
	}

	all := projects.All()
	if len(all) != 2 || all[0].Name != "blerx" || all[1].Name != "glim" {
		t.Errorf("All() order = %v", all)
	}

	if _, ok := projects.ByGuild("nope"); ok {
		t.Error("unknown guild should not resolve")
	}
}

func TestParseProjects_Immutable(t *testing.T) {
	t.Parallel()

	projects, err := ParseProjects([]byte(sampleProjects))
	if err != nil {
		t.Fatalf("ParseProjects: %v", err)
	}

	p, _ := projects.ByGuild("900000000000000001")
	p.RecognizedRoles[0] = "Hacked"
	p.Name = "hacked"

	again, _ := projects.ByGuild("900000000000000001")
	if again.RecognizedRoles[0] != "Friends" || again.Name != "blerx" {
		t.Errorf("loaded project was mutated: %+v", again)
	}
}

func TestParseProjects_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "projects: []", "no projects"},
		{"missing guild", "projects:\n  - name: x\n    recognized_roles: [A]", "guild_id"},
		{"missing name", "projects:\n  - guild_id: \"1\"\n    recognized_roles: [A]", "name"},
		{"no roles", "projects:\n  - guild_id: \"1\"\n    name: x", "no recognized roles"},
		{"bad policy", "projects:\n  - guild_id: \"1\"\n    name: x\n    recognized_roles: [A]\n    policy: random", "policy"},
		{"negative odds", "projects:\n  - guild_id: \"1\"\n    name: x\n    recognized_roles: [A]\n    oracle_odds: -1", "oracle_odds"},
		{"unknown key", "projects:\n  - guild_id: \"1\"\n    name: x\n    recognized_roles: [A]\n    colour: red", "colour"},
		{
			"duplicate guild",
			"projects:\n  - guild_id: \"1\"\n    name: x\n    recognized_roles: [A]\n  - guild_id: \"1\"\n    name: y\n    recognized_roles: [B]",
			"duplicate guild_id",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseProjects([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProjects(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "projects.yaml")
	if err := os.WriteFile(path, []byte(sampleProjects), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	projects, err := LoadProjects(path)
	if err != nil {
		t.Fatalf("LoadProjects: %v", err)
	}
	if len(projects.All()) != 2 {
		t.Errorf("loaded %d projects, want 2", len(projects.All()))
	}

	if _, err := LoadProjects(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
