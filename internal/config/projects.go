package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/listkeeper/listkeeper/internal/eligibility"
)

// Project is one community's settings, keyed by its guild.
type Project struct {
	GuildID           string             `yaml:"guild_id"`
	Name              string             `yaml:"name"`
	RecognizedRoles   []string           `yaml:"recognized_roles"`
	Policy            eligibility.Policy `yaml:"policy"`
	AdminRoles        []string           `yaml:"admin_roles"`
	AllowlistChannels []string           `yaml:"allowlist_channels"`
	GameChannels      []string           `yaml:"game_channels"`
	RewardRole        string             `yaml:"reward_role"`
	OracleOdds        int                `yaml:"oracle_odds"`
	SlotSymbols       []string           `yaml:"slot_symbols"`
	GameCooldown      time.Duration      `yaml:"game_cooldown"`
}

const defaultOracleOdds = 10

// Projects is the loaded, validated projects file.
// It is never modified after loading.
type Projects struct {
	byGuild map[string]Project
	order   []string
}

type projectsFile struct {
	Projects []Project `yaml:"projects"`
}

// LoadProjects reads and validates the projects file at path.
func LoadProjects(path string) (*Projects, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects file: %w", err)
	}
	return ParseProjects(data)
}

// ParseProjects decodes a projects document. Unknown keys are rejected.
func ParseProjects(data []byte) (*Projects, error) {
	var file projectsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse projects file: %w", err)
	}

	if len(file.Projects) == 0 {
		return nil, errors.New("projects file defines no projects")
	}

	p := &Projects{byGuild: make(map[string]Project, len(file.Projects))}
	for i, proj := range file.Projects {
		if err := proj.normalize(); err != nil {
			return nil, fmt.Errorf("project %d (%q): %w", i, proj.Name, err)
		}
		if _, dup := p.byGuild[proj.GuildID]; dup {
			return nil, fmt.Errorf("project %d (%q): duplicate guild_id %s", i, proj.Name, proj.GuildID)
		}
		p.byGuild[proj.GuildID] = proj
		p.order = append(p.order, proj.GuildID)
	}

	return p, nil
}

func (p *Project) normalize() error {
	if p.GuildID == "" {
		return errors.New("guild_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if len(p.RecognizedRoles) == 0 {
		return eligibility.ErrNoRecognizedRoles
	}
	policy, err := eligibility.ParsePolicy(string(p.Policy))
	if err != nil {
		return err
	}
	p.Policy = policy

	if p.OracleOdds == 0 {
		p.OracleOdds = defaultOracleOdds
	}
	if p.OracleOdds < 0 {
		return errors.New("oracle_odds must be positive")
	}
	if p.GameCooldown < 0 {
		return errors.New("game_cooldown must not be negative")
	}
	return nil
}

// ByGuild returns the project served in guildID.
func (p *Projects) ByGuild(guildID string) (Project, bool) {
	proj, ok := p.byGuild[guildID]
	if !ok {
		return Project{}, false
	}
	return proj.clone(), true
}

// All returns every project in file order.
func (p *Projects) All() []Project {
	out := make([]Project, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byGuild[id].clone())
	}
	return out
}

// ByName returns the first project called name.
func (p *Projects) ByName(name string) (Project, bool) {
	for _, id := range p.order {
		if proj := p.byGuild[id]; proj.Name == name {
			return proj.clone(), true
		}
	}
	return Project{}, false
}

// clone copies the slices so callers cannot change the loaded settings.
func (p Project) clone() Project {
	p.RecognizedRoles = append([]string(nil), p.RecognizedRoles...)
	p.AdminRoles = append([]string(nil), p.AdminRoles...)
	p.AllowlistChannels = append([]string(nil), p.AllowlistChannels...)
	p.GameChannels = append([]string(nil), p.GameChannels...)
	p.SlotSymbols = append([]string(nil), p.SlotSymbols...)
	return p
}
