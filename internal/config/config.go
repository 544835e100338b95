// Package config loads the judge service definition file: server bind
// address, problem set and language set. The file is JSON; it is validated
// once at load and treated as read-only afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/shlex"

	"ojudge/internal/model"
)

const (
	DefaultBindAddress = "127.0.0.1"
	DefaultBindPort    = 12345
)

// Server holds the HTTP bind settings.
type Server struct {
	BindAddress string `json:"bind_address"`
	BindPort    int    `json:"bind_port"`
}

// Config is the full service definition.
type Config struct {
	Server    Server           `json:"server"`
	Problems  []model.Problem  `json:"problems"`
	Languages []model.Language `json:"languages"`
}

// rawArgv accepts either a JSON array of tokens or a single command
// string, which is shell-split.
type rawArgv []string

func (a *rawArgv) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err == nil {
		*a = tokens
		return nil
	}
	var line string
	if err := json.Unmarshal(data, &line); err != nil {
		return fmt.Errorf("command must be a string or an array of strings")
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("split command %q: %w", line, err)
	}
	*a = tokens
	return nil
}

type rawMisc struct {
	SpecialJudge        *rawArgv `json:"special_judge"`
	DynamicRankingRatio *float64 `json:"dynamic_ranking_ratio"`
}

type rawProblem struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Type     model.ProblemType `json:"type"`
	Misc     rawMisc           `json:"misc"`
	Cases    []model.Case      `json:"cases"`
	DataPack string            `json:"data_pack"`
}

type rawLanguage struct {
	Name     string  `json:"name"`
	FileName string  `json:"file_name"`
	Command  rawArgv `json:"command"`
}

type rawConfig struct {
	Server    Server        `json:"server"`
	Problems  []rawProblem  `json:"problems"`
	Languages []rawLanguage `json:"languages"`
}

// Load reads and validates a service definition file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a service definition.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg := &Config{Server: raw.Server}
	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = DefaultBindAddress
	}
	if cfg.Server.BindPort == 0 {
		cfg.Server.BindPort = DefaultBindPort
	}

	for _, rp := range raw.Problems {
		p := model.Problem{
			ID:       rp.ID,
			Name:     rp.Name,
			Type:     rp.Type,
			Cases:    rp.Cases,
			DataPack: rp.DataPack,
		}
		if rp.Misc.SpecialJudge != nil {
			p.Misc.SpecialJudge = []string(*rp.Misc.SpecialJudge)
		}
		p.Misc.DynamicRankingRatio = rp.Misc.DynamicRankingRatio
		cfg.Problems = append(cfg.Problems, p)
	}
	for _, rl := range raw.Languages {
		cfg.Languages = append(cfg.Languages, model.Language{
			Name:     rl.Name,
			FileName: rl.FileName,
			Command:  []string(rl.Command),
		})
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seenProblems := make(map[int64]bool, len(c.Problems))
	for _, p := range c.Problems {
		if seenProblems[p.ID] {
			return fmt.Errorf("conflicting problem id %d", p.ID)
		}
		seenProblems[p.ID] = true
		switch p.Type {
		case model.ProblemStandard, model.ProblemStrict, model.ProblemSPJ, model.ProblemDynamicRanking:
		default:
			return fmt.Errorf("problem %d: unknown type %q", p.ID, p.Type)
		}
		if p.Type == model.ProblemDynamicRanking {
			if r := p.Misc.DynamicRankingRatio; r != nil && (*r < 0 || *r > 1) {
				return fmt.Errorf("problem %d: dynamic ranking ratio %v out of [0,1]", p.ID, *r)
			}
		}
	}

	seenLanguages := make(map[string]bool, len(c.Languages))
	for _, l := range c.Languages {
		if seenLanguages[l.Name] {
			return fmt.Errorf("conflicting language name %q", l.Name)
		}
		seenLanguages[l.Name] = true
		if len(l.Command) == 0 {
			return fmt.Errorf("language %q: empty command", l.Name)
		}
		if l.FileName == "" {
			return fmt.Errorf("language %q: empty file name", l.Name)
		}
	}
	return nil
}

// Problem returns the problem with the given id.
func (c *Config) Problem(id int64) (model.Problem, bool) {
	for _, p := range c.Problems {
		if p.ID == id {
			return p, true
		}
	}
	return model.Problem{}, false
}

// Language returns the language with the given name.
func (c *Config) Language(name string) (model.Language, bool) {
	for _, l := range c.Languages {
		if l.Name == name {
			return l, true
		}
	}
	return model.Language{}, false
}
