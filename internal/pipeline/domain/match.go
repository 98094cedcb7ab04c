// Package domain holds the pure pipeline logic that needs no I/O: stage-name
// matching against free-form model output and the keyword alias table.
package domain

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// StageRef is the minimal stage view the matcher needs.
type StageRef struct {
	ID   uuid.UUID
	Name string
}

// MatchTier identifies which heuristic matched a stage name.
type MatchTier string

const (
	TierSubstring    MatchTier = "substring"
	TierWordBoundary MatchTier = "word_boundary"
	TierKeyword      MatchTier = "keyword"
)

// Match is a successful stage detection.
type Match struct {
	Stage StageRef
	Tier  MatchTier
}

// AliasTable maps a lowercased stage name to keywords that imply it.
type AliasTable map[string][]string

// DefaultAliases is the built-in keyword table for common stage names.
// Businesses with custom stage names can override it with a YAML file.
func DefaultAliases() AliasTable {
	return AliasTable{
		"greeting":      {"hello", "hi", "welcome", "intro", "introduction"},
		"qualification": {"qualify", "budget", "requirement", "requirements", "needs"},
		"scheduling":    {"schedule", "appointment", "booking", "meeting", "calendar"},
		"support":       {"help", "issue", "problem", "complaint"},
		"closing":       {"close", "purchase", "buy", "order", "deal"},
		"general":       {"general", "default", "other"},
	}
}

// LoadAliases reads an alias table from a YAML file and merges it over the
// defaults. Entries in the file replace the default keyword list for the same
// stage name. An empty path returns the defaults unchanged.
func LoadAliases(path string) (AliasTable, error) {
	table := DefaultAliases()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var custom map[string][]string
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}
	for name, keywords := range custom {
		table[strings.ToLower(name)] = keywords
	}
	return table, nil
}

// wordPattern matches needle as a whole word, case-insensitively.
func wordPattern(needle string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
}

// MatchStage matches free-form model output against the known stage names
// using three tiers, in order, first match wins:
//
//  1. case-insensitive substring containment of a stage name
//  2. stage name anchored at word boundaries
//  3. keyword aliases for the stage name
//
// Within a tier, stages are tried in catalog order. Returns false when
// nothing matches; the caller then retains the current stage.
func MatchStage(response string, stages []StageRef, aliases AliasTable) (Match, bool) {
	lowered := strings.ToLower(response)

	for _, st := range stages {
		if st.Name == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(st.Name)) {
			return Match{Stage: st, Tier: TierSubstring}, true
		}
	}

	for _, st := range stages {
		if st.Name == "" {
			continue
		}
		if wordPattern(st.Name).MatchString(response) {
			return Match{Stage: st, Tier: TierWordBoundary}, true
		}
	}

	for _, st := range stages {
		for _, keyword := range aliases[strings.ToLower(st.Name)] {
			if keyword == "" {
				continue
			}
			if wordPattern(keyword).MatchString(response) {
				return Match{Stage: st, Tier: TierKeyword}, true
			}
		}
	}

	return Match{}, false
}
