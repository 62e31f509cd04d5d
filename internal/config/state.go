package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"

	"github.com/danpeer/peernode/peernode/wire"
)

// groupsKey is the INI key under which a section's pipe-delimited group
// list is stored (spec.md §6 "Persisted state").
const groupsKey = "groups"

// generalSectionName is the section holding global "net" flags and the
// globally saved ("join <group> all") group list.
const generalSectionName = "General"

// State is the on-disk INI mirror of an operator's persisted flags and
// saved group memberships: a General section for global flags, and one
// section per full_name for that peer's saved groups (spec.md §6
// "Persisted state"). It is a thin wrapper over gopkg.in/ini.v1, the
// closest ecosystem analogue to the teacher's config-via-library habit
// (internal/config elsewhere uses gopkg.in/yaml.v3) since the pack has
// no INI precedent of its own to ground on directly (see DESIGN.md).
type State struct {
	path string
	file *ini.File
}

// LoadState loads the INI file at path, creating an empty in-memory
// document if it does not yet exist.
func LoadState(path string) (*State, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &State{path: path, file: ini.Empty()}, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", path, err)
	}
	return &State{path: path, file: f}, nil
}

// Save writes the INI document back to its path, archiving whatever was
// there before (config.Archive).
func (s *State) Save() error {
	if _, err := os.Stat(s.path); err == nil {
		if err := Archive(s.path); err != nil {
			return fmt.Errorf("save state: archive previous: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := s.file.SaveTo(tmp); err != nil {
		return fmt.Errorf("save state: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save state: rename: %w", err)
	}
	return nil
}

func (s *State) section(name string) *ini.Section {
	if name == "" {
		name = generalSectionName
	}
	sec, err := s.file.GetSection(name)
	if err != nil {
		sec, _ = s.file.NewSection(name)
	}
	return sec
}

// sectionForScope resolves the "join/leave <group> [all|save]" scope
// keyword to an INI section name: "all" is the shared General section,
// anything else (including "save") is the caller-supplied peer's own
// full_name section.
func sectionForScope(scope, fullPeerName string) string {
	if scope == "all" {
		return generalSectionName
	}
	return fullPeerName
}

// Groups returns the pipe-delimited group list stored under section,
// parsed per spec.md §6's array convention (peernode/wire.ParseArray).
func (s *State) Groups(section string) []string {
	return wire.ParseArray(s.section(section).Key(groupsKey).String())
}

// SetGroups stores groups under section, serialized with the operator's
// live front_delimiter convention.
func (s *State) SetGroups(section string, groups []string, frontDelimiter bool) {
	s.section(section).Key(groupsKey).SetValue(wire.CreateArray(groups, frontDelimiter))
}

// SaveJoin records that group was joined under the given scope ("all" or
// a peer's own full_name via "save"), appending it to that section's
// saved group list if not already present.
func (s *State) SaveJoin(scope, fullPeerName, group string, frontDelimiter bool) {
	section := sectionForScope(scope, fullPeerName)
	groups := s.Groups(section)
	for _, g := range groups {
		if g == group {
			return
		}
	}
	s.SetGroups(section, append(groups, group), frontDelimiter)
}

// SaveLeave removes group from the saved list under the given scope.
func (s *State) SaveLeave(scope, fullPeerName, group string, frontDelimiter bool) {
	section := sectionForScope(scope, fullPeerName)
	groups := s.Groups(section)
	out := groups[:0]
	for _, g := range groups {
		if g != group {
			out = append(out, g)
		}
	}
	s.SetGroups(section, out, frontDelimiter)
}

// AllSavedGroups returns the union of the General section's groups and
// the given peer's own saved groups, for replaying at startup.
func (s *State) AllSavedGroups(fullPeerName string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range s.Groups(generalSectionName) {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	for _, g := range s.Groups(fullPeerName) {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// GeneralFlag returns the raw string value of a global "net" flag
// (spec.md §6 operator command table), and whether it was present.
func (s *State) GeneralFlag(key string) (string, bool) {
	k := s.section(generalSectionName).Key(key)
	if k.Value() == "" {
		return "", false
	}
	return k.Value(), true
}

// SetGeneralFlag persists a global "net" flag's value, e.g. "on"/"off"
// for toggles or a duration string for timeouts.
func (s *State) SetGeneralFlag(key, value string) {
	s.section(generalSectionName).Key(key).SetValue(value)
}

// GeneralBoolFlag parses a flag stored as "on"/"off" (spec.md §6's flag
// convention), returning def if unset or unrecognized.
func (s *State) GeneralBoolFlag(key string, def bool) bool {
	v, ok := s.GeneralFlag(key)
	if !ok {
		return def
	}
	switch v {
	case "on":
		return true
	case "off":
		return false
	default:
		return def
	}
}
