package config

import (
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/ini.v1"
)

func TestStateJoinLeaveScopes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.ini")

	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}

	s.SaveJoin("all", "server_a", "raid_main", false)
	s.SaveJoin("save", "server_a", "group_leaderx", false)

	if got := s.Groups(generalSectionName); !reflect.DeepEqual(got, []string{"raid_main"}) {
		t.Errorf("General groups = %v, want [raid_main]", got)
	}
	if got := s.Groups("server_a"); !reflect.DeepEqual(got, []string{"group_leaderx"}) {
		t.Errorf("server_a groups = %v, want [group_leaderx]", got)
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("reload LoadState() error: %v", err)
	}
	all := reloaded.AllSavedGroups("server_a")
	if !reflect.DeepEqual(all, []string{"raid_main", "group_leaderx"}) {
		t.Errorf("AllSavedGroups = %v, want [raid_main group_leaderx]", all)
	}

	reloaded.SaveLeave("all", "server_a", "raid_main", false)
	if got := reloaded.Groups(generalSectionName); len(got) != 0 {
		t.Errorf("General groups after leave = %v, want empty", got)
	}
}

func TestStateFrontDelimiter(t *testing.T) {
	s := &State{path: filepath.Join(t.TempDir(), "state.ini")}
	s.file = ini.Empty()

	s.SetGroups(generalSectionName, []string{"all", "raid_main"}, true)
	raw := s.section(generalSectionName).Key(groupsKey).String()
	if raw != "|all|raid_main" {
		t.Errorf("front-delimited raw = %q, want |all|raid_main", raw)
	}
	if got := s.Groups(generalSectionName); !reflect.DeepEqual(got, []string{"all", "raid_main"}) {
		t.Errorf("Groups() = %v, want [all raid_main]", got)
	}
}

func TestStateGeneralBoolFlag(t *testing.T) {
	s := &State{path: filepath.Join(t.TempDir(), "state.ini")}
	s.file = ini.Empty()

	if !s.GeneralBoolFlag("evasiverefresh", true) {
		t.Error("expected default true when unset")
	}
	s.SetGeneralFlag("evasiverefresh", "off")
	if s.GeneralBoolFlag("evasiverefresh", true) {
		t.Error("expected false after setting off")
	}
}
