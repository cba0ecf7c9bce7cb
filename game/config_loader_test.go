package game

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPayoutTableFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	content := `payouts:
  result_bound: 500
  rules:
    - below: 2
      tier: 1
      payout: "0.5"
    - below: 50
      tier: 3
      payout: 0.004
`
	file := filepath.Join(tmpDir, "payouts.yaml")
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	table, err := LoadPayoutTable(file)
	if err != nil {
		t.Fatalf("LoadPayoutTable() error = %v", err)
	}

	if table.ResultBound != 500 {
		t.Errorf("Expected ResultBound 500, got %d", table.ResultBound)
	}
	if len(table.Rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(table.Rules))
	}
	if table.Rules[0].Payout.String() != "0.5" {
		t.Errorf("Expected first payout 0.5, got %s", table.Rules[0].Payout)
	}
	if table.Rules[1].Tier != TierSmallWin || table.Rules[1].Payout.String() != "0.004" {
		t.Errorf("Unexpected second rule %+v", table.Rules[1])
	}

	tier, payout := table.Classify(10)
	if tier != TierSmallWin || payout.String() != "0.004" {
		t.Errorf("Classify(10) = %d %s", tier, payout)
	}
}

func TestLoadPayoutTableFromDirMerges(t *testing.T) {
	tmpDir := t.TempDir()

	base := `payouts:
  result_bound: 1000
  rules:
    - below: 1
      tier: 1
      payout: "0.1"
`
	override := `payouts:
  result_bound: 2000
`
	if err := os.WriteFile(filepath.Join(tmpDir, "a-base.yaml"), []byte(base), 0644); err != nil {
		t.Fatalf("Failed to write base config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "b-override.yml"), []byte(override), 0644); err != nil {
		t.Fatalf("Failed to write override config: %v", err)
	}

	table, err := LoadPayoutTable(tmpDir)
	if err != nil {
		t.Fatalf("LoadPayoutTable() error = %v", err)
	}
	if table.ResultBound != 2000 {
		t.Errorf("Expected overridden ResultBound 2000, got %d", table.ResultBound)
	}
	if len(table.Rules) != 1 || table.Rules[0].Payout.String() != "0.1" {
		t.Errorf("Expected base rule to survive the merge, got %+v", table.Rules)
	}
}

func TestLoadPayoutTableRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "bad.yaml")
	content := `payouts:
  result_bound: 10
  rules:
    - below: 50
      tier: 1
      payout: "0.1"
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadPayoutTable(file); err == nil {
		t.Errorf("Expected validation error for bound below threshold")
	}
}

func TestLoadPayoutTableMissingPath(t *testing.T) {
	if _, err := LoadPayoutTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for a missing path")
	}
}
