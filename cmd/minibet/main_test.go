package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onchaincommerce/minibet/config"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/spin"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	opts := &rootOptions{configDir: t.TempDir()}

	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Network != config.NetworkBaseSepolia {
		t.Errorf("expected default network %q, got %q", config.NetworkBaseSepolia, cfg.Network)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte("environment: test\nnetwork: base-sepolia\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	tests := []struct {
		name      string
		network   string
		logLevel  string
		wantNet   string
		wantLevel string
		wantErr   bool
	}{
		{name: "file values", wantNet: "base-sepolia"},
		{name: "network flag", network: "base", wantNet: "base"},
		{name: "log level flag", logLevel: "debug", wantNet: "base-sepolia", wantLevel: "debug"},
		{name: "unknown network", network: "mainnet", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &rootOptions{configPath: file, network: tt.network, logLevel: tt.logLevel}
			cfg, err := opts.loadConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.Network != tt.wantNet {
				t.Errorf("expected network %q, got %q", tt.wantNet, cfg.Network)
			}
			if tt.wantLevel != "" && cfg.Logging.Level != tt.wantLevel {
				t.Errorf("expected log level %q, got %q", tt.wantLevel, cfg.Logging.Level)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := parseAddress("0x1234"); err == nil {
		t.Error("expected error for short address")
	}
	addr, err := parseAddress("0x00000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatalf("parseAddress() error = %v", err)
	}
	if addr != common.HexToAddress("0xaa") {
		t.Errorf("unexpected address %s", addr.Hex())
	}
}

type scriptedChecker struct {
	states []spin.State
	errs   []error
	calls  int
}

func (s *scriptedChecker) CheckStatus(ctx context.Context) (spin.State, error) {
	i := s.calls
	s.calls++
	return s.states[i], s.errs[i]
}

func TestRecheckPending(t *testing.T) {
	errPending := errors.New("still pending")
	pending := spin.State{TxPending: true, TxHash: "0x01"}
	result := uint64(15)
	settled := spin.State{TxHash: "0x01", Result: &result, Tier: game.TierBigWin, IsTxSuccess: true}

	tests := []struct {
		name      string
		checker   *scriptedChecker
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "settles on second check",
			checker:   &scriptedChecker{states: []spin.State{pending, settled}, errs: []error{errPending, nil}},
			attempts:  3,
			wantCalls: 2,
		},
		{
			name:      "gives up after attempts",
			checker:   &scriptedChecker{states: []spin.State{pending, pending}, errs: []error{errPending, errPending}},
			attempts:  2,
			wantCalls: 2,
			wantErr:   true,
		},
		{
			name:      "stops on terminal failure",
			checker:   &scriptedChecker{states: []spin.State{{TxHash: "0x01", Error: "no logs"}}, errs: []error{errors.New("no logs")}},
			attempts:  3,
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := recheckPending(context.Background(), tt.checker, pending, errPending, tt.attempts, time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("recheckPending() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.checker.calls != tt.wantCalls {
				t.Errorf("CheckStatus calls = %d, want %d", tt.checker.calls, tt.wantCalls)
			}
			if !tt.wantErr && !state.HasResult() {
				t.Errorf("expected settled state, got %+v", state)
			}
		})
	}
}

func TestRecheckPendingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker := &scriptedChecker{}
	state, err := recheckPending(ctx, checker, spin.State{TxPending: true}, errors.New("pending"), 5, time.Hour)
	if err == nil || !state.TxPending {
		t.Errorf("expected pending state to be returned, got %+v %v", state, err)
	}
	if checker.calls != 0 {
		t.Errorf("CheckStatus should not run after cancel, got %d calls", checker.calls)
	}
}
