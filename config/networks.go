package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"

	DefaultSpinPrice = "0.001"

	defaultIconURL = "https://lqy3lriiybxcejon.public.blob.vercel-storage.com/eLn2sv3JTDfs/minibet_voxel-OEtFw9lLeKis4YLQwHMidCdsG0Jdd4.png?iUKu"
)

// KnownEventSignatures are SpinResult topic hashes observed from deployed
// contract versions. The ABI-derived signature is always accepted in addition.
var KnownEventSignatures = []string{
	"0x8b2f242d32371a41f80f3dcf16124d8271bbedc9ded98b620290046aac8a1d8c",
	"0x5c4a8f396d7cd416a8bd3a08e0b15ee3a667a30511f11458789b5440c3c97b39",
	"0xe74057471b97cf835463160e8c3dc1c10607f253359874c66f3691ab3df705ee",
}

// NetworkConfig describes one chain deployment of the game contract.
type NetworkConfig struct {
	Name            string         `mapstructure:"name" json:"name"`
	DisplayName     string         `mapstructure:"display_name" json:"displayName"`
	ChainID         int64          `mapstructure:"chain_id" json:"chainId" validate:"gte=0"`
	RPCURL          string         `mapstructure:"rpc_url" json:"rpcUrl" validate:"omitempty,url"`
	ContractAddress common.Address `mapstructure:"contract_address" json:"contractAddress"`
	ExplorerName    string         `mapstructure:"explorer_name" json:"explorerName"`
	ExplorerAPIURL  string         `mapstructure:"explorer_api_url" json:"-" validate:"omitempty,url"`
	ExplorerTxURL   string         `mapstructure:"explorer_tx_url" json:"explorerTxUrl" validate:"omitempty,url"`
	ExplorerAPIKey  string         `mapstructure:"explorer_api_key" json:"-"`
}

// Presets returns the built-in network profiles.
func Presets() map[string]NetworkConfig {
	return map[string]NetworkConfig{
		NetworkBase: {
			Name:            NetworkBase,
			DisplayName:     "Base",
			ChainID:         8453,
			RPCURL:          "https://mainnet.base.org",
			ContractAddress: common.HexToAddress("0x79931DEa9E94F1fe240DCD7Cbf93f853B681bC7C"),
			ExplorerName:    "BaseScan",
			ExplorerAPIURL:  "https://api.basescan.org/api",
			ExplorerTxURL:   "https://basescan.org/tx",
		},
		NetworkBaseSepolia: {
			Name:            NetworkBaseSepolia,
			DisplayName:     "Base Sepolia",
			ChainID:         84532,
			RPCURL:          "https://sepolia.base.org",
			ContractAddress: common.HexToAddress("0x3C4883E9eE3FAa7A014e6c656138e7dDc049E754"),
			ExplorerName:    "BaseScan",
			ExplorerAPIURL:  "https://api-sepolia.basescan.org/api",
			ExplorerTxURL:   "https://sepolia.basescan.org/tx",
		},
	}
}

// mergePresets fills unset fields of configured networks from the preset of
// the same name and adds presets that are not configured at all.
func mergePresets(configured map[string]NetworkConfig) map[string]NetworkConfig {
	out := Presets()
	for name, n := range configured {
		p, ok := out[name]
		if !ok {
			if n.Name == "" {
				n.Name = name
			}
			out[name] = n
			continue
		}
		if n.Name == "" {
			n.Name = p.Name
		}
		if n.DisplayName == "" {
			n.DisplayName = p.DisplayName
		}
		if n.ChainID == 0 {
			n.ChainID = p.ChainID
		}
		if n.RPCURL == "" {
			n.RPCURL = p.RPCURL
		}
		if n.ContractAddress == (common.Address{}) {
			n.ContractAddress = p.ContractAddress
		}
		if n.ExplorerName == "" {
			n.ExplorerName = p.ExplorerName
		}
		if n.ExplorerAPIURL == "" {
			n.ExplorerAPIURL = p.ExplorerAPIURL
		}
		if n.ExplorerTxURL == "" {
			n.ExplorerTxURL = p.ExplorerTxURL
		}
		out[name] = n
	}
	return out
}

func (f *FrameConfig) setDefaults() {
	d := &f.Frame
	if d.Version == "" {
		d.Version = "1"
	}
	if d.Name == "" {
		d.Name = "minibet"
	}
	if d.HomeURL == "" {
		d.HomeURL = "https://minibet.vercel.app/"
	}
	if d.IconURL == "" {
		d.IconURL = defaultIconURL
	}
	if d.WebhookURL == "" {
		d.WebhookURL = strings.TrimRight(d.HomeURL, "/") + "/api/webhook"
	}
	if d.ButtonTitle == "" {
		d.ButtonTitle = "Launch minibet"
	}
	if d.SplashBackgroundColor == "" {
		d.SplashBackgroundColor = "#0052FF"
	}
}
