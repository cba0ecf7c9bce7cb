package game

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	addressType = reflect.TypeOf(common.Address{})
	hashType    = reflect.TypeOf(common.Hash{})
)

// DecodeHook converts YAML/env scalars into the chain and money types used in
// configuration structs.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToDecimalHook,
		stringToAddressHook,
	)
}

func stringToDecimalHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	}
	return data, nil
}

func stringToAddressHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	switch t {
	case addressType:
		if s == "" {
			return common.Address{}, nil
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case hashType:
		return common.HexToHash(s), nil
	}
	return data, nil
}

// LoadConfigInto loads a YAML file into out (a pointer) with DecodeHook applied.
func LoadConfigInto(configPath string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(out, viper.DecodeHook(DecodeHook())); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// LoadConfigFromDirInto merges every YAML file of a directory, in name order,
// into out.
func LoadConfigFromDirInto(configDir string, out interface{}) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	entries, err := os.ReadDir(configDir)
	if err != nil {
		return fmt.Errorf("failed to read config directory: %w", err)
	}

	var yamlFiles []string
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			yamlFiles = append(yamlFiles, entry.Name())
		}
	}
	sort.Strings(yamlFiles)

	if len(yamlFiles) == 0 {
		return fmt.Errorf("no YAML files found in config directory: %s", configDir)
	}

	for _, filename := range yamlFiles {
		v.SetConfigFile(filepath.Join(configDir, filename))
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to merge config from %s: %w", filename, err)
		}
	}

	if err := v.Unmarshal(out, viper.DecodeHook(DecodeHook())); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// LoadPayoutTable reads a payout table from a file or a directory of YAML
// files. The table is expected under the "payouts" key.
func LoadPayoutTable(configPath string) (PayoutTable, error) {
	info, err := os.Stat(configPath)
	if err != nil {
		return PayoutTable{}, fmt.Errorf("failed to stat config path: %w", err)
	}

	var wrapper struct {
		Payouts PayoutTable `mapstructure:"payouts"`
	}
	if info.IsDir() {
		err = LoadConfigFromDirInto(configPath, &wrapper)
	} else {
		err = LoadConfigInto(configPath, &wrapper)
	}
	if err != nil {
		return PayoutTable{}, err
	}
	if err := wrapper.Payouts.Validate(); err != nil {
		return PayoutTable{}, fmt.Errorf("invalid payout table: %w", err)
	}
	return wrapper.Payouts, nil
}
