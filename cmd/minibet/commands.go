package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/onchaincommerce/minibet/auth"
	"github.com/onchaincommerce/minibet/chain"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/history"
	"github.com/onchaincommerce/minibet/spin"
	"github.com/onchaincommerce/minibet/wire"
)

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func newSpinCmd(opts *rootOptions) *cobra.Command {
	var (
		count           int
		delay           time.Duration
		recheck         int
		recheckInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "spin",
		Short: "Spin with the configured signer and print each outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			d, err := opts.deps()
			if err != nil {
				return err
			}
			if d.signer == nil {
				return fmt.Errorf("no signer configured: set SIGNER_PRIVATE_KEY")
			}

			producer, err := wire.ProvideKafkaProducer(d.cfg, d.logger)
			if err != nil {
				return err
			}
			if producer != nil {
				defer producer.Close() //nolint:errcheck
			}
			audit := wire.ProvideAuditProvider(d.cfg, producer, d.logger)
			notifier := wire.ProvideNotifyProvider(d.cfg, d.network, d.logger)
			session := wire.ProvideSession(d.cfg, d.network, d.client, d.signer, notifier, audit, wire.ProvideReceiptCache(d.cfg), d.logger)

			ctx, cancel := signalContext()
			defer cancel()

			fmt.Printf("Spinning %d time(s) on %s as %s (%s ETH each)\n",
				count, d.network.DisplayName, d.signer.Address().Hex(), d.cfg.Game.SpinPrice)

			tally := map[string]int{}
			for i := 1; i <= count; i++ {
				state, err := session.Spin(ctx)
				if err != nil && state.TxPending && recheck > 0 {
					fmt.Printf("#%d waiting  %s (rechecking up to %d times)\n", i, state.TxHash, recheck)
					state, err = recheckPending(ctx, session, state, err, recheck, recheckInterval)
				}
				printSpin(i, state, err)
				if err != nil {
					tally["failed"]++
				} else {
					tally[state.Tier.String()]++
				}
				if ctx.Err() != nil {
					break
				}
				if i < count && delay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(delay):
					}
				}
			}

			fmt.Println()
			for _, k := range []string{"jackpot", "big_win", "small_win", "no_win", "failed"} {
				if tally[k] > 0 {
					fmt.Printf("  %-10s %d\n", k, tally[k])
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of spins")
	cmd.Flags().DurationVar(&delay, "delay", 2*time.Second, "Pause between spins")
	cmd.Flags().IntVar(&recheck, "recheck", 3, "Receipt rechecks for a spin still pending after the wait")
	cmd.Flags().DurationVar(&recheckInterval, "recheck-interval", 10*time.Second, "Pause before each recheck")
	return cmd
}

type pendingChecker interface {
	CheckStatus(ctx context.Context) (spin.State, error)
}

// recheckPending retries the receipt of a pending spin until it settles,
// attempts run out or ctx ends. It returns the last state seen.
func recheckPending(ctx context.Context, s pendingChecker, state spin.State, err error, attempts int, interval time.Duration) (spin.State, error) {
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return state, err
		case <-time.After(interval):
		}
		state, err = s.CheckStatus(ctx)
		if err == nil || !state.TxPending {
			return state, err
		}
	}
	return state, err
}

func printSpin(i int, s spin.State, err error) {
	switch {
	case err != nil && s.TxPending:
		fmt.Printf("#%d pending  %s\n    %s\n", i, s.TxHash, s.Error)
	case err != nil:
		msg := s.Error
		if msg == "" {
			msg = err.Error()
		}
		fmt.Printf("#%d failed   %s\n", i, msg)
		if s.TxURL != "" {
			fmt.Printf("    %s\n", s.TxURL)
		}
	case s.HasResult():
		fmt.Printf("#%d %-9s result=%d payout=%s ETH\n    %s\n", i, s.Tier, *s.Result, s.Payout, s.TxURL)
		if s.ShowShare {
			fmt.Printf("    share: %s\n", s.ShareURL)
		}
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <tx-hash>",
		Short: "Decode the spin result of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(args[0])
			if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
				return fmt.Errorf("invalid transaction hash %q", raw)
			}
			d, err := opts.deps()
			if err != nil {
				return err
			}
			resolver := wire.ProvideResolver(d.client, wire.ProvideReceiptCache(d.cfg), d.logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			outcome, err := resolver.Lookup(ctx, common.HexToHash(raw))
			if err != nil {
				if apperrors.HasCode(err, apperrors.ErrUnconfirmed) {
					fmt.Printf("Transaction %s is not mined yet.\n", raw)
					return nil
				}
				return err
			}

			spinID := "?"
			if outcome.SpinID != nil {
				spinID = outcome.SpinID.String()
			}
			fmt.Printf("Spin #%s by %s\n", spinID, outcome.Player.Hex())
			fmt.Printf("  result: %d (%s)\n", outcome.Result, outcome.Tier)
			fmt.Printf("  payout: %s ETH\n", outcome.PayoutString())
			fmt.Printf("  block:  %d\n", outcome.BlockNumber)
			fmt.Printf("  decode: %s\n", outcome.Source)
			fmt.Printf("  %s\n", game.TxURL(d.network.ExplorerTxURL, outcome.TxHash.Hex()))
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		all   bool
		pages int
	)
	cmd := &cobra.Command{
		Use:   "history <address>",
		Short: "Rebuild a player's win history from SpinResult logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			d, err := opts.deps()
			if err != nil {
				return err
			}
			redisClient, err := wire.ProvideRedisClient(d.cfg)
			if err != nil {
				return err
			}
			if redisClient != nil {
				defer redisClient.Close() //nolint:errcheck
			}
			source := wire.ProvideHistorySource(d.cfg, d.network, d.client, d.decoder, d.logger)
			svc := wire.ProvideHistoryService(d.cfg, source, d.decoder, wire.ProvideHistoryCache(d.cfg, redisClient, d.logger), d.logger)

			ctx, cancel := signalContext()
			defer cancel()

			acc := history.NewAccumulator(svc, player)
			if err := acc.Load(ctx); err != nil {
				return err
			}
			for i := 1; i < pages && acc.HasMore(); i++ {
				if _, err := acc.LoadMore(ctx); err != nil {
					return err
				}
			}

			view := history.ViewWins
			if all {
				view = history.ViewAll
			}
			records := acc.Records(view)
			if len(records) == 0 {
				fmt.Println("No spins found.")
				return nil
			}

			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SPIN\tRESULT\tTIER\tPAYOUT\tWHEN\tTX")
			for _, r := range records {
				when := r.Timestamp.Format(time.RFC3339)
				if r.IsRecent(now) {
					when += " *"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", r.SpinID, r.Result, r.Tier, r.Payout, when, game.ShortHash(r.TxHash))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if acc.HasMore() {
				fmt.Printf("More history available; rerun with --pages %d.\n", pages+1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include losing spins")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <address>",
		Short: "Print a player's contract statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			d, err := opts.deps()
			if err != nil {
				return err
			}
			stats, err := d.client.UserStats(cmd.Context(), player)
			if err != nil {
				return err
			}
			v := stats.View()
			fmt.Printf("Stats for %s on %s\n", player.Hex(), d.network.DisplayName)
			fmt.Printf("  spins:      %s\n", v.Spins)
			fmt.Printf("  winnings:   %s ETH\n", v.Winnings)
			fmt.Printf("  spent:      %s ETH\n", v.Spent)
			fmt.Printf("  net profit: %s ETH\n", v.NetProfit)
			return nil
		},
	}
}

func newJackpotCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "jackpot",
		Short: "Print the jackpot unlock progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.deps()
			if err != nil {
				return err
			}
			svc := wire.ProvideJackpotService(d.cfg, d.client, d.logger)

			if !watch {
				u, err := svc.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				printJackpot(u.IsUnlocked, u.CurrentSpins, u.SpinsNeeded, u.Progress, u.ContractBalance)
				return nil
			}

			ctx, cancel := signalContext()
			defer cancel()
			updates, stop := svc.Listen(ctx)
			defer stop()
			svc.Start(ctx)
			defer svc.Stop()

			for u := range updates {
				printJackpot(u.IsUnlocked, u.CurrentSpins, u.SpinsNeeded, u.Progress, u.ContractBalance)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling and print every change")
	return cmd
}

func printJackpot(unlocked bool, current, needed uint64, progress float64, balance decimal.Decimal) {
	status := "locked"
	if unlocked {
		status = "UNLOCKED"
	}
	fmt.Printf("[%s] jackpot %s  %d/%d spins (%.1f%%)  balance %s ETH\n",
		time.Now().Format("15:04:05"), status, current, needed, progress, balance)
}

func newWithdrawCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <eth>",
		Short: "Withdraw contract funds to the owner (0 withdraws everything)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			d, err := opts.deps()
			if err != nil {
				return err
			}
			producer, err := wire.ProvideKafkaProducer(d.cfg, d.logger)
			if err != nil {
				return err
			}
			if producer != nil {
				defer producer.Close() //nolint:errcheck
			}
			svc := wire.ProvideAdminService(d.client, d.signer, wire.ProvideAuditProvider(d.cfg, producer, d.logger), d.logger)

			ctx, cancel := signalContext()
			defer cancel()
			res, err := svc.Withdraw(ctx, amount)
			if err != nil {
				if res.TxHash != "" {
					fmt.Printf("Transaction: %s\n", game.TxURL(d.network.ExplorerTxURL, res.TxHash))
				}
				return err
			}
			fmt.Printf("Withdrew %s ETH in block %d\n  %s\n", res.Amount, res.BlockNumber, game.TxURL(d.network.ExplorerTxURL, res.TxHash))
			return nil
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Mint an admin API token for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}
			if ttl <= 0 {
				ttl = cfg.JWT.Expiration
			}
			token, err := auth.GenerateToken(cfg.JWT.Secret, addr, auth.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: jwt.expiration)")
	return cmd
}

func newManifestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Print the mini-app manifest served at /.well-known/farcaster.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg.Frame)
		},
	}
}

func newSignaturesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signatures",
		Short: "Print the accepted SpinResult event signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			sigs, err := chain.NewSignatureSet(cfg.Game.EventSignatures)
			if err != nil {
				return err
			}
			event := chain.ContractABI().Events["SpinResult"]
			fmt.Printf("ABI event: %s\n  topic0: %s\n\nAccepted signatures:\n", event.Sig, chain.SpinResultTopic().Hex())
			for i, h := range sigs.Hashes() {
				mark := ""
				if i == 0 {
					mark = "  (explorer query)"
				}
				if h == chain.SpinResultTopic() {
					mark += "  (abi)"
				}
				fmt.Printf("  %s%s\n", h.Hex(), mark)
			}
			return nil
		},
	}
}
