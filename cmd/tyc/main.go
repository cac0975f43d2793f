package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "tycoon/internal/cli"
	"tycoon/internal/config"
	"tycoon/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	adminToken := cfg.AdminToken

	root := &cobra.Command{
		Use:          "tyc",
		Short:        "Tycoon table client",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "table server base URL")

	root.AddCommand(
		newJoinCmd(&apiBase, &adminToken),
		newLeaveCmd(),
		newStatusCmd(&apiBase, &adminToken),
		newEconomyCmd(&apiBase, &adminToken),
		newPlayersCmd(&apiBase, &adminToken),
		newPropertiesCmd(&apiBase, &adminToken),
		newAuctionsCmd(&apiBase, &adminToken),
		newTradesCmd(&apiBase, &adminToken),
		newFundCmd(&apiBase, &adminToken),
		newLapCmd(&apiBase, &adminToken),
		newSyncCmd(&apiBase, &adminToken),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase, adminToken *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), strings.TrimSpace(*adminToken))
}

func reqContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newJoinCmd(apiBase, adminToken *string) *cobra.Command {
	var cash int64
	cmd := &cobra.Command{
		Use:   "join PLAYER_ID [NAME]",
		Short: "Register a player on the table and pin this client to it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			playerID := strings.TrimSpace(args[0])
			name := playerID
			if len(args) > 1 {
				name = args[1]
			}
			ctx, cancel := reqContext(cmd)
			defer cancel()
			client := newClient(apiBase, adminToken)
			if _, err := client.AddPlayer(ctx, playerID, name, cash, true); err != nil {
				return err
			}
			if err := cl.SaveProfile(cl.Profile{
				BaseURL:  client.BaseURL,
				PlayerID: playerID,
				Name:     name,
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Joined as %s with $%d.", playerID, cash))
			return nil
		},
	}
	cmd.Flags().Int64Var(&cash, "cash", 1500, "starting cash")
	return cmd
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the saved table profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Profile cleared.")
			return nil
		},
	}
}

func newStatusCmd(apiBase, adminToken *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the economy and your balance sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			client := newClient(apiBase, adminToken)
			econ, err := client.Economy(ctx)
			if err != nil {
				return err
			}
			renderEconomy(econ)
			profile, err := cl.LoadProfile()
			if err != nil {
				return nil
			}
			player, err := client.PlayerState(ctx, profile.PlayerID)
			if err != nil {
				return err
			}
			renderPlayer(player)
			instruments, err := client.PlayerInstruments(ctx, profile.PlayerID)
			if err != nil {
				return err
			}
			renderInstruments(instruments)
			return nil
		},
	}
}

func newEconomyCmd(apiBase, adminToken *string) *cobra.Command {
	return &cobra.Command{
		Use:   "economy",
		Short: "Show the current regime, inflation factor and loan rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			econ, err := newClient(apiBase, adminToken).Economy(ctx)
			if err != nil {
				return err
			}
			renderEconomy(econ)
			return nil
		},
	}
}

func newPlayersCmd(apiBase, adminToken *string) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List players at the table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).ListPlayers(ctx)
			if err != nil {
				return err
			}
			renderPlayers(out)
			return nil
		},
	}
}

func newPropertiesCmd(apiBase, adminToken *string) *cobra.Command {
	properties := &cobra.Command{
		Use:     "properties",
		Short:   "Board property commands",
		Aliases: []string{"props"},
	}
	properties.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List board properties with live prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).ListProperties(ctx)
			if err != nil {
				return err
			}
			renderProperties(out)
			return nil
		},
	})
	properties.AddCommand(&cobra.Command{
		Use:   "buy PROPERTY_ID",
		Short: "Buy a bank-owned property at list price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return fmt.Errorf("join required: %w", err)
			}
			ctx, cancel := reqContext(cmd)
			defer cancel()
			propertyID := strings.TrimSpace(args[0])
			_, err = newClient(apiBase, adminToken).BuyProperty(ctx, profile.PlayerID, propertyID)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method: "POST",
					Path:   "/v1/properties/" + propertyID + "/buy",
					Body:   map[string]any{"player_id": profile.PlayerID},
				})
			}
			printSuccess(fmt.Sprintf("Bought %s.", propertyID))
			return nil
		},
	})
	return properties
}

func newAuctionsCmd(apiBase, adminToken *string) *cobra.Command {
	auctions := &cobra.Command{
		Use:     "auctions",
		Short:   "Property auction commands",
		Aliases: []string{"auction"},
	}
	auctions.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active auctions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).ListAuctions(ctx)
			if err != nil {
				return err
			}
			renderAuctions(out)
			return nil
		},
	})
	auctions.AddCommand(&cobra.Command{
		Use:   "start PROPERTY_ID",
		Short: "Open an auction for a bank-owned property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).StartAuction(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Auction %v opened, minimum bid $%v.", out["id"], out["minimum_bid"]))
			return nil
		},
	})
	auctions.AddCommand(&cobra.Command{
		Use:   "bid AUCTION_ID AMOUNT",
		Short: "Place a bid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return fmt.Errorf("join required: %w", err)
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).PlaceBid(ctx, strings.TrimSpace(args[0]), profile.PlayerID, amount)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bid $%d placed, deadline %v.", amount, out["deadline"]))
			return nil
		},
	})
	auctions.AddCommand(&cobra.Command{
		Use:   "pass AUCTION_ID",
		Short: "Pass on an auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return fmt.Errorf("join required: %w", err)
			}
			ctx, cancel := reqContext(cmd)
			defer cancel()
			_, err = newClient(apiBase, adminToken).PassAuction(ctx, strings.TrimSpace(args[0]), profile.PlayerID)
			if err != nil {
				return err
			}
			printInfo("Passed.")
			return nil
		},
	})
	return auctions
}

func newTradesCmd(apiBase, adminToken *string) *cobra.Command {
	trades := &cobra.Command{
		Use:     "trades",
		Short:   "Trade commands",
		Aliases: []string{"trade"},
	}
	trades.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List open trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).ListTrades(ctx)
			if err != nil {
				return err
			}
			renderTrades(out)
			return nil
		},
	})
	trades.AddCommand(&cobra.Command{
		Use:   "accept TRADE_ID",
		Short: "Accept a trade addressed to you",
		Args:  cobra.ExactArgs(1),
		RunE:  respondTradeRunE(apiBase, adminToken, true),
	})
	trades.AddCommand(&cobra.Command{
		Use:   "reject TRADE_ID",
		Short: "Reject a trade addressed to you",
		Args:  cobra.ExactArgs(1),
		RunE:  respondTradeRunE(apiBase, adminToken, false),
	})
	trades.AddCommand(&cobra.Command{
		Use:   "release TRADE_ID",
		Short: "Release a flagged trade for acceptance (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			_, err := newClient(apiBase, adminToken).ApproveTrade(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printSuccess("Trade released.")
			return nil
		},
	})
	return trades
}

func respondTradeRunE(apiBase, adminToken *string, accept bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		profile, err := cl.LoadProfile()
		if err != nil {
			return fmt.Errorf("join required: %w", err)
		}
		ctx, cancel := reqContext(cmd)
		defer cancel()
		tradeID := strings.TrimSpace(args[0])
		out, err := newClient(apiBase, adminToken).RespondTrade(ctx, tradeID, profile.PlayerID, accept)
		if err != nil {
			return queueOnNetworkError(err, syncq.Command{
				Method: "POST",
				Path:   "/v1/trades/" + tradeID + "/respond",
				Body:   map[string]any{"player_id": profile.PlayerID, "accept": accept},
			})
		}
		printSuccess(fmt.Sprintf("Trade %s is now %v.", tradeID, out["status"]))
		return nil
	}
}

func newFundCmd(apiBase, adminToken *string) *cobra.Command {
	fund := &cobra.Command{
		Use:   "fund",
		Short: "Community fund commands",
	}
	fund.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the community fund balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).FundState(ctx)
			if err != nil {
				return err
			}
			printInfo(fmt.Sprintf("Community fund balance: $%v", out["balance"]))
			return nil
		},
	})
	fund.AddCommand(newFundModifyCmd(apiBase, adminToken, "deposit", "Deposit into the community fund (admin)"))
	fund.AddCommand(newFundModifyCmd(apiBase, adminToken, "withdraw", "Withdraw from the community fund (admin)"))
	return fund
}

func newFundModifyCmd(apiBase, adminToken *string, action, short string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   action + " AMOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).ModifyFund(ctx, action, amount, reason)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Fund balance now $%v.", out["balance"]))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual adjustment", "reason recorded with the change")
	return cmd
}

func newLapCmd(apiBase, adminToken *string) *cobra.Command {
	return &cobra.Command{
		Use:   "lap",
		Short: "Advance the table one lap (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqContext(cmd)
			defer cancel()
			out, err := newClient(apiBase, adminToken).AdvanceLap(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Lap advanced to %v.", out["lap"]))
			return nil
		},
	}
}

func newSyncCmd(apiBase, adminToken *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase, adminToken)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining := make([]syncq.Command, 0, len(queue))
			replayed := 0
			for _, q := range queue {
				if _, err := client.Do(ctx, q.Method, q.Path, q.Admin, q.Body); err != nil {
					remaining = append(remaining, q)
					printError(fmt.Sprintf("Sync failed for %s %s: %v", q.Method, q.Path, err))
					continue
				}
				replayed++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", replayed, len(remaining)))
			return nil
		},
	}
}

// queueOnNetworkError holds a write command locally when the table server is
// unreachable. Structured API rejections are real answers and never queue.
func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "api status") {
		return err
	}
	if qErr := syncq.Push(cmd); qErr != nil {
		return fmt.Errorf("request failed and queueing failed: %w", qErr)
	}
	printWarn("Server unreachable. Command queued, run `tyc sync` when back online.")
	return nil
}
