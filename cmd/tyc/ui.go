package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

type playerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Cash        int64  `json:"cash"`
	Active      bool   `json:"active"`
	Human       bool   `json:"human"`
	EscapeCards int    `json:"escape_cards"`
}

type playersPayload struct {
	Players []playerView `json:"players"`
}

type propertyView struct {
	ID          string `json:"id"`
	Group       string `json:"group"`
	BasePrice   int64  `json:"base_price"`
	Price       int64  `json:"price"`
	Rent        int64  `json:"rent"`
	Improvement int    `json:"improvement"`
	OwnerID     string `json:"owner_id"`
	Lien        bool   `json:"lien"`
	LienKind    string `json:"lien_kind"`
}

type propertiesPayload struct {
	Properties []propertyView `json:"properties"`
}

type auctionView struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	MinimumBid int64     `json:"minimum_bid"`
	CurrentBid int64     `json:"current_bid"`
	LeaderID   string    `json:"leader_id"`
	Status     string    `json:"status"`
	Deadline   time.Time `json:"deadline"`
}

type auctionsPayload struct {
	Auctions []auctionView `json:"auctions"`
}

type tradeView struct {
	ID     string `json:"id"`
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Status string `json:"status"`
	Reason string `json:"flag_reason"`
}

type tradesPayload struct {
	Trades []tradeView `json:"trades"`
}

type instrumentView struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Principal  int64   `json:"principal"`
	Rate       float64 `json:"rate"`
	TermLaps   int     `json:"term_laps"`
	StartLap   int     `json:"start_lap"`
	Active     bool    `json:"active"`
	Collateral string  `json:"collateral"`
}

type instrumentsPayload struct {
	Instruments []instrumentView `json:"instruments"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func renderEconomy(raw map[string]any) {
	accent.Println("\n== ECONOMY ==")
	fmt.Printf("Regime:      %v\n", raw["regime"])
	fmt.Printf("Inflation:   %v\n", raw["inflation_factor"])
	fmt.Printf("Loan rate:   %v\n", raw["quoted_loan_rate"])
	fmt.Printf("Lap:         %v\n", raw["lap"])
	fmt.Printf("Total cash:  $%v\n", raw["total_cash"])
	fmt.Printf("Fund:        $%v\n", raw["fund_balance"])
}

func renderPlayer(raw map[string]any) {
	p, err := decodeInto[playerView](raw)
	if err != nil {
		printError(err.Error())
		return
	}
	accent.Printf("\n== %s ==\n", p.Name)
	status := "active"
	if !p.Active {
		status = danger.Sprint("bankrupt")
	}
	fmt.Printf("Cash:         $%d\n", p.Cash)
	fmt.Printf("Status:       %s\n", status)
	fmt.Printf("Escape cards: %d\n", p.EscapeCards)
}

func renderPlayers(raw map[string]any) {
	payload, err := decodeInto[playersPayload](raw)
	if err != nil {
		printError(err.Error())
		return
	}
	accent.Println("\n== PLAYERS ==")
	if len(payload.Players) == 0 {
		printInfo("No players at the table.")
		return
	}
	fmt.Printf("%-14s %-18s %12s %-8s %7s\n", "ID", "NAME", "CASH", "STATUS", "ESCAPES")
	for _, p := range payload.Players {
		status := "active"
		if !p.Active {
			status = "bankrupt"
		}
		fmt.Printf("%-14s %-18s %12d %-8s %7d\n", p.ID, truncate(p.Name, 18), p.Cash, status, p.EscapeCards)
	}
}

func renderProperties(raw map[string]any) {
	payload, err := decodeInto[propertiesPayload](raw)
	if err != nil {
		printError(err.Error())
		return
	}
	accent.Println("\n== BOARD ==")
	if len(payload.Properties) == 0 {
		printInfo("No properties seeded.")
		return
	}
	fmt.Printf("%-16s %-10s %8s %8s %6s %5s %-12s %-10s\n", "ID", "GROUP", "PRICE", "BASE", "RENT", "IMPR", "OWNER", "LIEN")
	for _, p := range payload.Properties {
		owner := p.OwnerID
		if owner == "" {
			owner = "bank"
		}
		lien := "-"
		if p.Lien {
			lien = p.LienKind
		}
		fmt.Printf("%-16s %-10s %8d %8d %6d %5d %-12s %-10s\n",
			p.ID, p.Group, p.Price, p.BasePrice, p.Rent, p.Improvement, truncate(owner, 12), lien)
	}
}

func renderAuctions(raw map[string]any) {
	payload, err := decodeInto[auctionsPayload](raw)
	if err != nil {
		printError(err.Error())
		return
	}
	accent.Println("\n== AUCTIONS ==")
	if len(payload.Auctions) == 0 {
		printInfo("No active auctions.")
		return
	}
	fmt.Printf("%-10s %-16s %8s %8s %-12s %-8s %s\n", "ID", "PROPERTY", "MIN", "BID", "LEADER", "STATUS", "DEADLINE")
	for _, a := range payload.Auctions {
		leader := a.LeaderID
		if leader == "" {
			leader = "-"
		}
		fmt.Printf("%-10s %-16s %8d %8d %-12s %-8s %s\n",
			truncate(a.ID, 10), a.PropertyID, a.MinimumBid, a.CurrentBid, truncate(leader, 12), a.Status,
			a.Deadline.Local().Format(time.Kitchen))
	}
}

func renderTrades(raw map[string]any) {
	payload, err := decodeInto[tradesPayload](raw)
	if err != nil {
		printError(err.Error())
		return
	}
	accent.Println("\n== TRADES ==")
	if len(payload.Trades) == 0 {
		printInfo("No open trades.")
		return
	}
	fmt.Printf("%-10s %-12s %-12s %-10s %s\n", "ID", "FROM", "TO", "STATUS", "NOTE")
	for _, t := range payload.Trades {
		note := t.Reason
		if note == "" {
			note = "-"
		}
		fmt.Printf("%-10s %-12s %-12s %-10s %s\n",
			truncate(t.ID, 10), truncate(t.FromID, 12), truncate(t.ToID, 12), t.Status, note)
	}
}

func renderInstruments(raw map[string]any) {
	payload, err := decodeInto[instrumentsPayload](raw)
	if err != nil {
		printError(err.Error())
		return
	}
	if len(payload.Instruments) == 0 {
		return
	}
	accent.Println("\n== INSTRUMENTS ==")
	fmt.Printf("%-10s %-22s %10s %7s %6s %-16s %-8s\n", "ID", "KIND", "PRINCIPAL", "RATE", "TERM", "COLLATERAL", "STATUS")
	for _, inst := range payload.Instruments {
		status := "open"
		if !inst.Active {
			status = "closed"
		}
		collateral := inst.Collateral
		if collateral == "" {
			collateral = "-"
		}
		fmt.Printf("%-10s %-22s %10d %6.1f%% %6d %-16s %-8s\n",
			truncate(inst.ID, 10), inst.Kind, inst.Principal, inst.Rate*100, inst.TermLaps, collateral, status)
	}
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
