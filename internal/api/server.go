package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tycoon/internal/auction"
	"tycoon/internal/bank"
	"tycoon/internal/config"
	"tycoon/internal/economy"
	"tycoon/internal/events"
	"tycoon/internal/fund"
	"tycoon/internal/game"
	"tycoon/internal/ledger"
	"tycoon/internal/store"
	"tycoon/internal/trade"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	session *game.Session
	store   *store.Store // nil when running without persistence
	pub     events.Publisher
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, session *game.Session, st *store.Store, pub events.Publisher) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		session: session,
		store:   st,
		pub:     pub,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/players", s.handlePlayersList)
		r.Get("/players/{id}", s.handlePlayerState)
		r.Get("/players/{id}/instruments", s.handlePlayerInstruments)
		r.Get("/properties", s.handlePropertiesList)
		r.Get("/properties/{id}", s.handlePropertyState)
		r.Get("/economy", s.handleEconomy)
		r.Get("/fund", s.handleFundState)
		r.Get("/auctions", s.handleAuctionsList)
		r.Get("/auctions/{id}", s.handleAuctionState)
		r.Get("/trades", s.handleTradesList)
		r.Get("/trades/{id}", s.handleTradeState)

		r.Post("/auctions", s.handleStartAuction)
		r.Post("/auctions/{id}/bids", s.handlePlaceBid)
		r.Post("/auctions/{id}/pass", s.handlePassAuction)
		r.Post("/trades", s.handleProposeTrade)
		r.Post("/trades/{id}/respond", s.handleRespondTrade)
		r.Post("/loans", s.handleTakeLoan)
		r.Post("/loans/{id}/repay", s.handleRepayLoan)
		r.Post("/cds", s.handleCreateCD)
		r.Post("/cds/{id}/withdraw", s.handleWithdrawCD)
		r.Post("/helocs", s.handleTakeHELOC)
		r.Post("/properties/{id}/buy", s.handleBuyProperty)
		r.Post("/properties/{id}/rent", s.handlePayRent)
		r.Post("/properties/{id}/improve", s.handleImproveProperty)
		r.Post("/properties/{id}/mortgage", s.handleMortgage)
		r.Post("/properties/{id}/unmortgage", s.handleUnmortgage)
		r.Post("/players/{id}/go", s.handlePassGo)
		r.Post("/players/{id}/tax", s.handlePayTax)
		r.Post("/players/{id}/fund-landing", s.handleFundLanding)

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/players", s.handleAddPlayer)
			r.Post("/trades/{id}/approve", s.handleApproveTrade)
			r.Post("/fund", s.handleModifyFund)
			r.Post("/players/{id}/bankruptcy", s.handleBankruptcy)
			r.Post("/laps", s.handleLapTick)
			r.Post("/admin/snapshot", s.handleSnapshot)
			r.Post("/admin/restore", s.handleRestore)
		})
	})
}

// adminMiddleware gates operator endpoints behind the static admin token.
// Player authentication belongs to the surrounding platform, not here.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || token != s.cfg.AdminToken {
			writeError(w, http.StatusUnauthorized, "missing or invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func (s *Server) publish(evs []events.Event) {
	if s.pub == nil {
		return
	}
	for _, ev := range evs {
		s.pub.Publish(ev)
	}
}

// audit durably logs auction and trade lifecycle records. Best-effort: a
// failed append is logged inside the store, never blocks the command.
func (s *Server) audit(r *http.Request, kind, refID string, payload any) {
	if s.store == nil {
		return
	}
	_ = s.store.AppendAudit(r.Context(), kind, refID, payload)
}

func (s *Server) handlePlayersList(w http.ResponseWriter, _ *http.Request) {
	out := make([]ledger.Player, 0)
	for _, id := range s.session.Ledger.PlayerIDs() {
		if p, err := s.session.Ledger.PlayerView(id); err == nil {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": out})
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.Ledger.PlayerView(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePlayerInstruments(w http.ResponseWriter, r *http.Request) {
	out := s.session.Credit.InstrumentsFor(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]any{"instruments": out})
}

func (s *Server) handlePropertiesList(w http.ResponseWriter, _ *http.Request) {
	out := make([]ledger.Property, 0)
	for _, id := range s.session.Ledger.PropertyIDs() {
		if p, err := s.session.Ledger.PropertyView(id); err == nil {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": out})
}

func (s *Server) handlePropertyState(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.Ledger.PropertyView(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleEconomy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"regime":           s.session.Monitor.Regime().String(),
		"inflation_factor": s.session.Monitor.Factor(),
		"quoted_loan_rate": s.session.Credit.QuotedRate(),
		"lap":              s.session.Lap(),
		"total_cash":       s.session.Ledger.TotalPlayerCash(),
		"fund_balance":     s.session.Fund.Balance(),
	})
}

func (s *Server) handleFundState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": s.session.Fund.Balance(),
		"config":  s.session.Fund.Config(),
	})
}

func (s *Server) handleAuctionsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"auctions": s.session.Auctions.ActiveViews()})
}

func (s *Server) handleAuctionState(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.Auctions.View(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTradesList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"trades": s.session.Trades.OpenViews()})
}

func (s *Server) handleTradeState(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.Trades.View(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Cash  int64  `json:"cash"`
		Human bool   `json:"human"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.session.AddPlayer(in.ID, in.Name, in.Cash, in.Human); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": in.ID})
}

func (s *Server) handleStartAuction(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PropertyID string `json:"property_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, evs, err := s.session.StartAuction(in.PropertyID, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.audit(r, "auction_started", view.ID, view)
	s.publish(evs)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
		Amount   int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, evs, err := s.session.PlaceBid(chi.URLParam(r, "id"), in.PlayerID, in.Amount, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePassAuction(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, evs, err := s.session.PassAuction(chi.URLParam(r, "id"), in.PlayerID, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if view.Status != auction.StatusActive {
		s.audit(r, "auction_resolved", view.ID, view)
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProposeTrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FromID string      `json:"from_id"`
		ToID   string      `json:"to_id"`
		Offer  trade.Offer `json:"offer"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, evs, err := s.session.ProposeTrade(in.FromID, in.ToID, in.Offer, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.audit(r, "trade_proposed", view.ID, view)
	s.publish(evs)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleRespondTrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
		Accept   bool   `json:"accept"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, evs, err := s.session.RespondTrade(chi.URLParam(r, "id"), in.PlayerID, in.Accept, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.audit(r, "trade_resolved", view.ID, view)
	s.publish(evs)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleApproveTrade(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.ApproveTrade(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.audit(r, "trade_released", view.ID, view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTakeLoan(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
		Amount   int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inst, evs, err := s.session.TakeLoan(in.PlayerID, in.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleRepayLoan(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inst, evs, err := s.session.RepayLoan(chi.URLParam(r, "id"), in.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleCreateCD(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
		Amount   int64  `json:"amount"`
		TermLaps int    `json:"term_laps"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inst, evs, err := s.session.CreateCD(in.PlayerID, in.Amount, in.TermLaps)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleWithdrawCD(w http.ResponseWriter, r *http.Request) {
	payout, evs, err := s.session.WithdrawCD(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"payout": payout})
}

func (s *Server) handleTakeHELOC(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID   string `json:"player_id"`
		PropertyID string `json:"property_id"`
		Amount     int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inst, evs, err := s.session.TakeHELOC(in.PlayerID, in.PropertyID, in.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleBuyProperty(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evs, err := s.session.BuyProperty(in.PlayerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePayRent(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rent, err := s.session.PayRent(in.PlayerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rent": rent})
}

func (s *Server) handleImproveProperty(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, evs, err := s.session.ImproveProperty(in.PlayerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleMortgage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, evs, err := s.session.MortgageProperty(in.PlayerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"mortgage_value": value})
}

func (s *Server) handleUnmortgage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cost, evs, err := s.session.UnmortgageProperty(in.PlayerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"cost": cost})
}

func (s *Server) handlePassGo(w http.ResponseWriter, r *http.Request) {
	if err := s.session.PassGo(chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePayTax(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Reason == "" {
		in.Reason = "tax"
	}
	evs, err := s.session.PayTax(chi.URLParam(r, "id"), in.Amount, in.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFundLanding(w http.ResponseWriter, r *http.Request) {
	paid, evs, err := s.session.FundLanding(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"paid": paid})
}

func (s *Server) handleModifyFund(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Action string `json:"action"`
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, evs, err := s.session.ModifyCommunityFund(in.Action, in.Amount, in.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *Server) handleBankruptcy(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CreditorID string `json:"creditor_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, evs, err := s.session.DeclareBankruptcy(chi.URLParam(r, "id"), in.CreditorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.audit(r, "bankruptcy", result.PlayerID, result)
	s.publish(evs)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLapTick(w http.ResponseWriter, r *http.Request) {
	evs := s.session.LapTick()
	s.publish(evs)
	writeJSON(w, http.StatusOK, map[string]any{"lap": s.session.Lap()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	if err := s.store.SaveSnapshot(r.Context(), s.session.Snapshot()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	snap, found, err := s.store.LoadSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no snapshot to restore")
		return
	}
	s.session.Restore(snap)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "lap": s.session.Lap()})
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses:
// validation 400, concurrency conflicts 409, debt-cap violations 422 with
// the computed cap, missing references 404, everything else 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var capErr *bank.DebtCapError
	if errors.As(err, &capErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       capErr.Error(),
			"cap":         capErr.Cap,
			"outstanding": capErr.Outstanding,
			"requested":   capErr.Requested,
		})
		return
	}
	switch {
	case errors.Is(err, ledger.ErrPlayerNotFound),
		errors.Is(err, ledger.ErrPropertyNotFound),
		errors.Is(err, bank.ErrInstrumentNotFound),
		errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, trade.ErrTradeNotFound):
		s.log.Error("missing reference", "err", err)
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auction.ErrAuctionResolved),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrAlreadyActive),
		errors.Is(err, trade.ErrTradeTerminal),
		errors.Is(err, trade.ErrTradeExpired),
		errors.Is(err, trade.ErrTradeInvalidated),
		errors.Is(err, trade.ErrTradeFlagged):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrPlayerInactive),
		errors.Is(err, ledger.ErrNotOwner),
		errors.Is(err, ledger.ErrPropertyLiened),
		errors.Is(err, ledger.ErrNoLien),
		errors.Is(err, ledger.ErrDuplicateID),
		errors.Is(err, auction.ErrNotBankOwned),
		errors.Is(err, auction.ErrNotEligible),
		errors.Is(err, auction.ErrAlreadyPassed),
		errors.Is(err, auction.ErrBelowMinimum),
		errors.Is(err, bank.ErrBelowMinimum),
		errors.Is(err, bank.ErrBadTerm),
		errors.Is(err, bank.ErrInstrumentClosed),
		errors.Is(err, bank.ErrOverEquityLimit),
		errors.Is(err, trade.ErrSelfTrade),
		errors.Is(err, trade.ErrNotCounterparty),
		errors.Is(err, trade.ErrNotEnoughEscapes),
		errors.Is(err, trade.ErrTradeNotFlagged),
		errors.Is(err, economy.ErrNotFullGroup),
		errors.Is(err, economy.ErrAlreadyImproved),
		errors.Is(err, fund.ErrInsufficientBalance),
		errors.Is(err, fund.ErrDisabled),
		errors.Is(err, fund.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("command failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
