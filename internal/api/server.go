// Package api serves a game session over HTTP.
// Game endpoints are public and act on the single running session.
// Admin endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/leaderboard"
	"github.com/talgya/tapajos/internal/persistence"
	"github.com/talgya/tapajos/internal/property"
)

// Server serves one game session over HTTP.
type Server struct {
	DB       *persistence.DB    // nil disables saving
	Board    *leaderboard.Board // nil disables the shared leaderboard
	Limiter  *RateLimiter       // nil disables rate limiting
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.
	Version  string // leaderboard version stamped on saved results

	// NewSource supplies randomness for a fresh game after a reset.
	NewSource func() entropy.Source

	mu          sync.Mutex // guards everything below
	sched       *engine.Scheduler
	opts        engine.Options
	savedEvents int
}

// New wraps g. opts are the rules used when the game is reset.
func New(g *engine.Game, opts engine.Options) *Server {
	s := &Server{
		opts:      opts,
		NewSource: func() entropy.Source { return entropy.Crypto{} },
	}
	s.attach(g)
	return s
}

// attach makes g the running game and wires its auto-save hooks.
func (s *Server) attach(g *engine.Game) {
	s.sched = engine.NewScheduler(g)
	s.savedEvents = 0
	s.sched.OnTurn = func(rep engine.TurnReport) {
		s.save()
	}
}

// Game returns the running game. Callers outside a handler must not use it
// while the server is serving.
func (s *Server) Game() *engine.Game {
	return s.sched.Game
}

// save persists the game and its new events. Caller holds s.mu.
func (s *Server) save() {
	if s.DB == nil {
		return
	}
	g := s.sched.Game
	if err := s.DB.SaveGame(g.State); err != nil {
		slog.Error("auto-save failed", "turn", g.Turn, "error", err)
		return
	}
	events, n := g.EventsSince(s.savedEvents)
	if err := s.DB.SaveEvents(events); err != nil {
		slog.Error("event save failed", "error", err)
		return
	}
	s.savedEvents = n
	slog.Debug("game saved", "turn", g.Turn, "events", len(events))
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	if s.Limiter != nil {
		r.Use(s.Limiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
		r.Get("/summary", s.handleSummary)
		r.Get("/events", s.handleEvents)

		r.Get("/buildings", s.handleBuildings)
		r.Get("/buildings/{id}", s.handleBuilding)
		r.Post("/buildings/{id}/{action}", s.handleAction)
		r.Get("/buildings/{id}/odds", s.handleOdds)
		r.Post("/buildings/{id}/negotiate", s.handleNegotiate)

		r.Get("/market", s.handleMarket)
		r.Post("/market/{offer}/buy", s.handleBuy)

		r.Get("/incident", s.handleIncident)
		r.Post("/incident/resolve", s.handleResolve)
		r.Post("/incident/dismiss", s.handleDismiss)

		r.Post("/turn", s.handleTurn)

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/stats", s.handleLeaderboardStats)
		r.Post("/leaderboard", s.handleSubmit)
		r.Get("/results", s.handleResults)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/admin/reset", s.handleReset)
			r.Post("/admin/snapshot", s.handleSnapshot)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "persistence", s.DB != nil)

	if s.Limiter != nil {
		go func() {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					s.Limiter.Cleanup()
				}
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.mu.Lock()
	s.save()
	s.mu.Unlock()
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeJSONError(w, http.StatusForbidden, "admin endpoints disabled (no TAPAJOS_ADMIN_KEY set)")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != s.AdminKey {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── Views ──────────────────────────────────────────────────────────────

type buildingView struct {
	*property.Building
	Name        string          `json:"name"`
	Status      property.Status `json:"status"`
	Rent        int64           `json:"monthly_rent"`
	Maintenance int64           `json:"monthly_maintenance"`
	Value       int64           `json:"value"`
	SaleNet     int64           `json:"sale_proceeds"`
	Debt        int64           `json:"debt"`
}

func (s *Server) viewBuilding(b *property.Building) buildingView {
	g := s.sched.Game
	v := buildingView{
		Building:    b,
		Name:        b.Archetype().Name,
		Status:      b.Status(),
		Rent:        b.Rent(),
		Maintenance: b.Maintenance(),
		Value:       b.Value(g.Market),
		SaleNet:     g.SaleProceeds(b),
	}
	if l, err := g.Ledger.Find(b.LoanID); err == nil {
		v.Debt = l.Balance
	}
	return v
}

type incidentView struct {
	Incident    *engine.Incident `json:"incident"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Choices     []engine.Choice  `json:"choices"`
}

// ── Handlers ───────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.sched.Game
	writeJSON(w, map[string]any{
		"name":        "Tapajos",
		"turn":        g.Turn,
		"horizon":     g.Options.Horizon,
		"cash":        g.Cash,
		"market":      g.Market,
		"buildings":   len(g.Buildings),
		"incident":    g.Incident != nil,
		"over":        g.Over,
		"persistence": s.DB != nil,
		"leaderboard": s.Board != nil,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.sched.Game.Stats())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.sched.Game.Summary()
	writeJSON(w, map[string]any{
		"summary": sum,
		"share":   sum.ShareText(),
		"over":    s.sched.Game.Over,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.sched.Game.Events
	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]buildingView, 0, len(s.sched.Game.Buildings))
	for _, b := range s.sched.Game.Buildings {
		views = append(views, s.viewBuilding(b))
	}
	writeJSON(w, views)
}

func (s *Server) handleBuilding(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.sched.Game.Building(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.viewBuilding(b))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.sched.Game

	var (
		res any
		err error
	)
	switch action {
	case "renovate":
		res, err = g.Renovate(id)
	case "event":
		res, err = g.HostEvent(id)
	case "energy":
		res, err = g.OptimizeEnergy(id)
	case "attic":
		res, err = g.StartAtticConversion(id)
	case "convert":
		res, err = g.StartConversion(id)
	case "amortize":
		res, err = g.Amortize(id)
	case "sell":
		res, err = g.Sell(id)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown action "+strconv.Quote(action))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"result": res, "cash": g.Cash})
}

func queryInt(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", engine.ErrInvalidInput, key)
	}
	return n, nil
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	raise, err := queryInt(r, "raise")
	if err != nil {
		writeError(w, err)
		return
	}
	comp, err := queryInt(r, "comp")
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.sched.Game
	id := chi.URLParam(r, "id")
	odds, err := g.Odds(id, int(raise), comp)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := g.Building(id)
	writeJSON(w, map[string]any{
		"odds": odds,
		"cost": engine.NegotiationCost(b, comp),
	})
}

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RaisePct    int   `json:"raise_pct"`
		CompPerUnit int64 `json:"comp_per_unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.sched.Game.Negotiate(chi.URLParam(r, "id"), req.RaisePct, req.CompPerUnit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"result": res, "cash": s.sched.Game.Cash})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.sched.Game
	offers := g.MarketPool
	if !g.Over {
		offers = g.EnsureMarket()
	}
	type offerView struct {
		engine.Offer
		Name        string `json:"name"`
		DownPayment int64  `json:"down_payment"`
	}
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, offerView{Offer: o, Name: o.String(), DownPayment: o.DownPayment()})
	}
	writeJSON(w, views)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Financed bool `json:"financed"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.sched.Game
	offer := chi.URLParam(r, "offer")

	var (
		b   *property.Building
		err error
	)
	if req.Financed {
		b, err = g.BuyFinanced(offer)
	} else {
		b, err = g.BuyCash(offer)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, s.viewBuilding(b))
}

func (s *Server) incidentView() *incidentView {
	g := s.sched.Game
	if g.Incident == nil {
		return nil
	}
	return &incidentView{
		Incident:    g.Incident,
		Title:       g.Incident.Title(),
		Description: g.Description(),
		Choices:     g.Choices(),
	}
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.incidentView()
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Resolution engine.Resolution `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.sched.Game.ResolveIncident(req.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"outcome": out, "cash": s.sched.Game.Cash})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sched.Game.DismissIncident(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, err := s.sched.Advance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"report":   rep,
		"cash":     s.sched.Game.Cash,
		"incident": s.incidentView(),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.Board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "leaderboard not configured")
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	top, err := s.Board.Top(r.Context(), limit)
	if err != nil {
		slog.Warn("leaderboard unavailable", "error", err)
		writeJSONError(w, http.StatusBadGateway, "leaderboard unavailable")
		return
	}
	writeJSON(w, top)
}

func (s *Server) handleLeaderboardStats(w http.ResponseWriter, r *http.Request) {
	if s.Board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "leaderboard not configured")
		return
	}
	st, err := s.Board.Stats(r.Context())
	if err != nil {
		slog.Warn("leaderboard unavailable", "error", err)
		writeJSONError(w, http.StatusBadGateway, "leaderboard unavailable")
		return
	}
	writeJSON(w, st)
}

// handleSubmit records the finished game locally and on the shared
// leaderboard when one is configured.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	if !s.sched.Game.Over {
		s.mu.Unlock()
		writeError(w, fmt.Errorf("submit score: %w", property.ErrInvalidState))
		return
	}
	sum := s.sched.Game.Summary()
	s.mu.Unlock()

	name := leaderboard.CleanName(req.Name)
	resp := map[string]any{"name": name, "summary": sum}

	if s.DB != nil {
		id, err := s.DB.SaveResult(persistence.Result{
			Name:            name,
			NetWorth:        sum.NetWorth,
			PropertyCount:   sum.PropertyCount,
			AvgSatisfaction: sum.AvgSatisfaction,
			Year:            sum.Year,
			Version:         s.Version,
		})
		if err != nil {
			slog.Error("result save failed", "error", err)
		} else {
			resp["result_id"] = id
		}
	}
	if s.Board != nil {
		err := s.Board.Submit(r.Context(), leaderboard.Entry{
			Name:     name,
			NetWorth: sum.NetWorth,
			Props:    sum.PropertyCount,
			AvgSat:   sum.AvgSatisfaction,
			Year:     sum.Year,
		})
		if err != nil {
			slog.Warn("leaderboard submit failed", "error", err)
			writeJSONError(w, http.StatusBadGateway, "leaderboard submit failed")
			return
		}
		resp["submitted"] = true
	}
	writeJSON(w, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "database not available")
		return
	}
	results, err := s.DB.Results(20)
	if err != nil {
		slog.Error("results query failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "results unavailable")
		return
	}
	writeJSON(w, results)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DB != nil {
		if err := s.DB.DeleteGame(); err != nil {
			slog.Error("reset failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "reset failed")
			return
		}
	}
	s.attach(engine.NewGame(s.opts, s.NewSource()))
	s.save()
	slog.Info("game reset")
	writeJSON(w, map[string]any{"turn": s.sched.Game.Turn, "cash": s.sched.Game.Cash})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "database not available")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.DB.SaveGame(s.sched.Game.State); err != nil {
		slog.Error("snapshot save failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	writeJSON(w, map[string]any{
		"turn":    s.sched.Game.Turn,
		"message": "snapshot saved",
	})
}

// ── Responses ──────────────────────────────────────────────────────────

// statusOf maps a game rejection to an HTTP status.
func statusOf(err error) int {
	switch engine.KindOf(err) {
	case engine.KindFunds, engine.KindState:
		return http.StatusConflict
	case engine.KindMissing:
		return http.StatusNotFound
	case engine.KindInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	var ae *engine.ActionError
	action := ""
	if errors.As(err, &ae) {
		action = ae.Action
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  err.Error(),
		"kind":   engine.KindOf(err).String(),
		"action": action,
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
