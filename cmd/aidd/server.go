package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aidchain/core"
	"aidchain/crypto"
	"aidchain/indexer"
	"aidchain/integrations/exports"
	"aidchain/integrations/webhooks"
	"aidchain/storage/journal"
)

// service exposes read-only ledger state and report generation over HTTP.
// Mutating ledger operations are not reachable from this surface.
type service struct {
	ledger    *core.Ledger
	journal   *journal.Journal
	index     *indexer.Indexer
	notifier  *webhooks.Dispatcher
	hub       *eventHub
	auth      *authenticator
	exportDir string
	currency  string
	// pseudonymKey keys beneficiary identifiers in exported reports.
	pseudonymKey []byte
	logger       *slog.Logger
	now          func() time.Time
}

type statusResponse struct {
	Sequence       uint64 `json:"sequence"`
	StateRoot      string `json:"stateRoot"`
	TotalDeposits  string `json:"totalDeposits"`
	TotalDeployed  string `json:"totalDeployed"`
	TotalYield     string `json:"totalYield"`
	RedemptionsCnt uint64 `json:"redemptions"`
}

// maxPageSize bounds every paginated listing.
const maxPageSize uint64 = 500

var (
	errStreamDisabled  = errors.New("event stream disabled")
	errIndexerDisabled = errors.New("indexer disabled")
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.handleStatus)
	r.Get("/balances/{address}", s.handleBalance)
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", s.handleReceipts)
		r.Get("/{sequence}", s.handleReceipt)
	})
	r.Get("/merchants", s.handleMerchants)
	r.Get("/donors/top", s.handleTopDonors)
	r.Get("/impact/marketplace", s.handleMarketplace)
	r.Get("/impact/owners/{address}", s.handleTokensByOwner)
	r.Get("/events/stream", s.handleEventStream)
	r.With(s.auth.middleware(scopeReports)).Post("/reports/redemptions", s.handleRedemptionReport)
	return r
}

func (s *service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Sequence:  s.ledger.Sequence(),
		StateRoot: s.ledger.StateRoot().Hex(),
	}
	err := s.ledger.View(func(m *core.Modules) error {
		deposits, err := m.Vault.TotalDeposits()
		if err != nil {
			return err
		}
		deployed, err := m.Vault.TotalDeployed()
		if err != nil {
			return err
		}
		yield, err := m.Vault.TotalYield()
		if err != nil {
			return err
		}
		count, err := m.Vouchers.RedemptionCount()
		if err != nil {
			return err
		}
		resp.TotalDeposits = amountText(deposits)
		resp.TotalDeployed = amountText(deployed)
		resp.TotalYield = amountText(yield)
		resp.RedemptionsCnt = count
		return nil
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *service) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.ledger.TokenBalance(addr)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": crypto.Format(addr), "balance": amountText(balance)})
}

func (s *service) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.fail(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	from, err := queryUint(r, "from", 1)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryLimit(r, 50)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.journal.Range(from, limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *service) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.fail(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	raw := chi.URLParam(r, "sequence")
	var (
		entry journal.Entry
		err   error
	)
	if seq, parseErr := strconv.ParseUint(raw, 10, 64); parseErr == nil {
		entry, err = s.journal.Get(seq)
	} else {
		entry, err = s.journal.ByID(raw)
	}
	if errors.Is(err, journal.ErrNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *service) handleMerchants(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	rows, err := s.index.MerchantsByCategory(r.URL.Query().Get("category"), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *service) handleTopDonors(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	limit, err := queryLimit(r, 10)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	rows, err := s.index.TopDonors(limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *service) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	limit, err := queryLimit(r, 50)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	rows, err := s.index.Marketplace(limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *service) handleTokensByOwner(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	rows, err := s.index.TokensByOwner(crypto.Format(addr))
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *service) handleRedemptionReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w) {
		return
	}
	programID, err := queryUint(r, "program", 0)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	filter := indexer.RedemptionFilter{ProgramID: programID}
	if merchant := strings.TrimSpace(r.URL.Query().Get("merchant")); merchant != "" {
		addr, err := crypto.ParseAddress(merchant)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
		filter.Merchant = crypto.Format(addr)
	}
	now := s.now().UTC()
	manifest, err := exports.WriteRedemptionReport(s.index, filter, exports.ReportOptions{
		Dir:          s.exportDir,
		Name:         fmt.Sprintf("redemptions-%s-%s", now.Format("20060102T150405Z"), uuid.NewString()),
		Currency:     s.currency,
		PseudonymKey: s.pseudonymKey,
		Now:          now,
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if s.notifier != nil {
		payload := webhooks.ReportPayload{
			Rows:        manifest.Rows,
			ExportURLs:  []string{manifest.CSVPath, manifest.JSONLPath, manifest.ParquetPath},
			Checksum:    manifest.CSVChecksum,
			GeneratedAt: manifest.GeneratedAt,
		}
		if err := s.notifier.EnqueueReport(payload); err != nil {
			s.logger.Warn("report webhook not queued", "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, manifest)
}

func (s *service) requireIndex(w http.ResponseWriter) bool {
	if s.index == nil {
		s.fail(w, http.StatusNotFound, errIndexerDisabled)
		return false
	}
	return true
}

func (s *service) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryUint(r *http.Request, key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// queryLimit parses the page size query parameter, capped at maxPageSize.
func queryLimit(r *http.Request, fallback uint64) (int, error) {
	limit, err := queryUint(r, "limit", fallback)
	if err != nil {
		return 0, err
	}
	if limit == 0 {
		return 0, errors.New("invalid limit: must be positive")
	}
	return int(min(limit, maxPageSize)), nil
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
