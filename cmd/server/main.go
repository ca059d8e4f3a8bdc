package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/events/kafka"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/export"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/ledger"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/storage/memory"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/storage/postgres"
)

func main() {
	godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	store, err := buildStore(log)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup failed")
	}

	var publisher interfaces.EventPublisher
	if brokers := env("KAFKA_BROKERS", ""); brokers != "" {
		publisher = kafka.NewPublisher(strings.Split(brokers, ","))
		log.Info().Str("brokers", brokers).Msg("kafka publisher enabled")
	}

	ledgerService := ledger.NewLedger(store, publisher, log)
	exporter := export.NewExporter(store)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/contacts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		contact, err := ledgerService.CreateContact(r.Context(), req.Email, req.Name)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, contact)
	})

	mux.HandleFunc("GET /api/contacts", func(w http.ResponseWriter, r *http.Request) {
		contacts, err := ledgerService.ListContacts(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if contacts == nil {
			contacts = []models.Contact{}
		}
		writeJSON(w, http.StatusOK, contacts)
	})

	mux.HandleFunc("GET /api/contacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		contact, err := ledgerService.GetContact(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if contact == nil {
			writeJSONError(w, http.StatusNotFound, "contact not found")
			return
		}
		writeJSON(w, http.StatusOK, contact)
	})

	mux.HandleFunc("PATCH /api/contacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		contact, err := ledgerService.RenameContact(r.Context(), r.PathValue("id"), req.Name)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	})

	mux.HandleFunc("POST /api/contacts/{id}/operations", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount      decimal.Decimal      `json:"amount"`
			Type        models.OperationType `json:"type"`
			Description string               `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		contact, err := ledgerService.ApplyOperation(r.Context(), r.PathValue("id"), req.Amount, req.Type, req.Description)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	})

	mux.HandleFunc("GET /api/contacts/{id}/profile", func(w http.ResponseWriter, r *http.Request) {
		profile, err := ledgerService.GetProfile(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if profile.Operations == nil {
			profile.Operations = []models.Operation{}
		}
		writeJSON(w, http.StatusOK, profile)
	})

	mux.HandleFunc("GET /api/contacts/{id}/validate-balance", func(w http.ResponseWriter, r *http.Request) {
		report, err := ledgerService.ValidateBalance(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("GET /api/operations/export", func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseExportFilter(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		report, err := exporter.OperationsCSV(r.Context(), filter)
		if err != nil {
			writeError(w, log, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
		w.Write(report.Content)
	})

	addr := ":" + env("PORT", "8080")
	log.Info().Str("addr", addr).Msg("starting server")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// buildStore picks postgres when DATABASE_URL is set, the in-memory store
// otherwise. STORE_ATOMIC_WRITES=false selects the degraded memory store that
// cannot provide units of work, which exercises the engine's fallback path.
func buildStore(log zerolog.Logger) (interfaces.Store, error) {
	dsn := env("DATABASE_URL", "")
	if dsn == "" {
		if env("STORE_ATOMIC_WRITES", "true") == "false" {
			log.Warn().Msg("using in-memory store without atomic writes")
			return memory.NewStoreWithoutAtomicity(), nil
		}
		log.Info().Msg("using in-memory store")
		return memory.NewStore(), nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	store := postgres.NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}
	log.Info().Msg("using postgres store")
	return store, nil
}

func parseExportFilter(r *http.Request) (export.Filter, error) {
	q := r.URL.Query()
	filter := export.Filter{
		ContactID: q.Get("contactId"),
		UntilNow:  q.Get("untilNow") == "true",
	}

	if v := q.Get("startDate"); v != "" {
		from, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return filter, errors.New("startDate must be YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if v := q.Get("endDate"); v != "" {
		to, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return filter, errors.New("endDate must be YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	return filter, nil
}

// writeError maps domain errors to HTTP statuses: validation 400, not found
// 404, duplicate email 409, anything else 500.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var validationErr *ledger.ValidationError
	var notFoundErr *ledger.NotFoundError
	var duplicateErr *ledger.DuplicateEmailError

	switch {
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, validationErr.Reason)
	case errors.As(err, &notFoundErr):
		writeJSONError(w, http.StatusNotFound, "contact not found")
	case errors.As(err, &duplicateErr):
		writeJSONError(w, http.StatusConflict, "email already registered")
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
