package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/allergen"
	"github.com/sells-group/allergen-risk/internal/crosscontact"
	"github.com/sells-group/allergen-risk/internal/model"
	"github.com/sells-group/allergen-risk/internal/monitoring"
	"github.com/sells-group/allergen-risk/internal/report"
	"github.com/sells-group/allergen-risk/internal/risk"
	"github.com/sells-group/allergen-risk/internal/source"
	"github.com/sells-group/allergen-risk/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the risk scoring HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.barcodeSource("off")
		if err != nil {
			return err
		}

		s := &server{
			lookup:  src,
			engine:  env.Engine,
			cross:   env.Cross,
			store:   env.Store,
			metrics: monitoring.NewMetrics(),
		}

		return startServer(ctx, s.routes(cfg.Server.AllowedOrigins), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over config.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves h on port until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// riskRequest is the POST /risk body. consider_may_contain defaults to true.
type riskRequest struct {
	Barcode            string   `json:"barcode" validate:"required,numeric,max=32"`
	UserAllergens      []string `json:"user_allergens" validate:"required,max=32"`
	ConsiderMayContain *bool    `json:"consider_may_contain"`
	ConsiderFacility   bool     `json:"consider_facility"`
	Save               bool     `json:"save"`
}

// estimateRequest is the POST /estimate body.
type estimateRequest struct {
	FacilityID               string `json:"facility_id" validate:"max=128"`
	AllergenCode             string `json:"allergen_code" validate:"required"`
	ProductCountWithAllergen int    `json:"product_count_with_allergen" validate:"gte=0,ltefield=TotalProductsAtFacility"`
	TotalProductsAtFacility  int    `json:"total_products_at_facility" validate:"gte=0,lte=1099511627776"`
}

type estimateResponse struct {
	Estimate *crosscontact.Estimate `json:"estimate"`
	Note     string                 `json:"note,omitempty"`
}

const noEvidenceNote = "facility reports no products; no evidence"

func newEstimateResponse(est crosscontact.Estimate, ok bool) estimateResponse {
	if !ok {
		return estimateResponse{Note: noEvidenceNote}
	}
	return estimateResponse{Estimate: &est}
}

// server holds the HTTP handlers' collaborators. store may be nil, in which
// case saving and /stats are unavailable.
type server struct {
	lookup  source.ProductSource
	engine  *risk.Engine
	cross   *crosscontact.Model
	store   store.Store
	metrics *monitoring.Metrics
}

func (s *server) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)
	r.Get("/allergens", s.handleAllergens)
	r.Post("/risk", s.handleRisk)
	r.Post("/estimate", s.handleEstimate)
	r.Get("/stats", s.handleStats)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleAllergens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, allergenEntries(report.Language(r.URL.Query().Get("lang"))))
}

func (s *server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	codes, err := allergen.ResolveAll(req.UserAllergens)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mayContain := true
	if req.ConsiderMayContain != nil {
		mayContain = *req.ConsiderMayContain
	}
	profile := model.NewUserAllergyProfile(codes, mayContain, req.ConsiderFacility)

	ctx := r.Context()
	p, result, err := assessProduct(ctx, s.lookup, s.engine, req.Barcode, profile)
	if err != nil {
		log := zap.L().With(zap.String("barcode", req.Barcode))
		if errors.Is(err, source.ErrNotFound) {
			s.observeLookupError("not_found")
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		s.observeLookupError("upstream")
		log.Error("product lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "product lookup failed")
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveAssessment(p.Source, risk.Label(result.FinalScore), result)
	}
	if req.Save && s.store != nil {
		if err := saveAssessment(ctx, s.store, p, result); err != nil {
			zap.L().Warn("save assessment failed", zap.String("barcode", req.Barcode), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, newAssessmentResponse(p, result))
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	code, ok := allergen.Resolve(req.AllergenCode)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown allergen %q", req.AllergenCode))
		return
	}

	p := model.FacilityAllergenProfile{
		FacilityID:               req.FacilityID,
		AllergenCode:             code,
		ProductCountWithAllergen: req.ProductCountWithAllergen,
		TotalProductsAtFacility:  req.TotalProductsAtFacility,
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	est, ok := s.cross.Estimate(p)
	writeJSON(w, http.StatusOK, newEstimateResponse(est, ok))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	var hours int
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid hours %q", v))
			return
		}
		hours = n
	}
	snap, err := monitoring.NewCollector(s.store).Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "collect stats failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) observeLookupError(kind string) {
	if s.metrics != nil {
		s.metrics.ObserveLookupError(kind)
	}
}

// decodeAndValidate decodes the JSON body into v and runs struct
// validation. It writes a 400 and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
