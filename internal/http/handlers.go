package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/dispatch"
	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/matcher"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/pricing"
)

// Server exposes the dispatch engine over JSON/HTTP and pushes events to
// websocket sessions.
type Server struct {
	engine   *dispatch.Engine
	ws       *notify.WSRegistry
	logger   *slog.Logger
	validate *validator.Validate
	mux      *mux.Router
}

// NewServer builds the router. ws may be nil when push is disabled.
func NewServer(engine *dispatch.Engine, ws *notify.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{
		engine:   engine,
		ws:       ws,
		logger:   logger,
		validate: validator.New(),
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/riders", s.handleRegisterRider).Methods(http.MethodPost)
	api.HandleFunc("/drivers", s.handleRegisterDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers/available", s.handleAvailableDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}", s.handleGetDriver).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}/location", s.handleDriverLocation).Methods(http.MethodPut)
	api.HandleFunc("/drivers/{id}/status", s.handleDriverStatus).Methods(http.MethodPut)
	api.HandleFunc("/rides", s.handleRequestRide).Methods(http.MethodPost)
	api.HandleFunc("/rides", s.handleListRides).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/status", s.handleRideStatus).Methods(http.MethodPut)
	api.HandleFunc("/system/status", s.handleSystemStatus).Methods(http.MethodGet)
	api.HandleFunc("/config/matching", s.handleSetMatching).Methods(http.MethodPut)
	api.HandleFunc("/config/pricing", s.handleSetPricing).Methods(http.MethodPut)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type registerRiderRequest struct {
	ID            string           `json:"id" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	Contact       string           `json:"contact"`
	DefaultPickup *models.Location `json:"default_pickup" validate:"omitempty"`
}

type vehicleBody struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Plate    string `json:"plate" validate:"required"`
	Class    string `json:"class" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

type registerDriverRequest struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Contact  string          `json:"contact"`
	Vehicle  vehicleBody     `json:"vehicle"`
	Location models.Location `json:"location"`
	Rating   *float64        `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

type rideRequest struct {
	RiderID      string          `json:"rider_id" validate:"required"`
	Pickup       models.Location `json:"pickup"`
	Dropoff      models.Location `json:"dropoff"`
	Mode         string          `json:"mode"`
	VehicleClass string          `json:"vehicle_class" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type matchingRequest struct {
	Policy string `json:"policy" validate:"required"`
}

type pricingRequest struct {
	Surge       float64 `json:"surge" validate:"omitempty,gt=0,lte=5"`
	DiscountPct float64 `json:"discount_pct" validate:"gte=0,lte=100"`
	Toll        float64 `json:"toll" validate:"gte=0"`
}

func (s *Server) handleRegisterRider(w http.ResponseWriter, r *http.Request) {
	var req registerRiderRequest
	if !s.decode(w, r, &req) {
		return
	}
	var pickup models.Location
	if req.DefaultPickup != nil {
		pickup = *req.DefaultPickup
	}
	rider := models.NewRider(req.ID, req.Name, req.Contact, pickup)
	if err := s.engine.RegisterRider(r.Context(), rider); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rider)
}

func (s *Server) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req registerDriverRequest
	if !s.decode(w, r, &req) {
		return
	}
	class, ok := models.ParseVehicleClass(req.Vehicle.Class)
	if !ok {
		writeAPIError(w, apperrors.BadRequest("unknown vehicle class "+req.Vehicle.Class))
		return
	}
	v := models.Vehicle{
		ID:       req.Vehicle.ID,
		Model:    req.Vehicle.Model,
		Plate:    req.Vehicle.Plate,
		Class:    class,
		Capacity: req.Vehicle.Capacity,
	}
	driver := models.NewDriver(req.ID, req.Name, req.Contact, v, req.Location)
	if req.Rating != nil {
		driver.Rating = *req.Rating
	}
	if err := s.engine.RegisterDriver(r.Context(), driver); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, driver)
}

func (s *Server) handleAvailableDrivers(w http.ResponseWriter, r *http.Request) {
	drivers := s.engine.GetAvailableDrivers()
	if drivers == nil {
		drivers = []models.Driver{}
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := s.engine.GetDriver(id)
	if !ok {
		writeAPIError(w, apperrors.NewAPIError("not_found", "driver "+id+" not found", http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if !s.decode(w, r, &loc) {
		return
	}
	if err := s.engine.UpdateDriverLocation(r.Context(), mux.Vars(r)["id"], loc); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}
	status := models.DriverStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err := s.engine.SetDriverStatus(r.Context(), mux.Vars(r)["id"], status); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	var req rideRequest
	if !s.decode(w, r, &req) {
		return
	}
	mode := models.ModeNormal
	if req.Mode != "" {
		mode = models.RideMode(strings.ToUpper(strings.TrimSpace(req.Mode)))
	}
	class, ok := models.ParseVehicleClass(req.VehicleClass)
	if !ok {
		writeAPIError(w, apperrors.BadRequest("unknown vehicle class "+req.VehicleClass))
		return
	}
	rideID, err := s.engine.RequestRide(r.Context(), req.RiderID, req.Pickup, req.Dropoff, mode, class)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	ride, _ := s.engine.GetRide(rideID)
	writeJSON(w, http.StatusCreated, map[string]any{"ride_id": rideID, "ride": ride})
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListRides())
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ride, ok := s.engine.GetRide(id)
	if !ok {
		writeAPIError(w, apperrors.NewAPIError("not_found", "ride "+id+" not found", http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	status := models.RideStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err := s.engine.UpdateRideStatus(r.Context(), id, status); err != nil {
		writeAPIError(w, err)
		return
	}
	ride, _ := s.engine.GetRide(id)
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetSystemStatus())
}

func (s *Server) handleSetMatching(w http.ResponseWriter, r *http.Request) {
	var req matchingRequest
	if !s.decode(w, r, &req) {
		return
	}
	policy, err := matcher.ByName(req.Policy)
	if err == nil {
		err = s.engine.SetPolicy(policy)
	}
	if err != nil {
		writeAPIError(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "matching policy changed", "policy", policy.Name())
	writeJSON(w, http.StatusOK, map[string]string{"policy": policy.Name()})
}

func (s *Server) handleSetPricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if !s.decode(w, r, &req) {
		return
	}
	calc, err := pricing.Configured(req.Surge, req.DiscountPct, req.Toll)
	if err == nil {
		err = s.engine.SetCalculator(calc)
	}
	if err != nil {
		writeAPIError(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "pricing changed", "surge", req.Surge, "discount_pct", req.DiscountPct, "toll", req.Toll)
	writeJSON(w, http.StatusOK, req)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.ws == nil {
		writeAPIError(w, apperrors.NewAPIError("unavailable", "push notifications disabled", http.StatusServiceUnavailable))
		return
	}
	id := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "user_id", id, "error", err)
		return
	}
	s.ws.Add(id, conn)
	s.logger.InfoContext(r.Context(), "websocket session opened", "user_id", id)

	// sessions are push-only; reading just detects the client going away
	go func() {
		defer s.ws.RemoveConn(id, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, apperrors.BadRequest("invalid request body"))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeAPIError(w, apperrors.NewAPIError("validation_error", verrs.Error(), http.StatusBadRequest))
			return false
		}
		writeAPIError(w, apperrors.BadRequest(err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr := apperrors.FromError(err)
	writeJSON(w, apiErr.StatusCode, apiErr)
}
