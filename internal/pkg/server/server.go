package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/device"
	"github.com/anicoll/dronelink/internal/pkg/model"
	"github.com/anicoll/dronelink/internal/pkg/session"
)

const maxCommandParams = 7

type deviceService interface {
	Devices() []session.DeviceInfo
	SendCommand(uid uint64, cmd model.Command, params device.CommandParams) error
	SendCommandNoAck(uid uint64, cmd model.Command, params device.CommandParams) error
	SetMessageRate(uid uint64, messageID model.MessageID, rateHz float64) error
}

type EventReader interface {
	GetEvents(ctx context.Context, uid uint64, from, to *time.Time) (model.DeviceEvents, error)
}

type server struct {
	devices deviceService
	events  EventReader
	logger  *zap.Logger
}

func New(devices deviceService, events EventReader) *server {
	return &server{devices: devices, events: events, logger: zap.L()}
}

// Handler routes the control API and wraps it in the given middlewares, outermost first.
func (s *server) Handler(middlewares ...func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.GetHealth)
	mux.HandleFunc("GET /devices", s.GetDevices)
	mux.HandleFunc("GET /devices/{uid}/events", s.GetDeviceEvents)
	mux.HandleFunc("POST /devices/{uid}/commands", s.PostCommand)
	mux.HandleFunc("POST /devices/{uid}/message-rate", s.PostMessageRate)

	var h http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func (s *server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) GetDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.Devices())
}

func (s *server) GetDeviceEvents(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUID(r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	if s.events == nil {
		handleError(w, http.StatusNotImplemented, errors.New("event journal not configured"))
		return
	}
	from, err := parseTime(r, "from")
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTime(r, "to")
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.events.GetEvents(r.Context(), uid, from, to)
	if err != nil {
		handleError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = model.DeviceEvents{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) PostCommand(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUID(r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	req, err := unmarshalPayload[CommandRequest](r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Params) > maxCommandParams {
		handleError(w, http.StatusBadRequest, fmt.Errorf("at most %d params allowed", maxCommandParams))
		return
	}

	ack := req.Ack == nil || *req.Ack
	s.logger.Info("sending command",
		zap.Uint64("uid", uid),
		zap.Uint16("command", req.Command),
		zap.Bool("ack", ack))
	params := device.NewCommandParams(req.Params...)
	if ack {
		err = s.devices.SendCommand(uid, model.Command(req.Command), params)
	} else {
		err = s.devices.SendCommandNoAck(uid, model.Command(req.Command), params)
	}
	writeResult(w, err)
}

func (s *server) PostMessageRate(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUID(r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	req, err := unmarshalPayload[MessageRateRequest](r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Info("setting message rate",
		zap.Uint64("uid", uid),
		zap.Uint32("message_id", req.MessageID),
		zap.Float64("rate_hz", req.RateHz))
	err = s.devices.SetMessageRate(uid, model.MessageID(req.MessageID), req.RateHz)
	writeResult(w, err)
}

func writeResult(w http.ResponseWriter, err error) {
	resp := CommandResponse{Result: device.ResultOf(err).String()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, statusOf(err), resp)
}

func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, device.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, device.ErrCommandDenied):
		return http.StatusUnprocessableEntity
	case errors.Is(err, device.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, device.ErrConnection), errors.Is(err, device.ErrNoDevice):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func parseUID(r *http.Request) (uint64, error) {
	uid, err := strconv.ParseUint(r.PathValue("uid"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %q", r.PathValue("uid"))
	}
	return uid, nil
}

func parseTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &t, nil
}

func handleError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
