// Package negotiation_api exposes the negotiation engine over JSON/HTTP.
//
// Every response is an envelope {success, message, data?}. Failure status codes are
// per route and follow what the mobile clients and the task queue already expect.
package negotiation_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/BearBump/LiveCalls/internal/geo"
	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/BearBump/LiveCalls/internal/services/negotiation"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

// Engine is the part of negotiation.Service the handlers use.
type Engine interface {
	CreateCall(ctx context.Context, in models.Call) (*models.Call, error)
	CreateBid(ctx context.Context, in models.Bid) (*models.Bid, error)
	BargainPlaced(ctx context.Context, bidID string, executorSide bool, amount float64) error
	BidStatusChanged(ctx context.Context, bidID string, status models.BidStatus) (*models.Bid, error)
	NodeExpired(ctx context.Context, entityID, entityType string) error
	SearchCallsInArea(ctx context.Context, customerID string, center geo.Point, radiusKm float64) ([]*models.Call, error)
	ComputeGeoHash(delivery negotiation.GeoRequest, pickup *negotiation.GeoRequest) (negotiation.GeoHashResult, error)
}

type API struct {
	svc      Engine
	validate *validator.Validate
}

func New(svc Engine) *API {
	v := validator.New()
	// в ошибках валидации поля называются так же, как в JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &API{svc: svc, validate: v}
}

func (a *API) CreateCall(w http.ResponseWriter, r *http.Request) {
	in, err := decode[createCallRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusNotFound, err)
		return
	}
	call, err := a.svc.CreateCall(r.Context(), in.model())
	if err != nil {
		fail(w, r, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "call created", Data: toCallResponse(call)})
}

func (a *API) CreateBid(w http.ResponseWriter, r *http.Request) {
	in, err := decode[createBidRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusNotFound, err)
		return
	}
	bid, err := a.svc.CreateBid(r.Context(), in.model())
	if err != nil {
		fail(w, r, conflictOr(err, http.StatusNotFound), err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "bid created", Data: toBidResponse(bid)})
}

func (a *API) BargainPlaced(w http.ResponseWriter, r *http.Request) {
	in, err := decode[bargainPlacedRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusUnauthorized, err)
		return
	}
	amount, field, ok := in.amount()
	if !ok {
		fail(w, r, http.StatusUnauthorized, models.NewValidationError(field, "is required"))
		return
	}
	if err := a.svc.BargainPlaced(r.Context(), in.ID, in.IsExecutorBargain, amount); err != nil {
		fail(w, r, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "bargain placed"})
}

func (a *API) BidStatusChanged(w http.ResponseWriter, r *http.Request) {
	in, err := decode[bidStatusChangedRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusUnauthorized, err)
		return
	}
	bid, err := a.svc.BidStatusChanged(r.Context(), in.ID, models.BidStatus(in.Status))
	if err != nil {
		fail(w, r, conflictOr(err, http.StatusUnauthorized), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "bid " + in.Status, Data: toBidResponse(bid)})
}

// NodeExpired is the expiration task callback. A 5xx makes the queue retry the task.
func (a *API) NodeExpired(w http.ResponseWriter, r *http.Request) {
	in, err := decode[nodeExpiredRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusUnauthorized, err)
		return
	}
	if err := a.svc.NodeExpired(r.Context(), in.UUID, in.Type); err != nil {
		var verr *models.ValidationError
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrWrongEntityType) || errors.As(err, &verr) {
			status = http.StatusUnauthorized
		}
		fail(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "node expired"})
}

func (a *API) SearchCallsInArea(w http.ResponseWriter, r *http.Request) {
	in, err := decode[searchCallsRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	calls, err := a.svc.SearchCallsInArea(r.Context(), in.LoggedInCustomer, in.CenterPoint.point(), in.Radius)
	if err != nil {
		var verr *models.ValidationError
		status := http.StatusInternalServerError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		fail(w, r, status, err)
		return
	}
	out := make([]callResponse, 0, len(calls))
	for _, c := range calls {
		out = append(out, toCallResponse(c))
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "calls found", Data: out})
}

func (a *API) ComputeGeoHash(w http.ResponseWriter, r *http.Request) {
	in, err := decode[computeGeoHashRequest](a, w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	var pickup *negotiation.GeoRequest
	if in.Pickup != nil {
		p := in.Pickup.model()
		pickup = &p
	}
	res, err := a.svc.ComputeGeoHash(in.Delivery.model(), pickup)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "geohash computed",
		Data:    computeGeoHashResponse{Delivery: res.Delivery, Pickup: res.Pickup},
	})
}

func decode[T any](a *API, w http.ResponseWriter, r *http.Request) (T, error) {
	var in T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		return in, models.NewValidationError("", "malformed JSON body: "+err.Error())
	}
	if err := a.validate.Struct(in); err != nil {
		return in, validationError(err)
	}
	return in, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewValidationError("", err.Error())
	}
	fe := verrs[0]
	// Namespace начинается с имени структуры запроса
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	reason := "failed on '" + fe.Tag() + "'"
	if fe.Tag() == "required" {
		reason = "is required"
	}
	return models.NewValidationError(field, reason)
}

func conflictOr(err error, status int) int {
	if errors.Is(err, models.ErrCallAlreadyAttributed) {
		return http.StatusConflict
	}
	return status
}

func fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	attrs := []any{"path", r.URL.Path, "status", status, "error", err.Error()}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		attrs = append(attrs, "trace_id", sc.TraceID().String())
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Warn("request rejected", attrs...)
	}
	writeJSON(w, status, envelope{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
