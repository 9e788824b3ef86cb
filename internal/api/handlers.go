package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/services"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Forecaster is the service facade consumed by the transports.
type Forecaster interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (services.Forecast, error)
	DatasetStatus(ctx context.Context) (models.Freshness, error)
	Populations() []models.Population
}

// ForecastHandler implements ForecastEngineServer on top of a Forecaster.
type ForecastHandler struct {
	logger  *slog.Logger
	service Forecaster
}

var _ ForecastEngineServer = (*ForecastHandler)(nil)

// NewForecastHandler constructs the gRPC handler.
func NewForecastHandler(logger *slog.Logger, service Forecaster) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{logger: logger, service: service}
}

// Forecast decodes the request, runs the forecast and encodes the result.
func (h *ForecastHandler) Forecast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if h.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "forecast service not configured")
	}

	domainReq, err := FromStructForecastRequest(req)
	if err != nil {
		return nil, ToStatus(err)
	}
	h.logger.Debug("Forecast called",
		slog.String("population", string(domainReq.Population)),
		slog.String("mode", domainReq.Growth.Mode),
		slog.Int("horizon_days", domainReq.HorizonDays),
	)

	result, err := h.service.Forecast(ctx, domainReq)
	if err != nil {
		return nil, ToStatus(err)
	}
	out, err := ToStruct(ForecastPayload(result))
	if err != nil {
		h.logger.Error("encode forecast failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode forecast")
	}
	return out, nil
}

// DatasetStatus reports dataset freshness.
func (h *ForecastHandler) DatasetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "forecast service not configured")
	}
	fresh, err := h.service.DatasetStatus(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}
	out, err := ToStruct(FreshnessPayload(fresh))
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode dataset status")
	}
	return out, nil
}

// Health returns the serving state and the populations with a trained model.
func (h *ForecastHandler) Health(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	pops := []any{}
	if h.service != nil {
		for _, p := range h.service.Populations() {
			pops = append(pops, string(p))
		}
	}
	return ToStruct(map[string]any{"status": "SERVING", "populations": pops})
}

// ToStatus maps service errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case utils.IsConfiguration(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case utils.IsContractViolation(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "forecast failed")
	}
}
