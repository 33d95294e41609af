package server

import (
	"net"

	. "hstin/gridwx/helper"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Health reports per model whether the last fetch found a run. Models are
// NOT_SERVING until their first successful fetch; the server itself ("")
// is always SERVING.
type Health struct {
	*health.Server
}

func NewHealth(models []string) *Health {
	h := &Health{Server: health.NewServer()}
	for _, m := range models {
		h.SetServingStatus(m, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// Report is used as the fetch callback of the pipeline.
func (h *Health) Report(model string, ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.SetServingStatus(model, status)
	Log.Debug().Str("model", model).Str("status", status.String()).Msg("health updated")
}

func NewGRPCServer(h *Health) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h.Server)
	reflection.Register(s)
	return s
}

func StartGRPCServer(port string, h *Health) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		Log.Fatal().Err(err).Msg("failed to start listener")
	}

	s := NewGRPCServer(h)
	Log.Info().Msgf("gRPC server listening at :%s", port)
	if err := s.Serve(lis); err != nil {
		Log.Fatal().Err(err).Msg("failed to start gRPC server")
	}
}
