package main

import (
	"log"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// physicsService - имя сервиса в gRPC health
const physicsService = "xrigid.Physics"

// healthReporter отражает состояние потока физики в gRPC health
type healthReporter struct {
	server *health.Server
	logger *log.Logger
}

func newHealthReporter(logger *log.Logger) *healthReporter {
	h := &healthReporter{server: health.NewServer(), logger: logger}
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.server.SetServingStatus(physicsService, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Fault переводит сервис в NOT_SERVING. Сбой потока физики не восстанавливается.
func (h *healthReporter) Fault(err error) {
	h.server.SetServingStatus(physicsService, healthpb.HealthCheckResponse_NOT_SERVING)
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.logger.Printf("[Health] %s NOT_SERVING: %v", physicsService, err)
}

// Shutdown сообщает клиентам об остановке
func (h *healthReporter) Shutdown() {
	h.server.Shutdown()
}
