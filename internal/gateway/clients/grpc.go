package clients

import (
	"context"
	"fmt"
	"log"

	"github.com/Quint4n4/MenuInteractivo/internal/rpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCClients struct {
	Orders     rpc.OrderServiceClient
	health     healthpb.HealthClient
	ordersConn *grpc.ClientConn
}

// NewGRPCClients dials lazily; an unreachable orders service surfaces on
// the first call, not here.
func NewGRPCClients(ordersURL string) (*GRPCClients, error) {
	ordersConn, err := grpc.NewClient(ordersURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("orders service connection failed: %v", err)
	}

	log.Printf("✅ Orders service client ready (%s)", ordersURL)
	return &GRPCClients{
		Orders:     rpc.NewOrderServiceClient(ordersConn),
		health:     healthpb.NewHealthClient(ordersConn),
		ordersConn: ordersConn,
	}, nil
}

func (c *GRPCClients) IsOrdersServiceHealthy(ctx context.Context) bool {
	if c == nil || c.health == nil {
		return false
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *GRPCClients) Close() {
	if c.ordersConn != nil {
		c.ordersConn.Close()
	}
}
