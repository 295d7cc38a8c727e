package title

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// TitleServiceName is the gRPC service that summarizes titles.
	TitleServiceName  = "aice.title.v1.TitleService"
	summarizeMethod   = "/" + TitleServiceName + "/Summarize"
	titleResponseKey  = "title"
	messageRequestKey = "message"
	maxLengthKey      = "max_length"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNotServing               = errors.New("title service not serving")
)

// GRPCConfig holds configuration for the gRPC summarizer client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCSummarizer calls a title service over gRPC. Requests and responses are
// google.protobuf.Struct messages so no generated stubs are needed.
type GRPCSummarizer struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

// NewGRPCSummarizer connects to the title service and waits until the
// connection is ready so a bad address fails at startup.
func NewGRPCSummarizer(cfg GRPCConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GRPCSummarizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create title service client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("title service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to title service", "address", cfg.Address)
	return &GRPCSummarizer{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		addr:   cfg.Address,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Summarize asks the title service for a title.
func (s *GRPCSummarizer) Summarize(ctx context.Context, message string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		messageRequestKey: message,
		maxLengthKey:      MaxLength,
	})
	if err != nil {
		return "", fmt.Errorf("build summarize request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, summarizeMethod, req, resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizerUnavailable, err)
	}

	v, ok := resp.GetFields()[titleResponseKey]
	if !ok {
		return "", nil
	}
	return Sanitize(v.GetStringValue()), nil
}

// Health reports whether the title service is serving.
func (s *GRPCSummarizer) Health(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: TitleServiceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (s *GRPCSummarizer) Close() {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
