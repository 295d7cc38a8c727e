package title

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func summarizeHandler(title string) grpc.MethodHandler {
	return func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		if in.GetFields()[messageRequestKey].GetStringValue() == "" {
			return &structpb.Struct{}, nil
		}
		return structpb.NewStruct(map[string]any{titleResponseKey: title})
	}
}

func startTitleServer(t *testing.T, title string) *GRPCSummarizer {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: TitleServiceName,
		HandlerType: (*any)(nil),
		Methods:     []grpc.MethodDesc{{MethodName: "Summarize", Handler: summarizeHandler(title)}},
	}, struct{}{})

	hs := health.NewServer()
	hs.SetServingStatus(TitleServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultGRPCConfig("passthrough:///bufnet")
	cfg.ConnectTimeout = 2 * time.Second
	s, err := NewGRPCSummarizer(cfg, nil, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewGRPCSummarizer() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestGRPCSummarizer_Summarize(t *testing.T) {
	t.Parallel()
	s := startTitleServer(t, "🎯 Sprint goals!")

	title, err := s.Summarize(context.Background(), "what are our sprint goals")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if title != "Sprint goals" {
		t.Errorf("Expected sanitized title, got %q", title)
	}

	empty, err := s.Summarize(context.Background(), "")
	if err != nil || empty != "" {
		t.Errorf("Expected empty title, got %q, %v", empty, err)
	}
}

func TestGRPCSummarizer_Health(t *testing.T) {
	t.Parallel()
	s := startTitleServer(t, "x")
	if err := s.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
