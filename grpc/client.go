package grpc

import (
	"context"
	"time"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client 封装 gRPC 健康检查客户端连接
type Client struct {
	conn          *grpc.ClientConn
	health        healthpb.HealthClient
	serverAddress string
	timeout       time.Duration
}

// NewClient 创建新的 gRPC 客户端
func NewClient(serverAddress string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(serverAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		conn:          conn,
		health:        healthpb.NewHealthClient(conn),
		serverAddress: serverAddress,
		timeout:       timeout,
	}, nil
}

// Close 关闭 gRPC 连接
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// GetServerAddress 获取服务器地址
func (c *Client) GetServerAddress() string {
	return c.serverAddress
}

// Check asks the server for the status of service ("" is the whole server).
func (c *Client) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
