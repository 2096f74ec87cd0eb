package cmd

import (
	"errors"
	"fmt"
	"time"

	healthgrpc "forum-keeper/grpc"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	healthAddress string
	healthTimeout time.Duration
)

var errNoHealthAddress = errors.New("no health address: pass --address or set health.address")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ask a running forum-keeper whether it is serving",
	Long: `Queries the grpc.health.v1 service of a running instance and exits
non-zero unless it reports SERVING. Suitable as a container health check.

Examples:
  forum-keeper health                            # Uses health.address from the config
  forum-keeper health --address 127.0.0.1:50051`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthAddress, "address", "", "Health server address (default health.address)")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "Timeout for the check")
}

func runHealth(cmd *cobra.Command, args []string) error {
	addr := healthAddress
	if addr == "" {
		addr = v.GetString("health.address")
	}
	if addr == "" {
		return errNoHealthAddress
	}

	c, err := healthgrpc.NewClient(addr, healthTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer c.Close()

	status, err := c.Check(cmd.Context(), healthgrpc.ServiceName)
	if err != nil {
		return fmt.Errorf("health check against %s: %w", c.GetServerAddress(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.GetServerAddress(), status)
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("forum-keeper is %s", status)
	}
	return nil
}
