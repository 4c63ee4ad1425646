package natsbus

import (
	"fmt"
	"os"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/swarmlab/hivehub/internal/config"
)

// Bus is the embedded NATS server backing the room event mirror. Running it
// inside the hub process means deployments get the mirror without operating a
// separate broker; out-of-process consumers (dashboards, notifier bridges)
// connect to it with plain NATS clients.
type Bus struct {
	server *natsserver.Server
}

func New(cfg config.NATSConfig) (*Bus, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create nats data dir: %w", err)
	}

	port := cfg.Port
	if port == 0 {
		// Config reserves -1 for "mirror disabled", so 0 means "any free
		// port" here and maps to the nats-server sentinel for that.
		port = natsserver.RANDOM_PORT
	}

	opts := &natsserver.Options{
		Port:      port,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  cfg.DataDir,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("nats server not ready")
	}

	return &Bus{server: ns}, nil
}

// ClientURL returns the address clients dial, with the actual bound port.
func (b *Bus) ClientURL() string {
	return b.server.ClientURL()
}

func (b *Bus) Close() {
	b.server.Shutdown()
	b.server.WaitForShutdown()
}
