package app

import (
	"context"
	"fmt"

	"github.com/minischools/academy-backend/internal/platform/gcp"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/platform/openai"
	"github.com/minischools/academy-backend/internal/realtime/bus"
)

// Clients holds outbound integrations. AI and Bucket stay nil when they are
// not configured; the features that need them answer 503.
type Clients struct {
	SSEBus bus.Bus
	AI     openai.Client
	Bucket gcp.BucketService
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	sseBus, err := bus.NewSSEBus(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init SSE bus: %w", err)
	}
	out := Clients{SSEBus: sseBus}

	if ai, err := openai.NewClient(log, cfg.OpenAI); err != nil {
		log.Warn("OpenAI client disabled", "error", err)
	} else {
		out.AI = ai
	}

	if bucket, err := gcp.NewBucketService(ctx, log); err != nil {
		log.Warn("Object storage disabled", "error", err)
	} else {
		out.Bucket = bucket
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
}
