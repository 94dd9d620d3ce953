package application

import (
	"time"

	"github.com/sglre6355/jukebox/internal/modules/utility/domain"
)

// PingInteractor handles the ping use case.
type PingInteractor struct {
	latency func() time.Duration
	now     func() time.Time
}

// NewPingInteractor creates a new PingInteractor reading the gateway
// latency from latency.
func NewPingInteractor(latency func() time.Duration) *PingInteractor {
	return &PingInteractor{
		latency: latency,
		now:     time.Now,
	}
}

// Execute performs the ping operation and returns the result.
func (p *PingInteractor) Execute() *domain.PingResult {
	return domain.NewPingResult(p.latency(), p.now())
}
