package application

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/utility/domain"
)

// PongInteractor handles the pong use case.
type PongInteractor struct {
	selfID snowflake.ID
}

// NewPongInteractor creates a new PongInteractor for the bot user selfID.
func NewPongInteractor(selfID snowflake.ID) *PongInteractor {
	return &PongInteractor{selfID: selfID}
}

// Execute evaluates a message. Messages from the bot itself and from other
// bots are never answered.
func (p *PongInteractor) Execute(authorID snowflake.ID, authorBot bool, content string) *domain.PongResult {
	if authorID == p.selfID || authorBot {
		return &domain.PongResult{}
	}
	return domain.NewPongResult(content)
}
