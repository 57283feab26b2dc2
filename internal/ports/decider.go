package ports

import "github.com/bnema/schedule-from-videos/internal/domain"

// Decider is the decision component. Start opens one session per invocation.
type Decider interface {
	Start(state domain.StateToken) Decision
}

// Decision consumes events for one invocation and answers with commands.
// Handle is never called concurrently for the same Decision.
type Decision interface {
	Handle(event domain.Event) []domain.Command
}
