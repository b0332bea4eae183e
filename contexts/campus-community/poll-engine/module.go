package pollengine

import (
	"log/slog"

	httpadapter "unihub/contexts/campus-community/poll-engine/adapters/http"
	"unihub/contexts/campus-community/poll-engine/adapters/memory"
	"unihub/contexts/campus-community/poll-engine/application/commands"
	"unihub/contexts/campus-community/poll-engine/application/queries"
	"unihub/contexts/campus-community/poll-engine/domain/entities"
	"unihub/contexts/campus-community/poll-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Polls        ports.PollRepository
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	CastAttempts int
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Polls:        deps.Polls,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		SaveAttempts: deps.CastAttempts,
		Logger:       deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Polls:        deps.Polls,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		CastAttempts: deps.CastAttempts,
		Logger:       deps.Logger,
	}
	resultsUseCase := queries.ResultsUseCase{
		Polls: deps.Polls,
		Clock: deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:   pollUseCase,
			Votes:   voteUseCase,
			Results: resultsUseCase,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.Poll, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Polls:  store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
