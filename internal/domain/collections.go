package domain

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dmelo/painel/internal/asyncstate"
	"github.com/dmelo/painel/internal/cache"
	"github.com/dmelo/painel/internal/coordinator"
	"github.com/dmelo/painel/internal/database"
	"github.com/dmelo/painel/internal/facade"
)

// Deps carries the shared infrastructure every collection facade is built
// on. Client is mandatory; Cache and Coordinator are shared across all
// collections so invalidation and dedup see the whole surface.
type Deps struct {
	Client      database.Client
	Cache       *cache.Store
	Coordinator *coordinator.Coordinator
	Retry       asyncstate.RetryPolicy
	Logger      zerolog.Logger
}

// Collections bundles the typed facades of the four dashboard areas.
type Collections struct {
	Concursos  *facade.Collection[Concurso]
	Atividades *facade.Collection[Atividade]
	Transacoes *facade.Collection[Transacao]
	Refeicoes  *facade.Collection[Refeicao]
}

// NewCollections builds the facade bundle over deps.
func NewCollections(deps Deps) (*Collections, error) {
	if deps.Cache == nil {
		deps.Cache = cache.New()
	}
	if deps.Coordinator == nil {
		deps.Coordinator = coordinator.New()
	}
	cfg := facade.Config{
		Client:      deps.Client,
		Cache:       deps.Cache,
		Coordinator: deps.Coordinator,
		Retry:       deps.Retry,
		Logger:      deps.Logger,
	}

	concursos, err := facade.NewCollection[Concurso](TableConcursos, cfg)
	if err != nil {
		return nil, err
	}
	atividades, err := facade.NewCollection[Atividade](TableAtividades, cfg)
	if err != nil {
		return nil, err
	}
	transacoes, err := facade.NewCollection[Transacao](TableTransacoes, cfg)
	if err != nil {
		return nil, err
	}
	refeicoes, err := facade.NewCollection[Refeicao](TableRefeicoes, cfg)
	if err != nil {
		return nil, err
	}

	return &Collections{
		Concursos:  concursos,
		Atividades: atividades,
		Transacoes: transacoes,
		Refeicoes:  refeicoes,
	}, nil
}

// Summary is the aggregate view of all four areas, plus the combined
// loading/error status of the reads that produced it.
type Summary struct {
	Concursos  int
	Atividades int
	Pendentes  int
	Saldo      float64
	Refeicoes  int
	Combined   asyncstate.Combined
}

// Overview loads all four collections concurrently and aggregates them.
// A single failing read fails the whole overview; the combined status still
// reflects every underlying container.
func (c *Collections) Overview(ctx context.Context, principal database.Principal) (Summary, error) {
	var (
		concursos  []Concurso
		atividades []Atividade
		transacoes []Transacao
		refeicoes  []Refeicao
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		concursos, err = c.Concursos.FindAll(gctx, principal, facade.QueryOptions{})
		return err
	})
	g.Go(func() error {
		var err error
		atividades, err = c.Atividades.FindAll(gctx, principal, facade.QueryOptions{})
		return err
	})
	g.Go(func() error {
		var err error
		transacoes, err = c.Transacoes.FindAll(gctx, principal, facade.QueryOptions{})
		return err
	})
	g.Go(func() error {
		var err error
		refeicoes, err = c.Refeicoes.FindAll(gctx, principal, facade.QueryOptions{})
		return err
	})
	err := g.Wait()

	summary := Summary{
		Concursos: len(concursos),
		Refeicoes: len(refeicoes),
		Combined: asyncstate.Combine(
			c.Concursos.State(),
			c.Atividades.State(),
			c.Transacoes.State(),
			c.Refeicoes.State(),
		),
	}
	summary.Atividades = len(atividades)
	for _, a := range atividades {
		if !a.Concluida {
			summary.Pendentes++
		}
	}
	for _, tr := range transacoes {
		summary.Saldo += tr.Valor
	}
	if err != nil {
		return summary, database.Normalize(err)
	}
	return summary, nil
}
