package reports

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/governance"
	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/scoring"
	"github.com/veridian/aigov/internal/store"
)

// StoreProvider implements DataProvider against the primary store, the
// governance task store and a live scorer.
type StoreProvider struct {
	store  *store.Store
	tasks  governance.Store
	scorer *scoring.Scorer
}

func NewStoreProvider(st *store.Store, tasks governance.Store, scorer *scoring.Scorer) *StoreProvider {
	return &StoreProvider{store: st, tasks: tasks, scorer: scorer}
}

func (p *StoreProvider) GetSystemReport(ctx context.Context, systemID uuid.UUID) (*SystemReport, error) {
	system, err := p.store.GetSystem(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("getting system: %w", err)
	}
	if system == nil {
		return nil, nil
	}

	snapshot, err := p.store.BuildSnapshot(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}

	assessments, err := p.store.ListAssessments(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}

	tasks, err := p.tasks.ListTasks(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	return &SystemReport{
		System:      system,
		Snapshot:    snapshot,
		Score:       p.scorer.Calculate(snapshot, assessments),
		Assessments: assessments,
		Tasks:       tasks,
	}, nil
}

func (p *StoreProvider) ListSystemSummaries(ctx context.Context) ([]*SystemSummary, error) {
	systems, err := p.store.ListSystems(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing systems: %w", err)
	}

	summaries := make([]*SystemSummary, 0, len(systems))
	for i := range systems {
		system := &systems[i]

		sr, err := p.GetSystemReport(ctx, system.ID)
		if err != nil {
			return nil, err
		}
		if sr == nil {
			continue
		}

		summary := &SystemSummary{
			ID:    system.ID,
			Name:  system.Name,
			Stage: string(system.LifecycleStage),
		}
		if sr.Snapshot != nil {
			summary.Regulation = string(sr.Snapshot.Regulation)
			summary.RiskTier = string(sr.Snapshot.RiskTier)
		}
		if sr.Score != nil {
			summary.RiskLevel = string(sr.Score.OverallRiskLevel)
			summary.CompositeScore = sr.Score.CompositeScore
		}
		for _, t := range sr.Tasks {
			if t.Status == models.TaskCompleted {
				continue
			}
			summary.OpenTasks++
			if t.Blocking {
				summary.BlockingTasks++
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (p *StoreProvider) GetPortfolioStats(ctx context.Context) (*PortfolioStats, error) {
	summaries, err := p.ListSystemSummaries(ctx)
	if err != nil {
		return nil, err
	}

	stats := &PortfolioStats{
		TotalSystems: len(summaries),
		ByStage:      make(map[string]int),
		ByRiskLevel:  make(map[string]int),
	}

	for _, s := range summaries {
		stats.ByStage[s.Stage]++
		if s.RiskLevel != "" {
			stats.ByRiskLevel[s.RiskLevel]++
		}
		if s.Regulation == "" {
			stats.UngovernedCount++
		}
		stats.OpenTasks += s.OpenTasks
		stats.BlockingTasks += s.BlockingTasks
	}

	for _, s := range summaries {
		tasks, err := p.tasks.ListTasks(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if t.Status == models.TaskCompleted {
				stats.CompletedTasks++
			}
		}
	}

	return stats, nil
}
