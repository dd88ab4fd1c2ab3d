package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/models"
)

// BuildSnapshot normalizes whichever regulation record a system has into a
// ComplianceSnapshot. Records are probed in EU, UK, MAS priority order; a
// system belongs to exactly one regulation context. Returns (nil, nil) when
// the system has no compliance record.
func (s *Store) BuildSnapshot(ctx context.Context, systemID uuid.UUID) (*models.ComplianceSnapshot, error) {
	system, err := s.GetSystem(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("loading system: %w", err)
	}
	if system == nil {
		return nil, nil
	}

	eu, err := s.GetEURecord(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("probing EU record: %w", err)
	}
	if eu != nil {
		return snapshotFromEU(system, eu), nil
	}

	uk, err := s.GetUKRecord(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("probing UK record: %w", err)
	}
	if uk != nil {
		return snapshotFromUK(system, uk), nil
	}

	mas, err := s.GetMASRecord(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("probing MAS record: %w", err)
	}
	if mas != nil {
		return snapshotFromMAS(system, mas), nil
	}

	return nil, nil
}

func snapshotFromEU(system *models.AISystem, record *models.EUComplianceRecord) *models.ComplianceSnapshot {
	return &models.ComplianceSnapshot{
		Regulation:           models.RegulationEUAIAct,
		RiskTier:             normalizeTier(record.RiskTier),
		ComplianceStatus:     normalizeStatus(record.ComplianceStatus),
		ProhibitedPractices:  record.ProhibitedPractices,
		HighRiskFulfilled:    record.HighRiskFulfilled,
		HighRiskMissing:      record.HighRiskMissing,
		TransparencyRequired: record.TransparencyRequired,
		PostMarketMonitoring: record.PostMarketMonitoring,
		FRIACompleted:        record.FRIACompleted,
		LifecycleStage:       system.LifecycleStage,
		AccountablePerson:    firstNonEmpty(record.AccountablePerson, system.Owner),
		Sector:               system.Sector,
	}
}

func snapshotFromUK(system *models.AISystem, record *models.UKComplianceRecord) *models.ComplianceSnapshot {
	snap := &models.ComplianceSnapshot{
		Regulation:        models.RegulationUKFramework,
		RiskTier:          normalizeTier(record.RiskTier),
		ComplianceStatus:  normalizeStatus(record.ComplianceStatus),
		LifecycleStage:    system.LifecycleStage,
		AccountablePerson: firstNonEmpty(record.AccountablePerson, system.Owner),
		Sector:            system.Sector,
		OriginalRiskLevel: record.OriginalRiskLevel,
		UKPrinciples:      record.Principles,
	}
	// Frontier and high-impact systems classify as high-risk when the
	// record itself left the tier open.
	if snap.RiskTier == models.TierUnknown && snap.IsUKFrontier() {
		snap.RiskTier = models.TierHighRisk
	}
	return snap
}

func snapshotFromMAS(system *models.AISystem, record *models.MASComplianceRecord) *models.ComplianceSnapshot {
	snap := &models.ComplianceSnapshot{
		Regulation:        models.RegulationMASFEAT,
		RiskTier:          normalizeTier(record.RiskTier),
		ComplianceStatus:  normalizeStatus(record.ComplianceStatus),
		LifecycleStage:    system.LifecycleStage,
		AccountablePerson: firstNonEmpty(record.AccountablePerson, system.Owner),
		Sector:            system.Sector,
		OriginalRiskLevel: record.OriginalRiskLevel,
		MASPillars:        record.Pillars,
	}
	if snap.RiskTier == models.TierUnknown && snap.IsMASCritical() {
		snap.RiskTier = models.TierHighRisk
	}
	return snap
}

func normalizeTier(tier models.RiskTier) models.RiskTier {
	switch tier {
	case models.TierProhibited, models.TierHighRisk, models.TierLimitedRisk, models.TierMinimalRisk:
		return tier
	default:
		return models.TierUnknown
	}
}

func normalizeStatus(status models.ComplianceStatus) models.ComplianceStatus {
	switch status {
	case models.StatusCompliant, models.StatusPartiallyCompliant, models.StatusNonCompliant:
		return status
	default:
		return models.StatusUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
