// Seeds a local database with a demo portfolio of AI systems for manual
// testing: one system per regulation plus an ungoverned draft, with users
// for each role.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/veridian/aigov/internal/auth"
	"github.com/veridian/aigov/internal/config"
	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	if err := seedUsers(ctx, st); err != nil {
		fmt.Fprintf(os.Stderr, "seeding users: %v\n", err)
		os.Exit(1)
	}
	if err := seedSystems(ctx, st); err != nil {
		fmt.Fprintf(os.Stderr, "seeding systems: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Demo data seeded. Log in as admin@example.com / demo-password.")
}

func seedUsers(ctx context.Context, st *store.Store) error {
	users := auth.NewPostgresUserStore(st.DB())

	hash, err := auth.HashPassword("demo-password")
	if err != nil {
		return err
	}

	for _, u := range []auth.User{
		{Email: "admin@example.com", Name: "Demo Admin", Role: auth.RoleAdmin},
		{Email: "officer@example.com", Name: "Demo Officer", Role: auth.RoleComplianceOfficer},
		{Email: "auditor@example.com", Name: "Demo Auditor", Role: auth.RoleAuditor},
	} {
		existing, err := users.GetUserByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		u.Password = hash
		if err := users.CreateUser(ctx, &u); err != nil {
			return err
		}
		fmt.Printf("  created user %s (%s)\n", u.Email, u.Role)
	}
	return nil
}

func seedSystems(ctx context.Context, st *store.Store) error {
	// EU high-risk recruitment screener, deployed with open obligations.
	screener := &models.AISystem{
		Name:           "cv-screening-engine",
		Description:    "Ranks job applications for recruiter review",
		Sector:         "recruitment",
		Owner:          "Talent Platform Lead",
		LifecycleStage: models.StageDeployed,
	}
	if err := st.CreateSystem(ctx, screener); err != nil {
		return err
	}
	if err := st.UpsertEURecord(ctx, &models.EUComplianceRecord{
		AISystemID:       screener.ID,
		RiskTier:         models.TierHighRisk,
		ComplianceStatus: models.StatusPartiallyCompliant,
		HighRiskMissing:  models.StringArray{"data governance", "human oversight procedures"},
	}); err != nil {
		return err
	}
	if err := st.CreateAssessment(ctx, &models.RiskAssessment{
		AISystemID: screener.ID,
		Category:   models.CategoryBias,
		Status:     models.AssessmentApproved,
		Severity:   models.SeverityHigh,
		Summary:    "Shortlisting rates differ across protected characteristics",
	}); err != nil {
		return err
	}

	// UK frontier model still in testing.
	assistant := &models.AISystem{
		Name:           "research-assistant",
		Description:    "General-purpose research assistant for analysts",
		Sector:         "technology",
		Owner:          "Applied ML Lead",
		LifecycleStage: models.StageTesting,
	}
	if err := st.CreateSystem(ctx, assistant); err != nil {
		return err
	}
	principles := models.UKPrincipleSet{}
	for _, p := range models.UKPrinciples {
		principles[p] = models.UKPrincipleCheck{Meets: p != models.UKPrincipleContestability}
	}
	if err := st.UpsertUKRecord(ctx, &models.UKComplianceRecord{
		AISystemID:        assistant.ID,
		RiskTier:          models.TierHighRisk,
		OriginalRiskLevel: "Frontier",
		ComplianceStatus:  models.StatusPartiallyCompliant,
		Principles:        principles,
	}); err != nil {
		return err
	}

	// MAS Critical credit model, fully compliant and monitored.
	credit := &models.AISystem{
		Name:           "sme-credit-model",
		Description:    "Credit risk grading for SME lending",
		Sector:         "finance",
		Owner:          "Head of Model Risk",
		LifecycleStage: models.StageMonitoring,
	}
	if err := st.CreateSystem(ctx, credit); err != nil {
		return err
	}
	pillars := models.MASPillarSet{}
	for _, p := range models.MASPillars {
		pillars[p] = models.StatusCompliant
	}
	if err := st.UpsertMASRecord(ctx, &models.MASComplianceRecord{
		AISystemID:        credit.ID,
		RiskTier:          models.TierHighRisk,
		OriginalRiskLevel: "Critical",
		ComplianceStatus:  models.StatusCompliant,
		Pillars:           pillars,
		AccountablePerson: "Head of Model Risk",
	}); err != nil {
		return err
	}
	if err := st.CreateAssessment(ctx, &models.RiskAssessment{
		AISystemID: credit.ID,
		Category:   models.CategoryRobustness,
		Status:     models.AssessmentApproved,
		Severity:   models.SeverityLow,
		Mitigated:  true,
	}); err != nil {
		return err
	}

	// Ungoverned draft: no compliance record yet.
	draft := &models.AISystem{
		Name:           "churn-predictor",
		Description:    "Experimental customer churn prediction",
		Sector:         "retail",
		LifecycleStage: models.StageDraft,
	}
	if err := st.CreateSystem(ctx, draft); err != nil {
		return err
	}

	for _, s := range []*models.AISystem{screener, assistant, credit, draft} {
		fmt.Printf("  created system %s (%s)\n", s.Name, s.LifecycleStage)
	}
	return nil
}
