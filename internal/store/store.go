package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/config"
	"github.com/sells-group/allergen-risk/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// AssessmentFilter specifies criteria for listing saved assessments.
type AssessmentFilter struct {
	Identifier string    `json:"identifier,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// Store defines the persistence interface for products, facility statistics
// and assessment history.
type Store interface {
	// Products
	UpsertProduct(ctx context.Context, p *model.ProductInfo) error
	GetProduct(ctx context.Context, identifier string) (*model.ProductInfo, error)

	// Facilities
	UpsertFacilityProfiles(ctx context.Context, profiles []model.FacilityAllergenProfile) (int64, error)
	LinkFacility(ctx context.Context, identifier, facilityID string) error
	FacilityProfilesForProduct(ctx context.Context, identifier string) ([]model.FacilityAllergenProfile, error)

	// Assessments
	SaveAssessment(ctx context.Context, a *model.Assessment) error
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func validateProduct(p *model.ProductInfo) error {
	if p == nil || strings.TrimSpace(p.Identifier) == "" {
		return eris.New("store: product identifier is required")
	}
	for _, f := range p.Facts {
		if err := f.Validate(); err != nil {
			return eris.Wrapf(err, "store: product %s", p.Identifier)
		}
	}
	return nil
}

func validateProfiles(profiles []model.FacilityAllergenProfile) error {
	for i, p := range profiles {
		if strings.TrimSpace(p.FacilityID) == "" {
			return eris.Errorf("store: profile %d: facility_id is required", i)
		}
		if err := p.Validate(); err != nil {
			return eris.Wrapf(err, "store: profile %d (%s)", i, p.FacilityID)
		}
	}
	return nil
}

func joinCodes(codes []string) string {
	return strings.Join(codes, ",")
}

func splitCodes(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func normalizeProfiles(profiles []model.FacilityAllergenProfile) []model.FacilityAllergenProfile {
	out := make([]model.FacilityAllergenProfile, len(profiles))
	for i, p := range profiles {
		p.FacilityID = strings.TrimSpace(p.FacilityID)
		p.AllergenCode = strings.ToUpper(strings.TrimSpace(p.AllergenCode))
		out[i] = p
	}
	return out
}
