package dedup

import (
	"context"
	"log/slog"

	"github.com/incidentwire/incidentwire/domain/incidents"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Descriptions shorter than this are too generic for exact matching.
const minDescriptionLen = 50

// CrossSourceResult describes a match against an already-written incident.
type CrossSourceResult struct {
	IsDuplicate bool
	MatchType   string
	Confidence  float64
	IncidentID  string
	Reasons     []string
}

// CrossSourceDetector checks a new extraction against existing incidents:
// exact source URL, exact description, then the entity cascade over a
// state-and-date prefiltered candidate set.
type CrossSourceDetector struct {
	incidents *incidents.Repository
	log       *slog.Logger
}

func NewCrossSourceDetector(repo *incidents.Repository, log *slog.Logger) *CrossSourceDetector {
	return &CrossSourceDetector{
		incidents: repo,
		log:       log.With(logger.Scope("dedup.crosssource")),
	}
}

// Check runs the cross-source cascade for one prospective incident.
func (d *CrossSourceDetector) Check(ctx context.Context, sourceURL, description string, entities Entities) (*CrossSourceResult, error) {
	if sourceURL != "" {
		existing, err := d.incidents.FindBySourceURL(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &CrossSourceResult{
				IsDuplicate: true,
				MatchType:   MatchURL,
				Confidence:  1.0,
				IncidentID:  existing.ID.String(),
			}, nil
		}
	}

	if len(description) > minDescriptionLen {
		existing, err := d.incidents.FindByDescription(ctx, description)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &CrossSourceResult{
				IsDuplicate: true,
				MatchType:   MatchContent,
				Confidence:  1.0,
				IncidentID:  existing.ID.String(),
			}, nil
		}
	}

	if entities.State == "" || entities.Date == nil {
		return &CrossSourceResult{}, nil
	}

	candidates, err := d.incidents.EntityPrefilter(ctx, entities.State, *entities.Date, dateWindowDays)
	if err != nil {
		return nil, err
	}

	best := &CrossSourceResult{}
	for i := range candidates {
		candidate := entitiesFromIncident(&candidates[i])
		ok, conf, reasons := MatchEntities(entities, candidate)
		if ok && conf > best.Confidence {
			best = &CrossSourceResult{
				IsDuplicate: true,
				MatchType:   MatchEntity,
				Confidence:  conf,
				IncidentID:  candidates[i].Incident.ID.String(),
				Reasons:     reasons,
			}
		}
	}

	if best.IsDuplicate {
		d.log.Info("cross-source duplicate",
			slog.String("incident_id", best.IncidentID),
			slog.Float64("confidence", best.Confidence))
	}
	return best, nil
}

func entitiesFromIncident(c *incidents.EntityCandidate) Entities {
	e := Entities{
		OffenderName: c.OffenderName,
		VictimName:   c.VictimName,
	}
	inc := c.Incident
	if inc.IncidentType != nil {
		e.IncidentType = *inc.IncidentType
	}
	if inc.State != nil {
		e.State = *inc.State
	}
	if inc.City != nil {
		e.City = *inc.City
	}
	if inc.IncidentDate != nil {
		date := *inc.IncidentDate
		e.Date = &date
	}
	return e
}
