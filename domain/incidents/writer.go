package incidents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/actors"
	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/domain/schemas"
	"github.com/incidentwire/incidentwire/domain/taxonomy"
	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Fields the writer can validate before insert.
var validatableFields = map[string]bool{
	"date":             true,
	"state":            true,
	"incident_type":    true,
	"victim_category":  true,
	"outcome_category": true,
}

// Criminal-justice subcategories map to the legacy crime enum; civil-rights
// subcategories map to enforcement.
var legacyCategoryByDomain = map[string]string{
	taxonomy.DomainImmigration:     CategoryCrime,
	taxonomy.DomainCriminalJustice: CategoryCrime,
	taxonomy.DomainCivilRights:     CategoryEnforcement,
}

// WriteResult is the writer's output.
type WriteResult struct {
	IncidentID    uuid.UUID
	ActorsCreated int
	Category      string
}

// WriteOverrides lets callers pin derived values.
type WriteOverrides struct {
	Category       string
	IncidentTypeID *uuid.UUID
}

// Writer creates incident rows and their actor/event/source links from a
// merged extraction.
type Writer struct {
	repo     *Repository
	actors   *actors.Repository
	schemas  *schemas.Repository
	taxonomy *taxonomy.Repository
	geocoder Geocoder
	log      *slog.Logger
}

// NewWriter wires the writer's repositories.
func NewWriter(
	repo *Repository,
	actorRepo *actors.Repository,
	schemaRepo *schemas.Repository,
	taxonomyRepo *taxonomy.Repository,
	log *slog.Logger,
) *Writer {
	return &Writer{
		repo:     repo,
		actors:   actorRepo,
		schemas:  schemaRepo,
		taxonomy: taxonomyRepo,
		log:      log.With(logger.Scope("incidents.writer")),
	}
}

// SetGeocoder injects the optional coordinate resolver.
func (w *Writer) SetGeocoder(g Geocoder) {
	w.geocoder = g
}

// Create writes an incident from extracted data. Required-field validation
// uses the union of contributing schemas' required fields restricted to the
// writer's validatable set; a missing field surfaces as a bad request.
func (w *Writer) Create(
	ctx context.Context,
	extracted map[string]any,
	article *articles.Article,
	overrides *WriteOverrides,
	mergeInfo map[string]any,
) (*WriteResult, error) {
	if missing := w.missingRequiredFields(ctx, extracted, mergeInfo); len(missing) > 0 {
		return nil, apperror.NewBadRequest(
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	domainSlug, categorySlug := w.resolveTaxonomy(extracted, mergeInfo)
	legacy := legacyCategory(domainSlug, overrides)

	incident := &Incident{
		Category:       legacy,
		Description:    stringField(extracted, "description"),
		SourceTier:     3,
		Tags:           deriveTags(extracted),
		CustomFields:   filteredPolicyContext(extracted),
		CurationStatus: CurationApproved,
		MergeInfo:      mergeInfo,
	}

	if article != nil {
		incident.SourceURL = &article.SourceURL
	}
	if category, err := w.taxonomy.GetCategory(ctx, domainSlug, categorySlug); err == nil && category != nil {
		incident.DomainID = &category.DomainID
		incident.CategoryID = &category.ID
	} else if domain, err := w.taxonomy.GetDomainBySlug(ctx, domainSlug); err == nil && domain != nil {
		incident.DomainID = &domain.ID
	}

	if date, ok := parseDate(stringField(extracted, "date")); ok {
		incident.IncidentDate = &date
	}
	setOptString(&incident.State, extracted, "state")
	setOptString(&incident.City, extracted, "city")
	setOptString(&incident.VictimName, extracted, "victim_name")
	setOptString(&incident.VictimCategory, extracted, "victim_category")
	setOptString(&incident.OffenderName, extracted, "offender_name")
	setOptString(&incident.OffenderImmigrationStatus, extracted, "offender_immigration_status")
	setOptString(&incident.GangAffiliation, extracted, "gang_affiliation")
	setOptString(&incident.OutcomeCategory, extracted, "outcome_category")
	if age, ok := intField(extracted, "offender_age"); ok {
		incident.OffenderAge = &age
	}
	if n, ok := intField(extracted, "prior_deportations"); ok {
		incident.PriorDeportations = &n
	}
	if conf, ok := extracted["overall_confidence"].(float64); ok {
		incident.ExtractionConfidence = &conf
	}

	if incidentType := stringField(extracted, "incident_type"); incidentType != "" {
		incident.IncidentType = &incidentType
		if overrides != nil && overrides.IncidentTypeID != nil {
			incident.IncidentTypeID = overrides.IncidentTypeID
		} else if id, err := w.repo.IncidentTypeID(ctx, taxonomy.NormalizeSlug(incidentType)); err == nil {
			incident.IncidentTypeID = &id
		}
	}
	if outcome := stringField(extracted, "outcome_category"); outcome != "" {
		if id, err := w.repo.OutcomeTypeID(ctx, taxonomy.NormalizeSlug(outcome)); err == nil {
			incident.OutcomeTypeID = &id
		}
	}
	if victim := stringField(extracted, "victim_category"); victim != "" {
		if id, err := w.repo.VictimTypeID(ctx, taxonomy.NormalizeSlug(victim)); err == nil {
			incident.VictimTypeID = &id
		}
	}

	if w.geocoder != nil && incident.State != nil {
		city := ""
		if incident.City != nil {
			city = *incident.City
		}
		if lat, lon, ok := w.geocoder.Geocode(city, *incident.State); ok {
			incident.Latitude = &lat
			incident.Longitude = &lon
		}
	}

	if err := w.repo.Insert(ctx, incident); err != nil {
		return nil, err
	}

	created, err := w.linkActors(ctx, incident, extracted)
	if err != nil {
		return nil, err
	}
	if err := w.linkEvents(ctx, incident, extracted); err != nil {
		return nil, err
	}
	if article != nil {
		if err := w.repo.LinkSource(ctx, incident.ID, article.ID, incident.ExtractionConfidence); err != nil {
			return nil, err
		}
	}

	w.log.Info("incident created",
		slog.String("incident_id", incident.ID.String()),
		slog.String("category", legacy),
		slog.Int("actors_created", created))

	return &WriteResult{
		IncidentID:    incident.ID,
		ActorsCreated: created,
		Category:      legacy,
	}, nil
}

// missingRequiredFields computes the union of required fields across
// contributing schemas, restricted to the validatable set, minus whatever
// the universal minimums already demand.
func (w *Writer) missingRequiredFields(ctx context.Context, extracted, mergeInfo map[string]any) []string {
	required := map[string]bool{}
	for _, name := range mergeSourceSchemaNames(mergeInfo) {
		for _, field := range w.schemaRequiredFields(ctx, name) {
			if validatableFields[field] {
				required[field] = true
			}
		}
	}

	var missing []string
	for field := range required {
		if stringField(extracted, field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func mergeSourceSchemaNames(mergeInfo map[string]any) []string {
	sources, ok := mergeInfo["sources"].([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, raw := range sources {
		src, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := src["schema_name"].(string); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (w *Writer) schemaRequiredFields(ctx context.Context, schemaName string) []string {
	production, err := w.schemas.ProductionStage2(ctx)
	if err != nil {
		return nil
	}
	for _, schema := range production {
		if schema.Name == schemaName {
			return schema.RequiredFields
		}
	}
	return nil
}

// resolveTaxonomy derives (domain, category) slugs: merge_info source
// category, then classification hints, then extracted categories, then the
// immigration default.
func (w *Writer) resolveTaxonomy(extracted, mergeInfo map[string]any) (string, string) {
	if sources, ok := mergeInfo["sources"].([]any); ok && len(sources) > 0 {
		if src, ok := sources[0].(map[string]any); ok {
			domain, _ := src["domain_slug"].(string)
			category, _ := src["category_slug"].(string)
			if domain != "" {
				return taxonomy.NormalizeSlug(domain), taxonomy.NormalizeSlug(category)
			}
		}
	}

	if hints, ok := extracted["classification_hints"].([]any); ok && len(hints) > 0 {
		if hint, ok := hints[0].(map[string]any); ok {
			domain, _ := hint["domain_slug"].(string)
			category, _ := hint["category_slug"].(string)
			if domain != "" {
				return taxonomy.NormalizeSlug(domain), taxonomy.NormalizeSlug(category)
			}
		}
	}

	if categories, ok := extracted["categories"].([]any); ok && len(categories) > 0 {
		if slug, ok := categories[0].(string); ok && slug != "" {
			return taxonomy.DomainImmigration, taxonomy.NormalizeSlug(slug)
		}
	}

	return taxonomy.DomainImmigration, ""
}

// linkActors creates or resolves actors from the structured list, falling
// back to legacy flat fields, and links each role.
func (w *Writer) linkActors(ctx context.Context, incident *Incident, extracted map[string]any) (int, error) {
	created := 0

	type actorRef struct {
		name      string
		role      string
		actorType string
	}
	var refs []actorRef

	if rawActors, ok := extracted["actors"].([]any); ok && len(rawActors) > 0 {
		for _, raw := range rawActors {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			if strings.TrimSpace(name) == "" {
				continue
			}
			role, _ := m["role"].(string)
			if role == "" {
				role = actors.RoleOffender
			}
			actorType, _ := m["actor_type"].(string)
			if actorType == "" {
				actorType = actors.TypePerson
			}
			refs = append(refs, actorRef{name: name, role: role, actorType: actorType})
		}
	} else {
		// Legacy flat fields.
		if name := stringField(extracted, "offender_name"); name != "" {
			refs = append(refs, actorRef{name: name, role: actors.RoleOffender, actorType: actors.TypePerson})
		}
		if name := stringField(extracted, "victim_name"); name != "" {
			refs = append(refs, actorRef{name: name, role: actors.RoleVictim, actorType: actors.TypePerson})
		}
		if name := stringField(extracted, "agency"); name != "" {
			refs = append(refs, actorRef{name: name, role: actors.RoleAgency, actorType: actors.TypeAgency})
		}
	}

	for _, ref := range refs {
		name := ref.name
		if ref.actorType == actors.TypeAgency || actors.IsKnownAgency(name) {
			name = actors.CanonicalizeAgency(name)
			ref.actorType = actors.TypeAgency
		}

		actor, wasCreated, err := w.actors.FindOrCreate(ctx, name, ref.actorType)
		if err != nil {
			return created, err
		}
		if wasCreated {
			created++
		}

		link := &IncidentActor{
			IncidentID: incident.ID,
			ActorID:    actor.ID,
			Role:       ref.role,
			Confidence: incident.ExtractionConfidence,
		}
		if roleTypeID, err := w.actors.RoleTypeID(ctx, ref.role); err == nil {
			link.RoleTypeID = &roleTypeID
		}
		if err := w.repo.LinkActor(ctx, link); err != nil {
			return created, err
		}
	}
	return created, nil
}

// linkEvents creates event rows named in the extraction and links them.
func (w *Writer) linkEvents(ctx context.Context, incident *Incident, extracted map[string]any) error {
	rawEvents, ok := extracted["events"].([]any)
	if !ok {
		return nil
	}
	for _, raw := range rawEvents {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		event, err := w.repo.FindOrCreateEvent(ctx, name, taxonomy.NormalizeSlug(name))
		if err != nil {
			return err
		}
		if err := w.repo.LinkEvent(ctx, incident.ID, event.ID); err != nil {
			return err
		}
	}
	return nil
}

func legacyCategory(domainSlug string, overrides *WriteOverrides) string {
	if overrides != nil && overrides.Category != "" {
		return overrides.Category
	}
	if c, ok := legacyCategoryByDomain[domainSlug]; ok {
		return c
	}
	return CategoryCrime
}

// deriveTags unions incident_types and categories from the extraction.
func deriveTags(extracted map[string]any) []string {
	seen := map[string]bool{}
	var tags []string
	for _, key := range []string{"incident_types", "categories"} {
		items, ok := extracted[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok || s == "" {
				continue
			}
			if !seen[s] {
				seen[s] = true
				tags = append(tags, s)
			}
		}
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}

// filteredPolicyContext keeps only scalar policy_context entries.
func filteredPolicyContext(extracted map[string]any) map[string]any {
	out := map[string]any{}
	policy, ok := extracted["policy_context"].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range policy {
		switch v.(type) {
		case string, float64, bool:
			out[k] = v
		}
	}
	return out
}

func stringField(data map[string]any, field string) string {
	if v, ok := data[field].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intField(data map[string]any, field string) (int, bool) {
	switch v := data[field].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func setOptString(dst **string, data map[string]any, field string) {
	if v := stringField(data, field); v != "" {
		*dst = &v
	}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
