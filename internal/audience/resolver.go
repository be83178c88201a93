package audience

import (
	"context"
	"errors"
	"fmt"

	"github.com/karimelassali/baraka-dispatch/internal/directory"
	"github.com/karimelassali/baraka-dispatch/internal/models"
)

var (
	// ErrInvalidTargetSpec re-exports the models sentinel for callers that
	// only import this package.
	ErrInvalidTargetSpec = models.ErrInvalidTargetSpec

	// ErrEmptyAudience is returned when a valid spec resolves to nobody.
	// The campaign must not be created in that case.
	ErrEmptyAudience = errors.New("target spec resolves to an empty audience")
)

// placeholderName labels recipients whose display name is unknown.
const placeholderName = "Customer"

// Resolver turns a target spec into a concrete recipient snapshot.
type Resolver struct {
	dir directory.Directory
}

func New(dir directory.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve materializes the audience for a spec. Recipients from the customer
// directory are deduplicated by customer id; manual contacts are kept verbatim,
// duplicates included.
func (r *Resolver) Resolve(ctx context.Context, spec models.TargetSpec) ([]models.Recipient, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var recipients []models.Recipient
	var err error

	switch spec.Mode {
	case models.TargetAll, models.TargetByNationality, models.TargetByPoints:
		recipients, err = r.resolveDirectory(ctx, spec)
	case models.TargetExplicitIDs:
		recipients, err = r.resolveExplicit(ctx, spec.ExplicitIDs)
	case models.TargetManualContacts:
		recipients = resolveManual(spec.ManualContacts)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidTargetSpec, spec.Mode)
	}
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		return nil, ErrEmptyAudience
	}
	return recipients, nil
}

// Preview returns the audience size without materializing recipients. It uses
// the same filtering semantics as Resolve so the confirmed count never
// diverges from the snapshot. A zero count is not an error here; the operator
// sees it before committing.
func (r *Resolver) Preview(ctx context.Context, spec models.TargetSpec) (int, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	switch spec.Mode {
	case models.TargetAll, models.TargetByNationality, models.TargetByPoints:
		return r.dir.Count(ctx, directoryFilter(spec))
	case models.TargetExplicitIDs:
		recipients, err := r.resolveExplicit(ctx, spec.ExplicitIDs)
		if err != nil {
			return 0, err
		}
		return len(recipients), nil
	case models.TargetManualContacts:
		return len(models.SplitManualContacts(spec.ManualContacts)), nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidTargetSpec, spec.Mode)
}

func directoryFilter(spec models.TargetSpec) models.CustomerFilter {
	filter := models.CustomerFilter{RequireContact: true}
	switch spec.Mode {
	case models.TargetByNationality:
		filter.Nationality = spec.Nationality
	case models.TargetByPoints:
		filter.MinPoints = spec.PointsThreshold
	}
	return filter
}

func (r *Resolver) resolveDirectory(ctx context.Context, spec models.TargetSpec) ([]models.Recipient, error) {
	customers, err := r.dir.FindAll(ctx, directoryFilter(spec))
	if err != nil {
		return nil, fmt.Errorf("directory query: %w", err)
	}
	return dedupeCustomers(customers), nil
}

// resolveExplicit looks the requested ids up directly and returns the matches
// in request order. Unknown ids and contact-less customers are dropped
// silently.
func (r *Resolver) resolveExplicit(ctx context.Context, ids []string) ([]models.Recipient, error) {
	requested := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			requested = append(requested, id)
		}
	}

	customers, err := r.dir.FindByIDs(ctx, requested)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	byID := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	recipients := make([]models.Recipient, 0, len(requested))
	for _, id := range requested {
		c, ok := byID[id]
		if !ok || c.Contact == "" {
			continue
		}
		recipients = append(recipients, customerRecipient(c))
	}
	return recipients, nil
}

// resolveManual builds one synthetic recipient per surviving token. No dedup,
// no customer lookup: manual campaigns deliberately accept arbitrary numbers.
// The position prefix keeps ids unique when the same contact appears twice.
func resolveManual(raw string) []models.Recipient {
	contacts := models.SplitManualContacts(raw)
	recipients := make([]models.Recipient, 0, len(contacts))
	for i, contact := range contacts {
		recipients = append(recipients, models.Recipient{
			ID:          fmt.Sprintf("manual-%d-%s", i+1, contact),
			Contact:     contact,
			DisplayName: contact,
		})
	}
	return recipients
}

func dedupeCustomers(customers []models.Customer) []models.Recipient {
	recipients := make([]models.Recipient, 0, len(customers))
	seen := make(map[string]bool, len(customers))
	for _, c := range customers {
		if seen[c.ID] || c.Contact == "" {
			continue
		}
		seen[c.ID] = true
		recipients = append(recipients, customerRecipient(c))
	}
	return recipients
}

func customerRecipient(c models.Customer) models.Recipient {
	name := c.DisplayName
	if name == "" {
		name = placeholderName
	}
	return models.Recipient{ID: c.ID, Contact: c.Contact, DisplayName: name}
}
