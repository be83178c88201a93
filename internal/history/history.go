package history

import (
	"context"
	"math"
	"strings"

	"github.com/karimelassali/baraka-dispatch/internal/models"
	"github.com/karimelassali/baraka-dispatch/internal/store"
)

// DefaultPageSize is the fixed history page size.
const DefaultPageSize = 20

// Aggregator queries campaign history and derives page-level statistics.
type Aggregator struct {
	store    *store.CampaignStore
	pageSize int
}

func New(st *store.CampaignStore, pageSize int) *Aggregator {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Aggregator{store: st, pageSize: pageSize}
}

// Page is one page of campaign summaries. HasMore is derived from the page
// being full-sized; a short page signals the end of history.
type Page struct {
	Records []models.CampaignSummary `json:"records"`
	HasMore bool                     `json:"has_more"`
}

// Stats are aggregates over the currently loaded records, not global values.
type Stats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	// SuccessRate is sent/total as a percent rounded to the nearest
	// integer; 0 when nothing was processed.
	SuccessRate int `json:"success_rate"`
}

// Query returns one page of campaign summaries, newest first.
func (a *Aggregator) Query(ctx context.Context, filter models.CampaignListFilter) (Page, error) {
	filter.PageSize = a.pageSize
	records, hasMore, err := a.store.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{Records: records, HasMore: hasMore}, nil
}

// PageStats computes aggregates over a set of loaded records.
func PageStats(records []models.CampaignSummary) Stats {
	var s Stats
	for _, r := range records {
		s.Total += r.Total
		s.Sent += r.Sent
		s.Failed += r.Failed
	}
	if s.Total > 0 {
		s.SuccessRate = int(math.Round(float64(s.Sent) / float64(s.Total) * 100))
	}
	return s
}

// View accumulates pages for incremental "load more" browsing and supports
// client-side search over what has been loaded so far.
type View struct {
	agg     *Aggregator
	filter  models.CampaignListFilter
	page    int
	hasMore bool
	records []models.CampaignSummary
}

// NewView starts an empty view over the given filter.
func (a *Aggregator) NewView(filter models.CampaignListFilter) *View {
	return &View{agg: a, filter: filter, hasMore: true}
}

// LoadMore fetches the next page and appends it. Returns whether more pages
// may remain.
func (v *View) LoadMore(ctx context.Context) (bool, error) {
	if !v.hasMore {
		return false, nil
	}

	v.filter.Page = v.page
	page, err := v.agg.Query(ctx, v.filter)
	if err != nil {
		return v.hasMore, err
	}

	v.records = append(v.records, page.Records...)
	v.hasMore = page.HasMore
	v.page++
	return v.hasMore, nil
}

// Records returns everything loaded so far.
func (v *View) Records() []models.CampaignSummary {
	return v.records
}

// Stats aggregates over the loaded records.
func (v *View) Stats() Stats {
	return PageStats(v.records)
}

// Search filters the loaded records by a case-insensitive substring match
// against message content and recipient display names. It never expands the
// loaded set.
func (v *View) Search(ctx context.Context, term string) ([]models.CampaignSummary, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return v.records, nil
	}

	matches := []models.CampaignSummary{}
	for _, r := range v.records {
		if strings.Contains(strings.ToLower(r.MessageBody), term) {
			matches = append(matches, r)
			continue
		}

		names, err := v.agg.store.RecipientNames(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), term) {
				matches = append(matches, r)
				break
			}
		}
	}
	return matches, nil
}
