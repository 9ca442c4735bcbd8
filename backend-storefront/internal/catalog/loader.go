package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidFilter is returned for filters that cannot be turned into a query
var ErrInvalidFilter = errors.New("invalid catalog filter")

const defaultCacheTTL = 5 * time.Minute

// Fetcher issues a backend GET and decodes the envelope's data into out.
// *apiclient.Client satisfies it; tests inject sample data through it.
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}, opts ...apiclient.CallOption) error
}

// ListPage is one page of a catalog listing
type ListPage struct {
	Items   []domain.CatalogItem `json:"items"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
}

// UnmarshalJSON accepts a bare item array or a {items|data, total} object
func (p *ListPage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []domain.CatalogItem
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*p = ListPage{Items: items, Total: int64(len(items))}
		return nil
	}

	var raw struct {
		Items   []domain.CatalogItem `json:"items"`
		Data    []domain.CatalogItem `json:"data"`
		Total   *int64               `json:"total"`
		Page    int                  `json:"page"`
		PerPage int                  `json:"per_page"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ListPage{Items: raw.Items, Page: raw.Page, PerPage: raw.PerPage}
	if p.Items == nil {
		p.Items = raw.Data
	}
	if p.Items == nil {
		p.Items = []domain.CatalogItem{}
	}
	p.Total = int64(len(p.Items))
	if raw.Total != nil {
		p.Total = *raw.Total
	}
	return nil
}

// DetailPage joins everything a detail view renders
type DetailPage struct {
	Item    domain.CatalogItem    `json:"item"`
	Booking domain.BookingDetails `json:"booking"`
	Gallery []domain.GalleryImage `json:"gallery"`
}

// Loader fetches and normalises catalog data for all entities
type Loader struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *logger.Logger
	now     func() time.Time
	hits    *telemetry.Counter
}

// Option configures a Loader
type Option func(*Loader)

// WithCache caches details, gallery and categories reads for ttl
func WithCache(c Cache, ttl time.Duration) Option {
	return func(l *Loader) {
		l.cache = c
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLogger sets the loader's logger
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) { l.logger = log }
}

// WithClock sets the clock used to resolve symbolic date filters
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// NewLoader creates a loader over fetcher
func NewLoader(fetcher Fetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher: fetcher,
		ttl:     defaultCacheTTL,
		logger:  logger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.hits, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storefront_catalog_cache_hits_total",
		Description: "Catalog reads served from cache",
		Unit:        "1",
	})
	return l
}

// List loads a filtered listing
func (l *Loader) List(ctx context.Context, entity domain.Entity, f Filters) (Result[ListPage], error) {
	empty := ListPage{Items: []domain.CatalogItem{}, Page: f.Page, PerPage: f.PerPage}

	q, err := f.Query(l.now())
	if err != nil {
		return Result[ListPage]{Data: empty}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	ctx, span := l.span(ctx, "catalog.list", entity, "")
	defer span.End()

	var page ListPage
	err = l.fetcher.Get(ctx, entity.ListPath(), q, &page)
	if err == nil {
		if page.Items == nil {
			page.Items = []domain.CatalogItem{}
		}
		if page.Page == 0 {
			page.Page = f.Page
		}
		if page.PerPage == 0 {
			page.PerPage = f.PerPage
		}
	}
	return settle(page, empty, err)
}

// Details loads one catalog item
func (l *Loader) Details(ctx context.Context, entity domain.Entity, id domain.ID) (Result[domain.CatalogItem], error) {
	return cached(ctx, l, cacheKey("details", entity, id.String()), func(ctx context.Context) (Result[domain.CatalogItem], error) {
		ctx, span := l.span(ctx, "catalog.details", entity, id)
		defer span.End()

		var item domain.CatalogItem
		err := l.fetcher.Get(ctx, entity.DetailsPath(id.String()), nil, &item)
		return settle(item, domain.CatalogItem{Prices: []domain.PriceQuote{}}, err)
	})
}

// Gallery loads an item's media
func (l *Loader) Gallery(ctx context.Context, entity domain.Entity, id domain.ID) (Result[[]domain.GalleryImage], error) {
	return cached(ctx, l, cacheKey("gallery", entity, id.String()), func(ctx context.Context) (Result[[]domain.GalleryImage], error) {
		ctx, span := l.span(ctx, "catalog.gallery", entity, id)
		defer span.End()

		images := []domain.GalleryImage{}
		err := l.fetcher.Get(ctx, entity.GalleryPath(id.String()), nil, &images)
		return settle(images, []domain.GalleryImage{}, err)
	})
}

// Categories loads the entity's categories
func (l *Loader) Categories(ctx context.Context, entity domain.Entity) (Result[[]domain.Category], error) {
	return cached(ctx, l, cacheKey("categories", entity, ""), func(ctx context.Context) (Result[[]domain.Category], error) {
		ctx, span := l.span(ctx, "catalog.categories", entity, "")
		defer span.End()

		categories := []domain.Category{}
		err := l.fetcher.Get(ctx, entity.CategoriesPath(), nil, &categories)
		return settle(categories, []domain.Category{}, err)
	})
}

// BookingDetails loads the dates, shows and ticket types a selection is built
// from. Availability changes often, so it is never cached.
func (l *Loader) BookingDetails(ctx context.Context, entity domain.Entity, id domain.ID) (Result[domain.BookingDetails], error) {
	ctx, span := l.span(ctx, "catalog.booking_details", entity, id)
	defer span.End()

	var details domain.BookingDetails
	err := l.fetcher.Get(ctx, entity.BookingDetailsPath(id.String()), nil, &details)
	if err == nil && details.EntityID == "" {
		details.EntityID = id
	}
	return settle(details, domain.BookingDetails{EntityID: id}, err)
}

// TicketPrices loads the price list for one date
func (l *Loader) TicketPrices(ctx context.Context, entity domain.Entity, id domain.ID, date string) (Result[[]domain.TicketType], error) {
	resolved, err := ResolveDate(date, l.now())
	if err != nil {
		return Result[[]domain.TicketType]{Data: []domain.TicketType{}}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	ctx, span := l.span(ctx, "catalog.ticket_prices", entity, id)
	defer span.End()

	var q url.Values
	if resolved != "" {
		q = url.Values{"date": {resolved}}
	}
	tickets := []domain.TicketType{}
	err = l.fetcher.Get(ctx, entity.TicketPricesPath(id.String()), q, &tickets)
	return settle(tickets, []domain.TicketType{}, err)
}

// DetailPage loads details, booking details and gallery concurrently. A soft
// failure on details makes the page soft; the other two degrade to empty.
func (l *Loader) DetailPage(ctx context.Context, entity domain.Entity, id domain.ID) (Result[DetailPage], error) {
	var (
		details Result[domain.CatalogItem]
		booking Result[domain.BookingDetails]
		gallery Result[[]domain.GalleryImage]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = l.Details(gctx, entity, id)
		return err
	})
	g.Go(func() error {
		var err error
		booking, err = l.BookingDetails(gctx, entity, id)
		return err
	})
	g.Go(func() error {
		var err error
		gallery, err = l.Gallery(gctx, entity, id)
		return err
	})

	empty := DetailPage{
		Item:    domain.CatalogItem{Prices: []domain.PriceQuote{}},
		Booking: domain.BookingDetails{EntityID: id},
		Gallery: []domain.GalleryImage{},
	}
	if err := g.Wait(); err != nil {
		return Result[DetailPage]{Data: empty}, err
	}
	if !details.Status {
		return Soft(empty, details.Message), nil
	}

	return OK(DetailPage{
		Item:    details.Data,
		Booking: booking.Data,
		Gallery: gallery.Data,
	}), nil
}

// BookingDetailsFor adapts BookingDetails for selection building. Soft
// failures become ErrUnavailable.
func (l *Loader) BookingDetailsFor(ctx context.Context, entity domain.Entity, id domain.ID) (domain.BookingDetails, error) {
	res, err := l.BookingDetails(ctx, entity, id)
	if err != nil {
		return domain.BookingDetails{}, err
	}
	if !res.Status {
		return domain.BookingDetails{}, fmt.Errorf("%w: %s", ErrUnavailable, res.Message)
	}
	return res.Data, nil
}

// TicketPricesFor adapts TicketPrices for selection building
func (l *Loader) TicketPricesFor(ctx context.Context, entity domain.Entity, id domain.ID, date string) ([]domain.TicketType, error) {
	res, err := l.TicketPrices(ctx, entity, id, date)
	if err != nil {
		return nil, err
	}
	if !res.Status {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, res.Message)
	}
	return res.Data, nil
}

func (l *Loader) span(ctx context.Context, name string, entity domain.Entity, id domain.ID) (context.Context, trace.Span) {
	ctx, span := telemetry.StartSpan(ctx, name)
	span.SetAttributes(telemetry.EntityAttr(string(entity)))
	if id != "" {
		span.SetAttributes(attribute.String("catalog.id", id.String()))
	}
	return ctx, span
}
