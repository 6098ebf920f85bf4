package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/tangocommunity/crawler/internal/extract"
	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/scrape"
)

type fakePages struct {
	pages map[string][]scrape.Page
	errs  map[string]error
	calls []string
}

func (f *fakePages) FetchPages(_ context.Context, src model.CrawlSource) ([]scrape.Page, error) {
	f.calls = append(f.calls, src.ID)
	return f.pages[src.ID], f.errs[src.ID]
}

type fakeExtractor[T model.Record] struct {
	byURL map[string][]T
	err   error
	panic bool
}

func (f *fakeExtractor[T]) Extract(_ context.Context, _ string, src extract.SourceContext) ([]T, error) {
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byURL[src.URL], nil
}

type fakeRegistry struct {
	sources []model.CrawlSource
	err     error
}

func (f fakeRegistry) ActiveSources(context.Context) ([]model.CrawlSource, error) {
	return f.sources, f.err
}

// memStore is an in-memory EventStore and ProductStore keyed the same way
// the Postgres store is.
type memStore struct {
	mu        sync.Mutex
	events    map[string]model.ExtractedEvent
	deals     map[string]model.ExtractedProduct
	logs      map[string]model.CrawlLog
	touched   []string
	upserts   int
	createErr error
	upsertErr error

	deactivated int
}

func newMemStore() *memStore {
	return &memStore{
		events: map[string]model.ExtractedEvent{},
		deals:  map[string]model.ExtractedProduct{},
		logs:   map[string]model.CrawlLog{},
	}
}

func (m *memStore) CreateCrawlLog(_ context.Context, sourceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	id := "log-" + sourceID
	m.logs[id] = model.CrawlLog{ID: id, SourceID: sourceID, Status: model.RunRunning}
	return id, nil
}

func (m *memStore) FinalizeCrawlLog(ctx context.Context, id string, log model.CrawlLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := m.logs[id]; !ok {
		return errors.New("not found")
	}
	m.logs[id] = log
	return nil
}

func (m *memStore) TouchSource(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, sourceID)
	return nil
}

func (m *memStore) UpsertEvent(_ context.Context, ev model.ExtractedEvent, sourceURL, _ string) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return "", m.upsertErr
	}
	_, exists := m.events[sourceURL]
	m.events[sourceURL] = ev
	if exists {
		return model.OutcomeUpdated, nil
	}
	return model.OutcomeCreated, nil
}

func (m *memStore) UpsertProductDeal(_ context.Context, p model.ExtractedProduct) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return "", m.upsertErr
	}
	_, exists := m.deals[p.SourceURL]
	m.deals[p.SourceURL] = p
	if exists {
		return model.OutcomeUpdated, nil
	}
	return model.OutcomeCreated, nil
}

func (m *memStore) DeactivateExpiredDeals(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivated++
	return 1, nil
}

func (m *memStore) ActiveDealsCount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.deals)), nil
}

type recorderSpy struct{ results []model.CrawlResult }

func (r *recorderSpy) ObserveCrawl(res model.CrawlResult) { r.results = append(r.results, res) }
