package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
)

func TestPageURL(t *testing.T) {
	p := &model.Pagination{Type: model.PaginationURLParam, Param: "p", MaxPages: 3}

	got, err := PageURL("https://shop.test/search?k=tango", p, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/search?k=tango", got)

	got, err = PageURL("https://shop.test/search?k=tango", p, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/search?k=tango&p=2", got)

	got, err = PageURL("https://shop.test/search", &model.Pagination{Type: model.PaginationURLParam}, 3)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/search?page=3", got)

	got, err = PageURL("https://shop.test/search", &model.Pagination{Type: model.PaginationInfiniteScroll}, 3)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/search", got)
}

func TestFetchPages_URLParam(t *testing.T) {
	f := &mockFetcher{name: "static"}
	src := model.CrawlSource{
		ID:      "amazon-us-tango-shoes",
		BaseURL: "https://shop.test/s?k=tango",
		ParserConfig: model.ParserConfig{
			Pagination: &model.Pagination{Type: model.PaginationURLParam, Param: "page", MaxPages: 2},
		},
	}
	f.On("Fetch", mock.Anything, "https://shop.test/s?k=tango", src.ParserConfig).Return("one", nil)
	f.On("Fetch", mock.Anything, "https://shop.test/s?k=tango&page=2", src.ParserConfig).Return("two", nil)

	pages, err := NewPaginator(f, NewPacer(0)).FetchPages(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "one", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "two", pages[1].Text)
	f.AssertExpectations(t)
}

func TestFetchPages_InfiniteScrollSingleRequest(t *testing.T) {
	f := &mockFetcher{name: "browser"}
	src := model.CrawlSource{
		BaseURL: "https://shop.test/list",
		ParserConfig: model.ParserConfig{
			Strategy:   model.FetchDynamic,
			Pagination: &model.Pagination{Type: model.PaginationInfiniteScroll, MaxPages: 4},
		},
	}
	f.On("Fetch", mock.Anything, "https://shop.test/list", src.ParserConfig).Return("all", nil).Once()

	pages, err := NewPaginator(f, nil).FetchPages(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	f.AssertExpectations(t)
}

func TestFetchPages_ReturnsPartialOnError(t *testing.T) {
	f := &mockFetcher{name: "static"}
	src := model.CrawlSource{
		BaseURL: "https://shop.test/s",
		ParserConfig: model.ParserConfig{
			Pagination: &model.Pagination{Type: model.PaginationURLParam, MaxPages: 3},
		},
	}
	f.On("Fetch", mock.Anything, "https://shop.test/s", src.ParserConfig).Return("one", nil)
	f.On("Fetch", mock.Anything, "https://shop.test/s?page=2", src.ParserConfig).Return("", errors.New("boom"))

	pages, err := NewPaginator(f, nil).FetchPages(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")
	assert.Len(t, pages, 1)
}

func TestFetchPages_CancelledWhilePausing(t *testing.T) {
	f := &mockFetcher{name: "static"}
	src := model.CrawlSource{
		BaseURL: "https://shop.test/s",
		ParserConfig: model.ParserConfig{
			Pagination: &model.Pagination{Type: model.PaginationURLParam, MaxPages: 2},
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.On("Fetch", mock.Anything, "https://shop.test/s", src.ParserConfig).
		Run(func(mock.Arguments) { cancel() }).
		Return("one", nil)

	pages, err := NewPaginator(f, NewPacer(time.Hour)).FetchPages(ctx, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait for pacer")
	require.Len(t, pages, 1)
	assert.Equal(t, "one", pages[0].Text)
	f.AssertNotCalled(t, "Fetch", mock.Anything, "https://shop.test/s?page=2", src.ParserConfig)
}

func TestFetchPages_PauseFollowsEachFetch(t *testing.T) {
	f := &mockFetcher{name: "static"}
	src := model.CrawlSource{
		BaseURL: "https://shop.test/s",
		ParserConfig: model.ParserConfig{
			Pagination: &model.Pagination{Type: model.PaginationURLParam, MaxPages: 2},
		},
	}
	var firstDone, secondStart time.Time
	f.On("Fetch", mock.Anything, "https://shop.test/s", src.ParserConfig).
		Run(func(mock.Arguments) {
			time.Sleep(60 * time.Millisecond)
			firstDone = time.Now()
		}).
		Return("one", nil)
	f.On("Fetch", mock.Anything, "https://shop.test/s?page=2", src.ParserConfig).
		Run(func(mock.Arguments) { secondStart = time.Now() }).
		Return("two", nil)

	start := time.Now()
	pages, err := NewPaginator(f, NewPacer(50*time.Millisecond)).FetchPages(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Less(t, firstDone.Sub(start), 50*time.Millisecond+60*time.Millisecond, "first page must not wait")
	assert.GreaterOrEqual(t, secondStart.Sub(firstDone), 50*time.Millisecond)
}
