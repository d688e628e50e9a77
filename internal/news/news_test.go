package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/techdigest/internal/rss"
	"github.com/deusflow/techdigest/internal/storage"
	"github.com/deusflow/techdigest/internal/summary"
)

type fakeFetcher struct {
	feeds map[string][]rss.Entry
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) ([]rss.Entry, error) {
	f.calls = append(f.calls, feedURL)
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return f.feeds[feedURL], nil
}

type fakeResolver struct {
	pages map[string]string
	calls []string
}

func (r *fakeResolver) Resolve(_ context.Context, pageURL string) string {
	r.calls = append(r.calls, pageURL)
	return r.pages[pageURL]
}

func newTestAggregator(f *fakeFetcher, r *fakeResolver, keywords ...string) *Aggregator {
	return NewAggregator(f, r, DefaultOptions(keywords), nil)
}

func titles(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		name  string
		entry rss.Entry
		want  string
	}{
		{name: "link first", entry: rss.Entry{Link: "https://x/1", ID: "id-1", Title: "T"}, want: "https://x/1"},
		{name: "id when no link", entry: rss.Entry{ID: "id-1", Title: "T"}, want: "id-1"},
		{name: "title last", entry: rss.Entry{Link: "  ", Title: " T "}, want: "T"},
		{name: "nothing", entry: rss.Entry{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalID(tt.entry))
		})
	}
}

func TestCollect_KeywordFilterIsOrAndCaseInsensitive(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{
		"feed": {
			{Title: "new AI chip", Link: "https://x/ai"},
			{Title: "Garden tips", Link: "https://x/garden"},
			{Title: "Quiet week", Link: "https://x/trailer", Summary: "The TRAILER is out"},
			{Title: "Samsung foldable", Link: "https://x/samsung"},
		},
	}}
	a := newTestAggregator(f, &fakeResolver{}, "ai", "Trailer", "samsung")

	res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 10)

	assert.Equal(t, []string{"new AI chip", "Quiet week", "Samsung foldable"}, titles(res.Items))
	assert.Equal(t, 1, res.Stats.Irrelevant)
}

func TestCollect_NoKeywordsMatchesNothing(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{
		"feed": {{Title: "Anything", Link: "https://x/1"}},
	}}
	a := newTestAggregator(f, &fakeResolver{}, " ", "")

	res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 10)
	assert.Empty(t, res.Items)
}

func TestCollect_IrrelevantIgnoredRegardlessOfLedger(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{
		"feed": {{Title: "Cooking show", Link: "https://x/cook"}},
	}}
	a := newTestAggregator(f, &fakeResolver{}, "launch")

	for _, seen := range []storage.SeenSet{storage.NewSeenSet(), storage.NewSeenSet("https://x/cook")} {
		res := a.Collect(context.Background(), []string{"feed"}, seen, 10)
		assert.Empty(t, res.Items)
	}
}

func TestCollect_Deduplication(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{
		"a": {
			{Title: "launch one", Link: "https://x/1"},
			{Title: "launch two", Link: "https://x/2"},
		},
		"b": {
			{Title: "launch two again", Link: "https://x/2"},
			{Title: "launch three", ID: "guid-3"},
			{Title: "launch four"},
		},
	}}
	a := newTestAggregator(f, &fakeResolver{}, "launch")

	res := a.Collect(context.Background(), []string{"a", "b"}, storage.NewSeenSet("https://x/1"), 10)

	assert.Equal(t, []string{"launch two", "launch three", "launch four"}, titles(res.Items))
	assert.Equal(t, []string{"https://x/2", "guid-3", "launch four"}, res.NewGUIDs)
	assert.Equal(t, 2, res.Stats.Duplicates)
}

func TestCollect_GlobalCapAcrossSources(t *testing.T) {
	feeds := map[string][]rss.Entry{}
	for _, src := range []string{"a", "b", "c"} {
		for i := 0; i < 3; i++ {
			feeds[src] = append(feeds[src], rss.Entry{
				Title: fmt.Sprintf("%s launch %d", src, i),
				Link:  fmt.Sprintf("https://%s/%d", src, i),
			})
		}
	}
	f := &fakeFetcher{feeds: feeds}
	a := newTestAggregator(f, &fakeResolver{}, "launch")

	res := a.Collect(context.Background(), []string{"a", "b", "c"}, storage.NewSeenSet(), 4)

	assert.Equal(t, []string{"a launch 0", "a launch 1", "a launch 2", "b launch 0"}, titles(res.Items))
	assert.Len(t, res.NewGUIDs, 4)
	assert.Equal(t, []string{"a", "b"}, f.calls, "sources after the cap must not be fetched")
}

func TestCollect_PerSourceLimit(t *testing.T) {
	var entries []rss.Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, rss.Entry{Title: fmt.Sprintf("review %d", i), Link: fmt.Sprintf("https://x/%d", i)})
	}
	f := &fakeFetcher{feeds: map[string][]rss.Entry{"feed": entries}}
	a := newTestAggregator(f, &fakeResolver{}, "review")

	res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 100)

	require.Len(t, res.Items, DefaultPerSourceLimit)
	assert.Equal(t, "review 0", res.Items[0].Title)
	assert.Equal(t, "review 7", res.Items[7].Title)
}

func TestCollect_FailedSourceIsSkipped(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string][]rss.Entry{
			"good": {{Title: "leak", Link: "https://x/leak"}},
		},
		errs: map[string]error{"bad": errors.New("connection refused")},
	}
	a := newTestAggregator(f, &fakeResolver{}, "leak")

	res := a.Collect(context.Background(), []string{"bad", "good"}, storage.NewSeenSet(), 10)

	assert.Equal(t, []string{"leak"}, titles(res.Items))
	assert.Equal(t, 1, res.Stats.SourcesFailed)
	assert.Equal(t, 1, res.Stats.SourcesOK)
}

func TestCollect_SummaryFallbackOrder(t *testing.T) {
	long := "<p>" + strings.Repeat("x", 30) + " " + strings.Repeat("y", 39) + "</p>"
	require.Equal(t, 70, len(summary.StripTags(long)))

	t.Run("long native summary skips the page", func(t *testing.T) {
		f := &fakeFetcher{feeds: map[string][]rss.Entry{
			"feed": {{Title: "AI news", Link: "https://x/1", Summary: long}},
		}}
		r := &fakeResolver{pages: map[string]string{"https://x/1": "page text"}}
		a := newTestAggregator(f, r, "ai")

		res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 10)

		require.Len(t, res.Items, 1)
		assert.Empty(t, r.calls)
		assert.Equal(t, summary.Default(summary.StripTags(long)), res.Items[0].Summary)
	})

	t.Run("short native summary uses the page", func(t *testing.T) {
		f := &fakeFetcher{feeds: map[string][]rss.Entry{
			"feed": {{Title: "AI news", Link: "https://x/1", Summary: "tiny text"}},
		}}
		r := &fakeResolver{pages: map[string]string{"https://x/1": "page text"}}
		a := newTestAggregator(f, r, "ai")

		res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 10)

		require.Len(t, res.Items, 1)
		assert.Equal(t, []string{"https://x/1"}, r.calls)
		assert.Equal(t, "page text", res.Items[0].Summary)
		assert.Equal(t, 1, res.Stats.PageLookups)
	})

	t.Run("empty page falls back to the title", func(t *testing.T) {
		title := "AI chip launches today. Second sentence here. Third one."
		f := &fakeFetcher{feeds: map[string][]rss.Entry{
			"feed": {{Title: title, Link: "https://x/1", Summary: "0123456789"}},
		}}
		r := &fakeResolver{}
		a := newTestAggregator(f, r, "ai")

		res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 10)

		require.Len(t, res.Items, 1)
		assert.Equal(t, []string{"https://x/1"}, r.calls)
		assert.Equal(t, summary.Default(title), res.Items[0].Summary)
	})
}

func TestCollect_ZeroMaxItems(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{"feed": {{Title: "launch", Link: "https://x"}}}}
	a := newTestAggregator(f, &fakeResolver{}, "launch")

	res := a.Collect(context.Background(), []string{"feed"}, storage.NewSeenSet(), 0)
	assert.Empty(t, res.Items)
	assert.Empty(t, f.calls)
}

func TestCollect_CanceledContextStops(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]rss.Entry{"feed": {{Title: "launch", Link: "https://x"}}}}
	a := newTestAggregator(f, &fakeResolver{}, "launch")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := a.Collect(ctx, []string{"feed"}, storage.NewSeenSet(), 5)
	assert.Empty(t, res.Items)
	assert.Empty(t, f.calls)
}
