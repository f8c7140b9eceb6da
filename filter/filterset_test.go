package filter

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/internal/testutil"
)

type tArticle struct {
	ID        int64 `gorm:"primaryKey"`
	Title     string
	Rating    int
	Published time.Time
	Draft     bool
	Ref       uuid.UUID
	Category  string
}

type tArticleSchema struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Rating    *int       `json:"rating"`
	Published time.Time  `json:"published"`
	Draft     bool       `json:"draft"`
	Ref       uuid.UUID  `json:"ref"`
	Category  []string   `json:"category"`
	Secret    string     `json:"-"`
	Summary   string     `json:"summary"`
	Updated   *time.Time `json:"updated,omitempty"`
}

func Test_Generate(t *testing.T) {
	db := testutil.NewSQLite(t)

	fs, err := Generate[tArticleSchema](db, &tArticle{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"category", "category_contains",
		"draft",
		"id", "id_gt", "id_gte", "id_lt", "id_lte",
		"published", "published_gt", "published_gte", "published_lt", "published_lte",
		"rating", "rating_gt", "rating_gte", "rating_lt", "rating_lte",
		"ref",
		"title", "title_contains", "title_ends", "title_starts",
	}, fs.Params())

	field, ok := fs.Field("title_starts")
	require.True(t, ok)
	assert.Equal(t, "title", field.Column)
	assert.Equal(t, LookupIStartsWith, field.Lookup)

	field, ok = fs.Field("category")
	require.True(t, ok)
	assert.Equal(t, LookupIn, field.Lookup)
}

func Test_Generate_NotAStruct(t *testing.T) {
	_, err := Generate[int](testutil.NewSQLite(t), &tArticle{})
	assert.Error(t, err)
}

func Test_FilterSet_Build(t *testing.T) {
	fs, err := Generate[tArticleSchema](testutil.NewSQLite(t), &tArticle{})
	require.NoError(t, err)
	ref := uuid.New()

	tests := []struct {
		name  string
		query url.Values
		want  DNF
	}{
		{"no params", url.Values{}, nil},
		{"unknown params are ignored", url.Values{"cursor": {"abc"}, "summary": {"x"}}, nil},
		{"blank values are ignored", url.Values{"title": {""}}, nil},
		{
			"typed values",
			url.Values{"rating_gte": {"3"}, "draft": {"true"}, "ref": {ref.String()}},
			DNF{{
				{Column: "draft", Lookup: LookupExact, Value: true},
				{Column: "rating", Lookup: LookupGTE, Value: int64(3)},
				{Column: "ref", Lookup: LookupExact, Value: ref},
			}},
		},
		{
			"repeated values are ORed",
			url.Values{"title_contains": {"go", "rust"}, "rating": {"5"}},
			DNF{
				{{Column: "rating", Lookup: LookupExact, Value: int64(5)}, {Column: "title", Lookup: LookupIContains, Value: "go"}},
				{{Column: "rating", Lookup: LookupExact, Value: int64(5)}, {Column: "title", Lookup: LookupIContains, Value: "rust"}},
			},
		},
		{
			"list params split on commas",
			url.Values{"category": {"a,b", "c"}},
			DNF{{{Column: "category", Lookup: LookupIn, Value: []any{"a", "b", "c"}}}},
		},
		{
			"date only time",
			url.Values{"published_lt": {"2024-02-01"}},
			DNF{{{Column: "published", Lookup: LookupLT, Value: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.Build(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_FilterSet_Build_Errors(t *testing.T) {
	fs, err := Generate[tArticleSchema](testutil.NewSQLite(t), &tArticle{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query url.Values
	}{
		{"bad int", url.Values{"rating": {"five"}}},
		{"bad bool", url.Values{"draft": {"maybe"}}},
		{"bad uuid", url.Values{"ref": {"nope"}}},
		{"bad time", url.Values{"published": {"yesterday"}}},
		{"too many alternatives", url.Values{
			"title":    lo.Times(11, func(i int) string { return string(rune('a' + i)) }),
			"category": {"x"},
			"rating":   lo.Times(10, func(i int) string { return "1" }),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fs.Build(tt.query)
			e, ok := httperr.As(err)
			require.True(t, ok, "unexpected error %v", err)
			assert.Equal(t, http.StatusBadRequest, e.Status)
		})
	}
}

func Test_FilterSet_Apply(t *testing.T) {
	db := testutil.NewSQLite(t, &tArticle{})
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	articles := []tArticle{
		{ID: 1, Title: "Learning Go", Rating: 5, Published: day, Category: "lang"},
		{ID: 2, Title: "Rust in Action", Rating: 4, Published: day.AddDate(0, 1, 0), Category: "lang"},
		{ID: 3, Title: "Go Patterns", Rating: 2, Published: day.AddDate(0, 2, 0), Draft: true, Category: "arch"},
	}
	require.NoError(t, db.Create(&articles).Error)

	fs, err := Generate[tArticleSchema](db, &tArticle{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query url.Values
		want  []int64
	}{
		{"all", url.Values{}, []int64{1, 2, 3}},
		{"case insensitive contains", url.Values{"title_contains": {"GO"}}, []int64{1, 3}},
		{"starts", url.Values{"title_starts": {"go"}}, []int64{3}},
		{"ends", url.Values{"title_ends": {"ACTION"}}, []int64{2}},
		{"range", url.Values{"rating_gte": {"3"}, "rating_lt": {"5"}}, []int64{2}},
		{"or of values", url.Values{"rating": {"5", "2"}}, []int64{1, 3}},
		{"in list", url.Values{"category": {"arch"}}, []int64{3}},
		{"bool", url.Values{"draft": {"false"}}, []int64{1, 2}},
		{"time", url.Values{"published_gt": {"2024-01-15"}}, []int64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := fs.Apply(db.Model(&tArticle{}), tt.query)
			require.NoError(t, err)

			var got []int64
			require.NoError(t, q.Order("id").Pluck("id", &got).Error)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_FilterSet_Apply_LiteralWildcards(t *testing.T) {
	db := testutil.NewSQLite(t, &tArticle{})
	articles := []tArticle{
		{ID: 1, Title: "100% Go"},
		{ID: 2, Title: "100 Go"},
		{ID: 3, Title: "go_tips"},
		{ID: 4, Title: "gone"},
		{ID: 5, Title: "Wow!"},
	}
	require.NoError(t, db.Create(&articles).Error)

	fs, err := Generate[tArticleSchema](db, &tArticle{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query url.Values
		want  []int64
	}{
		{"percent", url.Values{"title_starts": {"100%"}}, []int64{1}},
		{"percent inside", url.Values{"title_contains": {"%"}}, []int64{1}},
		{"underscore", url.Values{"title_contains": {"_"}}, []int64{3}},
		{"underscore prefix", url.Values{"title_starts": {"go_"}}, []int64{3}},
		{"escape character", url.Values{"title_ends": {"w!"}}, []int64{5}},
		{"plain prefix still matches", url.Values{"title_starts": {"go"}}, []int64{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := fs.Apply(db.Model(&tArticle{}), tt.query)
			require.NoError(t, err)

			var got []int64
			require.NoError(t, q.Order("id").Pluck("id", &got).Error)
			assert.Equal(t, tt.want, got)
		})
	}
}
