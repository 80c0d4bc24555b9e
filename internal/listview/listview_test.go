package listview

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	title    *string
	tags     []string
	created  time.Time
	category string
}

func str(s string) *string { return &s }

var rowDesc = Descriptor[row]{
	Name:     "rows",
	PageSize: 5,
	Text:     func(r row) []string { return append(Field(r.title), r.tags...) },
	Created:  func(r row) time.Time { return r.created },
	Category: func(r row) string { return r.category },
}

func TestMatchesEmptyCriteriaIsIdentity(t *testing.T) {
	items := []row{
		{title: str("CSC103 Notes")},
		{},
		{title: str(""), category: "CSC"},
		{tags: []string{"x"}, created: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i, it := range items {
		assert.True(t, Matches(rowDesc, it, Criteria{}), "item %d", i)
	}
}

func TestMatchesTextIsCaseInsensitiveSubstring(t *testing.T) {
	assert.True(t, Matches(rowDesc, row{title: str("CSC103 Notes")}, Criteria{Text: "csc"}))
	assert.True(t, Matches(rowDesc, row{title: str("csc103 notes")}, Criteria{Text: "NOTES"}))
	assert.False(t, Matches(rowDesc, row{title: str("MTH101")}, Criteria{Text: "csc"}))
}

func TestMatchesTextMissingFieldDoesNotMatch(t *testing.T) {
	assert.False(t, Matches(rowDesc, row{}, Criteria{Text: "a"}))
}

func TestMatchesTextAnyListEntry(t *testing.T) {
	r := row{tags: []string{"What is a pointer?", "Explain recursion"}}
	assert.True(t, Matches(rowDesc, r, Criteria{Text: "RECURSION"}))
	assert.False(t, Matches(rowDesc, r, Criteria{Text: "closure"}))
}

func TestMatchesDateUsesViewerTimezone(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	created := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	r := row{created: created}

	assert.True(t, Matches(rowDesc, r, Criteria{Date: "2024-03-09"}))
	assert.False(t, Matches(rowDesc, r, Criteria{Date: "2024-03-09", Location: lagos}))
	assert.True(t, Matches(rowDesc, r, Criteria{Date: "2024-03-10", Location: lagos}))
}

func TestMatchesCategorySentinel(t *testing.T) {
	for _, own := range []string{"CSC", "MTH", "", AllCategories} {
		assert.True(t, Matches(rowDesc, row{category: own}, Criteria{Category: AllCategories}), own)
	}
	assert.True(t, Matches(rowDesc, row{category: AllCategories}, Criteria{Category: "CSC"}))
	assert.True(t, Matches(rowDesc, row{category: "CSC"}, Criteria{Category: "CSC"}))
	assert.False(t, Matches(rowDesc, row{category: "MTH"}, Criteria{Category: "CSC"}))
}

func TestMatchesClausesAreAnded(t *testing.T) {
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := row{title: str("Intro"), created: day, category: "CSC"}
	assert.True(t, Matches(rowDesc, r, Criteria{Text: "intro", Date: "2024-05-01", Category: "CSC"}))
	assert.False(t, Matches(rowDesc, r, Criteria{Text: "intro", Date: "2024-05-02", Category: "CSC"}))
	assert.False(t, Matches(rowDesc, r, Criteria{Text: "intro", Date: "2024-05-01", Category: "MTH"}))
}

func TestMatchesUndeclaredFacetsAreIgnored(t *testing.T) {
	d := Descriptor[row]{Name: "bare"}
	assert.True(t, Matches(d, row{}, Criteria{Text: "x", Date: "2024-01-01", Category: "CSC"}))
}

func TestPaginate(t *testing.T) {
	ints := func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	tests := []struct {
		name      string
		n, size   int
		requested int
		wantPage  int
		wantTotal int
		wantItems []int
	}{
		{"empty", 0, 5, 1, 1, 1, []int{}},
		{"twelve first", 12, 5, 1, 1, 3, []int{0, 1, 2, 3, 4}},
		{"twelve last", 12, 5, 3, 3, 3, []int{10, 11}},
		{"out of range resets", 12, 5, 4, 1, 3, []int{0, 1, 2, 3, 4}},
		{"zero resets", 3, 5, 0, 1, 1, []int{0, 1, 2}},
		{"exact multiple", 10, 5, 2, 2, 2, []int{5, 6, 7, 8, 9}},
		{"default size", 6, 0, 2, 2, 2, []int{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(ints(tt.n), tt.size, tt.requested)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantTotal, p.TotalPages)
			assert.Equal(t, tt.wantItems, p.Items)
			assert.Equal(t, tt.n, p.Total)
		})
	}
}

func announcements(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{title: str(fmt.Sprintf("Announcement %d", n-i))}
	}
	return out
}

func TestViewLoadingUntilFirstPush(t *testing.T) {
	v := NewView(rowDesc, AdminFlag(false))
	snap := v.Render()
	assert.Equal(t, StateLoading, snap.State)
	assert.Empty(t, snap.Items)
	assert.False(t, snap.Empty)

	v.Push(nil)
	snap = v.Render()
	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.Empty)
	assert.Equal(t, 1, snap.TotalPages)
}

func TestViewEndToEndAnnouncements(t *testing.T) {
	v := NewView(rowDesc, AdminFlag(false))
	v.Push(announcements(7))

	snap := v.Render()
	require.Equal(t, StateReady, snap.State)
	assert.Len(t, snap.Items, 5)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 2, snap.TotalPages)
	assert.Equal(t, "Announcement 7", *snap.Items[0].title)

	v.SetPage(2)
	snap = v.Render()
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, 2, snap.Page)

	v.SetCriteria(Criteria{Text: "no such thing"})
	snap = v.Render()
	assert.True(t, snap.Empty)
	assert.Empty(t, snap.Items)
	assert.Equal(t, 1, snap.TotalPages)
	assert.Equal(t, 1, snap.Page)

	// the reset sticks after the filter is cleared
	v.SetCriteria(Criteria{})
	snap = v.Render()
	assert.Equal(t, 1, snap.Page)
	assert.Len(t, snap.Items, 5)
}

func TestViewRerendersOnPush(t *testing.T) {
	v := NewView(rowDesc, AdminFlag(true))
	v.Push(announcements(3))
	assert.Equal(t, 3, v.Render().Total)

	v.Push(announcements(12))
	snap := v.Render()
	assert.Equal(t, 12, snap.Total)
	assert.Equal(t, 3, snap.TotalPages)
}

func TestViewRoleGating(t *testing.T) {
	for _, admin := range []bool{false, true} {
		v := NewView(rowDesc, AdminFlag(admin))
		v.Push(announcements(2))
		snap := v.Render()
		assert.Equal(t, admin, snap.Affordances.Create)
		assert.Equal(t, admin, snap.Affordances.Delete)
	}
	assert.Equal(t, Affordances{}, AffordancesFor(nil))
}

func TestDeleteFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("refused without admin", func(t *testing.T) {
		f := NewDeleteFlow(AdminFlag(false))
		assert.ErrorIs(t, f.Open("a1"), ErrDeleteNotAllowed)
		assert.False(t, f.IsOpen())
	})

	t.Run("success closes", func(t *testing.T) {
		var got string
		f := NewDeleteFlow(AdminFlag(true))
		require.NoError(t, f.Open("a1"))
		assert.True(t, f.IsOpen())
		require.NoError(t, f.Confirm(ctx, DeleterFunc(func(_ context.Context, id string) error {
			got = id
			return nil
		})))
		assert.Equal(t, "a1", got)
		assert.False(t, f.IsOpen())
	})

	t.Run("failure keeps dialog and error", func(t *testing.T) {
		boom := errors.New("Unauthorized")
		f := NewDeleteFlow(AdminFlag(true))
		require.NoError(t, f.Open("a1"))
		err := f.Confirm(ctx, DeleterFunc(func(context.Context, string) error { return boom }))
		assert.ErrorIs(t, err, boom)
		assert.True(t, f.IsOpen())
		assert.Equal(t, "a1", f.Target())
		assert.ErrorIs(t, f.Err(), boom)
	})

	t.Run("cancel makes no call", func(t *testing.T) {
		f := NewDeleteFlow(AdminFlag(true))
		require.NoError(t, f.Open("a1"))
		f.Cancel()
		assert.False(t, f.IsOpen())
		assert.Error(t, f.Confirm(ctx, DeleterFunc(func(context.Context, string) error {
			t.Fatal("delete called after cancel")
			return nil
		})))
	})
}
