package match

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbellec/marketwatch/internal/alert"
)

func floatPtr(v float64) *float64 { return &v }

func TestMatch_BrandAndPriceBound(t *testing.T) {
	t.Parallel()

	criteria := alert.Criteria{
		Brand:    alert.StringCriterion{Value: "nike", Kind: alert.MatchExact},
		MaxPrice: floatPtr(50),
	}

	require.True(t, Match(criteria, alert.Listing{
		ID:    "l1",
		Title: "Air Max 90",
		Brand: "Nike",
		Price: 50,
	}))
	require.False(t, Match(criteria, alert.Listing{
		ID:    "l2",
		Title: "Air Max 90",
		Brand: "Nike",
		Price: 50.01,
	}))
}

func TestMatch_UndefinedCriteriaAreSkipped(t *testing.T) {
	t.Parallel()

	listing := alert.Listing{ID: "l1", Title: "Plain jacket", Price: 12}
	require.True(t, Match(alert.Criteria{}, listing))
}

func TestMatch_AllDefinedCriteriaMustHold(t *testing.T) {
	t.Parallel()

	criteria := alert.Criteria{
		Brand: alert.StringCriterion{Value: "adidas", Kind: alert.MatchExact},
		Size:  alert.StringCriterion{Value: "M", Kind: alert.MatchExact},
	}
	listing := alert.Listing{
		ID:    "l1",
		Title: "Track jacket",
		Brand: "Adidas",
		Size:  "L",
		Price: 30,
	}
	require.False(t, Match(criteria, listing))

	listing.Size = "m"
	require.True(t, Match(criteria, listing))
}

func TestMatch_ContainsKind(t *testing.T) {
	t.Parallel()

	criteria := alert.Criteria{
		Condition: alert.StringCriterion{Value: "new", Kind: alert.MatchContains},
	}
	require.True(t, Match(criteria, alert.Listing{
		ID:        "l1",
		Title:     "Sneakers",
		Condition: "New with tags",
		Price:     80,
	}))
	require.False(t, Match(criteria, alert.Listing{
		ID:        "l2",
		Title:     "Sneakers",
		Condition: "Good",
		Price:     80,
	}))
}

func TestMatch_KeywordsAgainstTitle(t *testing.T) {
	t.Parallel()

	criteria := alert.Criteria{
		Keywords: alert.StringCriterion{Value: "vintage levi", Kind: alert.MatchContains},
	}
	require.True(t, Match(criteria, alert.Listing{
		ID:    "l1",
		Title: "Rare Vintage Levi's 501",
		Price: 45,
	}))
	require.False(t, Match(criteria, alert.Listing{
		ID:    "l2",
		Title: "Levi's 501 new",
		Price: 45,
	}))
}

func TestMatch_InclusiveMinPrice(t *testing.T) {
	t.Parallel()

	criteria := alert.Criteria{MinPrice: floatPtr(20)}
	require.True(t, Match(criteria, alert.Listing{ID: "l1", Title: "Bag", Price: 20}))
	require.False(t, Match(criteria, alert.Listing{ID: "l2", Title: "Bag", Price: 19.99}))
}

func TestMatch_MalformedListingNeverMatches(t *testing.T) {
	t.Parallel()

	require.False(t, Match(alert.Criteria{}, alert.Listing{ID: "l1", Price: 10}))
	require.False(t, Match(alert.Criteria{}, alert.Listing{Title: "No ID", Price: 10}))
	require.False(t, Match(alert.Criteria{}, alert.Listing{ID: "l2", Title: "Free", Price: 0}))
}

func TestSelect_PreservesOrder(t *testing.T) {
	t.Parallel()

	criteria := alert.Criteria{MaxPrice: floatPtr(100)}
	candidates := []alert.Listing{
		{ID: "a", Title: "First", Price: 10},
		{ID: "b", Title: "Too expensive", Price: 300},
		{ID: "c", Title: "Third", Price: 99},
	}
	got := Select(criteria, candidates)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID)
	require.Equal(t, "c", got[1].ID)
}
