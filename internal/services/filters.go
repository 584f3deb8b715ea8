package services

import (
	"github.com/shopspring/decimal"
	"github.com/veloshop/storefront/internal/store"
	"github.com/veloshop/storefront/pkg/filter"
)

// FiltersFromState translates browsing state into listing predicates.
// Category entries are slugs; resolve maps them to ids and may be nil.
// Unresolved entries are used as ids.
func FiltersFromState(st filter.State, resolve func(slug string) string) ProductFilters {
	f := ProductFilters{
		Brands:    st.Brand,
		Search:    st.SearchQuery,
		MinRating: st.Rating,
		Sort:      sortFor(st.SortBy),
		Limit:     st.PageSize,
		Offset:    st.Offset(),
	}

	for _, slug := range st.Category {
		id := slug
		if resolve != nil {
			if resolved := resolve(slug); resolved != "" {
				id = resolved
			}
		}
		f.CategoryIDs = append(f.CategoryIDs, id)
	}

	// the default range means "any price"
	if st.HasPriceRange() {
		lo := decimal.NewFromFloat(st.PriceRange[0])
		hi := decimal.NewFromFloat(st.PriceRange[1])
		f.MinPrice = &lo
		f.MaxPrice = &hi
	}
	return f
}

func sortFor(sortBy string) store.Sort {
	switch sortBy {
	case "price-asc":
		return store.SortPriceAsc
	case "price-desc":
		return store.SortPriceDesc
	case "name":
		return store.SortName
	case "rating":
		return store.SortRating
	default:
		// popularity has no signal of its own yet
		return store.SortNewest
	}
}
