package listing

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain"
)

// insert writes a bare Property row; search tests do not need photos.
func (f *fixture) insert(t *testing.T, loc domain.Location, mutate func(*domain.Property)) domain.Property {
	t.Helper()
	p := domain.Property{
		Name:       "Room",
		Type:       domain.PropertyPG,
		Rent:       8000,
		Gender:     domain.GenderCoed,
		LocationID: loc.ID,
		OwnerID:    f.owner.ID,
	}
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, f.repo.CreateProperty(context.Background(), &p))
	return p
}

func (f *fixture) link(t *testing.T, p domain.Property, amenities ...domain.Amenity) {
	t.Helper()
	ids := make([]int64, 0, len(amenities))
	for _, a := range amenities {
		ids = append(ids, a.ID)
	}
	require.NoError(t, f.repo.ReplaceAmenityLinks(context.Background(), p.ID, ids))
}

func ids(page *Page) []int64 {
	out := make([]int64, 0, len(page.Items))
	for _, l := range page.Items {
		out = append(out, l.ID)
	}
	return out
}

var firstPage = Pagination{Page: 1, Size: 10}

/* ==================== SEARCH ==================== */

func TestSearch_RadiusBoundaryIsInclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lat, lon := *f.location.Latitude, *f.location.Longitude
	near := f.addLocation(t, "Hebbal", float(13.0358), float(77.5970))
	p := f.insert(t, near, nil)

	d := HaversineKm(lat, lon, *near.Latitude, *near.Longitude)
	require.Greater(t, d, 5.0)

	page, err := f.finder.Search(ctx, Caller{}, SearchQuery{
		Latitude: &lat, Longitude: &lon, RadiusKm: &d, Pagination: firstPage,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, ids(page))

	justShort := math.Nextafter(d, 0)
	_, err = f.finder.Search(ctx, Caller{}, SearchQuery{
		Latitude: &lat, Longitude: &lon, RadiusKm: &justShort, Pagination: firstPage,
	})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearch_DefaultRadius(t *testing.T) {
	f := newFixture(t)

	lat, lon := *f.location.Latitude, *f.location.Longitude
	in := f.insert(t, f.addLocation(t, "North 9km", float(lat+0.08), float(lon)), nil)
	f.insert(t, f.addLocation(t, "North 11km", float(lat+0.10), float(lon)), nil)

	page, err := f.finder.Search(context.Background(), Caller{}, SearchQuery{
		Latitude: &lat, Longitude: &lon, Pagination: firstPage,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{in.ID}, ids(page))
}

func TestSearch_CityIsCaseInsensitiveSubstring(t *testing.T) {
	f := newFixture(t)

	blr := f.insert(t, f.location, nil)
	f.insert(t, f.addLocation(t, "Pune", nil, nil), nil)

	for _, city := range []string{"bengaluru", "BENGAL", "  galu "} {
		page, err := f.finder.Search(context.Background(), Caller{}, SearchQuery{City: city, Pagination: firstPage})
		require.NoError(t, err, city)
		assert.Equal(t, []int64{blr.ID}, ids(page), city)
	}

	_, err := f.finder.Search(context.Background(), Caller{}, SearchQuery{City: "Chennai", Pagination: firstPage})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearch_LocationsWithoutCoordinatesNeverMatchRadius(t *testing.T) {
	f := newFixture(t)

	rural := f.insert(t, f.addLocation(t, "Bengaluru Rural", nil, nil), nil)
	urban := f.insert(t, f.location, nil)

	lat, lon := *f.location.Latitude, *f.location.Longitude
	radius := 1000.0
	page, err := f.finder.Search(context.Background(), Caller{}, SearchQuery{
		Latitude: &lat, Longitude: &lon, RadiusKm: &radius, Pagination: firstPage,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{urban.ID}, ids(page))

	page, err = f.finder.Search(context.Background(), Caller{}, SearchQuery{City: "bengaluru", Pagination: firstPage})
	require.NoError(t, err)
	assert.Equal(t, []int64{rural.ID, urban.ID}, ids(page))
}

func TestSearch_CityAndRadiusCombine(t *testing.T) {
	f := newFixture(t)

	lat, lon := *f.location.Latitude, *f.location.Longitude
	f.insert(t, f.location, nil)
	suburb := f.insert(t, f.addLocation(t, "Whitefield", float(12.9698), float(77.7500)), nil)

	radius := 50.0
	page, err := f.finder.Search(context.Background(), Caller{}, SearchQuery{
		City: "white", Latitude: &lat, Longitude: &lon, RadiusKm: &radius, Pagination: firstPage,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{suburb.ID}, ids(page))
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t)
	f.insert(t, f.location, nil)

	cases := map[string]SearchQuery{
		"latitude only":   {Latitude: float(12.9), Pagination: firstPage},
		"longitude only":  {Longitude: float(77.5), Pagination: firstPage},
		"latitude range":  {Latitude: float(91), Longitude: float(0), Pagination: firstPage},
		"longitude range": {Latitude: float(0), Longitude: float(-181), Pagination: firstPage},
		"zero radius":     {Latitude: float(0), Longitude: float(0), RadiusKm: float(0), Pagination: firstPage},
		"page zero":       {City: "beng", Pagination: Pagination{Page: 0, Size: 10}},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.finder.Search(context.Background(), Caller{}, q)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

/* ==================== FILTER ==================== */

func TestFilter_Facets(t *testing.T) {
	f := newFixture(t)

	cheap := f.insert(t, f.location, func(p *domain.Property) { p.Rent = 5000; p.Gender = domain.GenderMale })
	mid := f.insert(t, f.location, func(p *domain.Property) { p.Rent = 10000; p.Type = domain.PropertyFlat })
	top := f.insert(t, f.location, func(p *domain.Property) { p.Rent = 20000; p.Type = domain.PropertyFlat; p.Gender = domain.GenderFemale })

	cases := []struct {
		name string
		q    FilterQuery
		want []int64
	}{
		{"no facets", FilterQuery{}, []int64{cheap.ID, mid.ID, top.ID}},
		{"type", FilterQuery{Type: domain.PropertyFlat}, []int64{mid.ID, top.ID}},
		{"gender", FilterQuery{Gender: domain.GenderMale}, []int64{cheap.ID}},
		{"inclusive range", FilterQuery{MinRent: float(5000), MaxRent: float(10000)}, []int64{cheap.ID, mid.ID}},
		{"min only", FilterQuery{MinRent: float(10000)}, []int64{mid.ID, top.ID}},
		{"max only", FilterQuery{MaxRent: float(4999.99)}, nil},
		{"equal bounds", FilterQuery{MinRent: float(20000), MaxRent: float(20000)}, []int64{top.ID}},
		{"combined", FilterQuery{Type: domain.PropertyFlat, Gender: domain.GenderFemale, MaxRent: float(25000)}, []int64{top.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.q.Pagination = firstPage
			page, err := f.finder.Filter(context.Background(), Caller{}, tc.q)
			if tc.want == nil {
				assert.ErrorIs(t, err, ErrNoResults)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(page))
		})
	}
}

func TestFilter_AmenitiesMatchAnyOf(t *testing.T) {
	f := newFixture(t)
	gym := domain.Amenity{Name: "gym"}
	require.NoError(t, f.db.Create(&gym).Error)

	both := f.insert(t, f.location, nil)
	f.link(t, both, f.wifi, f.parking)
	wifiOnly := f.insert(t, f.location, nil)
	f.link(t, wifiOnly, f.wifi)
	gymOnly := f.insert(t, f.location, nil)
	f.link(t, gymOnly, gym)
	f.insert(t, f.location, nil)

	page, err := f.finder.Filter(context.Background(), Caller{}, FilterQuery{
		AmenityIDs: []int64{f.wifi.ID, f.parking.ID},
		Pagination: firstPage,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{both.ID, wifiOnly.ID}, ids(page), "each property appears once")
	assert.Equal(t, int64(2), page.Total)

	require.Len(t, page.Items[0].Amenities, 2, "the full amenity set is returned, not just the matches")
}

func TestFilter_RentBoundsValidation(t *testing.T) {
	f := newFixture(t)
	f.insert(t, f.location, nil)

	_, err := f.finder.Filter(context.Background(), Caller{}, FilterQuery{MinRent: float(10), MaxRent: float(5), Pagination: firstPage})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.finder.Filter(context.Background(), Caller{}, FilterQuery{MinRent: float(-1), Pagination: firstPage})
	assert.ErrorIs(t, err, ErrValidation)
}

/* ==================== LIST & PAGINATION ==================== */

func TestList_Pagination(t *testing.T) {
	f := newFixture(t)
	var all []int64
	for i := 0; i < 25; i++ {
		p := f.insert(t, f.location, func(p *domain.Property) { p.Name = fmt.Sprintf("Room %02d", i) })
		all = append(all, p.ID)
	}

	page, err := f.finder.List(context.Background(), Caller{}, Pagination{Page: 3, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, all[20:], ids(page))

	_, err = f.finder.List(context.Background(), Caller{}, Pagination{Page: 4, Size: 10})
	assert.ErrorIs(t, err, ErrNoResults)

	page, err = f.finder.List(context.Background(), Caller{}, Pagination{Page: 1, Size: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
	assert.Len(t, page.Items, 25)
	assert.Equal(t, 1, page.TotalPages)

	_, err = f.finder.List(context.Background(), Caller{}, Pagination{Page: 1, Size: 0})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestList_EmptyStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.finder.List(context.Background(), Caller{}, firstPage)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	mine := f.insert(t, f.location, nil)
	f.insert(t, f.location, func(p *domain.Property) { p.OwnerID = f.other.ID })

	page, err := f.finder.ListMine(context.Background(), f.ownerCaller(), firstPage)
	require.NoError(t, err)
	assert.Equal(t, []int64{mine.ID}, ids(page))

	_, err = f.finder.ListMine(context.Background(), Caller{}, firstPage)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.finder.ListMine(context.Background(), f.renterCaller(), firstPage)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.finder.Get(context.Background(), Caller{}, 77)
	assert.ErrorIs(t, err, ErrNotFound)
}
