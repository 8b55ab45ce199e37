package topping

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/common"
)

func TestDistributeSumsToBase(t *testing.T) {
	for _, tc := range []struct{ base, max int }{{6, 2}, {12, 4}} {
		for n := 1; n <= tc.max; n++ {
			selected := []string{"a", "b", "c", "d"}[:n]
			dist, err := Distribute(tc.base, tc.max, selected)
			require.NoError(t, err)
			require.Equal(t, tc.base, dist.Total(), "base=%d n=%d", tc.base, n)
			require.Equal(t, selected, dist.IDs())
		}
	}
}

func TestDistributeRemainderFollowsSelectionOrder(t *testing.T) {
	dist, err := Distribute(12, 5, []string{"sesame", "poppy", "cheddar", "asiago", "plain"})
	require.NoError(t, err)
	require.Equal(t, Distribution{
		{ToppingID: "sesame", Count: 3},
		{ToppingID: "poppy", Count: 3},
		{ToppingID: "cheddar", Count: 2},
		{ToppingID: "asiago", Count: 2},
		{ToppingID: "plain", Count: 2},
	}, dist)

	dist, err = Distribute(6, 4, []string{"x", "y", "z", "w"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"x": 2, "y": 2, "z": 1, "w": 1}, dist.Map())
}

func TestDistributeRejectsBadSelections(t *testing.T) {
	_, err := Distribute(6, 2, nil)
	require.True(t, errors.Is(err, common.ErrValidation))
	require.Contains(t, err.Error(), "select at least one topping")

	_, err = Distribute(6, 2, []string{"a", "b", "c"})
	require.True(t, errors.Is(err, common.ErrValidation))
	require.Contains(t, err.Error(), "too many toppings")

	_, err = Distribute(6, 2, []string{"a", "a"})
	require.True(t, errors.Is(err, common.ErrValidation))

	_, err = Distribute(6, 2, []string{" "})
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestCustomizeHalfDozen(t *testing.T) {
	box, err := Customize(catalog.Default(), "half-dozen-bagels", []string{"cheddar", "sesame"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"cheddar": 3, "sesame": 3}, box.Distribution.Map())
	require.EqualValues(t, 1400, box.Price)
}

func TestCustomizeDozen(t *testing.T) {
	box, err := Customize(catalog.Default(), "dozen-bagels", []string{"cheddar", "asiago", "sesame"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"cheddar": 4, "asiago": 4, "sesame": 4}, box.Distribution.Map())
	require.EqualValues(t, 2500, box.Price)
}

func TestCustomizePlainIsFree(t *testing.T) {
	box, err := Customize(catalog.Default(), "half-dozen-bagels", []string{"plain"})
	require.NoError(t, err)
	require.EqualValues(t, 1200, box.Price)
	require.Equal(t, 6, box.Distribution.Total())
}

func TestCustomizeErrors(t *testing.T) {
	c := catalog.Default()

	_, err := Customize(c, "baguette", []string{"plain"})
	require.True(t, errors.Is(err, common.ErrCatalog))

	_, err = Customize(c, "dozen-bagels", []string{"ketchup"})
	require.True(t, errors.Is(err, common.ErrCatalog))

	_, err = Customize(c, "rye-loaf", []string{"plain"})
	require.True(t, errors.Is(err, common.ErrValidation))

	_, err = Customize(c, "half-dozen-bagels", []string{"plain", "sesame", "poppy"})
	require.True(t, errors.Is(err, common.ErrValidation))
}
