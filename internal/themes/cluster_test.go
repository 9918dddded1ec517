package themes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

var housingDocs = []string{
	"Rent control tenants landlords rent increase",
	"Mortgage rates bank lenders mortgage",
	"Tenants rent control eviction landlords",
	"Zoning council fourplexes zoning bylaw",
	"Bank mortgage rates lenders borrowers",
	"Council zoning bylaw fourplexes approved",
	"Fourplexes zoning council vote",
}

func TestClusterCount(t *testing.T) {
	t.Parallel()

	cases := []struct{ n, limit, want int }{
		{0, 10, 0},
		{2, 10, 2},
		{7, 10, 3},
		{21, 10, 10},
		{30, 20, 15},
		{25, 0, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClusterCount(tc.n, tc.limit), "n=%d limit=%d", tc.n, tc.limit)
	}
}

func TestVectorize(t *testing.T) {
	t.Parallel()

	rows := Vectorize([]string{"Rent control and the tenants", "the and of", ""})
	require.Len(t, rows, 3)
	assert.InDelta(t, 1.0, floats.Norm(rows[0], 2), 1e-9)
	assert.Zero(t, floats.Norm(rows[1], 2))
	assert.Zero(t, floats.Norm(rows[2], 2))

	words := make([]string, 600)
	for i := range words {
		words[i] = fmt.Sprintf("term%03d", i)
	}
	wide := Vectorize([]string{strings.Join(words, " ")})
	assert.Len(t, wide[0], maxFeatures)
}

func TestKMeansSeparatesTopics(t *testing.T) {
	t.Parallel()

	labels := KMeans(Vectorize(housingDocs), ClusterCount(len(housingDocs), 10))
	assert.Equal(t, []int{0, 1, 0, 2, 1, 2, 2}, labels)
}

func TestKMeansEdgeCases(t *testing.T) {
	t.Parallel()

	assert.Nil(t, KMeans(nil, 3))
	assert.Equal(t, []int{0, 1}, KMeans(Vectorize([]string{"rent control", "mortgage rates"}), 5))
	assert.Equal(t, []int{0, 0, 0}, KMeans(Vectorize([]string{"", "", ""}), 3))
}
