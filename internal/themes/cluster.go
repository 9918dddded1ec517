package themes

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

const (
	maxFeatures   = 500
	maxIterations = 100
)

var stopWords = toSet(`a about above after again against all also am an and any are as at be because
been before being below between both but by can could did do does doing down during each few for
from further had has have having he her here hers herself him himself his how i if in into is it
its itself just me more most my myself no nor not now of off on once only or other our ours
ourselves out over own same she should so some such than that the their theirs them themselves
then there these they this those through to too under until up very was we were what when where
which while who whom why will with would you your yours yourself yourselves said says new one two
many much may might must per via within without`)

func toSet(words string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// ClusterCount picks how many themes to form from n documents: up to limit
// for batches of more than 20, otherwise three, never more than n.
func ClusterCount(n, limit int) int {
	if n <= 0 {
		return 0
	}
	k := 3
	if n > 20 {
		k = min(limit, n/2)
	}
	return max(min(k, n), 1)
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Vectorize builds L2-normalized TF-IDF rows over the most frequent terms.
// IDF is smoothed: ln((1+n)/(1+df)) + 1.
func Vectorize(docs []string) [][]float64 {
	tokens := make([][]string, len(docs))
	total := map[string]int{}
	df := map[string]int{}
	for i, d := range docs {
		tokens[i] = tokenize(d)
		seen := map[string]struct{}{}
		for _, w := range tokens[i] {
			total[w]++
			if _, ok := seen[w]; !ok {
				seen[w] = struct{}{}
				df[w]++
			}
		}
	}

	vocab := make([]string, 0, len(total))
	for w := range total {
		vocab = append(vocab, w)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if total[vocab[i]] != total[vocab[j]] {
			return total[vocab[i]] > total[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > maxFeatures {
		vocab = vocab[:maxFeatures]
	}
	index := make(map[string]int, len(vocab))
	for i, w := range vocab {
		index[w] = i
	}

	n := float64(len(docs))
	rows := make([][]float64, len(docs))
	for i, words := range tokens {
		row := make([]float64, len(vocab))
		for _, w := range words {
			if j, ok := index[w]; ok {
				row[j]++
			}
		}
		for w, j := range index {
			if row[j] > 0 {
				row[j] *= math.Log((1+n)/(1+float64(df[w]))) + 1
			}
		}
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		rows[i] = row
	}
	return rows
}

// KMeans assigns each row to one of k clusters. Centroids start from
// farthest-first seeds (row 0 first), so the result is deterministic.
// Cluster ids are numbered in order of first appearance.
func KMeans(rows [][]float64, k int) []int {
	n := len(rows)
	if n == 0 || k <= 0 {
		return nil
	}
	k = min(k, n)
	dim := len(rows[0])

	centroids := seeds(rows, k)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for range maxIterations {
		changed := false
		for i, row := range rows {
			best := nearest(row, centroids)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, row := range rows {
			floats.Add(sums[assign[i]], row)
			counts[assign[i]]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}
	}
	return renumber(assign)
}

func seeds(rows [][]float64, k int) [][]float64 {
	chosen := []int{0}
	minDist := make([]float64, len(rows))
	for i, row := range rows {
		minDist[i] = floats.Distance(row, rows[0], 2)
	}
	for len(chosen) < k {
		next := -1
		for i, d := range minDist {
			if next < 0 || d > minDist[next] {
				next = i
			}
		}
		chosen = append(chosen, next)
		for i, row := range rows {
			minDist[i] = math.Min(minDist[i], floats.Distance(row, rows[next], 2))
		}
	}

	centroids := make([][]float64, k)
	for c, i := range chosen {
		centroids[c] = append([]float64(nil), rows[i]...)
	}
	return centroids
}

func nearest(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(row, centroid, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func renumber(assign []int) []int {
	ids := map[int]int{}
	out := make([]int, len(assign))
	for i, c := range assign {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		out[i] = id
	}
	return out
}
