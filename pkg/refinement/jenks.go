package refinement

import "sort"

// naturalBreaks assigns each value to one of up to k clusters using Jenks
// natural-breaks optimization, minimizing the within-cluster sum of squared
// deviations. Cluster indices are returned in input order; with k or fewer
// values every value gets its own cluster.
func naturalBreaks(values []float64, k int) []int {
	n := len(values)
	if n <= k {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
	sorted := make([]float64, n)
	for i, idx := range order {
		sorted[i] = values[idx]
	}

	// lowerLimit[i][j]: index of the first value of the j-th cluster in the
	// optimal division of sorted[:i]; cost[i][j]: its variance sum.
	lowerLimit := make([][]int, n+1)
	cost := make([][]float64, n+1)
	for i := range lowerLimit {
		lowerLimit[i] = make([]int, k+1)
		cost[i] = make([]float64, k+1)
	}
	const inf = 1e308
	for i := 1; i <= n; i++ {
		for j := 1; j <= k; j++ {
			cost[i][j] = inf
		}
	}

	for i := 1; i <= n; i++ {
		var sum, sumSq float64
		var count float64
		for m := i; m >= 1; m-- {
			v := sorted[m-1]
			sum += v
			sumSq += v * v
			count++
			variance := sumSq - sum*sum/count

			if m == 1 {
				if variance < cost[i][1] {
					cost[i][1] = variance
					lowerLimit[i][1] = 1
				}
				continue
			}
			for j := 2; j <= k; j++ {
				if c := cost[m-1][j-1] + variance; c < cost[i][j] {
					cost[i][j] = c
					lowerLimit[i][j] = m
				}
			}
		}
	}

	clusters := make([]int, n)
	i := n
	for j := k; j >= 1 && i > 0; j-- {
		lo := lowerLimit[i][j]
		for m := lo; m <= i; m++ {
			clusters[m-1] = j - 1
		}
		i = lo - 1
	}

	out := make([]int, n)
	for pos, idx := range order {
		out[idx] = clusters[pos]
	}
	return out
}
