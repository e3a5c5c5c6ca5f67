package dataset

// Income histogram bins: 4000 to 88000 in steps of 7000. Intervals are
// right-inclusive, (a, b], and indices are 1-based.
const (
	bucketStart = 4000
	bucketStep  = 7000
	bucketCount = 12
)

// BucketEdges returns the histogram bin edges.
func BucketEdges() []float64 {
	edges := make([]float64, bucketCount+1)
	for i := range edges {
		edges[i] = bucketStart + float64(i)*bucketStep
	}
	return edges
}

// BucketFor returns the 1-based bin index and the bin midpoint for income.
// Income outside (4000, 88000] returns (0, 0).
func BucketFor(income float64) (int, float64) {
	if !(income > bucketStart) || income > bucketStart+bucketCount*bucketStep {
		return 0, 0
	}
	i := int((income - bucketStart) / bucketStep)
	lo := bucketStart + float64(i)*bucketStep
	if income == lo {
		// right-inclusive: the edge belongs to the bin below
		i--
		lo -= bucketStep
	}
	return i + 1, lo + bucketStep/2
}
