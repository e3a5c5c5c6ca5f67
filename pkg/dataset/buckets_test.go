package dataset

import (
	"math"
	"testing"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		income  float64
		wantIdx int
		wantMid float64
	}{
		{4000, 0, 0},
		{4001, 1, 7500},
		{11000, 1, 7500},
		{11001, 2, 14500},
		{25000, 3, 21500},
		{60000, 8, 56500},
		{88000, 12, 84500},
		{88001, 0, 0},
		{-5, 0, 0},
		{math.NaN(), 0, 0},
	}
	for _, tt := range tests {
		idx, mid := BucketFor(tt.income)
		if idx != tt.wantIdx || mid != tt.wantMid {
			t.Errorf("BucketFor(%v) = (%d, %v), want (%d, %v)", tt.income, idx, mid, tt.wantIdx, tt.wantMid)
		}
	}
}

func TestBucketEdges(t *testing.T) {
	edges := BucketEdges()
	if len(edges) != 13 {
		t.Fatalf("len(edges) = %d, want 13", len(edges))
	}
	if edges[0] != 4000 || edges[12] != 88000 {
		t.Errorf("edges = [%v .. %v], want [4000 .. 88000]", edges[0], edges[12])
	}
	for i := 1; i < len(edges); i++ {
		if edges[i]-edges[i-1] != 7000 {
			t.Errorf("edge step %d = %v, want 7000", i, edges[i]-edges[i-1])
		}
	}
}
