package pagination

import (
	"sort"
	"sync"
	"testing"
)

func TestAccumulator_Merge(t *testing.T) {
	acc := NewAccumulator[string]()

	if !acc.Merge(0, Page[string]{Total: 3, Items: []string{"A-1", "A-2"}}) {
		t.Fatal("first merge of offset 0 returned false")
	}
	if !acc.Merge(2, Page[string]{Total: 3, StartAt: 2, Items: []string{"A-3"}}) {
		t.Fatal("first merge of offset 2 returned false")
	}

	if acc.Total() != 3 {
		t.Errorf("Total() = %d, want 3", acc.Total())
	}
	if acc.Len() != 3 {
		t.Errorf("Len() = %d, want 3", acc.Len())
	}
	if !acc.Complete() {
		t.Error("Complete() = false, want true")
	}
	if !acc.Finished(2) || acc.Finished(4) {
		t.Error("Finished() does not reflect merged offsets")
	}
}

func TestAccumulator_MergeIsIdempotentPerOffset(t *testing.T) {
	acc := NewAccumulator[int]()
	page := Page[int]{Total: 4, StartAt: 2, Items: []int{2, 3}}

	acc.Merge(0, Page[int]{Total: 4, Items: []int{0, 1}})
	acc.Merge(2, page)

	// A stale success for a page that already landed.
	if acc.Merge(2, page) {
		t.Error("second merge of offset 2 returned true")
	}
	if acc.Len() != 4 {
		t.Errorf("Len() = %d after duplicate merge, want 4", acc.Len())
	}
}

func TestAccumulator_TotalTracksLatestPage(t *testing.T) {
	acc := NewAccumulator[int]()
	acc.Merge(0, Page[int]{Total: 10})
	acc.Merge(5, Page[int]{Total: 12})

	if acc.Total() != 12 {
		t.Errorf("Total() = %d, want 12", acc.Total())
	}
}

func TestAccumulator_MembershipIndependentOfArrivalOrder(t *testing.T) {
	pages := map[int]Page[int]{
		0:  {Total: 25, Items: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		10: {Total: 25, StartAt: 10, Items: []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}},
		20: {Total: 25, StartAt: 20, Items: []int{20, 21, 22, 23, 24}},
	}
	orders := [][]int{
		{0, 10, 20}, {0, 20, 10}, {10, 0, 20},
		{10, 20, 0}, {20, 0, 10}, {20, 10, 0},
	}

	var want []int
	for i, order := range orders {
		acc := NewAccumulator[int]()
		for _, offset := range order {
			acc.Merge(offset, pages[offset])
		}
		got := acc.Items()
		sort.Ints(got)

		if i == 0 {
			want = got
			continue
		}
		if len(got) != len(want) {
			t.Fatalf("order %v: %d items, want %d", order, len(got), len(want))
		}
		for j := range got {
			if got[j] != want[j] {
				t.Fatalf("order %v: membership differs at %d", order, j)
			}
		}
	}
}

func TestAccumulator_ConcurrentMerge(t *testing.T) {
	acc := NewAccumulator[int]()

	var wg sync.WaitGroup
	for offset := 0; offset < 50; offset++ {
		wg.Add(2)
		for dup := 0; dup < 2; dup++ {
			go func() {
				defer wg.Done()
				acc.Merge(offset, Page[int]{Total: 50, StartAt: offset, Items: []int{offset}})
			}()
		}
	}
	wg.Wait()

	if acc.Len() != 50 {
		t.Errorf("Len() = %d, want 50", acc.Len())
	}
	if got := acc.Offsets(); len(got) != 50 || got[0] != 0 || got[49] != 49 {
		t.Errorf("Offsets() = %v, want 0..49", got)
	}
}

func TestAccumulator_ItemsReturnsCopy(t *testing.T) {
	acc := NewAccumulator[int]()
	acc.Merge(0, Page[int]{Total: 1, Items: []int{7}})

	items := acc.Items()
	items[0] = 99

	if acc.Items()[0] != 7 {
		t.Error("mutating Items() result changed the accumulator")
	}
}
