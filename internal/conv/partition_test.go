package conv

import "testing"

// TestPartitionExactCover tests that every unit is assigned to exactly one
// task across a range of totals and task counts.
func TestPartitionExactCover(t *testing.T) {
	for _, tasks := range []int{1, 2, 3, 4, 7, 8} {
		for _, total := range []int{0, 1, 5, 8, 12, 100, 101} {
			covered := make([]int, total)
			prevEnd := 0
			for id := 0; id < tasks; id++ {
				start, end := Partition(total, tasks, id)
				if start != prevEnd {
					t.Fatalf("tasks=%d total=%d id=%d: start %d, want %d", tasks, total, id, start, prevEnd)
				}
				if end < start {
					t.Fatalf("tasks=%d total=%d id=%d: end %d before start %d", tasks, total, id, end, start)
				}
				for i := start; i < end; i++ {
					covered[i]++
				}
				prevEnd = end
			}
			if prevEnd != total {
				t.Fatalf("tasks=%d total=%d: last end %d, want %d", tasks, total, prevEnd, total)
			}
			for i, n := range covered {
				if n != 1 {
					t.Errorf("tasks=%d total=%d: unit %d covered %d times", tasks, total, i, n)
				}
			}
		}
	}
}

// TestPartitionEven tests an evenly divisible split.
func TestPartitionEven(t *testing.T) {
	for id := 0; id < 4; id++ {
		start, end := Partition(12, 4, id)
		if start != id*3 || end != id*3+3 {
			t.Errorf("id=%d: got [%d,%d), want [%d,%d)", id, start, end, id*3, id*3+3)
		}
	}
}

// TestPartitionRemainder tests that the final task absorbs the remainder.
func TestPartitionRemainder(t *testing.T) {
	// 10/4 = 2 per task, last takes 4.
	wants := [][2]int{{0, 2}, {2, 4}, {4, 6}, {6, 10}}
	for id, want := range wants {
		start, end := Partition(10, 4, id)
		if start != want[0] || end != want[1] {
			t.Errorf("id=%d: got [%d,%d), want [%d,%d)", id, start, end, want[0], want[1])
		}
	}
}

// TestPartitionMoreTasksThanWork tests that surplus tasks receive empty
// ranges and the final task still covers everything.
func TestPartitionMoreTasksThanWork(t *testing.T) {
	for id := 0; id < 7; id++ {
		start, end := Partition(3, 8, id)
		if start != 0 || end != 0 {
			t.Errorf("id=%d: got [%d,%d), want empty", id, start, end)
		}
	}
	start, end := Partition(3, 8, 7)
	if start != 0 || end != 3 {
		t.Errorf("last task: got [%d,%d), want [0,3)", start, end)
	}
}
