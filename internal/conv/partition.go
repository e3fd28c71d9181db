package conv

// Partition returns the half-open range [start, end) of work owned by task
// id when total units are divided among tasks contiguous slices. Every task
// gets total/tasks units; the final task absorbs the remainder, so the union
// of all slices covers [0, total) exactly once with no overlap. When tasks
// exceeds total, surplus tasks receive empty ranges.
func Partition(total, tasks, id int) (start, end int) {
	chunk := total / tasks
	start = id * chunk
	end = start + chunk
	if id == tasks-1 {
		end = total
	}
	return start, end
}
