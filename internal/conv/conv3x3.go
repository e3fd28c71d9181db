package conv

// conv3x3Viable reports whether the fixed 3x3 specialization applies: a
// Winograd-viable shape whose output extent supports the 4-unit transform.
func conv3x3Viable(p Params) bool {
	return winogradViable(p) && selectOutputUnit(p) == 4
}

// RunConv3x3 executes the fixed 3x3 specialization for one task: the
// Winograd pipeline with the output unit pinned to 4 (F(4x4, 3x3)) at
// compile time, sharing the same scratch layout, transform structure and
// phase sequencing.
func RunConv3x3(c *CompiledConv, s *WinogradScratch, task int) {
	RunWinograd(c, s, task)
}
