package view

// DefaultWindowSize is the number of page buttons shown in the sliding window.
const DefaultWindowSize = 5

// PageControl is the render model for a pagination strip: the visible window
// of zero-based page numbers, the first/last shortcuts with their gap markers,
// and the prev/next enablement.
type PageControl struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Pages       []int `json:"pages"`
	ShowFirst   bool  `json:"showFirst"`
	GapBefore   bool  `json:"gapBefore"`
	ShowLast    bool  `json:"showLast"`
	GapAfter    bool  `json:"gapAfter"`
	CanPrev     bool  `json:"canPrev"`
	CanNext     bool  `json:"canNext"`
}

// Visible reports whether a pagination strip should be rendered at all.
// Zero or one page renders no control.
func (pc PageControl) Visible() bool {
	return pc.TotalPages > 1
}

// Window computes the pagination render model for currentPage within
// totalPages. When everything fits (totalPages <= windowSize+2) all pages are
// shown without shortcuts. Otherwise a window of windowSize consecutive pages
// is centered as closely as possible on currentPage and clamped to the valid
// range, with first/last shortcuts and gap markers around it.
func Window(currentPage, totalPages, windowSize int) PageControl {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	currentPage = ClampPage(currentPage, totalPages)

	pc := PageControl{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		CanPrev:     currentPage > 0,
		CanNext:     currentPage < totalPages-1,
	}
	if totalPages <= 1 {
		return pc
	}

	if totalPages <= windowSize+2 {
		pc.Pages = pageRange(0, totalPages-1)
		return pc
	}

	start := currentPage - windowSize/2
	if start < 0 {
		start = 0
	}
	if start > totalPages-windowSize {
		start = totalPages - windowSize
	}
	end := start + windowSize - 1

	pc.Pages = pageRange(start, end)
	pc.ShowFirst = start > 0
	pc.GapBefore = start > 1
	pc.ShowLast = end < totalPages-1
	pc.GapAfter = end < totalPages-2
	return pc
}

// ClampPage forces target into [0, max(totalPages-1, 0)]. A totalPages of
// zero clamps the same way as one.
func ClampPage(target, totalPages int) int {
	max := totalPages - 1
	if max < 0 {
		max = 0
	}
	if target < 0 {
		return 0
	}
	if target > max {
		return max
	}
	return target
}

// CanNavigate reports whether target is a real page. Navigation outside the
// range is a no-op for callers.
func CanNavigate(target, totalPages int) bool {
	return target >= 0 && target < totalPages
}

// PageAfterRemoval returns the page to display after deleting an item:
// the same page, or the previous one when the delete emptied a non-first page.
func PageAfterRemoval(currentPage, remainingOnPage int) int {
	if remainingOnPage == 0 && currentPage > 0 {
		return currentPage - 1
	}
	return currentPage
}

func pageRange(start, end int) []int {
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
