package utils

import (
	"strconv"
	"strings"
)

// Page describes one page of an ordered listing.
// Number is always a valid page: out-of-range requests are clamped to the first or last page.
type Page struct {
	Number   int
	NumPages int
	PerPage  int
	Total    int64
}

// ParsePageNumber reads the 1-based "page" query value, defaulting to 1 when absent or not an integer.
func ParsePageNumber(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return n
}

// Paginate computes page metadata for total items. An empty listing still has one (empty) page.
func Paginate(total int64, number, perPage int) Page {
	if perPage < 1 {
		perPage = 1
	}
	numPages := int((total + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}
	switch {
	case number < 1:
		number = 1
	case number > numPages:
		number = numPages
	}
	return Page{Number: number, NumPages: numPages, PerPage: perPage, Total: total}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

func (p Page) HasNext() bool {
	return p.Number < p.NumPages
}

func (p Page) HasPrevious() bool {
	return p.Number > 1
}

func (p Page) HasOtherPages() bool {
	return p.HasNext() || p.HasPrevious()
}

func (p Page) NextNumber() int {
	if p.HasNext() {
		return p.Number + 1
	}
	return p.Number
}

func (p Page) PreviousNumber() int {
	if p.HasPrevious() {
		return p.Number - 1
	}
	return p.Number
}

// Range lists every page number, for rendering the page links.
func (p Page) Range() []int {
	out := make([]int, p.NumPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
