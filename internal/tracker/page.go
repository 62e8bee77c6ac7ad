package tracker

// PageSizeAll — показать всё одной страницей.
const (
	PageSizeAll     = -1
	DefaultPageSize = 10
)

var allowedPageSizes = map[int]struct{}{5: {}, 10: {}, 50: {}, 100: {}, PageSizeAll: {}}

type Page struct {
	Number     int
	Size       int
	TotalItems int
	TotalPages int
}

// NormalizePageSize: неизвестный размер превращается в DefaultPageSize.
func NormalizePageSize(size int) int {
	if _, ok := allowedPageSizes[size]; ok {
		return size
	}
	return DefaultPageSize
}

// Paginate возвращает страницу и границы среза [lo, hi).
// Номер страницы зажимается в [1, TotalPages].
func Paginate(total, number, size int) (Page, int, int) {
	size = NormalizePageSize(size)
	if size == PageSizeAll {
		return Page{Number: 1, Size: size, TotalItems: total, TotalPages: 1}, 0, total
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}
	lo := (number - 1) * size
	hi := lo + size
	if hi > total {
		hi = total
	}
	return Page{Number: number, Size: size, TotalItems: total, TotalPages: pages}, lo, hi
}

// PageCompleted обрезает корзину Completed до нужной страницы.
func (b Board) PageCompleted(number, size int) Board {
	p, lo, hi := Paginate(len(b.Completed), number, size)
	b.Completed = b.Completed[lo:hi]
	b.CompletedPage = p
	return b
}
