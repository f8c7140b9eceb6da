package pagination

// Page is a single page of results with links to its neighbours.
type Page[T any] struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// MapPage converts the results of p with fn, keeping its links.
func MapPage[T, S any](p *Page[T], fn func(T) (S, error)) (*Page[S], error) {
	results := make([]S, 0, len(p.Results))
	for _, item := range p.Results {
		mapped, err := fn(item)
		if err != nil {
			return nil, err
		}
		results = append(results, mapped)
	}

	return &Page[S]{Next: p.Next, Previous: p.Previous, Results: results}, nil
}

// trimLookahead drops the extra row fetched to detect a following page.
func trimLookahead[T any](resultSet []T, pageSize int) ([]T, bool) {
	if len(resultSet) > pageSize {
		return resultSet[:pageSize], true
	}

	return resultSet, false
}
