package exam

import "github.com/pavelanni/mocktest/internal/model"

// SectionOrder returns the distinct section names of qs in order of first
// appearance. Blank sections count as model.DefaultSection.
func SectionOrder(qs []model.Question) []string {
	order, _ := GroupBySection(qs)
	return order
}

// GroupBySection returns the section order together with the indexes of
// the questions belonging to each section, in their original order.
func GroupBySection(qs []model.Question) ([]string, map[string][]int) {
	var order []string
	groups := make(map[string][]int)
	for i, q := range qs {
		name := q.Section
		if name == "" {
			name = model.DefaultSection
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], i)
	}
	return order, groups
}
