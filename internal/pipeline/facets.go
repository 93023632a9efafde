package pipeline

import "github.com/logdyhq/logdy-ui/internal/model"

// Aggregate merges a row's facets into the global collections: each
// (name, value) pair gets a collection and an item on first sight, and
// the item's occurrence count is incremented. Counts only ever grow;
// eviction does not decrement them.
func Aggregate(fv model.FacetValues, facets []model.Facet) {
	for _, f := range facets {
		coll, ok := fv[f.Name]
		if !ok {
			coll = &model.FacetCollection{Name: f.Name}
			fv[f.Name] = coll
		}

		var item *model.FacetItem
		for _, it := range coll.Items {
			if it.Label == f.Value {
				item = it
				break
			}
		}
		if item == nil {
			item = &model.FacetItem{Label: f.Value}
			coll.Items = append(coll.Items, item)
		}
		item.Count++
	}
}

// SelectedByName returns the selected facet values grouped by facet
// name. Names with no selection are absent.
func SelectedByName(fv model.FacetValues) map[string][]string {
	selected := make(map[string][]string)
	for name, coll := range fv {
		for _, it := range coll.Items {
			if it.Selected {
				selected[name] = append(selected[name], it.Label)
			}
		}
	}
	return selected
}

// ToggleFacet flips the selection of one value under one name.
func ToggleFacet(fv model.FacetValues, name, value string) {
	coll, ok := fv[name]
	if !ok {
		return
	}
	for _, it := range coll.Items {
		if it.Label == value {
			it.Selected = !it.Selected
			return
		}
	}
}

// ClearFacet resets all selections under one name. Counts are left
// untouched.
func ClearFacet(fv model.FacetValues, name string) {
	coll, ok := fv[name]
	if !ok {
		return
	}
	for _, it := range coll.Items {
		it.Selected = false
	}
}

// ClearAllSelections resets every selection in every collection.
func ClearAllSelections(fv model.FacetValues) {
	for name := range fv {
		ClearFacet(fv, name)
	}
}
