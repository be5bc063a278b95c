package batchsync

import (
	"github.com/rickgao/ordersync/internal/model"
)

// MergeView upserts fresh into view. Orders already in the view are replaced
// in place; orders not in the view are appended in fresh order when admit
// accepts them (nil admits everything). Orders absent from fresh are left as
// they are.
//
// When nothing differs the input slice is returned unchanged with changed
// false. The input slice is never modified.
func MergeView(view, fresh []model.Order, admit func(model.Order) bool) ([]model.Order, bool) {
	if len(fresh) == 0 {
		return view, false
	}

	byID := make(map[string]model.Order, len(fresh))
	for _, o := range fresh {
		byID[o.ID] = o
	}

	var out []model.Order
	present := make(map[string]bool, len(view))

	for i, o := range view {
		present[o.ID] = true

		f, ok := byID[o.ID]
		if !ok || f.Equal(o) {
			continue
		}
		if out == nil {
			out = make([]model.Order, len(view), len(view)+len(fresh))
			copy(out, view)
		}
		out[i] = f
	}

	for _, f := range fresh {
		if present[f.ID] {
			continue
		}
		present[f.ID] = true

		if admit != nil && !admit(byID[f.ID]) {
			continue
		}
		if out == nil {
			out = make([]model.Order, len(view), len(view)+len(fresh))
			copy(out, view)
		}
		out = append(out, byID[f.ID])
	}

	if out == nil {
		return view, false
	}
	return out, true
}
