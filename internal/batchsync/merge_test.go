package batchsync

import (
	"slices"
	"strings"
	"testing"

	"github.com/rickgao/ordersync/internal/model"
)

func order(id, status string) model.Order {
	return model.Order{ID: id, Status: status}
}

// describeOrders renders id:status pairs for compact comparison.
func describeOrders(orders []model.Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = o.ID + ":" + o.Status
	}
	return strings.Join(parts, ",")
}

func TestMergeView(t *testing.T) {
	onlyReady := func(o model.Order) bool { return o.Status == model.StatusReady }

	tests := []struct {
		name    string
		view    []model.Order
		fresh   []model.Order
		admit   func(model.Order) bool
		want    string
		changed bool
	}{
		{
			name:    "replace in place",
			view:    []model.Order{order("a", "pending"), order("b", "pending"), order("c", "pending")},
			fresh:   []model.Order{order("b", "ready")},
			want:    "a:pending,b:ready,c:pending",
			changed: true,
		},
		{
			name:    "append new at end in fresh order",
			view:    []model.Order{order("a", "pending")},
			fresh:   []model.Order{order("z", "ready"), order("y", "ready")},
			want:    "a:pending,z:ready,y:ready",
			changed: true,
		},
		{
			name:    "replace and append",
			view:    []model.Order{order("a", "pending"), order("b", "pending")},
			fresh:   []model.Order{order("c", "ready"), order("a", "ready")},
			want:    "a:ready,b:pending,c:ready",
			changed: true,
		},
		{
			name:    "identical snapshot is no change",
			view:    []model.Order{order("a", "ready")},
			fresh:   []model.Order{order("a", "ready")},
			want:    "a:ready",
			changed: false,
		},
		{
			name:    "new order not admitted",
			view:    []model.Order{order("a", "ready")},
			fresh:   []model.Order{order("b", "pending")},
			admit:   onlyReady,
			want:    "a:ready",
			changed: false,
		},
		{
			name:    "existing order replaced even if no longer admitted",
			view:    []model.Order{order("a", "ready")},
			fresh:   []model.Order{order("a", "served")},
			admit:   onlyReady,
			want:    "a:served",
			changed: true,
		},
		{
			name:    "duplicate in fresh appended once, last wins",
			view:    nil,
			fresh:   []model.Order{order("a", "pending"), order("a", "ready")},
			want:    "a:ready",
			changed: true,
		},
		{
			name:    "empty fresh",
			view:    []model.Order{order("a", "ready")},
			fresh:   nil,
			want:    "a:ready",
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := slices.Clone(tt.view)

			got, changed := MergeView(tt.view, tt.fresh, tt.admit)
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
			if d := describeOrders(got); d != tt.want {
				t.Errorf("merged = %s, want %s", d, tt.want)
			}
			if describeOrders(tt.view) != describeOrders(before) {
				t.Error("input view was modified")
			}
		})
	}
}

func TestMergeView_Idempotent(t *testing.T) {
	view := []model.Order{order("a", "pending"), order("b", "pending")}
	fresh := []model.Order{order("b", "ready"), order("c", "pending")}

	once, changed := MergeView(view, fresh, nil)
	if !changed {
		t.Fatal("first merge reported no change")
	}

	twice, changed := MergeView(once, fresh, nil)
	if changed {
		t.Error("second merge reported a change")
	}
	if describeOrders(twice) != describeOrders(once) {
		t.Errorf("second merge = %s, want %s", describeOrders(twice), describeOrders(once))
	}
}

func TestMergeView_UnchangedReturnsSameSlice(t *testing.T) {
	view := []model.Order{order("a", "pending")}
	got, changed := MergeView(view, []model.Order{order("x", "ready")}, func(model.Order) bool { return false })
	if changed {
		t.Fatal("expected no change")
	}
	if &got[0] != &view[0] {
		t.Error("unchanged view should be returned as is")
	}
}
