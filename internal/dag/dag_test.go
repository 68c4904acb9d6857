// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps []string
		links [][2]string
		want  []string
	}{
		{name: "empty"},
		{name: "single step", steps: []string{"trigger"}, want: []string{"trigger"}},
		{
			name:  "chain",
			links: [][2]string{{"trigger", "enrich"}, {"enrich", "close"}},
			want:  []string{"trigger", "enrich", "close"},
		},
		{
			name: "diamond",
			links: [][2]string{
				{"trigger", "enrich"}, {"trigger", "notify"},
				{"enrich", "close"}, {"notify", "close"},
			},
			want: []string{"trigger", "enrich", "notify", "close"},
		},
		{
			name:  "parallel branches keep insertion order",
			steps: []string{"b", "a"},
			links: [][2]string{{"a", "c"}},
			want:  []string{"b", "a", "c"},
		},
		{
			name:  "duplicate links",
			links: [][2]string{{"trigger", "close"}, {"trigger", "close"}},
			want:  []string{"trigger", "close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, s := range tt.steps {
				g.AddStep(s)
			}
			for _, l := range tt.links {
				g.Link(l[0], l[1])
			}
			got, err := g.Order()
			if err != nil {
				t.Fatalf("Order() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Order() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrder_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		links [][2]string
		want  []string
	}{
		{name: "self loop", links: [][2]string{{"a", "a"}}, want: []string{"a"}},
		{name: "two steps", links: [][2]string{{"a", "b"}, {"b", "a"}}, want: []string{"a", "b"}},
		{
			name:  "downstream of cycle",
			links: [][2]string{{"root", "a"}, {"a", "b"}, {"b", "a"}, {"b", "tail"}},
			want:  []string{"a", "b", "tail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, l := range tt.links {
				g.Link(l[0], l[1])
			}
			_, err := g.Order()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("Order() error = %v, want *CycleError", err)
			}
			if !slices.Equal(cycleErr.Steps, tt.want) {
				t.Errorf("CycleError.Steps = %v, want %v", cycleErr.Steps, tt.want)
			}
		})
	}
}

func TestRootsAndHas(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddStep("trigger")
	g.Link("trigger", "close")
	g.AddStep("orphan")

	if got := g.Roots(); !slices.Equal(got, []string{"trigger", "orphan"}) {
		t.Errorf("Roots() = %v", got)
	}
	if !g.Has("close") || g.Has("missing") {
		t.Error("Has() reported wrong membership")
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{Steps: []string{"a", "b"}}
	if got, want := err.Error(), "step cycle detected: a -> b"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
