package trace

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFold_basicTransitions(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   map[string]Classification
	}{
		{
			name:   "read only",
			events: []Event{{Read, "/a"}},
			want:   map[string]Classification{"/a": ClassInput},
		},
		{
			name:   "write only",
			events: []Event{{Write, "/a"}},
			want:   map[string]Classification{"/a": ClassOutput},
		},
		{
			name:   "read then write becomes rw",
			events: []Event{{Read, "/a"}, {Write, "/a"}},
			want:   map[string]Classification{"/a": ClassInputOutput},
		},
		{
			name:   "write then delete becomes transient",
			events: []Event{{Write, "/a"}, {Delete, "/a"}},
			want:   map[string]Classification{"/a": ClassTransient},
		},
		{
			name:   "rw is sticky",
			events: []Event{{Read, "/a"}, {Write, "/a"}, {Read, "/a"}, {Write, "/a"}},
			want:   map[string]Classification{"/a": ClassInputOutput},
		},
		{
			name:   "delete then write reopens as output",
			events: []Event{{Write, "/a"}, {Delete, "/a"}, {Write, "/a"}},
			want:   map[string]Classification{"/a": ClassOutput},
		},
		{
			name: "move rewrite: source deleted, dest written",
			events: append(
				[]Event{{Write, "/t/x"}},
				ExpandMove("/t/y", "/t/x")...,
			),
			want: map[string]Classification{
				"/t/x": ClassTransient,
				"/t/y": ClassOutput,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fold(tt.events)
			if err != nil {
				t.Fatalf("Fold() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fold() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFold_impossibleTransitions(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
	}{
		{"delete before write", []Event{{Delete, "/a"}}},
		{"read then delete", []Event{{Read, "/a"}, {Delete, "/a"}}},
		{"delete then read", []Event{{Write, "/a"}, {Delete, "/a"}, {Read, "/a"}}},
		{"double delete", []Event{{Write, "/a"}, {Delete, "/a"}, {Delete, "/a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fold(tt.events)

			var stateErr *StateError
			if !errors.As(err, &stateErr) {
				t.Fatalf("Fold() error = %v, want *StateError", err)
			}
		})
	}
}

func TestFold_empty(t *testing.T) {
	got, err := Fold(nil)
	if err != nil {
		t.Fatalf("Fold(nil) error = %v", err)
	}

	if len(got) != 0 {
		t.Errorf("Fold(nil) = %v, want empty map", got)
	}
}
