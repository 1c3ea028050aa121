//go:build linux

package sandbox

import "testing"

func TestRebasePathsInEnvironment(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want map[string]string
	}{
		{
			name: "absolute value rebased",
			in:   map[string]string{"HOME": "/home/u"},
			want: map[string]string{"HOME": "/S/home/u"},
		},
		{
			name: "colon-delimited list rebases only absolute segments",
			in:   map[string]string{"PATH": "/usr/bin:relative:/bin"},
			want: map[string]string{"PATH": "/S/usr/bin:relative:/S/bin"},
		},
		{
			name: "non-path value untouched",
			in:   map[string]string{"LANG": "en_US.UTF-8"},
			want: map[string]string{"LANG": "en_US.UTF-8"},
		},
		{
			name: "empty value untouched",
			in:   map[string]string{"EMPTY": ""},
			want: map[string]string{"EMPTY": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RebasePathsInEnvironment("/S", tt.in)

			for k, want := range tt.want {
				if got[k] != want {
					t.Errorf("rebase(%q) = %q, want %q", tt.in[k], got[k], want)
				}
			}
		})
	}
}
