package snaps

import (
	"slices"
	"testing"
)

func TestIsSnapID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"npm:foo", true},
		{"npm:@scope/foo", true},
		{"local:http://localhost:8080", true},
		{"npm:", false},
		{"foo", false},
		{"NPM:foo", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSnapID(tt.id); got != tt.want {
			t.Errorf("IsSnapID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSnapSetContains(t *testing.T) {
	set := SnapSet{"npm:a": {}, "npm:b": {}}
	tests := []struct {
		name  string
		other SnapSet
		want  bool
	}{
		{"subset", SnapSet{"npm:a": {}}, true},
		{"equal", SnapSet{"npm:a": {}, "npm:b": {}}, true},
		{"empty", SnapSet{}, true},
		{"extra id", SnapSet{"npm:c": {}}, false},
		{"partial overlap", SnapSet{"npm:a": {}, "npm:c": {}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.Contains(tt.other); got != tt.want {
				t.Errorf("Contains = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	existing := SnapSet{"npm:a": {"version": "1.0.0"}}
	requested := SnapSet{"npm:a": {"version": "2.0.0"}, "npm:b": {}}

	merged := Merge(existing, requested)

	if got := merged.IDs(); !slices.Equal(got, []string{"npm:a", "npm:b"}) {
		t.Errorf("ids = %v", got)
	}
	if merged["npm:a"].Version() != "2.0.0" {
		t.Errorf("version = %q, want requested version", merged["npm:a"].Version())
	}
	if len(existing) != 1 || existing["npm:a"].Version() != "1.0.0" {
		t.Errorf("existing modified: %v", existing)
	}
	if len(requested) != 2 {
		t.Errorf("requested modified: %v", requested)
	}
}

func TestPermissionRequestSnapIDs(t *testing.T) {
	set := SnapSet{"npm:a": {}}
	req := NewPermissionRequest(set)
	if got := req.SnapIDs(); len(got) != 1 || !got.Contains(set) {
		t.Errorf("SnapIDs = %v", got)
	}
	if got := (PermissionRequest{"eth_accounts": {}}).SnapIDs(); got != nil {
		t.Errorf("SnapIDs without wallet_snap = %v, want nil", got)
	}
}
