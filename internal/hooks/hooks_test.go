package hooks

import (
	"context"
	"testing"

	"snaprpc/server/internal/snaps"
)

func TestSelect(t *testing.T) {
	all := Map{
		GetSnapsName:       GetSnaps(func(ctx context.Context) (map[string]snaps.Snap, error) { return nil, nil }),
		InvokeSnapName:     InvokeSnap(func(ctx context.Context, req SnapRequest) (any, error) { return nil, nil }),
		GetSnapStateName:   GetSnapState(func(ctx context.Context, encrypted bool) (map[string]any, error) { return nil, nil }),
		ClearSnapStateName: ClearSnapState(func(ctx context.Context, encrypted bool) error { return nil }),
	}

	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"subset", []string{GetSnapsName}, []string{GetSnapsName}},
		{"missing omitted", []string{GetSnapsName, GetAllSnapsName}, []string{GetSnapsName}},
		{"none", nil, nil},
		{"all missing", []string{GetVersionName}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(all, tt.names)
			if len(got) != len(tt.want) {
				t.Fatalf("selected %d hooks, want %d: %v", len(got), len(tt.want), got)
			}
			for _, name := range tt.want {
				if _, ok := got[name]; !ok {
					t.Errorf("missing %s", name)
				}
			}
			for name := range got {
				found := false
				for _, n := range tt.names {
					if n == name {
						found = true
					}
				}
				if !found {
					t.Errorf("exposed undeclared hook %s", name)
				}
			}
		})
	}

	if len(all) != 4 {
		t.Errorf("Select modified its input: %d hooks", len(all))
	}
}

func TestGet(t *testing.T) {
	m := Map{
		GetVersionName:  GetVersion(func(ctx context.Context) string { return "12.0.0" }),
		GetIsLockedName: func(ctx context.Context) bool { return true },
	}

	getVersion, err := Get[GetVersion](m, GetVersionName)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v := getVersion(context.Background()); v != "12.0.0" {
		t.Errorf("version = %q", v)
	}

	if _, err := Get[GetVersion](m, GetSnapsName); err == nil {
		t.Error("expected error for missing hook")
	}
	// Unnamed func types do not satisfy the named hook type.
	if _, err := Get[GetIsLocked](m, GetIsLockedName); err == nil {
		t.Error("expected error for mistyped hook")
	}
}

func TestMergeHooks(t *testing.T) {
	calls := map[string]int{}
	m := Map{
		InstallSnapsName: InstallSnaps(func(ctx context.Context, requested snaps.SnapSet) (snaps.InstallResults, error) {
			calls[InstallSnapsName]++
			return snaps.InstallResults{}, nil
		}),
		RequestPermissionsName: RequestPermissions(func(ctx context.Context, req snaps.PermissionRequest) (snaps.InstallResults, error) {
			calls[RequestPermissionsName]++
			return snaps.InstallResults{}, nil
		}),
		GetPermissionsName: GetPermissions(func(ctx context.Context) (snaps.SnapSet, bool, error) {
			calls[GetPermissionsName]++
			return nil, false, nil
		}),
	}

	h, err := MergeHooks(m)
	if err != nil {
		t.Fatalf("MergeHooks failed: %v", err)
	}
	h.GetPermissions(context.Background())
	h.RequestPermissions(context.Background(), nil)
	h.InstallSnaps(context.Background(), nil)
	for _, name := range []string{InstallSnapsName, RequestPermissionsName, GetPermissionsName} {
		if calls[name] != 1 {
			t.Errorf("%s called %d times", name, calls[name])
		}
	}

	delete(m, GetPermissionsName)
	if _, err := MergeHooks(m); err == nil {
		t.Error("expected error when a permission hook is missing")
	}
}
