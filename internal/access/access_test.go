package access

import "testing"

func grant(p Permission) *Permission { return &p }

func TestOwnerAlwaysAdmin(t *testing.T) {
	tree := Tree{OwnerID: 1, IsPublic: false}

	cases := []*Permission{nil, grant(PermissionView), grant(PermissionEdit), grant(PermissionAdmin)}
	for _, g := range cases {
		level := Resolve(tree, 1, g)
		if level != LevelAdmin {
			t.Fatalf("owner resolved to %v with grant %v", level, g)
		}
		if !CanView(level) || !CanEdit(level) || !CanManage(level) {
			t.Fatalf("owner level %v missing expected capabilities", level)
		}
	}
}

func TestPublicTreeGrantsViewOnly(t *testing.T) {
	tree := Tree{OwnerID: 1, IsPublic: true}

	level := Resolve(tree, 2, nil)
	if level != LevelView {
		t.Fatalf("expected View on public tree, got %v", level)
	}
	if CanEdit(level) {
		t.Fatal("public access must not allow edit")
	}
	if CanManage(level) {
		t.Fatal("public access must not allow manage")
	}
}

func TestPrivateTreeWithoutGrant(t *testing.T) {
	level := Resolve(Tree{OwnerID: 1}, 2, nil)
	if level != LevelNone {
		t.Fatalf("expected None, got %v", level)
	}
	if CanView(level) {
		t.Fatal("no-grant user must not view a private tree")
	}
}

func TestCollaboratorGrants(t *testing.T) {
	tree := Tree{OwnerID: 1, IsPublic: false}

	tests := []struct {
		name   string
		grant  Permission
		view   bool
		edit   bool
		manage bool
	}{
		{"view grant", PermissionView, true, false, false},
		{"edit grant", PermissionEdit, true, true, false},
		{"admin grant", PermissionAdmin, true, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			level := Resolve(tree, 2, grant(tc.grant))
			if got := CanView(level); got != tc.view {
				t.Errorf("CanView = %v, want %v", got, tc.view)
			}
			if got := CanEdit(level); got != tc.edit {
				t.Errorf("CanEdit = %v, want %v", got, tc.edit)
			}
			if got := CanManage(level); got != tc.manage {
				t.Errorf("CanManage = %v, want %v", got, tc.manage)
			}
		})
	}
}

func TestDeleteIsOwnerOnly(t *testing.T) {
	tree := Tree{OwnerID: 1, IsPublic: true}

	if !CanDelete(tree, 1) {
		t.Fatal("owner must be able to delete")
	}
	// An Admin grant still does not allow deletion.
	if Resolve(tree, 2, grant(PermissionAdmin)) != LevelAdmin {
		t.Fatal("sanity: admin grant should resolve to Admin")
	}
	if CanDelete(tree, 2) {
		t.Fatal("admin collaborator must not delete the tree")
	}
}

func TestGrantOverridesPublicView(t *testing.T) {
	// An Edit grant on a public tree resolves above the public View floor.
	level := Resolve(Tree{OwnerID: 1, IsPublic: true}, 2, grant(PermissionEdit))
	if level != LevelEdit {
		t.Fatalf("expected Edit, got %v", level)
	}
}

func TestValidPermission(t *testing.T) {
	for _, p := range []Permission{PermissionView, PermissionEdit, PermissionAdmin} {
		if !ValidPermission(p) {
			t.Errorf("%q should be valid", p)
		}
	}
	for _, p := range []Permission{"", "view", "Owner", "ADMIN"} {
		if ValidPermission(p) {
			t.Errorf("%q should be invalid", p)
		}
	}
}
