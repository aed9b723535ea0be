// Package access resolves what a user may do with a family tree.
package access

// Level is the effective access a user holds on a tree.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelView:
		return "View"
	case LevelEdit:
		return "Edit"
	case LevelAdmin:
		return "Admin"
	default:
		return "None"
	}
}

// Permission is a collaborator grant value as stored on a tree_collaborators row.
type Permission string

const (
	PermissionView  Permission = "View"
	PermissionEdit  Permission = "Edit"
	PermissionAdmin Permission = "Admin"
)

// ValidPermission reports whether a grant value belongs to the closed set.
func ValidPermission(p Permission) bool {
	switch p {
	case PermissionView, PermissionEdit, PermissionAdmin:
		return true
	default:
		return false
	}
}

// Tree carries the two tree fields the resolver needs.
type Tree struct {
	OwnerID  int64
	IsPublic bool
}

// Resolve computes the effective level for a user on a tree. grant is the
// user's collaborator permission on the tree, or nil when no row exists.
// The owner is always Admin; a public tree gives any user at least View.
func Resolve(tree Tree, userID int64, grant *Permission) Level {
	if tree.OwnerID == userID {
		return LevelAdmin
	}
	if grant != nil {
		switch *grant {
		case PermissionAdmin:
			return LevelAdmin
		case PermissionEdit:
			return LevelEdit
		case PermissionView:
			return LevelView
		}
	}
	if tree.IsPublic {
		return LevelView
	}
	return LevelNone
}

// CanView reports whether the level allows reading the tree and its members.
func CanView(level Level) bool {
	return level >= LevelView
}

// CanEdit reports whether the level allows mutating members, relationships
// and media, and updating the tree record.
func CanEdit(level Level) bool {
	return level >= LevelEdit
}

// CanManage reports whether the level allows sharing the tree and removing
// collaborators.
func CanManage(level Level) bool {
	return level >= LevelAdmin
}

// CanDelete reports whether the user may delete the tree. Deletion is owner
// only: an Admin grant never suffices.
func CanDelete(tree Tree, userID int64) bool {
	return tree.OwnerID == userID
}
