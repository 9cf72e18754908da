// Package access decides who may see or change what.
//
// Every decision is a pure function of an explicit Identity, the
// resolved facts about the target entity (Target) and the Operation.
// Tasks, comments and attachments have no ACL of their own: their
// visibility is always the visibility of the project they belong to.
package access

import "slices"

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID uint
}

func As(userID uint) Identity { return Identity{UserID: userID} }

func (i Identity) Authenticated() bool { return i.UserID != 0 }

type Kind uint8

const (
	KindProject Kind = iota + 1
	KindTask
	KindTag
	KindComment
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindTask:
		return "task"
	case KindTag:
		return "tag"
	case KindComment:
		return "comment"
	case KindAttachment:
		return "attachment"
	}
	return "entity"
}

type Operation uint8

const (
	OpRead Operation = iota + 1
	OpCreate
	OpUpdate
	OpDelete
	OpAddMember
	OpRemoveMember
)

// ProjectACL holds the facts a project contributes to every decision
// about itself and the entities it contains.
type ProjectACL struct {
	OwnerID   uint
	MemberIDs []uint
}

func (a ProjectACL) IsOwner(id Identity) bool {
	return id.Authenticated() && a.OwnerID == id.UserID
}

func (a ProjectACL) IsMember(id Identity) bool {
	return id.Authenticated() && slices.Contains(a.MemberIDs, id.UserID)
}

func (a ProjectACL) Visible(id Identity) bool {
	return a.IsOwner(id) || a.IsMember(id)
}

// Target is an entity instance reduced to what the policy needs.
// Project is the owning project for tasks, comments and attachments
// (the project itself for KindProject). AuthorID is only meaningful for
// comments; 0 means the author account no longer exists.
type Target struct {
	Kind     Kind
	Project  ProjectACL
	AuthorID uint
}

type Rule uint8

const (
	// RuleAuthenticated allows any authenticated identity.
	RuleAuthenticated Rule = iota + 1
	// RuleVisible allows the project owner and members.
	RuleVisible
	// RuleOwner allows only the project owner.
	RuleOwner
	// RuleAuthor allows only the comment author.
	RuleAuthor
)

type entry struct {
	rule   Rule
	reason string
}

// policy is the complete entity-kind x operation table. A missing pair
// is denied.
var policy = map[Kind]map[Operation]entry{
	KindProject: {
		OpRead:         {rule: RuleVisible},
		OpCreate:       {rule: RuleAuthenticated},
		OpUpdate:       {rule: RuleOwner, reason: "Only project owner can modify the project"},
		OpDelete:       {rule: RuleOwner, reason: "Only project owner can delete the project"},
		OpAddMember:    {rule: RuleOwner, reason: "Only project owner can add members"},
		OpRemoveMember: {rule: RuleOwner, reason: "Only project owner can remove members"},
	},
	KindTask: {
		OpRead:   {rule: RuleVisible},
		OpCreate: {rule: RuleVisible},
		OpUpdate: {rule: RuleVisible},
		OpDelete: {rule: RuleVisible},
	},
	KindTag: {
		OpRead:   {rule: RuleAuthenticated},
		OpCreate: {rule: RuleAuthenticated},
		OpUpdate: {rule: RuleAuthenticated},
		OpDelete: {rule: RuleAuthenticated},
	},
	KindComment: {
		OpRead:   {rule: RuleVisible},
		OpCreate: {rule: RuleVisible},
		OpUpdate: {rule: RuleAuthor, reason: "Only the comment author can edit this comment"},
		OpDelete: {rule: RuleAuthor, reason: "Only the comment author can delete this comment"},
	},
	KindAttachment: {
		OpRead:   {rule: RuleVisible},
		OpCreate: {rule: RuleVisible},
		OpUpdate: {rule: RuleVisible},
		OpDelete: {rule: RuleVisible},
	},
}

// RuleFor reports the rule governing (kind, op), or false when the pair
// is not in the table.
func RuleFor(k Kind, op Operation) (Rule, bool) {
	e, ok := policy[k][op]
	return e.rule, ok
}

// Decision is the outcome of CanPerform. Hidden is set when the caller
// cannot see the target at all, in which case the existence of the
// target must not be confirmed.
type Decision struct {
	Allowed bool
	Hidden  bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

// CanPerform evaluates the policy table. Any rule stronger than
// RuleAuthenticated first requires project visibility, so a caller
// outside the project is always Hidden rather than merely refused.
func CanPerform(id Identity, t Target, op Operation) Decision {
	if !id.Authenticated() {
		return Decision{Reason: "authentication required"}
	}
	e, ok := policy[t.Kind][op]
	if !ok {
		return Decision{Reason: "operation not permitted on " + t.Kind.String()}
	}
	if e.rule == RuleAuthenticated {
		return allow()
	}
	if !t.Project.Visible(id) {
		return Decision{Hidden: true, Reason: t.Kind.String() + " not found"}
	}

	switch e.rule {
	case RuleVisible:
		return allow()
	case RuleOwner:
		if t.Project.IsOwner(id) {
			return allow()
		}
	case RuleAuthor:
		if t.AuthorID != 0 && t.AuthorID == id.UserID {
			return allow()
		}
	}
	return Decision{Reason: e.reason}
}

// Authorize is CanPerform mapped onto the error taxonomy: nil when
// allowed, ErrUnauthenticated for anonymous callers, NotFound when the
// target is invisible and Forbidden otherwise.
func Authorize(id Identity, t Target, op Operation) error {
	d := CanPerform(id, t, op)
	switch {
	case d.Allowed:
		return nil
	case !id.Authenticated():
		return ErrUnauthenticated
	case d.Hidden:
		return NotFound(t.Kind.String())
	default:
		return Forbidden(d.Reason)
	}
}

// AuthorizeRemoveMember applies the owner-only rule and then refuses to
// detach the owner from their own project.
func AuthorizeRemoveMember(id Identity, acl ProjectACL, userID uint) error {
	if err := Authorize(id, Target{Kind: KindProject, Project: acl}, OpRemoveMember); err != nil {
		return err
	}
	if userID == acl.OwnerID {
		return Conflict("Cannot remove project owner")
	}
	return nil
}
