package auth

import "alvacus/internal/models"

// Action is something a principal attempts on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionVerify Action = "verify"
	// ActionActAs covers routes that name the acting user in the path.
	ActionActAs Action = "act_as"
)

// Kind classifies resources for policy decisions.
type Kind string

const (
	KindUser         Kind = "user"
	KindCalculator   Kind = "calculator"
	KindComment      Kind = "comment"
	KindSavedList    Kind = "saved_list"
	KindActivity     Kind = "activity"
	KindReport       Kind = "report"
	KindContact      Kind = "contact"
	KindNotification Kind = "notification"
)

// Resource is the policy view of a record: what it is, who owns it, and
// whether its owner made it public.
type Resource struct {
	Kind     Kind
	OwnerID  uint
	HasOwner bool
	Public   bool
}

func owned(kind Kind, ownerID uint) Resource {
	return Resource{Kind: kind, OwnerID: ownerID, HasOwner: true}
}

// UserResource is the account itself.
func UserResource(userID uint) Resource {
	return owned(KindUser, userID)
}

// CalculatorResource is a calculator owned by its author, if the author still exists.
func CalculatorResource(c *models.Calculator) Resource {
	res := Resource{Kind: KindCalculator}
	if c.AuthorID != nil {
		res.OwnerID = *c.AuthorID
		res.HasOwner = true
	}
	return res
}

// CommentResource is a comment, or any of its replies, owned by the comment author.
func CommentResource(c *models.Comment) Resource {
	return owned(KindComment, c.AuthorID)
}

// SavedListResource is a user's saved calculators list.
func SavedListResource(u *models.User) Resource {
	res := owned(KindSavedList, u.ID)
	res.Public = u.Privacy.ShowSavedCalculators
	return res
}

// ActivityResource is a user's comment and reply history.
func ActivityResource(u *models.User) Resource {
	res := owned(KindActivity, u.ID)
	res.Public = u.Privacy.ShowComments
	return res
}

// ModerationResource is the report or contact queue.
func ModerationResource(kind Kind) Resource {
	return Resource{Kind: kind}
}

// Can decides whether p may perform action on res. A nil principal is anonymous.
func Can(p *Principal, action Action, res Resource) bool {
	isOwner := p != nil && res.HasOwner && res.OwnerID == p.UserID
	isAdmin := p.IsAdmin()

	switch res.Kind {
	case KindUser:
		switch action {
		case ActionRead:
			return true
		case ActionUpdate, ActionActAs:
			return isOwner
		case ActionDelete:
			return isOwner || isAdmin
		}

	case KindCalculator:
		switch action {
		case ActionRead:
			return true
		case ActionCreate:
			return p != nil
		case ActionUpdate, ActionDelete:
			return isOwner || isAdmin
		case ActionVerify:
			return isAdmin
		}

	case KindComment:
		switch action {
		case ActionRead:
			return true
		case ActionCreate:
			return p != nil
		case ActionDelete:
			return isOwner
		}

	case KindSavedList, KindActivity:
		if action == ActionRead {
			return res.Public || isOwner || isAdmin
		}

	case KindNotification:
		return isOwner

	case KindReport, KindContact:
		if action == ActionCreate {
			return true
		}
		return isAdmin
	}

	return false
}
