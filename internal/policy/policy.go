// Package policy holds the authorization predicates that gate claiming and
// reviewing. Predicates are evaluated on every call and never cached.
package policy

import (
	"time"

	"github.com/editorhub/editors/internal/models"
)

// Decision is the outcome of a policy check
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an allowing decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with a reason suitable for the caller
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Denial reasons
const (
	ReasonAlreadyClaimed = "project is already claimed"
	ReasonNotOwner       = "only the community owner or a superuser may do this"
	ReasonNoIdentity     = "missing caller identity"
)

// CanClaim allows any identified requester to claim an available project.
// Claiming is itself the gate; there is no separate claim permission.
func CanClaim(project *models.Project, requester *models.User, now time.Time) Decision {
	if requester == nil {
		return Deny(ReasonNoIdentity)
	}
	if project.IsClaimed(now) {
		return Deny(ReasonAlreadyClaimed)
	}
	return Allow()
}

// CanReview allows superusers and the owner of the project's community.
func CanReview(community *models.Community, reviewer *models.User) Decision {
	if reviewer == nil {
		return Deny(ReasonNoIdentity)
	}
	if reviewer.IsSuperuser {
		return Allow()
	}
	if community != nil && community.OwnerID == reviewer.ID {
		return Allow()
	}
	return Deny(ReasonNotOwner)
}

// CanManage gates creating projects inside a community. It follows the review rule.
func CanManage(community *models.Community, user *models.User) Decision {
	return CanReview(community, user)
}
