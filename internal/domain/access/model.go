package access

import (
	"time"

	"github.com/careledger/careledger/pkg/principal"
)

// Grant authorizes one family member to read one patient's data. The row's
// presence is the authorization bit: revoking deletes it, and there is no
// disabled or expired state to reason about.
type Grant struct {
	Patient      principal.Principal `db:"patient" json:"patient"`
	Member       principal.Principal `db:"member" json:"member"`
	Relationship string              `db:"relationship" json:"relationship"`
	GrantedAt    time.Time           `db:"granted_at" json:"granted_at"`
}
