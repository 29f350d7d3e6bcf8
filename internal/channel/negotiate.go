package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoobzio/capitan"
)

// Role is the part an agent plays for one cycle.
type Role int

const (
	RoleReceiver Role = iota
	RoleSender
)

func (r Role) String() string {
	if r == RoleSender {
		return "sender"
	}
	return "receiver"
}

// Rule decides whether a captured share of the pool wins negotiation.
type Rule int

const (
	// RuleHalf wins with at least half the pool.  Exactly one of two
	// racers wins when the capacity is odd.
	RuleHalf Rule = iota
	// RuleMajority wins only with strictly more than half, so at most
	// one of any number of racers can win.
	RuleMajority
)

func (r Rule) String() string {
	if r == RuleMajority {
		return "majority"
	}
	return "half"
}

// Wins reports whether holding held of capacity units wins.
func (r Rule) Wins(held, capacity int) bool {
	if r == RuleMajority {
		return 2*held > capacity
	}
	return 2*held >= capacity
}

// ParseRule maps a configuration name to a Rule.
func ParseRule(name string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "half":
		return RuleHalf, nil
	case "majority":
		return RuleMajority, nil
	default:
		return RuleHalf, fmt.Errorf("unknown negotiation rule %q (want half or majority)", name)
	}
}

// Negotiator races for the pool at the start of a cycle.  There is no
// tie-break: whoever the pool serves first captures the share.
type Negotiator struct {
	agent *Agent
	rule  Rule
}

// NewNegotiator returns a negotiator using rule.
func NewNegotiator(a *Agent, rule Rule) *Negotiator {
	return &Negotiator{agent: a, rule: rule}
}

// Negotiate releases everything, tries to take the whole pool and
// keeps it if the rule says so.  A losing agent ends holding nothing.
// It returns the role and the held-count captured during the race.
func (n *Negotiator) Negotiate(ctx context.Context) (Role, int, error) {
	a := n.agent
	if _, err := a.ReleaseAll(ctx); err != nil {
		return RoleReceiver, 0, err
	}
	if _, err := a.ConsumeAll(ctx); err != nil {
		return RoleReceiver, 0, err
	}

	held := a.Held()
	role := RoleReceiver
	if n.rule.Wins(held, a.MaxSlots()) {
		role = RoleSender
	} else if _, err := a.ReleaseAll(ctx); err != nil {
		return RoleReceiver, held, err
	}

	a.metrics.Negotiated(role == RoleSender)
	a.logger.Verbose("negotiation: captured %d/%d, role %s", held, a.MaxSlots(), role)
	capitan.Emit(ctx, NegotiationDecided,
		KeyRole.Field(role.String()),
		KeyHeld.Field(held),
	)
	return role, held, nil
}
