package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/models"
)

// Rule names accepted in configuration.
const (
	RuleMutualFollow = "mutual_follow"
	RuleTightOverlap = "tight_overlap"
)

// SuperMatchRule flags unusually well-aligned pairs. The flag is a ranking
// hint only; callers treat an error as "not super".
type SuperMatchRule interface {
	Name() string
	IsSuperMatch(ctx context.Context, p *models.Property, c *models.ClientWant) (bool, error)
}

// FollowChecker answers follow-graph questions for MutualFollowRule.
type FollowChecker interface {
	IsMutualFollow(ctx context.Context, agentA, agentB uuid.UUID) (bool, error)
}

// MutualFollowRule fires when the two owning agents follow each other.
type MutualFollowRule struct {
	Follows FollowChecker
}

func (r *MutualFollowRule) Name() string { return RuleMutualFollow }

func (r *MutualFollowRule) IsSuperMatch(ctx context.Context, p *models.Property, c *models.ClientWant) (bool, error) {
	ok, err := r.Follows.IsMutualFollow(ctx, p.AgentID, c.AgentID)
	if err != nil {
		return false, fmt.Errorf("check mutual follow: %w", err)
	}
	return ok, nil
}

// TightOverlapRule fires when the price sits within Ratio of the client's
// range midpoint and the bedroom count is exactly the client's minimum.
type TightOverlapRule struct {
	Ratio float64
}

func (r *TightOverlapRule) Name() string { return RuleTightOverlap }

func (r *TightOverlapRule) IsSuperMatch(_ context.Context, p *models.Property, c *models.ClientWant) (bool, error) {
	mid := (c.PriceMin + c.PriceMax) / 2
	if mid <= 0 {
		return false, nil
	}
	if p.Bedrooms != c.MinBedrooms {
		return false, nil
	}
	return math.Abs(p.Price-mid) <= r.Ratio*mid, nil
}

// AnyRule fires when any member fires. Member errors are only returned when
// no member fired.
type AnyRule []SuperMatchRule

func (a AnyRule) Name() string {
	names := make([]string, 0, len(a))
	for _, r := range a {
		names = append(names, r.Name())
	}
	return "any(" + strings.Join(names, ",") + ")"
}

func (a AnyRule) IsSuperMatch(ctx context.Context, p *models.Property, c *models.ClientWant) (bool, error) {
	var errs []error
	for _, r := range a {
		ok, err := r.IsSuperMatch(ctx, p, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

// BuildRule assembles the configured rules. An empty list yields an AnyRule
// that never fires.
func BuildRule(names []string, tightRatio float64, follows FollowChecker) (SuperMatchRule, error) {
	rules := AnyRule{}
	for _, raw := range names {
		switch name := strings.TrimSpace(raw); name {
		case "":
		case RuleMutualFollow:
			if follows == nil {
				return nil, fmt.Errorf("rule %s needs a follow checker", name)
			}
			rules = append(rules, &MutualFollowRule{Follows: follows})
		case RuleTightOverlap:
			rules = append(rules, &TightOverlapRule{Ratio: tightRatio})
		default:
			return nil, fmt.Errorf("unknown super match rule %q", name)
		}
	}
	return rules, nil
}
