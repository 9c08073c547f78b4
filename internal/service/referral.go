package service

import (
	"context"
	"fmt"
	"strings"
)

const referralTokenPrefix = "ref"

type ReferralService struct {
	repo AccountRepository
}

func NewReferralService(repo AccountRepository) *ReferralService {
	return &ReferralService{
		repo: repo,
	}
}

// Attribute links userID to the referrer carried in token. Malformed
// tokens, self-referrals and already-attributed accounts all attribute
// nothing and return no error; referral intake is lenient by design.
func (s *ReferralService) Attribute(ctx context.Context, userID, token string) error {
	referrerID, ok := parseReferralToken(token)
	if !ok || referrerID == userID {
		return nil
	}

	err := s.repo.SetReferrer(ctx, userID, referrerID)
	if err != nil {
		return fmt.Errorf("failed to attribute referral: %w", err)
	}
	return nil
}

// LinkSeed returns the opaque start payload that attributes new users to
// userID.
func (s *ReferralService) LinkSeed(userID string) string {
	return referralTokenPrefix + userID
}

// parseReferralToken extracts a referrer id from a start payload. The
// known prefix is stripped when present; otherwise the whole token is
// taken as the id. Anything that is not a plain numeric id parses to
// nothing.
func parseReferralToken(token string) (string, bool) {
	id := strings.TrimPrefix(token, referralTokenPrefix)
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}
