package services

import "civicguardian-be/models"

// Reward amounts. civicPoints only ever grow through these.
const (
	PointsForReport       = 10
	PointsForUpvote       = 2
	PointsForVerification = 5
)

// VerificationThreshold is the number of positive verifications that move a
// pending issue to verified.
const VerificationThreshold = 3

// Badge names
const (
	BadgeCivicStarter     = "Civic Starter"
	BadgeFirstReport      = "First Report"
	BadgeVerifiedReporter = "Verified Reporter"
	BadgeTopVerifier      = "Top Verifier"
	BadgeCommunityHero    = "Community Hero"
)

var badgeIcons = map[string]string{
	BadgeCivicStarter:     "🌟",
	BadgeFirstReport:      "📝",
	BadgeVerifiedReporter: "✅",
	BadgeTopVerifier:      "🏆",
	BadgeCommunityHero:    "🦸",
}

// BadgeIcon returns the icon registered for a badge name.
func BadgeIcon(name string) string { return badgeIcons[name] }

type badgeRule struct {
	name   string
	earned func(*models.User) bool
}

// thresholdBadges are re-evaluated after every reward lands.
var thresholdBadges = []badgeRule{
	{name: BadgeFirstReport, earned: func(u *models.User) bool { return u.IssuesReported >= 1 }},
	{name: BadgeTopVerifier, earned: func(u *models.User) bool { return u.IssuesVerified >= 10 }},
	{name: BadgeCommunityHero, earned: func(u *models.User) bool { return u.CivicPoints >= 100 }},
}

// earnedBadges lists threshold badges the user qualifies for but lacks.
func earnedBadges(u *models.User) []string {
	var out []string
	for _, rule := range thresholdBadges {
		if rule.earned(u) && !u.HasBadge(rule.name) {
			out = append(out, rule.name)
		}
	}
	return out
}
