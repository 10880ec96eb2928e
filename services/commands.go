package services

import (
	"strings"
	"unicode/utf8"

	"civicguardian-be/apperrors"
	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxCommentLength     = 1000
	maxImagesPerIssue    = 5
)

// ReportCommand carries a citizen submission.
type ReportCommand struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Latitude    *float64
	Longitude   *float64
	Address     string
	Images      []string
}

func (c *ReportCommand) Validate() error {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Address = strings.TrimSpace(c.Address)

	switch {
	case c.Title == "":
		return apperrors.Validation("title is required")
	case utf8.RuneCountInString(c.Title) > maxTitleLength:
		return apperrors.Validation("title must be at most %d characters", maxTitleLength)
	case c.Description == "":
		return apperrors.Validation("description is required")
	case utf8.RuneCountInString(c.Description) > maxDescriptionLength:
		return apperrors.Validation("description must be at most %d characters", maxDescriptionLength)
	case c.Category == "":
		return apperrors.Validation("category is required")
	case !c.Category.Valid():
		return apperrors.Validation("invalid category %q", c.Category)
	case c.Latitude == nil || c.Longitude == nil:
		return apperrors.Validation("location latitude and longitude are required")
	case *c.Latitude < -90 || *c.Latitude > 90:
		return apperrors.Validation("latitude must be between -90 and 90")
	case *c.Longitude < -180 || *c.Longitude > 180:
		return apperrors.Validation("longitude must be between -180 and 180")
	case len(c.Images) > maxImagesPerIssue:
		return apperrors.Validation("at most %d images are allowed", maxImagesPerIssue)
	}

	images := make([]string, 0, len(c.Images))
	for _, url := range c.Images {
		if url = strings.TrimSpace(url); url != "" {
			images = append(images, url)
		}
	}
	c.Images = images
	return nil
}

// SetStatusCommand is the authority status override.
type SetStatusCommand struct {
	IssueID            primitive.ObjectID
	Status             models.IssueStatus
	AssignedDepartment *string
}

func (c *SetStatusCommand) Validate() error {
	if c.Status == "" {
		return apperrors.Validation("status is required")
	}
	if !c.Status.Valid() {
		return apperrors.Validation("invalid status %q", c.Status)
	}
	// An empty department means "leave unchanged".
	if c.AssignedDepartment != nil {
		dept := strings.TrimSpace(*c.AssignedDepartment)
		if dept == "" {
			c.AssignedDepartment = nil
		} else {
			c.AssignedDepartment = &dept
		}
	}
	return nil
}

type VerifyCommand struct {
	IssueID  primitive.ObjectID
	Verified bool
	Comment  string
}

func (c *VerifyCommand) Validate() error {
	c.Comment = strings.TrimSpace(c.Comment)
	if utf8.RuneCountInString(c.Comment) > maxCommentLength {
		return apperrors.Validation("comment must be at most %d characters", maxCommentLength)
	}
	return nil
}

type CommentCommand struct {
	IssueID primitive.ObjectID
	Text    string
}

func (c *CommentCommand) Validate() error {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return apperrors.Validation("comment text is required")
	}
	if utf8.RuneCountInString(c.Text) > maxCommentLength {
		return apperrors.Validation("comment must be at most %d characters", maxCommentLength)
	}
	return nil
}

// UpvoteResult is returned by ToggleUpvote.
type UpvoteResult struct {
	Upvoted     bool `json:"upvoted"`
	UpvoteCount int  `json:"upvoteCount"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	VerificationCount     int                `json:"verificationCount"`
	PositiveVerifications int                `json:"positiveVerifications"`
	Status                models.IssueStatus `json:"status"`
}
