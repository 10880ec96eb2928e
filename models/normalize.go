package models

// Normalize replaces nil collections with empty ones so that documents
// decoded from storage can be mutated and re-encoded as arrays/objects
// rather than null.
func (i *Issue) Normalize() {
	if i.Images == nil {
		i.Images = []Image{}
	}
	if i.Upvotes == nil {
		i.Upvotes = map[string]Upvote{}
	}
	if i.Verifications == nil {
		i.Verifications = map[string]Verification{}
	}
	if i.Comments == nil {
		i.Comments = []Comment{}
	}
	if i.Timeline == nil {
		i.Timeline = []TimelineEntry{}
	}
}

func (u *User) Normalize() {
	if u.Badges == nil {
		u.Badges = []Badge{}
	}
}
