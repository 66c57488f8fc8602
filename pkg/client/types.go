package client

import "time"

type Profile struct {
	ID        int64  `json:"id"`
	UserName  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedBy int64     `json:"created_by"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GroupSummary struct {
	Group
	MemberCount int       `json:"member_count"`
	Members     []Profile `json:"members"`
}

type GroupOverview struct {
	GroupSummary
	Preview []Item `json:"preview"`
}

type Status string

const (
	StatusIdea     Status = "idea"
	StatusPlanning Status = "planning"
	StatusDone     Status = "done"
)

type Item struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Date        string    `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	Status      Status    `json:"status"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Upvotes      []int64 `json:"upvotes"`
	CommentCount int64   `json:"comment_count"`
}

// HasUpvote reports whether userID has RSVPed.
func (it Item) HasUpvote(userID int64) bool {
	for _, id := range it.Upvotes {
		if id == userID {
			return true
		}
	}
	return false
}

type NewItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Status      Status `json:"status,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type Board struct {
	GroupID   int64              `json:"group_id"`
	GroupName string             `json:"group_name"`
	Items     []Item             `json:"items"`
	Creators  map[int64]*Profile `json:"creators"`
	Upvoters  map[int64]*Profile `json:"upvoters"`
}

type Comment struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	CreatedBy int64     `json:"created_by"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UserName  string    `json:"username"`
}

type DateSuggestion struct {
	ID          int64     `json:"id"`
	ItemID      int64     `json:"item_id"`
	Date        string    `json:"date"`
	SuggestedBy int64     `json:"suggested_by"`
	CreatedAt   time.Time `json:"created_at"`
	Votes       []int64   `json:"votes"`
}

type VoteResult struct {
	SuggestionID int64 `json:"suggestion_id"`
	Voted        bool  `json:"voted"`
}

type AuthStatus string

const (
	AuthAuthenticated        AuthStatus = "authenticated"
	AuthAwaitingConfirmation AuthStatus = "awaiting_confirmation"
)

type AuthResult struct {
	Status    AuthStatus `json:"status"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      *Profile   `json:"user"`
}

type Me struct {
	Profile
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"email_confirmed"`
}
