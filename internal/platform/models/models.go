package models

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	IsActive     bool   `json:"isActive"`
	LastLoginAt  *int64 `json:"lastLoginAt,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

type Membership struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	Role           Role   `json:"role"`
	CreatedAt      int64  `json:"createdAt"`
}

// MemberSummary is a membership joined with the member's profile.
type MemberSummary struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
}

type ChannelSummary struct {
	ID       string   `json:"id"`
	Platform Platform `json:"platform"`
	Name     string   `json:"name"`
	IsActive bool     `json:"isActive"`
}

// OrganizationSummary is an organization as seen by one of its members.
type OrganizationSummary struct {
	Organization
	Role     Role             `json:"role"`
	Members  []MemberSummary  `json:"members"`
	Channels []ChannelSummary `json:"channels"`
}

type Notification struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	ChannelID      string `json:"channelId,omitempty"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Body           string `json:"body,omitempty"`
	IsRead         bool   `json:"isRead"`
	ReadAt         *int64 `json:"readAt,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// OAuthState is the server-side half of an OAuth state parameter.
type OAuthState struct {
	Nonce          string
	OrganizationID string
	UserID         string
	Platform       Platform
	ExpiresAt      int64
	ConsumedAt     *int64
	CreatedAt      int64
}

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	UserID         string                 `json:"userId,omitempty"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resourceType"`
	ResourceID     string                 `json:"resourceId"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      string                 `json:"ipAddress,omitempty"`
	UserAgent      string                 `json:"userAgent,omitempty"`
	CreatedAt      int64                  `json:"createdAt"`
}
