package teams

// CreateTeamRequest represents the data needed to create a new team
type CreateTeamRequest struct {
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url,omitempty"`
}

// UpdateTeamRequest represents the data that can be updated for a team.
// An empty logo_url removes the logo.
type UpdateTeamRequest struct {
	Name    *string `json:"name,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
}
