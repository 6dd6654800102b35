package tournaments

// CreateTournamentRequest represents the data needed to create a new tournament
type CreateTournamentRequest struct {
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url,omitempty"`
}

// UpdateTournamentRequest represents the data that can be updated for a tournament.
// An empty logo_url removes the logo.
type UpdateTournamentRequest struct {
	Name    *string `json:"name,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
}
