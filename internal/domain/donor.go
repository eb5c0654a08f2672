package domain

// DonorStats aggregates one account's donations across all decoration
// types. Computed on read, never stored.
type DonorStats struct {
	FromAccount    string
	TotalAmount    string // fixed-point sum of all donation amounts
	Count          int
	LightsCount    int
	BallsCount     int
	EnvelopesCount int
	StarsCount     int
}
