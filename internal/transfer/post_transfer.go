package transfer

// PostCreation is the intake form for a new scheduled post. Platforms,
// groups and tags arrive as JSON arrays in form fields.
type PostCreation struct {
	Text          string
	Platforms     string
	Groups        string
	Tags          string
	Priority      string
	ScheduledTime string
}
