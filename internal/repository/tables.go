package repository

// GameTables names the tables backing one game kind. Sessions and campaigns share a schema
// shape and differ only in table names.
type GameTables struct {
	Games    string
	Players  string
	Requests string
	// GameColumn is the foreign key column pointing at Games from Players and Requests.
	GameColumn string
}

var (
	SessionTables = GameTables{
		Games:      "sessions",
		Players:    "session_players",
		Requests:   "session_requests",
		GameColumn: "session_id",
	}
	CampaignTables = GameTables{
		Games:      "campaigns",
		Players:    "campaign_players",
		Requests:   "campaign_requests",
		GameColumn: "campaign_id",
	}
)
