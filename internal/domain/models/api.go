package models

// WeightsQuery selects and orders entries for the weights listing.
type WeightsQuery struct {
	Limit int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
	Sort  string `query:"sort" default:"weight" validate:"oneof=weight source observations"`
}

// EngineStatus summarizes the live state of the consensus engine.
type EngineStatus struct {
	Shards        int           `json:"shards"`
	OpenWindows   int64         `json:"open_windows"`
	Processed     int64         `json:"processed"`
	Dropped       int64         `json:"dropped"`
	Results       int64         `json:"results"`
	TrackedTokens int64         `json:"tracked_tokens"`
	ShardStatus   []ShardStatus `json:"shard_status"`
}

type ShardStatus struct {
	ID          int   `json:"id"`
	QueueDepth  int   `json:"queue_depth"`
	OpenWindows int64 `json:"open_windows"`
	Processed   int64 `json:"processed"`
	Dropped     int64 `json:"dropped"`
}

// ConsensusQuery selects archived results of one token.
type ConsensusQuery struct {
	Token string `param:"token" validate:"required"`
	Limit int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
	Since string `query:"since"`
}

// HealthStatus reports liveness of the service and its dependencies.
type HealthStatus struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}
