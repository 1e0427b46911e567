package env

import "github.com/zeusync/dodgesim/internal/core/systems/physics"

// Event types published on the bus.
const (
	EventEpisodeBegin = "episode.begin"
	EventAgentHit     = "agent.hit"
	EventEpisodeEnd   = "episode.end"
)

// EpisodeStats summarises an episode so far.
type EpisodeStats struct {
	EpisodeID string  `json:"episode_id"`
	Episode   uint64  `json:"episode"`
	Seed      uint64  `json:"seed"`
	Steps     int     `json:"steps"`
	Return    float64 `json:"return"`
	Hits      int     `json:"hits"`
	Spawned   uint64  `json:"spawned"`
	Culled    uint64  `json:"culled"`
	Truncated bool    `json:"truncated"`
}

// HitEvent is the payload of EventAgentHit.
type HitEvent struct {
	EpisodeID string       `json:"episode_id"`
	Step      int          `json:"step"`
	Position  physics.Vec2 `json:"position"`
	// External is set when the collision came from ReportCollision.
	External bool `json:"external"`
}
