package rollout

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Step is one recorded transition: the observation the policy saw, the
// action it took and what the environment answered.
type Step struct {
	Observation []float64 `msgpack:"obs"`
	Action      []float64 `msgpack:"act"`
	Reward      float64   `msgpack:"rew"`
	Done        bool      `msgpack:"done"`
	Truncated   bool      `msgpack:"trunc"`
}

// Trajectory is a whole episode as written to a trajectory file.
type Trajectory struct {
	EpisodeID string  `msgpack:"episode_id"`
	Episode   int     `msgpack:"episode"`
	Seed      uint64  `msgpack:"seed"`
	Return    float64 `msgpack:"return"`
	Steps     []Step  `msgpack:"steps"`
}

// Recorder appends trajectories to a stream of msgpack values. It is safe
// for concurrent use; records from parallel episodes never interleave.
type Recorder struct {
	mu    sync.Mutex
	enc   *msgpack.Encoder
	count int
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: msgpack.NewEncoder(w)}
}

func (r *Recorder) Write(t *Trajectory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enc.Encode(t); err != nil {
		return fmt.Errorf("encode trajectory %d: %w", t.Episode, err)
	}
	r.count++
	return nil
}

// Count is the number of trajectories written so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReadTrajectories decodes every trajectory in rd until end of stream.
func ReadTrajectories(rd io.Reader) ([]Trajectory, error) {
	dec := msgpack.NewDecoder(rd)

	var out []Trajectory
	for {
		var t Trajectory
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode trajectory %d: %w", len(out), err)
		}
		out = append(out, t)
	}
}
