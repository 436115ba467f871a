package engine

import (
	"hash/fnv"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/service"
	"SignalForge/internal/services/rolling"
)

// jumpHash maps key to one of buckets such that growing the bucket count
// moves only 1/n of the keys (Lamping and Veach).
func jumpHash(key uint64, buckets int) int {
	var b, j int64 = -1, 0
	for j < int64(buckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}

// ShardIndex returns the shard that owns token.
func ShardIndex(token string, shards int) int {
	if shards <= 1 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return jumpHash(h.Sum64(), shards)
}

// Router sends every input to the shard that owns its token. Ticks for a
// pair leg are also forwarded to the shard owning the pair's first token.
type Router struct {
	shards       []*Shard
	pairsByToken map[string][]rolling.PairKey
	clock        service.Clock
}

func NewRouter(shards []*Shard, pairs []rolling.PairKey, clock service.Clock) *Router {
	idx := make(map[string][]rolling.PairKey)
	for _, k := range pairs {
		idx[k.A] = append(idx[k.A], k)
		idx[k.B] = append(idx[k.B], k)
	}
	return &Router{shards: shards, pairsByToken: idx, clock: clock}
}

func (r *Router) owner(token string) *Shard {
	return r.shards[ShardIndex(token, len(r.shards))]
}

func (r *Router) RouteObservation(o models.Observation) error {
	now := r.clock.Now()
	if err := r.owner(o.Token).Submit(Event{Kind: EventObservation, Observation: o, Received: now}); err != nil {
		return err
	}
	for _, key := range r.pairsByToken[o.Token] {
		if err := r.owner(key.A).Submit(Event{Kind: EventPairTick, Observation: o, Pair: key, Received: now}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) RouteSignal(s models.Signal) error {
	return r.owner(s.Token).Submit(Event{Kind: EventSignal, Signal: s, Received: r.clock.Now()})
}
