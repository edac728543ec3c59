package workload

import (
	"context"
	"math/rand"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"golang.org/x/time/rate"
)

// Generator produces the actions of a Profile. Two generators with the same profile produce the same actions.
type Generator struct {
	profile *Profile
	rnd     *rand.Rand
	zipf    *rand.Zipf
	limiter *rate.Limiter
	count   int
}

func NewGenerator(p *Profile) *Generator {
	g := &Generator{
		profile: p,
		rnd:     rand.New(rand.NewSource(p.Seed)),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if p.Zipf > 1 && p.Keys > 1 {
		g.zipf = rand.NewZipf(g.rnd, p.Zipf, 1, uint64(p.Keys-1))
	}
	if p.Rate > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(p.Rate), 1)
	}
	return g
}

func (g *Generator) key() string {
	if g.zipf != nil {
		return g.profile.Key(int(g.zipf.Uint64()))
	}
	return g.profile.Key(g.rnd.Intn(g.profile.Keys))
}

// Next returns the next action. Reads are Gets and writes increment a counter.
func (g *Generator) Next() *action.Action {
	g.count++
	a := &action.Action{
		DistinctID:    uint64(g.count),
		SingleReplica: g.rnd.Float64() >= g.profile.MultiReplicaRatio,
		ClientChannel: g.profile.ReplyChannel,
	}
	for i := 0; i < g.profile.WriteKeys; i++ {
		key := g.key()
		if a.Writes(key) {
			continue
		}
		a.WriteSet = append(a.WriteSet, key)
		a.Ops = append(a.Ops, action.Add(key, 1))
	}
	for i := 0; i < g.profile.ReadKeys; i++ {
		key := g.key()
		if a.Reads(key) {
			continue
		}
		a.ReadSet = append(a.ReadSet, key)
		a.Ops = append(a.Ops, action.Get(key))
	}
	return a
}

// Done returns true once Count actions were generated.
func (g *Generator) Done() bool {
	return g.profile.Count > 0 && g.count >= g.profile.Count
}

// Run hands actions to emit at the profile's rate until Count is reached, ctx is done or emit fails.
func (g *Generator) Run(ctx context.Context, emit func(*action.Action) error) error {
	for !g.Done() {
		if err := g.limiter.Wait(ctx); err != nil {
			// Wait gives up early when the next token is due after the deadline.
			<-ctx.Done()
			return nil
		}
		if err := emit(g.Next()); err != nil {
			return err
		}
	}
	return nil
}
