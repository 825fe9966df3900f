package refinement

import (
	"math"
	"math/rand"
	"sort"

	"github.com/mlsafety/cegarete/pkg/network"
)

type abstractNeuron struct {
	Layer int
	ID    network.NeuronID
}

// abstractedNeurons lists the abstract (merged) neurons of the refinable
// layers.
func abstractedNeurons(net *network.Network) []abstractNeuron {
	var out []abstractNeuron
	for l := 2; l <= net.LayerCount()-2; l++ {
		for _, id := range net.Biases[l].IDs() {
			if len(net.Origins(l, id)) > 0 {
				out = append(out, abstractNeuron{Layer: l, ID: id})
			}
		}
	}
	return out
}

// originToAbstract maps every swallowed original neuron to the abstract
// neuron currently holding it.
func originToAbstract(net *network.Network) map[network.NeuronID]abstractNeuron {
	mapping := make(map[network.NeuronID]abstractNeuron)
	for _, a := range abstractedNeurons(net) {
		for _, o := range net.Origins(a.Layer, a.ID) {
			mapping[o] = a
		}
	}
	return mapping
}

// stepsFromOriginals buckets the chosen original neurons by their abstract
// neuron and emits one step per abstract neuron, in deterministic order.
func stepsFromOriginals(originals []network.NeuronID, mapping map[network.NeuronID]abstractNeuron) []Step {
	byAbstract := make(map[abstractNeuron][]network.NeuronID)
	for _, o := range originals {
		a, ok := mapping[o]
		if !ok {
			continue
		}
		byAbstract[a] = append(byAbstract[a], o)
	}

	steps := make([]Step, 0, len(byAbstract))
	for a, parts := range byAbstract {
		steps = append(steps, Step{Layer: a.Layer, Target: a.ID, Parts: network.SortIDs(parts)})
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Layer != steps[j].Layer {
			return steps[i].Layer < steps[j].Layer
		}
		return steps[i].Target.Less(steps[j].Target)
	})
	return steps
}

// ByMaxLoss refines the original neurons whose abstracted edges drifted the
// most: for each swallowed neuron it sums |w_original - w_abstract| over all
// its edges and picks the top SequenceLength.
type ByMaxLoss struct {
	SequenceLength int
}

// edgeLoss accumulates the per-original-neuron weight drift across all
// weight tables.
func edgeLoss(net *network.Network) map[network.NeuronID]float64 {
	loss := make(map[network.NeuronID]float64)
	for _, wt := range net.Weights {
		if len(wt.Records()) == 0 {
			continue
		}
		orig := wt.Original()
		for _, s := range wt.Srcs() {
			srcOrigins := wt.Origins(s)
			if len(srcOrigins) == 0 {
				continue
			}
			for _, d := range wt.Dests() {
				w := wt.At(s, d)
				destOrigins := wt.Origins(d)
				if len(destOrigins) == 0 {
					destOrigins = []network.NeuronID{d}
				}
				for _, os := range srcOrigins {
					for _, od := range destOrigins {
						loss[os] += math.Abs(orig.At(os, od) - w)
					}
				}
			}
		}
	}
	return loss
}

// topLosses returns up to n swallowed neurons ordered by loss, largest
// first. Ties break by name so the choice is stable.
func topLosses(net *network.Network, n int) ([]network.NeuronID, []float64) {
	loss := edgeLoss(net)
	ids := make([]network.NeuronID, 0, len(loss))
	for id := range loss {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if loss[ids[i]] != loss[ids[j]] {
			return loss[ids[i]] > loss[ids[j]]
		}
		return ids[i].Less(ids[j])
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	values := make([]float64, len(ids))
	for i, id := range ids {
		values[i] = loss[id]
	}
	return ids, values
}

func (s ByMaxLoss) Steps(net *network.Network, _ Context) ([]Step, error) {
	n := s.SequenceLength
	if n <= 0 {
		n = 1
	}
	parts, _ := topLosses(net, n)
	return stepsFromOriginals(parts, originToAbstract(net)), nil
}

// ByMaxActivations refines the swallowed neurons with the highest activation
// under the spurious counterexample.
type ByMaxActivations struct {
	MaxPerStep int
}

func (s ByMaxActivations) Steps(net *network.Network, ctx Context) ([]Step, error) {
	mapping := originToAbstract(net)

	candidates := make([]network.NeuronID, 0, len(mapping))
	for o := range mapping {
		if _, ok := ctx.Activations[o]; ok {
			candidates = append(candidates, o)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ai, aj := ctx.Activations[candidates[i]], ctx.Activations[candidates[j]]
		if ai != aj {
			return ai > aj
		}
		return candidates[i].Less(candidates[j])
	})

	n := s.MaxPerStep
	if n <= 0 {
		n = 1
	}
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return stepsFromOriginals(candidates, mapping), nil
}

// Random refines up to MaxPerStep swallowed neurons drawn by reservoir
// sampling.
type Random struct {
	MaxPerStep int
	Seed       int64
}

func (s Random) Steps(net *network.Network, _ Context) ([]Step, error) {
	mapping := originToAbstract(net)
	all := make([]network.NeuronID, 0, len(mapping))
	for o := range mapping {
		all = append(all, o)
	}
	network.SortIDs(all)

	n := s.MaxPerStep
	if n <= 0 {
		n = 1
	}
	rng := rand.New(rand.NewSource(s.Seed))
	var reservoir []network.NeuronID
	for t, o := range all {
		if t < n {
			reservoir = append(reservoir, o)
		} else if m := rng.Intn(t + 1); m < n {
			reservoir[m] = o
		}
	}
	return stepsFromOriginals(reservoir, mapping), nil
}

// ByMaxLossClustered refines the top-loss neurons like ByMaxLoss but
// re-merges neurons whose losses fall into the same natural-breaks cluster,
// keeping the refined network coarser than a one-neuron-at-a-time refine.
type ByMaxLossClustered struct {
	SequenceLength int
}

func (s ByMaxLossClustered) Steps(net *network.Network, _ Context) ([]Step, error) {
	n := s.SequenceLength
	if n <= 0 {
		n = 1
	}
	nodes, losses := topLosses(net, n)
	if len(nodes) == 0 {
		return nil, nil
	}

	mapping := originToAbstract(net)

	distinct := make(map[abstractNeuron]bool)
	for _, node := range nodes {
		distinct[mapping[node]] = true
	}
	clusters := naturalBreaks(losses, 2*len(distinct))

	// bucket by (abstract neuron, cluster)
	type bucket struct {
		a abstractNeuron
		c int
	}
	order := make([]bucket, 0)
	groups := make(map[bucket][]network.NeuronID)
	for i, node := range nodes {
		b := bucket{a: mapping[node], c: clusters[i]}
		if _, ok := groups[b]; !ok {
			order = append(order, b)
		}
		groups[b] = append(groups[b], node)
	}

	var steps []Step
	stepIdx := make(map[abstractNeuron]int)
	for _, b := range order {
		if _, ok := stepIdx[b.a]; !ok {
			steps = append(steps, Step{Layer: b.a.Layer, Target: b.a.ID})
			stepIdx[b.a] = len(steps) - 1
		}
		st := &steps[stepIdx[b.a]]
		group := network.SortIDs(groups[b])
		st.Parts = append(st.Parts, group...)
		st.Groups = append(st.Groups, group)
	}

	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Layer != steps[j].Layer {
			return steps[i].Layer < steps[j].Layer
		}
		return steps[i].Target.Less(steps[j].Target)
	})
	return steps, nil
}
