// Package network holds the feed-forward network data model used throughout
// the verifier: named neurons, weight and bias tables backed by dense
// matrices, and forward evaluation. Tables remember the aggregation steps
// applied to them so a later refinement can replay a subset of those steps
// against the original table.
package network

import (
	"fmt"
	"math"
	"sort"
)

// Sign classifies a hidden neuron by the sign of its outgoing edges after the
// pos/neg preprocessing split.
type Sign string

// Sign values. SignNone marks a neuron that was not split yet.
const (
	SignNone Sign = ""
	SignPos  Sign = "Pos"
	SignNeg  Sign = "Neg"
)

// Scaling classifies a hidden neuron by whether increasing its value can only
// increase (Inc) or only decrease (Dec) the network output.
type Scaling string

// Scaling values. ScalingNone marks a neuron that was not split yet.
const (
	ScalingNone Scaling = ""
	ScalingInc  Scaling = "Inc"
	ScalingDec  Scaling = "Dec"
)

// Activation names a per-layer activation function.
type Activation string

// Supported activation functions.
const (
	ActivationID   Activation = "id"
	ActivationRelu Activation = "relu"
)

// Apply applies the activation to a single value.
func (a Activation) Apply(x float64) float64 {
	if a == ActivationRelu {
		return math.Max(x, 0)
	}
	return x
}

// NeuronID identifies a neuron. Two ids are the same neuron iff name, sign and
// scaling all match, so an id survives cloning and table rebuilding. It is a
// small value type and is used directly as a map key.
type NeuronID struct {
	Name    string
	Sign    Sign
	Scaling Scaling
}

// NID is a shorthand constructor for an unclassified neuron.
func NID(name string) NeuronID {
	return NeuronID{Name: name}
}

// TypedNID constructs a fully classified neuron id.
func TypedNID(name string, sign Sign, scaling Scaling) NeuronID {
	return NeuronID{Name: name, Sign: sign, Scaling: scaling}
}

// InputID returns the conventional id of input neuron i (x0, x1, ...).
func InputID(i int) NeuronID { return NID(fmt.Sprintf("x%d", i)) }

// HiddenID returns the conventional id of neuron i in hidden layer l (v1:0, ...).
func HiddenID(layer, i int) NeuronID { return NID(fmt.Sprintf("v%d:%d", layer, i)) }

// OutputID returns the conventional id of output neuron i (y0, y1, ...).
func OutputID(i int) NeuronID { return NID(fmt.Sprintf("y%d", i)) }

// Classified reports whether the neuron carries both a sign and a scaling.
func (id NeuronID) Classified() bool {
	return id.Sign != SignNone && id.Scaling != ScalingNone
}

// SameType reports whether both neurons carry the same (sign, scaling) pair.
func (id NeuronID) SameType(other NeuronID) bool {
	return id.Sign == other.Sign && id.Scaling == other.Scaling
}

// Less orders ids by (name, sign, scaling). Tables keep their rows and
// columns in this order after merges so runs are deterministic.
func (id NeuronID) Less(other NeuronID) bool {
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	if id.Sign != other.Sign {
		return id.Sign < other.Sign
	}
	return id.Scaling < other.Scaling
}

func (id NeuronID) String() string {
	if id.Sign == SignNone && id.Scaling == ScalingNone {
		return id.Name
	}
	return fmt.Sprintf("%s(%s,%s)", id.Name, id.Sign, id.Scaling)
}

// SortIDs sorts the given slice in place by NeuronID.Less and returns it.
func SortIDs(ids []NeuronID) []NeuronID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
