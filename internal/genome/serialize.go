package genome

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/examm-go/examm/internal/rnn"
)

// Binary stream layout (little-endian, fixed-width), per spec §4.2
// "Serialization": no pack library offers this exact byte framing, so
// this file leans on encoding/binary + bufio directly rather than a
// generic codec.
//
//	i32  generation id
//	i32  group (island) id
//	i32  bp iterations
//	i32  genome type (unused scalar, reserved 0)
//	u8   dropout flag
//	f64  dropout probability
//	str  log filename
//	str  rng state
//	f64  best validation MSE
//	f64  best validation MAE
//	f64[] initial parameters   (i32 count, then f64 payload)
//	f64[] best parameters
//	str[] input parameter names
//	str[] output parameter names
//	node block
//	edge block
//	recurrent-edge block
//	str   normalize type
//	map[string]f64 mins
//	map[string]f64 maxs
//	map[string]f64 avgs
//	map[string]f64 std_devs
//	i32[] training indices

var errShortStream = errors.New("genome: deserialization mismatch, stream shorter than declared length")

// Serialize writes g's full binary representation to w.
func (g *Genome) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := &binWriter{w: bw}

	enc.i32(int32(g.GenerationID))
	enc.i32(int32(g.GroupID))
	enc.i32(int32(g.BPIterations))
	enc.i32(0)
	enc.u8(g.Dropout)
	enc.f64(g.DropoutProbability)
	enc.str(g.LogFilename)
	enc.str(g.RNGState)
	enc.f64(g.BestValidationMSE)
	enc.f64(g.BestValidationMAE)
	enc.f64slice(g.InitialParameters)
	enc.f64slice(g.BestParameters)
	enc.strSlice(g.InputParameterNames)
	enc.strSlice(g.OutputParameterNames)

	enc.i32(int32(len(g.Nodes)))
	for _, n := range g.Nodes {
		writeNode(enc, n)
	}
	enc.i32(int32(len(g.Edges)))
	for _, e := range g.Edges {
		enc.i32(int32(e.InnovationNumber))
		enc.i32(int32(e.SourceInnovation))
		enc.i32(int32(e.TargetInnovation))
		enc.f64(e.Weight)
		enc.u8(e.Enabled)
	}
	enc.i32(int32(len(g.RecurrentEdges)))
	for _, e := range g.RecurrentEdges {
		enc.i32(int32(e.InnovationNumber))
		enc.i32(int32(e.SourceInnovation))
		enc.i32(int32(e.TargetInnovation))
		enc.i32(int32(e.RecurrentDepth))
		enc.f64(e.Weight)
		enc.u8(e.Enabled)
	}

	enc.str(g.NormalizeType)
	enc.strF64Map(g.Mins)
	enc.strF64Map(g.Maxs)
	enc.strF64Map(g.Avgs)
	enc.strF64Map(g.StdDevs)

	enc.i32(int32(len(g.TrainingIndices)))
	for _, idx := range g.TrainingIndices {
		enc.i32(idx)
	}

	if enc.err != nil {
		return errors.Wrap(enc.err, "genome: serialize")
	}
	return bw.Flush()
}

func writeNode(enc *binWriter, n *rnn.Node) {
	enc.i32(int32(n.InnovationNumber))
	enc.i32(int32(n.Layer))
	enc.i32(int32(n.Type))
	enc.f64(n.Depth)
	enc.u8(n.Enabled)
	enc.str(n.ParameterName)
}

// Deserialize reconstructs a genome from r, then assigns reachability
// (spec §4.2 "Deserialization reconstructs the graph, then calls
// reachability").
func Deserialize(r io.Reader, seed uint64) (*Genome, error) {
	br := bufio.NewReader(r)
	dec := &binReader{r: br}

	g := newEmptyGenome(seed)
	g.GenerationID = int64(dec.i32())
	g.GroupID = int(dec.i32())
	g.BPIterations = int(dec.i32())
	_ = dec.i32() // reserved genome-type scalar
	g.Dropout = dec.u8()
	g.DropoutProbability = dec.f64()
	g.LogFilename = dec.str()
	g.RNGState = dec.str()
	g.BestValidationMSE = dec.f64()
	g.BestValidationMAE = dec.f64()
	g.InitialParameters = dec.f64slice()
	g.BestParameters = dec.f64slice()
	g.InputParameterNames = dec.strSlice()
	g.OutputParameterNames = dec.strSlice()

	nodeCount := int(dec.i32())
	maxInn := int64(0)
	for i := 0; i < nodeCount; i++ {
		n := readNode(dec)
		if n.InnovationNumber > maxInn {
			maxInn = n.InnovationNumber
		}
		g.Nodes = append(g.Nodes, n)
	}
	edgeCount := int(dec.i32())
	for i := 0; i < edgeCount; i++ {
		e := &rnn.Edge{
			InnovationNumber: int64(dec.i32()),
			SourceInnovation: int64(dec.i32()),
			TargetInnovation: int64(dec.i32()),
			Weight:           dec.f64(),
			Enabled:          dec.u8(),
		}
		if e.InnovationNumber > maxInn {
			maxInn = e.InnovationNumber
		}
		g.Edges = append(g.Edges, e)
	}
	recCount := int(dec.i32())
	for i := 0; i < recCount; i++ {
		e := &rnn.RecurrentEdge{
			InnovationNumber: int64(dec.i32()),
			SourceInnovation: int64(dec.i32()),
			TargetInnovation: int64(dec.i32()),
			RecurrentDepth:   int(dec.i32()),
			Weight:           dec.f64(),
			Enabled:          dec.u8(),
		}
		if e.InnovationNumber > maxInn {
			maxInn = e.InnovationNumber
		}
		g.RecurrentEdges = append(g.RecurrentEdges, e)
	}

	g.NormalizeType = dec.str()
	g.Mins = dec.strF64Map()
	g.Maxs = dec.strF64Map()
	g.Avgs = dec.strF64Map()
	g.StdDevs = dec.strF64Map()

	tiCount := int(dec.i32())
	for i := 0; i < tiCount; i++ {
		g.TrainingIndices = append(g.TrainingIndices, dec.i32())
	}

	if dec.err != nil {
		return nil, errors.Wrap(dec.err, "genome: deserialize")
	}
	counter := maxInn + 1
	g.innovationCounter = &counter
	g.Fitness = g.BestValidationMSE
	g.sortNodesAndEdges()
	g.AssignReachability()
	return g, nil
}

func readNode(dec *binReader) *rnn.Node {
	innovation := int64(dec.i32())
	layer := rnn.LayerType(dec.i32())
	cellType := rnn.CellType(dec.i32())
	depth := dec.f64()
	enabled := dec.u8()
	paramName := dec.str()

	var n *rnn.Node
	if layer == rnn.LayerHidden {
		n = rnn.NewNode(innovation, cellType, depth)
	} else {
		n = rnn.NewIONode(innovation, layer, paramName)
	}
	n.Enabled = enabled
	return n
}

// --- low-level fixed-width / length-prefixed codec ---

type binWriter struct {
	w   io.Writer
	err error
}

func (b *binWriter) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *binWriter) i32(v int32) {
	if b.err != nil {
		return
	}
	b.fail(binary.Write(b.w, binary.LittleEndian, v))
}

func (b *binWriter) f64(v float64) {
	if b.err != nil {
		return
	}
	b.fail(binary.Write(b.w, binary.LittleEndian, math.Float64bits(v)))
}

func (b *binWriter) u8(v bool) {
	if b.err != nil {
		return
	}
	var x uint8
	if v {
		x = 1
	}
	b.fail(binary.Write(b.w, binary.LittleEndian, x))
}

func (b *binWriter) str(s string) {
	b.i32(int32(len(s)))
	if b.err != nil {
		return
	}
	_, err := io.WriteString(b.w, s)
	b.fail(err)
}

func (b *binWriter) f64slice(v []float64) {
	b.i32(int32(len(v)))
	for _, x := range v {
		b.f64(x)
	}
}

func (b *binWriter) strSlice(v []string) {
	b.i32(int32(len(v)))
	for _, s := range v {
		b.str(s)
	}
}

func (b *binWriter) strF64Map(m map[string]float64) {
	b.i32(int32(len(m)))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		b.str(k)
		b.f64(m[k])
	}
}

type binReader struct {
	r   io.Reader
	err error
}

func (b *binReader) fail(err error) {
	if b.err == nil {
		if err == io.EOF {
			err = errShortStream
		}
		b.err = err
	}
}

func (b *binReader) i32() int32 {
	if b.err != nil {
		return 0
	}
	var v int32
	b.fail(binary.Read(b.r, binary.LittleEndian, &v))
	return v
}

func (b *binReader) f64() float64 {
	if b.err != nil {
		return 0
	}
	var bits uint64
	b.fail(binary.Read(b.r, binary.LittleEndian, &bits))
	return math.Float64frombits(bits)
}

func (b *binReader) u8() bool {
	if b.err != nil {
		return false
	}
	var v uint8
	b.fail(binary.Read(b.r, binary.LittleEndian, &v))
	return v != 0
}

func (b *binReader) str() string {
	n := b.i32()
	if b.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(b.r, buf)
	b.fail(err)
	return string(buf)
}

func (b *binReader) f64slice() []float64 {
	n := b.i32()
	if b.err != nil {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = b.f64()
	}
	return out
}

func (b *binReader) strSlice() []string {
	n := b.i32()
	if b.err != nil {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = b.str()
	}
	return out
}

func (b *binReader) strF64Map() map[string]float64 {
	n := b.i32()
	out := make(map[string]float64, n)
	if b.err != nil {
		return out
	}
	for i := int32(0); i < n; i++ {
		k := b.str()
		v := b.f64()
		out[k] = v
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
