package lstm

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"StockCast/internal/domain/models"
)

// weightsDoc is the persisted parameter layout: row-major flat tensors in
// the fixed order of Network.tensors.
type weightsDoc struct {
	InputSize  int         `json:"input_size"`
	HiddenSize int         `json:"hidden_size"`
	Steps      int         `json:"steps"`
	Outputs    int         `json:"outputs"`
	Seed       int64       `json:"seed"`
	Tensors    [][]float64 `json:"tensors"`
}

func shapesFor(cfg Config) [][2]int {
	h, m := cfg.HiddenSize, cfg.HiddenSize+cfg.InputSize
	return [][2]int{
		{h, m}, {h, m}, {h, m}, {h, m},
		{h, 1}, {h, 1}, {h, 1}, {h, 1},
		{cfg.Outputs, h}, {cfg.Outputs, 1},
	}
}

// MarshalWeights serializes the parameters for artifact storage. The output
// reloads through LoadNetwork into a network that predicts identically.
func (n *Network) MarshalWeights() ([]byte, error) {
	doc := weightsDoc{
		InputSize:  n.cfg.InputSize,
		HiddenSize: n.cfg.HiddenSize,
		Steps:      n.cfg.Steps,
		Outputs:    n.cfg.Outputs,
		Seed:       n.cfg.Seed,
	}
	for _, t := range n.tensors() {
		raw := t.RawMatrix()
		data := make([]float64, len(raw.Data))
		copy(data, raw.Data)
		doc.Tensors = append(doc.Tensors, data)
	}
	return json.Marshal(doc)
}

// LoadNetwork restores a network from a weights blob. Undecodable blobs and
// inconsistent shapes fail with models.ErrDataIntegrity.
func LoadNetwork(blob []byte) (*Network, error) {
	var doc weightsDoc
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("decode weights: %w", models.ErrDataIntegrity)
	}
	cfg := Config{
		InputSize:  doc.InputSize,
		HiddenSize: doc.HiddenSize,
		Steps:      doc.Steps,
		Outputs:    doc.Outputs,
		Seed:       doc.Seed,
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("weights shape: %w", models.ErrDataIntegrity)
	}
	shapes := shapesFor(cfg)
	if len(doc.Tensors) != len(shapes) {
		return nil, fmt.Errorf("weights hold %d tensors, layout has %d: %w",
			len(doc.Tensors), len(shapes), models.ErrDataIntegrity)
	}
	n, err := New(cfg)
	if err != nil {
		return nil, err
	}
	for i, t := range n.tensors() {
		r, c := shapes[i][0], shapes[i][1]
		if len(doc.Tensors[i]) != r*c {
			return nil, fmt.Errorf("tensor %d has %d values, shape %dx%d needs %d: %w",
				i, len(doc.Tensors[i]), r, c, r*c, models.ErrDataIntegrity)
		}
		t.Copy(mat.NewDense(r, c, doc.Tensors[i]))
	}
	return n, nil
}
