package wgtrain

import (
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX ids written into exported models.
const (
	onnxIRVersion    = 7
	onnxOpsetVersion = 13
	onnxFloat        = 1 // TensorProto.DataType FLOAT
)

// ONNX field numbers, from onnx.proto.
const (
	modelIRVersion       protowire.Number = 1
	modelProducerName    protowire.Number = 2
	modelProducerVersion protowire.Number = 3
	modelDomain          protowire.Number = 4
	modelVersion         protowire.Number = 5
	modelDocString       protowire.Number = 6
	modelGraph           protowire.Number = 7
	modelOpsetImport     protowire.Number = 8

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	graphNode        protowire.Number = 1
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphDocString   protowire.Number = 10
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12

	nodeInput  protowire.Number = 1
	nodeOutput protowire.Number = 2
	nodeName   protowire.Number = 3
	nodeOpType protowire.Number = 4

	tensorDims      protowire.Number = 1
	tensorDataType  protowire.Number = 2
	tensorFloatData protowire.Number = 4
	tensorName      protowire.Number = 8

	valueInfoName protowire.Number = 1
	valueInfoType protowire.Number = 2

	typeTensorType protowire.Number = 1
	tensorElemType protowire.Number = 1
	tensorShape    protowire.Number = 2
	shapeDim       protowire.Number = 1
	dimValue       protowire.Number = 1
)

// ProducerVersion is stamped into exported ONNX models.
var ProducerVersion = "1.0.0"

// Tensor names of the exported graph.
const (
	ONNXInputName  = "input"
	ONNXOutputName = "logits"
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// transposeMatrix turns a rows×cols row-major matrix into cols×rows.
func transposeMatrix(data []float32, rows, cols int) []float32 {
	out := make([]float32, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = data[r*cols+c]
		}
	}
	return out
}

func onnxTensor(name string, dims []int, data []float32) []byte {
	var b []byte
	for _, d := range dims {
		b = appendVarint(b, tensorDims, uint64(d))
	}
	b = appendVarint(b, tensorDataType, onnxFloat)
	packed := make([]byte, 0, len(data)*4)
	for _, v := range data {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	b = appendMessage(b, tensorFloatData, packed)
	return appendString(b, tensorName, name)
}

func onnxValueInfo(name string, dims ...int) []byte {
	var shape []byte
	for _, d := range dims {
		shape = appendMessage(shape, shapeDim, appendVarint(nil, dimValue, uint64(d)))
	}
	var tensor []byte
	tensor = appendVarint(tensor, tensorElemType, onnxFloat)
	tensor = appendMessage(tensor, tensorShape, shape)

	b := appendString(nil, valueInfoName, name)
	return appendMessage(b, valueInfoType, appendMessage(nil, typeTensorType, tensor))
}

func onnxNode(name, op string, inputs []string, output string) []byte {
	var b []byte
	for _, in := range inputs {
		b = appendString(b, nodeInput, in)
	}
	b = appendString(b, nodeOutput, output)
	b = appendString(b, nodeName, name)
	return appendString(b, nodeOpType, op)
}

// MarshalONNX encodes w as an ONNX model computing
// logits = sigmoid(input·W_IHᵀ)·W_HOᵀ for an input of shape [1, InputSize].
// The output sigmoid is left to the consumer: logits > 0 is a set bit.
func MarshalONNX(w WeightsSnapshot, docString string) ([]byte, error) {
	if w.Meta.IsZero() {
		return nil, ErrMissingMeta
	}
	if err := w.checkLengths(); err != nil {
		return nil, err
	}
	H, M, K := w.Meta.InputSize, w.Meta.HiddenSize, w.Meta.OutputSize

	var g []byte
	g = appendMessage(g, graphNode, onnxNode("fc1", "MatMul", []string{ONNXInputName, "W_IH_T"}, "hidden_pre"))
	g = appendMessage(g, graphNode, onnxNode("act1", "Sigmoid", []string{"hidden_pre"}, "hidden"))
	g = appendMessage(g, graphNode, onnxNode("fc2", "MatMul", []string{"hidden", "W_HO_T"}, ONNXOutputName))
	g = appendString(g, graphName, "wgtrain-"+w.Meta.String())
	g = appendMessage(g, graphInitializer, onnxTensor("W_IH_T", []int{H, M}, transposeMatrix(w.WeightsIH, M, H)))
	g = appendMessage(g, graphInitializer, onnxTensor("W_HO_T", []int{M, K}, transposeMatrix(w.WeightsHO, K, M)))
	if docString != "" {
		g = appendString(g, graphDocString, docString)
	}
	g = appendMessage(g, graphInput, onnxValueInfo(ONNXInputName, 1, H))
	g = appendMessage(g, graphOutput, onnxValueInfo(ONNXOutputName, 1, K))

	var m []byte
	m = appendVarint(m, modelIRVersion, onnxIRVersion)
	m = appendString(m, modelProducerName, "wgtrain")
	m = appendString(m, modelProducerVersion, ProducerVersion)
	m = appendString(m, modelDomain, "ai.openfluke")
	m = appendVarint(m, modelVersion, 1)
	if docString != "" {
		m = appendString(m, modelDocString, docString)
	}
	m = appendMessage(m, modelGraph, g)

	var opset []byte
	opset = appendString(opset, opsetDomain, "")
	opset = appendVarint(opset, opsetVersion, onnxOpsetVersion)
	m = appendMessage(m, modelOpsetImport, opset)
	return m, nil
}

// WriteONNX writes the model produced by MarshalONNX to out.
func (w WeightsSnapshot) WriteONNX(out io.Writer, docString string) error {
	data, err := MarshalONNX(w, docString)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// SaveONNX writes the snapshot as an ONNX model file.
func (w WeightsSnapshot) SaveONNX(path, docString string) error {
	data, err := MarshalONNX(w, docString)
	if err != nil {
		return fmt.Errorf("failed to build ONNX model: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write ONNX file: %w", err)
	}
	return nil
}
