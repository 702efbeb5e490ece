package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// ChecksumKey is the metadata entry holding the data section's SHA-256.
const ChecksumKey = "sha256"

// SafeTensorInfo describes a tensor in the SafeTensors header.
type SafeTensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end)
}

// Write encodes storages as SafeTensors into w, in alphabetical order by name.
// Storages are written in logical row-major order whatever their strides.
func Write[E tensor.Float](w io.Writer, storages map[string]*tensor.Storage[E], metadata map[string]string) error {
	names := make([]string, 0, len(storages))
	for name := range storages {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	var data bytes.Buffer
	for _, name := range names {
		s := storages[name]
		values, err := s.Values()
		if err != nil {
			return errors.Wrapf(err, "download %s", name)
		}
		start := int64(data.Len())
		if err := binary.Write(&data, binary.LittleEndian, values); err != nil {
			return errors.Wrapf(err, "encode %s", name)
		}
		header[name] = SafeTensorInfo{
			DType:       dtypeName(s.DType()),
			Shape:       append([]int{}, s.Shape()...),
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = ComputeChecksum(data.Bytes())
	header["__metadata__"] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "marshal header")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "write header")
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return errors.Wrap(err, "write tensor data")
	}
	return nil
}

// Read decodes a SafeTensors stream into storages on dev. Every tensor must
// hold elements of type E.
func Read[E tensor.Float](dev tensor.Device, r io.Reader) (map[string]*tensor.Storage[E], map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "read header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "read header")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "parse header")
	}

	var metadata map[string]string
	infos := make(map[string]SafeTensorInfo, len(raw))
	metas := make([]TensorMeta, 0, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, errors.Wrap(err, "parse metadata")
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, nil, errors.Wrapf(err, "parse tensor %s", name)
		}
		infos[name] = info
		metas = append(metas, TensorMeta{
			Name:   name,
			Offset: info.DataOffsets[0],
			Size:   info.DataOffsets[1] - info.DataOffsets[0],
		})
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read tensor data")
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, nil, err
	}
	if sum, ok := metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, nil, err
		}
	} else {
		klog.V(2).Infof("serialization: no %s entry, skipping checksum", ChecksumKey)
	}

	want := dtypeName(tensor.DTypeOf[E]())
	out := make(map[string]*tensor.Storage[E], len(infos))
	release := func() {
		for _, s := range out {
			s.Release()
		}
	}
	for name, info := range infos {
		if info.DType != want {
			release()
			return nil, nil, errors.Wrapf(tensor.ErrUnsupportedDType, "tensor %s is %s, want %s", name, info.DType, want)
		}
		shape := tensor.Shape(info.Shape)
		if err := shape.Validate(); err != nil {
			release()
			return nil, nil, errors.Wrapf(err, "tensor %s", name)
		}
		values := make([]E, shape.NumElements())
		chunk := data[info.DataOffsets[0]:info.DataOffsets[1]]
		if len(chunk) != len(values)*tensor.DTypeOf[E]().Size() {
			release()
			return nil, nil, &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: "byte length does not match shape",
			}
		}
		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, values); err != nil {
			release()
			return nil, nil, errors.Wrapf(err, "decode %s", name)
		}
		s, err := tensor.FromSlice(dev, shape, values)
		if err != nil {
			release()
			return nil, nil, errors.Wrapf(err, "upload %s", name)
		}
		out[name] = s
	}
	return out, metadata, nil
}

// SaveStorages writes storages to a SafeTensors file at path.
func SaveStorages[E tensor.Float](path string, storages map[string]*tensor.Storage[E], metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoints
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	if err := Write(f, storages, metadata); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close checkpoint")
	}
	klog.V(1).Infof("serialization: saved %d tensors to %s", len(storages), path)
	return nil
}

// LoadStorages reads a SafeTensors file written by SaveStorages.
func LoadStorages[E tensor.Float](dev tensor.Device, path string) (map[string]*tensor.Storage[E], map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoints
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open checkpoint")
	}
	defer func() {
		_ = f.Close()
	}()
	return Read[E](dev, f)
}

// dtypeName returns the SafeTensors dtype string.
func dtypeName(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return "F32"
	case tensor.Float64:
		return "F64"
	case tensor.Int32:
		return "I32"
	case tensor.Bool:
		return "BOOL"
	default:
		return dt.String()
	}
}
