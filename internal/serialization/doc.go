// Package serialization saves and loads named storages as SafeTensors files,
// the format HuggingFace uses for weights. Parameters and optimizer state
// dictionaries are checkpointed this way.
//
// Format:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, tensor name -> {dtype, shape, data_offsets}, plus __metadata__]
//	[tensor data: raw little-endian bytes, row-major, sorted by name]
//
// Files written here carry the SHA-256 of the data section in the
// "sha256" metadata entry; Read verifies it when present.
//
// Example usage:
//
//	state := opt.StateDict(params)
//	if err := serialization.SaveStorages("opt.safetensors", state, nil); err != nil {
//	    return err
//	}
//	loaded, meta, err := serialization.LoadStorages[float32](dev, "opt.safetensors")
package serialization
