// Package kang compresses .safetensors weight files into .kang archives
// and restores them byte for byte.
//
// This package provides file, directory, inspection and verification
// helpers on top of the low-level engine in the [core] subpackage.
//
// # Quick Start
//
// Compress a single file or every .safetensors file in a directory:
//
//	res, err := kang.CompressPath(ctx, "models/", "archives/",
//	    kang.WithOptions(kang.WithLevel(15)),
//	)
//
// Restore them:
//
//	res, err := kang.DecompressPath(ctx, "archives/", "restored/")
//
// Check an archive against the file it was made from:
//
//	v, err := kang.Verify(ctx, "model.kang", "model.safetensors")
//
// In directory mode a failing file is logged and recorded in the result;
// the remaining files are still processed.
package kang
