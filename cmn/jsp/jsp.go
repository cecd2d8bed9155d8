// Package jsp (JSON persistence) provides utilities to store and load arbitrary
// JSON-encoded structures with optional checksumming and compression.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package jsp

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/OneOfOne/xxhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
)

const (
	prolog  = "tmmjsp"
	version = 1

	flagCompress = 1 << 0
	flagChecksum = 1 << 1
)

var sigLen = len(prolog) + 2 // prolog + version byte + flags byte

type Options struct {
	Compression bool
	Checksum    bool
	Signature   bool
}

// CCSign is the full treatment: compressed, checksummed, signed.
func CCSign() Options {
	return Options{Compression: true, Checksum: true, Signature: true}
}

func Encode(w io.Writer, v interface{}, opts Options) (err error) {
	var payload bytes.Buffer
	if opts.Compression {
		zw := lz4.NewWriter(&payload)
		if err = jsoniter.NewEncoder(zw).Encode(v); err != nil {
			return
		}
		if err = zw.Close(); err != nil {
			return
		}
	} else if err = jsoniter.NewEncoder(&payload).Encode(v); err != nil {
		return
	}
	if opts.Signature {
		sig := make([]byte, sigLen)
		copy(sig, prolog)
		sig[len(prolog)] = version
		var flags byte
		if opts.Compression {
			flags |= flagCompress
		}
		if opts.Checksum {
			flags |= flagChecksum
		}
		sig[len(prolog)+1] = flags
		if _, err = w.Write(sig); err != nil {
			return
		}
	}
	if opts.Checksum {
		var cksum [8]byte
		binary.BigEndian.PutUint64(cksum[:], xxhash.Checksum64(payload.Bytes()))
		if _, err = w.Write(cksum[:]); err != nil {
			return
		}
	}
	_, err = w.Write(payload.Bytes())
	return
}

func Decode(reader io.ReadCloser, v interface{}, opts Options, tag string) (err error) {
	defer reader.Close()
	var r io.Reader = reader
	if opts.Signature {
		sig := make([]byte, sigLen)
		if _, err = io.ReadFull(r, sig); err != nil {
			return errors.Wrapf(err, "%s: failed to read signature", tag)
		}
		if string(sig[:len(prolog)]) != prolog {
			return errors.Errorf("%s: bad signature %q", tag, sig[:len(prolog)])
		}
		if sig[len(prolog)] != version {
			return errors.Errorf("%s: unsupported version %d", tag, sig[len(prolog)])
		}
		// flags on the wire are authoritative
		flags := sig[len(prolog)+1]
		opts.Compression = flags&flagCompress != 0
		opts.Checksum = flags&flagChecksum != 0
	}
	if opts.Checksum {
		var cksum [8]byte
		if _, err = io.ReadFull(r, cksum[:]); err != nil {
			return errors.Wrapf(err, "%s: failed to read checksum", tag)
		}
		expected := binary.BigEndian.Uint64(cksum[:])
		var payload []byte
		if payload, err = ioutil.ReadAll(r); err != nil {
			return errors.Wrapf(err, "%s: failed to read payload", tag)
		}
		if actual := xxhash.Checksum64(payload); actual != expected {
			return errors.Errorf("%s: bad checksum %x != %x", tag, actual, expected)
		}
		r = bytes.NewReader(payload)
	}
	if opts.Compression {
		r = lz4.NewReader(r)
	}
	if err = jsoniter.NewDecoder(r).Decode(v); err != nil {
		err = errors.Wrapf(err, "%s: failed to decode", tag)
	}
	return
}

func Save(path string, v interface{}, opts Options) (err error) {
	var file *os.File
	if file, err = os.Create(path); err != nil {
		return
	}
	if err = Encode(file, v, opts); err != nil {
		file.Close()
		os.Remove(path)
		return
	}
	return file.Close()
}

func Load(path string, v interface{}, opts Options) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	return Decode(file, v, opts, path)
}
