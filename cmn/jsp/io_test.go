// Package jsp (JSON persistence) provides utilities to store and load arbitrary
// JSON-encoded structures with optional checksumming and compression.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package jsp_test

import (
	"bytes"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/cmn/jsp"
	"github.com/tmmsys/tmm/tutils/tassert"
)

type testStruct struct {
	I  int    `json:"a,omitempty"`
	S  string `json:"zero"`
	B  []byte `json:"bytes,omitempty"`
	ST struct {
		I64 int64 `json:"int64"`
	}
}

func (ts *testStruct) equal(other testStruct) bool {
	return ts.I == other.I &&
		ts.S == other.S &&
		string(ts.B) == string(other.B) &&
		ts.ST.I64 == other.ST.I64
}

func makeRandStruct() (ts testStruct) {
	if rand.Intn(2) == 0 {
		ts.I = rand.Int()
	}
	ts.S = cmn.RandString(rand.Intn(100))
	if rand.Intn(2) == 0 {
		ts.B = []byte(cmn.RandString(rand.Intn(200)))
	}
	ts.ST.I64 = rand.Int63()
	return
}

func TestDecodeAndEncode(t *testing.T) {
	tests := []struct {
		name string
		v    testStruct
		opts jsp.Options
	}{
		{name: "empty", v: testStruct{}, opts: jsp.Options{}},
		{name: "default", v: makeRandStruct(), opts: jsp.Options{}},
		{name: "compress", v: makeRandStruct(), opts: jsp.Options{Compression: true}},
		{name: "cksum", v: makeRandStruct(), opts: jsp.Options{Checksum: true}},
		{name: "sign", v: makeRandStruct(), opts: jsp.Options{Signature: true}},
		{name: "compress_cksum", v: makeRandStruct(), opts: jsp.Options{Compression: true, Checksum: true}},
		{name: "cksum_sign", v: makeRandStruct(), opts: jsp.Options{Checksum: true, Signature: true}},
		{name: "ccs", v: makeRandStruct(), opts: jsp.CCSign()},
		{
			name: "special_char",
			v:    testStruct{I: 10, S: "abc\ncd", B: []byte{'a', 'b', '\n', 'c', 'd'}},
			opts: jsp.Options{Checksum: true},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var (
				v testStruct
				b = &bytes.Buffer{}
			)
			err := jsp.Encode(b, test.v, test.opts)
			tassert.CheckFatal(t, err)

			err = jsp.Decode(ioutil.NopCloser(b), &v, test.opts, "test")
			tassert.CheckFatal(t, err)

			// reflect.DeepEqual may not work here due to using `[]byte` in the struct.
			// `Decode` may generate empty slice from original `nil` slice and while
			// both are kind of the same, DeepEqual says they differ.
			tassert.Fatalf(
				t, v.equal(test.v),
				"structs are not equal, (got: %+v, expected: %+v)", v, test.v,
			)
		})
	}
}

func TestCorruptedChecksum(t *testing.T) {
	var (
		v testStruct
		b = &bytes.Buffer{}
	)
	err := jsp.Encode(b, makeRandStruct(), jsp.Options{Checksum: true})
	tassert.CheckFatal(t, err)

	raw := b.Bytes()
	raw[len(raw)-1] ^= 0xff
	err = jsp.Decode(ioutil.NopCloser(bytes.NewReader(raw)), &v, jsp.Options{Checksum: true}, "corrupted")
	tassert.Fatalf(t, err != nil, "expected checksum mismatch")
}

func TestSaveLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "jsp")
	tassert.CheckFatal(t, err)
	defer os.RemoveAll(dir)

	var (
		path     = filepath.Join(dir, "tst.jsp")
		expected = makeRandStruct()
		actual   testStruct
	)
	err = jsp.Save(path, expected, jsp.CCSign())
	tassert.CheckFatal(t, err)
	err = jsp.Load(path, &actual, jsp.CCSign())
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, actual.equal(expected), "structs are not equal, (got: %+v, expected: %+v)", actual, expected)
}
