package trie_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"pgregory.net/rapid"
)

func TestNodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var n trie.Node

		n.HasValue = rapid.Bool().Draw(t, "hasValue")
		if n.HasValue {
			n.Value = rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "value")
		}

		firsts := rapid.SliceOfNDistinct(rapid.Byte(), 0, 16, func(b byte) byte { return b }).Draw(t, "firsts")
		for i, b := range firsts {
			tail := rapid.SliceOfN(rapid.Byte(), 0, 8).Draw(t, "tail")
			n.Edges = append(n.Edges, trie.Edge{
				Label: append([]byte{b}, tail...),
				Child: digest.Sum([]byte{byte(i)}),
			})
		}

		data, err := n.Serialize(true)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}

		back, err := trie.DeserializeNode(data, true)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}

		again, err := back.Serialize(true)
		if err != nil {
			t.Fatalf("serialize again: %v", err)
		}

		if !bytes.Equal(data, again) {
			t.Fatalf("serialized forms differ")
		}
	})
}

func TestNodeEncoding(t *testing.T) {
	child := digest.Sum([]byte("child"))

	t.Log("Given the need for a single canonical node encoding.")
	{
		t.Logf("\tTest 0:\tWhen serializing a node with a value and an edge.")
		{
			n := trie.Node{
				Value:    []byte{0xAA},
				HasValue: true,
				Edges:    []trie.Edge{{Label: []byte("x"), Child: child}},
			}

			exp := append([]byte{0x01, 0x00, 0x01, 0xAA, 0x00, 0x01, 0x01, 'x'}, child[:]...)

			data, err := n.Serialize(true)
			if err != nil || !bytes.Equal(data, exp) {
				t.Fatalf("\t%s\tTest 0:\tShould produce the documented layout: %x %v", failed, data, err)
			}
			t.Logf("\t%s\tTest 0:\tShould produce the documented layout.", success)

			data, err = n.Serialize(false)
			if err != nil || !bytes.Equal(data, exp[:4]) {
				t.Fatalf("\t%s\tTest 0:\tShould leave out the edges on request: %x %v", failed, data, err)
			}
			t.Logf("\t%s\tTest 0:\tShould leave out the edges on request.", success)
		}

		t.Logf("\tTest 1:\tWhen edges are given out of order.")
		{
			a := trie.Node{Edges: []trie.Edge{{Label: []byte("b"), Child: child}, {Label: []byte("a"), Child: child}}}
			b := trie.Node{Edges: []trie.Edge{{Label: []byte("a"), Child: child}, {Label: []byte("b"), Child: child}}}

			da, err := a.Digest()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to hash: %v", failed, err)
			}
			db, err := b.Digest()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to hash: %v", failed, err)
			}

			if da != db {
				t.Fatalf("\t%s\tTest 1:\tShould hash the same regardless of edge order.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould hash the same regardless of edge order.", success)
		}

		t.Logf("\tTest 2:\tWhen telling an empty value from no value.")
		{
			empty := trie.Node{Value: []byte{}, HasValue: true}
			none := trie.Node{}

			de, _ := empty.Digest()
			dn, _ := none.Digest()
			if de == dn {
				t.Fatalf("\t%s\tTest 2:\tShould hash differently.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould hash differently.", success)
		}

		t.Logf("\tTest 3:\tWhen a node holds an edge for every first byte.")
		{
			var n trie.Node
			for i := 0; i < 256; i++ {
				n.Edges = append(n.Edges, trie.Edge{Label: []byte{byte(i)}, Child: child})
			}

			data, err := n.Serialize(true)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to serialize: %v", failed, err)
			}
			if !bytes.Equal(data[1:3], []byte{0x01, 0x00}) {
				t.Fatalf("\t%s\tTest 3:\tShould write a count of 256: %x", failed, data[1:3])
			}
			t.Logf("\t%s\tTest 3:\tShould write a count of 256.", success)

			got, err := trie.DeserializeNode(data, true)
			if err != nil || len(got.Edges) != 256 {
				t.Fatalf("\t%s\tTest 3:\tShould read back 256 edges: %d %v", failed, len(got.Edges), err)
			}
			t.Logf("\t%s\tTest 3:\tShould read back 256 edges.", success)
		}
	}
}

func TestNodeMalformed(t *testing.T) {
	child := digest.Sum([]byte("child"))

	edge := func(label string) []byte {
		return append(append([]byte{byte(len(label))}, label...), child[:]...)
	}

	tt := []struct {
		name string
		data []byte
	}{
		{name: "empty input", data: nil},
		{name: "bad marker", data: []byte{0x07, 0x00, 0x00}},
		{name: "truncated value", data: []byte{0x01, 0x00, 0x05, 0xAA}},
		{name: "missing edge count", data: []byte{0x00}},
		{name: "edge count overrun", data: []byte{0x00, 0x00, 0x02}},
		{name: "empty label", data: append([]byte{0x00, 0x00, 0x01}, edge("")...)},
		{name: "truncated digest", data: append([]byte{0x00, 0x00, 0x01}, edge("a")[:10]...)},
		{name: "unsorted edges", data: append(append([]byte{0x00, 0x00, 0x02}, edge("b")...), edge("a")...)},
		{name: "duplicate first byte", data: append(append([]byte{0x00, 0x00, 0x02}, edge("ab")...), edge("ac")...)},
		{name: "trailing bytes", data: []byte{0x00, 0x00, 0x00, 0xFF}},
	}

	t.Log("Given the need to reject malformed node bytes.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen decoding %s.", testID, tst.name)
			{
				if _, err := trie.DeserializeNode(tst.data, true); !errors.Is(err, codec.ErrMalformedEncoding) {
					t.Fatalf("\t%s\tTest %d:\tShould get ErrMalformedEncoding: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get ErrMalformedEncoding.", success, testID)
			}
		}
	}
}
