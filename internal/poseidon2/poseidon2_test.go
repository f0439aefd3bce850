package poseidon2

import (
	"testing"

	"github.com/ocash-labs/sdk-core/internal/field"
)

func TestHashDomainDeterministic(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	h1 := HashDomain(a, b, DomainRecord)
	h2 := HashDomain(a, b, DomainRecord)
	if !h1.Equal(h2) {
		t.Fatal("HashDomain is not deterministic")
	}
}

func TestHashDomainSeparatesDomains(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	rec := HashDomain(a, b, DomainRecord)
	null := HashDomain(a, b, DomainNullifier)
	if rec.Equal(null) {
		t.Fatal("different domains produced the same hash for identical inputs")
	}
}

func TestHashDomainSensitiveToOrder(t *testing.T) {
	a := field.FromUint64(10)
	b := field.FromUint64(20)
	if HashDomain(a, b, DomainMerkle).Equal(HashDomain(b, a, DomainMerkle)) {
		t.Fatal("hash did not distinguish argument order")
	}
}

func TestHashSequenceSingleElementPairsWithZero(t *testing.T) {
	x := field.FromUint64(7)
	want := HashDomain(field.Zero(), x, DomainRecord)
	if got := HashSequence(DomainRecord, []field.Element{x}); !got.Equal(want) {
		t.Fatal("HashSequence(|xs|=1) must equal hash_domain(0, x0, D)")
	}
}

func TestHashSequenceVariableLength(t *testing.T) {
	one := []field.Element{field.FromUint64(1)}
	two := []field.Element{field.FromUint64(1), field.FromUint64(2)}
	if HashSequence(DomainArray, one).Equal(HashSequence(DomainArray, two)) {
		t.Fatal("sequences of different lengths hashed equal")
	}
}

func TestHashSequenceFoldsLeftToRight(t *testing.T) {
	elems := []field.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(3)}
	want := HashDomain(HashDomain(elems[0], elems[1], DomainArray), elems[2], DomainArray)
	if got := HashSequence(DomainArray, elems); !got.Equal(want) {
		t.Fatal("HashSequence did not fold left to right as specified")
	}
}

func TestMerkleNodeMatchesHashDomain(t *testing.T) {
	l := field.FromUint64(7)
	r := field.FromUint64(8)
	if !MerkleNode(l, r).Equal(HashDomain(l, r, DomainMerkle)) {
		t.Fatal("MerkleNode should be HashDomain under DomainMerkle")
	}
}

func TestHashSequenceSeededDiffersFromUnseeded(t *testing.T) {
	elems := []field.Element{field.FromUint64(1), field.FromUint64(2)}
	plain := HashSequence(DomainPolicy, elems)
	seeded := HashSequenceSeeded(DomainPolicy, field.FromUint64(99), elems)
	if plain.Equal(seeded) {
		t.Fatal("seeding did not change the digest")
	}
}

func TestHashSequenceSeededMatchesDefinition(t *testing.T) {
	seed := field.FromUint64(42)
	elems := []field.Element{field.FromUint64(1), field.FromUint64(2)}
	want := HashDomain(HashDomain(seed, elems[0], DomainPolicy), elems[1], DomainPolicy)
	if got := HashSequenceSeeded(DomainPolicy, seed, elems); !got.Equal(want) {
		t.Fatal("HashSequenceSeeded did not match the seeded fold definition")
	}
}
