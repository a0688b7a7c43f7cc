package bloom

/*

# Membership filter for corpus windows

A Bloom filter over every length-k window of every work. It is a prefilter:

- "definitely not present" is exact, there are no false negatives;
- "maybe present" must be confirmed against the corpus index.

With n inserted windows, V bits and H hashes the false positive rate is
approximately (1 - e^(-Hn/V))^H.

## Indexing

Bit positions come from double hashing a single strong 64-bit hash pair:

	j_i = (h1 + i*h2) mod V,  i = 0..H-1

The hash family is part of the persisted format:

- xxh64:  h1 = xxhash64(window), h2 = splitmix64(h1) | 1
- sha256: h1, h2 = first two big-endian words of SHA-256(window)

Bit j lives in byte j>>3 at bit j&7 (LSB0).

## Format V1

	+----------------------+  48B header
	| magic "MKB1"         |  0..3
	| version              |  4
	| family               |  5
	| hash count           |  6
	| window length        |  7
	| vector bits (u64 BE) |  8..15
	| inserted (u64 BE)    |  16..23
	| corpus digest        |  24..39
	| reserved             |  40..47
	+----------------------+
	| bitset ceil(V/8)     |
	+----------------------+

A loaded filter whose header disagrees with the requested parameters or corpus
digest is a configuration mismatch, never silently reused.

*/
