// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

// HashMerkleBranches takes two hashes, treated as the left and right tree
// nodes, and returns the hash of their concatenation.  This is a helper
// function used to aid in the generation of a merkle tree.
func HashMerkleBranches(left *Hash, right *Hash) *Hash {
	// Concatenate the left and right nodes.
	var hash [HashSize * 2]byte
	copy(hash[:HashSize], left[:])
	copy(hash[HashSize:], right[:])

	newHash := DoubleHashH(hash[:])
	return &newHash
}

// MerkleTreeRoot builds a merkle tree from a slice of hashes and returns the
// root of the tree.
//
// The tree is built bottom up.  At each level adjacent nodes are paired; when
// a level has an odd number of nodes the last node is paired with itself.  A
// single leaf is its own root.
func MerkleTreeRoot(hashes []Hash) Hash {
	if len(hashes) == 0 {
		return ZeroHash
	}

	level := hashes
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Duplicate the last node when the level has an odd
				// number of nodes.
				next = append(next, *HashMerkleBranches(&level[i], &level[i]))
				continue
			}
			next = append(next, *HashMerkleBranches(&level[i], &level[i+1]))
		}
		level = next
	}

	return level[0]
}
