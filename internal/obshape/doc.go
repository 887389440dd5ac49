// Package obshape contains the tree-shape arithmetic
// shared by the outboard builder, the chunk verifier, and the slice codec.
//
// The tree is binary: each parent node has exactly two children.
// A node covering n > 1 chunks puts the largest power of two
// strictly less than n into its left subtree, and the rest into its right subtree.
// This means every left subtree is a perfect binary tree,
// and only the rightmost spine of the tree may be ragged.
//
// Parent nodes are numbered in pre-order, which is also their order in the outboard:
//
//	     0
//	   /   \
//	  1     4
//	 / \   / \
//	2   3 c4  c5
//	/\  /\
//	c0 c1 c2 c3
//
// The layout above is for six chunks (c0 through c5).
// Leaves are not numbered; they have no outboard entry.
package obshape
