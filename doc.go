// Package obtree builds and verifies outboard Merkle trees over chunked content.
//
// A producer calls [Build] (or [BuildFile], or [BuildBytes]) once per content blob.
// That yields the root [Hash], to be published through a trusted channel,
// and the outboard: the tree's parent hashes and the content length,
// without any of the content itself.
//
// A consumer who trusts the root hash and holds the outboard
// can then verify any chunk of the content, as soon as it arrives,
// with [VerifyChunk]; or verify many chunks of one blob with a [PartialTree].
// A self-contained proof for an arbitrary byte window,
// carrying both the needed parent hashes and the window's chunks,
// is produced by [ExtractSlice] and consumed by [SliceReader].
//
// Every function here is synchronous and pure with respect to its inputs.
// Verifying independent chunks of the same blob concurrently is safe,
// as the outboard and root hash are only ever read.
//
// The producer and the consumer must use the same [Config];
// in particular the chunk size and the hasher are part of the outboard format.
package obtree
