// Package seq encodes sequence numbers as sortable keys and hands them out.
//
// # Format
//
// A Key is the 8-byte big-endian two's complement form of an int64. For
// non-negative sequence numbers byte-wise comparison equals numeric order,
// which is what the storage engine sorts by.
//
// # Allocation
//
// Allocator reserves contiguous blocks with a single atomic add, so concurrent
// callers never observe overlapping ranges and never wait on a lock.
//
// Usage
//
//	a := seq.NewAllocator(1)
//	first := a.Next(3)      // reserves first, first+1, first+2
//	k := seq.Encode(first)  // 8-byte key
//	n, _ := seq.Decode(k[:])
package seq
