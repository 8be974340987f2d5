/*
Package capn implements the runtime of a Cap'n-Proto-compatible binary wire
format: zero-copy readers, an append-only builder, cross-message compaction
and a short text renderer, all driven by explicit field-descriptor tables.

We implement:

1. Messages, a sequence of segments whose first word is the root pointer.

2. Struct views, typed access to a struct's data and pointer sections,
including unions and groups.

3. List views, for every element kind: void, bit-packed bools, 1/2/4/8-byte
primitives, text and data blobs, inline structs and lists of lists.

4. Builders, which allocate and write a single growable segment and finalize
it into a framed message.

5. A short text renderer compatible with `capnp decode --short`.

# Wire format

**Words.**
Everything is addressed in little-endian 8-byte words. Offsets are always
relative to the position right after the pointer word that holds them.

**Pointers.**
The low two bits select the kind:

	struct: kind=0 offset:30 (signed) dataWords:16 ptrCount:16
	list:   kind=1 offset:30 (signed) elementSize:3 count:29
	far:    kind=2 double:1 padOffset:29 segmentID:32

A null pointer is the all-zero word and reads as the canonical empty value of
the expected type.

**Lists.**
Element sizes are void, bit, byte, two bytes, four bytes, eight bytes,
pointer and composite. A composite list stores its total word count in the
count field and starts with a tag word shaped like a struct pointer whose
offset field holds the element count.

**Defaults.**
Every scalar is stored XORed with its schema default (see ApplyDefaultMask),
so zero bytes always read back as the default.

**Framing.**
A framed message starts with the segment table: segment count minus one and
then each segment's size in words, all as little-endian uint32, padded to a
word boundary. The segments follow back to back.

# Descriptors

Types are described at run time by a Schema holding StructType and EnumType
values. A StructType lists its fields with their offsets and defaults, the
same contract a schema compiler emits for generated accessors. Views carry
their StructType, so rendering, equality and value export work without any
generated code.
*/
package capn
