// Package chunker splits document chapters into overlapping token windows.
//
// A token is a maximal run of non-whitespace characters. Each chunk holds at
// most MaxChunkTokens tokens; when a chapter is longer, the next chunk starts
// OverlapTokens tokens before the previous one ended, so context that straddles
// a boundary appears in both chunks.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	chunks := c.Chunk("book-42", chapters)
//
// With the default 512/64 window a chapter of 1000 tokens yields three chunks
// covering tokens [0,512), [448,960) and [896,1000).
//
// # HTML Chapters
//
// Chapters flagged as HTML are flattened before tokenizing. Block elements
// become line breaks, script and style bodies are dropped and character
// entities are decoded. Reader markers are remapped onto the flattened text so
// that a chunk's StartAnchor and EndAnchor still point at the nearest location
// in the source document.
//
// # Determinism
//
// The chunker uses no clock or randomness, and chunk IDs are name-based UUIDs
// of (document, chapter, sequence). Fingerprint hashes the chapter content and
// window settings so callers can detect whether a stored chunk set is current.
package chunker
