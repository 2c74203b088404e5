// Package reader supplies document chapters to the vectorization pipeline.
//
// MemoryReader holds chapters in memory and is what embedding applications
// use to hand over already-parsed books. DirReader reads a library directory
// where every document is a sub-directory of chapter files (or one file),
// with chapter order taken from the relative paths in natural order (digit runs
// compare as numbers).
//
// HTML chapters are returned as markup with markers on every element that
// carries an id attribute. Text and markdown chapters get a marker at the
// start of every paragraph.
package reader
