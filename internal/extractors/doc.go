// Package extractors converts raw feed payloads into canonical text
// and structural metadata. One extractor per accepted source kind;
// the registry maps kinds and file extensions to extractors.
package extractors
