// Package blobstore provides the durable key-to-binary store holding raw
// upload payloads, optimized transcode results, and cached media descriptors.
//
// Values survive process restarts; the store is backed by Pebble under the
// configured data directory. Key layout for an upload id:
//
//	<id>            first (or only) raw segment
//	<id>_seg<n>     additional raw segments, n starting at 1
//	<id>_optimized  transcoded result
//	<id>_descriptor cached persisted-media descriptor JSON
package blobstore
