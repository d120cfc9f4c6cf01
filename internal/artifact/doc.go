// Package artifact implements the artifact hand-off between jobs of one run.
//
// A job uploads a set of files under a name; the name is the only thing a
// consumer needs to fetch them again. Names follow a fixed contract so that
// producers and consumers written in different jobs agree on them:
//
//	{platform}-wheel-{interpreter}              osx, manylinux
//	{platform}-wheel-{interpreter}-{word_size}  windows
//	sdist                                       source distribution
//	linux-wheels                                containerised linux output
//
// Uploaded bundles are immutable: a second upload under the same name is
// rejected. Each bundle is stored as a zstd-compressed tar archive next to a
// YAML manifest that records the BLAKE3 digest of every file, and downloads
// verify those digests.
package artifact
