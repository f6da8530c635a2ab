// Package fetch obtains installer binaries for requested server versions.
//
// Installers are cached locally under the naming convention
// concourse-server-<version>.bin. A version that is already cached is
// returned without network access. Concurrent requests for the same version
// are deduplicated in-process, and a file lock serializes cache writes
// across processes sharing the same cache directory.
package fetch
