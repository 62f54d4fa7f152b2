package pkgcache

// Register the bundled version systems so a cache written with any of them
// can be opened by label.
import (
	_ "github.com/hupe1980/pkgcache/versioning/rpm"
	_ "github.com/hupe1980/pkgcache/versioning/semver"
)
