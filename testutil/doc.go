// Package testutil provides testing utilities for pkgcache.
//
// This package is intended for use in tests and benchmarks only.
// It provides a scripted ListParser and seeded generators of package names
// and version strings.
//
// # Scripted Parser
//
//	p := testutil.NewParser(
//	    testutil.Entry{Package: "foo", Version: "1.0-1"},
//	    testutil.Entry{Package: "bar", Version: "2.0", Depends: []testutil.Dep{{Name: "foo"}}},
//	)
//	err := gen.MergeList(p)
//
// # Random Names
//
//	rng := testutil.NewRNG(seed)
//	names := rng.PackageNames(100, true) // include non-ASCII bytes
package testutil
