// Package fs abstracts the file operations the cache generator and accessor
// perform, so tests can inject I/O failures.
//
//   - [LocalFS]: production implementation backed by the os package
//   - [FaultyFS]: wrapper that fails selected operations on matching paths
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests wrap it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("pkgcache.bin", fs.Fault{FailOnSync: true})
package fs
