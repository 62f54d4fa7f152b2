// Package deblist reads Debian tag files (Packages indexes and the dpkg
// status file) and feeds them to a pkgcache.Generator.
//
// Indexes compressed with gzip, zstd or lz4 are decompressed on the fly,
// chosen by file extension:
//
//	p, err := deblist.Open("/var/lib/apt/lists/main_binary-amd64_Packages.zst")
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	if err := g.SelectFile(path, 0); err != nil {
//	    return err
//	}
//	if err := g.MergeList(p); err != nil {
//	    return err
//	}
//
// Record offsets and sizes refer to the decompressed stream.
package deblist
