// Multi-archive union open (§4.4, §7 "L4 catches per-file errors when
// opening archives (so a single corrupt file does not disable the
// whole reader) and logs them; all other errors surface to the
// caller"). NewUnionReader itself takes already-open scanners and has
// no notion of a file path; this is the layer above it that actually
// does the opening, tolerating one bad archive among many.
package snapdb

// OpenUnionOverArchives opens the primary sorted-tree sub-file of each
// named archive path and merges them into a single UnionReader. A path
// that fails to open, or whose primary sub-file is missing or corrupt,
// is reported through cfg.Logger and skipped — it does not fail the
// call, so one damaged archive cannot take down a scan spanning many.
// Every other error (a bad seek filter, an I/O failure after opening)
// still surfaces to the caller.
//
// The returned closer releases every snapshot and closes every File
// this call opened; callers must invoke it once done with the reader,
// typically via defer, instead of closing anything themselves.
func OpenUnionOverArchives(
	paths []string,
	cfg Config,
	seekFilter SeekFilter,
	matchFilter MatchFilter,
	newKey func() Key,
	newValue func() Value,
) (*UnionReader, func(), error) {
	cfg = cfg.normalize()

	var opened []*File
	var snaps []*ReadSnapshot
	closer := func() {
		for _, s := range snaps {
			s.Release()
		}
		for _, f := range opened {
			f.Close()
		}
	}

	name := SubFileName{
		Purpose:   PrimaryArchivePurpose,
		KeyType:   newKey().TypeGUID(),
		ValueType: newValue().TypeGUID(),
	}

	var scanners []*Scanner
	for _, path := range paths {
		f, err := Open(path, true, cfg)
		if err != nil {
			cfg.Logger.Printf("snapdb: skipping archive %q: open: %v", path, err)
			continue
		}

		snap := f.Snapshot()
		stream, err := snap.OpenSubFile(name)
		if err != nil {
			cfg.Logger.Printf("snapdb: skipping archive %q: no primary sub-file: %v", path, err)
			snap.Release()
			f.Close()
			continue
		}
		tree, err := OpenTree(stream, newKey, newValue)
		if err != nil {
			cfg.Logger.Printf("snapdb: skipping archive %q: corrupt primary sub-file: %v", path, err)
			snap.Release()
			f.Close()
			continue
		}

		opened = append(opened, f)
		snaps = append(snaps, snap)
		scanners = append(scanners, tree.CreateScanner())
	}

	reader, err := NewUnionReader(scanners, seekFilter, matchFilter, newKey, newValue)
	if err != nil {
		closer()
		return nil, nil, err
	}
	reader.SetSafePointInterval(uint64(cfg.SafePointInterval))
	return reader, closer, nil
}
