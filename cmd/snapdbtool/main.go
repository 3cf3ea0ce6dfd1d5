// Command snapdbtool exercises all four engine layers against one
// archive file: create it, open a primary tree, bulk-load some
// records, scan them back through a union reader, and dump the
// archive's committed header as JSON.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	json "github.com/goccy/go-json"

	snapdb "github.com/snapdb-engine/snapdb"
	"github.com/snapdb-engine/snapdb/zlog"
)

var (
	path      = flag.String("path", "", "archive path (omit for an in-memory archive)")
	count     = flag.Int("count", 1000, "number of records to insert")
	blockSize = flag.Int("block-size", 4096, "block size in bytes")
)

func main() {
	flag.Parse()

	logger := zlog.New(zlog.Config{}).WithComponent("snapdbtool")
	cfg := snapdb.Config{Logger: logger}

	var f *snapdb.File
	var err error
	if *path == "" {
		f, err = snapdb.CreateInMemory(*blockSize, cfg)
	} else {
		f, err = snapdb.Create(*path, *blockSize, cfg)
	}
	if err != nil {
		log.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	if err := load(f, *count); err != nil {
		log.Fatalf("load: %v", err)
	}

	n, err := scan(f)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	fmt.Printf("scanned %d records\n", n)

	stats, err := f.DumpStatsJSON()
	if err != nil {
		log.Fatalf("dump stats: %v", err)
	}
	var pretty map[string]any
	if err := json.Unmarshal(stats, &pretty); err == nil {
		os.Stdout.Write(stats)
		fmt.Println()
	}
}

func newKey() snapdb.Key     { return &snapdb.Uint64Key{} }
func newValue() snapdb.Value { return &snapdb.Float64Value{} }

func load(f *snapdb.File, n int) error {
	edit, err := f.BeginEdit()
	if err != nil {
		return err
	}

	name := snapdb.SubFileName{
		Purpose:   snapdb.PrimaryArchivePurpose,
		KeyType:   newKey().TypeGUID(),
		ValueType: newValue().TypeGUID(),
	}
	stream, err := edit.CreateSubFile(name)
	if err != nil {
		return err
	}

	tree, err := snapdb.CreateTree(stream, f.BlockSize(), snapdb.EncodingDefinition{
		Combined: true,
		Combo:    snapdb.FixedSizeEncoding,
	}, newKey, newValue)
	if err != nil {
		return err
	}

	next := 0
	_, err = tree.TryAddRange(func() (snapdb.Key, snapdb.Value, bool) {
		if next >= n {
			return nil, nil, false
		}
		k := &snapdb.Uint64Key{V: uint64(next)}
		v := &snapdb.Float64Value{V: float64(next) * 1.5}
		next++
		return k, v, true
	})
	if err != nil {
		return err
	}

	return edit.Commit()
}

func scan(f *snapdb.File) (int, error) {
	snap := f.Snapshot()
	defer snap.Release()

	subFiles := snap.SubFiles()
	if len(subFiles) == 0 {
		return 0, nil
	}
	stream, err := snap.OpenSubFile(subFiles[0])
	if err != nil {
		return 0, err
	}
	tree, err := snapdb.OpenTree(stream, newKey, newValue)
	if err != nil {
		return 0, err
	}

	scanner := tree.CreateScanner()
	reader, err := snapdb.NewUnionReader(
		[]*snapdb.Scanner{scanner},
		snapdb.NewUnboundedSeekFilter(newKey),
		nil,
		newKey, newValue,
	)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	k, v := newKey(), newValue()
	n := 0
	for {
		ok, err := reader.ReadNext(k, v)
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		n++
	}
	return n, nil
}
